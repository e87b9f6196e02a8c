package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	gateerr "github.com/mrz1836/sigilgate/pkg/errors"
)

// ErrorOutput represents a structured error for JSON output.
type ErrorOutput struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error details.
type ErrorDetail struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Details    map[string]string `json:"details,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	ExitCode   int               `json:"exit_code"`
}

// FormatError formats an error for display.
func FormatError(w io.Writer, err error, format Format) error {
	if err == nil {
		return nil
	}
	if format == FormatJSON {
		return formatErrorJSON(w, err)
	}
	return formatErrorText(w, err)
}

func formatErrorJSON(w io.Writer, err error) error {
	detail := ErrorDetail{
		Code:     "GENERAL_ERROR",
		Message:  err.Error(),
		ExitCode: gateerr.ExitGeneral,
	}

	var ge *gateerr.GateError
	if errors.As(err, &ge) {
		detail = ErrorDetail{
			Code:       ge.Code,
			Message:    ge.Message,
			Details:    ge.Details,
			Suggestion: ge.Suggestion,
			ExitCode:   ge.ExitCode,
		}
		if ge.Cause != nil {
			detail.Message = fmt.Sprintf("%s: %v", ge.Message, ge.Cause)
		}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(ErrorOutput{Error: detail})
}

func formatErrorText(w io.Writer, err error) error {
	var sb strings.Builder

	var ge *gateerr.GateError
	if !errors.As(err, &ge) {
		sb.WriteString(fmt.Sprintf("Error: %s\n", err.Error()))
		_, writeErr := io.WriteString(w, sb.String())
		return writeErr
	}

	msg := ge.Message
	if ge.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, ge.Cause)
	}
	sb.WriteString(fmt.Sprintf("Error: %s\n", msg))

	if len(ge.Details) > 0 {
		keys := make([]string, 0, len(ge.Details))
		for k := range ge.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		sb.WriteString("\nDetails:\n")
		for _, k := range keys {
			sb.WriteString(fmt.Sprintf("  %s: %s\n", k, ge.Details[k]))
		}
	}

	if ge.Suggestion != "" {
		sb.WriteString(fmt.Sprintf("\nSuggestion: %s\n", ge.Suggestion))
	}

	_, writeErr := io.WriteString(w, sb.String())
	return writeErr
}

// FormatSuccess formats a success message.
func FormatSuccess(w io.Writer, message string, format Format) error {
	if format == FormatJSON {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(map[string]string{"status": "success", "message": message})
	}
	_, err := fmt.Fprintln(w, message)
	return err
}
