// Package errors provides structured error handling for sigilgate.
// Every failure the core can surface carries a machine-readable code, a
// human-readable message, optional details and a suggestion for the user.
//
//nolint:revive // Package name intentionally shadows stdlib for domain-specific error handling
package errors

import (
	"errors"
	"fmt"
	"sort"
)

// Exit codes returned by the CLI shell.
const (
	ExitSuccess  = 0 // Successful execution
	ExitGeneral  = 1 // General/unknown error
	ExitInput    = 2 // Invalid input
	ExitRejected = 3 // The signing agent or the user rejected the request
	ExitNotFound = 4 // Resource not found
	ExitAgent    = 5 // Signing agent missing or unusable
)

// GateError is the structured error type for sigilgate.
type GateError struct {
	Code       string            // Machine-readable error code
	Message    string            // Human-readable message
	Details    map[string]string // Additional context
	Suggestion string            // Actionable suggestion for user
	Cause      error             // Underlying error
	ExitCode   int               // Exit code for CLI
}

func (e *GateError) Error() string {
	msg := e.Message

	// Details are sorted for deterministic output
	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			msg = fmt.Sprintf("%s (%s: %s)", msg, k, e.Details[k])
		}
	}

	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *GateError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is for GateError. Two errors match when their codes match.
func (e *GateError) Is(target error) bool {
	var t *GateError
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// Sentinel errors.
var (
	ErrGeneral = &GateError{
		Code:     "GENERAL_ERROR",
		Message:  "an error occurred",
		ExitCode: ExitGeneral,
	}

	ErrInvalidInput = &GateError{
		Code:     "INVALID_INPUT",
		Message:  "invalid input",
		ExitCode: ExitInput,
	}

	ErrNotFound = &GateError{
		Code:     "NOT_FOUND",
		Message:  "resource not found",
		ExitCode: ExitNotFound,
	}

	// Connection errors.
	ErrUserRejected = &GateError{
		Code:     "USER_REJECTED",
		Message:  "request rejected by the user",
		ExitCode: ExitRejected,
	}

	ErrProviderUnavailable = &GateError{
		Code:       "PROVIDER_UNAVAILABLE",
		Message:    "signing agent provider unavailable",
		Suggestion: "install the wallet extension or open the app inside the wallet browser",
		ExitCode:   ExitAgent,
	}

	ErrNoAccounts = &GateError{
		Code:     "NO_ACCOUNTS",
		Message:  "no accounts received",
		ExitCode: ExitAgent,
	}

	ErrUnknownConnector = &GateError{
		Code:     "UNKNOWN_CONNECTOR",
		Message:  "unknown connector",
		ExitCode: ExitNotFound,
	}

	ErrNotConnected = &GateError{
		Code:       "NOT_CONNECTED",
		Message:    "no connected account",
		Suggestion: "run 'sigilgate connect <connector>' first",
		ExitCode:   ExitInput,
	}

	// Chain negotiation errors.
	ErrChainNegotiation = &GateError{
		Code:     "CHAIN_NEGOTIATION_FAILED",
		Message:  "network negotiation failed",
		ExitCode: ExitGeneral,
	}

	ErrAddNetworkRejected = &GateError{
		Code:     "ADD_NETWORK_REJECTED",
		Message:  "user rejected adding the network",
		ExitCode: ExitRejected,
	}

	ErrUnknownChain = &GateError{
		Code:     "UNKNOWN_CHAIN",
		Message:  "chain is not configured",
		ExitCode: ExitNotFound,
	}

	// Agent transport errors.
	ErrAgentRequest = &GateError{
		Code:     "AGENT_REQUEST_FAILED",
		Message:  "signing agent request failed",
		ExitCode: ExitGeneral,
	}

	ErrAgentResponse = &GateError{
		Code:     "AGENT_INVALID_RESPONSE",
		Message:  "invalid signing agent response",
		ExitCode: ExitGeneral,
	}

	// Sign-in errors.
	ErrSignInFailed = &GateError{
		Code:     "SIGN_IN_FAILED",
		Message:  "sign-in failed",
		ExitCode: ExitGeneral,
	}

	ErrInvalidDomain = &GateError{
		Code:     "INVALID_DOMAIN",
		Message:  "invalid sign-in domain",
		ExitCode: ExitInput,
	}

	// Config errors.
	ErrConfigNotFound = &GateError{
		Code:     "CONFIG_NOT_FOUND",
		Message:  "configuration file not found",
		ExitCode: ExitNotFound,
	}

	ErrConfigInvalid = &GateError{
		Code:     "CONFIG_INVALID",
		Message:  "configuration file is invalid",
		ExitCode: ExitInput,
	}
)

// New creates a new GateError with the given code and message.
func New(code, message string) *GateError {
	return &GateError{
		Code:     code,
		Message:  message,
		ExitCode: ExitGeneral,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}

	msg := fmt.Sprintf(format, args...)

	var ge *GateError
	if errors.As(err, &ge) {
		return &GateError{
			Code:       ge.Code,
			Message:    fmt.Sprintf("%s: %s", msg, ge.Message),
			Details:    ge.Details,
			Suggestion: ge.Suggestion,
			Cause:      err,
			ExitCode:   ge.ExitCode,
		}
	}

	return &GateError{
		Code:     "GENERAL_ERROR",
		Message:  msg,
		Cause:    err,
		ExitCode: ExitGeneral,
	}
}

// WithCause returns a copy of the sentinel carrying cause as its underlying error.
// The result still matches the sentinel with errors.Is.
func WithCause(sentinel *GateError, cause error) error {
	return &GateError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		Details:    sentinel.Details,
		Suggestion: sentinel.Suggestion,
		Cause:      cause,
		ExitCode:   sentinel.ExitCode,
	}
}

// WithDetails adds details to an error.
func WithDetails(err error, details map[string]string) error {
	if err == nil {
		return nil
	}

	var ge *GateError
	if errors.As(err, &ge) {
		return &GateError{
			Code:       ge.Code,
			Message:    ge.Message,
			Details:    details,
			Suggestion: ge.Suggestion,
			Cause:      ge.Cause,
			ExitCode:   ge.ExitCode,
		}
	}

	return &GateError{
		Code:     "GENERAL_ERROR",
		Message:  err.Error(),
		Details:  details,
		Cause:    err,
		ExitCode: ExitGeneral,
	}
}

// WithSuggestion adds a suggestion to an error.
func WithSuggestion(err error, suggestion string) error {
	if err == nil {
		return nil
	}

	var ge *GateError
	if errors.As(err, &ge) {
		return &GateError{
			Code:       ge.Code,
			Message:    ge.Message,
			Details:    ge.Details,
			Suggestion: suggestion,
			Cause:      ge.Cause,
			ExitCode:   ge.ExitCode,
		}
	}

	return &GateError{
		Code:       "GENERAL_ERROR",
		Message:    err.Error(),
		Suggestion: suggestion,
		Cause:      err,
		ExitCode:   ExitGeneral,
	}
}

// ExitCode returns the appropriate exit code for an error.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var ge *GateError
	if errors.As(err, &ge) {
		return ge.ExitCode
	}

	return ExitGeneral
}

// Code returns the error code for an error.
func Code(err error) string {
	var ge *GateError
	if errors.As(err, &ge) {
		return ge.Code
	}
	return "GENERAL_ERROR"
}

// Is wraps errors.Is for convenience.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience.
func As(err error, target any) bool {
	return errors.As(err, target)
}
