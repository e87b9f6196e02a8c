package cli

import (
	"encoding/json"
	"fmt"
	"io"
)

// writeJSON encodes the value as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// out writes formatted text, ignoring write errors on the terminal.
func out(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}

// outln writes a line of text, ignoring write errors on the terminal.
func outln(w io.Writer, args ...any) {
	_, _ = fmt.Fprintln(w, args...)
}
