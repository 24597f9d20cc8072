package cli

import (
	"encoding/json"
	"fmt"
	"io"
)

// CLIResponse is the envelope of --format json output.
type CLIResponse struct {
	Status string `json:"status"`
	Data   any    `json:"data,omitempty"`
	Error  string `json:"error,omitempty"`
}

// OutputFormatter renders command results as text or JSON.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

func newFormatter(opts *RootOptions, w io.Writer) *OutputFormatter {
	return &OutputFormatter{Format: opts.Format, Writer: w}
}

// JSON reports whether results are rendered as JSON.
func (f *OutputFormatter) JSON() bool {
	return f.Format == "json"
}

// Data writes data in a JSON envelope, or calls text for text output.
func (f *OutputFormatter) Data(data any, text func(w io.Writer)) error {
	if f.JSON() {
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(CLIResponse{Status: "ok", Data: data})
	}
	text(f.Writer)
	return nil
}

// Linef writes one line of text output.
func (f *OutputFormatter) Linef(format string, args ...any) {
	fmt.Fprintf(f.Writer, format+"\n", args...)
}
