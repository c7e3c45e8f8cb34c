// Package output formats CLI results. Output is styled with lipgloss when
// it goes to a terminal and plain otherwise; JSON mode bypasses both.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// Writer provides formatted output for CLI.
type Writer struct {
	out    io.Writer
	styles Styles
	color  bool
	json   bool
}

// Option configures a Writer.
type Option func(*Writer)

// WithColor forces styling on or off regardless of the destination.
func WithColor(on bool) Option {
	return func(w *Writer) {
		w.color = on
		w.styles = GetStyles(!on)
	}
}

// WithJSON selects raw JSON output; callers check JSON() and use Encode.
func WithJSON(on bool) Option {
	return func(w *Writer) { w.json = on }
}

// New creates a Writer for out. Styling is enabled when out is a terminal
// and NO_COLOR is unset.
func New(out io.Writer, opts ...Option) *Writer {
	color := IsTTY(out) && !DetectNoColor()
	w := &Writer{
		out:    out,
		styles: GetStyles(!color),
		color:  color,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// JSON reports whether the writer is in JSON mode.
func (w *Writer) JSON() bool {
	return w.json
}

// Status prints a status message with an icon.
// Errors from writing are intentionally ignored for console output.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Statusf prints a formatted status message with an icon.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a success message with checkmark.
func (w *Writer) Success(msg string) {
	w.Status(w.styles.Success.Render("✓"), msg)
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.Status(w.styles.Warning.Render("!"), msg)
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	w.Status(w.styles.Error.Render("✗"), msg)
}

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Line prints msg followed by a newline.
func (w *Writer) Line(msg string) {
	_, _ = fmt.Fprintln(w.out, msg)
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// Field prints an aligned "label: value" pair.
func (w *Writer) Field(label string, value any) {
	_, _ = fmt.Fprintf(w.out, "  %s %v\n", w.styles.Label.Render(fmt.Sprintf("%-14s", label+":")), value)
}

// Header prints a section header.
func (w *Writer) Header(title string) {
	_, _ = fmt.Fprintln(w.out, w.styles.Header.Render(title))
}

// List prints one item per line, or empty when there are none.
func (w *Writer) List(items []string, empty string) {
	if len(items) == 0 {
		_, _ = fmt.Fprintln(w.out, w.styles.Dim.Render(empty))
		return
	}
	for _, item := range items {
		_, _ = fmt.Fprintln(w.out, item)
	}
}

// Encode writes v as indented JSON.
func (w *Writer) Encode(v any) error {
	enc := json.NewEncoder(w.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Code prints a block with indentation.
func (w *Writer) Code(content string) {
	_, _ = fmt.Fprintln(w.out)
	for _, line := range strings.Split(content, "\n") {
		_, _ = fmt.Fprintf(w.out, "  %s\n", line)
	}
	_, _ = fmt.Fprintln(w.out)
}

// IsTTY checks if output is a terminal.
func IsTTY(w io.Writer) bool {
	if w == nil {
		return false
	}
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// DetectNoColor checks if NO_COLOR environment variable is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}
