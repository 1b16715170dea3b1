// Package ui renders styled terminal output.
package ui

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Renderer handles all terminal output with consistent styling.
type Renderer struct {
	out       io.Writer
	err       io.Writer
	noColor   bool
	quiet     bool
	highlight *regexp.Regexp
}

// Option is a functional option for configuring the Renderer.
type Option func(*Renderer)

// WithOutput sets the output writer.
func WithOutput(w io.Writer) Option {
	return func(r *Renderer) { r.out = w }
}

// WithError sets the writer for status and diagnostics.
func WithError(w io.Writer) Option {
	return func(r *Renderer) { r.err = w }
}

// WithNoColor disables color output.
func WithNoColor(noColor bool) Option {
	return func(r *Renderer) { r.noColor = noColor }
}

// WithQuiet suppresses status messages.
func WithQuiet(quiet bool) Option {
	return func(r *Renderer) { r.quiet = quiet }
}

// WithHighlight sets a case-insensitive pattern to highlight in messages.
// An invalid pattern is matched literally.
func WithHighlight(pattern string) Option {
	return func(r *Renderer) {
		if pattern == "" {
			return
		}
		re, err := regexp.Compile("(?i)(" + pattern + ")")
		if err != nil {
			re = regexp.MustCompile("(?i)(" + regexp.QuoteMeta(pattern) + ")")
		}
		r.highlight = re
	}
}

// NewRenderer creates a Renderer writing to stdout and stderr.
func NewRenderer(opts ...Option) *Renderer {
	r := &Renderer{
		out: os.Stdout,
		err: os.Stderr,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Out returns the writer for primary output.
func (r *Renderer) Out() io.Writer { return r.out }

// NoColor reports whether styling is disabled.
func (r *Renderer) NoColor() bool { return r.noColor }

// Style applies style unless color is disabled.
func (r *Renderer) Style(style lipgloss.Style, text string) string {
	if r.noColor {
		return text
	}
	return style.Render(text)
}

// Status prints a progress message to stderr (suppressed in quiet mode).
func (r *Renderer) Status(format string, args ...any) {
	if r.quiet {
		return
	}
	fmt.Fprintln(r.err, r.Style(StatusStyle, fmt.Sprintf(format, args...)))
}

// Info prints an informational message.
func (r *Renderer) Info(format string, args ...any) {
	fmt.Fprintln(r.out, fmt.Sprintf(format, args...))
}

// Success prints a success message.
func (r *Renderer) Success(format string, args ...any) {
	fmt.Fprintln(r.out, r.Style(SuccessStyle, fmt.Sprintf(format, args...)))
}

// Warning prints a warning to stderr.
func (r *Renderer) Warning(format string, args ...any) {
	fmt.Fprintln(r.err, r.Style(WarningStyle, "Warning: "+fmt.Sprintf(format, args...)))
}

// Error prints an error to stderr.
func (r *Renderer) Error(format string, args ...any) {
	fmt.Fprintln(r.err, r.Style(ErrorStyle, "Error: "+fmt.Sprintf(format, args...)))
}

// KeyValue prints a labelled value.
func (r *Renderer) KeyValue(key, value string) {
	fmt.Fprintf(r.out, "%s %s\n", r.Style(LabelStyle, key+":"), value)
}

// Section prints a section title preceded by a blank line.
func (r *Renderer) Section(title string) {
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, r.Style(SectionTitleStyle, title))
}

// LogEntry renders one record: a header with timestamp and stream, then
// the message indented line by line.
func (r *Renderer) LogEntry(timestamp, logStream, message string) {
	header := r.Style(TimestampStyle, timestamp)
	if logStream != "" {
		header += " | " + r.Style(LogStreamStyle, logStream)
	}
	fmt.Fprintln(r.out, header)

	if r.highlight != nil && !r.noColor {
		message = r.highlight.ReplaceAllStringFunc(message, func(m string) string {
			return HighlightStyle.Render(m)
		})
	}
	for _, line := range strings.Split(strings.TrimRight(message, "\n"), "\n") {
		fmt.Fprintf(r.out, "  %s\n", line)
	}
}

// Table renders left-aligned columns under a header row.
func (r *Renderer) Table(headers []string, rows [][]string) {
	if len(headers) == 0 {
		return
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	cells := make([]string, len(headers))
	for i, h := range headers {
		cells[i] = r.Style(LabelStyle, fmt.Sprintf("%-*s", widths[i], h))
	}
	fmt.Fprintln(r.out, strings.TrimRight(strings.Join(cells, "  "), " "))

	for i, w := range widths {
		cells[i] = strings.Repeat("-", w)
	}
	fmt.Fprintln(r.out, r.Style(MutedStyle, strings.Join(cells, "  ")))

	for _, row := range rows {
		for i := range headers {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			cells[i] = fmt.Sprintf("%-*s", widths[i], cell)
		}
		fmt.Fprintln(r.out, strings.TrimRight(strings.Join(cells, "  "), " "))
	}
}

// NoResults prints a "no results" message.
func (r *Renderer) NoResults() {
	fmt.Fprintln(r.out, r.Style(MutedStyle, "No results found."))
}
