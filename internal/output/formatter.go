// Package output writes records and listings as text, JSON or CSV.
package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/jmurray2011/logweave/internal/source"
	"github.com/jmurray2011/logweave/internal/ui"
)

// Format specifies the output format type.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json" // one object per line for records
	FormatCSV  Format = "csv"
)

// ParseFormat validates a format name. Empty means text.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case "":
		return FormatText, nil
	case FormatText, FormatJSON, FormatCSV:
		return f, nil
	}
	return "", fmt.Errorf("unknown output format %q (want text, json or csv)", s)
}

// TextTimestampLayout is the timestamp layout of text output.
const TextTimestampLayout = "2006-01-02 15:04:05.000"

// Formatter writes records as they arrive. Call Flush when done.
type Formatter struct {
	format   Format
	writer   io.Writer
	renderer *ui.Renderer
	location *time.Location

	csv     *csv.Writer
	json    *json.Encoder
	started bool
	count   int
}

// Option configures a Formatter.
type Option func(*Formatter)

// WithRenderer sets the renderer used for text output.
func WithRenderer(r *ui.Renderer) Option {
	return func(f *Formatter) { f.renderer = r }
}

// WithLocation sets the time zone timestamps are shown in.
func WithLocation(loc *time.Location) Option {
	return func(f *Formatter) { f.location = loc }
}

// NewFormatter creates a formatter writing format to w.
func NewFormatter(format Format, w io.Writer, opts ...Option) *Formatter {
	f := &Formatter{
		format:   format,
		writer:   w,
		location: time.Local,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.renderer == nil {
		f.renderer = ui.NewRenderer(ui.WithOutput(w))
	}
	switch format {
	case FormatCSV:
		f.csv = csv.NewWriter(w)
	case FormatJSON:
		f.json = json.NewEncoder(w)
	}
	return f
}

// Count returns the number of records written.
func (f *Formatter) Count() int { return f.count }

type jsonRecord struct {
	Timestamp string            `json:"timestamp"`
	Stream    string            `json:"stream,omitempty"`
	Message   string            `json:"message"`
	Ptr       string            `json:"ptr,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// WriteRecord writes one record.
func (f *Formatter) WriteRecord(rec source.Record) error {
	f.count++
	switch f.format {
	case FormatJSON:
		return f.json.Encode(jsonRecord{
			Timestamp: rec.Timestamp.UTC().Format(time.RFC3339Nano),
			Stream:    rec.Stream(),
			Message:   rec.Message,
			Ptr:       rec.DedupKey(),
			Fields:    extraFields(rec.Context),
		})
	case FormatCSV:
		if !f.started {
			f.started = true
			if err := f.csv.Write([]string{"timestamp", "stream", "message"}); err != nil {
				return err
			}
		}
		return f.csv.Write([]string{
			rec.Timestamp.UTC().Format(time.RFC3339Nano),
			rec.Stream(),
			rec.Message,
		})
	default:
		f.renderer.LogEntry(rec.Timestamp.In(f.location).Format(TextTimestampLayout), rec.Stream(), rec.Message)
		return nil
	}
}

// Flush completes the output. Text output with no records prints a
// "no results" line.
func (f *Formatter) Flush() error {
	switch f.format {
	case FormatCSV:
		f.csv.Flush()
		return f.csv.Error()
	case FormatText:
		if f.count == 0 {
			f.renderer.NoResults()
		}
	}
	return nil
}

// extraFields returns the backend fields other than the reserved ones
// already rendered, or nil.
func extraFields(ctx map[string]string) map[string]string {
	var out map[string]string
	for k, v := range ctx {
		switch k {
		case source.FieldPtr, source.FieldLogStream, source.FieldMessage, source.FieldTimestamp:
			continue
		}
		if out == nil {
			out = make(map[string]string)
		}
		out[k] = v
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
