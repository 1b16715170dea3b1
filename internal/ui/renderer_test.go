package ui

import (
	"bytes"
	"strings"
	"testing"
)

func TestStatusQuiet(t *testing.T) {
	var errBuf bytes.Buffer
	r := NewRenderer(WithError(&errBuf), WithNoColor(true), WithQuiet(true))
	r.Status("discovered %d streams", 3)
	if errBuf.Len() != 0 {
		t.Errorf("quiet renderer wrote %q", errBuf.String())
	}

	r = NewRenderer(WithError(&errBuf), WithNoColor(true))
	r.Status("discovered %d streams", 3)
	if errBuf.String() != "discovered 3 streams\n" {
		t.Errorf("status = %q", errBuf.String())
	}
}

func TestLogEntry(t *testing.T) {
	tests := []struct {
		name    string
		stream  string
		message string
		want    string
	}{
		{"with stream", "s1", "hello", "10:00 | s1\n  hello\n"},
		{"no stream", "", "hello", "10:00\n  hello\n"},
		{"multiline trailing newline", "s1", "a\nb\n", "10:00 | s1\n  a\n  b\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			NewRenderer(WithOutput(&buf), WithNoColor(true)).LogEntry("10:00", tt.stream, tt.message)
			if buf.String() != tt.want {
				t.Errorf("LogEntry() = %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func TestWithHighlightInvalidPattern(t *testing.T) {
	r := NewRenderer(WithHighlight("a(b"))
	if r.highlight == nil || !r.highlight.MatchString("xA(By") {
		t.Error("invalid pattern should be matched literally and case-insensitively")
	}
}

func TestTable(t *testing.T) {
	var buf bytes.Buffer
	NewRenderer(WithOutput(&buf), WithNoColor(true)).Table(
		[]string{"NAME", "SIZE"},
		[][]string{{"/app/long-name", "1 KB"}, {"/b"}},
	)
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	want := []string{
		"NAME            SIZE",
		"--------------  ----",
		"/app/long-name  1 KB",
		"/b",
	}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d:\n%s", len(lines), len(want), buf.String())
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}
