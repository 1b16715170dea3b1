package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevelString(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.level.String(); got != tt.want {
				t.Errorf("Level.String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	tests := []struct {
		level Level
		want  []string
		drop  []string
	}{
		{LevelDebug, []string{"DEBUG", "INFO", "WARN", "ERROR"}, nil},
		{LevelInfo, []string{"INFO", "WARN", "ERROR"}, []string{"DEBUG"}},
		{LevelWarn, []string{"WARN", "ERROR"}, []string{"DEBUG", "INFO"}},
		{LevelError, []string{"ERROR"}, []string{"DEBUG", "INFO", "WARN"}},
	}

	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewWithOutput(&buf)
			logger.SetLevel(tt.level)

			logger.Debug("window %d", 1)
			logger.Info("window %d", 2)
			logger.Warn("window %d", 3)
			logger.Error("window %d", 4)

			out := buf.String()
			for _, lvl := range tt.want {
				if !strings.Contains(out, "\t"+lvl+"\t") {
					t.Errorf("missing %s line in %q", lvl, out)
				}
			}
			for _, lvl := range tt.drop {
				if strings.Contains(out, "\t"+lvl+"\t") {
					t.Errorf("unexpected %s line in %q", lvl, out)
				}
			}
		})
	}
}

func TestLoggerFields(t *testing.T) {
	tests := []struct {
		name string
		log  func(Logger)
		want []string
	}{
		{
			name: "printf message",
			log:  func(l Logger) { l.Info("window shrunk to %s", "15m0s") },
			want: []string{"window shrunk to 15m0s"},
		},
		{
			name: "single field",
			log:  func(l Logger) { l.WithField("group", "/app/orders").Info("reading") },
			want: []string{`"group": "/app/orders"`},
		},
		{
			name: "field map",
			log: func(l Logger) {
				l.WithFields(map[string]interface{}{"rows": 10000, "run": "r1"}).Warn("capped")
			},
			want: []string{`"rows": 10000`, `"run": "r1"`},
		},
		{
			name: "chained fields",
			log:  func(l Logger) { l.WithField("driver", "streams").WithField("cursors", 3).Debug("round") },
			want: []string{`"driver": "streams"`, `"cursors": 3`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewWithOutput(&buf)
			logger.SetLevel(LevelDebug)

			tt.log(logger)

			for _, w := range tt.want {
				if !strings.Contains(buf.String(), w) {
					t.Errorf("output %q does not contain %s", buf.String(), w)
				}
			}
		})
	}
}

func TestNopLogger(t *testing.T) {
	var l Logger = NopLogger{}
	l.Error("dropped")
	l.SetLevel(LevelDebug)
	l.SetOutput(&bytes.Buffer{})

	if _, ok := l.WithField("k", "v").(NopLogger); !ok {
		t.Error("WithField should return a NopLogger")
	}
	if _, ok := l.WithFields(map[string]interface{}{"k": "v"}).(NopLogger); !ok {
		t.Error("WithFields should return a NopLogger")
	}
}

func TestLoggerImmutability(t *testing.T) {
	var buf bytes.Buffer
	base := NewWithOutput(&buf)
	base.SetLevel(LevelDebug)

	// Create derived logger with field
	derived := base.WithField("source", "derived")

	// Log from base - should NOT have the field
	buf.Reset()
	base.Info("base message")
	if strings.Contains(buf.String(), `"source": "derived"`) {
		t.Error("base logger should not have derived field")
	}

	// Log from derived - should have the field
	buf.Reset()
	derived.Info("derived message")
	if !strings.Contains(buf.String(), `"source": "derived"`) {
		t.Error("derived logger should have field")
	}
}

func TestLoggerWithFieldsSortedKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithOutput(&buf)

	logger.WithFields(map[string]interface{}{"zeta": 1, "alpha": 2}).Info("sorted")

	output := buf.String()
	a := strings.Index(output, `"alpha"`)
	z := strings.Index(output, `"zeta"`)
	if a < 0 || z < 0 || a > z {
		t.Errorf("expected alpha before zeta, got: %s", output)
	}
}

func TestLoggerSetOutput(t *testing.T) {
	var first, second bytes.Buffer
	logger := NewWithOutput(&first)
	derived := logger.WithField("k", "v")

	logger.SetOutput(&second)
	derived.Info("moved")

	if first.Len() != 0 {
		t.Errorf("expected nothing in first writer, got: %s", first.String())
	}
	if !strings.Contains(second.String(), "moved") {
		t.Errorf("expected message in second writer, got: %s", second.String())
	}
}

func TestLoggerSetLevelSharedWithDerived(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithOutput(&buf)
	derived := logger.WithField("k", "v")

	logger.SetLevel(LevelDebug)
	derived.Debug("visible")

	if !strings.Contains(buf.String(), "visible") {
		t.Errorf("expected debug message from derived logger, got: %s", buf.String())
	}
}
