package timeutil

import (
	"strings"
	"testing"
	"time"
)

func TestParseAbsolute(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		input   string
		want    time.Time
		wantErr bool
	}{
		{"", now, false},
		{"now", now, false},
		{"2025-01-15T10:30:00Z", time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC), false},
		{"2025-01-15T10:30:00+02:00", time.Date(2025, 1, 15, 8, 30, 0, 0, time.UTC), false},
		{"2025-01-15", time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), false},
		{"invalid", time.Time{}, true},
		{"5x", time.Time{}, true},
		{"-2h", time.Time{}, true},
		{"2025-13-01", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseAt(tt.input, now)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseAt(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && !got.Equal(tt.want) {
				t.Errorf("parseAt(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseUsesCurrentTime(t *testing.T) {
	got, err := Parse("30m")
	if err != nil {
		t.Fatal(err)
	}
	if diff := time.Since(got); diff < 29*time.Minute || diff > 31*time.Minute {
		t.Errorf("Parse(\"30m\") is %v ago, want about 30m", diff)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{45 * time.Second, "45s"},
		{30 * time.Minute, "30m"},
		{90 * time.Minute, "1.5h"},
		{2 * time.Hour, "2.0h"},
		{24 * time.Hour, "1.0d"},
		{36 * time.Hour, "1.5d"},
	}

	for _, tt := range tests {
		t.Run(tt.d.String(), func(t *testing.T) {
			got := FormatDuration(tt.d)
			if got != tt.want {
				t.Errorf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.want)
			}
		})
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 B"},
		{100, "100 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1024 * 1024, "1.0 MB"},
		{1024 * 1024 * 1024, "1.0 GB"},
		{1024 * 1024 * 1024 * 1024, "1.0 TB"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got := FormatBytes(tt.bytes)
			if got != tt.want {
				t.Errorf("FormatBytes(%d) = %q, want %q", tt.bytes, got, tt.want)
			}
		})
	}
}

func TestValidateTimeRange(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name  string
		start time.Time
		end   time.Time
		want  []string // substrings, one per expected warning
	}{
		{"last hour", now.Add(-time.Hour), now, nil},
		{"last day", now.Add(-24 * time.Hour), now, nil},
		{"end in future", now.Add(-time.Hour), now.Add(24 * time.Hour), []string{"in the future"}},
		{"start in future", now.Add(time.Hour), now.Add(2 * time.Hour), []string{"in the future", "no results"}},
		{"sixty days", now.Add(-60 * 24 * time.Hour), now, []string{"slow and expensive"}},
		{"thirty seconds", now.Add(-30 * time.Second), now, []string{"only 30s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			warnings := ValidateTimeRange(tt.start, tt.end)
			if len(warnings) != len(tt.want) {
				t.Fatalf("ValidateTimeRange() = %v, want %d warnings", warnings, len(tt.want))
			}
			for i, w := range warnings {
				if !strings.Contains(w.Message, tt.want[i]) {
					t.Errorf("warning %d = %q, want it to mention %q", i, w.Message, tt.want[i])
				}
			}
		})
	}
}

func TestParseAtRelative(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		input string
		want  time.Time
	}{
		{"90s", now.Add(-90 * time.Second)},
		{"15m", now.Add(-15 * time.Minute)},
		{"3h", now.Add(-3 * time.Hour)},
		{"2d", now.Add(-48 * time.Hour)},
		{"1w", now.Add(-7 * 24 * time.Hour)},
		{"now", now},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseAt(tt.input, now)
			if err != nil {
				t.Fatalf("parseAt(%q) error: %v", tt.input, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("parseAt(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestDayPrefixes(t *testing.T) {
	tests := []struct {
		name string
		from time.Time
		to   time.Time
		want []string
	}{
		{
			name: "same day",
			from: time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC),
			to:   time.Date(2024, 1, 15, 9, 15, 0, 0, time.UTC),
			want: []string{"2024/01/15"},
		},
		{
			name: "crosses midnight",
			from: time.Date(2024, 1, 15, 23, 30, 0, 0, time.UTC),
			to:   time.Date(2024, 1, 16, 0, 30, 0, 0, time.UTC),
			want: []string{"2024/01/15", "2024/01/16"},
		},
		{
			name: "month boundary",
			from: time.Date(2024, 2, 28, 12, 0, 0, 0, time.UTC),
			to:   time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			want: []string{"2024/02/28", "2024/02/29", "2024/03/01"},
		},
		{
			name: "non-UTC input uses UTC days",
			from: time.Date(2024, 1, 15, 20, 0, 0, 0, time.FixedZone("EST", -5*3600)),
			to:   time.Date(2024, 1, 15, 21, 0, 0, 0, time.FixedZone("EST", -5*3600)),
			want: []string{"2024/01/16"},
		},
		{
			name: "inverted range",
			from: time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC),
			to:   time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DayPrefixes(tt.from, tt.to)
			if len(got) != len(tt.want) {
				t.Fatalf("DayPrefixes() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("DayPrefixes()[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}
