package output

import (
	"fmt"
	"strconv"
	"time"

	"github.com/jmurray2011/logweave/internal/cloudwatch"
	"github.com/jmurray2011/logweave/internal/source"
	"github.com/jmurray2011/logweave/pkg/timeutil"
)

// listing is a table rendered as text, a JSON array or CSV.
type listing struct {
	headers []string
	rows    [][]string
	objects []any
}

func (f *Formatter) writeListing(l listing) error {
	switch f.format {
	case FormatJSON:
		if l.objects == nil {
			l.objects = []any{}
		}
		return f.json.Encode(l.objects)
	case FormatCSV:
		if err := f.csv.Write(l.headers); err != nil {
			return err
		}
		if err := f.csv.WriteAll(l.rows); err != nil {
			return err
		}
		return f.csv.Error()
	default:
		if len(l.rows) == 0 {
			f.renderer.NoResults()
			return nil
		}
		f.renderer.Table(l.headers, l.rows)
		return nil
	}
}

func (f *Formatter) formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	if f.format == FormatText {
		return t.In(f.location).Format("2006-01-02 15:04:05")
	}
	return t.UTC().Format(time.RFC3339)
}

// FormatGroups writes a log group listing.
func (f *Formatter) FormatGroups(groups []source.GroupInfo) error {
	type jsonGroup struct {
		Name          string `json:"name"`
		RetentionDays int    `json:"retentionDays,omitempty"`
		StoredBytes   int64  `json:"storedBytes"`
		Created       string `json:"created,omitempty"`
	}

	l := listing{headers: []string{"NAME", "RETENTION", "STORED", "CREATED"}}
	for _, g := range groups {
		retention := "never expire"
		if g.RetentionDays > 0 {
			retention = fmt.Sprintf("%d days", g.RetentionDays)
		}
		stored := strconv.FormatInt(g.StoredBytes, 10)
		if f.format == FormatText {
			stored = timeutil.FormatBytes(g.StoredBytes)
		}
		l.rows = append(l.rows, []string{g.Name, retention, stored, f.formatTime(g.CreationTime)})

		jg := jsonGroup{Name: g.Name, RetentionDays: g.RetentionDays, StoredBytes: g.StoredBytes}
		if !g.CreationTime.IsZero() {
			jg.Created = f.formatTime(g.CreationTime)
		}
		l.objects = append(l.objects, jg)
	}
	return f.writeListing(l)
}

// FormatSources writes a log stream listing with each stream's event span.
func (f *Formatter) FormatSources(sources []source.Descriptor) error {
	type jsonSource struct {
		Name       string `json:"name"`
		FirstEvent string `json:"firstEvent"`
		LastEvent  string `json:"lastEvent"`
	}

	l := listing{headers: []string{"STREAM", "FIRST EVENT", "LAST EVENT", "SPAN"}}
	for _, s := range sources {
		span := "-"
		if !s.FirstEventTime.IsZero() && !s.LastEventTime.IsZero() {
			span = timeutil.FormatDuration(s.LastEventTime.Sub(s.FirstEventTime))
		}
		l.rows = append(l.rows, []string{s.ID, f.formatTime(s.FirstEventTime), f.formatTime(s.LastEventTime), span})
		l.objects = append(l.objects, jsonSource{
			Name:       s.ID,
			FirstEvent: f.formatTime(s.FirstEventTime),
			LastEvent:  f.formatTime(s.LastEventTime),
		})
	}
	return f.writeListing(l)
}

// FormatAliases writes the configured group aliases, sorted by name.
func (f *Formatter) FormatAliases(aliases map[string]string) error {
	type jsonAlias struct {
		Alias string `json:"alias"`
		Group string `json:"group"`
	}

	l := listing{headers: []string{"ALIAS", "LOG GROUP"}}
	for _, name := range sortedKeys(aliases) {
		l.rows = append(l.rows, []string{"@" + name, aliases[name]})
		l.objects = append(l.objects, jsonAlias{Alias: "@" + name, Group: aliases[name]})
	}
	return f.writeListing(l)
}

// FormatStatPoints writes the history of one published run statistic.
func (f *Formatter) FormatStatPoints(metric string, points []cloudwatch.StatPoint) error {
	type jsonPoint struct {
		Timestamp string  `json:"timestamp"`
		Value     float64 `json:"value"`
		Unit      string  `json:"unit,omitempty"`
	}

	l := listing{headers: []string{"TIME", metric, "UNIT"}}
	for _, p := range points {
		value := strconv.FormatFloat(p.Value, 'f', -1, 64)
		l.rows = append(l.rows, []string{f.formatTime(p.Timestamp), value, p.Unit})
		l.objects = append(l.objects, jsonPoint{Timestamp: f.formatTime(p.Timestamp), Value: p.Value, Unit: p.Unit})
	}
	return f.writeListing(l)
}
