package insights

import (
	"fmt"
	"time"

	"github.com/jmurray2011/logweave/internal/source"
)

// timestampLayouts are tried in order when decoding @timestamp. Insights
// returns the first; the rest cover fields copied from other tools.
var timestampLayouts = []string{
	source.SearchTimestampLayout,
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000",
}

func parseTimestamp(value string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse timestamp %q", value)
}

// decodeRows converts result rows into records, keeping their order. Rows
// whose timestamp is missing or unparsable are left out and the first such
// failure is returned alongside the records that did decode.
func decodeRows(rows []source.Row) ([]source.Record, error) {
	records := make([]source.Record, 0, len(rows))
	var firstErr error
	bad := 0

	for _, row := range rows {
		raw, ok := row[source.FieldTimestamp]
		if !ok {
			bad++
			if firstErr == nil {
				firstErr = fmt.Errorf("row has no %s field", source.FieldTimestamp)
			}
			continue
		}
		ts, err := parseTimestamp(raw)
		if err != nil {
			bad++
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		rec := source.Record{
			Timestamp: ts,
			Message:   row[source.FieldMessage],
			Context:   make(map[string]string, len(row)),
		}
		for k, v := range row {
			if k == source.FieldTimestamp || k == source.FieldMessage {
				continue
			}
			rec.Context[k] = v
		}
		records = append(records, rec)
	}

	if firstErr != nil {
		return records, fmt.Errorf("%d of %d rows undecodable: %w", bad, len(rows), firstErr)
	}
	return records, nil
}

// dropThrough removes every record up to and including the one whose dedup
// key equals key. Records are returned unchanged when key is empty or absent.
func dropThrough(records []source.Record, key string) []source.Record {
	if key == "" {
		return records
	}
	for i, r := range records {
		if r.DedupKey() == key {
			return records[i+1:]
		}
	}
	return records
}
