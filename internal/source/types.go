package source

import (
	"time"
)

// Reserved context keys carried on a Record.
const (
	// FieldPtr holds the backend-assigned record pointer used for de-duplication.
	FieldPtr = "@ptr"

	// FieldTimestamp is the search row field holding the event time.
	FieldTimestamp = "@timestamp"

	// FieldMessage is the search row field holding the raw log line.
	FieldMessage = "@message"

	// FieldLogStream identifies the source a record came from.
	FieldLogStream = "@logStream"
)

// SearchTimestampLayout is the layout of @timestamp values in search rows (UTC).
const SearchTimestampLayout = "2006-01-02 15:04:05.000"

// Record represents a single decoded log record. Records are values: a
// driver creates one per raw backend record and never touches it again.
type Record struct {
	Timestamp time.Time
	Message   string
	Context   map[string]string // Backend metadata, including reserved keys
}

// DedupKey returns the backend pointer of the record, or "" if it has none.
func (r Record) DedupKey() string {
	return r.Context[FieldPtr]
}

// Stream returns the source id the record came from, if known.
func (r Record) Stream() string {
	return r.Context[FieldLogStream]
}

// Descriptor describes one paginated source of events inside a group
// (a CloudWatch log stream).
type Descriptor struct {
	ID             string
	FirstEventTime time.Time
	LastEventTime  time.Time
}

// Overlaps reports whether the descriptor's event span intersects the
// closed range [start, end].
func (d Descriptor) Overlaps(start, end time.Time) bool {
	return !d.LastEventTime.Before(start) && !d.FirstEventTime.After(end)
}

// Event is a raw event as delivered by a source's pagination chain.
type Event struct {
	Timestamp time.Time
	Message   string
}

// GroupInfo describes a log group.
type GroupInfo struct {
	Name          string
	StoredBytes   int64
	CreationTime  time.Time
	RetentionDays int
}

// SearchStatus is the state of an asynchronous search job.
type SearchStatus int

const (
	SearchPending SearchStatus = iota
	SearchComplete
	SearchFailed
	SearchCancelled
	SearchTimedOut
)

// String returns the string representation of the status.
func (s SearchStatus) String() string {
	switch s {
	case SearchPending:
		return "pending"
	case SearchComplete:
		return "complete"
	case SearchFailed:
		return "failed"
	case SearchCancelled:
		return "cancelled"
	case SearchTimedOut:
		return "timed out"
	default:
		return "unknown"
	}
}

// Row is one search result row, field name to value.
type Row map[string]string

// SearchRequest defines a bounded time-range search.
type SearchRequest struct {
	Group string
	Query string
	Start time.Time
	End   time.Time
	Limit int
}

// SearchResult is the outcome of polling a search job. Rows is only
// populated once Status is SearchComplete.
type SearchResult struct {
	Status SearchStatus
	Rows   []Row
}

// SourcePage is one page of a source listing.
type SourcePage struct {
	Sources   []Descriptor
	NextToken string
}

// EventsRequest selects one page of events from a single source.
type EventsRequest struct {
	Group  string
	Source string
	Start  time.Time
	End    time.Time
	Token  string
}

// EventPage is one page of events. A NextToken equal to the request token
// signals end of data.
type EventPage struct {
	Events    []Event
	NextToken string
}

// GroupPage is one page of a group listing.
type GroupPage struct {
	Groups    []GroupInfo
	NextToken string
}
