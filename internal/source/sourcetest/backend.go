// Package sourcetest provides an in-memory source.Backend for tests.
package sourcetest

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jmurray2011/logweave/internal/source"
)

// Operation names accepted by Backend.Calls.
const (
	OpSubmitSearch = "SubmitSearch"
	OpPollSearch   = "PollSearch"
	OpListSources  = "ListSources"
	OpListEvents   = "ListEvents"
	OpListGroups   = "ListGroups"
)

// Stream is one fake source and its events, ascending by timestamp.
type Stream struct {
	ID     string
	Events []source.Event

	// First and Last override the descriptor span when non-zero.
	First time.Time
	Last  time.Time
}

// SearchFunc answers a search request with result rows.
type SearchFunc func(req source.SearchRequest) ([]source.Row, error)

// Backend is an in-memory source.Backend. Configure the exported fields
// before use; it is safe for concurrent calls afterwards.
type Backend struct {
	Groups  []source.GroupInfo
	Streams map[string][]Stream // group name -> streams

	// PageSize bounds events per ListEvents page (default 2).
	PageSize int
	// SourcePageSize bounds descriptors per ListSources page (default 2).
	SourcePageSize int
	// GroupPageSize bounds groups per ListGroups page (default 2).
	GroupPageSize int

	// Search answers SubmitSearch; PendingPolls is how many polls report
	// pending before a job completes.
	Search       SearchFunc
	PendingPolls int

	// Errs makes the named operation fail with the given error.
	Errs map[string]error

	// Delay is applied to every ListEvents call.
	Delay time.Duration

	mu       sync.Mutex
	calls    map[string]int
	searches []source.SearchRequest
	jobs     map[string]*job
	nextJob  int
}

type job struct {
	req   source.SearchRequest
	polls int
}

// Calls returns how many times op has been invoked.
func (b *Backend) Calls(op string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[op]
}

// Searches returns the search requests submitted so far.
func (b *Backend) Searches() []source.SearchRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]source.SearchRequest(nil), b.searches...)
}

func (b *Backend) record(op string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.calls == nil {
		b.calls = make(map[string]int)
	}
	b.calls[op]++
	return b.Errs[op]
}

// SubmitSearch implements source.Backend.
func (b *Backend) SubmitSearch(ctx context.Context, req source.SearchRequest) (string, error) {
	if err := b.record(OpSubmitSearch); err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.jobs == nil {
		b.jobs = make(map[string]*job)
	}
	b.nextJob++
	id := fmt.Sprintf("query-%d", b.nextJob)
	b.jobs[id] = &job{req: req}
	b.searches = append(b.searches, req)
	return id, nil
}

// PollSearch implements source.Backend.
func (b *Backend) PollSearch(ctx context.Context, jobID string) (source.SearchResult, error) {
	if err := b.record(OpPollSearch); err != nil {
		return source.SearchResult{}, err
	}
	b.mu.Lock()
	j, ok := b.jobs[jobID]
	if !ok {
		b.mu.Unlock()
		return source.SearchResult{}, fmt.Errorf("unknown query %s", jobID)
	}
	j.polls++
	pending := j.polls <= b.PendingPolls
	b.mu.Unlock()

	if pending {
		return source.SearchResult{Status: source.SearchPending}, nil
	}
	if b.Search == nil {
		return source.SearchResult{Status: source.SearchComplete}, nil
	}
	rows, err := b.Search(j.req)
	if err != nil {
		return source.SearchResult{}, err
	}
	return source.SearchResult{Status: source.SearchComplete, Rows: rows}, nil
}

// ListSources implements source.Backend.
func (b *Backend) ListSources(ctx context.Context, group, prefix, token string) (source.SourcePage, error) {
	if err := b.record(OpListSources); err != nil {
		return source.SourcePage{}, err
	}
	streams, ok := b.Streams[group]
	if !ok {
		return source.SourcePage{}, fmt.Errorf("%s: %w", group, source.ErrGroupNotFound)
	}

	var matched []source.Descriptor
	for _, s := range streams {
		if strings.HasPrefix(s.ID, prefix) {
			matched = append(matched, s.descriptor())
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	page, next := paginate(len(matched), token, pageSize(b.SourcePageSize))
	return source.SourcePage{Sources: matched[page[0]:page[1]], NextToken: next}, nil
}

// ListEvents implements source.Backend. Events are selected in
// [req.Start, req.End] and end of data is signalled by echoing the token.
func (b *Backend) ListEvents(ctx context.Context, req source.EventsRequest) (source.EventPage, error) {
	if err := b.record(OpListEvents); err != nil {
		return source.EventPage{}, err
	}
	if b.Delay > 0 {
		select {
		case <-time.After(b.Delay):
		case <-ctx.Done():
			return source.EventPage{}, ctx.Err()
		}
	}

	var stream *Stream
	for i := range b.Streams[req.Group] {
		if b.Streams[req.Group][i].ID == req.Source {
			stream = &b.Streams[req.Group][i]
			break
		}
	}
	if stream == nil {
		return source.EventPage{}, fmt.Errorf("stream %s/%s: %w", req.Group, req.Source, source.ErrGroupNotFound)
	}

	var inRange []source.Event
	for _, e := range stream.Events {
		if e.Timestamp.Before(req.Start) || e.Timestamp.After(req.End) {
			continue
		}
		inRange = append(inRange, e)
	}

	offset := 0
	if req.Token != "" {
		n, err := strconv.Atoi(strings.TrimPrefix(req.Token, "f/"))
		if err != nil {
			return source.EventPage{}, fmt.Errorf("bad token %q", req.Token)
		}
		offset = n
	}
	if offset >= len(inRange) && req.Token != "" {
		return source.EventPage{NextToken: req.Token}, nil
	}

	end := min(offset+pageSize(b.PageSize), len(inRange))
	return source.EventPage{
		Events:    append([]source.Event(nil), inRange[offset:end]...),
		NextToken: "f/" + strconv.Itoa(end),
	}, nil
}

// ListGroups implements source.Backend.
func (b *Backend) ListGroups(ctx context.Context, prefix, token string) (source.GroupPage, error) {
	if err := b.record(OpListGroups); err != nil {
		return source.GroupPage{}, err
	}
	var matched []source.GroupInfo
	for _, g := range b.Groups {
		if strings.HasPrefix(g.Name, prefix) {
			matched = append(matched, g)
		}
	}
	page, next := paginate(len(matched), token, pageSize(b.GroupPageSize))
	return source.GroupPage{Groups: matched[page[0]:page[1]], NextToken: next}, nil
}

func (s Stream) descriptor() source.Descriptor {
	d := source.Descriptor{ID: s.ID, FirstEventTime: s.First, LastEventTime: s.Last}
	if d.FirstEventTime.IsZero() && len(s.Events) > 0 {
		d.FirstEventTime = s.Events[0].Timestamp
	}
	if d.LastEventTime.IsZero() && len(s.Events) > 0 {
		d.LastEventTime = s.Events[len(s.Events)-1].Timestamp
	}
	return d
}

// paginate returns the [start, end) bounds for the page named by token and
// the token of the following page ("" when this is the last one).
func paginate(total int, token string, size int) ([2]int, string) {
	start := 0
	if token != "" {
		start, _ = strconv.Atoi(token)
	}
	start = min(start, total)
	end := min(start+size, total)
	next := ""
	if end < total {
		next = strconv.Itoa(end)
	}
	return [2]int{start, end}, next
}

func pageSize(n int) int {
	if n <= 0 {
		return 2
	}
	return n
}

// Row builds a search row with the reserved fields set.
func Row(ts time.Time, message, ptr string) source.Row {
	return source.Row{
		source.FieldTimestamp: ts.UTC().Format(source.SearchTimestampLayout),
		source.FieldMessage:   message,
		source.FieldPtr:       ptr,
	}
}

// Events builds events at the given offsets (in seconds) from base, with
// messages "<prefix><offset>".
func Events(base time.Time, prefix string, offsets ...int) []source.Event {
	events := make([]source.Event, len(offsets))
	for i, off := range offsets {
		events[i] = source.Event{
			Timestamp: base.Add(time.Duration(off) * time.Second),
			Message:   prefix + strconv.Itoa(off),
		}
	}
	return events
}
