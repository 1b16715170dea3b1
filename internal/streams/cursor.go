package streams

import (
	"context"
	"fmt"
	"time"

	"github.com/jmurray2011/logweave/internal/source"
)

// Cursor reads one log stream forward, one event at a time. It fetches
// pages lazily, holds at most one event it has read but not handed out,
// and once the backend signals the end of the stream it stays exhausted
// without further calls. A Cursor is owned by a single merge.
type Cursor struct {
	backend    source.Backend
	group      string
	desc       source.Descriptor
	start, end time.Time

	page     []source.Event
	idx      int
	token    string
	fetched  bool // at least one page requested
	lastPage bool // the current page is the final one

	held    source.Event
	hasHeld bool

	exhausted bool
	calls     int
}

// NewCursor creates a cold cursor over the events of desc in [start, end].
func NewCursor(backend source.Backend, group string, desc source.Descriptor, start, end time.Time) *Cursor {
	return &Cursor{
		backend: backend,
		group:   group,
		desc:    desc,
		start:   start,
		end:     end,
	}
}

// ID returns the stream name.
func (c *Cursor) ID() string { return c.desc.ID }

// Span returns the first and last event times of the stream as listed.
func (c *Cursor) Span() (first, last time.Time) {
	return c.desc.FirstEventTime, c.desc.LastEventTime
}

// Exhausted reports whether the stream has no more events.
func (c *Cursor) Exhausted() bool { return c.exhausted }

// Calls returns the number of backend requests the cursor has issued.
func (c *Cursor) Calls() int { return c.calls }

// NextAtOrBefore returns the next event if its timestamp is not after until.
// A later event is kept for a following call and ok is false. Returning a
// record consumes it.
func (c *Cursor) NextAtOrBefore(ctx context.Context, until time.Time) (rec source.Record, ok bool, err error) {
	return c.take(ctx, until, true)
}

// Next returns the next event regardless of its timestamp.
func (c *Cursor) Next(ctx context.Context) (rec source.Record, ok bool, err error) {
	return c.take(ctx, time.Time{}, false)
}

// buffered reports whether the next take can be answered without a
// backend call.
func (c *Cursor) buffered() bool {
	return c.exhausted || c.hasHeld || c.idx < len(c.page) || (c.fetched && c.lastPage)
}

func (c *Cursor) take(ctx context.Context, until time.Time, bounded bool) (source.Record, bool, error) {
	if c.exhausted {
		return source.Record{}, false, nil
	}
	if !c.hasHeld {
		ev, ok, err := c.pull(ctx)
		if err != nil {
			return source.Record{}, false, err
		}
		if !ok {
			c.exhausted = true
			c.page = nil
			return source.Record{}, false, nil
		}
		c.held, c.hasHeld = ev, true
	}

	if bounded && c.held.Timestamp.After(until) {
		return source.Record{}, false, nil
	}

	ev := c.held
	c.held, c.hasHeld = source.Event{}, false
	return source.Record{
		Timestamp: ev.Timestamp,
		Message:   ev.Message,
		Context:   map[string]string{source.FieldLogStream: c.desc.ID},
	}, true, nil
}

// pull returns the next event of the stream, fetching pages as needed.
func (c *Cursor) pull(ctx context.Context) (source.Event, bool, error) {
	for c.idx >= len(c.page) {
		if c.lastPage {
			return source.Event{}, false, nil
		}

		page, err := c.backend.ListEvents(ctx, source.EventsRequest{
			Group:  c.group,
			Source: c.desc.ID,
			Start:  c.start,
			End:    c.end,
			Token:  c.token,
		})
		c.calls++
		if err != nil {
			return source.Event{}, false, fmt.Errorf("read stream %s: %w", c.desc.ID, err)
		}

		// GetLogEvents hands back the token it was given once the stream is drained.
		if page.NextToken == "" || (c.fetched && page.NextToken == c.token) {
			c.lastPage = true
		}
		c.token = page.NextToken
		c.fetched = true
		c.page, c.idx = page.Events, 0
	}

	ev := c.page[c.idx]
	c.idx++
	return ev, true, nil
}
