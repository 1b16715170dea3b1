// Package streams reads a log group by merging its individual log streams.
// Streams overlapping the requested range are discovered up front and
// wrapped in cursors; a sliding-window k-way merge then emits their events
// in global timestamp order while buffering at most one window of events.
package streams

import (
	"context"
	"fmt"
	"iter"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jmurray2011/logweave/internal/logging"
	"github.com/jmurray2011/logweave/internal/source"
	"github.com/jmurray2011/logweave/pkg/lru"
	"github.com/jmurray2011/logweave/pkg/timeutil"
)

const (
	// DefaultWindow is the merge window.
	DefaultWindow = time.Hour

	// DefaultConcurrency bounds parallel stream reads within one merge round.
	DefaultConcurrency = 16

	// DefaultSeenCapacity bounds the stream ids remembered during discovery.
	DefaultSeenCapacity = 10000
)

// Stats records the work done by the most recent run.
type Stats struct {
	RunID        string
	Sources      int // cursors created by discovery
	Calls        int // ListEvents requests across all cursors
	Rounds       int // merge rounds
	Records      int // records yielded
	PeakBuffered int // largest number of records held for one window
}

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the logger. The default discards output.
func WithLogger(l logging.Logger) Option {
	return func(d *Driver) { d.log = l }
}

// WithWindow sets the merge window.
func WithWindow(size time.Duration) Option {
	return func(d *Driver) {
		if size > 0 {
			d.window = size
		}
	}
}

// WithDayPrefix lists streams once per calendar day using a yyyy/MM/dd name
// prefix, for groups whose stream names start with their creation date.
func WithDayPrefix(byDay bool) Option {
	return func(d *Driver) { d.byDay = byDay }
}

// WithConcurrency bounds how many cursors fetch pages at the same time.
func WithConcurrency(n int) Option {
	return func(d *Driver) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

// WithSeenCapacity bounds the stream ids remembered while de-duplicating
// discovery listings.
func WithSeenCapacity(n int) Option {
	return func(d *Driver) { d.seenCapacity = n }
}

// Driver streams records by merging the log streams of a group.
// It is safe for concurrent use; each run owns its cursors.
type Driver struct {
	backend      source.Backend
	log          logging.Logger
	window       time.Duration
	byDay        bool
	concurrency  int
	seenCapacity int

	mu    sync.Mutex
	stats Stats
}

// New creates a Driver reading from backend.
func New(backend source.Backend, opts ...Option) *Driver {
	d := &Driver{
		backend:      backend,
		log:          logging.NopLogger{},
		window:       DefaultWindow,
		concurrency:  DefaultConcurrency,
		seenCapacity: DefaultSeenCapacity,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Window returns the merge window.
func (d *Driver) Window() time.Duration { return d.window }

// Stats returns the statistics of the most recent run.
func (d *Driver) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// Discover lists the streams of group whose event span overlaps
// [from, to] and returns a cold cursor for each, ordered by first event
// time. With byDay set, one listing per UTC day in the range is issued
// with a yyyy/MM/dd prefix. Streams without recorded event times are skipped.
func (d *Driver) Discover(ctx context.Context, group string, from, to time.Time, byDay bool) ([]*Cursor, error) {
	prefixes := []string{""}
	if byDay {
		prefixes = timeutil.DayPrefixes(from, to)
	}

	seen := lru.New[string](d.seenCapacity)
	var cursors []*Cursor

	for _, prefix := range prefixes {
		token := ""
		for {
			page, err := d.backend.ListSources(ctx, group, prefix, token)
			if err != nil {
				return nil, fmt.Errorf("list streams of %s: %w", group, err)
			}

			for _, desc := range page.Sources {
				if desc.FirstEventTime.IsZero() || desc.LastEventTime.IsZero() {
					continue
				}
				if !desc.Overlaps(from, to) {
					continue
				}
				if seen.Contains(desc.ID) {
					continue
				}
				seen.Add(desc.ID)
				cursors = append(cursors, NewCursor(d.backend, group, desc, from, to))
			}

			if page.NextToken == "" || page.NextToken == token {
				break
			}
			token = page.NextToken
		}
	}

	sortByFirstEvent(cursors)
	return cursors, nil
}

// Stream merges the events of every stream of group in [from, to).
func (d *Driver) Stream(ctx context.Context, group string, from, to time.Time) iter.Seq2[source.Record, error] {
	return func(yield func(source.Record, error) bool) {
		cursors, err := d.Discover(ctx, group, from, to, d.byDay)
		if err != nil {
			yield(source.Record{}, err)
			return
		}
		d.log.Debug("merging %d streams of %s", len(cursors), group)
		for rec, err := range d.Merge(ctx, cursors, from, to, d.window) {
			if !yield(rec, err) || err != nil {
				return
			}
		}
	}
}

// StreamByCorrelation finds the stream carrying requestID among the
// streams of group active in [from, to) and follows it, yielding only the
// lines that mention requestID before to.
func (d *Driver) StreamByCorrelation(ctx context.Context, group, requestID string, from, to time.Time) iter.Seq2[source.Record, error] {
	return func(yield func(source.Record, error) bool) {
		cursors, err := d.Discover(ctx, group, from, to, true)
		if err != nil {
			yield(source.Record{}, err)
			return
		}
		for rec, err := range d.LocateAndFollow(ctx, cursors, requestID) {
			if err == nil && !rec.Timestamp.Before(to) {
				return
			}
			if !yield(rec, err) || err != nil {
				return
			}
		}
	}
}

// newRun starts statistics for a run and returns a logger tagged with it.
func (d *Driver) newRun(cursors []*Cursor) (*Stats, logging.Logger) {
	stats := &Stats{RunID: uuid.NewString(), Sources: len(cursors)}
	return stats, d.log.WithField("run", stats.RunID)
}

// finishRun publishes the statistics of a run.
func (d *Driver) finishRun(stats *Stats, cursors []*Cursor) {
	for _, c := range cursors {
		stats.Calls += c.Calls()
	}
	d.mu.Lock()
	d.stats = *stats
	d.mu.Unlock()
}

func sortByFirstEvent(cursors []*Cursor) {
	sort.SliceStable(cursors, func(i, j int) bool {
		return cursors[i].desc.FirstEventTime.Before(cursors[j].desc.FirstEventTime)
	})
}
