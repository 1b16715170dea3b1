// Package insights reads a log group through bounded CloudWatch Logs
// Insights queries. The driver walks the requested range one window at a
// time, re-queries from the last timestamp whenever a result hits the row
// cap, and adapts the window size so queries stay just under the cap.
package insights

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jmurray2011/logweave/internal/logging"
	"github.com/jmurray2011/logweave/internal/source"
)

// DefaultQuery selects every event in ascending time order.
const DefaultQuery = "fields @timestamp, @message, @logStream | sort @timestamp asc"

// Polling defaults for query completion.
const (
	DefaultPollInitial  = 100 * time.Millisecond
	DefaultPollMax      = 2 * time.Second
	DefaultQueryTimeout = 5 * time.Minute
)

// CorrelationQuery returns a query selecting the events of one request.
func CorrelationQuery(requestID string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(requestID)
	return fmt.Sprintf(`fields @timestamp, @message, @logStream | filter @requestId = "%s" | sort @timestamp asc`, escaped)
}

// Stats records the work done by the most recent Stream run.
type Stats struct {
	RunID        string
	Queries      int
	Polls        int // result polls across all queries
	Rows         int // raw rows returned by the backend
	Records      int // records yielded after de-duplication
	DecodeErrors int
	Stalls       int // truncated batches that made no progress
	QueryLatency []time.Duration
	FinalWindow  time.Duration
}

// MeanLatency returns the average query latency, or 0 with no queries.
func (s Stats) MeanLatency() time.Duration {
	if len(s.QueryLatency) == 0 {
		return 0
	}
	var total time.Duration
	for _, l := range s.QueryLatency {
		total += l
	}
	return total / time.Duration(len(s.QueryLatency))
}

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the logger. The default discards output.
func WithLogger(l logging.Logger) Option {
	return func(d *Driver) { d.log = l }
}

// WithWindow sets the initial window size.
func WithWindow(size time.Duration) Option {
	return func(d *Driver) {
		if size > 0 {
			d.window = size
		}
	}
}

// WithDynamic enables or disables adaptive window sizing.
func WithDynamic(dynamic bool) Option {
	return func(d *Driver) { d.sizing.dynamic = dynamic }
}

// WithRowCap overrides the per-query row cap.
func WithRowCap(rowCap int) Option {
	return func(d *Driver) {
		if rowCap > 0 {
			d.sizing.rowCap = rowCap
		}
	}
}

// WithMinWindow sets the smallest size a shrinking window may reach.
func WithMinWindow(size time.Duration) Option {
	return func(d *Driver) { d.sizing.minSize = size }
}

// WithPollBackoff sets the first and the largest delay between completion polls.
func WithPollBackoff(initial, maxDelay time.Duration) Option {
	return func(d *Driver) {
		d.pollInitial = initial
		d.pollMax = max(initial, maxDelay)
	}
}

// WithQueryTimeout bounds how long a single query may take to complete.
func WithQueryTimeout(timeout time.Duration) Option {
	return func(d *Driver) { d.queryTimeout = timeout }
}

// Driver streams records through windowed Insights queries. The window
// size adapts across runs of the same Driver; each run owns its own Window.
// A Driver is safe for concurrent use.
type Driver struct {
	backend source.Backend
	log     logging.Logger
	sizing  sizing

	pollInitial  time.Duration
	pollMax      time.Duration
	queryTimeout time.Duration

	mu     sync.Mutex
	window time.Duration
	stats  Stats
}

// New creates a Driver reading from backend.
func New(backend source.Backend, opts ...Option) *Driver {
	d := &Driver{
		backend: backend,
		log:     logging.NopLogger{},
		sizing: sizing{
			rowCap:  DefaultRowCap,
			dynamic: true,
			minSize: DefaultMinWindow,
		},
		pollInitial:  DefaultPollInitial,
		pollMax:      DefaultPollMax,
		queryTimeout: DefaultQueryTimeout,
		window:       DefaultWindow,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// WindowSize returns the current adapted window size.
func (d *Driver) WindowSize() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.window
}

// Stats returns the statistics of the most recent run.
func (d *Driver) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.stats
	s.QueryLatency = append([]time.Duration(nil), d.stats.QueryLatency...)
	return s
}

// StreamByCorrelation streams the events of one request id in [from, to).
// The filter runs server side.
func (d *Driver) StreamByCorrelation(ctx context.Context, group, requestID string, from, to time.Time) iter.Seq2[source.Record, error] {
	return d.Query(ctx, group, CorrelationQuery(requestID), from, to)
}

// Stream streams every event of group in [from, to).
func (d *Driver) Stream(ctx context.Context, group string, from, to time.Time) iter.Seq2[source.Record, error] {
	return d.Query(ctx, group, DefaultQuery, from, to)
}

// Query runs query over [from, to) one window at a time and yields the
// records in timestamp order. A backend error is yielded once and ends the
// sequence. The query must sort by @timestamp ascending.
func (d *Driver) Query(ctx context.Context, group, query string, from, to time.Time) iter.Seq2[source.Record, error] {
	return func(yield func(source.Record, error) bool) {
		runID := uuid.NewString()
		log := d.log.WithFields(map[string]interface{}{
			"run":   runID,
			"group": group,
		})
		stats := Stats{RunID: runID}
		defer func() {
			d.mu.Lock()
			stats.FinalWindow = d.window
			d.stats = stats
			d.mu.Unlock()
		}()

		w := Window{Start: from, Size: d.WindowSize()}
		var lastKey string

		for w.Start.Before(to) {
			if err := ctx.Err(); err != nil {
				yield(source.Record{}, err)
				return
			}

			w.End = w.Start.Add(w.Size)
			if w.End.After(to) {
				w.End = to
			}

			began := time.Now()
			rows, polls, err := d.run(ctx, source.SearchRequest{
				Group: group,
				Query: query,
				Start: w.Start,
				End:   w.End,
				Limit: d.sizing.rowCap,
			})
			if err != nil {
				yield(source.Record{}, err)
				return
			}
			stats.Queries++
			stats.Polls += polls
			stats.Rows += len(rows)
			stats.QueryLatency = append(stats.QueryLatency, time.Since(began))

			records, decodeErr := decodeRows(rows)
			if decodeErr != nil {
				stats.DecodeErrors++
				log.Warn("window [%s, %s): %v; keeping window size %s",
					w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339), decodeErr, w.Size)
			}

			b := batch{rows: len(rows), decoded: len(records), decodeErr: decodeErr != nil}
			if len(records) > 0 {
				b.first = records[0].Timestamp
				b.last = records[len(records)-1].Timestamp
			}

			for _, rec := range dropThrough(records, lastKey) {
				lastKey = rec.DedupKey()
				// searches cover whole seconds, wider than [from, to)
				if rec.Timestamp.Before(from) || !rec.Timestamp.Before(to) {
					continue
				}
				if !yield(rec, nil) {
					return
				}
				stats.Records++
			}

			prevSize := w.Size
			if w.advance(b, d.sizing) {
				stats.Stalls++
				log.Warn("%d rows at or before %s; skipping ahead to %s",
					b.rows, b.last.Format(time.RFC3339Nano), w.Start.Format(time.RFC3339))
			}
			if w.Size != prevSize {
				d.mu.Lock()
				d.window = w.Size
				d.mu.Unlock()
			}

			log.Debug("query rows=%d window=%s next=%s start=%s",
				b.rows, prevSize, w.Size, w.Start.Format(time.RFC3339Nano))
		}
	}
}

// run submits one search and waits for it to complete.
func (d *Driver) run(ctx context.Context, req source.SearchRequest) ([]source.Row, int, error) {
	jobID, err := d.backend.SubmitSearch(ctx, req)
	if err != nil {
		return nil, 0, fmt.Errorf("start query on %s: %w", req.Group, err)
	}
	return d.await(ctx, jobID)
}

// await polls a search job with capped exponential backoff until it
// completes, fails, or the query timeout elapses. It also returns the
// number of polls issued.
func (d *Driver) await(ctx context.Context, jobID string) ([]source.Row, int, error) {
	if d.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.queryTimeout)
		defer cancel()
	}

	delay := d.pollInitial
	for polls := 1; ; polls++ {
		res, err := d.backend.PollSearch(ctx, jobID)
		if err != nil {
			return nil, polls, fmt.Errorf("get results of query %s: %w", jobID, err)
		}

		switch res.Status {
		case source.SearchComplete:
			return res.Rows, polls, nil
		case source.SearchFailed, source.SearchCancelled, source.SearchTimedOut:
			return nil, polls, fmt.Errorf("query %s %s", jobID, res.Status)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, polls, fmt.Errorf("query %s did not complete: %w", jobID, ctx.Err())
		case <-timer.C:
		}
		delay = min(delay*2, d.pollMax)
	}
}
