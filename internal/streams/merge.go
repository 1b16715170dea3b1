package streams

import (
	"context"
	"iter"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jmurray2011/logweave/internal/source"
)

// Merge emits the events of cursors in [from, to) in non-decreasing
// timestamp order. Each window [start, end] is drained across all cursors
// whose span overlaps it before its events are sorted and emitted, so at
// most one window of events is buffered. Events with equal timestamps
// keep the order in which they were read. A backend error is yielded once
// and ends the sequence.
//
// The cursors must not be shared with another merge.
func (d *Driver) Merge(ctx context.Context, cursors []*Cursor, from, to time.Time, window time.Duration) iter.Seq2[source.Record, error] {
	return func(yield func(source.Record, error) bool) {
		stats, log := d.newRun(cursors)
		defer d.finishRun(stats, cursors)

		if window <= 0 {
			window = d.window
		}

		start, end := from, from.Add(window)
		active := activeIn(cursors, start, end)
		var pending []source.Record

		for start.Before(to) {
			if err := ctx.Err(); err != nil {
				yield(source.Record{}, err)
				return
			}
			if len(pending) == 0 && !anyRemaining(cursors, start, to) {
				log.Debug("all streams drained at %s", start.Format(time.RFC3339))
				return
			}

			picks, err := d.round(ctx, active, end, true)
			if err != nil {
				yield(source.Record{}, err)
				return
			}
			stats.Rounds++

			progressed := false
			for _, p := range picks {
				if !p.ok {
					continue
				}
				progressed = true
				if p.rec.Timestamp.Before(from) || !p.rec.Timestamp.Before(to) {
					continue
				}
				pending = append(pending, p.rec)
			}
			stats.PeakBuffered = max(stats.PeakBuffered, len(pending))

			// Keep draining this window until no cursor has anything left in it.
			if progressed {
				continue
			}

			sort.SliceStable(pending, func(i, j int) bool {
				return pending[i].Timestamp.Before(pending[j].Timestamp)
			})
			for _, rec := range pending {
				if !yield(rec, nil) {
					return
				}
				stats.Records++
			}
			pending = pending[:0]

			start, end = end, end.Add(window)
			active = activeIn(cursors, start, end)
		}
	}
}

// LocateAndFollow reads all cursors in lockstep, without a time bound,
// until an event mentions marker. The stream holding the earliest such
// event is then followed to its end and only events mentioning marker are
// yielded; every other cursor is abandoned.
func (d *Driver) LocateAndFollow(ctx context.Context, cursors []*Cursor, marker string) iter.Seq2[source.Record, error] {
	return func(yield func(source.Record, error) bool) {
		stats, log := d.newRun(cursors)
		defer d.finishRun(stats, cursors)

		var follow *Cursor
		for follow == nil {
			if err := ctx.Err(); err != nil {
				yield(source.Record{}, err)
				return
			}

			live := make([]*Cursor, 0, len(cursors))
			for _, c := range cursors {
				if !c.Exhausted() {
					live = append(live, c)
				}
			}
			if len(live) == 0 {
				return
			}

			picks, err := d.round(ctx, live, time.Time{}, false)
			if err != nil {
				yield(source.Record{}, err)
				return
			}
			stats.Rounds++

			progressed := false
			found := -1
			for i, p := range picks {
				if !p.ok {
					continue
				}
				progressed = true
				if !strings.Contains(p.rec.Message, marker) {
					continue
				}
				if found < 0 || p.rec.Timestamp.Before(picks[found].rec.Timestamp) {
					found = i
				}
			}
			if !progressed {
				return
			}
			if found >= 0 {
				follow = live[found]
				log.Debug("found %q in stream %s", marker, follow.ID())
				if !yield(picks[found].rec, nil) {
					return
				}
				stats.Records++
			}
		}

		for {
			rec, ok, err := follow.Next(ctx)
			if err != nil {
				yield(source.Record{}, err)
				return
			}
			if !ok {
				return
			}
			if !strings.Contains(rec.Message, marker) {
				continue
			}
			if !yield(rec, nil) {
				return
			}
			stats.Records++
		}
	}
}

// pick is the outcome of one cursor in a round.
type pick struct {
	rec source.Record
	ok  bool
}

// round asks every cursor for its next event (bounded by until when
// bounded is set) and waits for all of them. Cursors that can answer from
// their buffer are served inline; the rest fetch concurrently.
func (d *Driver) round(ctx context.Context, cursors []*Cursor, until time.Time, bounded bool) ([]pick, error) {
	picks := make([]pick, len(cursors))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)

	for i, c := range cursors {
		if c.buffered() {
			rec, ok, err := c.take(ctx, until, bounded)
			if err != nil {
				// let fetches already started finish before returning
				_ = g.Wait()
				return nil, err
			}
			picks[i] = pick{rec: rec, ok: ok}
			continue
		}
		g.Go(func() error {
			rec, ok, err := c.take(gctx, until, bounded)
			if err != nil {
				return err
			}
			picks[i] = pick{rec: rec, ok: ok}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return picks, nil
}

// activeIn returns the cursors that are not exhausted and whose span
// overlaps [start, end], ordered by first event time.
func activeIn(cursors []*Cursor, start, end time.Time) []*Cursor {
	var active []*Cursor
	for _, c := range cursors {
		if !c.Exhausted() && c.desc.Overlaps(start, end) {
			active = append(active, c)
		}
	}
	sortByFirstEvent(active)
	return active
}

// anyRemaining reports whether some cursor may still hold events in [start, to].
func anyRemaining(cursors []*Cursor, start, to time.Time) bool {
	for _, c := range cursors {
		if !c.Exhausted() && c.desc.Overlaps(start, to) {
			return true
		}
	}
	return false
}
