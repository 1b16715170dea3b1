package insights

import (
	"time"
)

const (
	// DefaultRowCap is the maximum number of rows a Logs Insights query returns.
	DefaultRowCap = 10000

	// DefaultWindow is the initial query window.
	DefaultWindow = time.Hour

	// DefaultMinWindow is the smallest size a truncated window shrinks to.
	DefaultMinWindow = time.Second

	// shrinkRatio: a truncated batch spanning less than this fraction of
	// the window shrinks it.
	shrinkRatio = 0.9

	// underfullRatio: batches below this fraction of the cap grow the window.
	underfullRatio = 0.8
)

// Window is the live query window of one Stream run. End never exceeds the
// requested range end.
type Window struct {
	Start time.Time
	End   time.Time
	Size  time.Duration
}

// batch summarizes one query result for the resize decision.
type batch struct {
	rows      int       // raw rows returned, before de-duplication
	first     time.Time // earliest decoded timestamp
	last      time.Time // latest decoded timestamp
	decoded   int       // rows that decoded into records
	decodeErr bool
}

// sizing holds the knobs that drive window adaptation.
type sizing struct {
	rowCap  int
	dynamic bool
	minSize time.Duration
}

func (s sizing) truncated(b batch) bool {
	return b.rows >= s.rowCap
}

func (s sizing) underfull(b batch) bool {
	return float64(b.rows) < underfullRatio*float64(s.rowCap)
}

// advance moves w past the batch it just queried and, in dynamic mode,
// resizes it. It reports whether the start had to be nudged forward because
// a truncated batch made no progress.
func (w *Window) advance(b batch, s sizing) (stalled bool) {
	switch {
	case b.rows == 0:
		w.Start = w.Start.Add(w.Size)
		return false

	case b.decodeErr || b.decoded == 0:
		// Timestamps are unreliable; keep the size and only move forward.
		if s.truncated(b) && b.decoded > 0 {
			return w.resumeFrom(b.last)
		}
		w.Start = w.Start.Add(w.Size)
		return false

	case s.truncated(b):
		if s.dynamic {
			span := b.last.Sub(b.first)
			if float64(span) < shrinkRatio*float64(w.Size) {
				w.Size -= (w.Size - span) / 2
				w.Size = max(w.Size, s.minSize)
			}
		}
		return w.resumeFrom(b.last)

	case s.dynamic && s.underfull(b):
		w.Start = w.Start.Add(w.Size)
		n := float64(b.rows)
		limit := float64(s.rowCap)
		w.Size = time.Duration(float64(w.Size) * limit / (n + (limit-n)/2))
		return false

	default:
		w.Start = w.Start.Add(w.Size)
		return false
	}
}

// resumeFrom restarts the window at the last returned timestamp so the
// unread remainder is queried again. A full batch that ends at or before
// the window start would repeat forever. Searches start on a whole second,
// so the start then moves to the next second.
func (w *Window) resumeFrom(last time.Time) bool {
	if !last.After(w.Start) {
		w.Start = w.Start.Truncate(time.Second).Add(time.Second)
		return true
	}
	w.Start = last
	return false
}
