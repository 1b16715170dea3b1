// Package source defines the log backend contract and the record types
// shared by the retrieval drivers.
package source

import (
	"context"
	"errors"
)

// ErrGroupNotFound is returned when the requested log group does not exist.
var ErrGroupNotFound = errors.New("log group not found")

// Backend is the remote query and pagination service the drivers read from.
// Implementations must be safe for concurrent use; they hold no per-call
// state beyond what is passed in.
type Backend interface {
	// SubmitSearch starts an asynchronous bounded time-range search and
	// returns its job id.
	SubmitSearch(ctx context.Context, req SearchRequest) (string, error)

	// PollSearch returns the current state of a search job.
	PollSearch(ctx context.Context, jobID string) (SearchResult, error)

	// ListSources returns one page of sources in a group whose id starts
	// with prefix (empty prefix matches all).
	ListSources(ctx context.Context, group, prefix, token string) (SourcePage, error)

	// ListEvents returns one page of time-ordered events for one source.
	ListEvents(ctx context.Context, req EventsRequest) (EventPage, error)

	// ListGroups returns one page of log groups whose name starts with prefix.
	ListGroups(ctx context.Context, prefix, token string) (GroupPage, error)
}
