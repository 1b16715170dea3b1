// Package logclient is the entry point for reading logs. It picks a
// retrieval driver per log category from the configuration and resolves
// group names and aliases before streaming.
package logclient

import (
	"context"
	"fmt"
	"iter"
	"sort"
	"strings"
	"sync"
	"time"

	apperrors "github.com/jmurray2011/logweave/internal/errors"
	"github.com/jmurray2011/logweave/internal/insights"
	"github.com/jmurray2011/logweave/internal/logging"
	"github.com/jmurray2011/logweave/internal/source"
	"github.com/jmurray2011/logweave/internal/streams"
)

// Driver streams the records of a log group over a time range. Ranges are
// half-open: a record at from is included and a record at to is not.
// Sequences are in non-decreasing timestamp order and end at to.
type Driver interface {
	Stream(ctx context.Context, group string, from, to time.Time) iter.Seq2[source.Record, error]
	StreamByCorrelation(ctx context.Context, group, requestID string, from, to time.Time) iter.Seq2[source.Record, error]
}

var (
	_ Driver = (*insights.Driver)(nil)
	_ Driver = (*streams.Driver)(nil)
)

// Category selects which configured driver serves a request.
type Category string

const (
	CategoryGroup Category = "group"
	CategoryTask  Category = "task"
)

// RunStats summarizes the most recent completed run of a Client.
type RunStats struct {
	Driver           string
	Group            string
	Queries          int
	MeanQueryLatency time.Duration
	BackendCalls     int
	Records          int
	PeakBuffered     int
	Stalls           int
	DecodeErrors     int
	Started          time.Time
	Duration         time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger handed to the drivers.
func WithLogger(l logging.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithDriver overrides the driver for a category.
func WithDriver(cat Category, d Driver) Option {
	return func(c *Client) { c.drivers[cat] = d }
}

// Client reads logs through the driver configured for each category.
type Client struct {
	backend source.Backend
	cfg     *source.Config
	log     logging.Logger
	drivers map[Category]Driver

	mu   sync.Mutex
	last RunStats
}

// New creates a Client over backend. A nil cfg means source.DefaultConfig().
func New(backend source.Backend, cfg *source.Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		cfg = source.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		backend: backend,
		cfg:     cfg,
		log:     logging.NopLogger{},
		drivers: make(map[Category]Driver),
	}
	for _, opt := range opts {
		opt(c)
	}

	for cat, dc := range map[Category]source.DriverConfig{
		CategoryGroup: cfg.GroupDriver,
		CategoryTask:  cfg.TaskDriver,
	} {
		if _, ok := c.drivers[cat]; ok {
			continue
		}
		c.drivers[cat] = newDriver(backend, dc, c.log.WithField("category", string(cat)))
	}
	return c, nil
}

func newDriver(backend source.Backend, dc source.DriverConfig, log logging.Logger) Driver {
	window := time.Duration(dc.Window)
	if dc.Driver == source.DriverInsights {
		return insights.New(backend,
			insights.WithLogger(log),
			insights.WithWindow(window),
			insights.WithDynamic(dc.IsDynamic()),
		)
	}
	return streams.New(backend,
		streams.WithLogger(log),
		streams.WithWindow(window),
		streams.WithDayPrefix(dc.DayPrefix),
	)
}

// Driver returns the driver serving cat.
func (c *Client) Driver(cat Category) Driver {
	return c.drivers[cat]
}

// Config returns the configuration the client was built with.
func (c *Client) Config() *source.Config {
	return c.cfg
}

// GroupLogs streams every record of a named log group in [from, to).
func (c *Client) GroupLogs(ctx context.Context, group string, from, to time.Time) iter.Seq2[source.Record, error] {
	d := c.drivers[CategoryGroup]
	return c.track(d, group, d.Stream(ctx, group, from, to))
}

// TaskLogs streams every record of a task's log group in [from, to).
func (c *Client) TaskLogs(ctx context.Context, task string, from, to time.Time) iter.Seq2[source.Record, error] {
	group := c.cfg.TaskGroup(task)
	d := c.drivers[CategoryTask]
	return c.track(d, group, d.Stream(ctx, group, from, to))
}

// TaskExecutionLogs streams the records of one execution of a task.
func (c *Client) TaskExecutionLogs(ctx context.Context, task, executionID string, from, to time.Time) iter.Seq2[source.Record, error] {
	group := c.cfg.TaskGroup(task)
	d := c.drivers[CategoryTask]
	return c.track(d, group, d.StreamByCorrelation(ctx, group, executionID, from, to))
}

// LastRun returns the statistics of the most recently finished sequence.
func (c *Client) LastRun() RunStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// track records run statistics once seq ends, however it ends.
func (c *Client) track(d Driver, group string, seq iter.Seq2[source.Record, error]) iter.Seq2[source.Record, error] {
	return func(yield func(source.Record, error) bool) {
		started := time.Now()
		defer func() {
			stats := statsOf(d)
			stats.Group = group
			stats.Started = started
			stats.Duration = time.Since(started)
			c.mu.Lock()
			c.last = stats
			c.mu.Unlock()
		}()
		for rec, err := range seq {
			if !yield(rec, err) {
				return
			}
		}
	}
}

func statsOf(d Driver) RunStats {
	switch d := d.(type) {
	case *insights.Driver:
		s := d.Stats()
		return RunStats{
			Driver:           source.DriverInsights,
			Queries:          s.Queries,
			MeanQueryLatency: s.MeanLatency(),
			BackendCalls:     s.Queries + s.Polls,
			Records:          s.Records,
			Stalls:           s.Stalls,
			DecodeErrors:     s.DecodeErrors,
		}
	case *streams.Driver:
		s := d.Stats()
		return RunStats{
			Driver:       source.DriverStreams,
			BackendCalls: s.Calls,
			Records:      s.Records,
			PeakBuffered: s.PeakBuffered,
		}
	}
	return RunStats{}
}

// Groups lists log groups whose name starts with prefix, following every
// page. A positive limit stops the listing once that many are collected.
func (c *Client) Groups(ctx context.Context, prefix string, limit int) ([]source.GroupInfo, error) {
	var groups []source.GroupInfo
	token := ""
	for {
		page, err := c.backend.ListGroups(ctx, prefix, token)
		if err != nil {
			return nil, fmt.Errorf("list log groups: %w", err)
		}
		groups = append(groups, page.Groups...)
		if limit > 0 && len(groups) >= limit {
			return groups[:limit], nil
		}
		if page.NextToken == "" || page.NextToken == token {
			return groups, nil
		}
		token = page.NextToken
	}
}

// ResolveGroup maps a user-supplied name to a log group. An @alias is
// looked up in the configuration. Otherwise an exact match wins, then the
// first group (by name) containing name. Failures carry close matches.
func (c *Client) ResolveGroup(ctx context.Context, name string) (string, error) {
	if strings.HasPrefix(name, "@") {
		group, ok := c.cfg.ResolveGroup(name)
		if !ok {
			return "", apperrors.AliasNotFoundError(name, c.cfg.Aliases())
		}
		return group, nil
	}

	groups, err := c.Groups(ctx, "", 0)
	if err != nil {
		return "", err
	}
	names := make([]string, len(groups))
	for i, g := range groups {
		names[i] = g.Name
	}
	sort.Strings(names)

	for _, n := range names {
		if n == name {
			return n, nil
		}
	}
	for _, n := range names {
		if strings.Contains(n, name) {
			c.log.Debug("resolved %q to %s", name, n)
			return n, nil
		}
	}
	return "", apperrors.GroupNotFoundError(name, names)
}
