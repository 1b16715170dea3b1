package cloudwatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/aws/smithy-go"
	"golang.org/x/time/rate"

	"github.com/jmurray2011/logweave/internal/logging"
	"github.com/jmurray2011/logweave/internal/source"
)

// DefaultRequestsPerSecond paces calls below the CloudWatch Logs per-account
// quota for the read APIs (GetLogEvents is 10/s, DescribeLogStreams 25/s).
const DefaultRequestsPerSecond = 5

// LogsAPI is the subset of *cloudwatchlogs.Client used by Backend.
type LogsAPI interface {
	StartQuery(ctx context.Context, in *cloudwatchlogs.StartQueryInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.StartQueryOutput, error)
	GetQueryResults(ctx context.Context, in *cloudwatchlogs.GetQueryResultsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.GetQueryResultsOutput, error)
	DescribeLogStreams(ctx context.Context, in *cloudwatchlogs.DescribeLogStreamsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DescribeLogStreamsOutput, error)
	GetLogEvents(ctx context.Context, in *cloudwatchlogs.GetLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.GetLogEventsOutput, error)
	DescribeLogGroups(ctx context.Context, in *cloudwatchlogs.DescribeLogGroupsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DescribeLogGroupsOutput, error)
}

// BackendError is a failed CloudWatch Logs API call.
type BackendError struct {
	Op      string
	Code    string
	Message string
	Err     error
}

func (e *BackendError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, e.Message)
}

func (e *BackendError) Unwrap() error { return e.Err }

// Throttled reports whether the call was rejected by a rate limit.
func (e *BackendError) Throttled() bool {
	switch e.Code {
	case "ThrottlingException", "LimitExceededException", "TooManyRequestsException":
		return true
	}
	return false
}

// Backend implements source.Backend on CloudWatch Logs. Calls are paced by
// a shared token bucket; otherwise it holds no mutable state.
type Backend struct {
	api     LogsAPI
	limiter *rate.Limiter
	log     logging.Logger
}

var _ source.Backend = (*Backend)(nil)

// BackendOption configures a Backend.
type BackendOption func(*Backend)

// WithRequestsPerSecond sets the request pacing. Zero or less disables it.
func WithRequestsPerSecond(rps float64) BackendOption {
	return func(b *Backend) {
		if rps <= 0 {
			b.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		b.limiter = rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
	}
}

// WithBackendLogger sets the logger used for request tracing.
func WithBackendLogger(l logging.Logger) BackendOption {
	return func(b *Backend) { b.log = l }
}

// NewBackend creates a Backend calling api.
func NewBackend(api LogsAPI, opts ...BackendOption) *Backend {
	b := &Backend{
		api: api,
		log: logging.NopLogger{},
	}
	WithRequestsPerSecond(DefaultRequestsPerSecond)(b)
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Backend) wait(ctx context.Context) error {
	return b.limiter.Wait(ctx)
}

// SubmitSearch starts a Logs Insights query. Insights takes whole seconds,
// so the range is widened to the enclosing seconds; callers de-duplicate.
func (b *Backend) SubmitSearch(ctx context.Context, req source.SearchRequest) (string, error) {
	if err := b.wait(ctx); err != nil {
		return "", err
	}

	start := req.Start.Unix()
	end := req.End.Unix()
	if req.End.Nanosecond() > 0 {
		end++
	}
	if end <= start {
		end = start + 1
	}

	input := &cloudwatchlogs.StartQueryInput{
		LogGroupName: aws.String(req.Group),
		StartTime:    aws.Int64(start),
		EndTime:      aws.Int64(end),
		QueryString:  aws.String(req.Query),
	}
	if req.Limit > 0 {
		input.Limit = aws.Int32(int32(req.Limit))
	}

	out, err := b.api.StartQuery(ctx, input)
	if err != nil {
		return "", classify("StartQuery", err)
	}
	if out.QueryId == nil {
		return "", fmt.Errorf("StartQuery: no query id returned")
	}

	b.log.Debug("started query %s on %s [%d, %d]", *out.QueryId, req.Group, start, end)
	return *out.QueryId, nil
}

// PollSearch fetches the state of a query and, once complete, its rows.
func (b *Backend) PollSearch(ctx context.Context, jobID string) (source.SearchResult, error) {
	if err := b.wait(ctx); err != nil {
		return source.SearchResult{}, err
	}

	out, err := b.api.GetQueryResults(ctx, &cloudwatchlogs.GetQueryResultsInput{
		QueryId: aws.String(jobID),
	})
	if err != nil {
		return source.SearchResult{}, classify("GetQueryResults", err)
	}

	switch out.Status {
	case types.QueryStatusComplete:
		return source.SearchResult{Status: source.SearchComplete, Rows: convertRows(out.Results)}, nil
	case types.QueryStatusFailed:
		return source.SearchResult{Status: source.SearchFailed}, nil
	case types.QueryStatusCancelled:
		return source.SearchResult{Status: source.SearchCancelled}, nil
	case types.QueryStatusTimeout:
		return source.SearchResult{Status: source.SearchTimedOut}, nil
	default:
		// Scheduled, Running, Unknown
		return source.SearchResult{Status: source.SearchPending}, nil
	}
}

func convertRows(results [][]types.ResultField) []source.Row {
	rows := make([]source.Row, 0, len(results))
	for _, fields := range results {
		row := make(source.Row, len(fields))
		for _, f := range fields {
			if f.Field == nil || f.Value == nil {
				continue
			}
			row[*f.Field] = *f.Value
		}
		rows = append(rows, row)
	}
	return rows
}

// ListSources returns one page of log streams whose name starts with prefix.
func (b *Backend) ListSources(ctx context.Context, group, prefix, token string) (source.SourcePage, error) {
	if err := b.wait(ctx); err != nil {
		return source.SourcePage{}, err
	}

	input := &cloudwatchlogs.DescribeLogStreamsInput{
		LogGroupName: aws.String(group),
		OrderBy:      types.OrderByLogStreamName,
	}
	if prefix != "" {
		input.LogStreamNamePrefix = aws.String(prefix)
	}
	if token != "" {
		input.NextToken = aws.String(token)
	}

	out, err := b.api.DescribeLogStreams(ctx, input)
	if err != nil {
		return source.SourcePage{}, classify("DescribeLogStreams", err)
	}

	page := source.SourcePage{
		Sources:   make([]source.Descriptor, 0, len(out.LogStreams)),
		NextToken: aws.ToString(out.NextToken),
	}
	for _, s := range out.LogStreams {
		page.Sources = append(page.Sources, descriptor(s))
	}
	return page, nil
}

// descriptor converts a stream listing. lastEventTimestamp is updated
// lazily by CloudWatch, so the later of it and lastIngestionTime is used.
func descriptor(s types.LogStream) source.Descriptor {
	d := source.Descriptor{ID: aws.ToString(s.LogStreamName)}
	if s.FirstEventTimestamp != nil {
		d.FirstEventTime = time.UnixMilli(*s.FirstEventTimestamp).UTC()
	}
	last := max(aws.ToInt64(s.LastEventTimestamp), aws.ToInt64(s.LastIngestionTime))
	if last > 0 {
		d.LastEventTime = time.UnixMilli(last).UTC()
	}
	return d
}

// ListEvents returns one page of a stream's events in [req.Start, req.End],
// oldest first. The next token equals the request token at end of stream.
func (b *Backend) ListEvents(ctx context.Context, req source.EventsRequest) (source.EventPage, error) {
	if err := b.wait(ctx); err != nil {
		return source.EventPage{}, err
	}

	input := &cloudwatchlogs.GetLogEventsInput{
		LogGroupName:  aws.String(req.Group),
		LogStreamName: aws.String(req.Source),
		StartFromHead: aws.Bool(true),
	}
	if !req.Start.IsZero() {
		input.StartTime = aws.Int64(req.Start.UnixMilli())
	}
	if !req.End.IsZero() {
		// EndTime is exclusive
		input.EndTime = aws.Int64(req.End.UnixMilli() + 1)
	}
	if req.Token != "" {
		input.NextToken = aws.String(req.Token)
	}

	out, err := b.api.GetLogEvents(ctx, input)
	if err != nil {
		return source.EventPage{}, classify("GetLogEvents", err)
	}

	page := source.EventPage{
		Events:    make([]source.Event, 0, len(out.Events)),
		NextToken: aws.ToString(out.NextForwardToken),
	}
	for _, e := range out.Events {
		if e.Timestamp == nil {
			continue
		}
		page.Events = append(page.Events, source.Event{
			Timestamp: time.UnixMilli(*e.Timestamp).UTC(),
			Message:   aws.ToString(e.Message),
		})
	}
	return page, nil
}

// ListGroups returns one page of log groups whose name starts with prefix.
func (b *Backend) ListGroups(ctx context.Context, prefix, token string) (source.GroupPage, error) {
	if err := b.wait(ctx); err != nil {
		return source.GroupPage{}, err
	}

	input := &cloudwatchlogs.DescribeLogGroupsInput{}
	if prefix != "" {
		input.LogGroupNamePrefix = aws.String(prefix)
	}
	if token != "" {
		input.NextToken = aws.String(token)
	}

	out, err := b.api.DescribeLogGroups(ctx, input)
	if err != nil {
		return source.GroupPage{}, classify("DescribeLogGroups", err)
	}

	page := source.GroupPage{
		Groups:    make([]source.GroupInfo, 0, len(out.LogGroups)),
		NextToken: aws.ToString(out.NextToken),
	}
	for _, g := range out.LogGroups {
		group := source.GroupInfo{
			Name:        aws.ToString(g.LogGroupName),
			StoredBytes: aws.ToInt64(g.StoredBytes),
		}
		if g.CreationTime != nil {
			group.CreationTime = time.UnixMilli(*g.CreationTime).UTC()
		}
		if g.RetentionInDays != nil {
			group.RetentionDays = int(*g.RetentionInDays)
		}
		page.Groups = append(page.Groups, group)
	}
	return page, nil
}

// classify maps SDK errors: a missing group or stream becomes
// source.ErrGroupNotFound, other API errors a *BackendError.
func classify(op string, err error) error {
	var notFound *types.ResourceNotFoundException
	if errors.As(err, &notFound) {
		return fmt.Errorf("%s: %w: %s", op, source.ErrGroupNotFound, notFound.ErrorMessage())
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return &BackendError{
			Op:      op,
			Code:    apiErr.ErrorCode(),
			Message: apiErr.ErrorMessage(),
			Err:     err,
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
