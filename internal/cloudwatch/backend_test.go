package cloudwatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/aws/smithy-go"
	"golang.org/x/time/rate"

	"github.com/jmurray2011/logweave/internal/source"
)

// mockLogsAPI records inputs and returns canned outputs.
type mockLogsAPI struct {
	startQuery     *cloudwatchlogs.StartQueryInput
	getLogEvents   *cloudwatchlogs.GetLogEventsInput
	describeStream *cloudwatchlogs.DescribeLogStreamsInput

	queryResults *cloudwatchlogs.GetQueryResultsOutput
	streams      *cloudwatchlogs.DescribeLogStreamsOutput
	events       *cloudwatchlogs.GetLogEventsOutput
	groups       *cloudwatchlogs.DescribeLogGroupsOutput
	err          error
}

func (m *mockLogsAPI) StartQuery(ctx context.Context, in *cloudwatchlogs.StartQueryInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.StartQueryOutput, error) {
	m.startQuery = in
	if m.err != nil {
		return nil, m.err
	}
	return &cloudwatchlogs.StartQueryOutput{QueryId: aws.String("q-1")}, nil
}

func (m *mockLogsAPI) GetQueryResults(ctx context.Context, in *cloudwatchlogs.GetQueryResultsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.GetQueryResultsOutput, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.queryResults, nil
}

func (m *mockLogsAPI) DescribeLogStreams(ctx context.Context, in *cloudwatchlogs.DescribeLogStreamsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DescribeLogStreamsOutput, error) {
	m.describeStream = in
	if m.err != nil {
		return nil, m.err
	}
	return m.streams, nil
}

func (m *mockLogsAPI) GetLogEvents(ctx context.Context, in *cloudwatchlogs.GetLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.GetLogEventsOutput, error) {
	m.getLogEvents = in
	if m.err != nil {
		return nil, m.err
	}
	return m.events, nil
}

func (m *mockLogsAPI) DescribeLogGroups(ctx context.Context, in *cloudwatchlogs.DescribeLogGroupsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DescribeLogGroupsOutput, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.groups, nil
}

func newTestBackend(api LogsAPI) *Backend {
	return NewBackend(api, WithRequestsPerSecond(0))
}

func TestSubmitSearchRoundsToSeconds(t *testing.T) {
	base := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		start     time.Time
		end       time.Time
		wantStart int64
		wantEnd   int64
	}{
		{"whole seconds", base, base.Add(time.Minute), base.Unix(), base.Unix() + 60},
		{"fractional end rounds up", base.Add(300 * time.Millisecond), base.Add(1500 * time.Millisecond), base.Unix(), base.Unix() + 2},
		{"empty range widened", base, base, base.Unix(), base.Unix() + 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &mockLogsAPI{}
			id, err := newTestBackend(api).SubmitSearch(context.Background(), source.SearchRequest{
				Group: "/app",
				Query: "fields @message",
				Start: tt.start,
				End:   tt.end,
				Limit: 100,
			})
			if err != nil {
				t.Fatalf("SubmitSearch() error: %v", err)
			}
			if id != "q-1" {
				t.Errorf("id = %q, want q-1", id)
			}
			in := api.startQuery
			if *in.StartTime != tt.wantStart || *in.EndTime != tt.wantEnd {
				t.Errorf("range = [%d, %d], want [%d, %d]", *in.StartTime, *in.EndTime, tt.wantStart, tt.wantEnd)
			}
			if aws.ToInt32(in.Limit) != 100 {
				t.Errorf("Limit = %d, want 100", aws.ToInt32(in.Limit))
			}
		})
	}
}

func TestPollSearchStatus(t *testing.T) {
	tests := []struct {
		status types.QueryStatus
		want   source.SearchStatus
	}{
		{types.QueryStatusScheduled, source.SearchPending},
		{types.QueryStatusRunning, source.SearchPending},
		{types.QueryStatusComplete, source.SearchComplete},
		{types.QueryStatusFailed, source.SearchFailed},
		{types.QueryStatusCancelled, source.SearchCancelled},
		{types.QueryStatusTimeout, source.SearchTimedOut},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			api := &mockLogsAPI{queryResults: &cloudwatchlogs.GetQueryResultsOutput{Status: tt.status}}
			res, err := newTestBackend(api).PollSearch(context.Background(), "q-1")
			if err != nil {
				t.Fatalf("PollSearch() error: %v", err)
			}
			if res.Status != tt.want {
				t.Errorf("Status = %v, want %v", res.Status, tt.want)
			}
		})
	}
}

func TestPollSearchConvertsRows(t *testing.T) {
	api := &mockLogsAPI{queryResults: &cloudwatchlogs.GetQueryResultsOutput{
		Status: types.QueryStatusComplete,
		Results: [][]types.ResultField{
			{
				{Field: aws.String("@timestamp"), Value: aws.String("2024-01-15 09:00:00.000")},
				{Field: aws.String("@message"), Value: aws.String("hello")},
				{Field: aws.String("@ptr"), Value: aws.String("p1")},
				{Field: nil, Value: aws.String("ignored")},
			},
		},
	}}

	res, err := newTestBackend(api).PollSearch(context.Background(), "q-1")
	if err != nil {
		t.Fatalf("PollSearch() error: %v", err)
	}
	if len(res.Rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(res.Rows))
	}
	row := res.Rows[0]
	if row["@message"] != "hello" || row["@ptr"] != "p1" {
		t.Errorf("row = %v", row)
	}
	if len(row) != 3 {
		t.Errorf("row has %d fields, want 3", len(row))
	}
}

func TestListEventsInclusiveEnd(t *testing.T) {
	base := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	api := &mockLogsAPI{events: &cloudwatchlogs.GetLogEventsOutput{
		Events: []types.OutputLogEvent{
			{Timestamp: aws.Int64(base.UnixMilli()), Message: aws.String("a")},
			{Timestamp: nil, Message: aws.String("no timestamp")},
			{Timestamp: aws.Int64(base.Add(time.Second).UnixMilli()), Message: aws.String("b")},
		},
		NextForwardToken: aws.String("f/2"),
	}}

	page, err := newTestBackend(api).ListEvents(context.Background(), source.EventsRequest{
		Group:  "/app",
		Source: "s1",
		Start:  base,
		End:    base.Add(time.Minute),
		Token:  "f/1",
	})
	if err != nil {
		t.Fatalf("ListEvents() error: %v", err)
	}

	in := api.getLogEvents
	if !aws.ToBool(in.StartFromHead) {
		t.Error("StartFromHead should be set")
	}
	if *in.EndTime != base.Add(time.Minute).UnixMilli()+1 {
		t.Errorf("EndTime = %d, want end+1ms", *in.EndTime)
	}
	if aws.ToString(in.NextToken) != "f/1" {
		t.Errorf("NextToken = %q, want f/1", aws.ToString(in.NextToken))
	}

	if len(page.Events) != 2 {
		t.Fatalf("got %d events, want 2", len(page.Events))
	}
	if page.Events[1].Message != "b" || !page.Events[1].Timestamp.Equal(base.Add(time.Second)) {
		t.Errorf("second event = %+v", page.Events[1])
	}
	if page.NextToken != "f/2" {
		t.Errorf("NextToken = %q, want f/2", page.NextToken)
	}
}

func TestListSourcesDescriptor(t *testing.T) {
	first := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	api := &mockLogsAPI{streams: &cloudwatchlogs.DescribeLogStreamsOutput{
		LogStreams: []types.LogStream{
			{
				LogStreamName:       aws.String("stale"),
				FirstEventTimestamp: aws.Int64(first.UnixMilli()),
				LastEventTimestamp:  aws.Int64(first.Add(time.Minute).UnixMilli()),
				LastIngestionTime:   aws.Int64(first.Add(time.Hour).UnixMilli()),
			},
			{
				LogStreamName:       aws.String("fresh"),
				FirstEventTimestamp: aws.Int64(first.UnixMilli()),
				LastEventTimestamp:  aws.Int64(first.Add(2 * time.Hour).UnixMilli()),
				LastIngestionTime:   aws.Int64(first.Add(time.Hour).UnixMilli()),
			},
			{LogStreamName: aws.String("empty")},
		},
		NextToken: aws.String("next"),
	}}

	page, err := newTestBackend(api).ListSources(context.Background(), "/app", "2024/01/15", "")
	if err != nil {
		t.Fatalf("ListSources() error: %v", err)
	}
	if aws.ToString(api.describeStream.LogStreamNamePrefix) != "2024/01/15" {
		t.Errorf("prefix = %q", aws.ToString(api.describeStream.LogStreamNamePrefix))
	}
	if api.describeStream.OrderBy != types.OrderByLogStreamName {
		t.Errorf("OrderBy = %v, want LogStreamName", api.describeStream.OrderBy)
	}
	if page.NextToken != "next" {
		t.Errorf("NextToken = %q, want next", page.NextToken)
	}

	wantLast := map[string]time.Time{
		"stale": first.Add(time.Hour),
		"fresh": first.Add(2 * time.Hour),
		"empty": {},
	}
	for _, d := range page.Sources {
		if !d.LastEventTime.Equal(wantLast[d.ID]) {
			t.Errorf("%s LastEventTime = %v, want %v", d.ID, d.LastEventTime, wantLast[d.ID])
		}
	}
	if !page.Sources[2].FirstEventTime.IsZero() {
		t.Error("empty stream should have zero FirstEventTime")
	}
}

func TestListGroups(t *testing.T) {
	api := &mockLogsAPI{groups: &cloudwatchlogs.DescribeLogGroupsOutput{
		LogGroups: []types.LogGroup{
			{
				LogGroupName:    aws.String("/aws/lambda/orders"),
				StoredBytes:     aws.Int64(2048),
				RetentionInDays: aws.Int32(14),
				CreationTime:    aws.Int64(1705309200000),
			},
			{LogGroupName: aws.String("/aws/lambda/billing")},
		},
	}}

	page, err := newTestBackend(api).ListGroups(context.Background(), "/aws/lambda/", "")
	if err != nil {
		t.Fatalf("ListGroups() error: %v", err)
	}
	if len(page.Groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(page.Groups))
	}
	g := page.Groups[0]
	if g.Name != "/aws/lambda/orders" || g.StoredBytes != 2048 || g.RetentionDays != 14 {
		t.Errorf("group = %+v", g)
	}
	if g.CreationTime.UnixMilli() != 1705309200000 {
		t.Errorf("CreationTime = %v", g.CreationTime)
	}
	if page.Groups[1].RetentionDays != 0 {
		t.Error("group without retention should report 0")
	}
}

func TestClassifyErrors(t *testing.T) {
	notFound := &types.ResourceNotFoundException{Message: aws.String("The specified log group does not exist.")}
	throttled := &smithy.GenericAPIError{Code: "ThrottlingException", Message: "Rate exceeded"}
	denied := &smithy.GenericAPIError{Code: "AccessDeniedException", Message: "not authorized"}
	plain := errors.New("connection reset")

	t.Run("resource not found", func(t *testing.T) {
		err := classify("GetLogEvents", notFound)
		if !errors.Is(err, source.ErrGroupNotFound) {
			t.Errorf("classify() = %v, want ErrGroupNotFound", err)
		}
	})

	t.Run("throttled", func(t *testing.T) {
		var be *BackendError
		if !errors.As(classify("StartQuery", throttled), &be) {
			t.Fatal("want *BackendError")
		}
		if !be.Throttled() || be.Op != "StartQuery" || be.Code != "ThrottlingException" {
			t.Errorf("BackendError = %+v", be)
		}
		if !errors.Is(be, throttled) {
			t.Error("BackendError should unwrap to the SDK error")
		}
	})

	t.Run("other api error", func(t *testing.T) {
		var be *BackendError
		if !errors.As(classify("DescribeLogStreams", denied), &be) {
			t.Fatal("want *BackendError")
		}
		if be.Throttled() {
			t.Error("AccessDenied is not throttling")
		}
		want := "DescribeLogStreams: AccessDeniedException: not authorized"
		if be.Error() != want {
			t.Errorf("Error() = %q, want %q", be.Error(), want)
		}
	})

	t.Run("transport error", func(t *testing.T) {
		err := classify("GetQueryResults", plain)
		if !errors.Is(err, plain) {
			t.Errorf("classify() = %v, should wrap %v", err, plain)
		}
		var be *BackendError
		if errors.As(err, &be) {
			t.Error("non-API error should not become a BackendError")
		}
	})
}

func TestBackendPropagatesClassifiedErrors(t *testing.T) {
	api := &mockLogsAPI{err: &types.ResourceNotFoundException{Message: aws.String("missing")}}
	b := newTestBackend(api)

	if _, err := b.ListSources(context.Background(), "/missing", "", ""); !errors.Is(err, source.ErrGroupNotFound) {
		t.Errorf("ListSources() error = %v, want ErrGroupNotFound", err)
	}
	if _, err := b.SubmitSearch(context.Background(), source.SearchRequest{Group: "/missing"}); !errors.Is(err, source.ErrGroupNotFound) {
		t.Errorf("SubmitSearch() error = %v, want ErrGroupNotFound", err)
	}
}

func TestRequestPacing(t *testing.T) {
	tests := []struct {
		name string
		rps  float64
		want rate.Limit
	}{
		{"disabled", 0, rate.Inf},
		{"negative disables", -1, rate.Inf},
		{"custom", 2.5, rate.Limit(2.5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBackend(&mockLogsAPI{}, WithRequestsPerSecond(tt.rps))
			if b.limiter.Limit() != tt.want {
				t.Errorf("Limit() = %v, want %v", b.limiter.Limit(), tt.want)
			}
		})
	}

	if got := NewBackend(&mockLogsAPI{}).limiter.Limit(); got != rate.Limit(DefaultRequestsPerSecond) {
		t.Errorf("default Limit() = %v, want %v", got, DefaultRequestsPerSecond)
	}
}

func TestBackendHonorsCanceledContext(t *testing.T) {
	b := NewBackend(&mockLogsAPI{}, WithRequestsPerSecond(0.001))
	// drain the single burst token
	b.limiter.Allow()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := b.ListGroups(ctx, "", ""); err == nil {
		t.Error("ListGroups() with canceled context should fail")
	}
}
