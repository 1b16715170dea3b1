package cloudwatch

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// DefaultStatsNamespace is the metric namespace used when none is given.
const DefaultStatsNamespace = "Logweave"

// Metric names written by StatsPublisher.
const (
	MetricQueries          = "Queries"
	MetricMeanQueryLatency = "MeanQueryLatency"
	MetricBackendCalls     = "BackendCalls"
	MetricRecords          = "Records"
	MetricPeakBuffered     = "PeakBuffered"
	MetricStalls           = "Stalls"
	MetricDecodeErrors     = "DecodeErrors"
	MetricRunDuration      = "RunDuration"
)

// MetricsAPI is the subset of *cloudwatch.Client used for run statistics.
type MetricsAPI interface {
	PutMetricData(ctx context.Context, in *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
	GetMetricStatistics(ctx context.Context, in *cloudwatch.GetMetricStatisticsInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.GetMetricStatisticsOutput, error)
}

// RunMetrics summarizes one retrieval run.
type RunMetrics struct {
	Driver           string // insights or streams
	Group            string
	Queries          int
	MeanQueryLatency time.Duration
	BackendCalls     int
	Records          int
	PeakBuffered     int
	Stalls           int
	DecodeErrors     int
	Duration         time.Duration
	Finished         time.Time
}

// StatsPublisher writes run statistics as CloudWatch custom metrics.
type StatsPublisher struct {
	api       MetricsAPI
	namespace string
}

// NewStatsPublisher creates a publisher writing to namespace.
func NewStatsPublisher(api MetricsAPI, namespace string) *StatsPublisher {
	if namespace == "" {
		namespace = DefaultStatsNamespace
	}
	return &StatsPublisher{api: api, namespace: namespace}
}

// Namespace returns the metric namespace.
func (p *StatsPublisher) Namespace() string { return p.namespace }

// Publish writes one datum per statistic, dimensioned by driver and log group.
func (p *StatsPublisher) Publish(ctx context.Context, m RunMetrics) error {
	ts := m.Finished
	if ts.IsZero() {
		ts = time.Now()
	}
	dims := []types.Dimension{
		{Name: aws.String("Driver"), Value: aws.String(m.Driver)},
		{Name: aws.String("LogGroup"), Value: aws.String(m.Group)},
	}

	datum := func(name string, value float64, unit types.StandardUnit) types.MetricDatum {
		return types.MetricDatum{
			MetricName: aws.String(name),
			Dimensions: dims,
			Timestamp:  aws.Time(ts),
			Value:      aws.Float64(value),
			Unit:       unit,
		}
	}

	data := []types.MetricDatum{
		datum(MetricBackendCalls, float64(m.BackendCalls), types.StandardUnitCount),
		datum(MetricRecords, float64(m.Records), types.StandardUnitCount),
		datum(MetricRunDuration, float64(m.Duration.Milliseconds()), types.StandardUnitMilliseconds),
	}
	switch m.Driver {
	case "insights":
		data = append(data,
			datum(MetricQueries, float64(m.Queries), types.StandardUnitCount),
			datum(MetricMeanQueryLatency, float64(m.MeanQueryLatency.Milliseconds()), types.StandardUnitMilliseconds),
			datum(MetricStalls, float64(m.Stalls), types.StandardUnitCount),
			datum(MetricDecodeErrors, float64(m.DecodeErrors), types.StandardUnitCount),
		)
	case "streams":
		data = append(data, datum(MetricPeakBuffered, float64(m.PeakBuffered), types.StandardUnitCount))
	}

	_, err := p.api.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(p.namespace),
		MetricData: data,
	})
	if err != nil {
		return fmt.Errorf("failed to publish run statistics: %w", err)
	}
	return nil
}

// StatPoint is one aggregated value of a published statistic.
type StatPoint struct {
	Timestamp time.Time
	Value     float64
	Unit      string
}

// StatsQuery selects a published statistic to read back.
type StatsQuery struct {
	Metric    string
	Driver    string
	Group     string
	Statistic string // sum, avg, min, max, count
	Period    time.Duration
	Start     time.Time
	End       time.Time
}

// History reads back a statistic written by Publish, oldest first.
func (p *StatsPublisher) History(ctx context.Context, q StatsQuery) ([]StatPoint, error) {
	period := q.Period
	if period < time.Minute {
		period = time.Minute
	}
	stat := mapStatistic(q.Statistic)

	var dims []types.Dimension
	if q.Driver != "" {
		dims = append(dims, types.Dimension{Name: aws.String("Driver"), Value: aws.String(q.Driver)})
	}
	if q.Group != "" {
		dims = append(dims, types.Dimension{Name: aws.String("LogGroup"), Value: aws.String(q.Group)})
	}

	out, err := p.api.GetMetricStatistics(ctx, &cloudwatch.GetMetricStatisticsInput{
		Namespace:  aws.String(p.namespace),
		MetricName: aws.String(q.Metric),
		Dimensions: dims,
		StartTime:  aws.Time(q.Start),
		EndTime:    aws.Time(q.End),
		Period:     aws.Int32(int32(period.Seconds())),
		Statistics: []types.Statistic{stat},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get statistics for %s: %w", q.Metric, err)
	}

	points := make([]StatPoint, 0, len(out.Datapoints))
	for _, dp := range out.Datapoints {
		if dp.Timestamp == nil {
			continue
		}
		points = append(points, StatPoint{
			Timestamp: *dp.Timestamp,
			Value:     statValue(dp, stat),
			Unit:      string(dp.Unit),
		})
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})
	return points, nil
}

func statValue(dp types.Datapoint, stat types.Statistic) float64 {
	var v *float64
	switch stat {
	case types.StatisticAverage:
		v = dp.Average
	case types.StatisticMinimum:
		v = dp.Minimum
	case types.StatisticMaximum:
		v = dp.Maximum
	case types.StatisticSampleCount:
		v = dp.SampleCount
	default:
		v = dp.Sum
	}
	return aws.ToFloat64(v)
}

// mapStatistic converts a user-supplied statistic name. Unknown names map to Sum.
func mapStatistic(s string) types.Statistic {
	switch strings.ToLower(s) {
	case "avg", "average":
		return types.StatisticAverage
	case "min", "minimum":
		return types.StatisticMinimum
	case "max", "maximum":
		return types.StatisticMaximum
	case "count", "samplecount":
		return types.StatisticSampleCount
	default:
		return types.StatisticSum
	}
}
