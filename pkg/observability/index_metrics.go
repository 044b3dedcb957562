package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricInsertsTotal      = "ivtree.index.inserts.total"
	metricRemovesTotal      = "ivtree.index.removes.total"
	metricQueriesTotal      = "ivtree.index.queries.total"
	metricQueryHits         = "ivtree.index.query.hits"
	metricQueryDuration     = "ivtree.index.query.duration.seconds"
	metricIntervals         = "ivtree.index.intervals"
	metricHibernationsTotal = "ivtree.index.hibernations.total"
	metricHibernateDuration = "ivtree.index.hibernate.duration.seconds"

	attrTree = "tree.name"
	attrOp   = "index.op"
)

// Query operations.
const (
	OpQuery = "query"
	OpFind  = "find"
)

// Hibernation operations.
const (
	OpHibernate = "hibernate"
	OpBoot      = "boot"
)

var (
	queryBucketBoundaries     = []float64{0.000001, 0.00001, 0.0001, 0.001, 0.01, 0.1, 1}
	hitsBucketBoundaries      = []float64{0, 1, 2, 5, 10, 50, 100, 1000, 10000}
	hibernateBucketBoundaries = []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30}
)

// IndexMetrics holds the instruments of an interval catalog.
type IndexMetrics struct {
	inserts           metric.Int64Counter
	removes           metric.Int64Counter
	queries           metric.Int64Counter
	queryHits         metric.Int64Histogram
	queryDuration     metric.Float64Histogram
	intervals         metric.Int64UpDownCounter
	hibernations      metric.Int64Counter
	hibernateDuration metric.Float64Histogram
}

// NewIndexMetrics creates catalog instruments from the given meter.
func NewIndexMetrics(mt metric.Meter) (*IndexMetrics, error) {
	b := newMetricBuilder(mt)

	im := &IndexMetrics{
		inserts:   b.counter(metricInsertsTotal, "Intervals inserted", "{interval}"),
		removes:   b.counter(metricRemovesTotal, "Intervals removed", "{interval}"),
		queries:   b.counter(metricQueriesTotal, "Overlap queries served", "{query}"),
		queryHits: b.int64Histogram(metricQueryHits, "Intervals returned per query", "{interval}", hitsBucketBoundaries...),
		queryDuration: b.histogram(metricQueryDuration, "Query latency in seconds", "s",
			queryBucketBoundaries...),
		intervals:    b.upDownCounter(metricIntervals, "Intervals currently indexed", "{interval}"),
		hibernations: b.counter(metricHibernationsTotal, "Arena hibernate and boot runs", "{run}"),
		hibernateDuration: b.histogram(metricHibernateDuration, "Arena hibernate and boot latency", "s",
			hibernateBucketBoundaries...),
	}

	if b.err != nil {
		return nil, b.err
	}

	return im, nil
}

// RecordInsert counts n intervals added to tree.
func (im *IndexMetrics) RecordInsert(ctx context.Context, tree string, n int) {
	attrs := metric.WithAttributes(attribute.String(attrTree, tree))

	im.inserts.Add(ctx, int64(n), attrs)
	im.intervals.Add(ctx, int64(n), attrs)
}

// RecordRemove counts one interval removed from tree.
func (im *IndexMetrics) RecordRemove(ctx context.Context, tree string) {
	attrs := metric.WithAttributes(attribute.String(attrTree, tree))

	im.removes.Add(ctx, 1, attrs)
	im.intervals.Add(ctx, -1, attrs)
}

// RecordQuery records one lookup of kind op against tree.
func (im *IndexMetrics) RecordQuery(ctx context.Context, tree, op string, hits int, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String(attrTree, tree),
		attribute.String(attrOp, op),
	)

	im.queries.Add(ctx, 1, attrs)
	im.queryHits.Record(ctx, int64(hits), attrs)
	im.queryDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordHibernation records a hibernate or boot pass over all shards.
func (im *IndexMetrics) RecordHibernation(ctx context.Context, op string, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String(attrOp, op))

	im.hibernations.Add(ctx, 1, attrs)
	im.hibernateDuration.Record(ctx, duration.Seconds(), attrs)
}
