// Package metrics records poll outcomes and exposes them in the Prometheus
// text exposition format.
//
// The [Recorder] implements the poller's Observer interface. Metric families
// are built as client_model protobuf values and encoded with expfmt, so the
// output is exactly what a Prometheus scraper expects.
package metrics

import (
	"io"
	"sort"
	"sync"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/jpalmerr/statusboard/internal/poller"
)

const namespace = "statusboard"

// ContentType is the Content-Type of the text exposition format.
var ContentType = string(expfmt.NewFormat(expfmt.TypeTextPlain))

// Recorder accumulates fetch counters. Safe for concurrent use.
type Recorder struct {
	mu          sync.Mutex
	successes   uint64
	failures    map[poller.FailureKind]uint64
	skipped     uint64
	records     int
	lastSuccess time.Time
	lastTook    time.Duration

	now func() time.Time
}

// New creates an empty [Recorder].
func New() *Recorder {
	return &Recorder{
		failures: make(map[poller.FailureKind]uint64),
		now:      time.Now,
	}
}

// ObserveSuccess records a successful fetch of n records.
func (r *Recorder) ObserveSuccess(n int, took time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.successes++
	r.records = n
	r.lastTook = took
	r.lastSuccess = r.now()
}

// ObserveFailure records a failed fetch.
func (r *Recorder) ObserveFailure(kind poller.FailureKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[kind]++
}

// ObserveSkip records a tick skipped because a fetch was in flight.
func (r *Recorder) ObserveSkip() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skipped++
}

// Families returns the current metric families, sorted by name.
func (r *Recorder) Families() []*dto.MetricFamily {
	r.mu.Lock()
	defer r.mu.Unlock()

	var failed uint64
	kinds := make([]string, 0, len(r.failures))
	for k, v := range r.failures {
		failed += v
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)

	fetchTotal := family(namespace+"_fetch_total", "Snapshot fetches by result.", dto.MetricType_COUNTER,
		counter(float64(r.successes), label("result", "success")),
		counter(float64(failed), label("result", "failure")),
	)

	failureMetrics := make([]*dto.Metric, 0, len(kinds))
	for _, k := range kinds {
		failureMetrics = append(failureMetrics,
			counter(float64(r.failures[poller.FailureKind(k)]), label("kind", k)))
	}
	fetchFailures := family(namespace+"_fetch_failures_total", "Failed snapshot fetches by failure kind.",
		dto.MetricType_COUNTER, failureMetrics...)

	skipped := family(namespace+"_fetch_skipped_total", "Ticks skipped because a fetch was still in flight.",
		dto.MetricType_COUNTER, counter(float64(r.skipped)))

	records := family(namespace+"_snapshot_records", "Records in the current snapshot.",
		dto.MetricType_GAUGE, gauge(float64(r.records)))

	var lastTS float64
	if !r.lastSuccess.IsZero() {
		lastTS = float64(r.lastSuccess.UnixNano()) / 1e9
	}
	lastSuccess := family(namespace+"_last_success_timestamp_seconds", "Unix time of the last successful fetch.",
		dto.MetricType_GAUGE, gauge(lastTS))

	duration := family(namespace+"_fetch_duration_seconds", "Duration of the last successful fetch.",
		dto.MetricType_GAUGE, gauge(r.lastTook.Seconds()))

	fams := []*dto.MetricFamily{fetchTotal, fetchFailures, skipped, records, lastSuccess, duration}
	sort.Slice(fams, func(i, j int) bool { return fams[i].GetName() < fams[j].GetName() })
	return fams
}

// WriteText encodes all families in the text exposition format.
func (r *Recorder) WriteText(w io.Writer) error {
	for _, mf := range r.Families() {
		if len(mf.GetMetric()) == 0 {
			continue
		}
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

func family(name, help string, typ dto.MetricType, metrics ...*dto.Metric) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   strPtr(name),
		Help:   strPtr(help),
		Type:   typ.Enum(),
		Metric: metrics,
	}
}

func counter(v float64, labels ...*dto.LabelPair) *dto.Metric {
	return &dto.Metric{Label: labels, Counter: &dto.Counter{Value: &v}}
}

func gauge(v float64, labels ...*dto.LabelPair) *dto.Metric {
	return &dto.Metric{Label: labels, Gauge: &dto.Gauge{Value: &v}}
}

func label(name, value string) *dto.LabelPair {
	return &dto.LabelPair{Name: strPtr(name), Value: strPtr(value)}
}

func strPtr(s string) *string {
	return &s
}
