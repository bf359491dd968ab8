package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder collects client-side request, retry, chunking and export metrics.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	requests     *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	retries      *prometheus.CounterVec
	subRequests  *prometheus.CounterVec
	exportedRows *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec

	publishMsgs    *prometheus.CounterVec
	publishBytes   *prometheus.CounterVec
	publishLatency *prometheus.HistogramVec
}

// New registers the recorder's collectors on reg. Passing a fresh registry per
// client keeps repeated construction (tests, multiple clients) from colliding.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		requests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "indexsdk_http_requests_total",
				Help: "Upstream HTTP attempts by method and status code",
			},
			[]string{"method", "status"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "indexsdk_http_request_duration_seconds",
				Help:    "Upstream HTTP attempt latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		retries: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "indexsdk_http_retries_total",
				Help: "Retried upstream attempts by reason",
			},
			[]string{"method", "reason"},
		),
		subRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "indexsdk_metrics_subrequests_total",
				Help: "Security-metrics sub-requests issued by chunk axis",
			},
			[]string{"axis"},
		),
		exportedRows: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "indexsdk_export_rows_total",
				Help: "Metric rows written to an export sink",
			},
			[]string{"sink"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "indexsdk_errors_total",
				Help: "Errors by kind",
			},
			[]string{"kind"},
		),
		publishMsgs: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "indexsdk_kafka_producer_messages_total",
				Help: "Messages published to Kafka",
			},
			[]string{"topic", "compression", "result"},
		),
		publishBytes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "indexsdk_kafka_producer_bytes_total",
				Help: "Payload bytes published to Kafka",
			},
			[]string{"topic", "compression"},
		),
		publishLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "indexsdk_kafka_producer_publish_seconds",
				Help:    "Publish latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"topic"},
		),
	}
}

// RecordRequest records one HTTP attempt. status 0 means no response.
func (r *Recorder) RecordRequest(method string, status int, d time.Duration) {
	if r == nil {
		return
	}
	r.requests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	r.latency.WithLabelValues(method).Observe(d.Seconds())
}

// RecordRetry records a retried attempt.
func (r *Recorder) RecordRetry(method, reason string) {
	if r == nil {
		return
	}
	r.retries.WithLabelValues(method, reason).Inc()
}

// RecordSubRequest records one chunked metrics sub-request.
func (r *Recorder) RecordSubRequest(axis string) {
	if r == nil {
		return
	}
	r.subRequests.WithLabelValues(axis).Inc()
}

// RecordExported records rows written to a sink.
func (r *Recorder) RecordExported(sink string, rows int) {
	if r == nil {
		return
	}
	r.exportedRows.WithLabelValues(sink).Add(float64(rows))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	if r == nil {
		return
	}
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordPublish records one Kafka write of count messages.
func (r *Recorder) RecordPublish(topic, compression string, bytes int64, count int, d time.Duration, err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
		r.errorsTotal.WithLabelValues("kafka_publish").Inc()
	}
	r.publishMsgs.WithLabelValues(topic, compression, result).Add(float64(count))
	r.publishBytes.WithLabelValues(topic, compression).Add(float64(bytes))
	r.publishLatency.WithLabelValues(topic).Observe(d.Seconds())
}
