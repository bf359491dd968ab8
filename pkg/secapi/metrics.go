package secapi

import (
	"fmt"
	"net/url"
	"time"

	"IndexSDK/pkg/query"
	"IndexSDK/pkg/util"
)

// Metrics names the metrics to fetch: a single bare name or a list.
type Metrics struct {
	list  bool
	names []string
}

// Metric requests a single metric. A single metric cannot be chunked.
func Metric(name string) Metrics { return Metrics{names: []string{name}} }

// MetricList requests several metrics.
func MetricList(names ...string) Metrics {
	return Metrics{list: true, names: append([]string(nil), names...)}
}

// Names returns the requested metric names in order.
func (m Metrics) Names() []string { return append([]string(nil), m.names...) }

// IsList reports whether m was built with MetricList.
func (m Metrics) IsList() bool { return m.list }

func (m Metrics) value() query.Value {
	if m.list {
		return query.List(m.names...)
	}
	return query.String(m.names[0])
}

// MetricsRequest describes a security metrics query.
type MetricsRequest struct {
	SecType    string
	Metrics    Metrics
	Securities Selector
	// Start and End bound eff_ts; zero means unbounded.
	Start time.Time
	End   time.Time
	// Extra is merged over the built query, e.g. {"as_of": ...}.
	Extra           query.Filter
	RaisePermErrors bool
}

func (r MetricsRequest) filter(metrics Metrics, sel Selector) query.Filter {
	f := query.Filter{"metrics": metrics.value()}
	for k, v := range sel.filter() {
		f[k] = v
	}
	if !r.Start.IsZero() {
		f["start_date"] = query.String(util.FormatQueryTime(r.Start))
	}
	if !r.End.IsZero() {
		f["end_date"] = query.String(util.FormatQueryTime(r.End))
	}
	return f.Merge(r.Extra)
}

func (r MetricsRequest) path() string {
	return "/security/" + url.PathEscape(r.SecType)
}

// MetricsOption tunes how a metrics query is executed.
type MetricsOption func(*metricsConfig)

type metricsConfig struct {
	metricsChunk    int
	metricsChunkSet bool
	secChunk        int
	secChunkSet     bool
	raw             bool
}

// WithMetricsChunkSize splits the metric list into requests of at most n metrics.
func WithMetricsChunkSize(n int) MetricsOption {
	return func(c *metricsConfig) {
		c.metricsChunk, c.metricsChunkSet = n, true
	}
}

// WithSecuritiesChunkSize splits the id or name list into requests of at most n entries.
func WithSecuritiesChunkSize(n int) MetricsOption {
	return func(c *metricsConfig) {
		c.secChunk, c.secChunkSet = n, true
	}
}

// validate runs every argument check that needs no network call.
func (c metricsConfig) validate(r MetricsRequest) error {
	if c.metricsChunkSet && c.secChunkSet {
		return fmt.Errorf("%w: chunking by both metrics and securities", ErrNotImplemented)
	}
	chunked := c.metricsChunkSet || c.secChunkSet
	if c.raw && chunked {
		return fmt.Errorf("%w: chunking raw records", ErrNotImplemented)
	}

	if r.SecType == "" {
		return fmt.Errorf("%w: security type is required", ErrInvalidArgument)
	}
	if len(r.Metrics.names) == 0 {
		return fmt.Errorf("%w: at least one metric is required", ErrInvalidArgument)
	}
	for _, m := range r.Metrics.names {
		if m == "" {
			return fmt.Errorf("%w: empty metric name", ErrInvalidArgument)
		}
	}
	if err := requireValid(r.Securities); err != nil {
		return err
	}

	switch {
	case c.metricsChunkSet:
		if c.metricsChunk < 1 {
			return fmt.Errorf("%w: metrics chunk size must be >= 1, got %d", ErrInvalidArgument, c.metricsChunk)
		}
		if !r.Metrics.list {
			return fmt.Errorf("%w: metrics chunking needs a metric list", ErrInvalidArgument)
		}
	case c.secChunkSet:
		if c.secChunk < 1 {
			return fmt.Errorf("%w: securities chunk size must be >= 1, got %d", ErrInvalidArgument, c.secChunk)
		}
		if r.Securities.IsZero() {
			return fmt.Errorf("%w: securities chunking needs ids or names", ErrInvalidArgument)
		}
		if !r.Securities.IsMulti() || len(r.Securities.values) == 0 {
			return fmt.Errorf("%w: securities chunking needs a list of ids or names", ErrInvalidArgument)
		}
	}
	return nil
}
