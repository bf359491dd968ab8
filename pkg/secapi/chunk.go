package secapi

import (
	"context"
	"fmt"

	xhttp "IndexSDK/pkg/http"
	"IndexSDK/pkg/logger"
	"IndexSDK/pkg/query"
	"IndexSDK/pkg/table"
	"IndexSDK/pkg/util"
)

const (
	axisNone       = "none"
	axisMetrics    = "metrics"
	axisSecurities = "securities"
)

// subRequest is one call of a possibly chunked metrics query.
type subRequest struct {
	filter query.Filter
	// metrics is the set whose columns must exist in this call's table.
	metrics []string
}

// GetSecurityMetrics fetches metric rows as a table with one column per requested
// metric, rows sorted by (id, eff_ts). Chunked and unchunked calls return the same
// table: rows sharing (eff_ts, id) are merged, later non-null values winning.
func (c *Client) GetSecurityMetrics(ctx context.Context, req MetricsRequest, opts ...MetricsOption) (*table.Table, error) {
	var cfg metricsConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.validate(req); err != nil {
		return nil, err
	}
	if err := c.requireType(ctx, req.SecType); err != nil {
		return nil, err
	}

	axis, plan := c.plan(req, cfg)
	parts := make([]*table.Table, 0, len(plan))
	for i, sub := range plan {
		recs, err := c.fetch(ctx, req, sub, axis, i, len(plan))
		if err != nil {
			return nil, err
		}
		t := table.FromRecords(recs)
		t.EnsureColumns(sub.metrics...)
		parts = append(parts, t)
	}

	return table.Concat(parts...).Canonical(), nil
}

// GetSecurityMetricsRecords returns the server's records unmodified. Chunking options
// are rejected.
func (c *Client) GetSecurityMetricsRecords(ctx context.Context, req MetricsRequest, opts ...MetricsOption) ([]xhttp.Record, error) {
	cfg := metricsConfig{raw: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.validate(req); err != nil {
		return nil, err
	}
	if err := c.requireType(ctx, req.SecType); err != nil {
		return nil, err
	}

	_, plan := c.plan(req, cfg)
	return c.fetch(ctx, req, plan[0], axisNone, 0, 1)
}

// plan splits req into sequential sub-requests. cfg must be validated.
func (c *Client) plan(req MetricsRequest, cfg metricsConfig) (string, []subRequest) {
	all := req.Metrics.Names()

	switch {
	case cfg.metricsChunkSet:
		batches := util.Batch(all, cfg.metricsChunk)
		plan := make([]subRequest, 0, len(batches))
		for _, b := range batches {
			plan = append(plan, subRequest{
				filter:  req.filter(MetricList(b...), req.Securities),
				metrics: b,
			})
		}
		return axisMetrics, plan

	case cfg.secChunkSet:
		batches := util.Batch(req.Securities.values, cfg.secChunk)
		plan := make([]subRequest, 0, len(batches))
		for _, b := range batches {
			plan = append(plan, subRequest{
				filter:  req.filter(req.Metrics, req.Securities.with(b)),
				metrics: all,
			})
		}
		return axisSecurities, plan

	default:
		return axisNone, []subRequest{{
			filter:  req.filter(req.Metrics, req.Securities),
			metrics: all,
		}}
	}
}

func (c *Client) fetch(ctx context.Context, req MetricsRequest, sub subRequest, axis string, i, n int) ([]xhttp.Record, error) {
	q := query.Normalize(sub.filter)
	c.metrics.RecordSubRequest(axis)
	c.log.Debug("security metrics request",
		logger.String("sec_type", req.SecType),
		logger.String("axis", axis),
		logger.Int("chunk", i+1),
		logger.Int("chunks", n),
		logger.String("metrics", q["metrics"]),
	)

	recs, err := c.session.GetCollection(ctx, req.path(), q, req.RaisePermErrors)
	if err != nil {
		if n > 1 {
			return nil, fmt.Errorf("chunk %d/%d: %w", i+1, n, err)
		}
		return nil, err
	}
	return recs, nil
}
