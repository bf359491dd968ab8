package usecase

import (
	"context"
	"fmt"
	"time"

	"IndexSDK/internal/domain/models"
	drepo "IndexSDK/internal/domain/repository"
	"IndexSDK/pkg/logger"
	"IndexSDK/pkg/secapi"
	"IndexSDK/pkg/table"
	"IndexSDK/pkg/util"
)

// MetricsSource fetches metric tables; *secapi.Client implements it.
type MetricsSource interface {
	GetSecurityMetrics(ctx context.Context, req secapi.MetricsRequest, opts ...secapi.MetricsOption) (*table.Table, error)
}

// ExportMetrics fetches security metrics and writes them to a sink as points.
type ExportMetrics struct {
	source    MetricsSource
	sink      drepo.MetricSink
	metrics   drepo.Metrics
	log       *logger.Logger
	skipNulls bool
}

// NewExportMetrics creates the use case. metrics may be nil.
func NewExportMetrics(source MetricsSource, sink drepo.MetricSink, metrics drepo.Metrics, log *logger.Logger, skipNulls bool) *ExportMetrics {
	if log == nil {
		log = logger.Nop()
	}
	return &ExportMetrics{
		source:    source,
		sink:      sink,
		metrics:   metrics,
		log:       log,
		skipNulls: skipNulls,
	}
}

// ExportResult summarizes one run.
type ExportResult struct {
	Rows     int
	Points   int
	Duration time.Duration
}

// Execute fetches req and writes every requested metric of every row to the sink.
func (u *ExportMetrics) Execute(ctx context.Context, req secapi.MetricsRequest, opts ...secapi.MetricsOption) (ExportResult, error) {
	start := time.Now()

	t, err := u.source.GetSecurityMetrics(ctx, req, opts...)
	if err != nil {
		u.recordError("fetch")
		return ExportResult{}, fmt.Errorf("fetch metrics: %w", err)
	}

	points, err := ToPoints(req.SecType, req.Metrics.Names(), t, u.skipNulls)
	if err != nil {
		u.recordError("convert")
		return ExportResult{}, err
	}

	if err := u.sink.Write(ctx, points); err != nil {
		u.recordError("sink_" + u.sink.Name())
		return ExportResult{}, fmt.Errorf("write %s: %w", u.sink.Name(), err)
	}
	if u.metrics != nil {
		u.metrics.RecordExported(u.sink.Name(), len(points))
	}

	res := ExportResult{Rows: t.Len(), Points: len(points), Duration: time.Since(start)}
	u.log.Info("metrics exported",
		logger.String("sec_type", req.SecType),
		logger.String("sink", u.sink.Name()),
		logger.Int("rows", res.Rows),
		logger.Int("points", res.Points),
		logger.Duration("took", res.Duration),
	)
	return res, nil
}

func (u *ExportMetrics) recordError(kind string) {
	if u.metrics != nil {
		u.metrics.RecordError("export_" + kind)
	}
}

// ToPoints flattens a metric table into one point per (row, metric), in row order.
func ToPoints(secType string, metrics []string, t *table.Table, skipNulls bool) ([]models.MetricPoint, error) {
	out := make([]models.MetricPoint, 0, t.Len()*len(metrics))
	for i, row := range t.Rows() {
		raw := row.String(table.ColEffTS).ValueOrZero()
		ts, ok := util.ParseTime(raw)
		if !ok {
			return nil, fmt.Errorf("row %d: bad eff_ts %q", i, raw)
		}
		for _, m := range metrics {
			v := row.Float(m)
			if skipNulls && !v.Valid {
				continue
			}
			out = append(out, models.MetricPoint{
				SecType: secType,
				ID:      row.String(table.ColID).ValueOrZero(),
				Name:    row.String(table.ColName).ValueOrZero(),
				EffTS:   ts,
				Metric:  m,
				Value:   v,
			})
		}
	}
	return out, nil
}
