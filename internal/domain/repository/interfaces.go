package repository

import (
	"context"
	"time"

	"IndexSDK/internal/domain/models"
)

// MetricSink receives exported metric points.
type MetricSink interface {
	// Name labels the sink in logs and metrics.
	Name() string
	Write(ctx context.Context, points []models.MetricPoint) error
	Close() error
}

// MetricStore is a sink that can also read back what it stored.
type MetricStore interface {
	MetricSink
	Init(ctx context.Context) error
	Query(ctx context.Context, secType, id string, from, to time.Time) ([]models.MetricPoint, error)
	Health(ctx context.Context) error
}

// Metrics records export outcomes. A nil Metrics disables recording.
type Metrics interface {
	RecordExported(sink string, rows int)
	RecordError(kind string)
}
