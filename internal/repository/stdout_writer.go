package repository

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"IndexSDK/internal/domain/models"
	"IndexSDK/internal/domain/repository"
)

// JSONLinesWriter implements MetricSink by writing one JSON object per point.
type JSONLinesWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONLinesWriter writes to w, usually os.Stdout.
func NewJSONLinesWriter(w io.Writer) repository.MetricSink {
	return &JSONLinesWriter{enc: json.NewEncoder(w)}
}

func (w *JSONLinesWriter) Name() string { return "stdout" }

func (w *JSONLinesWriter) Write(ctx context.Context, points []models.MetricPoint) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, p := range points {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.enc.Encode(p); err != nil {
			return err
		}
	}
	return nil
}

func (w *JSONLinesWriter) Close() error { return nil }
