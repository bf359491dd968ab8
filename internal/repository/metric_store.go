package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/guregu/null/v6"

	"IndexSDK/internal/domain/models"
	"IndexSDK/internal/domain/repository"
	"IndexSDK/pkg/util"
)

// insertChunk is the number of rows per multi-row INSERT.
const insertChunk = 2000

const metricColumns = "sec_type, id, name, eff_ts, metric, value"

// ClickHouseMetricStore implements MetricStore for ClickHouse.
type ClickHouseMetricStore struct {
	db    *sql.DB
	table string
}

// NewClickHouseMetricStore creates a store writing to table (database.table).
func NewClickHouseMetricStore(db *sql.DB, table string) repository.MetricStore {
	return &ClickHouseMetricStore{db: db, table: table}
}

// MetricSchema returns the statements that create database and table.
func MetricSchema(database, table string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
	sec_type LowCardinality(String),
	id String,
	name String,
	eff_ts DateTime,
	metric LowCardinality(String),
	value Nullable(Float64),
	inserted_at DateTime DEFAULT now()
) ENGINE = ReplacingMergeTree(inserted_at)
ORDER BY (sec_type, id, metric, eff_ts)`, database, table),
	}
}

func (s *ClickHouseMetricStore) Name() string { return "clickhouse" }

func (s *ClickHouseMetricStore) Init(ctx context.Context) error {
	return nil // schema is created by pkg/clickhouse.InitSchema
}

// Write inserts points in multi-row batches.
func (s *ClickHouseMetricStore) Write(ctx context.Context, points []models.MetricPoint) error {
	for _, chunk := range util.Batch(points, insertChunk) {
		q, args := buildInsert(s.table, chunk)
		if q == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert %s: %w", s.table, err)
		}
	}
	return nil
}

// buildInsert returns an INSERT for the valid points, or "" when there are none.
func buildInsert(table string, points []models.MetricPoint) (string, []interface{}) {
	values := make([]string, 0, len(points))
	args := make([]interface{}, 0, len(points)*6)
	for _, p := range points {
		if p.ID == "" || p.Metric == "" || p.EffTS.IsZero() {
			continue
		}
		values = append(values, "(?, ?, ?, ?, ?, ?)")
		args = append(args, p.SecType, p.ID, p.Name, p.EffTS.UTC(), p.Metric, p.Value.Ptr())
	}
	if len(values) == 0 {
		return "", nil
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", table, metricColumns, strings.Join(values, ",")), args
}

// Query reads one security's points between from and to, oldest first.
func (s *ClickHouseMetricStore) Query(ctx context.Context, secType, id string, from, to time.Time) ([]models.MetricPoint, error) {
	q := fmt.Sprintf("SELECT %s FROM %s FINAL WHERE sec_type = ? AND id = ? AND eff_ts >= ? AND eff_ts <= ? ORDER BY eff_ts, metric", metricColumns, s.table)
	rows, err := s.db.QueryContext(ctx, q, secType, id, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []models.MetricPoint
	for rows.Next() {
		var p models.MetricPoint
		var v sql.NullFloat64
		if err := rows.Scan(&p.SecType, &p.ID, &p.Name, &p.EffTS, &p.Metric, &v); err != nil {
			return nil, err
		}
		p.Value = null.NewFloat(v.Float64, v.Valid)
		points = append(points, p)
	}
	return points, rows.Err()
}

func (s *ClickHouseMetricStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseMetricStore) Close() error {
	return nil // pool is owned by pkg/clickhouse.Client
}
