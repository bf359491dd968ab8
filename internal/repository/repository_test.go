package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"IndexSDK/internal/domain/models"
	pkgkafka "IndexSDK/pkg/kafka"
)

var day = time.Date(2023, 4, 27, 0, 0, 0, 0, time.UTC)

func points() []models.MetricPoint {
	return []models.MetricPoint{
		{SecType: "index", ID: "a", Name: "MQA", EffTS: day, Metric: "price_return", Value: null.FloatFrom(5000.5)},
		{SecType: "index", ID: "a", Name: "MQA", EffTS: day, Metric: "daily_return", Value: null.Float{}},
	}
}

func TestBuildInsert(t *testing.T) {
	pts := append(points(), models.MetricPoint{SecType: "index", Metric: "price_return", EffTS: day})

	q, args := buildInsert("indexsdk.security_metrics", pts)
	assert.Equal(t,
		"INSERT INTO indexsdk.security_metrics (sec_type, id, name, eff_ts, metric, value) VALUES (?, ?, ?, ?, ?, ?),(?, ?, ?, ?, ?, ?)",
		q)
	require.Len(t, args, 12)
	assert.Equal(t, day, args[3])
	assert.Equal(t, 5000.5, *args[5].(*float64))
	assert.Nil(t, args[11])
}

func TestBuildInsertNothingValid(t *testing.T) {
	q, args := buildInsert("t", []models.MetricPoint{{Metric: "x"}})
	assert.Empty(t, q)
	assert.Nil(t, args)
}

func TestMetricSchema(t *testing.T) {
	stmts := MetricSchema("indexsdk", "security_metrics")
	require.Len(t, stmts, 2)
	assert.Equal(t, "CREATE DATABASE IF NOT EXISTS indexsdk", stmts[0])
	assert.True(t, strings.HasPrefix(stmts[1], "CREATE TABLE IF NOT EXISTS indexsdk.security_metrics"))
	assert.Contains(t, stmts[1], "value Nullable(Float64)")
}

type fakePublisher struct {
	topic  string
	msgs   []pkgkafka.Message
	err    error
	closed bool
}

func (p *fakePublisher) PublishBatch(_ context.Context, topic string, msgs []pkgkafka.Message) error {
	p.topic = topic
	p.msgs = append(p.msgs, msgs...)
	return p.err
}

func (p *fakePublisher) Close() error {
	p.closed = true
	return nil
}

func TestKafkaMetricPublisher(t *testing.T) {
	fp := &fakePublisher{}
	sink := NewKafkaMetricPublisher(fp, "metrics")

	require.NoError(t, sink.Write(context.Background(), points()))
	assert.Equal(t, "kafka", sink.Name())
	assert.Equal(t, "metrics", fp.topic)
	require.Len(t, fp.msgs, 2)
	assert.Equal(t, []byte("a"), fp.msgs[0].Key)
	assert.Equal(t, "daily_return", fp.msgs[1].Headers["metric"])

	require.NoError(t, sink.Close())
	assert.True(t, fp.closed)
}

func TestKafkaMetricPublisherPropagatesError(t *testing.T) {
	fp := &fakePublisher{err: errors.New("down")}
	err := NewKafkaMetricPublisher(fp, "metrics").Write(context.Background(), points())
	assert.ErrorIs(t, err, fp.err)
}

func TestJSONLinesWriter(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONLinesWriter(&buf)

	require.NoError(t, sink.Write(context.Background(), points()))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "a", first["id"])
	assert.Equal(t, 5000.5, first["value"])
	assert.Equal(t, "2023-04-27T00:00:00Z", first["eff_ts"])
	assert.Contains(t, lines[1], `"value":null`)
}

func TestJSONLinesWriterStopsOnCancel(t *testing.T) {
	var buf bytes.Buffer
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewJSONLinesWriter(&buf).Write(ctx, points())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, buf.String())
}
