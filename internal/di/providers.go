package di

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"IndexSDK/internal/app"
	drepo "IndexSDK/internal/domain/repository"
	internalrepo "IndexSDK/internal/repository"
	"IndexSDK/internal/usecase"
	"IndexSDK/pkg/cache"
	pkgch "IndexSDK/pkg/clickhouse"
	"IndexSDK/pkg/config"
	xhttp "IndexSDK/pkg/http"
	"IndexSDK/pkg/indexapi"
	pkgkafka "IndexSDK/pkg/kafka"
	"IndexSDK/pkg/logger"
	"IndexSDK/pkg/metrics"
	"IndexSDK/pkg/secapi"
	"IndexSDK/pkg/server"
)

// ProvideLogger builds the process logger from the logging section.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	l, err := logger.New(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideRegistry creates the registry every collector registers on.
func ProvideRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// ProvideMetrics returns nil when metrics are disabled; a nil recorder is a no-op.
func ProvideMetrics(cfg *config.Config, reg *prometheus.Registry) *metrics.Recorder {
	if !cfg.Metrics.Enabled {
		return nil
	}
	return metrics.New(reg)
}

// ProvideSessionCache creates the (token, config) session cache. Cleanup closes
// every cached session.
func ProvideSessionCache(log *logger.Logger, rec *metrics.Recorder) (*xhttp.SessionCache, func()) {
	c := xhttp.NewSessionCache(xhttp.DefaultSessionCacheSize, xhttp.WithLogger(log), xhttp.WithMetrics(rec))
	return c, c.Clear
}

// ProvideSession returns the cached session for the configured key and API section.
func ProvideSession(sessions *xhttp.SessionCache, cfg *config.Config) (*xhttp.Session, error) {
	s, err := sessions.GetOrCreate(cfg.APIKey, cfg.API)
	if err != nil {
		return nil, fmt.Errorf("api session: %w", err)
	}
	return s, nil
}

// ProvideTypeCache builds the store behind the supported-type cache.
func ProvideTypeCache(cfg *config.Config) (cache.Store, func(), error) {
	mem := cache.NewMemoryStore(cache.WithMemoryMaxSize(1))
	if cfg.Cache.Type == "memory" {
		return mem, func() {}, nil
	}

	rs, err := cache.NewRedisStore(
		cache.WithRedisAddr(cfg.Cache.Redis.Addr),
		cache.WithRedisPassword(cfg.Cache.Redis.Password),
		cache.WithRedisDB(cfg.Cache.Redis.DB),
		cache.WithRedisPrefix(cfg.Cache.Redis.Prefix),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("type cache: %w", err)
	}
	cleanup := func() { _ = rs.Close() }
	if cfg.Cache.Type == "redis" {
		return rs, cleanup, nil
	}
	return cache.NewLayered(mem, rs, cache.WithLayeredL1TTL(cfg.Cache.TTL)), cleanup, nil
}

// ProvideIndexClient creates the IndexAPI client and its embedded SecAPI client.
func ProvideIndexClient(
	sess *xhttp.Session,
	types cache.Store,
	cfg *config.Config,
	log *logger.Logger,
	rec *metrics.Recorder,
) *indexapi.Client {
	return indexapi.New(sess,
		indexapi.WithLogger(log),
		indexapi.WithSecAPIOptions(
			secapi.WithTypeCache(types),
			secapi.WithTypeCacheTTL(cfg.Cache.TTL),
			secapi.WithMetrics(rec),
		),
	)
}

// ProvideSecClient exposes the SecAPI client embedded in the IndexAPI client.
func ProvideSecClient(idx *indexapi.Client) *secapi.Client {
	return idx.Client
}

// ProvideMetricSink opens the configured export sink.
func ProvideMetricSink(cfg *config.Config, rec *metrics.Recorder) (drepo.MetricSink, func(), error) {
	switch cfg.Export.Sink {
	case config.SinkKafka:
		k := cfg.Export.Kafka
		producer, err := pkgkafka.NewProducer(
			pkgkafka.WithBrokers(k.Brokers),
			pkgkafka.WithCompression(k.Compression),
			pkgkafka.WithRequiredAcks(k.RequiredAcks),
			pkgkafka.WithBatchSize(k.BatchSize),
			pkgkafka.WithBatchBytes(k.BatchBytes),
			pkgkafka.WithBatchTimeout(k.Linger),
			pkgkafka.WithTimeouts(k.WriteTimeout, k.ReadTimeout),
			pkgkafka.WithMaxAttempts(k.MaxAttempts),
			pkgkafka.WithHashByKey(true),
			pkgkafka.WithMetrics(rec),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("kafka producer: %w", err)
		}
		sink := internalrepo.NewKafkaMetricPublisher(producer, k.Topic)
		return sink, func() { _ = sink.Close() }, nil

	case config.SinkClickHouse:
		ch := cfg.Export.ClickHouse
		client, err := pkgch.NewClient(
			pkgch.WithHost(ch.Host),
			pkgch.WithPort(ch.Port),
			pkgch.WithDatabase(ch.Database),
			pkgch.WithCredentials(ch.User, ch.Password),
			pkgch.WithMaxConnections(10, 5),
			pkgch.WithHTTP(ch.UseHTTP),
			pkgch.WithAsyncInsert(ch.AsyncInsert, ch.WaitForAsync),
			pkgch.WithTimeouts(ch.DialTimeout, ch.ReadTimeout, ch.WriteTimeout),
			pkgch.WithMaxExecutionTime(ch.MaxExecutionTime),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("clickhouse client: %w", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := client.InitSchema(ctx, internalrepo.MetricSchema(ch.Database, ch.Table)); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
		}
		store := internalrepo.NewClickHouseMetricStore(client.DB(), ch.Database+"."+ch.Table)
		return store, func() { _ = client.Close() }, nil

	default:
		return internalrepo.NewJSONLinesWriter(os.Stdout), func() {}, nil
	}
}

// ProvideExporter creates the export use case.
func ProvideExporter(sec *secapi.Client, sink drepo.MetricSink, rec *metrics.Recorder, log *logger.Logger) *usecase.ExportMetrics {
	return usecase.NewExportMetrics(sec, sink, exportMetrics(rec), log, false)
}

// exportMetrics keeps a disabled recorder a nil interface.
func exportMetrics(rec *metrics.Recorder) drepo.Metrics {
	if rec == nil {
		return nil
	}
	return rec
}

// ProvideMetricsServer returns nil unless metrics.addr is set.
func ProvideMetricsServer(cfg *config.Config, reg *prometheus.Registry, log *logger.Logger) *server.Server {
	if cfg.Metrics.Addr == "" {
		return nil
	}
	return server.New(cfg.Metrics.Addr, reg, log)
}

// ProvideApp assembles the App.
func ProvideApp(
	cfg *config.Config,
	log *logger.Logger,
	sess *xhttp.Session,
	idx *indexapi.Client,
	exporter *usecase.ExportMetrics,
	reg *prometheus.Registry,
	srv *server.Server,
) *app.App {
	return app.New(cfg, log, sess, idx, exporter, reg, srv)
}
