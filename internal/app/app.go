// Package app holds everything a CLI command needs, built once by internal/di.
package app

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"IndexSDK/internal/usecase"
	"IndexSDK/pkg/config"
	xhttp "IndexSDK/pkg/http"
	"IndexSDK/pkg/indexapi"
	"IndexSDK/pkg/logger"
	"IndexSDK/pkg/server"
)

// App aggregates the configured clients and use cases.
type App struct {
	Config   *config.Config
	Log      *logger.Logger
	Session  *xhttp.Session
	Index    *indexapi.Client
	Exporter *usecase.ExportMetrics
	Registry *prometheus.Registry

	// metrics is nil unless metrics.addr is configured.
	metrics *server.Server
}

// New creates an App.
func New(
	cfg *config.Config,
	log *logger.Logger,
	session *xhttp.Session,
	index *indexapi.Client,
	exporter *usecase.ExportMetrics,
	reg *prometheus.Registry,
	metrics *server.Server,
) *App {
	return &App{
		Config:   cfg,
		Log:      log,
		Session:  session,
		Index:    index,
		Exporter: exporter,
		Registry: reg,
		metrics:  metrics,
	}
}

// Start brings up background listeners.
func (a *App) Start() {
	if a.metrics != nil {
		a.metrics.Start()
	}
}

// Stop shuts down what Start started. Clients are closed by the DI cleanup.
func (a *App) Stop(ctx context.Context) {
	if a.metrics == nil {
		return
	}
	if err := a.metrics.Shutdown(ctx); err != nil {
		a.Log.Warn("metrics server shutdown", logger.Error(err))
	}
}
