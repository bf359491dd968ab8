//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"IndexSDK/internal/app"
	"IndexSDK/pkg/config"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*app.App, func(), error) {
	wire.Build(
		// Observability
		ProvideLogger,
		ProvideRegistry,
		ProvideMetrics,

		// API clients
		ProvideSessionCache,
		ProvideSession,
		ProvideTypeCache,
		ProvideIndexClient,
		ProvideSecClient,

		// Export
		ProvideMetricSink,
		ProvideExporter,

		ProvideMetricsServer,
		ProvideApp,
	)
	return nil, nil, nil
}
