// Package server exposes the process's Prometheus registry over HTTP while a
// long-running command (export, run polling) is in progress.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	xmw "IndexSDK/pkg/http/middleware"
	"IndexSDK/pkg/logger"
	"IndexSDK/pkg/reqid"
)

const defaultShutdownTimeout = 5 * time.Second

// Server serves /metrics and /healthz.
type Server struct {
	e    *echo.Echo
	addr string
	log  *logger.Logger
	errc chan error

	started bool
}

// New builds a server for addr backed by g.
func New(addr string, g prometheus.Gatherer, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(xmw.Recover(log))
	e.Use(xmw.RequestID(reqid.NewGenerator("metrics")))
	e.Use(xmw.RequestLogging(log))

	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(g, promhttp.HandlerOpts{})))
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	return &Server{e: e, addr: addr, log: log, errc: make(chan error, 1)}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.e.ServeHTTP(w, r)
}

// Start listens in the background. Listener errors are logged and returned by
// Shutdown.
func (s *Server) Start() {
	s.started = true
	go func() {
		err := s.e.Start(s.addr)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("metrics server stopped", logger.Error(err))
			s.errc <- err
		}
		close(s.errc)
	}()
	s.log.Info("metrics server listening", logger.String("addr", s.addr))
}

// Shutdown stops the listener, waiting up to 5s for in-flight scrapes.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultShutdownTimeout)
	defer cancel()
	if err := s.e.Shutdown(ctx); err != nil {
		return err
	}
	if !s.started {
		return nil
	}
	return <-s.errc
}
