package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	"IndexSDK/pkg/logger"
	"IndexSDK/pkg/reqid"
)

// RequestLogging logs HTTP requests with their correlation id.
func RequestLogging(l *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			id, _ := reqid.Inbound(c.Request().Context())
			l.Debug("http request",
				logger.String("method", req.Method),
				logger.String("uri", req.RequestURI),
				logger.Int("status", c.Response().Status),
				logger.String("request_id", id),
				logger.Duration("latency_ms", time.Since(start)),
			)
			return nil
		}
	}
}
