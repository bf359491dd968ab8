package middleware

import (
	"github.com/labstack/echo/v4"

	"IndexSDK/pkg/reqid"
)

// RequestID copies the inbound X-Request-ID into the request context so SDK calls made
// while serving the request reuse it. Requests without one get a generated id from gen
// (nil gen leaves them without). The id is echoed on the response.
func RequestID(gen *reqid.Generator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			id := req.Header.Get(reqid.Header)
			if id == "" {
				id, _ = gen.Generate()
			}
			if id != "" {
				c.SetRequest(req.WithContext(reqid.WithInbound(req.Context(), id)))
				c.Response().Header().Set(reqid.Header, id)
			}
			return next(c)
		}
	}
}
