package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// CollectionResponse writes a collection envelope.
func CollectionResponse(c echo.Context, results interface{}, errorCodes ...ErrorCode) error {
	body := map[string]interface{}{"results": results}
	if len(errorCodes) > 0 {
		body["error_codes"] = errorCodes
	}
	return c.JSON(http.StatusOK, body)
}

// SuccessResponse writes a bare JSON object.
func SuccessResponse(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, data)
}

// CreatedResponse writes created response.
func CreatedResponse(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusCreated, data)
}

// ErrorResponse writes the upstream's error body shape.
func ErrorResponse(c echo.Context, status int, message string) error {
	return c.JSON(status, map[string]interface{}{
		"status":  status,
		"message": message,
	})
}

// BadRequestResponse writes validation failures.
func BadRequestResponse(c echo.Context, errs []ValidationError) error {
	return c.JSON(http.StatusBadRequest, map[string]interface{}{
		"status":  http.StatusBadRequest,
		"message": http.StatusText(http.StatusBadRequest),
		"errors":  errs,
	})
}

// NotFoundResponse writes not found error.
func NotFoundResponse(c echo.Context, message string) error {
	return ErrorResponse(c, http.StatusNotFound, message)
}
