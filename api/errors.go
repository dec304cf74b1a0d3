package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/getarx/arx/domain"
)

// HTTPStatus maps the domain error taxonomy onto HTTP status codes. The
// core never encodes HTTP semantics; this is the single place where kinds
// become protocol responses.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrTimeout):
		return http.StatusServiceUnavailable
	}
	switch domain.KindOf(err) {
	case domain.KindUnauthorized:
		return http.StatusUnauthorized
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// ErrorHandler returns an Echo error handler that renders domain errors as
// JSON. Internal causes are logged, never sent to clients.
func ErrorHandler(log *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		message := "internal server error"

		var he *echo.HTTPError
		var de *domain.Error
		switch {
		case errors.As(err, &he):
			status = he.Code
			if m, ok := he.Message.(string); ok {
				message = m
			}
		case errors.As(err, &de):
			status = HTTPStatus(err)
			message = de.Message
		}

		if status >= http.StatusInternalServerError {
			log.Error("request failed",
				zap.String("path", c.Path()),
				zap.Int("status", status),
				zap.Error(err),
			)
		}

		resp := map[string]any{
			"status": message,
			"code":   status,
		}
		if jsonErr := c.JSON(status, resp); jsonErr != nil {
			log.Error("failed to write error response", zap.Error(jsonErr))
		}
	}
}
