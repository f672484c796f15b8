package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/arguslabs/argus/pkg/services"
)

// mapServiceError converts service layer errors to HTTP errors.
func mapServiceError(err error) *echo.HTTPError {
	var validErr *services.ValidationError
	if errors.As(err, &validErr) {
		return echo.NewHTTPError(http.StatusBadRequest, validErr.Error())
	}

	switch {
	case errors.Is(err, services.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "resource not found")
	case errors.Is(err, services.ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrAlreadyExists):
		return echo.NewHTTPError(http.StatusConflict, "resource already exists")
	default:
		slog.Error("Unexpected service error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
}

// errorEnvelope renders handler errors as JSON. Structured HTTP errors
// keep their status and carry the message under "detail"; anything else
// becomes a 500 with the concrete error type recorded for debugging.
func errorEnvelope() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			var he *echo.HTTPError
			if errors.As(err, &he) {
				return c.JSON(he.Code, &ErrorResponse{Detail: fmt.Sprint(he.Message)})
			}

			// echo v5 route errors (ErrNotFound, ErrMethodNotAllowed, ...)
			// are not *echo.HTTPError; they expose their status via the
			// HTTPStatusCoder interface instead.
			var sc echo.HTTPStatusCoder
			if errors.As(err, &sc) {
				return c.JSON(sc.StatusCode(), &ErrorResponse{Detail: err.Error()})
			}

			slog.Error("Unhandled error in handler", "error", err, "path", c.Request().URL.Path)
			return c.JSON(http.StatusInternalServerError, &InternalErrorResponse{
				Detail:    "Internal server error",
				ErrorType: fmt.Sprintf("%T", err),
			})
		}
	}
}
