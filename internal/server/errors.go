package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/aman-zulfiqar/escrow-solver/internal/storage"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// jsonErrorHandler renders every unhandled error as an ErrorResponse
func jsonErrorHandler(logger *logrus.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, msg := classify(err)
		if code >= http.StatusInternalServerError && logger != nil {
			logger.WithError(err).WithField("uri", c.Request().RequestURI).Error("request failed")
		}
		_ = c.JSON(code, ErrorResponse{Error: msg, Code: code})
	}
}

func classify(err error) (int, string) {
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		if m, ok := he.Message.(string); ok && m != "" {
			return he.Code, m
		}
		return he.Code, http.StatusText(he.Code)
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "upstream timed out"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}
