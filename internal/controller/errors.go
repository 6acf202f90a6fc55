package controller

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"payment-records/internal/policy"
	"payment-records/internal/repository"
	"payment-records/internal/service"
)

type ValidationResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields"`
}

// renderError maps service and policy errors to HTTP responses. Anything
// unrecognised is logged and answered with fallback as a 500.
func renderError(c echo.Context, logger *slog.Logger, err error, fallback string) error {
	var verrs policy.ValidationErrors
	var authErr *policy.AuthorizationError

	switch {
	case errors.As(err, &verrs):
		return c.JSON(http.StatusUnprocessableEntity, ValidationResponse{
			Error:  "validation failed",
			Fields: verrs.Fields(),
		})
	case errors.As(err, &authErr):
		return c.JSON(http.StatusForbidden, map[string]string{"error": authErr.Error()})
	case errors.Is(err, service.ErrPaymentNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Payment not found"})
	case errors.Is(err, repository.ErrInvalidSort),
		errors.Is(err, repository.ErrInvalidDirection),
		errors.Is(err, service.ErrNoPaymentIDs):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		logger.ErrorContext(c.Request().Context(), fallback,
			"error", err,
			"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
		)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": fallback})
	}
}
