package controller

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"payment-records/internal/auth"
	"payment-records/internal/model"
	"payment-records/internal/service"
)

const principalContextKey = "principal"

// backendError marks an authentication failure that is not the caller's fault.
type backendError struct {
	err error
}

func (e *backendError) Error() string { return e.err.Error() }
func (e *backendError) Unwrap() error { return e.err }

// RequireActor authenticates the bearer token and stores the principal on the context.
func RequireActor(authService service.AuthService, logger *slog.Logger) echo.MiddlewareFunc {
	return middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
		KeyLookup:  "header:" + echo.HeaderAuthorization,
		AuthScheme: "Bearer",
		Validator: func(token string, c echo.Context) (bool, error) {
			p, err := authService.Authenticate(c.Request().Context(), token)
			if err != nil {
				if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, service.ErrUnknownPrincipal) {
					return false, nil
				}
				return false, &backendError{err: err}
			}
			c.Set(principalContextKey, p)
			return true, nil
		},
		ErrorHandler: func(err error, c echo.Context) error {
			var be *backendError
			if errors.As(err, &be) {
				logger.ErrorContext(c.Request().Context(), "authentication failed", "error", be.err)
				return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to authenticate request"})
			}
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Missing or invalid token"})
		},
	})
}

func principalFrom(c echo.Context) *model.Principal {
	p, _ := c.Get(principalContextKey).(*model.Principal)
	return p
}

// actorFrom returns the acting principal. Only valid behind RequireActor.
func actorFrom(c echo.Context) model.Actor {
	if p := principalFrom(c); p != nil {
		return p.Actor()
	}
	return model.Actor{}
}

// RequestLogger logs one structured line per request.
func RequestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"request_id", v.RequestID,
			}
			if p := principalFrom(c); p != nil {
				attrs = append(attrs, "principal_id", p.ID)
			}
			if v.Error != nil {
				logger.WarnContext(c.Request().Context(), "request failed", append(attrs, "error", v.Error)...)
				return nil
			}
			logger.InfoContext(c.Request().Context(), "request", attrs...)
			return nil
		},
	})
}

// RequestValidator plugs validator into echo's Context.Validate.
type RequestValidator struct {
	validator *validator.Validate
}

func NewRequestValidator(v *validator.Validate) *RequestValidator {
	return &RequestValidator{validator: v}
}

func (rv *RequestValidator) Validate(i interface{}) error {
	return rv.validator.Struct(i)
}
