package controller

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"payment-records/internal/policy"
	"payment-records/internal/service"
)

type RouterConfig struct {
	AllowedOrigins []string
	Logger         *slog.Logger
	// Ping reports database health for /health. Optional.
	Ping func() error
}

// NewRouter builds the echo instance with middleware and every route mounted.
func NewRouter(cfg RouterConfig, authService service.AuthService, paymentService service.PaymentService) *echo.Echo {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = NewRequestValidator(policy.Validator())

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(RequestLogger(logger))
	e.Use(middleware.Recover())
	if len(cfg.AllowedOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: cfg.AllowedOrigins,
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		}))
	} else {
		e.Use(middleware.CORS())
	}

	requireActor := RequireActor(authService, logger)

	NewAuthController(authService, logger).RegisterRoutes(e, requireActor)
	NewPaymentController(paymentService, logger).RegisterRoutes(e, requireActor)

	e.GET("/health", func(c echo.Context) error {
		if cfg.Ping != nil {
			if err := cfg.Ping(); err != nil {
				logger.ErrorContext(c.Request().Context(), "health check failed", "error", err)
				return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
			}
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
	})

	return e
}
