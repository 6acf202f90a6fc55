package controller

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"payment-records/internal/service"
)

type AuthController struct {
	authService service.AuthService
	logger      *slog.Logger
}

func NewAuthController(authService service.AuthService, logger *slog.Logger) *AuthController {
	return &AuthController{
		authService: authService,
		logger:      logger,
	}
}

func (ac *AuthController) RegisterRoutes(e *echo.Echo, requireActor echo.MiddlewareFunc) {
	authGroup := e.Group("/api/auth")

	authGroup.POST("/login", ac.Login)
	authGroup.GET("/me", ac.Me, requireActor)
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (ac *AuthController) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Email and password are required"})
	}

	res, err := ac.authService.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid email or password"})
		}
		ac.logger.ErrorContext(c.Request().Context(), "login failed", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to log in"})
	}

	return c.JSON(http.StatusOK, res)
}

func (ac *AuthController) Me(c echo.Context) error {
	p := principalFrom(c)
	if p == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Missing or invalid token"})
	}

	return c.JSON(http.StatusOK, p)
}
