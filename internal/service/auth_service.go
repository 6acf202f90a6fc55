package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"payment-records/internal/auth"
	"payment-records/internal/model"
	"payment-records/internal/policy"
	"payment-records/internal/repository"
)

const MinPasswordLength = 8

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidRole        = errors.New("role must be 'admin' or 'user'")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrNameRequired       = errors.New("name is required")
	ErrWeakPassword       = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	ErrUnknownPrincipal   = errors.New("principal no longer exists")
)

type LoginResult struct {
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expires_at"`
	Principal *model.Principal `json:"user"`
}

type AuthService interface {
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	// Authenticate resolves a bearer token to the principal it was issued for.
	Authenticate(ctx context.Context, token string) (*model.Principal, error)
	CreatePrincipal(ctx context.Context, name, email, password string, role model.Role) (*model.Principal, error)
}

type DefaultAuthService struct {
	principals repository.PrincipalRepository
	issuer     *auth.Issuer
	bcryptCost int
	logger     *slog.Logger
}

func NewAuthService(principals repository.PrincipalRepository, issuer *auth.Issuer, logger *slog.Logger) *DefaultAuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultAuthService{
		principals: principals,
		issuer:     issuer,
		bcryptCost: bcrypt.DefaultCost,
		logger:     logger,
	}
}

// WithBcryptCost overrides the hashing cost. Tests use bcrypt.MinCost.
func (s *DefaultAuthService) WithBcryptCost(cost int) *DefaultAuthService {
	s.bcryptCost = cost
	return s
}

func (s *DefaultAuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	p, err := s.principals.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, err
	}

	if p == nil {
		s.logger.WarnContext(ctx, "login failed", "reason", "unknown email")
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(password)); err != nil {
		s.logger.WarnContext(ctx, "login failed", "reason", "bad password", "principal_id", p.ID)
		return nil, ErrInvalidCredentials
	}

	token, expiresAt, err := s.issuer.Issue(p)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	s.logger.InfoContext(ctx, "login succeeded", "principal_id", p.ID, "role", p.Role)
	return &LoginResult{
		Token:     token,
		ExpiresAt: expiresAt,
		Principal: p,
	}, nil
}

func (s *DefaultAuthService) Authenticate(ctx context.Context, token string) (*model.Principal, error) {
	id, err := s.issuer.Parse(token)
	if err != nil {
		return nil, err
	}

	p, err := s.principals.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if p == nil {
		return nil, ErrUnknownPrincipal
	}

	return p, nil
}

func (s *DefaultAuthService) CreatePrincipal(ctx context.Context, name, email, password string, role model.Role) (*model.Principal, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if err := policy.Validator().Var(email, "required,email"); err != nil {
		return nil, ErrInvalidEmail
	}

	if !role.Valid() {
		return nil, ErrInvalidRole
	}

	if len(password) < MinPasswordLength {
		return nil, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	p := &model.Principal{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
	}
	if err := s.principals.Create(ctx, p); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "principal created", "principal_id", p.ID, "role", p.Role)
	return p, nil
}
