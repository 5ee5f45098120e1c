package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"donations/internal/activity"
	"donations/internal/auth"
	apperrors "donations/internal/errors"
	"donations/internal/metrics"
	"donations/internal/model"
	"donations/internal/repository"
)

const bcryptCost = 10

// AuthService handles registration, credential checks and token issuance.
type AuthService interface {
	Register(ctx context.Context, email, password, fullName string) (*model.User, error)
	Authenticate(ctx context.Context, email, password string) (*model.User, error)
	Login(ctx context.Context, email, password string) (token string, user *model.User, err error)
	EnsureAdmin(ctx context.Context, email, password string) (created bool, err error)
	TokenTTL() time.Duration
}

type authService struct {
	users    repository.UserRepository
	tokens   auth.TokenService
	tokenTTL time.Duration
	activity activity.Recorder
	metrics  *metrics.Metrics
}

// NewAuthService creates a new authentication service.
func NewAuthService(
	users repository.UserRepository,
	tokens auth.TokenService,
	tokenTTL time.Duration,
	recorder activity.Recorder,
	m *metrics.Metrics,
) AuthService {
	if tokenTTL <= 0 {
		tokenTTL = auth.DefaultTokenTTL
	}
	return &authService{
		users:    users,
		tokens:   tokens,
		tokenTTL: tokenTTL,
		activity: recorder,
		metrics:  m,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a regular, active user with a hashed password.
func (s *authService) Register(ctx context.Context, email, password, fullName string) (*model.User, error) {
	user, err := s.createUser(ctx, email, password, fullName, model.RoleUser)
	if err != nil {
		return nil, err
	}
	s.record(ctx, activity.Entry{UserEmail: user.Email, Action: activity.ActionRegister})
	return user, nil
}

func (s *authService) createUser(ctx context.Context, email, password, fullName string, role model.Role) (*model.User, error) {
	email = normalizeEmail(email)

	// Check if user already exists
	existing, err := s.users.FindByEmail(ctx, email)
	if err == nil && existing != nil {
		return nil, apperrors.ErrUserAlreadyExists
	}
	// Anything but a miss is a store failure
	if err != nil && !errors.Is(err, apperrors.ErrUserNotFound) {
		return nil, fmt.Errorf("check user existence: %w", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		Email:        email,
		PasswordHash: string(hashedPassword),
		FullName:     strings.TrimSpace(fullName),
		Role:         role,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperrors.ErrUserAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Authenticate checks the credentials and the account state.
func (s *authService) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, apperrors.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, apperrors.ErrInactiveAccount
	}
	return user, nil
}

// Login authenticates the user and issues a session token.
func (s *authService) Login(ctx context.Context, email, password string) (string, *model.User, error) {
	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		s.metrics.Login(false)
		return "", nil, err
	}

	token, err := s.tokens.Issue(user.Email, s.tokenTTL)
	if err != nil {
		return "", nil, fmt.Errorf("issue token: %w", err)
	}

	s.metrics.Login(true)
	s.record(ctx, activity.Entry{UserEmail: user.Email, Action: activity.ActionLoginSuccess})
	return token, user, nil
}

// EnsureAdmin creates the bootstrap administrator unless the email is taken.
func (s *authService) EnsureAdmin(ctx context.Context, email, password string) (bool, error) {
	_, err := s.createUser(ctx, email, password, "Admin User", model.RoleAdmin)
	if errors.Is(err, apperrors.ErrUserAlreadyExists) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// TokenTTL is the lifetime of issued session tokens.
func (s *authService) TokenTTL() time.Duration {
	return s.tokenTTL
}

func (s *authService) record(ctx context.Context, entry activity.Entry) {
	if s.activity != nil {
		s.activity.Record(ctx, entry)
	}
}
