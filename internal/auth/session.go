package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	apperrors "donations/internal/errors"
	"donations/internal/model"
)

// ErrAuthRequired is returned by strict resolution when a presented token is not acceptable.
var ErrAuthRequired = errors.New("could not validate credentials")

// UserFinder is the credential store lookup used by the resolver.
type UserFinder interface {
	FindByEmail(ctx context.Context, email string) (*model.User, error)
}

// Identity is the outcome of session resolution. The zero value is anonymous.
type Identity struct {
	User *model.User
}

// Anonymous is the identity of a request without a usable session.
var Anonymous = Identity{}

// IsAnonymous reports whether no user is attached.
func (i Identity) IsAnonymous() bool {
	return i.User == nil
}

// SessionResolver turns a presented session token into an Identity.
type SessionResolver struct {
	tokens TokenService
	users  UserFinder
	logger *slog.Logger
}

// NewSessionResolver creates a resolver over the given token service and credential store.
func NewSessionResolver(tokens TokenService, users UserFinder, logger *slog.Logger) *SessionResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionResolver{tokens: tokens, users: users, logger: logger}
}

// FromCookie resolves a browser session cookie. It never fails: any problem
// with the cookie degrades to Anonymous.
func (r *SessionResolver) FromCookie(ctx context.Context, raw string) Identity {
	if raw == "" {
		return Anonymous
	}
	id, err := r.resolve(ctx, raw)
	if err != nil {
		if !errors.Is(err, ErrAuthRequired) {
			r.logger.WarnContext(ctx, "session cookie lookup failed", slog.Any("error", err))
		}
		return Anonymous
	}
	return id
}

// FromBearer resolves an Authorization header value. A missing header yields
// Anonymous; a presented token that does not resolve yields ErrAuthRequired.
func (r *SessionResolver) FromBearer(ctx context.Context, rawHeader string) (Identity, error) {
	token, ok := bearerToken(rawHeader)
	if !ok {
		return Anonymous, nil
	}
	return r.resolve(ctx, token)
}

func (r *SessionResolver) resolve(ctx context.Context, token string) (Identity, error) {
	claims, err := r.tokens.Verify(token)
	if err != nil {
		return Anonymous, fmt.Errorf("%w: %v", ErrAuthRequired, err)
	}

	user, err := r.users.FindByEmail(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			return Anonymous, fmt.Errorf("%w: unknown subject", ErrAuthRequired)
		}
		return Anonymous, fmt.Errorf("load session user: %w", err)
	}
	return Identity{User: user}, nil
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
