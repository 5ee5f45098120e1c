package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"donations/internal/activity"
	"donations/internal/auth"
	apperrors "donations/internal/errors"
	"donations/internal/metrics"
	"donations/internal/model"
)

// MockUserRepository is a mock implementation of UserRepository.
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) Update(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

// recorderStub collects activity entries in memory.
type recorderStub struct {
	mu      sync.Mutex
	entries []activity.Entry
}

func (r *recorderStub) Record(_ context.Context, entry activity.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

func (r *recorderStub) actions() []activity.Action {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]activity.Action, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Action)
	}
	return out
}

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func newTestAuthService(repo *MockUserRepository, rec activity.Recorder) (AuthService, *auth.JWTService) {
	tokens := auth.NewJWTService("test-secret", 30*time.Minute)
	m := metrics.New(prometheus.NewRegistry())
	return NewAuthService(repo, tokens, 30*time.Minute, rec, m), tokens
}

func TestAuthService_Register(t *testing.T) {
	tests := []struct {
		name          string
		email         string
		password      string
		fullName      string
		setupMock     func(*MockUserRepository)
		expectedError error
	}{
		{
			name:     "successful registration",
			email:    " A@X.com ",
			password: "password123",
			fullName: "Test User",
			setupMock: func(m *MockUserRepository) {
				m.On("FindByEmail", mock.Anything, "a@x.com").Return(nil, apperrors.ErrUserNotFound)
				m.On("Create", mock.Anything, mock.AnythingOfType("*model.User")).Return(nil)
			},
		},
		{
			name:     "user already exists",
			email:    "existing@example.com",
			password: "password123",
			fullName: "Existing User",
			setupMock: func(m *MockUserRepository) {
				m.On("FindByEmail", mock.Anything, "existing@example.com").Return(&model.User{Email: "existing@example.com"}, nil)
			},
			expectedError: apperrors.ErrUserAlreadyExists,
		},
		{
			name:     "duplicate insert race",
			email:    "race@example.com",
			password: "password123",
			setupMock: func(m *MockUserRepository) {
				m.On("FindByEmail", mock.Anything, "race@example.com").Return(nil, apperrors.ErrUserNotFound)
				m.On("Create", mock.Anything, mock.AnythingOfType("*model.User")).Return(apperrors.ErrUserAlreadyExists)
			},
			expectedError: apperrors.ErrUserAlreadyExists,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockUserRepository)
			tt.setupMock(mockRepo)
			rec := &recorderStub{}

			service, _ := newTestAuthService(mockRepo, rec)
			user, err := service.Register(context.Background(), tt.email, tt.password, tt.fullName)

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Nil(t, user)
				assert.Empty(t, rec.actions())
			} else {
				require.NoError(t, err)
				assert.Equal(t, "a@x.com", user.Email)
				assert.Equal(t, tt.fullName, user.FullName)
				assert.Equal(t, model.RoleUser, user.Role)
				assert.True(t, user.IsActive)
				assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(tt.password)))
				assert.Equal(t, []activity.Action{activity.ActionRegister}, rec.actions())
			}

			mockRepo.AssertExpectations(t)
		})
	}
}

func TestAuthService_Login(t *testing.T) {
	tests := []struct {
		name          string
		email         string
		password      string
		setupMock     func(*MockUserRepository)
		expectedError error
	}{
		{
			name:     "successful login",
			email:    "test@example.com",
			password: "password123",
			setupMock: func(m *MockUserRepository) {
				m.On("FindByEmail", mock.Anything, "test@example.com").Return(&model.User{
					ID:           uuid.New(),
					Email:        "test@example.com",
					PasswordHash: hashPassword(t, "password123"),
					Role:         model.RoleUser,
					IsActive:     true,
				}, nil)
			},
		},
		{
			name:     "invalid credentials - user not found",
			email:    "notfound@example.com",
			password: "password123",
			setupMock: func(m *MockUserRepository) {
				m.On("FindByEmail", mock.Anything, "notfound@example.com").Return(nil, apperrors.ErrUserNotFound)
			},
			expectedError: apperrors.ErrInvalidCredentials,
		},
		{
			name:     "invalid credentials - wrong password",
			email:    "test@example.com",
			password: "wrong",
			setupMock: func(m *MockUserRepository) {
				m.On("FindByEmail", mock.Anything, "test@example.com").Return(&model.User{
					Email:        "test@example.com",
					PasswordHash: hashPassword(t, "password123"),
					IsActive:     true,
				}, nil)
			},
			expectedError: apperrors.ErrInvalidCredentials,
		},
		{
			name:     "inactive account",
			email:    "test@example.com",
			password: "password123",
			setupMock: func(m *MockUserRepository) {
				m.On("FindByEmail", mock.Anything, "test@example.com").Return(&model.User{
					Email:        "test@example.com",
					PasswordHash: hashPassword(t, "password123"),
					IsActive:     false,
				}, nil)
			},
			expectedError: apperrors.ErrInactiveAccount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockUserRepository)
			tt.setupMock(mockRepo)
			rec := &recorderStub{}

			service, tokens := newTestAuthService(mockRepo, rec)
			token, user, err := service.Login(context.Background(), tt.email, tt.password)

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Empty(t, token)
				assert.Nil(t, user)
				assert.Empty(t, rec.actions())
			} else {
				require.NoError(t, err)
				require.NotNil(t, user)
				claims, err := tokens.Verify(token)
				require.NoError(t, err)
				assert.Equal(t, tt.email, claims.Subject)
				assert.Equal(t, 30*time.Minute, claims.ExpiresAt.Sub(claims.IssuedAt))
				assert.Equal(t, []activity.Action{activity.ActionLoginSuccess}, rec.actions())
			}

			mockRepo.AssertExpectations(t)
		})
	}
}

func TestAuthService_Login_StoreFailure(t *testing.T) {
	mockRepo := new(MockUserRepository)
	mockRepo.On("FindByEmail", mock.Anything, "a@x.com").Return(nil, errors.New("connection refused"))

	service, _ := newTestAuthService(mockRepo, nil)
	_, _, err := service.Login(context.Background(), "a@x.com", "pw")

	require.Error(t, err)
	assert.NotErrorIs(t, err, apperrors.ErrInvalidCredentials)
}

func TestAuthService_EnsureAdmin(t *testing.T) {
	mockRepo := new(MockUserRepository)
	mockRepo.On("FindByEmail", mock.Anything, "admin@example.com").Return(nil, apperrors.ErrUserNotFound).Once()
	mockRepo.On("Create", mock.Anything, mock.MatchedBy(func(u *model.User) bool {
		return u.Role == model.RoleAdmin && u.IsActive && u.FullName == "Admin User"
	})).Return(nil).Once()

	service, _ := newTestAuthService(mockRepo, nil)
	created, err := service.EnsureAdmin(context.Background(), "admin@example.com", "adminpassword")
	require.NoError(t, err)
	assert.True(t, created)

	mockRepo.On("FindByEmail", mock.Anything, "admin@example.com").Return(&model.User{Email: "admin@example.com"}, nil).Once()
	created, err = service.EnsureAdmin(context.Background(), "admin@example.com", "adminpassword")
	require.NoError(t, err)
	assert.False(t, created)

	mockRepo.AssertExpectations(t)
}

func TestAuthService_TokenTTLDefault(t *testing.T) {
	service := NewAuthService(new(MockUserRepository), auth.NewJWTService("s", 0), 0, nil, nil)
	assert.Equal(t, auth.DefaultTokenTTL, service.TokenTTL())
}
