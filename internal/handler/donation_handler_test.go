package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"donations/internal/auth"
	apperrors "donations/internal/errors"
	"donations/internal/model"
	"donations/internal/service"
)

// MockLedgerService is a mock implementation of LedgerService.
type MockLedgerService struct {
	mock.Mock
}

func (m *MockLedgerService) Donate(ctx context.Context, projectID uuid.UUID, amount decimal.Decimal, message string, donorID uuid.UUID) (*model.Donation, error) {
	args := m.Called(ctx, projectID, amount, message, donorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Donation), args.Error(1)
}

func (m *MockLedgerService) ListByUser(ctx context.Context, userID uuid.UUID, offset, limit int) ([]model.Donation, error) {
	args := m.Called(ctx, userID, offset, limit)
	return args.Get(0).([]model.Donation), args.Error(1)
}

func (m *MockLedgerService) ListByProject(ctx context.Context, projectID uuid.UUID, offset, limit int) ([]model.Donation, error) {
	args := m.Called(ctx, projectID, offset, limit)
	return args.Get(0).([]model.Donation), args.Error(1)
}

func (m *MockLedgerService) ListAll(ctx context.Context, offset, limit int) ([]model.Donation, error) {
	args := m.Called(ctx, offset, limit)
	return args.Get(0).([]model.Donation), args.Error(1)
}

func (m *MockLedgerService) Stats(ctx context.Context) (service.Stats, error) {
	args := m.Called(ctx)
	return args.Get(0).(service.Stats), args.Error(1)
}

type testValidator struct {
	v *validator.Validate
}

func (tv *testValidator) Validate(i interface{}) error {
	return tv.v.Struct(i)
}

func newTestDonationHandler(ledger *MockLedgerService) *DonationHandler {
	h := NewDonationHandler(ledger)
	h.newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	return h
}

func newDonationContext(e *echo.Echo, body string, user *model.User) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, "/api/donations", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(SurfaceKey, SurfaceAPI)
	if user != nil {
		c.Set(IdentityKey, auth.Identity{User: user})
	}
	return c, rec
}

func TestDonationHandler_Create(t *testing.T) {
	e := echo.New()
	e.Validator = &testValidator{v: validator.New()}

	donor := &model.User{ID: uuid.New(), Email: "a@x.com", Role: model.RoleUser, IsActive: true}
	projectID := uuid.New()
	body := `{"project_id":"` + projectID.String() + `","amount":"12.50","message":"hi"}`
	amount := decimal.RequireFromString("12.50")
	matchAmount := mock.MatchedBy(func(d decimal.Decimal) bool { return d.Equal(amount) })

	tests := []struct {
		name       string
		user       *model.User
		setupMock  func(*MockLedgerService)
		wantStatus int
		wantErr    error
	}{
		{
			name: "success",
			user: donor,
			setupMock: func(m *MockLedgerService) {
				m.On("Donate", mock.Anything, projectID, matchAmount, "hi", donor.ID).
					Return(&model.Donation{ID: uuid.New(), Amount: amount}, nil).Once()
			},
			wantStatus: http.StatusCreated,
		},
		{
			name: "conflict retried then committed",
			user: donor,
			setupMock: func(m *MockLedgerService) {
				m.On("Donate", mock.Anything, projectID, matchAmount, "hi", donor.ID).
					Return(nil, apperrors.ErrStorageConflict).Twice()
				m.On("Donate", mock.Anything, projectID, matchAmount, "hi", donor.ID).
					Return(&model.Donation{ID: uuid.New(), Amount: amount}, nil).Once()
			},
			wantStatus: http.StatusCreated,
		},
		{
			name: "conflict retries exhausted",
			user: donor,
			setupMock: func(m *MockLedgerService) {
				m.On("Donate", mock.Anything, projectID, matchAmount, "hi", donor.ID).
					Return(nil, apperrors.ErrStorageConflict).Times(maxConflictRetries + 1)
			},
			wantStatus: http.StatusConflict,
		},
		{
			name: "not found is not retried",
			user: donor,
			setupMock: func(m *MockLedgerService) {
				m.On("Donate", mock.Anything, projectID, matchAmount, "hi", donor.ID).
					Return(nil, apperrors.ErrProjectNotFound).Once()
			},
			wantStatus: http.StatusNotFound,
		},
		{
			name:      "anonymous",
			setupMock: func(m *MockLedgerService) {},
			wantErr:   auth.ErrLoginRequired,
		},
		{
			name:      "inactive",
			user:      &model.User{ID: uuid.New(), Email: "b@x.com", IsActive: false},
			setupMock: func(m *MockLedgerService) {},
			wantErr:   auth.ErrInactiveAccount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := new(MockLedgerService)
			tt.setupMock(ledger)
			h := newTestDonationHandler(ledger)

			c, rec := newDonationContext(e, body, tt.user)
			err := h.Create(c)

			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.wantStatus >= http.StatusBadRequest:
				var he *echo.HTTPError
				require.ErrorAs(t, err, &he)
				assert.Equal(t, tt.wantStatus, he.Code)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.wantStatus, rec.Code)
			}
			ledger.AssertExpectations(t)
		})
	}
}

func TestDonationHandler_Create_InvalidBody(t *testing.T) {
	e := echo.New()
	e.Validator = &testValidator{v: validator.New()}
	donor := &model.User{ID: uuid.New(), IsActive: true}
	h := newTestDonationHandler(new(MockLedgerService))

	for _, body := range []string{
		`{"project_id":"nope","amount":"1"}`,
		`{"project_id":"` + uuid.NewString() + `","amount":"abc"}`,
		`{"project_id":"` + uuid.NewString() + `"}`,
		`not json`,
	} {
		c, _ := newDonationContext(e, body, donor)
		err := h.Create(c)
		var he *echo.HTTPError
		require.ErrorAs(t, err, &he, body)
		assert.Equal(t, http.StatusBadRequest, he.Code, body)
	}
}

func TestPagination(t *testing.T) {
	e := echo.New()
	tests := []struct {
		query         string
		offset, limit int
		wantErr       bool
	}{
		{"", 0, defaultLimit, false},
		{"?skip=20&limit=5", 20, 5, false},
		{"?skip=-3&limit=0", 0, defaultLimit, false},
		{"?limit=100000", 0, defaultLimit, false},
		{"?skip=x", 0, 0, true},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/projects"+tt.query, nil)
		c := e.NewContext(req, httptest.NewRecorder())
		offset, limit, err := pagination(c)
		if tt.wantErr {
			assert.Error(t, err, tt.query)
			continue
		}
		require.NoError(t, err, tt.query)
		assert.Equal(t, tt.offset, offset, tt.query)
		assert.Equal(t, tt.limit, limit, tt.query)
	}
}
