package service

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"donations/internal/activity"
	"donations/internal/cache"
	apperrors "donations/internal/errors"
	"donations/internal/metrics"
	"donations/internal/model"
	"donations/internal/repository"
)

// MySQL server error numbers that abort a transaction without it being at fault.
const (
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
)

// Stats summarises the ledger for the admin dashboard.
type Stats struct {
	Projects  int64 `json:"projects"`
	Donations int64 `json:"donations"`
}

// LedgerService records donations and keeps project balances consistent.
type LedgerService interface {
	Donate(ctx context.Context, projectID uuid.UUID, amount decimal.Decimal, message string, donorID uuid.UUID) (*model.Donation, error)
	ListByUser(ctx context.Context, userID uuid.UUID, offset, limit int) ([]model.Donation, error)
	ListByProject(ctx context.Context, projectID uuid.UUID, offset, limit int) ([]model.Donation, error)
	ListAll(ctx context.Context, offset, limit int) ([]model.Donation, error)
	Stats(ctx context.Context) (Stats, error)
}

// LedgerOption configures a ledger service.
type LedgerOption func(*ledgerService)

// WithLedgerClock overrides the clock used for donation dates.
func WithLedgerClock(now func() time.Time) LedgerOption {
	return func(s *ledgerService) {
		s.now = now
	}
}

type ledgerService struct {
	tx       repository.Transactor
	repos    repository.Repositories
	cache    *cache.Client
	activity activity.Recorder
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewLedgerService creates a new ledger service.
func NewLedgerService(
	tx repository.Transactor,
	repos repository.Repositories,
	cache *cache.Client,
	recorder activity.Recorder,
	m *metrics.Metrics,
	opts ...LedgerOption,
) LedgerService {
	s := &ledgerService{
		tx:       tx,
		repos:    repos,
		cache:    cache,
		activity: recorder,
		metrics:  m,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// validateAmount accepts positive amounts with at most cent precision.
func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperrors.ErrInvalidAmount
	}
	if !amount.Equal(amount.Round(2)) {
		return apperrors.ErrInvalidAmount
	}
	return nil
}

// Donate records a donation and adds it to the project balance in one
// transaction. The project row stays locked until commit so concurrent
// donations to the same project serialise.
func (s *ledgerService) Donate(ctx context.Context, projectID uuid.UUID, amount decimal.Decimal, message string, donorID uuid.UUID) (*model.Donation, error) {
	if err := validateAmount(amount); err != nil {
		s.metrics.DonationRejected("invalid_amount")
		return nil, err
	}
	if utf8.RuneCountInString(message) > model.MaxDonationMessageLength {
		s.metrics.DonationRejected("invalid_message")
		return nil, apperrors.ErrMessageTooLong
	}

	var (
		donation *model.Donation
		donor    *model.User
	)
	err := s.tx.WithTransaction(ctx, func(ctx context.Context, tx repository.Repositories) error {
		project, err := tx.Projects.FindByIDForUpdate(ctx, projectID)
		if err != nil {
			return err
		}
		if !project.IsActive {
			return apperrors.ErrProjectNotFound
		}

		donor, err = tx.Users.FindByID(ctx, donorID)
		if err != nil {
			return err
		}

		donation = &model.Donation{
			Amount:       amount,
			Message:      message,
			DonationDate: s.now().UTC(),
			UserID:       donorID,
			ProjectID:    projectID,
		}
		if err := tx.Donations.Create(ctx, donation); err != nil {
			return fmt.Errorf("create donation: %w", err)
		}

		return tx.Projects.IncrementCurrentAmount(ctx, projectID, amount)
	})
	if err != nil {
		err = classifyLedgerError(err)
		s.metrics.DonationRejected(ledgerOutcome(err))
		return nil, err
	}

	_ = s.cache.Delete(ctx, projectCacheKey(projectID))
	s.metrics.DonationCommitted(amount)
	if s.activity != nil {
		s.activity.Record(ctx, activity.Entry{
			UserEmail: donor.Email,
			Action:    activity.ActionMakeDonation,
			Details: map[string]interface{}{
				"project_id":  projectID.String(),
				"donation_id": donation.ID.String(),
				"amount":      amount.StringFixed(2),
			},
		})
	}
	return donation, nil
}

// classifyLedgerError maps store aborts to ErrStorageConflict and leaves
// domain errors untouched.
func classifyLedgerError(err error) error {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlDeadlock, mysqlLockWaitTimeout:
			return fmt.Errorf("%w: %v", apperrors.ErrStorageConflict, err)
		}
	}
	return err
}

func ledgerOutcome(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrProjectNotFound):
		return "project_not_found"
	case errors.Is(err, apperrors.ErrStorageConflict):
		return "conflict"
	case errors.Is(err, apperrors.ErrUserNotFound):
		return "donor_not_found"
	default:
		return "error"
	}
}

// ListByUser returns the user's donations, newest first.
func (s *ledgerService) ListByUser(ctx context.Context, userID uuid.UUID, offset, limit int) ([]model.Donation, error) {
	return s.repos.Donations.ListByUser(ctx, userID, offset, limit)
}

// ListByProject returns the project's donations, newest first.
func (s *ledgerService) ListByProject(ctx context.Context, projectID uuid.UUID, offset, limit int) ([]model.Donation, error) {
	return s.repos.Donations.ListByProject(ctx, projectID, offset, limit)
}

// ListAll returns every donation, newest first.
func (s *ledgerService) ListAll(ctx context.Context, offset, limit int) ([]model.Donation, error) {
	return s.repos.Donations.ListAll(ctx, offset, limit)
}

// Stats counts projects and donations.
func (s *ledgerService) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	var err error
	if st.Projects, err = s.repos.Projects.Count(ctx); err != nil {
		return Stats{}, fmt.Errorf("count projects: %w", err)
	}
	if st.Donations, err = s.repos.Donations.Count(ctx); err != nil {
		return Stats{}, fmt.Errorf("count donations: %w", err)
	}
	return st, nil
}
