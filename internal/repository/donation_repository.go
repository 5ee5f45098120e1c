package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"donations/internal/model"
)

// DonationRepository defines donation persistence operations. Donations are
// append-only: there is no update or delete.
type DonationRepository interface {
	Create(ctx context.Context, donation *model.Donation) error
	ListByUser(ctx context.Context, userID uuid.UUID, offset, limit int) ([]model.Donation, error)
	ListByProject(ctx context.Context, projectID uuid.UUID, offset, limit int) ([]model.Donation, error)
	ListAll(ctx context.Context, offset, limit int) ([]model.Donation, error)
	CountByProject(ctx context.Context, projectID uuid.UUID) (int64, error)
	Count(ctx context.Context) (int64, error)
}

type donationRepository struct {
	db *gorm.DB
}

// NewDonationRepository creates a new donation repository.
func NewDonationRepository(db *gorm.DB) DonationRepository {
	return &donationRepository{db: db}
}

// Create creates a new donation record.
func (r *donationRepository) Create(ctx context.Context, donation *model.Donation) error {
	return r.db.WithContext(ctx).Omit(clauseAssociations...).Create(donation).Error
}

// ListByUser returns the user's donations with their projects, newest first.
func (r *donationRepository) ListByUser(ctx context.Context, userID uuid.UUID, offset, limit int) ([]model.Donation, error) {
	var donations []model.Donation
	err := r.db.WithContext(ctx).Preload("Project").
		Where("user_id = ?", userID).
		Order("donation_date desc").Offset(offset).Limit(limit).
		Find(&donations).Error
	return donations, err
}

// ListByProject returns the project's donations with their donors, newest first.
func (r *donationRepository) ListByProject(ctx context.Context, projectID uuid.UUID, offset, limit int) ([]model.Donation, error) {
	var donations []model.Donation
	err := r.db.WithContext(ctx).Preload("Donor").
		Where("project_id = ?", projectID).
		Order("donation_date desc").Offset(offset).Limit(limit).
		Find(&donations).Error
	return donations, err
}

// ListAll returns every donation with donor and project, newest first.
func (r *donationRepository) ListAll(ctx context.Context, offset, limit int) ([]model.Donation, error) {
	var donations []model.Donation
	err := r.db.WithContext(ctx).Preload("Donor").Preload("Project").
		Order("donation_date desc").Offset(offset).Limit(limit).
		Find(&donations).Error
	return donations, err
}

// CountByProject returns how many donations reference the project.
func (r *donationRepository) CountByProject(ctx context.Context, projectID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Donation{}).Where("project_id = ?", projectID).Count(&n).Error
	return n, err
}

// Count returns the total number of donations.
func (r *donationRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Donation{}).Count(&n).Error
	return n, err
}
