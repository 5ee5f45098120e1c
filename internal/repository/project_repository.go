package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "donations/internal/errors"
	"donations/internal/model"
)

// ProjectRepository defines project persistence operations.
type ProjectRepository interface {
	Create(ctx context.Context, project *model.Project) error
	Update(ctx context.Context, project *model.Project) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Project, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Project, error)
	List(ctx context.Context, activeOnly bool, offset, limit int) ([]model.Project, error)
	Count(ctx context.Context) (int64, error)
	IncrementCurrentAmount(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error
}

type projectRepository struct {
	db *gorm.DB
}

// NewProjectRepository creates a new project repository.
func NewProjectRepository(db *gorm.DB) ProjectRepository {
	return &projectRepository{db: db}
}

// Create creates a new project.
func (r *projectRepository) Create(ctx context.Context, project *model.Project) error {
	return r.db.WithContext(ctx).Create(project).Error
}

// Update saves every column of an existing project except current_amount,
// which only the ledger moves.
func (r *projectRepository) Update(ctx context.Context, project *model.Project) error {
	return r.db.WithContext(ctx).Model(project).
		Select("name", "description", "target_amount", "is_active", "updated_at").
		Updates(project).Error
}

// Delete removes a project.
func (r *projectRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Project{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrProjectNotFound
	}
	return nil
}

// FindByID finds a project by ID.
func (r *projectRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Project, error) {
	var project model.Project
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&project).Error; err != nil {
		return nil, notFound(err, apperrors.ErrProjectNotFound)
	}
	return &project, nil
}

// FindByIDForUpdate finds a project by ID with a row-level lock held until the
// surrounding transaction ends.
func (r *projectRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Project, error) {
	var project model.Project
	if err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		Where("id = ?", id).First(&project).Error; err != nil {
		return nil, notFound(err, apperrors.ErrProjectNotFound)
	}
	return &project, nil
}

// List returns projects newest first.
func (r *projectRepository) List(ctx context.Context, activeOnly bool, offset, limit int) ([]model.Project, error) {
	var projects []model.Project
	q := r.db.WithContext(ctx).Model(&model.Project{})
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	if err := q.Order("created_at desc").Offset(offset).Limit(limit).Find(&projects).Error; err != nil {
		return nil, err
	}
	return projects, nil
}

// Count returns the number of projects.
func (r *projectRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Project{}).Count(&n).Error
	return n, err
}

// IncrementCurrentAmount adds amount to the project's balance in a single
// UPDATE so the new value is computed by the database, never by the caller.
func (r *projectRepository) IncrementCurrentAmount(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	res := r.db.WithContext(ctx).Model(&model.Project{}).
		Where("id = ?", id).
		UpdateColumn("current_amount", gorm.Expr("current_amount + ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return fmt.Errorf("increment current amount: %w", apperrors.ErrProjectNotFound)
	}
	return nil
}
