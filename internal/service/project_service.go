package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"donations/internal/activity"
	"donations/internal/cache"
	apperrors "donations/internal/errors"
	"donations/internal/model"
	"donations/internal/repository"
)

// projectCacheTTL bounds how long a balance read just before a concurrent
// donation commits can be served after the ledger's invalidation.
const projectCacheTTL = 30 * time.Second

func projectCacheKey(id uuid.UUID) string {
	return fmt.Sprintf("project:%s", id.String())
}

// ProjectInput carries the editable fields of a new project.
type ProjectInput struct {
	Name         string
	Description  string
	TargetAmount decimal.Decimal
	IsActive     bool
}

// ProjectPatch carries a partial update; nil fields are left unchanged.
type ProjectPatch struct {
	Name         *string
	Description  *string
	TargetAmount *decimal.Decimal
	IsActive     *bool
}

// ProjectService handles project administration and lookups.
type ProjectService interface {
	Create(ctx context.Context, actor string, input ProjectInput) (*model.Project, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Project, error)
	List(ctx context.Context, activeOnly bool, offset, limit int) ([]model.Project, error)
	Update(ctx context.Context, actor string, id uuid.UUID, patch ProjectPatch) (*model.Project, error)
	Delete(ctx context.Context, actor string, id uuid.UUID) error
	Import(ctx context.Context, projects []model.Project) (created, updated int, err error)
}

type projectService struct {
	tx       repository.Transactor
	projects repository.ProjectRepository
	cache    *cache.Client
	activity activity.Recorder
}

// NewProjectService creates a new project service.
func NewProjectService(
	tx repository.Transactor,
	repos repository.Repositories,
	cache *cache.Client,
	recorder activity.Recorder,
) ProjectService {
	return &projectService{
		tx:       tx,
		projects: repos.Projects,
		cache:    cache,
		activity: recorder,
	}
}

// Create validates and stores a new project with a zero balance.
func (s *projectService) Create(ctx context.Context, actor string, input ProjectInput) (*model.Project, error) {
	if !input.TargetAmount.IsPositive() {
		return nil, apperrors.ErrInvalidTargetAmount
	}
	project := &model.Project{
		Name:          strings.TrimSpace(input.Name),
		Description:   input.Description,
		TargetAmount:  input.TargetAmount,
		CurrentAmount: decimal.Zero,
		IsActive:      input.IsActive,
	}
	if err := s.projects.Create(ctx, project); err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	s.record(ctx, actor, activity.ActionCreateProject, project.ID)
	return project, nil
}

// Get retrieves a project by ID with caching.
func (s *projectService) Get(ctx context.Context, id uuid.UUID) (*model.Project, error) {
	// Try cache first
	if data, _ := s.cache.Get(ctx, projectCacheKey(id)); data != nil {
		var cached model.Project
		if err := json.Unmarshal(data, &cached); err == nil {
			return &cached, nil
		}
	}

	project, err := s.projects.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(project); err == nil {
		_ = s.cache.Set(ctx, projectCacheKey(id), payload, projectCacheTTL)
	}
	return project, nil
}

// List returns projects newest first.
func (s *projectService) List(ctx context.Context, activeOnly bool, offset, limit int) ([]model.Project, error) {
	return s.projects.List(ctx, activeOnly, offset, limit)
}

// Update applies patch to the project. The balance is never editable here.
func (s *projectService) Update(ctx context.Context, actor string, id uuid.UUID, patch ProjectPatch) (*model.Project, error) {
	project, err := s.projects.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		project.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		project.Description = *patch.Description
	}
	if patch.TargetAmount != nil {
		if !patch.TargetAmount.IsPositive() {
			return nil, apperrors.ErrInvalidTargetAmount
		}
		project.TargetAmount = *patch.TargetAmount
	}
	if patch.IsActive != nil {
		project.IsActive = *patch.IsActive
	}

	if err := s.projects.Update(ctx, project); err != nil {
		return nil, fmt.Errorf("update project: %w", err)
	}
	_ = s.cache.Delete(ctx, projectCacheKey(id))
	s.record(ctx, actor, activity.ActionUpdateProject, id)
	return project, nil
}

// Delete removes a project that has not received any donation. The project
// row is locked first, so a concurrent Donate either commits before the
// count or waits until the project is gone.
func (s *projectService) Delete(ctx context.Context, actor string, id uuid.UUID) error {
	err := s.tx.WithTransaction(ctx, func(ctx context.Context, tx repository.Repositories) error {
		if _, err := tx.Projects.FindByIDForUpdate(ctx, id); err != nil {
			return err
		}
		n, err := tx.Donations.CountByProject(ctx, id)
		if err != nil {
			return fmt.Errorf("count donations: %w", err)
		}
		if n > 0 {
			return apperrors.ErrProjectHasDonations
		}
		return tx.Projects.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	_ = s.cache.Delete(ctx, projectCacheKey(id))
	s.record(ctx, actor, activity.ActionDeleteProject, id)
	return nil
}

// Import creates or updates projects from external data. Balances of
// existing projects are kept; new projects start at zero.
func (s *projectService) Import(ctx context.Context, projects []model.Project) (created, updated int, err error) {
	for _, p := range projects {
		if !p.TargetAmount.IsPositive() {
			return created, updated, fmt.Errorf("import project %s: %w", p.ID, apperrors.ErrInvalidTargetAmount)
		}

		existing, err := s.projects.FindByID(ctx, p.ID)
		switch {
		case err == nil:
			existing.Name = p.Name
			existing.Description = p.Description
			existing.TargetAmount = p.TargetAmount
			existing.IsActive = p.IsActive
			if err := s.projects.Update(ctx, existing); err != nil {
				return created, updated, fmt.Errorf("update project %s: %w", p.ID, err)
			}
			updated++
		case errors.Is(err, apperrors.ErrProjectNotFound):
			p := p
			p.CurrentAmount = decimal.Zero
			if err := s.projects.Create(ctx, &p); err != nil {
				return created, updated, fmt.Errorf("create project %s: %w", p.ID, err)
			}
			created++
		default:
			return created, updated, fmt.Errorf("import project %s: %w", p.ID, err)
		}

		// Invalidate cache
		_ = s.cache.Delete(ctx, projectCacheKey(p.ID))
	}
	return created, updated, nil
}

func (s *projectService) record(ctx context.Context, actor string, action activity.Action, id uuid.UUID) {
	if s.activity == nil {
		return
	}
	s.activity.Record(ctx, activity.Entry{
		UserEmail: actor,
		Action:    action,
		Details:   map[string]interface{}{"project_id": id.String()},
	})
}
