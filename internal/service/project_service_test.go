package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"donations/internal/activity"
	apperrors "donations/internal/errors"
	"donations/internal/model"
	"donations/internal/repository"
)

func TestProjectService_Create(t *testing.T) {
	f := newFixture(t)
	rec := &recorderStub{}
	svc := NewProjectService(repository.NewTransactor(f.db), f.repos, f.cache, rec)
	ctx := context.Background()

	p, err := svc.Create(ctx, "admin@example.com", ProjectInput{
		Name:         "  School roof ",
		TargetAmount: decimal.NewFromInt(500),
		IsActive:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, "School roof", p.Name)
	assert.True(t, p.CurrentAmount.IsZero())
	assert.Equal(t, []activity.Action{activity.ActionCreateProject}, rec.actions())

	for _, target := range []decimal.Decimal{decimal.Zero, decimal.NewFromInt(-1)} {
		_, err := svc.Create(ctx, "admin@example.com", ProjectInput{Name: "x", TargetAmount: target})
		assert.ErrorIs(t, err, apperrors.ErrInvalidTargetAmount)
	}
}

func TestProjectService_GetUsesCache(t *testing.T) {
	f := newFixture(t)
	svc := NewProjectService(repository.NewTransactor(f.db), f.repos, f.cache, nil)
	p := f.project(t, 1000, 0, true)
	ctx := context.Background()

	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Name, got.Name)

	ttl := f.redis.TTL(projectCacheKey(p.ID))
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, 30*time.Second)

	// a row deleted behind the service's back is still served from cache
	require.NoError(t, f.db.Delete(&model.Project{}, "id = ?", p.ID).Error)
	got, err = svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	f.redis.FlushAll()
	_, err = svc.Get(ctx, p.ID)
	assert.ErrorIs(t, err, apperrors.ErrProjectNotFound)
}

func TestProjectService_GetWithoutRedis(t *testing.T) {
	f := newFixture(t)
	svc := NewProjectService(repository.NewTransactor(f.db), f.repos, nil, nil)
	p := f.project(t, 1000, 0, true)

	got, err := svc.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
}

func TestProjectService_List(t *testing.T) {
	f := newFixture(t)
	svc := NewProjectService(repository.NewTransactor(f.db), f.repos, f.cache, nil)
	f.project(t, 1000, 0, true)
	f.project(t, 1000, 0, false)
	f.project(t, 1000, 0, true)
	ctx := context.Background()

	active, err := svc.List(ctx, true, 0, 10)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	all, err := svc.List(ctx, false, 0, 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestProjectService_Update(t *testing.T) {
	f := newFixture(t)
	rec := &recorderStub{}
	svc := NewProjectService(repository.NewTransactor(f.db), f.repos, f.cache, rec)
	p := f.project(t, 1000, 40, true)
	ctx := context.Background()

	_, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)

	name := "Renamed"
	inactive := false
	target := decimal.NewFromInt(2000)
	updated, err := svc.Update(ctx, "admin@example.com", p.ID, ProjectPatch{Name: &name, IsActive: &inactive, TargetAmount: &target})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.False(t, updated.IsActive)
	assert.Equal(t, "Wells", updated.Description)

	stored := f.reload(t, p)
	assert.Equal(t, "Renamed", stored.Name)
	assert.False(t, stored.IsActive)
	assert.Equal(t, "2000.00", stored.TargetAmount.StringFixed(2))
	assert.Equal(t, "40.00", stored.CurrentAmount.StringFixed(2))
	assert.False(t, f.redis.Exists(projectCacheKey(p.ID)))
	assert.Equal(t, []activity.Action{activity.ActionUpdateProject}, rec.actions())

	bad := decimal.Zero
	_, err = svc.Update(ctx, "admin@example.com", p.ID, ProjectPatch{TargetAmount: &bad})
	assert.ErrorIs(t, err, apperrors.ErrInvalidTargetAmount)

	_, err = svc.Update(ctx, "admin@example.com", uuid.New(), ProjectPatch{Name: &name})
	assert.ErrorIs(t, err, apperrors.ErrProjectNotFound)
}

func TestProjectService_Delete(t *testing.T) {
	f := newFixture(t)
	svc := NewProjectService(repository.NewTransactor(f.db), f.repos, f.cache, nil)
	ledger := newTestLedger(f, nil)
	ctx := context.Background()

	empty := f.project(t, 1000, 0, true)
	require.NoError(t, svc.Delete(ctx, "admin@example.com", empty.ID))
	_, err := f.repos.Projects.FindByID(ctx, empty.ID)
	assert.ErrorIs(t, err, apperrors.ErrProjectNotFound)

	assert.ErrorIs(t, svc.Delete(ctx, "admin@example.com", uuid.New()), apperrors.ErrProjectNotFound)

	funded := f.project(t, 1000, 0, true)
	donor := f.user(t, "a@x.com")
	_, err = ledger.Donate(ctx, funded.ID, decimal.NewFromInt(3), "", donor.ID)
	require.NoError(t, err)
	assert.ErrorIs(t, svc.Delete(ctx, "admin@example.com", funded.ID), apperrors.ErrProjectHasDonations)
}

// lockingProjects records which projects were locked for update.
type lockingProjects struct {
	repository.ProjectRepository
	locked *[]uuid.UUID
}

func (l lockingProjects) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Project, error) {
	*l.locked = append(*l.locked, id)
	return l.ProjectRepository.FindByIDForUpdate(ctx, id)
}

func TestProjectService_DeleteLocksProjectInTransaction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var locked []uuid.UUID
	tx := wrappingTransactor{
		inner: repository.NewTransactor(f.db),
		wrap: func(r repository.Repositories) repository.Repositories {
			r.Projects = lockingProjects{ProjectRepository: r.Projects, locked: &locked}
			return r
		},
	}
	svc := NewProjectService(tx, f.repos, f.cache, nil)

	p := f.project(t, 1000, 0, true)
	require.NoError(t, svc.Delete(ctx, "admin@example.com", p.ID))
	assert.Equal(t, []uuid.UUID{p.ID}, locked)

	kept := f.project(t, 1000, 0, true)
	broken := NewProjectService(stubTransactor{err: errors.New("lock wait timeout")}, f.repos, f.cache, nil)
	assert.Error(t, broken.Delete(ctx, "admin@example.com", kept.ID))
	assert.Equal(t, kept.ID, f.reload(t, kept).ID)
}

func TestProjectService_Import(t *testing.T) {
	f := newFixture(t)
	svc := NewProjectService(repository.NewTransactor(f.db), f.repos, f.cache, nil)
	existing := f.project(t, 1000, 25, true)
	ctx := context.Background()

	fresh := model.Project{ID: uuid.New(), Name: "New", TargetAmount: decimal.NewFromInt(300), CurrentAmount: decimal.NewFromInt(999), IsActive: true}
	changed := model.Project{ID: existing.ID, Name: "Changed", TargetAmount: decimal.NewFromInt(1500), IsActive: false}

	created, updated, err := svc.Import(ctx, []model.Project{fresh, changed})
	require.NoError(t, err)
	assert.Equal(t, 1, created)
	assert.Equal(t, 1, updated)

	got := f.reload(t, &fresh)
	assert.Equal(t, "New", got.Name)
	assert.True(t, got.CurrentAmount.IsZero())

	got = f.reload(t, existing)
	assert.Equal(t, "Changed", got.Name)
	assert.False(t, got.IsActive)
	assert.Equal(t, "25.00", got.CurrentAmount.StringFixed(2))

	_, _, err = svc.Import(ctx, []model.Project{{ID: uuid.New(), Name: "bad", TargetAmount: decimal.Zero}})
	assert.ErrorIs(t, err, apperrors.ErrInvalidTargetAmount)
}
