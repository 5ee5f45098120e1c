package service

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"donations/internal/cache"
	"donations/internal/db/dbtest"
	"donations/internal/model"
	"donations/internal/repository"
)

type fixture struct {
	db    *gorm.DB
	repos repository.Repositories
	cache *cache.Client
	redis *miniredis.Miniredis
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gormDB := dbtest.Open(t)
	mr := miniredis.RunT(t)
	c := cache.New(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = c.Close() })
	return &fixture{
		db:    gormDB,
		repos: repository.NewRepositories(gormDB),
		cache: c,
		redis: mr,
	}
}

func (f *fixture) user(t *testing.T, email string) *model.User {
	t.Helper()
	u := &model.User{Email: email, PasswordHash: "x", FullName: "Donor", Role: model.RoleUser, IsActive: true}
	require.NoError(t, f.repos.Users.Create(context.Background(), u))
	return u
}

func (f *fixture) project(t *testing.T, target, current int64, active bool) *model.Project {
	t.Helper()
	p := &model.Project{
		Name:          "Clean water",
		Description:   "Wells",
		TargetAmount:  decimal.NewFromInt(target),
		CurrentAmount: decimal.NewFromInt(current),
		IsActive:      active,
	}
	require.NoError(t, f.repos.Projects.Create(context.Background(), p))
	return p
}

func (f *fixture) reload(t *testing.T, p *model.Project) *model.Project {
	t.Helper()
	got, err := f.repos.Projects.FindByID(context.Background(), p.ID)
	require.NoError(t, err)
	return got
}

func (f *fixture) donationCount(t *testing.T, p *model.Project) int64 {
	t.Helper()
	n, err := f.repos.Donations.CountByProject(context.Background(), p.ID)
	require.NoError(t, err)
	return n
}
