package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// never write through associations; related rows are owned by their own repositories
var clauseAssociations = []string{clause.Associations}

// Repositories groups repositories bound to the same connection or transaction.
type Repositories struct {
	Users     UserRepository
	Projects  ProjectRepository
	Donations DonationRepository
}

// Transactor runs a unit of work atomically.
type Transactor interface {
	// WithTransaction executes fn within a database transaction. The
	// repositories passed to fn are bound to the transaction; returning an
	// error rolls every write back.
	WithTransaction(ctx context.Context, fn func(ctx context.Context, tx Repositories) error) error
}

type transactor struct {
	db *gorm.DB
}

// NewTransactor creates a gorm-backed Transactor.
func NewTransactor(db *gorm.DB) Transactor {
	return &transactor{db: db}
}

// NewRepositories builds the repository set over db.
func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Users:     NewUserRepository(db),
		Projects:  NewProjectRepository(db),
		Donations: NewDonationRepository(db),
	}
}

func (t *transactor) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx Repositories) error) error {
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, NewRepositories(tx))
	})
}
