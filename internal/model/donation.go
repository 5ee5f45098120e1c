package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// MaxDonationMessageLength bounds the optional donor message.
const MaxDonationMessageLength = 500

// Donation is an immutable contribution from a user to a project.
type Donation struct {
	ID           uuid.UUID       `json:"id" gorm:"type:char(36);primaryKey"`
	Amount       decimal.Decimal `json:"amount" gorm:"type:decimal(20,2);not null"`
	Message      string          `json:"message,omitempty" gorm:"size:500"`
	DonationDate time.Time       `json:"donation_date" gorm:"not null;index"`
	UserID       uuid.UUID       `json:"user_id" gorm:"type:char(36);not null;index"`
	ProjectID    uuid.UUID       `json:"project_id" gorm:"type:char(36);not null;index"`

	// Relations
	Donor   *User    `json:"donor,omitempty" gorm:"foreignKey:UserID"`
	Project *Project `json:"project,omitempty" gorm:"foreignKey:ProjectID"`
}

// BeforeCreate sets UUID before creating the record.
func (d *Donation) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
