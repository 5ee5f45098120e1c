package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Project is a fundraising goal that donations accumulate against.
type Project struct {
	ID            uuid.UUID       `json:"id" gorm:"type:char(36);primaryKey"`
	Name          string          `json:"name" gorm:"size:255;not null;index"`
	Description   string          `json:"description" gorm:"type:text"`
	TargetAmount  decimal.Decimal `json:"target_amount" gorm:"type:decimal(20,2);not null"`
	CurrentAmount decimal.Decimal `json:"current_amount" gorm:"type:decimal(20,2);not null"`
	IsActive      bool            `json:"is_active" gorm:"not null;index"`
	CreatedAt     time.Time       `json:"created_at" gorm:"index"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// BeforeCreate sets UUID before creating the record.
func (p *Project) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
