package models

import "github.com/shopspring/decimal"

type BrandStatus string

const (
	BrandActive  BrandStatus = "Active"
	BrandStopped BrandStatus = "Stopped"
)

// Brand is a sponsor paying RatePer100K for every 100,000 credited views.
type Brand struct {
	ID          string          `gorm:"primaryKey" json:"id"`
	Name        string          `gorm:"not null" json:"name"`
	Slug        string          `gorm:"uniqueIndex;not null" json:"slug"`
	RatePer100K decimal.Decimal `gorm:"type:numeric(12,4);not null;default:0" json:"rate_per_100k"`
	Status      BrandStatus     `gorm:"type:varchar(16);not null;default:'Active'" json:"status"`
	Description string          `json:"description,omitempty"`

	Timestamps
}

func (b *Brand) IsActive() bool { return b.Status == BrandActive }
