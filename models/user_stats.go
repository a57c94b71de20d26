package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// UserStatsRecord is the per-month snapshot refreshed from the reel ledger.
// Uploaders hub figures come from reels; editors hub figures are entered by admins.
type UserStatsRecord struct {
	ID     string   `gorm:"primaryKey" json:"id"`
	UserID string   `gorm:"uniqueIndex:idx_stats_user_month,priority:1;not null" json:"user_id"`
	User   *Student `gorm:"foreignKey:UserID" json:"-"`
	Month  string   `gorm:"uniqueIndex:idx_stats_user_month,priority:2;size:7;not null" json:"month"`

	UploadersHubViews   int64           `gorm:"not null;default:0" json:"uploaders_hub_views"`
	UploadersHubRevenue decimal.Decimal `gorm:"type:numeric(14,4);not null;default:0" json:"uploaders_hub_revenue"`
	EditorsHubViews     int64           `gorm:"not null;default:0" json:"editors_hub_views"`
	EditorsHubRevenue   decimal.Decimal `gorm:"type:numeric(14,4);not null;default:0" json:"editors_hub_revenue"`
	TotalViews          int64           `gorm:"not null;default:0" json:"total_views"`
	TotalRevenue        decimal.Decimal `gorm:"type:numeric(14,4);not null;default:0" json:"total_revenue"`

	LastRefreshedAt *time.Time `json:"last_refreshed_at,omitempty"`

	Timestamps
}

// RecomputeTotals keeps totals equal to the sum of both hubs.
func (r *UserStatsRecord) RecomputeTotals() {
	r.TotalViews = r.UploadersHubViews + r.EditorsHubViews
	r.TotalRevenue = r.UploadersHubRevenue.Add(r.EditorsHubRevenue)
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
