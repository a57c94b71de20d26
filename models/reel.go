package models

import "time"

type ReelStatus string

const (
	ReelPending     ReelStatus = "PENDING"
	ReelApproved    ReelStatus = "APPROVED"
	ReelDisapproved ReelStatus = "DISAPPROVED"
)

func (s ReelStatus) Valid() bool {
	switch s {
	case ReelPending, ReelApproved, ReelDisapproved:
		return true
	}
	return false
}

// UserReel is a submitted clip. Views holds the live figure; the credited figure
// is always replayed from ReelStatusHistory.
type UserReel struct {
	ID                 string     `gorm:"primaryKey" json:"id"`
	StudentID          string     `gorm:"index;not null" json:"student_id"`
	Student            *Student   `gorm:"foreignKey:StudentID" json:"student,omitempty"`
	BrandID            string     `gorm:"index;not null" json:"brand_id"`
	Brand              *Brand     `gorm:"foreignKey:BrandID" json:"brand,omitempty"`
	VideoURL           string     `gorm:"not null" json:"video_url"`
	Status             ReelStatus `gorm:"type:varchar(16);index;not null" json:"status"`
	Views              int64      `gorm:"not null;default:0" json:"views"`
	PublishedURL       string     `json:"published_url,omitempty"`
	ViewsLocked        bool       `gorm:"not null;default:false" json:"views_locked"`
	DisapprovalMessage string     `json:"disapproval_message,omitempty"`

	Timestamps
}

// ReelStatusHistory is an append-only ledger row. The autoincrement ID breaks
// ties between rows written in the same instant.
type ReelStatusHistory struct {
	ID        uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	ReelID    string     `gorm:"index:idx_history_reel_created,priority:1;not null" json:"reel_id"`
	Reel      *UserReel  `gorm:"foreignKey:ReelID" json:"-"`
	Status    ReelStatus `gorm:"type:varchar(16);index;not null" json:"status"`
	Views     int64      `gorm:"not null" json:"views"`
	CreatedAt time.Time  `gorm:"index:idx_history_reel_created,priority:2;not null" json:"created_at"`
}
