package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type InviteStatus string

const (
	InvitePending  InviteStatus = "pending"
	InviteApproved InviteStatus = "approved"
)

// Invite links an inviter to an invited student. At most one live row per pair.
type Invite struct {
	ID              string       `gorm:"primaryKey" json:"id"`
	InviterID       string       `gorm:"index:idx_invite_pair,priority:1;not null" json:"inviter_id"`
	Inviter         *Student     `gorm:"foreignKey:InviterID" json:"-"`
	InvitedID       string       `gorm:"index:idx_invite_pair,priority:2;index;not null" json:"invited_id"`
	Invited         *Student     `gorm:"foreignKey:InvitedID" json:"-"`
	InvitedUsername string       `json:"invited_username"`
	Status          InviteStatus `gorm:"type:varchar(16);index;not null;default:'pending'" json:"status"`

	Timestamps
}

// InviteStats caches the invite count per inviter. Always recomputed from rows.
type InviteStats struct {
	StudentID   string    `gorm:"primaryKey" json:"student_id"`
	Student     *Student  `gorm:"foreignKey:StudentID" json:"-"`
	InviteCount int64     `gorm:"not null;default:0" json:"invite_count"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// InviteCode maps a chat invite link (or generated code) to its owner.
type InviteCode struct {
	Code      string    `gorm:"primaryKey" json:"code"`
	StudentID string    `gorm:"uniqueIndex;not null" json:"student_id"`
	Student   *Student  `gorm:"foreignKey:StudentID" json:"-"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// ReferralEarning is the cumulative amount paid to a student for a month.
type ReferralEarning struct {
	ID        string          `gorm:"primaryKey" json:"id"`
	StudentID string          `gorm:"uniqueIndex:idx_earning_student_month,priority:1;not null" json:"student_id"`
	Student   *Student        `gorm:"foreignKey:StudentID" json:"-"`
	InvitedID *string         `json:"invited_id,omitempty"`
	Amount    decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"amount"`
	Month     string          `gorm:"uniqueIndex:idx_earning_student_month,priority:2;size:7;not null" json:"month"`

	Timestamps
}
