package models

import (
	"strings"

	"github.com/gosimple/unidecode"
	"gorm.io/gorm"
)

// Student is a creator account. IDs are issued by the external auth service;
// students first seen on the chat platform get a placeholder ID until they sign up.
type Student struct {
	ID                string `gorm:"primaryKey" json:"id"`
	Username          string `gorm:"index" json:"username"`
	Email             string `gorm:"index" json:"email,omitempty"`
	ChatID            *int64 `gorm:"uniqueIndex" json:"chat_id,omitempty"`
	ChatUsername      string `json:"chat_username,omitempty"`
	ChatEmail         string `json:"chat_email,omitempty"`
	SignedUpToWebsite bool   `gorm:"not null;default:false" json:"signed_up_to_website"`

	// folded username/email, maintained on save for accent-insensitive search
	SearchKey string `gorm:"index" json:"-"`

	Timestamps
}

func (s *Student) BeforeSave(tx *gorm.DB) error {
	s.SearchKey = FoldSearchText(s.Username + " " + s.ChatUsername + " " + s.Email)
	return nil
}

// DisplayName prefers the website username, falling back to the chat handle.
func (s *Student) DisplayName() string {
	if s.Username != "" {
		return s.Username
	}
	if s.ChatUsername != "" {
		return s.ChatUsername
	}
	return s.ID
}

// FoldSearchText lowercases and strips accents so "José" matches "jose".
func FoldSearchText(s string) string {
	return strings.ToLower(strings.TrimSpace(unidecode.Unidecode(s)))
}
