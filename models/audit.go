package models

import (
	"time"

	"gorm.io/datatypes"
)

// AuditLog records admin mutations with before/after snapshots.
type AuditLog struct {
	ID           string         `gorm:"primaryKey" json:"id"`
	ActorID      string         `gorm:"index;not null" json:"actor_id"`
	Action       string         `gorm:"index;not null" json:"action"`
	ResourceType string         `gorm:"index:idx_audit_resource,priority:1;not null" json:"resource_type"`
	ResourceID   string         `gorm:"index:idx_audit_resource,priority:2;not null" json:"resource_id"`
	Before       datatypes.JSON `json:"before,omitempty"`
	After        datatypes.JSON `json:"after,omitempty"`
	CreatedAt    time.Time      `gorm:"index" json:"created_at"`
}
