package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/visionvansh/clipifypost-sub001/models"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// writeAudit must run on the same tx as the mutation it describes.
func writeAudit(tx *gorm.DB, now time.Time, actorID, action, resourceType, resourceID string, before, after any) error {
	entry := models.AuditLog{
		ID:           uuid.NewString(),
		ActorID:      actorID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Before:       snapshot(before),
		After:        snapshot(after),
		CreatedAt:    now,
	}
	return tx.Create(&entry).Error
}

func snapshot(v any) datatypes.JSON {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}

type AuditService struct {
	DB *gorm.DB
}

func NewAuditService(db *gorm.DB) *AuditService {
	return &AuditService{DB: db}
}

// List returns the newest entries first, optionally narrowed to one resource.
func (s *AuditService) List(ctx context.Context, resourceType, resourceID string, limit int) ([]models.AuditLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := s.DB.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if resourceType != "" {
		q = q.Where("resource_type = ?", resourceType)
	}
	if resourceID != "" {
		q = q.Where("resource_id = ?", resourceID)
	}
	var entries []models.AuditLog
	if err := q.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
