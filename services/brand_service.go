package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/visionvansh/clipifypost-sub001/models"
	"github.com/visionvansh/clipifypost-sub001/utils"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type BrandInput struct {
	Name        string          `json:"name" validate:"required,max=120"`
	RatePer100K decimal.Decimal `json:"rate_per_100k"`
	Description string          `json:"description" validate:"max=2000"`
}

func (in BrandInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return validationErr("brand name is required")
	}
	if in.RatePer100K.IsNegative() {
		return validationErr("rate cannot be negative")
	}
	return nil
}

type BrandService struct {
	DB    *gorm.DB
	Log   *zap.Logger
	Cache StatsCache
	Now   func() time.Time
}

func NewBrandService(db *gorm.DB, log *zap.Logger) *BrandService {
	return &BrandService{DB: db, Log: log, Cache: nopCache{}, Now: func() time.Time { return time.Now().UTC() }}
}

func (s *BrandService) Create(ctx context.Context, actorID string, in BrandInput) (*models.Brand, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var brand models.Brand
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sl, err := uniqueSlug(tx, in.Name, "")
		if err != nil {
			return err
		}
		brand = models.Brand{
			ID:          uuid.NewString(),
			Name:        strings.TrimSpace(in.Name),
			Slug:        sl,
			RatePer100K: in.RatePer100K,
			Status:      models.BrandActive,
			Description: in.Description,
		}
		if err := tx.Create(&brand).Error; err != nil {
			return err
		}
		return writeAudit(tx, s.Now(), actorID, "CREATE_BRAND", "brand", brand.ID, nil, brand)
	})
	if err != nil {
		return nil, err
	}
	s.Log.Info("🏷️ Brand created", zap.String("brand_id", brand.ID), zap.String("slug", brand.Slug))
	return &brand, nil
}

// Update edits a brand. A rate change reprices every reel of the brand,
// historical months included.
func (s *BrandService) Update(ctx context.Context, actorID, id string, in BrandInput) (*models.Brand, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var brand models.Brand
	var rateChanged bool
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&brand, "id = ?", id).Error; err != nil {
			return notFound(err, "brand "+id)
		}
		before := brand
		name := strings.TrimSpace(in.Name)
		if name != brand.Name {
			sl, err := uniqueSlug(tx, name, brand.ID)
			if err != nil {
				return err
			}
			brand.Slug = sl
		}
		rateChanged = !brand.RatePer100K.Equal(in.RatePer100K)
		brand.Name = name
		brand.RatePer100K = in.RatePer100K
		brand.Description = in.Description
		if err := tx.Save(&brand).Error; err != nil {
			return err
		}
		return writeAudit(tx, s.Now(), actorID, "UPDATE_BRAND", "brand", brand.ID, before, brand)
	})
	if err != nil {
		return nil, err
	}
	if rateChanged {
		s.invalidateBrandMonths(ctx, brand.ID)
	}
	return &brand, nil
}

func (s *BrandService) SetStatus(ctx context.Context, actorID, id string, status models.BrandStatus) (*models.Brand, error) {
	if status != models.BrandActive && status != models.BrandStopped {
		return nil, validationErr("status must be Active or Stopped")
	}
	var brand models.Brand
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&brand, "id = ?", id).Error; err != nil {
			return notFound(err, "brand "+id)
		}
		before := brand
		brand.Status = status
		if err := tx.Model(&brand).Update("status", status).Error; err != nil {
			return err
		}
		return writeAudit(tx, s.Now(), actorID, "SET_BRAND_STATUS", "brand", brand.ID, before, brand)
	})
	if err != nil {
		return nil, err
	}
	return &brand, nil
}

func (s *BrandService) Get(ctx context.Context, id string) (*models.Brand, error) {
	var brand models.Brand
	if err := s.DB.WithContext(ctx).First(&brand, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "brand "+id)
	}
	return &brand, nil
}

func (s *BrandService) List(ctx context.Context, activeOnly bool) ([]models.Brand, error) {
	q := s.DB.WithContext(ctx).Order("name ASC")
	if activeOnly {
		q = q.Where("status = ?", models.BrandActive)
	}
	var brands []models.Brand
	if err := q.Find(&brands).Error; err != nil {
		return nil, err
	}
	return brands, nil
}

func uniqueSlug(tx *gorm.DB, name, selfID string) (string, error) {
	base := slug.Make(name)
	if base == "" {
		base = "brand"
	}
	candidate := base
	for i := 2; ; i++ {
		var n int64
		q := tx.Unscoped().Model(&models.Brand{}).Where("slug = ?", candidate)
		if selfID != "" {
			q = q.Where("id <> ?", selfID)
		}
		if err := q.Count(&n).Error; err != nil {
			return "", err
		}
		if n == 0 {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
}

func (s *BrandService) invalidateBrandMonths(ctx context.Context, brandID string) {
	var times []time.Time
	if err := s.DB.WithContext(ctx).Model(&models.UserReel{}).Where("brand_id = ?", brandID).Pluck("created_at", &times).Error; err != nil {
		s.Log.Warn("⚠️ Could not list months for cache invalidation", zap.Error(err))
		return
	}
	seen := map[string]bool{}
	var months []string
	for _, t := range times {
		m := utils.MonthOf(t)
		if !seen[m] {
			seen[m] = true
			months = append(months, m)
		}
	}
	if err := s.Cache.Invalidate(ctx, months...); err != nil {
		s.Log.Warn("⚠️ Stats cache invalidation failed", zap.Error(err))
	}
}
