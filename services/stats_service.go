package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/visionvansh/clipifypost-sub001/models"
	"github.com/visionvansh/clipifypost-sub001/monitoring"
	"github.com/visionvansh/clipifypost-sub001/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type BrandStats struct {
	BrandID       string          `json:"brand_id"`
	BrandName     string          `json:"brand_name"`
	RatePer100K   decimal.Decimal `json:"rate_per_100k"`
	Reels         int             `json:"reels"`
	CreditedViews int64           `json:"credited_views"`
	Revenue       decimal.Decimal `json:"revenue"`
}

// MonthStats aggregates one student's reels submitted in a month.
type MonthStats struct {
	UserID        string          `json:"user_id"`
	Username      string          `json:"username"`
	Month         string          `json:"month"`
	TotalReels    int             `json:"total_reels"`
	Pending       int             `json:"pending"`
	Approved      int             `json:"approved"`
	Disapproved   int             `json:"disapproved"`
	CreditedViews int64           `json:"credited_views"`
	Revenue       decimal.Decimal `json:"revenue"`
	Brands        []BrandStats    `json:"brands"`
}

type StatsService struct {
	DB    *gorm.DB
	Log   *zap.Logger
	Cache StatsCache
	Now   func() time.Time
}

func NewStatsService(db *gorm.DB, log *zap.Logger) *StatsService {
	return &StatsService{DB: db, Log: log, Cache: nopCache{}, Now: func() time.Time { return time.Now().UTC() }}
}

// EnsureStatsRecords creates the twelve monthly rows of year for a student.
func (s *StatsService) EnsureStatsRecords(ctx context.Context, userID string, year int) error {
	return ensureStatsRecords(s.DB.WithContext(ctx), userID, year)
}

// UserMonthStats aggregates a single student. Students without reels get an
// empty result.
func (s *StatsService) UserMonthStats(ctx context.Context, userID, month string) (*MonthStats, error) {
	var student models.Student
	if err := s.DB.WithContext(ctx).First(&student, "id = ?", userID).Error; err != nil {
		return nil, notFound(err, "student "+userID)
	}
	all, err := s.compute(ctx, month, userID)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return &MonthStats{UserID: userID, Username: student.DisplayName(), Month: month, Revenue: decimal.Zero, Brands: []BrandStats{}}, nil
	}
	return &all[0], nil
}

// AllUsersMonthStats aggregates every student with reels in month, highest
// revenue first. Served from cache when available.
func (s *StatsService) AllUsersMonthStats(ctx context.Context, month string) ([]MonthStats, error) {
	if _, _, err := utils.ParseMonth(month); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err.Error())
	}

	var cached []MonthStats
	if ok, err := s.Cache.Get(ctx, month, &cached); err != nil {
		s.Log.Warn("⚠️ Stats cache read failed", zap.String("month", month), zap.Error(err))
	} else if ok {
		return cached, nil
	}

	stats, err := s.compute(ctx, month, "")
	if err != nil {
		return nil, err
	}
	if err := s.Cache.Set(ctx, month, stats); err != nil {
		s.Log.Warn("⚠️ Stats cache write failed", zap.String("month", month), zap.Error(err))
	}
	return stats, nil
}

func (s *StatsService) compute(ctx context.Context, month, userID string) ([]MonthStats, error) {
	start, end, err := utils.ParseMonth(month)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err.Error())
	}
	db := s.DB.WithContext(ctx)

	q := db.Preload("Brand").Preload("Student").
		Where("created_at >= ? AND created_at < ?", start, end).
		Order("created_at ASC, id ASC")
	if userID != "" {
		q = q.Where("student_id = ?", userID)
	}
	var reels []models.UserReel
	if err := q.Find(&reels).Error; err != nil {
		return nil, err
	}
	histories, err := loadHistories(db, reels)
	if err != nil {
		return nil, err
	}

	byUser := map[string]*MonthStats{}
	byBrand := map[string]map[string]*BrandStats{}
	for i := range reels {
		reel := &reels[i]
		ms, ok := byUser[reel.StudentID]
		if !ok {
			name := reel.StudentID
			if reel.Student != nil {
				name = reel.Student.DisplayName()
			}
			ms = &MonthStats{UserID: reel.StudentID, Username: name, Month: month, Revenue: decimal.Zero}
			byUser[reel.StudentID] = ms
			byBrand[reel.StudentID] = map[string]*BrandStats{}
		}

		ms.TotalReels++
		switch reel.Status {
		case models.ReelPending:
			ms.Pending++
		case models.ReelApproved:
			ms.Approved++
		case models.ReelDisapproved:
			ms.Disapproved++
		}

		credited := CreditedViews(reel, histories[reel.ID])
		revenue := Revenue(credited, reel.Brand.RatePer100K)
		ms.CreditedViews += credited
		ms.Revenue = ms.Revenue.Add(revenue)

		bs, ok := byBrand[reel.StudentID][reel.BrandID]
		if !ok {
			bs = &BrandStats{BrandID: reel.BrandID, BrandName: reel.Brand.Name, RatePer100K: reel.Brand.RatePer100K, Revenue: decimal.Zero}
			byBrand[reel.StudentID][reel.BrandID] = bs
		}
		bs.Reels++
		bs.CreditedViews += credited
		bs.Revenue = bs.Revenue.Add(revenue)
	}

	out := make([]MonthStats, 0, len(byUser))
	for id, ms := range byUser {
		ms.Brands = make([]BrandStats, 0, len(byBrand[id]))
		for _, bs := range byBrand[id] {
			ms.Brands = append(ms.Brands, *bs)
		}
		sort.Slice(ms.Brands, func(i, j int) bool { return ms.Brands[i].BrandName < ms.Brands[j].BrandName })
		out = append(out, *ms)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Revenue.Cmp(out[j].Revenue); c != 0 {
			return c > 0
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}

// RefreshMonth writes the uploaders hub side of every stats record for month
// from the ledger. Students without reels that month are reset to zero.
func (s *StatsService) RefreshMonth(ctx context.Context, month string) (int, error) {
	started := time.Now()
	defer func() { monitoring.StatsRefreshDuration.Observe(time.Since(started).Seconds()) }()

	stats, err := s.compute(ctx, month, "")
	if err != nil {
		return 0, err
	}
	computed := make(map[string]MonthStats, len(stats))
	for _, ms := range stats {
		computed[ms.UserID] = ms
	}

	now := s.Now()
	updated := 0
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var records []models.UserStatsRecord
		if err := tx.Where("month = ?", month).Find(&records).Error; err != nil {
			return err
		}
		seen := make(map[string]bool, len(records))
		for i := range records {
			rec := &records[i]
			seen[rec.UserID] = true
			ms, ok := computed[rec.UserID]
			if !ok && rec.UploadersHubViews == 0 && rec.UploadersHubRevenue.IsZero() {
				continue
			}
			rec.UploadersHubViews = ms.CreditedViews
			rec.UploadersHubRevenue = ms.Revenue
			rec.RecomputeTotals()
			rec.LastRefreshedAt = &now
			if err := tx.Save(rec).Error; err != nil {
				return err
			}
			updated++
		}

		for id, ms := range computed {
			if seen[id] {
				continue
			}
			rec := models.UserStatsRecord{
				ID:                  uuid.NewString(),
				UserID:              id,
				Month:               month,
				UploadersHubViews:   ms.CreditedViews,
				UploadersHubRevenue: ms.Revenue,
				LastRefreshedAt:     &now,
			}
			rec.RecomputeTotals()
			if err := tx.Create(&rec).Error; err != nil {
				return err
			}
			updated++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.Log.Info("📊 Stats refreshed", zap.String("month", month), zap.Int("records", updated))
	return updated, nil
}

// SetEditorsHubStats records the editors hub side for a student and month.
func (s *StatsService) SetEditorsHubStats(ctx context.Context, actorID, userID, month string, views int64, revenue decimal.Decimal) (*models.UserStatsRecord, error) {
	if _, _, err := utils.ParseMonth(month); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err.Error())
	}
	if views < 0 || revenue.IsNegative() {
		return nil, validationErr("views and revenue cannot be negative")
	}

	var rec models.UserStatsRecord
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Student{}).Where("id = ?", userID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: student %s", ErrNotFound, userID)
		}

		var before any
		err := tx.Where("user_id = ? AND month = ?", userID, month).First(&rec).Error
		isNew := errors.Is(err, gorm.ErrRecordNotFound)
		switch {
		case isNew:
			rec = models.UserStatsRecord{ID: uuid.NewString(), UserID: userID, Month: month}
		case err != nil:
			return err
		default:
			before = rec
		}
		rec.EditorsHubViews = views
		rec.EditorsHubRevenue = revenue
		rec.RecomputeTotals()
		if isNew {
			err = tx.Create(&rec).Error
		} else {
			err = tx.Save(&rec).Error
		}
		if err != nil {
			return err
		}
		return writeAudit(tx, s.Now(), actorID, "SET_EDITORS_HUB", "user_stats_record", rec.ID, before, rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Records lists a student's stats rows, oldest month first.
func (s *StatsService) Records(ctx context.Context, userID string) ([]models.UserStatsRecord, error) {
	var recs []models.UserStatsRecord
	err := s.DB.WithContext(ctx).Where("user_id = ?", userID).Order("month ASC").Find(&recs).Error
	return recs, err
}
