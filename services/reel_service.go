package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/visionvansh/clipifypost-sub001/models"
	"github.com/visionvansh/clipifypost-sub001/monitoring"
	"github.com/visionvansh/clipifypost-sub001/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AdminAction string

const (
	ActionApprove     AdminAction = "APPROVE"
	ActionReject      AdminAction = "REJECT"
	ActionUpdateViews AdminAction = "UPDATE_VIEWS"
	ActionUpdateURL   AdminAction = "UPDATE_URL"
	ActionLockViews   AdminAction = "LOCK_VIEWS"
	ActionUnlockViews AdminAction = "UNLOCK_VIEWS"
)

// AdminActionInput carries the fields each action needs.
type AdminActionInput struct {
	Action       AdminAction `json:"action" validate:"required,oneof=APPROVE REJECT UPDATE_VIEWS UPDATE_URL LOCK_VIEWS UNLOCK_VIEWS"`
	PublishedURL string      `json:"published_url"`
	Views        *int64      `json:"views" validate:"omitempty,min=0"`
	Message      string      `json:"message"`
}

// Validate rejects malformed input before the store is touched.
func (in AdminActionInput) Validate() error {
	switch in.Action {
	case ActionApprove:
		if strings.TrimSpace(in.PublishedURL) == "" {
			return validationErr("publishedUrl is required to approve")
		}
	case ActionReject:
		if strings.TrimSpace(in.Message) == "" {
			return validationErr("a message is required to reject")
		}
	case ActionUpdateViews:
		if in.Views == nil {
			return validationErr("views are required")
		}
	case ActionUpdateURL:
		if strings.TrimSpace(in.PublishedURL) == "" {
			return validationErr("publishedUrl is required")
		}
	case ActionLockViews, ActionUnlockViews:
	default:
		return validationErr("unknown action %q", in.Action)
	}
	if in.Views != nil && *in.Views < 0 {
		return validationErr("views cannot be negative")
	}
	return nil
}

// ActionResult reports the mutation and, separately, whether the student
// could be notified.
type ActionResult struct {
	Reel              *models.UserReel `json:"reel"`
	CreditedViews     int64            `json:"credited_views"`
	NotificationError string           `json:"notification_error,omitempty"`
}

type ReelService struct {
	DB       *gorm.DB
	Log      *zap.Logger
	Notifier Notifier
	Cache    StatsCache
	Now      func() time.Time
}

func NewReelService(db *gorm.DB, log *zap.Logger) *ReelService {
	return &ReelService{
		DB:       db,
		Log:      log,
		Notifier: nopNotifier{},
		Cache:    nopCache{},
		Now:      func() time.Time { return time.Now().UTC() },
	}
}

// SubmitReel creates a PENDING reel with zero views and its first ledger row.
func (s *ReelService) SubmitReel(ctx context.Context, studentID, brandID, videoURL string) (*models.UserReel, error) {
	videoURL = strings.TrimSpace(videoURL)
	if studentID == "" {
		return nil, fmt.Errorf("%w: no session", ErrUnauthorized)
	}
	if brandID == "" || videoURL == "" {
		return nil, validationErr("brand and video url are required")
	}

	var reel models.UserReel
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var student models.Student
		if err := tx.First(&student, "id = ?", studentID).Error; err != nil {
			return notFound(err, "student "+studentID)
		}
		var brand models.Brand
		if err := tx.First(&brand, "id = ?", brandID).Error; err != nil {
			return notFound(err, "brand "+brandID)
		}
		if !brand.IsActive() {
			return conflictErr("brand %s is not accepting submissions", brand.Name)
		}

		now := s.Now()
		reel = models.UserReel{
			ID:        uuid.NewString(),
			StudentID: studentID,
			BrandID:   brandID,
			VideoURL:  videoURL,
			Status:    models.ReelPending,
		}
		reel.CreatedAt = now
		if err := tx.Create(&reel).Error; err != nil {
			return err
		}
		reel.Brand = &brand
		return appendHistory(tx, reel.ID, models.ReelPending, 0, now, "submit")
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, reel.CreatedAt)
	s.Log.Info("🎬 Reel submitted", zap.String("reel_id", reel.ID), zap.String("student_id", studentID))
	return &reel, nil
}

func appendHistory(tx *gorm.DB, reelID string, status models.ReelStatus, views int64, at time.Time, origin string) error {
	row := models.ReelStatusHistory{ReelID: reelID, Status: status, Views: views, CreatedAt: at}
	if err := tx.Create(&row).Error; err != nil {
		return err
	}
	monitoring.ReelTransitionsTotal.WithLabelValues(string(status), origin).Inc()
	return nil
}

func lockReel(tx *gorm.DB, reelID string) (*models.UserReel, error) {
	var reel models.UserReel
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&reel, "id = ?", reelID).Error; err != nil {
		return nil, notFound(err, "reel "+reelID)
	}
	return &reel, nil
}

// RecordTransition moves a reel to status with the given views and appends the
// matching ledger row in the same transaction. Not idempotent: every call adds
// a row.
func (s *ReelService) RecordTransition(ctx context.Context, reelID string, status models.ReelStatus, views int64) (*models.UserReel, error) {
	if !status.Valid() {
		return nil, validationErr("unknown status %q", status)
	}
	if views < 0 {
		return nil, validationErr("views cannot be negative")
	}

	var reel *models.UserReel
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if reel, err = lockReel(tx, reelID); err != nil {
			return err
		}
		switch status {
		case models.ReelApproved:
			reel.DisapprovalMessage = ""
		case models.ReelDisapproved:
			reel.PublishedURL = ""
		}
		return transition(tx, reel, status, views, s.Now(), "transition")
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, reel.CreatedAt)
	return reel, nil
}

// transition writes the reel and its ledger row. The caller holds the row lock.
func transition(tx *gorm.DB, reel *models.UserReel, status models.ReelStatus, views int64, at time.Time, origin string) error {
	reel.Status = status
	reel.Views = views
	if err := tx.Omit(clause.Associations).Save(reel).Error; err != nil {
		return err
	}
	return appendHistory(tx, reel.ID, status, views, at, origin)
}

// ApplyAdminAction drives the admin side of the reel state machine.
func (s *ReelService) ApplyAdminAction(ctx context.Context, actorID, reelID string, in AdminActionInput) (*ActionResult, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var reel *models.UserReel
	var credited int64
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if reel, err = lockReel(tx, reelID); err != nil {
			return err
		}
		before := *reel
		now := s.Now()

		switch in.Action {
		case ActionApprove:
			if reel.Status == models.ReelApproved {
				return conflictErr("reel is already approved")
			}
			views := reel.Views
			if in.Views != nil {
				views = *in.Views
			}
			reel.PublishedURL = strings.TrimSpace(in.PublishedURL)
			reel.DisapprovalMessage = ""
			err = transition(tx, reel, models.ReelApproved, views, now, "admin")
		case ActionReject:
			if reel.Status == models.ReelDisapproved {
				return conflictErr("reel is already disapproved")
			}
			reel.DisapprovalMessage = strings.TrimSpace(in.Message)
			reel.PublishedURL = ""
			err = transition(tx, reel, models.ReelDisapproved, reel.Views, now, "admin")
		case ActionUpdateViews:
			reel.Views = *in.Views
			err = tx.Omit(clause.Associations).Save(reel).Error
		case ActionUpdateURL:
			reel.PublishedURL = strings.TrimSpace(in.PublishedURL)
			err = tx.Omit(clause.Associations).Save(reel).Error
		case ActionLockViews, ActionUnlockViews:
			reel.ViewsLocked = in.Action == ActionLockViews
			err = tx.Omit(clause.Associations).Save(reel).Error
		}
		if err != nil {
			return err
		}

		if err := writeAudit(tx, now, actorID, string(in.Action), "reel", reel.ID, before, reel); err != nil {
			return err
		}

		history, err := loadHistory(tx, reel.ID)
		if err != nil {
			return err
		}
		credited = CreditedViews(reel, history)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, reel.CreatedAt)
	s.Log.Info("🛠️ Admin reel action",
		zap.String("action", string(in.Action)), zap.String("reel_id", reel.ID), zap.String("actor_id", actorID))

	result := &ActionResult{Reel: reel, CreditedViews: credited}
	if text := actionNotice(in.Action, reel); text != "" {
		if err := s.Notifier.NotifyStudent(ctx, reel.StudentID, text); err != nil {
			s.Log.Warn("⚠️ Student notification failed", zap.String("reel_id", reel.ID), zap.Error(err))
			result.NotificationError = err.Error()
		}
	}
	return result, nil
}

func actionNotice(action AdminAction, reel *models.UserReel) string {
	switch action {
	case ActionApprove:
		return fmt.Sprintf("✅ Your reel was approved with %s views.\n%s", utils.FormatViews(reel.Views), reel.PublishedURL)
	case ActionReject:
		return fmt.Sprintf("❌ Your reel was not approved: %s\n%s", reel.DisapprovalMessage, reel.VideoURL)
	}
	return ""
}

// UserUpdateViews lets the owner report new views on an approved reel. The reel
// goes back to PENDING and the ledger row logs the views before the update.
func (s *ReelService) UserUpdateViews(ctx context.Context, studentID, reelID string, views int64) (*models.UserReel, error) {
	if studentID == "" {
		return nil, fmt.Errorf("%w: no session", ErrUnauthorized)
	}
	if views < 0 {
		return nil, validationErr("views cannot be negative")
	}

	var reel *models.UserReel
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if reel, err = lockReel(tx, reelID); err != nil {
			return err
		}
		if reel.StudentID != studentID {
			return fmt.Errorf("%w: reel belongs to another student", ErrForbidden)
		}
		if reel.ViewsLocked {
			return conflictErr("views are locked for this reel")
		}
		if reel.Status != models.ReelApproved {
			return conflictErr("views can only be updated on an approved reel")
		}

		now := s.Now()
		if err := appendHistory(tx, reel.ID, models.ReelPending, reel.Views, now, "user"); err != nil {
			return err
		}
		reel.Status = models.ReelPending
		reel.Views = views
		return tx.Omit(clause.Associations).Save(reel).Error
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, reel.CreatedAt)
	return reel, nil
}

// BulkApproveForMonth approves every still-PENDING reel that has a PENDING
// ledger row in month, keeping its views and falling back to the video url
// when no published url is set. Re-running is a no-op returning 0.
func (s *ReelService) BulkApproveForMonth(ctx context.Context, actorID, month string) (int, error) {
	start, end, err := utils.ParseMonth(month)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrValidation, err.Error())
	}

	var approved []models.UserReel
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pendingInMonth := tx.Model(&models.ReelStatusHistory{}).
			Select("reel_id").
			Where("status = ? AND created_at >= ? AND created_at < ?", models.ReelPending, start, end)

		var reels []models.UserReel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("status = ? AND id IN (?)", models.ReelPending, pendingInMonth).
			Order("id").
			Find(&reels).Error; err != nil {
			return err
		}

		now := s.Now()
		for i := range reels {
			reel := &reels[i]
			if reel.PublishedURL == "" {
				reel.PublishedURL = reel.VideoURL
			}
			reel.DisapprovalMessage = ""
			if err := transition(tx, reel, models.ReelApproved, reel.Views, now, "bulk"); err != nil {
				return fmt.Errorf("approve reel %s: %w", reel.ID, err)
			}
		}
		if len(reels) > 0 {
			if err := writeAudit(tx, now, actorID, "BULK_APPROVE", "month", month, nil, map[string]any{"approved": len(reels)}); err != nil {
				return err
			}
		}
		approved = reels
		return nil
	})
	if err != nil {
		return 0, err
	}

	months := map[string]struct{}{}
	for _, r := range approved {
		months[utils.MonthOf(r.CreatedAt)] = struct{}{}
	}
	for m := range months {
		if err := s.Cache.Invalidate(ctx, m); err != nil {
			s.Log.Warn("⚠️ Stats cache invalidation failed", zap.String("month", m), zap.Error(err))
		}
	}
	s.Log.Info("✅ Bulk approval finished", zap.String("month", month), zap.Int("approved", len(approved)))
	return len(approved), nil
}

func loadHistory(tx *gorm.DB, reelID string) ([]models.ReelStatusHistory, error) {
	var history []models.ReelStatusHistory
	err := tx.Where("reel_id = ?", reelID).Order("created_at ASC, id ASC").Find(&history).Error
	return history, err
}

// ComputeCreditedViews replays the reel's ledger.
func (s *ReelService) ComputeCreditedViews(ctx context.Context, reelID string) (int64, error) {
	db := s.DB.WithContext(ctx)
	var reel models.UserReel
	if err := db.First(&reel, "id = ?", reelID).Error; err != nil {
		return 0, notFound(err, "reel "+reelID)
	}
	history, err := loadHistory(db, reelID)
	if err != nil {
		return 0, err
	}
	return CreditedViews(&reel, history), nil
}

// ComputeRevenue sums revenue over reels at each brand's current rate.
func (s *ReelService) ComputeRevenue(ctx context.Context, reelIDs ...string) (decimal.Decimal, error) {
	if len(reelIDs) == 0 {
		return decimal.Zero, nil
	}
	db := s.DB.WithContext(ctx)
	var reels []models.UserReel
	if err := db.Preload("Brand").Where("id IN ?", reelIDs).Find(&reels).Error; err != nil {
		return decimal.Zero, err
	}
	if len(reels) != len(uniqueStrings(reelIDs)) {
		return decimal.Zero, fmt.Errorf("%w: one or more reels", ErrNotFound)
	}
	histories, err := loadHistories(db, reels)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for i := range reels {
		credited := CreditedViews(&reels[i], histories[reels[i].ID])
		total = total.Add(Revenue(credited, reels[i].Brand.RatePer100K))
	}
	return total, nil
}

func loadHistories(db *gorm.DB, reels []models.UserReel) (map[string][]models.ReelStatusHistory, error) {
	out := make(map[string][]models.ReelStatusHistory, len(reels))
	if len(reels) == 0 {
		return out, nil
	}
	ids := make([]string, len(reels))
	for i, r := range reels {
		ids[i] = r.ID
	}
	for start := 0; start < len(ids); start += 500 {
		end := min(start+500, len(ids))
		var rows []models.ReelStatusHistory
		if err := db.Where("reel_id IN ?", ids[start:end]).Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
			return nil, err
		}
		for _, r := range rows {
			out[r.ReelID] = append(out[r.ReelID], r)
		}
	}
	return out, nil
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0:0]
	for _, s := range in {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

// ReelLedger is a reel with its replayed history.
type ReelLedger struct {
	Reel          models.UserReel `json:"reel"`
	Steps         []LedgerStep    `json:"steps"`
	CreditedViews int64           `json:"credited_views"`
	Revenue       decimal.Decimal `json:"revenue"`
}

// History returns the ledger of a reel. A non-empty studentID restricts it to
// the owner.
func (s *ReelService) History(ctx context.Context, reelID, studentID string) (*ReelLedger, error) {
	db := s.DB.WithContext(ctx)
	var reel models.UserReel
	if err := db.Preload("Brand").First(&reel, "id = ?", reelID).Error; err != nil {
		return nil, notFound(err, "reel "+reelID)
	}
	if studentID != "" && reel.StudentID != studentID {
		return nil, fmt.Errorf("%w: reel belongs to another student", ErrForbidden)
	}
	history, err := loadHistory(db, reelID)
	if err != nil {
		return nil, err
	}
	credited := CreditedViews(&reel, history)
	return &ReelLedger{
		Reel:          reel,
		Steps:         ReplayLedger(history),
		CreditedViews: credited,
		Revenue:       Revenue(credited, reel.Brand.RatePer100K),
	}, nil
}

type ReelFilter struct {
	StudentID string
	BrandID   string
	Status    models.ReelStatus
	Month     string
	Limit     int
	Offset    int
}

func (s *ReelService) List(ctx context.Context, f ReelFilter) ([]models.UserReel, int64, error) {
	q := s.DB.WithContext(ctx).Model(&models.UserReel{})
	if f.StudentID != "" {
		q = q.Where("student_id = ?", f.StudentID)
	}
	if f.BrandID != "" {
		q = q.Where("brand_id = ?", f.BrandID)
	}
	if f.Status != "" {
		if !f.Status.Valid() {
			return nil, 0, validationErr("unknown status %q", f.Status)
		}
		q = q.Where("status = ?", f.Status)
	}
	if f.Month != "" {
		start, end, err := utils.ParseMonth(f.Month)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: %s", ErrValidation, err.Error())
		}
		q = q.Where("created_at >= ? AND created_at < ?", start, end)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	var reels []models.UserReel
	err := q.Preload("Brand").Order("created_at DESC, id").Limit(f.Limit).Offset(f.Offset).Find(&reels).Error
	return reels, total, err
}

func (s *ReelService) invalidate(ctx context.Context, createdAt time.Time) {
	month := utils.MonthOf(createdAt)
	if err := s.Cache.Invalidate(ctx, month); err != nil {
		s.Log.Warn("⚠️ Stats cache invalidation failed", zap.String("month", month), zap.Error(err))
	}
}
