package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/visionvansh/clipifypost-sub001/models"
	"github.com/visionvansh/clipifypost-sub001/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ChatIdentity is a chat platform account.
type ChatIdentity struct {
	ID       int64  `json:"id" validate:"required"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// PlaceholderID is the student id given to chat users who have not signed up yet.
func PlaceholderID(chatID int64) string {
	return fmt.Sprintf("tg-%d", chatID)
}

type StudentService struct {
	DB  *gorm.DB
	Log *zap.Logger
	Now func() time.Time
}

func NewStudentService(db *gorm.DB, log *zap.Logger) *StudentService {
	return &StudentService{DB: db, Log: log, Now: func() time.Time { return time.Now().UTC() }}
}

func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	var st models.Student
	if err := s.DB.WithContext(ctx).First(&st, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "student "+id)
	}
	return &st, nil
}

// EnsureStudent records a website sign-in. Creates the student on first sight,
// refreshes username/email otherwise, and makes sure this year's stats rows exist.
func (s *StudentService) EnsureStudent(ctx context.Context, id, username, email string) (*models.Student, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, validationErr("student id is required")
	}

	var st models.Student
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.First(&st, "id = ?", id).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			st = models.Student{ID: id, Username: username, Email: email, SignedUpToWebsite: true}
			if err := tx.Create(&st).Error; err != nil {
				return err
			}
			s.Log.Info("🆕 Student created", zap.String("student_id", id))
		case err != nil:
			return err
		default:
			if username != "" {
				st.Username = username
			}
			if email != "" {
				st.Email = email
			}
			st.SignedUpToWebsite = true
			if err := tx.Save(&st).Error; err != nil {
				return err
			}
		}
		return ensureStatsRecords(tx, id, s.Now().Year())
	})
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// EnsurePlaceholder returns the student bound to a chat account, creating an
// unsigned placeholder on first contact.
func (s *StudentService) EnsurePlaceholder(ctx context.Context, chat ChatIdentity) (*models.Student, error) {
	var st models.Student
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		st, err = ensurePlaceholder(tx, chat, s.Now())
		return err
	})
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func ensurePlaceholder(tx *gorm.DB, chat ChatIdentity, now time.Time) (models.Student, error) {
	if chat.ID == 0 {
		return models.Student{}, validationErr("chat id is required")
	}
	var st models.Student
	err := tx.Where("chat_id = ?", chat.ID).First(&st).Error
	if err == nil {
		return st, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return st, err
	}

	chatID := chat.ID
	st = models.Student{
		ID:           PlaceholderID(chat.ID),
		Username:     chat.Username,
		ChatID:       &chatID,
		ChatUsername: chat.Username,
		ChatEmail:    chat.Email,
	}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&st).Error; err != nil {
		return st, err
	}
	if err := ensureStatsRecords(tx, st.ID, now.Year()); err != nil {
		return st, err
	}
	return st, tx.First(&st, "id = ?", st.ID).Error
}

// FindByChatID returns the student bound to a chat account.
func (s *StudentService) FindByChatID(ctx context.Context, chatID int64) (*models.Student, error) {
	var st models.Student
	if err := s.DB.WithContext(ctx).Where("chat_id = ?", chatID).First(&st).Error; err != nil {
		return nil, notFound(err, fmt.Sprintf("student for chat %d", chatID))
	}
	return &st, nil
}

// ChatIDFor resolves where to deliver chat notifications for a student.
func (s *StudentService) ChatIDFor(ctx context.Context, studentID string) (int64, bool, error) {
	st, err := s.Get(ctx, studentID)
	if err != nil {
		return 0, false, err
	}
	if st.ChatID == nil {
		return 0, false, nil
	}
	return *st.ChatID, true, nil
}

// LinkChatIdentity binds a chat account to a signed-up student. When a
// placeholder already holds that chat account, its invites, invite code and
// stats move to the real student and the placeholder is removed. A merge that
// would leave any affected inviter paid above its payout is refused with
// ErrInvariant and nothing changes.
func (s *StudentService) LinkChatIdentity(ctx context.Context, studentID string, chat ChatIdentity) (*models.Student, error) {
	if chat.ID == 0 {
		return nil, validationErr("chat id is required")
	}

	var st models.Student
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&st, "id = ?", studentID).Error; err != nil {
			return notFound(err, "student "+studentID)
		}

		var holder models.Student
		err := tx.Where("chat_id = ?", chat.ID).First(&holder).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
		case err != nil:
			return err
		case holder.ID == st.ID:
		case holder.SignedUpToWebsite:
			return conflictErr("chat account already linked to another student")
		default:
			if err := mergePlaceholder(tx, holder.ID, st.ID, s.Now()); err != nil {
				return err
			}
			s.Log.Info("🔗 Placeholder merged",
				zap.String("placeholder_id", holder.ID), zap.String("student_id", st.ID))
		}

		chatID := chat.ID
		st.ChatID = &chatID
		st.ChatUsername = chat.Username
		st.ChatEmail = chat.Email
		return tx.Save(&st).Error
	})
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func mergePlaceholder(tx *gorm.DB, fromID, toID string, now time.Time) error {
	var inviters []string
	if err := tx.Model(&models.Invite{}).Where("invited_id = ?", fromID).Distinct().Pluck("inviter_id", &inviters).Error; err != nil {
		return err
	}

	if err := tx.Unscoped().Model(&models.Invite{}).Where("inviter_id = ?", fromID).Update("inviter_id", toID).Error; err != nil {
		return err
	}
	if err := tx.Unscoped().Model(&models.Invite{}).Where("invited_id = ?", fromID).Update("invited_id", toID).Error; err != nil {
		return err
	}
	// an invite can now point at its own inviter
	if err := tx.Where("inviter_id = ? AND invited_id = ?", toID, toID).Delete(&models.Invite{}).Error; err != nil {
		return err
	}

	var hasCode int64
	if err := tx.Model(&models.InviteCode{}).Where("student_id = ?", toID).Count(&hasCode).Error; err != nil {
		return err
	}
	if hasCode == 0 {
		if err := tx.Model(&models.InviteCode{}).Where("student_id = ?", fromID).Update("student_id", toID).Error; err != nil {
			return err
		}
	} else if err := tx.Where("student_id = ?", fromID).Delete(&models.InviteCode{}).Error; err != nil {
		return err
	}

	var earnings []models.ReferralEarning
	if err := tx.Unscoped().Where("student_id = ?", fromID).Find(&earnings).Error; err != nil {
		return err
	}
	for _, e := range earnings {
		var target models.ReferralEarning
		err := tx.Where("student_id = ? AND month = ?", toID, e.Month).First(&target).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := tx.Unscoped().Model(&models.ReferralEarning{}).Where("id = ?", e.ID).Update("student_id", toID).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			target.Amount = target.Amount.Add(e.Amount)
			if err := tx.Save(&target).Error; err != nil {
				return err
			}
			if err := tx.Unscoped().Delete(&models.ReferralEarning{}, "id = ?", e.ID).Error; err != nil {
				return err
			}
		}
	}

	if err := tx.Where("student_id = ?", fromID).Delete(&models.InviteStats{}).Error; err != nil {
		return err
	}
	if err := tx.Unscoped().Where("user_id = ?", fromID).Delete(&models.UserStatsRecord{}).Error; err != nil {
		return err
	}
	if err := tx.Unscoped().Delete(&models.Student{}, "id = ?", fromID).Error; err != nil {
		return err
	}

	for _, inviterID := range append(inviters, toID) {
		if inviterID == fromID {
			continue
		}
		if _, err := dedupInvites(tx, inviterID); err != nil {
			return err
		}
		if _, err := recomputeInviteStats(tx, inviterID, now); err != nil {
			return err
		}
		if err := checkPaidWithinPayout(tx, inviterID); err != nil {
			return fmt.Errorf("merge %s into %s: %w", fromID, toID, err)
		}
	}
	return nil
}

// checkPaidWithinPayout fails when an inviter has been paid more than the
// invites still backing the payout are worth.
func checkPaidWithinPayout(tx *gorm.DB, inviterID string) error {
	payout, err := computePayout(tx, inviterID)
	if err != nil {
		return err
	}
	paid, err := paidTotal(tx, inviterID)
	if err != nil {
		return err
	}
	if paid.GreaterThan(payout) {
		return fmt.Errorf("%w: %s would be paid %s against a payout of %s",
			ErrInvariant, inviterID, paid.StringFixed(2), payout.StringFixed(2))
	}
	return nil
}

// Search matches username, chat handle or email, ignoring case and accents.
func (s *StudentService) Search(ctx context.Context, query string, limit int) ([]models.Student, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	db := s.DB.WithContext(ctx).Model(&models.Student{}).Order("username ASC").Limit(limit)
	if q := models.FoldSearchText(query); q != "" {
		db = db.Where("search_key LIKE ?", "%"+q+"%")
	}
	var students []models.Student
	if err := db.Find(&students).Error; err != nil {
		return nil, err
	}
	return students, nil
}

// ensureStatsRecords creates one UserStatsRecord per month of year.
func ensureStatsRecords(tx *gorm.DB, userID string, year int) error {
	months := utils.MonthsOfYear(year)
	records := make([]models.UserStatsRecord, len(months))
	for i, m := range months {
		records[i] = models.UserStatsRecord{ID: uuid.NewString(), UserID: userID, Month: m}
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "month"}},
		DoNothing: true,
	}).Create(&records).Error
}
