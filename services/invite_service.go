package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
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

// PromotionThreshold is the summed totalViews an invitee needs before the
// invite is approved.
const PromotionThreshold int64 = 10000

// BonusPerInvite is paid for each approved invite whose invitee signed up.
var BonusPerInvite = decimal.RequireFromString("0.5")

type InviteService struct {
	DB    *gorm.DB
	Log   *zap.Logger
	Now   func() time.Time
	Links InviteLinkIssuer
}

func NewInviteService(db *gorm.DB, log *zap.Logger) *InviteService {
	return &InviteService{DB: db, Log: log, Now: func() time.Time { return time.Now().UTC() }}
}

// CreateInvite inserts a pending invite unless the pair already has one.
// Returns false for the duplicate case, which is not an error.
func (s *InviteService) CreateInvite(ctx context.Context, inviterID, invitedID, invitedUsername string) (bool, error) {
	if inviterID == "" || invitedID == "" {
		return false, validationErr("inviter and invited ids are required")
	}
	if inviterID == invitedID {
		return false, validationErr("a student cannot invite themselves")
	}

	var created bool
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		created, err = createInvite(tx, inviterID, invitedID, invitedUsername, s.Now())
		return err
	})
	if err != nil {
		return false, err
	}
	if created {
		s.Log.Info("📨 Invite created", zap.String("inviter_id", inviterID), zap.String("invited_id", invitedID))
	}
	return created, nil
}

func createInvite(tx *gorm.DB, inviterID, invitedID, invitedUsername string, now time.Time) (bool, error) {
	for _, id := range []string{inviterID, invitedID} {
		var n int64
		if err := tx.Model(&models.Student{}).Where("id = ?", id).Count(&n).Error; err != nil {
			return false, err
		}
		if n == 0 {
			return false, fmt.Errorf("%w: student %s", ErrNotFound, id)
		}
	}

	// serializes invite writes per inviter
	if _, err := lockInviteStats(tx, inviterID); err != nil {
		return false, err
	}

	var existing int64
	if err := tx.Model(&models.Invite{}).
		Where("inviter_id = ? AND invited_id = ?", inviterID, invitedID).
		Count(&existing).Error; err != nil {
		return false, err
	}
	if existing > 0 {
		return false, nil
	}

	invite := models.Invite{
		ID:              uuid.NewString(),
		InviterID:       inviterID,
		InvitedID:       invitedID,
		InvitedUsername: invitedUsername,
		Status:          models.InvitePending,
	}
	invite.CreatedAt = now
	if err := tx.Create(&invite).Error; err != nil {
		return false, err
	}
	if _, err := recomputeInviteStats(tx, inviterID, now); err != nil {
		return false, err
	}
	monitoring.InvitesCreatedTotal.Inc()
	return true, nil
}

// lockInviteStats makes sure the inviter's stats row exists and locks it.
func lockInviteStats(tx *gorm.DB, inviterID string) (*models.InviteStats, error) {
	row := models.InviteStats{StudentID: inviterID}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
		return nil, err
	}
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&row, "student_id = ?", inviterID).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// DeduplicateInvites keeps one invite per invitee and soft-deletes the rest.
func (s *InviteService) DeduplicateInvites(ctx context.Context, inviterID string) (int, error) {
	var removed int
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if removed, err = dedupInvites(tx, inviterID); err != nil {
			return err
		}
		_, err = recomputeInviteStats(tx, inviterID, s.Now())
		return err
	})
	return removed, err
}

// dedupInvites keeps, per invitee, the approved row if any, then the earliest
// created, then the lowest id. An approval is never discarded.
func dedupInvites(tx *gorm.DB, inviterID string) (int, error) {
	var invites []models.Invite
	if err := tx.Where("inviter_id = ?", inviterID).Order("created_at ASC, id ASC").Find(&invites).Error; err != nil {
		return 0, err
	}

	keep := make(map[string]models.Invite)
	for _, inv := range invites {
		cur, ok := keep[inv.InvitedID]
		if !ok || preferInvite(inv, cur) {
			keep[inv.InvitedID] = inv
		}
	}

	var drop []string
	for _, inv := range invites {
		if keep[inv.InvitedID].ID != inv.ID {
			drop = append(drop, inv.ID)
		}
	}
	if len(drop) == 0 {
		return 0, nil
	}
	if err := tx.Where("id IN ?", drop).Delete(&models.Invite{}).Error; err != nil {
		return 0, err
	}
	return len(drop), nil
}

func preferInvite(a, b models.Invite) bool {
	if (a.Status == models.InviteApproved) != (b.Status == models.InviteApproved) {
		return a.Status == models.InviteApproved
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// SyncInviteUsernames refreshes cached invitee names that drifted.
func (s *InviteService) SyncInviteUsernames(ctx context.Context, inviterID string) (int, error) {
	var updated int
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		updated, err = syncInviteUsernames(tx, inviterID)
		return err
	})
	return updated, err
}

func syncInviteUsernames(tx *gorm.DB, inviterID string) (int, error) {
	var invites []models.Invite
	if err := tx.Where("inviter_id = ?", inviterID).Find(&invites).Error; err != nil {
		return 0, err
	}
	if len(invites) == 0 {
		return 0, nil
	}

	ids := make([]string, len(invites))
	for i, inv := range invites {
		ids[i] = inv.InvitedID
	}
	var students []models.Student
	if err := tx.Where("id IN ?", ids).Find(&students).Error; err != nil {
		return 0, err
	}
	names := make(map[string]string, len(students))
	for _, st := range students {
		names[st.ID] = st.DisplayName()
	}

	updated := 0
	for _, inv := range invites {
		name, ok := names[inv.InvitedID]
		if !ok || name == inv.InvitedUsername {
			continue
		}
		if err := tx.Model(&models.Invite{}).Where("id = ?", inv.ID).Update("invited_username", name).Error; err != nil {
			return updated, err
		}
		updated++
	}
	return updated, nil
}

// RecomputeInviteStats overwrites the cached count with the live row count.
func (s *InviteService) RecomputeInviteStats(ctx context.Context, inviterID string) (int64, error) {
	var count int64
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		count, err = recomputeInviteStats(tx, inviterID, s.Now())
		return err
	})
	return count, err
}

func recomputeInviteStats(tx *gorm.DB, inviterID string, now time.Time) (int64, error) {
	var count int64
	if err := tx.Model(&models.Invite{}).Where("inviter_id = ?", inviterID).Count(&count).Error; err != nil {
		return 0, err
	}
	row := models.InviteStats{StudentID: inviterID, InviteCount: count, UpdatedAt: now}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "student_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"invite_count", "updated_at"}),
	}).Create(&row).Error
	return count, err
}

// PromoteIfEligible approves every invite of a student whose summed totalViews
// reached PromotionThreshold. Approval is one-way.
func (s *InviteService) PromoteIfEligible(ctx context.Context, invitedID string) (int64, error) {
	var promoted int64
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		promoted, err = promoteIfEligible(tx, invitedID)
		return err
	})
	if err == nil && promoted > 0 {
		s.Log.Info("🎉 Invites promoted", zap.String("invited_id", invitedID), zap.Int64("count", promoted))
	}
	return promoted, err
}

func promoteIfEligible(tx *gorm.DB, invitedID string) (int64, error) {
	total, err := totalViewsOf(tx, invitedID)
	if err != nil {
		return 0, err
	}
	if total < PromotionThreshold {
		return 0, nil
	}
	res := tx.Model(&models.Invite{}).
		Where("invited_id = ? AND status <> ?", invitedID, models.InviteApproved).
		Update("status", models.InviteApproved)
	if res.Error != nil {
		return 0, res.Error
	}
	monitoring.InvitesPromotedTotal.Add(float64(res.RowsAffected))
	return res.RowsAffected, nil
}

func totalViewsOf(tx *gorm.DB, studentID string) (int64, error) {
	var total int64
	err := tx.Model(&models.UserStatsRecord{}).
		Where("user_id = ?", studentID).
		Select("COALESCE(SUM(total_views), 0)").
		Scan(&total).Error
	return total, err
}

// PromotePending runs PromoteIfEligible for every invitee still pending.
func (s *InviteService) PromotePending(ctx context.Context) (int64, error) {
	var invitees []string
	if err := s.DB.WithContext(ctx).Model(&models.Invite{}).
		Where("status = ?", models.InvitePending).
		Distinct().Pluck("invited_id", &invitees).Error; err != nil {
		return 0, err
	}
	var total int64
	for _, id := range invitees {
		n, err := s.PromoteIfEligible(ctx, id)
		if err != nil {
			return total, fmt.Errorf("promote %s: %w", id, err)
		}
		total += n
	}
	return total, nil
}

// ComputePayout is the referral entitlement: payable invites x BonusPerInvite.
func (s *InviteService) ComputePayout(ctx context.Context, inviterID string) (decimal.Decimal, error) {
	return computePayout(s.DB.WithContext(ctx), inviterID)
}

func computePayout(tx *gorm.DB, inviterID string) (decimal.Decimal, error) {
	n, err := payableCount(tx, inviterID)
	if err != nil {
		return decimal.Zero, err
	}
	return BonusPerInvite.Mul(decimal.NewFromInt(n)), nil
}

func payableCount(tx *gorm.DB, inviterID string) (int64, error) {
	var n int64
	err := tx.Model(&models.Invite{}).
		Joins("JOIN students ON students.id = invites.invited_id AND students.deleted_at IS NULL").
		Where("invites.inviter_id = ? AND invites.status = ? AND students.signed_up_to_website = ?",
			inviterID, models.InviteApproved, true).
		Distinct("invites.invited_id").
		Count(&n).Error
	return n, err
}

func paidTotal(tx *gorm.DB, inviterID string) (decimal.Decimal, error) {
	var earnings []models.ReferralEarning
	if err := tx.Where("student_id = ?", inviterID).Find(&earnings).Error; err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, e := range earnings {
		total = total.Add(e.Amount)
	}
	return total, nil
}

type PaymentResult struct {
	Earning   models.ReferralEarning `json:"earning"`
	Payout    decimal.Decimal        `json:"payout"`
	Paid      decimal.Decimal        `json:"paid"`
	Remaining decimal.Decimal        `json:"remaining"`
}

// RecordPayment adds amount to the inviter's cumulative earning for month,
// rejecting anything that would push total paid above ComputePayout.
func (s *InviteService) RecordPayment(ctx context.Context, actorID, inviterID, month string, amount decimal.Decimal) (*PaymentResult, error) {
	if _, _, err := utils.ParseMonth(month); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err.Error())
	}
	if !amount.IsPositive() {
		return nil, validationErr("payment amount must be positive")
	}

	var result PaymentResult
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var inviter models.Student
		if err := tx.First(&inviter, "id = ?", inviterID).Error; err != nil {
			return notFound(err, "student "+inviterID)
		}
		if _, err := lockInviteStats(tx, inviterID); err != nil {
			return err
		}

		payout, err := computePayout(tx, inviterID)
		if err != nil {
			return err
		}
		paid, err := paidTotal(tx, inviterID)
		if err != nil {
			return err
		}
		remaining := payout.Sub(paid)
		if amount.GreaterThan(remaining) {
			return fmt.Errorf("%w: payment %s exceeds remaining referral balance %s (earned %s, paid %s)",
				ErrInvariant, amount.StringFixed(2), remaining.StringFixed(2), payout.StringFixed(2), paid.StringFixed(2))
		}

		var earning models.ReferralEarning
		err = tx.Where("student_id = ? AND month = ?", inviterID, month).First(&earning).Error
		var before any
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			earning = models.ReferralEarning{ID: uuid.NewString(), StudentID: inviterID, Month: month, Amount: amount}
			if err := tx.Create(&earning).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			before = earning
			earning.Amount = earning.Amount.Add(amount)
			if err := tx.Save(&earning).Error; err != nil {
				return err
			}
		}

		if err := writeAudit(tx, s.Now(), actorID, "RECORD_PAYMENT", "referral_earning", earning.ID, before, earning); err != nil {
			return err
		}

		result = PaymentResult{
			Earning:   earning,
			Payout:    payout,
			Paid:      paid.Add(amount),
			Remaining: remaining.Sub(amount),
		}
		return nil
	})
	if err != nil {
		outcome := "error"
		if errors.Is(err, ErrInvariant) {
			outcome = "rejected"
		}
		monitoring.ReferralPaymentsTotal.WithLabelValues(outcome).Inc()
		return nil, err
	}

	monitoring.ReferralPaymentsTotal.WithLabelValues("recorded").Inc()
	s.Log.Info("💸 Referral payment recorded",
		zap.String("inviter_id", inviterID), zap.String("month", month), zap.String("amount", amount.StringFixed(2)))
	return &result, nil
}

type SyncReport struct {
	InviterID        string `json:"inviter_id"`
	Removed          int    `json:"duplicates_removed"`
	UsernamesUpdated int    `json:"usernames_updated"`
	Promoted         int64  `json:"promoted"`
	InviteCount      int64  `json:"invite_count"`
}

// SyncInvites runs the full reconciliation for one inviter in a single tx.
// Safe to repeat.
func (s *InviteService) SyncInvites(ctx context.Context, inviterID string) (*SyncReport, error) {
	report := SyncReport{InviterID: inviterID}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Student{}).Where("id = ?", inviterID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: student %s", ErrNotFound, inviterID)
		}

		var err error
		if report.Removed, err = dedupInvites(tx, inviterID); err != nil {
			return err
		}
		if report.UsernamesUpdated, err = syncInviteUsernames(tx, inviterID); err != nil {
			return err
		}

		var invitees []string
		if err := tx.Model(&models.Invite{}).Where("inviter_id = ?", inviterID).Distinct().Pluck("invited_id", &invitees).Error; err != nil {
			return err
		}
		for _, id := range invitees {
			promoted, err := promoteIfEligible(tx, id)
			if err != nil {
				return err
			}
			report.Promoted += promoted
		}

		report.InviteCount, err = recomputeInviteStats(tx, inviterID, s.Now())
		return err
	})
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// SyncAllInvites runs SyncInvites for every inviter.
func (s *InviteService) SyncAllInvites(ctx context.Context) ([]SyncReport, error) {
	var inviters []string
	if err := s.DB.WithContext(ctx).Model(&models.Invite{}).Distinct().Pluck("inviter_id", &inviters).Error; err != nil {
		return nil, err
	}
	sort.Strings(inviters)

	reports := make([]SyncReport, 0, len(inviters))
	for _, id := range inviters {
		r, err := s.SyncInvites(ctx, id)
		if err != nil {
			return reports, fmt.Errorf("sync invites for %s: %w", id, err)
		}
		reports = append(reports, *r)
	}
	return reports, nil
}

type InviteSummary struct {
	InviterID   string          `json:"inviter_id"`
	InviteCount int64           `json:"invite_count"`
	Pending     int64           `json:"pending"`
	Approved    int64           `json:"approved"`
	Payable     int64           `json:"payable"`
	Payout      decimal.Decimal `json:"payout"`
	Paid        decimal.Decimal `json:"paid"`
	Remaining   decimal.Decimal `json:"remaining"`
}

func (s *InviteService) Summary(ctx context.Context, inviterID string) (*InviteSummary, error) {
	db := s.DB.WithContext(ctx)
	sum := InviteSummary{InviterID: inviterID}

	type statusCount struct {
		Status models.InviteStatus
		N      int64
	}
	var counts []statusCount
	if err := db.Model(&models.Invite{}).
		Select("status, COUNT(DISTINCT invited_id) AS n").
		Where("inviter_id = ?", inviterID).
		Group("status").
		Scan(&counts).Error; err != nil {
		return nil, err
	}
	for _, c := range counts {
		switch c.Status {
		case models.InvitePending:
			sum.Pending = c.N
		case models.InviteApproved:
			sum.Approved = c.N
		}
	}
	sum.InviteCount = sum.Pending + sum.Approved

	var err error
	if sum.Payable, err = payableCount(db, inviterID); err != nil {
		return nil, err
	}
	sum.Payout = BonusPerInvite.Mul(decimal.NewFromInt(sum.Payable))
	if sum.Paid, err = paidTotal(db, inviterID); err != nil {
		return nil, err
	}
	sum.Remaining = sum.Payout.Sub(sum.Paid)
	return &sum, nil
}

func (s *InviteService) ListInvites(ctx context.Context, inviterID string, status models.InviteStatus) ([]models.Invite, error) {
	q := s.DB.WithContext(ctx).Where("inviter_id = ?", inviterID).Order("created_at DESC")
	if status != "" {
		if status != models.InvitePending && status != models.InviteApproved {
			return nil, validationErr("unknown invite status %q", status)
		}
		q = q.Where("status = ?", status)
	}
	var invites []models.Invite
	if err := q.Find(&invites).Error; err != nil {
		return nil, err
	}
	return invites, nil
}

// EnsureInviteCode returns the student's invite code, issuing a chat invite
// link when a connector is available.
func (s *InviteService) EnsureInviteCode(ctx context.Context, studentID string) (string, error) {
	db := s.DB.WithContext(ctx)

	var existing models.InviteCode
	err := db.Where("student_id = ?", studentID).First(&existing).Error
	if err == nil {
		return existing.Code, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}

	var n int64
	if err := db.Model(&models.Student{}).Where("id = ?", studentID).Count(&n).Error; err != nil {
		return "", err
	}
	if n == 0 {
		return "", fmt.Errorf("%w: student %s", ErrNotFound, studentID)
	}

	code := "inv-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	if s.Links != nil {
		link, err := s.Links.IssueInviteLink(ctx, studentID)
		if err != nil {
			return "", fmt.Errorf("issue invite link: %w", err)
		}
		code = link
	}

	row := models.InviteCode{Code: code, StudentID: studentID}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
		return "", err
	}
	// a concurrent caller may have won
	if err := db.Where("student_id = ?", studentID).First(&existing).Error; err != nil {
		return "", err
	}
	return existing.Code, nil
}

// InviteLinkForChat resolves a chat user to a student (placeholder if needed)
// and returns that student's invite code.
func (s *InviteService) InviteLinkForChat(ctx context.Context, chat ChatIdentity) (string, error) {
	var st models.Student
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		st, err = ensurePlaceholder(tx, chat, s.Now())
		return err
	})
	if err != nil {
		return "", err
	}
	return s.EnsureInviteCode(ctx, st.ID)
}

// HandleMemberJoined handles "member joined with invite code". Unknown codes and
// self-invites are ignored.
func (s *InviteService) HandleMemberJoined(ctx context.Context, code string, member ChatIdentity) (bool, error) {
	var owner models.InviteCode
	err := s.DB.WithContext(ctx).Where("code = ?", code).First(&owner).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.Log.Warn("⚠️ Member joined with unknown invite code", zap.String("code", code), zap.Int64("chat_id", member.ID))
		return false, nil
	}
	if err != nil {
		return false, err
	}

	var created bool
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invitee, err := ensurePlaceholder(tx, member, s.Now())
		if err != nil {
			return err
		}
		if invitee.ID == owner.StudentID {
			s.Log.Info("↩️ Ignoring self-invite", zap.String("student_id", invitee.ID))
			return nil
		}
		created, err = createInvite(tx, owner.StudentID, invitee.ID, invitee.DisplayName(), s.Now())
		return err
	})
	if err != nil {
		return false, err
	}
	if created {
		s.Log.Info("📨 Invite created from chat join",
			zap.String("inviter_id", owner.StudentID), zap.Int64("chat_id", member.ID))
	}
	return created, nil
}
