package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type ReportRow struct {
	UserID          string
	Username        string
	Reels           int
	ApprovedReels   int
	CreditedViews   int64
	Revenue         decimal.Decimal
	ApprovedInvites int64
	ReferralPayout  decimal.Decimal
	ReferralPaid    decimal.Decimal
}

var reportHeader = []string{
	"user_id", "username", "reels", "approved_reels", "credited_views",
	"revenue", "approved_invites", "referral_payout", "referral_paid",
}

type ExportService struct {
	Stats    *StatsService
	Invites  *InviteService
	Uploader Uploader
	Log      *zap.Logger
}

func NewExportService(stats *StatsService, invites *InviteService, uploader Uploader, log *zap.Logger) *ExportService {
	return &ExportService{Stats: stats, Invites: invites, Uploader: uploader, Log: log}
}

// MonthlyReport builds one row per student with reels in month.
func (s *ExportService) MonthlyReport(ctx context.Context, month string) ([]ReportRow, error) {
	stats, err := s.Stats.compute(ctx, month, "")
	if err != nil {
		return nil, err
	}
	rows := make([]ReportRow, 0, len(stats))
	for _, ms := range stats {
		summary, err := s.Invites.Summary(ctx, ms.UserID)
		if err != nil {
			return nil, fmt.Errorf("invite summary for %s: %w", ms.UserID, err)
		}
		rows = append(rows, ReportRow{
			UserID:          ms.UserID,
			Username:        ms.Username,
			Reels:           ms.TotalReels,
			ApprovedReels:   ms.Approved,
			CreditedViews:   ms.CreditedViews,
			Revenue:         ms.Revenue,
			ApprovedInvites: summary.Approved,
			ReferralPayout:  summary.Payout,
			ReferralPaid:    summary.Paid,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Username != rows[j].Username {
			return rows[i].Username < rows[j].Username
		}
		return rows[i].UserID < rows[j].UserID
	})
	return rows, nil
}

func WriteReportCSV(w io.Writer, rows []ReportRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(reportHeader); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write([]string{
			r.UserID,
			r.Username,
			strconv.Itoa(r.Reels),
			strconv.Itoa(r.ApprovedReels),
			strconv.FormatInt(r.CreditedViews, 10),
			r.Revenue.StringFixed(2),
			strconv.FormatInt(r.ApprovedInvites, 10),
			r.ReferralPayout.StringFixed(2),
			r.ReferralPaid.StringFixed(2),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Export renders the month's report and uploads it, returning its URL.
func (s *ExportService) Export(ctx context.Context, month string) (string, error) {
	if s.Uploader == nil {
		return "", conflictErr("object storage is not configured")
	}
	rows, err := s.MonthlyReport(ctx, month)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := WriteReportCSV(&buf, rows); err != nil {
		return "", err
	}
	url, err := s.Uploader.Upload(ctx, "exports/"+month+".csv", "text/csv", buf.Bytes())
	if err != nil {
		return "", err
	}
	s.Log.Info("📤 Monthly report exported", zap.String("month", month), zap.Int("rows", len(rows)), zap.String("url", url))
	return url, nil
}
