package services

import (
	"sort"

	"github.com/visionvansh/clipifypost-sub001/models"

	"github.com/shopspring/decimal"
)

// ViewsPerRateUnit is the view count a brand's rate is quoted against.
const ViewsPerRateUnit = 100000

// LedgerStep is one replayed history row with the running credited total after it.
type LedgerStep struct {
	models.ReelStatusHistory
	Delta    int64 `json:"delta"`
	Credited int64 `json:"credited"`
}

// sortHistory orders rows chronologically, ties broken by insertion id.
func sortHistory(history []models.ReelStatusHistory) []models.ReelStatusHistory {
	sorted := make([]models.ReelStatusHistory, len(history))
	copy(sorted, history)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted
}

// ReplayLedger folds a reel's history into credited views.
//
// Entering APPROVED credits the approved figure minus what is already credited
// for the open approval, so approve -> resubmit -> approve never counts the same
// views twice. Leaving APPROVED for DISAPPROVED removes exactly what the open
// approval credited. A resubmission rejected while PENDING keeps the earlier
// credit. The running total never drops below zero. This replaces the plain
// add-views-on-approve, subtract-views-on-reject rule, which double counts
// re-approvals.
func ReplayLedger(history []models.ReelStatusHistory) []LedgerStep {
	steps := make([]LedgerStep, 0, len(history))
	var credited, open int64
	var last models.ReelStatus

	for _, entry := range sortHistory(history) {
		before := credited
		switch {
		case entry.Status == models.ReelApproved && last != models.ReelApproved:
			credited += entry.Views - open
			open = entry.Views
		case entry.Status == models.ReelDisapproved && last == models.ReelApproved:
			credited -= open
			open = 0
		}
		if credited < 0 {
			credited = 0
			open = 0
		}
		last = entry.Status
		steps = append(steps, LedgerStep{ReelStatusHistory: entry, Delta: credited - before, Credited: credited})
	}
	return steps
}

// FoldCreditedViews returns only the final total of ReplayLedger.
func FoldCreditedViews(history []models.ReelStatusHistory) int64 {
	steps := ReplayLedger(history)
	if len(steps) == 0 {
		return 0
	}
	return steps[len(steps)-1].Credited
}

// CreditedViews reconciles the replayed total with the reel's live fields.
// An APPROVED reel whose live views exceed the ledger (admin override without a
// history row) is credited its live views; nothing is ever credited beyond them.
func CreditedViews(reel *models.UserReel, history []models.ReelStatusHistory) int64 {
	credited := FoldCreditedViews(history)
	if reel.Status == models.ReelApproved && reel.Views > credited {
		credited = reel.Views
	}
	if credited > reel.Views {
		credited = reel.Views
	}
	if credited < 0 {
		return 0
	}
	return credited
}

// Revenue prices credited views at the brand's current rate per 100k.
func Revenue(credited int64, ratePer100K decimal.Decimal) decimal.Decimal {
	if credited <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(credited).Mul(ratePer100K).Div(decimal.NewFromInt(ViewsPerRateUnit))
}
