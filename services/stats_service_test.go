package services

import (
	"context"
	"testing"
	"time"

	"github.com/visionvansh/clipifypost-sub001/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedMonth(t *testing.T, e *env) {
	t.Helper()
	ctx := context.Background()
	alice := e.student(t, "alice")
	bob := e.student(t, "bob")
	acme := e.brand(t, "Acme", "10")
	zeta := e.brand(t, "Zeta", "40")

	e.clock.Set(time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC))
	r1 := e.reel(t, alice.ID, acme.ID)
	r2 := e.reel(t, alice.ID, zeta.ID)
	r3 := e.reel(t, bob.ID, acme.ID)
	e.reel(t, bob.ID, acme.ID)

	e.approve(t, r1.ID, 200000)
	e.approve(t, r2.ID, 50000)
	e.approve(t, r3.ID, 10000)
	_, err := e.reels.ApplyAdminAction(ctx, "admin", r3.ID, AdminActionInput{Action: ActionReject, Message: "dup"})
	require.NoError(t, err)

	e.clock.Set(time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC))
	e.approve(t, e.reel(t, alice.ID, acme.ID).ID, 999)
}

func TestAllUsersMonthStats(t *testing.T) {
	e := newEnv(t)
	seedMonth(t, e)

	stats, err := e.stats.AllUsersMonthStats(context.Background(), "2024-05")
	require.NoError(t, err)
	require.Len(t, stats, 2)

	alice := stats[0]
	assert.Equal(t, "alice", alice.UserID)
	assert.Equal(t, 2, alice.Approved)
	assert.Equal(t, int64(250000), alice.CreditedViews)
	assert.Equal(t, "40.00", alice.Revenue.StringFixed(2))
	require.Len(t, alice.Brands, 2)
	assert.Equal(t, "Acme", alice.Brands[0].BrandName)

	bob := stats[1]
	assert.Equal(t, 2, bob.TotalReels)
	assert.Equal(t, 1, bob.Pending)
	assert.Equal(t, 1, bob.Disapproved)
	assert.Zero(t, bob.CreditedViews)

	_, cached := e.cache.values["2024-05"]
	assert.True(t, cached)

	_, err = e.stats.AllUsersMonthStats(context.Background(), "2024-5")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUserMonthStats(t *testing.T) {
	e := newEnv(t)
	seedMonth(t, e)
	ctx := context.Background()

	ms, err := e.stats.UserMonthStats(ctx, "alice", "2024-06")
	require.NoError(t, err)
	assert.Equal(t, int64(999), ms.CreditedViews)

	ms, err = e.stats.UserMonthStats(ctx, "bob", "2024-06")
	require.NoError(t, err)
	assert.Zero(t, ms.TotalReels)

	_, err = e.stats.UserMonthStats(ctx, "nobody", "2024-06")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRefreshMonthWritesUploadersHub(t *testing.T) {
	e := newEnv(t)
	seedMonth(t, e)
	ctx := context.Background()
	e.setTotalViews(t, "alice", "2024-05", 1000)

	n, err := e.stats.RefreshMonth(ctx, "2024-05")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var rec models.UserStatsRecord
	require.NoError(t, e.db.Where("user_id = ? AND month = ?", "alice", "2024-05").First(&rec).Error)
	assert.Equal(t, int64(250000), rec.UploadersHubViews)
	assert.Equal(t, int64(251000), rec.TotalViews)
	assert.Equal(t, "40.00", rec.TotalRevenue.StringFixed(2))
	assert.NotNil(t, rec.LastRefreshedAt)

	// once the approval is reversed the record drops back
	var reel models.UserReel
	require.NoError(t, e.db.Where("student_id = ? AND brand_id IN (?)", "alice",
		e.db.Model(&models.Brand{}).Select("id").Where("name = ?", "Zeta")).First(&reel).Error)
	_, err = e.reels.ApplyAdminAction(ctx, "admin", reel.ID, AdminActionInput{Action: ActionReject, Message: "fake"})
	require.NoError(t, err)

	_, err = e.stats.RefreshMonth(ctx, "2024-05")
	require.NoError(t, err)
	require.NoError(t, e.db.Where("user_id = ? AND month = ?", "alice", "2024-05").First(&rec).Error)
	assert.Equal(t, int64(200000), rec.UploadersHubViews)
	assert.Equal(t, int64(201000), rec.TotalViews)
}

func TestSetEditorsHubStatsValidation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.student(t, "alice")

	_, err := e.stats.SetEditorsHubStats(ctx, "admin", "alice", "2024-05", -1, mustDecimal("0"))
	assert.ErrorIs(t, err, ErrValidation)
	_, err = e.stats.SetEditorsHubStats(ctx, "admin", "ghost", "2024-05", 1, mustDecimal("0"))
	assert.ErrorIs(t, err, ErrNotFound)

	// a month outside the signup year gets its row on demand
	rec, err := e.stats.SetEditorsHubStats(ctx, "admin", "alice", "2031-01", 7, mustDecimal("1.5"))
	require.NoError(t, err)
	assert.Equal(t, int64(7), rec.TotalViews)
	assert.Equal(t, "1.50", rec.TotalRevenue.StringFixed(2))
}
