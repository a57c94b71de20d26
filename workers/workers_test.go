package workers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/visionvansh/clipifypost-sub001/models"
	"github.com/visionvansh/clipifypost-sub001/services"
	"github.com/visionvansh/clipifypost-sub001/storage/storagetest"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db      *gorm.DB
	invites *services.InviteService
	stats   *services.StatsService
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := storagetest.NewDB(t)
	return fixture{
		db:      db,
		invites: services.NewInviteService(db, zap.NewNop()),
		stats:   services.NewStatsService(db, zap.NewNop()),
	}
}

func TestProfileSyncUpsertsStudentsAndRefreshesInviteNames(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.db.Create(&models.Student{ID: "alice", Username: "alice", SignedUpToWebsite: true}).Error)
	require.NoError(t, f.db.Create(&models.Student{ID: "bob", Username: "bob_old"}).Error)
	_, err := f.invites.CreateInvite(ctx, "alice", "bob", "bob_old")
	require.NoError(t, err)

	var calls atomic.Int32
	updated := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/api/v1/public/profiles", r.URL.Path)
		assert.Equal(t, "svc-token", r.Header.Get("X-Service-Token"))
		assert.NotEmpty(t, r.URL.Query().Get("since"))
		_ = json.NewEncoder(w).Encode(profileChangesResponse{Users: []RemoteProfile{
			{ExternalID: "bob", Username: "bob_new", Email: "bob@example.com", UpdatedAt: updated},
			{ExternalID: "carol", Username: "carol", UpdatedAt: updated.Add(-time.Hour)},
		}})
	}))
	defer srv.Close()

	w := NewProfileSyncWorker(f.db, f.invites, f.stats, srv.URL, "svc-token", time.Minute, zap.NewNop())
	n, err := w.SyncOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, updated, w.since)

	var bob models.Student
	require.NoError(t, f.db.First(&bob, "id = ?", "bob").Error)
	assert.True(t, bob.SignedUpToWebsite)
	assert.Equal(t, "bob_new", bob.Username)

	var carol models.Student
	require.NoError(t, f.db.First(&carol, "id = ?", "carol").Error)
	assert.True(t, carol.SignedUpToWebsite)
	var records int64
	require.NoError(t, f.db.Model(&models.UserStatsRecord{}).Where("user_id = ?", "carol").Count(&records).Error)
	assert.EqualValues(t, 12, records)

	invites, err := f.invites.ListInvites(ctx, "alice", "")
	require.NoError(t, err)
	require.Len(t, invites, 1)
	assert.Equal(t, "bob_new", invites[0].InvitedUsername)
	assert.EqualValues(t, 1, calls.Load())
}

func TestProfileSyncReportsServiceErrors(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	w := NewProfileSyncWorker(f.db, f.invites, f.stats, srv.URL, "svc-token", time.Minute, zap.NewNop())
	_, err := w.SyncOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.True(t, w.since.IsZero())
}

func TestStatsRefresherPromotesInvites(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Date(2024, 5, 20, 9, 0, 0, 0, time.UTC)

	require.NoError(t, f.db.Create(&models.Student{ID: "alice", Username: "alice", SignedUpToWebsite: true}).Error)
	require.NoError(t, f.db.Create(&models.Student{ID: "bob", Username: "bob", SignedUpToWebsite: true}).Error)
	brand := models.Brand{ID: "b1", Name: "Acme", Slug: "acme", RatePer100K: decimal.NewFromInt(10), Status: models.BrandActive}
	require.NoError(t, f.db.Create(&brand).Error)

	reel := models.UserReel{ID: "r1", StudentID: "bob", BrandID: "b1", VideoURL: "https://v/1", Status: models.ReelApproved, Views: 12000}
	reel.CreatedAt = now.Add(-24 * time.Hour)
	require.NoError(t, f.db.Create(&reel).Error)
	require.NoError(t, f.db.Create(&models.ReelStatusHistory{ReelID: "r1", Status: models.ReelApproved, Views: 12000, CreatedAt: reel.CreatedAt}).Error)

	_, err := f.invites.CreateInvite(ctx, "alice", "bob", "bob")
	require.NoError(t, err)

	r := NewStatsRefresher(f.stats, f.invites, time.Hour, zap.NewNop())
	r.now = func() time.Time { return now }
	require.NoError(t, r.RunOnce(ctx))

	sum, err := f.invites.Summary(ctx, "alice")
	require.NoError(t, err)
	assert.EqualValues(t, 1, sum.Approved)
	assert.True(t, decimal.RequireFromString("0.5").Equal(sum.Payout))
}

func TestStatsRefresherShutdownWithoutStart(t *testing.T) {
	f := newFixture(t)
	r := NewStatsRefresher(f.stats, f.invites, time.Hour, zap.NewNop())
	assert.NoError(t, r.Shutdown())
}

func TestStatsRefresherCoversMonthApprovedAfterItEnded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	submitted := time.Date(2024, 5, 30, 18, 0, 0, 0, time.UTC)
	approvedAt := time.Date(2024, 6, 2, 10, 0, 0, 0, time.UTC)

	require.NoError(t, f.db.Create(&models.Student{ID: "alice", Username: "alice", SignedUpToWebsite: true}).Error)
	require.NoError(t, f.db.Create(&models.Student{ID: "bob", Username: "bob", SignedUpToWebsite: true}).Error)
	brand := models.Brand{ID: "b1", Name: "Acme", Slug: "acme", RatePer100K: decimal.NewFromInt(10), Status: models.BrandActive}
	require.NoError(t, f.db.Create(&brand).Error)

	reels := services.NewReelService(f.db, zap.NewNop())
	reels.Now = func() time.Time { return submitted }
	reel, err := reels.SubmitReel(ctx, "bob", "b1", "https://v/may")
	require.NoError(t, err)
	require.NoError(t, f.db.Model(&models.UserReel{}).Where("id = ?", reel.ID).Update("views", 50000).Error)

	_, err = f.invites.CreateInvite(ctx, "alice", "bob", "bob")
	require.NoError(t, err)

	reels.Now = func() time.Time { return approvedAt }
	n, err := reels.BulkApproveForMonth(ctx, "admin", "2024-05")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	r := NewStatsRefresher(f.stats, f.invites, time.Hour, zap.NewNop())
	r.now = func() time.Time { return approvedAt }
	require.NoError(t, r.RunOnce(ctx))

	var may models.UserStatsRecord
	require.NoError(t, f.db.Where("user_id = ? AND month = ?", "bob", "2024-05").First(&may).Error)
	assert.EqualValues(t, 50000, may.TotalViews)

	invites, err := f.invites.ListInvites(ctx, "alice", "")
	require.NoError(t, err)
	require.Len(t, invites, 1)
	assert.Equal(t, models.InviteApproved, invites[0].Status)
}

func TestStatsRefresherPreviousMonthAcrossYearBoundary(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.db.Create(&models.Student{ID: "bob", Username: "bob"}).Error)
	brand := models.Brand{ID: "b1", Name: "Acme", Slug: "acme", RatePer100K: decimal.NewFromInt(10), Status: models.BrandActive}
	require.NoError(t, f.db.Create(&brand).Error)

	december := time.Date(2023, 12, 31, 23, 0, 0, 0, time.UTC)
	reel := models.UserReel{ID: "r1", StudentID: "bob", BrandID: "b1", VideoURL: "https://v/1", Status: models.ReelApproved, Views: 3000}
	reel.CreatedAt = december
	require.NoError(t, f.db.Create(&reel).Error)
	require.NoError(t, f.db.Create(&models.ReelStatusHistory{ReelID: "r1", Status: models.ReelApproved, Views: 3000, CreatedAt: december}).Error)

	r := NewStatsRefresher(f.stats, f.invites, time.Hour, zap.NewNop())
	r.now = func() time.Time { return time.Date(2024, 1, 3, 8, 0, 0, 0, time.UTC) }
	require.NoError(t, r.RunOnce(context.Background()))

	var rec models.UserStatsRecord
	require.NoError(t, f.db.Where("user_id = ? AND month = ?", "bob", "2023-12").First(&rec).Error)
	assert.EqualValues(t, 3000, rec.TotalViews)
}
