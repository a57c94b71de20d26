package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/visionvansh/clipifypost-sub001/models"
	"github.com/visionvansh/clipifypost-sub001/storage/storagetest"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// clock hands out strictly increasing instants so ledger order is deterministic.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock(start time.Time) *clock { return &clock{now: start} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type env struct {
	db       *gorm.DB
	clock    *clock
	students *StudentService
	brands   *BrandService
	reels    *ReelService
	stats    *StatsService
	invites  *InviteService
	notifier *fakeNotifier
	cache    *fakeCache
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := storagetest.NewDB(t)
	log := zap.NewNop()
	clk := newClock(time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC))

	e := &env{
		db:       db,
		clock:    clk,
		students: NewStudentService(db, log),
		brands:   NewBrandService(db, log),
		reels:    NewReelService(db, log),
		stats:    NewStatsService(db, log),
		invites:  NewInviteService(db, log),
		notifier: &fakeNotifier{},
		cache:    newFakeCache(),
	}
	e.students.Now = clk.Now
	e.brands.Now = clk.Now
	e.reels.Now = clk.Now
	e.stats.Now = clk.Now
	e.invites.Now = clk.Now
	e.reels.Notifier = e.notifier
	e.reels.Cache = e.cache
	e.stats.Cache = e.cache
	e.brands.Cache = e.cache
	return e
}

func (e *env) student(t *testing.T, id string) *models.Student {
	t.Helper()
	st, err := e.students.EnsureStudent(context.Background(), id, id+"_name", id+"@example.com")
	require.NoError(t, err)
	return st
}

func (e *env) brand(t *testing.T, name, rate string) *models.Brand {
	t.Helper()
	b, err := e.brands.Create(context.Background(), "admin", BrandInput{Name: name, RatePer100K: decimal.RequireFromString(rate)})
	require.NoError(t, err)
	return b
}

func (e *env) reel(t *testing.T, studentID, brandID string) *models.UserReel {
	t.Helper()
	r, err := e.reels.SubmitReel(context.Background(), studentID, brandID, "https://video.example/"+studentID)
	require.NoError(t, err)
	return r
}

func (e *env) approve(t *testing.T, reelID string, views int64) *ActionResult {
	t.Helper()
	res, err := e.reels.ApplyAdminAction(context.Background(), "admin", reelID, AdminActionInput{
		Action: ActionApprove, PublishedURL: "https://pub.example/" + reelID, Views: &views,
	})
	require.NoError(t, err)
	return res
}

func (e *env) setTotalViews(t *testing.T, userID, month string, views int64) {
	t.Helper()
	_, err := e.stats.SetEditorsHubStats(context.Background(), "admin", userID, month, views, decimal.Zero)
	require.NoError(t, err)
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []string
	fail bool
}

func (n *fakeNotifier) NotifyStudent(_ context.Context, studentID, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail {
		return errors.New("chat unreachable")
	}
	n.sent = append(n.sent, studentID+": "+text)
	return nil
}

type fakeCache struct {
	mu          sync.Mutex
	values      map[string]any
	invalidated []string
}

func newFakeCache() *fakeCache { return &fakeCache{values: map[string]any{}} }

func (c *fakeCache) Get(_ context.Context, month string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[month]
	if !ok {
		return false, nil
	}
	if out, ok := dst.(*[]MonthStats); ok {
		*out = v.([]MonthStats)
	}
	return true, nil
}

func (c *fakeCache) Set(_ context.Context, month string, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[month] = value
	return nil
}

func (c *fakeCache) Invalidate(_ context.Context, months ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range months {
		delete(c.values, m)
		c.invalidated = append(c.invalidated, m)
	}
	return nil
}

type fakeUploader struct {
	key  string
	body []byte
}

func (u *fakeUploader) Upload(_ context.Context, key, _ string, body []byte) (string, error) {
	u.key = key
	u.body = body
	return "https://cdn.example/" + key, nil
}

func mustDecimal(s string) decimal.Decimal { return decimal.RequireFromString(s) }
