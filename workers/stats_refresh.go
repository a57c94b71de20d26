package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/visionvansh/clipifypost-sub001/services"
	"github.com/visionvansh/clipifypost-sub001/utils"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// StatsRefresher periodically persists the previous and current month totals and
// promotes invites whose members crossed the view threshold.
type StatsRefresher struct {
	stats    *services.StatsService
	invites  *services.InviteService
	log      *zap.Logger
	interval time.Duration
	now      func() time.Time

	sched gocron.Scheduler
}

func NewStatsRefresher(stats *services.StatsService, invites *services.InviteService, interval time.Duration, log *zap.Logger) *StatsRefresher {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &StatsRefresher{
		stats:    stats,
		invites:  invites,
		log:      log,
		interval: interval,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// RunOnce refreshes the previous and current month, then runs invite
// promotion. Months are usually bulk-approved after they end, so the
// previous month still changes during the current one.
func (r *StatsRefresher) RunOnce(ctx context.Context) error {
	now := r.now()
	firstOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	months := []string{utils.MonthOf(firstOfMonth.AddDate(0, 0, -1)), utils.MonthOf(now)}

	updated := 0
	for _, month := range months {
		n, err := r.stats.RefreshMonth(ctx, month)
		if err != nil {
			return fmt.Errorf("refresh %s: %w", month, err)
		}
		updated += n
	}
	promoted, err := r.invites.PromotePending(ctx)
	if err != nil {
		return err
	}
	r.log.Info("📊 Stats refreshed",
		zap.Strings("months", months), zap.Int("records", updated), zap.Int64("invites_promoted", promoted))
	return nil
}

// Start schedules RunOnce on the configured interval. The first run happens
// right away.
func (r *StatsRefresher) Start(ctx context.Context) error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	_, err = sched.NewJob(
		gocron.DurationJob(r.interval),
		gocron.NewTask(func() {
			if err := r.RunOnce(ctx); err != nil {
				r.log.Error("❌ Scheduled stats refresh failed", zap.Error(err))
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = sched.Shutdown()
		return err
	}
	r.sched = sched
	sched.Start()
	return nil
}

func (r *StatsRefresher) Shutdown() error {
	if r.sched == nil {
		return nil
	}
	return r.sched.Shutdown()
}
