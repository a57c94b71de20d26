package cli

import (
	"context"
	"fmt"

	"github.com/visionvansh/clipifypost-sub001/config"
	"github.com/visionvansh/clipifypost-sub001/integrations/telegram"
	"github.com/visionvansh/clipifypost-sub001/services"
	"github.com/visionvansh/clipifypost-sub001/storage"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// runtime is the wired service graph shared by every command.
type runtime struct {
	cfg *config.Config
	log *zap.Logger
	db  *gorm.DB

	students *services.StudentService
	reels    *services.ReelService
	stats    *services.StatsService
	invites  *services.InviteService
	brands   *services.BrandService
	exports  *services.ExportService
	audit    *services.AuditService

	cache *storage.RedisStatsCache
	bot   *telegram.Connector
}

// bootstrap opens the database and builds services. Optional integrations
// are wired only when configured.
func bootstrap(ctx context.Context, opts *RootOptions, withBot bool) (*runtime, error) {
	if err := opts.cfg.RequireDatabase(); err != nil {
		return nil, err
	}
	db, err := storage.Open(opts.cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	rt := newRuntime(opts.cfg, opts.log, db)

	if opts.cfg.RedisURL != "" {
		cache, err := storage.NewRedisStatsCache(ctx, opts.cfg.RedisURL, opts.cfg.StatsCacheTTL, opts.log)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.useCache(cache)
	}

	if opts.cfg.R2Enabled() {
		uploader, err := storage.NewR2Uploader(ctx, storage.R2Config{
			AccountID:       opts.cfg.R2AccountID,
			AccessKeyID:     opts.cfg.R2AccessKeyID,
			AccessKeySecret: opts.cfg.R2AccessKeySecret,
			Bucket:          opts.cfg.R2Bucket,
			CDNBaseURL:      opts.cfg.CDNBaseURL,
		})
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.exports.Uploader = uploader
	}

	if withBot && opts.cfg.TelegramBotToken != "" {
		bot, err := telegram.New(opts.cfg.TelegramBotToken, opts.cfg.TelegramGroupID, rt.invites, rt.students, opts.log)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.useBot(bot)
	}
	return rt, nil
}

func newRuntime(cfg *config.Config, log *zap.Logger, db *gorm.DB) *runtime {
	stats := services.NewStatsService(db, log)
	invites := services.NewInviteService(db, log)
	return &runtime{
		cfg:      cfg,
		log:      log,
		db:       db,
		students: services.NewStudentService(db, log),
		reels:    services.NewReelService(db, log),
		stats:    stats,
		invites:  invites,
		brands:   services.NewBrandService(db, log),
		exports:  services.NewExportService(stats, invites, nil, log),
		audit:    services.NewAuditService(db),
	}
}

func (rt *runtime) useCache(cache *storage.RedisStatsCache) {
	rt.cache = cache
	rt.reels.Cache = cache
	rt.stats.Cache = cache
	rt.brands.Cache = cache
}

func (rt *runtime) useBot(bot *telegram.Connector) {
	rt.bot = bot
	rt.reels.Notifier = bot
	rt.invites.Links = bot
}

func (rt *runtime) Close() {
	if rt.cache != nil {
		_ = rt.cache.Close()
	}
	if sqlDB, err := rt.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
