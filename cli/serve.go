package cli

import (
	"context"
	"strings"
	"time"

	"github.com/visionvansh/clipifypost-sub001/handlers"
	"github.com/visionvansh/clipifypost-sub001/middleware"
	"github.com/visionvansh/clipifypost-sub001/storage"
	"github.com/visionvansh/clipifypost-sub001/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func NewServeCommand(opts *RootOptions) *cobra.Command {
	var skipMigrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, chat connector and background workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.cfg.Validate(); err != nil {
				return err
			}
			rt, err := bootstrap(cmd.Context(), opts, true)
			if err != nil {
				return err
			}
			defer rt.Close()

			if !skipMigrate {
				if err := storage.Migrate(rt.db); err != nil {
					return err
				}
			}
			return serve(cmd.Context(), rt)
		},
	}
	cmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "do not run schema migrations on start")
	return cmd
}

func serve(ctx context.Context, rt *runtime) error {
	app := newServer(rt)
	log := rt.log

	refresher := workers.NewStatsRefresher(rt.stats, rt.invites, rt.cfg.StatsRefreshInterval, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("✅ Server listening", zap.String("port", rt.cfg.Port),
			zap.Strings("allowed_origins", rt.cfg.AllowedOrigins))
		return app.Listen(":" + rt.cfg.Port)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")
		return app.ShutdownWithTimeout(10 * time.Second)
	})
	g.Go(func() error {
		if err := refresher.Start(gctx); err != nil {
			return err
		}
		<-gctx.Done()
		return refresher.Shutdown()
	})
	if rt.bot != nil {
		g.Go(func() error { return rt.bot.Run(gctx) })
	}
	if rt.cfg.ProfileSyncURL != "" {
		profiles := workers.NewProfileSyncWorker(rt.db, rt.invites, rt.stats,
			rt.cfg.ProfileSyncURL, rt.cfg.ProfileSyncToken, rt.cfg.ProfileSyncInterval, log)
		g.Go(func() error { return profiles.Run(gctx) })
	}
	return g.Wait()
}

// newServer builds the fiber app. Health and metrics are mounted ahead of
// the gateway check; everything else requires the gateway token.
func newServer(rt *runtime) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:   "clipifypost",
		BodyLimit: 1024 * 1024,
	})

	app.Use(middleware.RequestLogger(rt.log))
	app.Use(middleware.Metrics())

	origins := strings.Join(rt.cfg.AllowedOrigins, ",")
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-User-ID, X-User-Roles",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: !strings.Contains(origins, "*"),
		MaxAge:           86400,
	}))

	handlers.SetupPublicRoutes(app, rt.db, rt.log)

	app.Use(middleware.GatewayAuth(rt.cfg.GatewayToken, rt.log))
	handlers.SetupRoutes(app, handlers.Services{
		Students: rt.students,
		Reels:    rt.reels,
		Stats:    rt.stats,
		Invites:  rt.invites,
		Brands:   rt.brands,
		Exports:  rt.exports,
		Audit:    rt.audit,
	}, rt.log)
	return app
}
