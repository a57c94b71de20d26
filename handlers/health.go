package handlers

import (
	"github.com/visionvansh/clipifypost-sub001/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SetupPublicRoutes registers liveness and metrics. They are mounted before
// the gateway check so probes and scrapers need no token.
func SetupPublicRoutes(app *fiber.App, db *gorm.DB, log *zap.Logger) {
	app.Get("/health", func(c *fiber.Ctx) error {
		if err := storage.Ping(db); err != nil {
			log.Warn("⚠️ Health check failed", zap.Error(err))
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
}
