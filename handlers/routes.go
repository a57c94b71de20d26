package handlers

import (
	"github.com/visionvansh/clipifypost-sub001/middleware"
	"github.com/visionvansh/clipifypost-sub001/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Services bundles everything the HTTP surface talks to.
type Services struct {
	Students *services.StudentService
	Reels    *services.ReelService
	Stats    *services.StatsService
	Invites  *services.InviteService
	Brands   *services.BrandService
	Exports  *services.ExportService
	Audit    *services.AuditService
}

// SetupRoutes registers the user and admin surfaces. Both sit behind the
// user context; admin routes additionally require the admin role.
func SetupRoutes(app *fiber.App, svc Services, log *zap.Logger) {
	user := app.Group("/", middleware.UserContext(log))
	admin := user.Group("/admin", middleware.RequireAdmin(log))

	SetupStudentRoutes(user, admin, svc.Students, log)
	SetupReelRoutes(user, admin, svc.Reels, log)
	SetupStatsRoutes(user, admin, svc.Stats, svc.Invites, log)
	SetupInviteRoutes(user, admin, svc.Invites, log)
	SetupBrandRoutes(user, admin, svc.Brands, log)
	SetupAdminRoutes(admin, svc.Exports, svc.Audit, log)
}
