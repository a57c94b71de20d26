package handlers

import (
	"github.com/visionvansh/clipifypost-sub001/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func SetupAdminRoutes(admin fiber.Router, exports *services.ExportService, audit *services.AuditService, log *zap.Logger) {
	admin.Post("/exports/:month", func(c *fiber.Ctx) error {
		url, err := exports.Export(c.UserContext(), c.Params("month"))
		if err != nil {
			return fail(c, log, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"month": c.Params("month"), "url": url})
	})

	admin.Get("/audit", func(c *fiber.Ctx) error {
		limit, err := queryInt(c, "limit", 100)
		if err != nil {
			return fail(c, log, err)
		}
		entries, err := audit.List(c.UserContext(), c.Query("resource_type"), c.Query("resource_id"), limit)
		if err != nil {
			return fail(c, log, err)
		}
		return c.JSON(fiber.Map{"entries": entries})
	})
}
