package handlers

import (
	"github.com/visionvansh/clipifypost-sub001/middleware"
	"github.com/visionvansh/clipifypost-sub001/services"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type editorsRequest struct {
	Views   int64           `json:"views" validate:"min=0"`
	Revenue decimal.Decimal `json:"revenue"`
}

func SetupStatsRoutes(user, admin fiber.Router, stats *services.StatsService, invites *services.InviteService, log *zap.Logger) {
	user.Get("/stats/:month", func(c *fiber.Ctx) error {
		ms, err := stats.UserMonthStats(c.UserContext(), middleware.UserID(c), c.Params("month"))
		if err != nil {
			return fail(c, log, err)
		}
		return c.JSON(ms)
	})

	admin.Get("/stats/:month", func(c *fiber.Ctx) error {
		all, err := stats.AllUsersMonthStats(c.UserContext(), c.Params("month"))
		if err != nil {
			return fail(c, log, err)
		}
		return c.JSON(fiber.Map{"month": c.Params("month"), "users": all})
	})

	admin.Get("/stats/:month/users/:user_id", func(c *fiber.Ctx) error {
		ms, err := stats.UserMonthStats(c.UserContext(), c.Params("user_id"), c.Params("month"))
		if err != nil {
			return fail(c, log, err)
		}
		return c.JSON(ms)
	})

	// Refreshing also promotes invites whose members crossed the threshold.
	admin.Post("/stats/:month/refresh", func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		updated, err := stats.RefreshMonth(ctx, c.Params("month"))
		if err != nil {
			return fail(c, log, err)
		}
		promoted, err := invites.PromotePending(ctx)
		if err != nil {
			return fail(c, log, err)
		}
		return c.JSON(fiber.Map{"month": c.Params("month"), "records_updated": updated, "invites_promoted": promoted})
	})

	admin.Put("/stats/:month/users/:user_id/editors", func(c *fiber.Ctx) error {
		var req editorsRequest
		if err := parseBody(c, &req); err != nil {
			return fail(c, log, err)
		}
		rec, err := stats.SetEditorsHubStats(c.UserContext(), middleware.UserID(c),
			c.Params("user_id"), c.Params("month"), req.Views, req.Revenue)
		if err != nil {
			return fail(c, log, err)
		}
		return c.JSON(rec)
	})
}
