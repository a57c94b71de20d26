package handlers

import (
	"strings"

	"github.com/visionvansh/clipifypost-sub001/middleware"
	"github.com/visionvansh/clipifypost-sub001/models"
	"github.com/visionvansh/clipifypost-sub001/services"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type paymentRequest struct {
	Month  string          `json:"month" validate:"required,len=7"`
	Amount decimal.Decimal `json:"amount"`
}

func SetupInviteRoutes(user, admin fiber.Router, invites *services.InviteService, log *zap.Logger) {
	user.Get("/invites", func(c *fiber.Ctx) error {
		status := models.InviteStatus(strings.ToLower(c.Query("status")))
		list, err := invites.ListInvites(c.UserContext(), middleware.UserID(c), status)
		if err != nil {
			return fail(c, log, err)
		}
		return c.JSON(fiber.Map{"invites": list})
	})

	user.Get("/invites/summary", func(c *fiber.Ctx) error {
		sum, err := invites.Summary(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return fail(c, log, err)
		}
		return c.JSON(sum)
	})

	user.Post("/invites/sync", func(c *fiber.Ctx) error {
		report, err := invites.SyncInvites(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return fail(c, log, err)
		}
		return c.JSON(report)
	})

	user.Get("/invites/code", func(c *fiber.Ctx) error {
		code, err := invites.EnsureInviteCode(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return fail(c, log, err)
		}
		return c.JSON(fiber.Map{"code": code})
	})

	admin.Get("/invites/:inviter_id", func(c *fiber.Ctx) error {
		status := models.InviteStatus(strings.ToLower(c.Query("status")))
		list, err := invites.ListInvites(c.UserContext(), c.Params("inviter_id"), status)
		if err != nil {
			return fail(c, log, err)
		}
		return c.JSON(fiber.Map{"invites": list})
	})

	admin.Get("/invites/:inviter_id/summary", func(c *fiber.Ctx) error {
		sum, err := invites.Summary(c.UserContext(), c.Params("inviter_id"))
		if err != nil {
			return fail(c, log, err)
		}
		return c.JSON(sum)
	})

	admin.Post("/invites/:inviter_id/sync", func(c *fiber.Ctx) error {
		report, err := invites.SyncInvites(c.UserContext(), c.Params("inviter_id"))
		if err != nil {
			return fail(c, log, err)
		}
		return c.JSON(report)
	})

	admin.Post("/invites/:inviter_id/payments", func(c *fiber.Ctx) error {
		var req paymentRequest
		if err := parseBody(c, &req); err != nil {
			return fail(c, log, err)
		}
		res, err := invites.RecordPayment(c.UserContext(), middleware.UserID(c), c.Params("inviter_id"), req.Month, req.Amount)
		if err != nil {
			return fail(c, log, err)
		}
		return c.Status(fiber.StatusCreated).JSON(res)
	})
}
