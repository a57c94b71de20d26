package handlers

import (
	"strings"

	"github.com/visionvansh/clipifypost-sub001/middleware"
	"github.com/visionvansh/clipifypost-sub001/models"
	"github.com/visionvansh/clipifypost-sub001/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type submitReelRequest struct {
	BrandID  string `json:"brand_id" validate:"required"`
	VideoURL string `json:"video_url" validate:"required,url"`
}

type updateViewsRequest struct {
	Views *int64 `json:"views" validate:"required,min=0"`
}

func SetupReelRoutes(user, admin fiber.Router, reels *services.ReelService, log *zap.Logger) {
	user.Post("/reels", func(c *fiber.Ctx) error {
		var req submitReelRequest
		if err := parseBody(c, &req); err != nil {
			return fail(c, log, err)
		}
		reel, err := reels.SubmitReel(c.UserContext(), middleware.UserID(c), req.BrandID, req.VideoURL)
		if err != nil {
			return fail(c, log, err)
		}
		return c.Status(fiber.StatusCreated).JSON(reel)
	})

	user.Get("/reels", func(c *fiber.Ctx) error {
		f, err := reelFilter(c)
		if err != nil {
			return fail(c, log, err)
		}
		f.StudentID = middleware.UserID(c)
		return listReels(c, reels, f, log)
	})

	user.Patch("/reels/:id/views", func(c *fiber.Ctx) error {
		var req updateViewsRequest
		if err := parseBody(c, &req); err != nil {
			return fail(c, log, err)
		}
		reel, err := reels.UserUpdateViews(c.UserContext(), middleware.UserID(c), c.Params("id"), *req.Views)
		if err != nil {
			return fail(c, log, err)
		}
		return c.JSON(reel)
	})

	user.Get("/reels/:id/history", func(c *fiber.Ctx) error {
		ledger, err := reels.History(c.UserContext(), c.Params("id"), middleware.UserID(c))
		if err != nil {
			return fail(c, log, err)
		}
		return c.JSON(ledger)
	})

	admin.Get("/reels", func(c *fiber.Ctx) error {
		f, err := reelFilter(c)
		if err != nil {
			return fail(c, log, err)
		}
		f.StudentID = c.Query("student_id")
		return listReels(c, reels, f, log)
	})

	admin.Get("/reels/:id/history", func(c *fiber.Ctx) error {
		ledger, err := reels.History(c.UserContext(), c.Params("id"), "")
		if err != nil {
			return fail(c, log, err)
		}
		return c.JSON(ledger)
	})

	admin.Post("/reels/:id/actions", func(c *fiber.Ctx) error {
		var in services.AdminActionInput
		if err := parseBody(c, &in); err != nil {
			return fail(c, log, err)
		}
		res, err := reels.ApplyAdminAction(c.UserContext(), middleware.UserID(c), c.Params("id"), in)
		if err != nil {
			return fail(c, log, err)
		}
		return c.JSON(res)
	})

	admin.Post("/months/:month/approve", func(c *fiber.Ctx) error {
		n, err := reels.BulkApproveForMonth(c.UserContext(), middleware.UserID(c), c.Params("month"))
		if err != nil {
			return fail(c, log, err)
		}
		return c.JSON(fiber.Map{"month": c.Params("month"), "approved": n})
	})
}

func reelFilter(c *fiber.Ctx) (services.ReelFilter, error) {
	limit, err := queryInt(c, "limit", 50)
	if err != nil {
		return services.ReelFilter{}, err
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		return services.ReelFilter{}, err
	}
	return services.ReelFilter{
		BrandID: c.Query("brand_id"),
		Status:  models.ReelStatus(strings.ToUpper(c.Query("status"))),
		Month:   c.Query("month"),
		Limit:   limit,
		Offset:  offset,
	}, nil
}

func listReels(c *fiber.Ctx, reels *services.ReelService, f services.ReelFilter, log *zap.Logger) error {
	items, total, err := reels.List(c.UserContext(), f)
	if err != nil {
		return fail(c, log, err)
	}
	return c.JSON(fiber.Map{"reels": items, "total": total})
}
