package handlers

import (
	"github.com/visionvansh/clipifypost-sub001/middleware"
	"github.com/visionvansh/clipifypost-sub001/models"
	"github.com/visionvansh/clipifypost-sub001/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type brandStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=Active Stopped"`
}

func SetupBrandRoutes(user, admin fiber.Router, brands *services.BrandService, log *zap.Logger) {
	user.Get("/brands", func(c *fiber.Ctx) error {
		list, err := brands.List(c.UserContext(), true)
		if err != nil {
			return fail(c, log, err)
		}
		return c.JSON(fiber.Map{"brands": list})
	})

	admin.Get("/brands", func(c *fiber.Ctx) error {
		list, err := brands.List(c.UserContext(), c.QueryBool("active", false))
		if err != nil {
			return fail(c, log, err)
		}
		return c.JSON(fiber.Map{"brands": list})
	})

	admin.Post("/brands", func(c *fiber.Ctx) error {
		var in services.BrandInput
		if err := parseBody(c, &in); err != nil {
			return fail(c, log, err)
		}
		brand, err := brands.Create(c.UserContext(), middleware.UserID(c), in)
		if err != nil {
			return fail(c, log, err)
		}
		return c.Status(fiber.StatusCreated).JSON(brand)
	})

	admin.Put("/brands/:id", func(c *fiber.Ctx) error {
		var in services.BrandInput
		if err := parseBody(c, &in); err != nil {
			return fail(c, log, err)
		}
		brand, err := brands.Update(c.UserContext(), middleware.UserID(c), c.Params("id"), in)
		if err != nil {
			return fail(c, log, err)
		}
		return c.JSON(brand)
	})

	admin.Patch("/brands/:id/status", func(c *fiber.Ctx) error {
		var req brandStatusRequest
		if err := parseBody(c, &req); err != nil {
			return fail(c, log, err)
		}
		brand, err := brands.SetStatus(c.UserContext(), middleware.UserID(c), c.Params("id"), models.BrandStatus(req.Status))
		if err != nil {
			return fail(c, log, err)
		}
		return c.JSON(brand)
	})
}
