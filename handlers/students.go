package handlers

import (
	"github.com/visionvansh/clipifypost-sub001/middleware"
	"github.com/visionvansh/clipifypost-sub001/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type signInRequest struct {
	Username string `json:"username" validate:"max=64"`
	Email    string `json:"email" validate:"omitempty,email"`
}

func SetupStudentRoutes(user, admin fiber.Router, students *services.StudentService, log *zap.Logger) {
	user.Post("/me", func(c *fiber.Ctx) error {
		var req signInRequest
		if err := parseBody(c, &req); err != nil {
			return fail(c, log, err)
		}
		st, err := students.EnsureStudent(c.UserContext(), middleware.UserID(c), req.Username, req.Email)
		if err != nil {
			return fail(c, log, err)
		}
		return c.JSON(st)
	})

	user.Post("/me/chat", func(c *fiber.Ctx) error {
		var chat services.ChatIdentity
		if err := parseBody(c, &chat); err != nil {
			return fail(c, log, err)
		}
		st, err := students.LinkChatIdentity(c.UserContext(), middleware.UserID(c), chat)
		if err != nil {
			return fail(c, log, err)
		}
		return c.JSON(st)
	})

	admin.Get("/students", func(c *fiber.Ctx) error {
		limit, err := queryInt(c, "limit", 50)
		if err != nil {
			return fail(c, log, err)
		}
		found, err := students.Search(c.UserContext(), c.Query("q"), limit)
		if err != nil {
			return fail(c, log, err)
		}
		return c.JSON(fiber.Map{"students": found})
	})
}
