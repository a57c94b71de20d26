package handlers

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/visionvansh/clipifypost-sub001/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// fail maps a service error to its HTTP status. Unclassified errors are
// logged and hidden behind a generic 500.
func fail(c *fiber.Ctx, log *zap.Logger, err error) error {
	status, code := fiber.StatusInternalServerError, "internal"
	switch {
	case errors.Is(err, services.ErrValidation):
		status, code = fiber.StatusBadRequest, "validation"
	case errors.Is(err, services.ErrUnauthorized):
		status, code = fiber.StatusUnauthorized, "unauthorized"
	case errors.Is(err, services.ErrForbidden):
		status, code = fiber.StatusForbidden, "forbidden"
	case errors.Is(err, services.ErrNotFound):
		status, code = fiber.StatusNotFound, "not_found"
	case errors.Is(err, services.ErrConflict):
		status, code = fiber.StatusConflict, "conflict"
	case errors.Is(err, services.ErrInvariant):
		status, code = fiber.StatusUnprocessableEntity, "invariant"
	}

	msg := err.Error()
	if status == fiber.StatusInternalServerError {
		log.Error("❌ Request failed",
			zap.String("method", c.Method()), zap.String("path", c.Path()), zap.Error(err))
		msg = "internal server error"
	}
	return c.Status(status).JSON(fiber.Map{"error": msg, "code": code})
}

// parseBody decodes the JSON body into dst and runs its validate tags.
func parseBody(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return fmt.Errorf("%w: invalid request body", services.ErrValidation)
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			parts := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", services.ErrValidation, strings.Join(parts, "; "))
		}
		return fmt.Errorf("%w: %s", services.ErrValidation, err.Error())
	}
	return nil
}

func queryInt(c *fiber.Ctx, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", services.ErrValidation, key)
	}
	return n, nil
}
