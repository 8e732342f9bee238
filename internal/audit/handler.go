package audit

import (
	"errors"

	"residence-backend/internal/auth"

	"github.com/gofiber/fiber/v2"
)

// GET /api/audit-logs?entity_type=&entity_id=&user_id=
func ListHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		logs, err := svc.List(c.UserContext(), Filter{
			EntityType: c.Query("entity_type"),
			EntityID:   c.Query("entity_id"),
			UserID:     c.Query("user_id"),
		})
		if err != nil {
			return err
		}
		return c.JSON(logs)
	}
}

// POST /api/audit-logs/:id/undo
func UndoHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		u := auth.CurrentUser(c)
		if u == nil {
			return fiber.NewError(fiber.StatusForbidden, "Could not resolve the current user")
		}

		err := svc.Undo(c.UserContext(), c.Params("id"), *u)
		switch {
		case err == nil:
			return c.JSON(fiber.Map{"message": "Change undone"})
		case errors.Is(err, ErrNotFound):
			return fiber.NewError(fiber.StatusNotFound, "Audit log not found")
		case errors.Is(err, ErrAlreadyUndone):
			return fiber.NewError(fiber.StatusConflict, err.Error())
		case errors.Is(err, ErrUndoConflict):
			return fiber.NewError(fiber.StatusConflict, ErrUndoConflict.Error())
		case errors.Is(err, ErrNotUndoable):
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		default:
			return err
		}
	}
}
