package guest

import (
	"errors"

	"residence-backend/internal/auth"
	"residence-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type MovementRequest struct {
	Location string `json:"location"`
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, "Guest not found")
	case errors.Is(err, ErrInvalid):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, ErrInvalidTransition):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return err
	}
}

// GET /api/guests?status=
func ListHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		guests, err := svc.List(c.UserContext(), models.GuestStatus(c.Query("status")))
		if err != nil {
			return err
		}
		return c.JSON(guests)
	}
}

func CreateHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateInput
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		g, err := svc.Create(c.UserContext(), body)
		if err != nil {
			return toHTTPError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(g)
	}
}

func movementHandler(move func(*fiber.Ctx, string, string, string) (*models.Guest, error)) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body MovementRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&body); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
			}
		}
		personnel := ""
		if u := auth.CurrentUser(c); u != nil {
			personnel = u.FullName()
		}

		g, err := move(c, c.Params("id"), body.Location, personnel)
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(g)
	}
}

func ArriveHandler(svc *Service) fiber.Handler {
	return movementHandler(func(c *fiber.Ctx, id, location, personnel string) (*models.Guest, error) {
		return svc.Arrive(c.UserContext(), id, location, personnel)
	})
}

func DepartHandler(svc *Service) fiber.Handler {
	return movementHandler(func(c *fiber.Ctx, id, location, personnel string) (*models.Guest, error) {
		return svc.Depart(c.UserContext(), id, location, personnel)
	})
}
