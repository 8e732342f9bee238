package dashboard

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// GET /api/dashboard/stats
func StatsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		stats, err := svc.Stats(c.UserContext())
		if err != nil {
			return err
		}
		return c.JSON(stats)
	}
}

// GET /api/dashboard/activity?days=7
func ActivityHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		days := 7
		if v := c.Query("days"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				return fiber.NewError(fiber.StatusBadRequest, "days must be a positive number")
			}
			days = n
		}

		resp, err := svc.Activity(c.UserContext(), days)
		if err != nil {
			return err
		}
		return c.JSON(resp)
	}
}
