package resident

import (
	"errors"
	"strconv"
	"strings"

	"residence-backend/internal/auth"
	"residence-backend/internal/credential"
	"residence-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

// -------------------------
// Helpers
// -------------------------

func actor(c *fiber.Ctx) (models.User, error) {
	u := auth.CurrentUser(c)
	if u == nil {
		return models.User{}, fiber.NewError(fiber.StatusForbidden, "Could not resolve the current user")
	}
	return *u, nil
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, "Resident not found")
	case errors.Is(err, ErrInvalid):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	default:
		return err
	}
}

func filterFromQuery(c *fiber.Ctx) (*Filter, error) {
	f := &Filter{
		Building: strings.TrimSpace(c.Query("building")),
		Search:   strings.TrimSpace(c.Query("search")),
	}
	if v := c.Query("active"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fiber.NewError(fiber.StatusBadRequest, "active must be true or false")
		}
		f.IsActive = &b
	}
	return f, nil
}

// -------------------------
// Handlers
// -------------------------

// GET /api/residents?building=&active=&search=&sort=&direction=
func ListHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		f, err := filterFromQuery(c)
		if err != nil {
			return err
		}

		field := SortField(c.Query("sort"))
		dir := SortDirection(strings.ToLower(c.Query("direction")))
		if dir != "" && dir != SortAsc && dir != SortDesc {
			return fiber.NewError(fiber.StatusBadRequest, "direction must be asc or desc")
		}

		residents, err := svc.List(c.UserContext(), f, field, dir)
		if err != nil {
			return err
		}
		return c.JSON(residents)
	}
}

func BuildingsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		b, err := svc.Buildings(c.UserContext())
		if err != nil {
			return err
		}
		return c.JSON(b)
	}
}

func GetHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		r, err := svc.Get(c.UserContext(), c.Params("id"))
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(r)
	}
}

func CreateHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body Input
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		u, err := actor(c)
		if err != nil {
			return err
		}

		r, err := svc.Create(c.UserContext(), body, u)
		if err != nil {
			return toHTTPError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(r)
	}
}

func UpdateHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body Patch
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		u, err := actor(c)
		if err != nil {
			return err
		}

		r, err := svc.Update(c.UserContext(), c.Params("id"), body, u)
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(r)
	}
}

func DeleteHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		u, err := actor(c)
		if err != nil {
			return err
		}

		ok, err := svc.Delete(c.UserContext(), c.Params("id"), u)
		if err != nil {
			return err
		}
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "Resident not found")
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

func ReissueCredentialHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		u, err := actor(c)
		if err != nil {
			return err
		}

		r, err := svc.ReissueCredential(c.UserContext(), c.Params("id"), u)
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(r)
	}
}

// CredentialImageHandler serves the stored credential as a PNG for printing.
func CredentialImageHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		r, err := svc.Get(c.UserContext(), c.Params("id"))
		if err != nil {
			return toHTTPError(err)
		}
		if r.QRCode == "" {
			return fiber.NewError(fiber.StatusNotFound, "Resident has no credential")
		}

		png, err := credential.DecodeDataURI(r.QRCode)
		if err != nil {
			return fiber.NewError(fiber.StatusUnprocessableEntity, "Stored credential image is unreadable")
		}
		c.Set(fiber.HeaderContentType, "image/png")
		c.Set(fiber.HeaderContentDisposition, `inline; filename="credential-`+r.UnitNumber+`.png"`)
		return c.Send(png)
	}
}
