package scanner

import (
	"errors"

	"residence-backend/internal/auth"
	"residence-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

const maxImageBytes = 8 << 20

type ScanRequest struct {
	Data string `json:"data"`
	Request
}

type ManualRequest struct {
	ResidentID string `json:"residentId"`
	Request
}

func withPersonnel(c *fiber.Ctx, req *Request) {
	if req.SecurityPersonnel != "" {
		return
	}
	if u := auth.CurrentUser(c); u != nil {
		req.SecurityPersonnel = u.FullName()
	}
}

func respond(c *fiber.Ctx, res *Result, err error) error {
	if errors.Is(err, ErrInvalidInput) {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err != nil {
		return err
	}
	return c.JSON(res)
}

// POST /api/scanner/scan
func ScanHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body ScanRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		withPersonnel(c, &body.Request)

		res, err := svc.Process(c.UserContext(), body.Data, body.Request)
		return respond(c, res, err)
	}
}

// POST /api/scanner/scan-image (multipart: image, accessType, location)
func ScanImageHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile("image")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "image file is required")
		}
		if fh.Size > maxImageBytes {
			return fiber.NewError(fiber.StatusRequestEntityTooLarge, "Image is too large")
		}
		f, err := fh.Open()
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Could not read image")
		}
		defer f.Close()

		req := Request{
			AccessType:        models.AccessType(c.FormValue("accessType")),
			Location:          c.FormValue("location"),
			SecurityPersonnel: c.FormValue("securityPersonnel"),
		}
		withPersonnel(c, &req)

		res, err := svc.ProcessImage(c.UserContext(), f, req)
		return respond(c, res, err)
	}
}

// POST /api/scanner/manual
func ManualHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body ManualRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		withPersonnel(c, &body.Request)

		res, err := svc.RecordManual(c.UserContext(), body.ResidentID, body.Request)
		return respond(c, res, err)
	}
}
