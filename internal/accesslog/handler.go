package accesslog

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"residence-backend/internal/auth"
	"residence-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type CreateRequest struct {
	ResidentID        string              `json:"residentId"`
	ResidentName      string              `json:"residentName"`
	UnitNumber        string              `json:"unitNumber"`
	Timestamp         *time.Time          `json:"timestamp"`
	AccessType        models.AccessType   `json:"accessType"`
	Method            models.AccessMethod `json:"method"`
	Location          string              `json:"location"`
	SecurityPersonnel string              `json:"securityPersonnel"`
	Notes             string              `json:"notes"`
}

// queryFromRequest reads limit, resident_id, access_type, method, from and to.
// from/to accept RFC3339 or a plain date (YYYY-MM-DD) in loc; a plain "to"
// date covers that whole day.
func queryFromRequest(c *fiber.Ctx, loc *time.Location) (Query, error) {
	q := Query{
		ResidentID: c.Query("resident_id"),
		AccessType: models.AccessType(c.Query("access_type")),
		Method:     models.AccessMethod(c.Query("method")),
	}
	if q.AccessType != "" && !q.AccessType.Valid() {
		return q, fiber.NewError(fiber.StatusBadRequest, "access_type must be entry or exit")
	}
	if q.Method != "" && !q.Method.Valid() {
		return q, fiber.NewError(fiber.StatusBadRequest, "method must be qr_code, manual or guest")
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return q, fiber.NewError(fiber.StatusBadRequest, "limit must be a non-negative number")
		}
		q.Limit = n
	}

	from, err := parseBound(c.Query("from"), false, loc)
	if err != nil {
		return q, fiber.NewError(fiber.StatusBadRequest, "from: "+err.Error())
	}
	to, err := parseBound(c.Query("to"), true, loc)
	if err != nil {
		return q, fiber.NewError(fiber.StatusBadRequest, "to: "+err.Error())
	}
	q.From, q.To = from, to
	return q, nil
}

func parseBound(v string, endOfDay bool, loc *time.Location) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t, nil
	}
	t, err := time.ParseInLocation("2006-01-02", v, loc)
	if err != nil {
		return nil, fmt.Errorf("expected RFC3339 or YYYY-MM-DD, got %q", v)
	}
	if endOfDay {
		t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return &t, nil
}

// GET /api/access-logs
func ListHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		q, err := queryFromRequest(c, svc.loc)
		if err != nil {
			return err
		}
		logs, err := svc.Query(c.UserContext(), q)
		if err != nil {
			return err
		}
		return c.JSON(logs)
	}
}

// POST /api/access-logs
func CreateHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		entry := models.AccessLog{
			ResidentID:        body.ResidentID,
			ResidentName:      body.ResidentName,
			UnitNumber:        body.UnitNumber,
			AccessType:        body.AccessType,
			Method:            body.Method,
			Location:          body.Location,
			SecurityPersonnel: body.SecurityPersonnel,
			Notes:             body.Notes,
		}
		if body.Timestamp != nil {
			entry.Timestamp = *body.Timestamp
		}
		if entry.SecurityPersonnel == "" {
			if u := auth.CurrentUser(c); u != nil {
				entry.SecurityPersonnel = u.FullName()
			}
		}

		saved, err := svc.Append(c.UserContext(), entry)
		if errors.Is(err, ErrInvalidEntry) {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(saved)
	}
}

// GET /api/access-logs/export
func ExportHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		q, err := queryFromRequest(c, svc.loc)
		if err != nil {
			return err
		}
		logs, err := svc.Query(c.UserContext(), q)
		if err != nil {
			return err
		}

		data, err := ExportXLSX(logs)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not build the export")
		}

		filename := fmt.Sprintf("access-logs-%s.xlsx", time.Now().Format("2006-01-02"))
		c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
		return c.Send(data)
	}
}
