package credential

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"residence-backend/internal/models"
)

// ErrNotGuestPass marks credential text that parses but carries no guestId.
var ErrNotGuestPass = errors.New("credential is not a guest pass")

// IssueGuestPass renders a pass for g as a data URI. validUntil is carried
// for display; expiry of pending guests is enforced by the guest service.
func (c *Codec) IssueGuestPass(g *models.Guest, validUntil time.Time) (string, error) {
	b, err := json.Marshal(models.GuestPass{
		GuestID:        g.ID,
		HostResidentID: g.HostResidentID,
		IssuedAt:       c.now(),
		ValidUntil:     &validUntil,
	})
	if err != nil {
		return "", fmt.Errorf("encode guest pass: %w", err)
	}
	return c.Render(string(b))
}

// ValidateGuestPass parses guest pass text. Resident credentials yield
// ErrNotGuestPass.
func (c *Codec) ValidateGuestPass(raw string) (*models.GuestPass, error) {
	var p models.GuestPass
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if p.GuestID == "" {
		return nil, ErrNotGuestPass
	}
	if p.HostResidentID == "" {
		return nil, fmt.Errorf("%w: hostResidentId", ErrMissingField)
	}
	return &p, nil
}
