// Package credential issues and validates the QR access credentials handed
// to residents. Payloads are plain JSON and carry no signature.
package credential

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"residence-backend/internal/models"
)

const (
	DefaultValidity  = 30 * 24 * time.Hour
	DefaultImageSize = 200
)

var (
	ErrMalformed    = errors.New("credential is not valid JSON")
	ErrMissingField = errors.New("credential is missing a required field")
	ErrExpired      = errors.New("credential has expired")
)

type Codec struct {
	validity  time.Duration
	imageSize int
	now       func() time.Time
}

type Option func(*Codec)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

func WithImageSize(px int) Option {
	return func(c *Codec) { c.imageSize = px }
}

func NewCodec(validity time.Duration, opts ...Option) *Codec {
	if validity <= 0 {
		validity = DefaultValidity
	}
	c := &Codec{
		validity:  validity,
		imageSize: DefaultImageSize,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Codec) Validity() time.Duration { return c.validity }

// Issue builds a payload valid from now for the codec's validity window.
func (c *Codec) Issue(r *models.Resident) models.CredentialPayload {
	now := c.now()
	until := now.Add(c.validity)
	return models.CredentialPayload{
		ResidentID: r.ID,
		UnitNumber: r.UnitNumber,
		IssuedAt:   now,
		ValidUntil: &until,
	}
}

func (c *Codec) Encode(p models.CredentialPayload) (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode credential: %w", err)
	}
	return string(b), nil
}

// IssueImage issues a fresh payload for r and renders it as a data URI.
func (c *Codec) IssueImage(r *models.Resident) (string, error) {
	text, err := c.Encode(c.Issue(r))
	if err != nil {
		return "", err
	}
	return c.Render(text)
}

// wirePayload accepts both the current "issuedAt" key and the older
// "timestamp" key written by earlier clients.
type wirePayload struct {
	ResidentID string     `json:"residentId"`
	UnitNumber string     `json:"unitNumber"`
	IssuedAt   *time.Time `json:"issuedAt"`
	Timestamp  *time.Time `json:"timestamp"`
	ValidUntil *time.Time `json:"validUntil"`
}

// Validate parses raw credential text and checks required fields and expiry.
func (c *Codec) Validate(raw string) (*models.CredentialPayload, error) {
	var w wirePayload
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	issuedAt := w.IssuedAt
	if issuedAt == nil {
		issuedAt = w.Timestamp
	}
	switch {
	case w.ResidentID == "":
		return nil, fmt.Errorf("%w: residentId", ErrMissingField)
	case w.UnitNumber == "":
		return nil, fmt.Errorf("%w: unitNumber", ErrMissingField)
	case issuedAt == nil || issuedAt.IsZero():
		return nil, fmt.Errorf("%w: issuedAt", ErrMissingField)
	}

	if w.ValidUntil != nil && w.ValidUntil.Before(c.now()) {
		return nil, fmt.Errorf("%w: valid until %s", ErrExpired, w.ValidUntil.Format(time.RFC3339))
	}

	return &models.CredentialPayload{
		ResidentID: w.ResidentID,
		UnitNumber: w.UnitNumber,
		IssuedAt:   *issuedAt,
		ValidUntil: w.ValidUntil,
	}, nil
}
