// Package scanner turns credential text or images presented at the gate
// into granted/denied decisions and access log entries.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"residence-backend/internal/accesslog"
	"residence-backend/internal/credential"
	"residence-backend/internal/guest"
	"residence-backend/internal/models"
	"residence-backend/internal/resident"

	"go.uber.org/zap"
)

const (
	MsgInvalidCredential = "Invalid or expired QR code"
	MsgResidentNotFound  = "Resident not found"
	MsgResidentInactive  = "Resident account is inactive"
	MsgNoCode            = "No QR code found in image"
	MsgGuestNotFound     = "Guest pass not recognised"
	MsgGuestWrongState   = "Guest pass is not valid for this direction"
)

var ErrInvalidInput = errors.New("invalid scan request")

type Status string

const (
	StatusGranted Status = "granted"
	StatusDenied  Status = "denied"
)

type Request struct {
	AccessType        models.AccessType `json:"accessType"`
	Location          string            `json:"location"`
	SecurityPersonnel string            `json:"securityPersonnel"`
	Notes             string            `json:"notes"`
}

type Result struct {
	Status   Status                    `json:"status"`
	Message  string                    `json:"message"`
	Resident *models.Resident          `json:"resident,omitempty"`
	Guest    *models.Guest             `json:"guest,omitempty"`
	Log      *models.AccessLog         `json:"log,omitempty"`
	Payload  *models.CredentialPayload `json:"payload,omitempty"`
}

type Service struct {
	codec     *credential.Codec
	residents *resident.Service
	guests    *guest.Service
	logs      *accesslog.Service
	logger    *zap.Logger
}

func NewService(codec *credential.Codec, residents *resident.Service, guests *guest.Service, logs *accesslog.Service, logger *zap.Logger) *Service {
	return &Service{codec: codec, residents: residents, guests: guests, logs: logs, logger: logger}
}

func normalize(req *Request) error {
	if req.AccessType == "" {
		req.AccessType = models.AccessEntry
	}
	if !req.AccessType.Valid() {
		return fmt.Errorf("%w: accessType must be entry or exit", ErrInvalidInput)
	}
	req.Location = strings.TrimSpace(req.Location)
	if req.Location == "" {
		req.Location = accesslog.DefaultLocation
	}
	return nil
}

func denied(msg string) *Result {
	scansTotal.WithLabelValues(string(StatusDenied)).Inc()
	return &Result{Status: StatusDenied, Message: msg}
}

// Process validates credential text and, when it names an active resident,
// records a qr_code access. Guest passes move the guest instead. Denials are
// results, not errors.
func (s *Service) Process(ctx context.Context, text string, req Request) (*Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: credential text is required", ErrInvalidInput)
	}
	if err := normalize(&req); err != nil {
		return nil, err
	}

	pass, err := s.codec.ValidateGuestPass(text)
	switch {
	case err == nil:
		return s.admitGuest(ctx, pass, req)
	case errors.Is(err, credential.ErrNotGuestPass), errors.Is(err, credential.ErrMalformed):
	default:
		s.logger.Info("guest pass rejected", zap.Error(err))
		return denied(MsgInvalidCredential), nil
	}

	payload, err := s.codec.Validate(text)
	if err != nil {
		s.logger.Info("credential rejected", zap.Error(err))
		return denied(MsgInvalidCredential), nil
	}

	res, err := s.admit(ctx, payload.ResidentID, models.AccessMethodQRCode, req)
	if err != nil || res.Status == StatusDenied {
		return res, err
	}
	res.Payload = payload
	return res, nil
}

// ProcessImage decodes the QR code in a PNG or JPEG and runs Process on it.
func (s *Service) ProcessImage(ctx context.Context, r io.Reader, req Request) (*Result, error) {
	text, err := credential.DecodeImage(r)
	if err != nil {
		s.logger.Info("no credential in uploaded image", zap.Error(err))
		return denied(MsgNoCode), nil
	}
	return s.Process(ctx, text, req)
}

// RecordManual records a guard-entered access for a resident by id.
func (s *Service) RecordManual(ctx context.Context, residentID string, req Request) (*Result, error) {
	if strings.TrimSpace(residentID) == "" {
		return nil, fmt.Errorf("%w: residentId is required", ErrInvalidInput)
	}
	if err := normalize(&req); err != nil {
		return nil, err
	}
	return s.admit(ctx, strings.TrimSpace(residentID), models.AccessMethodManual, req)
}

func (s *Service) admit(ctx context.Context, residentID string, method models.AccessMethod, req Request) (*Result, error) {
	r, err := s.residents.Get(ctx, residentID)
	if errors.Is(err, resident.ErrNotFound) {
		return denied(MsgResidentNotFound), nil
	}
	if err != nil {
		return nil, err
	}
	if !r.IsActive {
		res := denied(MsgResidentInactive)
		res.Resident = r
		return res, nil
	}

	entry, err := s.logs.Append(ctx, models.AccessLog{
		ResidentID:        r.ID,
		ResidentName:      r.FullName(),
		UnitNumber:        r.UnitNumber,
		AccessType:        req.AccessType,
		Method:            method,
		Location:          req.Location,
		SecurityPersonnel: req.SecurityPersonnel,
		Notes:             req.Notes,
	})
	if err != nil {
		return nil, err
	}

	scansTotal.WithLabelValues(string(StatusGranted)).Inc()
	return &Result{
		Status:   StatusGranted,
		Message:  fmt.Sprintf("Access granted: %s (%s)", r.FullName(), r.UnitNumber),
		Resident: r,
		Log:      &entry,
	}, nil
}

// admitGuest arrives the guest on entry and departs it on exit.
func (s *Service) admitGuest(ctx context.Context, pass *models.GuestPass, req Request) (*Result, error) {
	g, entry, err := s.guests.Move(ctx, pass.GuestID, req.AccessType, req.Location, req.SecurityPersonnel)
	switch {
	case errors.Is(err, guest.ErrNotFound):
		return denied(MsgGuestNotFound), nil
	case errors.Is(err, guest.ErrInvalidTransition):
		return denied(MsgGuestWrongState), nil
	case err != nil:
		return nil, err
	}

	scansTotal.WithLabelValues(string(StatusGranted)).Inc()
	return &Result{
		Status:  StatusGranted,
		Message: fmt.Sprintf("Guest access granted: %s (guest of %s)", g.Name, g.HostName),
		Guest:   g,
		Log:     entry,
	}, nil
}
