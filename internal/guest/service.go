// Package guest manages host-sponsored visitor passes.
package guest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"residence-backend/internal/accesslog"
	"residence-backend/internal/credential"
	"residence-backend/internal/models"
	"residence-backend/internal/resident"
	"residence-backend/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrNotFound          = errors.New("guest not found")
	ErrInvalid           = errors.New("invalid guest")
	ErrInvalidTransition = errors.New("invalid guest status change")
)

type CreateInput struct {
	Name            string    `json:"name"`
	Phone           string    `json:"phone"`
	Purpose         string    `json:"purpose"`
	HostResidentID  string    `json:"hostResidentId"`
	ExpectedArrival time.Time `json:"expectedArrival"`
}

type Service struct {
	store     *store.Store
	codec     *credential.Codec
	residents *resident.Service
	logs      *accesslog.Service
	logger    *zap.Logger
	grace     time.Duration
	now       func() time.Time
	newID     func() string
}

func NewService(s *store.Store, codec *credential.Codec, residents *resident.Service, logs *accesslog.Service, grace time.Duration, logger *zap.Logger) *Service {
	return &Service{
		store:     s,
		codec:     codec,
		residents: residents,
		logs:      logs,
		logger:    logger,
		grace:     grace,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// effective reports a pending guest as expired once the expected arrival
// plus the grace period has passed. The stored record is not rewritten.
func (s *Service) effective(g models.Guest, now time.Time) models.Guest {
	if g.Status == models.GuestPending && now.After(g.ExpectedArrival.Add(s.grace)) {
		g.Status = models.GuestExpired
	}
	return g
}

// List returns guests by expected arrival, most recent first. An empty
// status returns every guest.
func (s *Service) List(ctx context.Context, status models.GuestStatus) ([]models.Guest, error) {
	guests, err := store.Load[models.Guest](ctx, s.store, store.KeyGuests)
	if err != nil {
		return nil, err
	}

	now := s.now()
	out := make([]models.Guest, 0, len(guests))
	for _, g := range guests {
		g = s.effective(g, now)
		if status != "" && g.Status != status {
			continue
		}
		out = append(out, g)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ExpectedArrival.After(out[j].ExpectedArrival)
	})
	return out, nil
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Guest, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if strings.TrimSpace(in.HostResidentID) == "" {
		return nil, fmt.Errorf("%w: hostResidentId is required", ErrInvalid)
	}

	host, err := s.residents.Get(ctx, in.HostResidentID)
	if errors.Is(err, resident.ErrNotFound) {
		return nil, fmt.Errorf("%w: host resident not found", ErrInvalid)
	}
	if err != nil {
		return nil, err
	}
	if !host.IsActive {
		return nil, fmt.Errorf("%w: host resident is inactive", ErrInvalid)
	}

	expected := in.ExpectedArrival
	if expected.IsZero() {
		expected = s.now()
	}
	g := models.Guest{
		ID:              s.newID(),
		Name:            name,
		Phone:           strings.TrimSpace(in.Phone),
		Purpose:         strings.TrimSpace(in.Purpose),
		HostResidentID:  host.ID,
		HostName:        host.FullName(),
		ExpectedArrival: expected,
		Status:          models.GuestPending,
	}
	if g.QRCode, err = s.codec.IssueGuestPass(&g, expected.Add(s.grace)); err != nil {
		return nil, err
	}

	err = store.Mutate(ctx, s.store, store.KeyGuests, func(gs []models.Guest) ([]models.Guest, error) {
		return append(gs, g), nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("guest registered", zap.String("guest_id", g.ID), zap.String("host_id", host.ID))
	return &g, nil
}

// Arrive moves a pending guest to arrived and records a guest entry.
func (s *Service) Arrive(ctx context.Context, id, location, personnel string) (*models.Guest, error) {
	g, _, err := s.Move(ctx, id, models.AccessEntry, location, personnel)
	return g, err
}

// Depart moves an arrived guest to departed and records a guest exit.
func (s *Service) Depart(ctx context.Context, id, location, personnel string) (*models.Guest, error) {
	g, _, err := s.Move(ctx, id, models.AccessExit, location, personnel)
	return g, err
}

// Move arrives the guest on entry and departs it on exit, returning the
// recorded access log.
func (s *Service) Move(ctx context.Context, id string, dir models.AccessType, location, personnel string) (*models.Guest, *models.AccessLog, error) {
	switch dir {
	case models.AccessEntry:
		return s.transition(ctx, id, models.GuestPending, models.GuestArrived, dir, location, personnel)
	case models.AccessExit:
		return s.transition(ctx, id, models.GuestArrived, models.GuestDeparted, dir, location, personnel)
	default:
		return nil, nil, fmt.Errorf("%w: access type %q", ErrInvalidTransition, dir)
	}
}

func (s *Service) transition(ctx context.Context, id string, from, to models.GuestStatus, dir models.AccessType, location, personnel string) (*models.Guest, *models.AccessLog, error) {
	now := s.now()
	var prev, updated models.Guest
	err := store.Mutate(ctx, s.store, store.KeyGuests, func(gs []models.Guest) ([]models.Guest, error) {
		for i := range gs {
			if gs[i].ID != id {
				continue
			}
			current := s.effective(gs[i], now)
			if current.Status != from {
				return nil, fmt.Errorf("%w: guest is %s, expected %s", ErrInvalidTransition, current.Status, from)
			}
			prev = gs[i]
			gs[i].Status = to
			if to == models.GuestArrived {
				gs[i].ActualArrival = &now
			} else {
				gs[i].Departure = &now
			}
			updated = gs[i]
			return gs, nil
		}
		return nil, ErrNotFound
	})
	if err != nil {
		return nil, nil, err
	}

	unit := ""
	if host, err := s.residents.Get(ctx, updated.HostResidentID); err == nil {
		unit = host.UnitNumber
	}
	if location == "" {
		location = accesslog.DefaultLocation
	}
	entry, err := s.logs.Append(ctx, models.AccessLog{
		ResidentID:        updated.HostResidentID,
		ResidentName:      updated.Name,
		UnitNumber:        unit,
		Timestamp:         now,
		AccessType:        dir,
		Method:            models.AccessMethodGuest,
		Location:          location,
		SecurityPersonnel: personnel,
		Notes:             "Guest of " + updated.HostName,
	})
	if err != nil {
		s.logger.Error("guest access not logged", zap.String("guest_id", id), zap.Error(err))
		s.restore(ctx, prev, to)
		return nil, nil, err
	}
	return &updated, &entry, nil
}

// restore puts prev back unless the guest has moved past status since.
func (s *Service) restore(ctx context.Context, prev models.Guest, status models.GuestStatus) {
	err := store.Mutate(ctx, s.store, store.KeyGuests, func(gs []models.Guest) ([]models.Guest, error) {
		for i := range gs {
			if gs[i].ID == prev.ID && gs[i].Status == status {
				gs[i] = prev
			}
		}
		return gs, nil
	})
	if err != nil {
		s.logger.Error("guest status not restored", zap.String("guest_id", prev.ID), zap.Error(err))
	}
}
