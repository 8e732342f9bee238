package accesslog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"residence-backend/internal/events"
	"residence-backend/internal/models"
	"residence-backend/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultLocation is used when an access is recorded without a location.
const DefaultLocation = "Main Gate"

var ErrInvalidEntry = errors.New("invalid access log entry")

type Query struct {
	ResidentID string
	AccessType models.AccessType
	Method     models.AccessMethod
	From       *time.Time
	To         *time.Time
	Limit      int
}

type Service struct {
	store     *store.Store
	publisher events.Publisher
	logger    *zap.Logger
	// loc anchors plain-date query bounds
	loc   *time.Location
	now   func() time.Time
	newID func() string
}

func NewService(s *store.Store, publisher events.Publisher, loc *time.Location, logger *zap.Logger) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		store:     s,
		publisher: publisher,
		loc:       loc,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Append assigns an id, defaults the timestamp to now and stores the entry
// at the head of the collection.
func (s *Service) Append(ctx context.Context, entry models.AccessLog) (models.AccessLog, error) {
	if !entry.AccessType.Valid() {
		return models.AccessLog{}, fmt.Errorf("%w: accessType must be entry or exit", ErrInvalidEntry)
	}
	if !entry.Method.Valid() {
		return models.AccessLog{}, fmt.Errorf("%w: method must be qr_code, manual or guest", ErrInvalidEntry)
	}
	if strings.TrimSpace(entry.ResidentID) == "" {
		return models.AccessLog{}, fmt.Errorf("%w: residentId is required", ErrInvalidEntry)
	}

	entry.ID = s.newID()
	if entry.Timestamp.IsZero() {
		entry.Timestamp = s.now()
	}

	err := store.Mutate(ctx, s.store, store.KeyAccessLogs, func(logs []models.AccessLog) ([]models.AccessLog, error) {
		return append([]models.AccessLog{entry}, logs...), nil
	})
	if err != nil {
		return models.AccessLog{}, err
	}

	accessLogsTotal.WithLabelValues(string(entry.AccessType), string(entry.Method)).Inc()

	if err := s.publisher.PublishAccess(ctx, entry); err != nil {
		s.logger.Warn("access event not published", zap.String("log_id", entry.ID), zap.Error(err))
	}
	s.logger.Info("access recorded",
		zap.String("log_id", entry.ID),
		zap.String("resident_id", entry.ResidentID),
		zap.String("access_type", string(entry.AccessType)),
		zap.String("method", string(entry.Method)))
	return entry, nil
}

// List returns entries newest first; limit <= 0 returns everything.
func (s *Service) List(ctx context.Context, limit int) ([]models.AccessLog, error) {
	return s.Query(ctx, Query{Limit: limit})
}

func (s *Service) Query(ctx context.Context, q Query) ([]models.AccessLog, error) {
	logs, err := store.Load[models.AccessLog](ctx, s.store, store.KeyAccessLogs)
	if err != nil {
		return nil, err
	}

	out := logs[:0]
	for _, l := range logs {
		if q.ResidentID != "" && l.ResidentID != q.ResidentID {
			continue
		}
		if q.AccessType != "" && l.AccessType != q.AccessType {
			continue
		}
		if q.Method != "" && l.Method != q.Method {
			continue
		}
		if q.From != nil && l.Timestamp.Before(*q.From) {
			continue
		}
		if q.To != nil && l.Timestamp.After(*q.To) {
			continue
		}
		out = append(out, l)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}
