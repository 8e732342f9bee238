package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"residence-backend/internal/models"
	"residence-backend/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrNotFound      = errors.New("audit log not found")
	ErrAlreadyUndone = errors.New("this change has already been undone")
	ErrNotUndoable   = errors.New("this change cannot be undone")
	// ErrUndoConflict wraps a revert the entity no longer allows, such as
	// undoing an update to a record deleted since.
	ErrUndoConflict = errors.New("this change conflicts with the current state")
)

// Undoer reverts changes to one entity type.
type Undoer interface {
	UndoCreate(ctx context.Context, entityID string) error
	UndoUpdate(ctx context.Context, entityID string, before json.RawMessage) error
	UndoDelete(ctx context.Context, before json.RawMessage) error
}

type LogOptions struct {
	UserID      string
	UserName    string
	EntityType  string
	EntityID    string
	Action      models.AuditAction
	Description string
	Before      any
	After       any
}

type Filter struct {
	EntityType string
	EntityID   string
	UserID     string
}

type Service struct {
	store   *store.Store
	logger  *zap.Logger
	now     func() time.Time
	undoers map[string]Undoer
}

func NewService(s *store.Store, logger *zap.Logger) *Service {
	return &Service{
		store:   s,
		logger:  logger,
		now:     time.Now,
		undoers: map[string]Undoer{},
	}
}

func (s *Service) Register(entityType string, u Undoer) {
	s.undoers[entityType] = u
}

func marshalState(v any) json.RawMessage {
	if v == nil {
		return json.RawMessage("null")
	}
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("null")
	}
	return b
}

func (s *Service) WriteLog(ctx context.Context, opts LogOptions) error {
	entry := models.AuditLog{
		ID:          uuid.NewString(),
		CreatedAt:   s.now(),
		UserID:      opts.UserID,
		UserName:    opts.UserName,
		EntityType:  opts.EntityType,
		EntityID:    opts.EntityID,
		Action:      opts.Action,
		Description: opts.Description,
		Before:      marshalState(opts.Before),
		After:       marshalState(opts.After),
	}

	err := store.Mutate(ctx, s.store, store.KeyAuditLogs, func(logs []models.AuditLog) ([]models.AuditLog, error) {
		return append([]models.AuditLog{entry}, logs...), nil
	})
	if err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}

// List returns matching entries, newest first.
func (s *Service) List(ctx context.Context, f Filter) ([]models.AuditLog, error) {
	logs, err := store.Load[models.AuditLog](ctx, s.store, store.KeyAuditLogs)
	if err != nil {
		return nil, err
	}

	out := make([]models.AuditLog, 0, len(logs))
	for _, l := range logs {
		if f.EntityType != "" && l.EntityType != f.EntityType {
			continue
		}
		if f.EntityID != "" && l.EntityID != f.EntityID {
			continue
		}
		if f.UserID != "" && l.UserID != f.UserID {
			continue
		}
		out = append(out, l)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Undo reverts the change recorded by logID and records an undo entry.
// The entry is claimed under the store lock before the change is reverted,
// so concurrent undos of one entry apply at most once. A failed revert
// releases the claim.
func (s *Service) Undo(ctx context.Context, logID string, user models.User) error {
	now := s.now()
	userID := user.ID

	var target models.AuditLog
	var u Undoer
	err := store.Mutate(ctx, s.store, store.KeyAuditLogs, func(logs []models.AuditLog) ([]models.AuditLog, error) {
		for i := range logs {
			if logs[i].ID != logID {
				continue
			}
			if logs[i].IsUndone {
				return nil, ErrAlreadyUndone
			}
			var ok bool
			if u, ok = s.undoers[logs[i].EntityType]; !ok {
				return nil, fmt.Errorf("%w: unknown entity type %s", ErrNotUndoable, logs[i].EntityType)
			}
			switch logs[i].Action {
			case models.AuditActionCreate, models.AuditActionUpdate, models.AuditActionDelete:
			default:
				return nil, ErrNotUndoable
			}
			logs[i].IsUndone = true
			logs[i].UndoneBy = &userID
			logs[i].UndoneAt = &now
			target = logs[i]
			return logs, nil
		}
		return nil, ErrNotFound
	})
	if err != nil {
		return err
	}

	switch target.Action {
	case models.AuditActionCreate:
		err = u.UndoCreate(ctx, target.EntityID)
	case models.AuditActionUpdate:
		err = u.UndoUpdate(ctx, target.EntityID, target.Before)
	case models.AuditActionDelete:
		err = u.UndoDelete(ctx, target.Before)
	}
	if err != nil {
		s.release(ctx, logID)
		return fmt.Errorf("%w: undo %s %s: %w", ErrUndoConflict, target.Action, target.EntityType, err)
	}

	undo := models.AuditLog{
		ID:          uuid.NewString(),
		CreatedAt:   now,
		UserID:      user.ID,
		UserName:    user.FullName(),
		EntityType:  target.EntityType,
		EntityID:    target.EntityID,
		Action:      models.AuditActionUndo,
		Description: "Undone: " + target.Description,
		Before:      target.After,
		After:       target.Before,
		Undone:      true,
	}
	err = store.Mutate(ctx, s.store, store.KeyAuditLogs, func(logs []models.AuditLog) ([]models.AuditLog, error) {
		return append([]models.AuditLog{undo}, logs...), nil
	})
	if err != nil {
		return fmt.Errorf("record undo entry: %w", err)
	}

	s.logger.Info("audit change undone",
		zap.String("log_id", logID),
		zap.String("entity_type", target.EntityType),
		zap.String("entity_id", target.EntityID),
		zap.String("user_id", user.ID))
	return nil
}

func (s *Service) release(ctx context.Context, logID string) {
	err := store.Mutate(ctx, s.store, store.KeyAuditLogs, func(logs []models.AuditLog) ([]models.AuditLog, error) {
		for i := range logs {
			if logs[i].ID == logID {
				logs[i].IsUndone = false
				logs[i].UndoneBy = nil
				logs[i].UndoneAt = nil
			}
		}
		return logs, nil
	})
	if err != nil {
		s.logger.Error("release undo claim", zap.String("log_id", logID), zap.Error(err))
	}
}
