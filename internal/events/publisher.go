// Package events forwards access events to gate hardware and other listeners.
package events

import (
	"context"
	"sync"

	"residence-backend/internal/models"
)

type Publisher interface {
	PublishAccess(ctx context.Context, log models.AccessLog) error
	Close()
}

// Nop drops every event.
type Nop struct{}

func (Nop) PublishAccess(context.Context, models.AccessLog) error { return nil }

func (Nop) Close() {}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []models.AccessLog
}

func (r *Recorder) PublishAccess(_ context.Context, log models.AccessLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, log)
	return nil
}

func (r *Recorder) Events() []models.AccessLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.AccessLog(nil), r.events...)
}

func (r *Recorder) Close() {}
