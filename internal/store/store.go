// Package store persists the compound's collections as JSON arrays under
// fixed keys, over a pluggable key-value backend.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

type Key string

const (
	KeyResidents  Key = "residents"
	KeyAccessLogs Key = "accessLogs"
	KeyUsers      Key = "users"
	KeyGuests     Key = "guests"
	KeyAuditLogs  Key = "auditLogs"
)

// Keys lists every collection the store knows about.
var Keys = []Key{KeyResidents, KeyAccessLogs, KeyUsers, KeyGuests, KeyAuditLogs}

var ErrNotFound = errors.New("store: key not found")

// Backend is a raw key-value persistence layer. Get returns ErrNotFound
// for a key that was never written.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

type Store struct {
	backend Backend
	logger  *zap.Logger

	// serializes read-modify-write cycles within this process
	mu sync.Mutex
}

func New(backend Backend, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{backend: backend, logger: logger}
}

func (s *Store) Close() error {
	return s.backend.Close()
}

func (s *Store) Exists(ctx context.Context, key Key) (bool, error) {
	_, err := s.backend.Get(ctx, string(key))
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Drop removes a collection entirely.
func (s *Store) Drop(ctx context.Context, key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend.Delete(ctx, string(key))
}

// Load decodes the collection under key. A missing key yields an empty list.
func Load[T any](ctx context.Context, s *Store, key Key) ([]T, error) {
	return load[T](ctx, s, key)
}

// Save replaces the collection under key.
func Save[T any](ctx context.Context, s *Store, key Key, items []T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return save(ctx, s, key, items)
}

// Mutate loads the collection, applies fn and writes the result back while
// holding the store lock. Nothing is written when fn returns an error.
func Mutate[T any](ctx context.Context, s *Store, key Key, fn func([]T) ([]T, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := load[T](ctx, s, key)
	if err != nil {
		return err
	}
	next, err := fn(items)
	if err != nil {
		return err
	}
	return save(ctx, s, key, next)
}

func load[T any](ctx context.Context, s *Store, key Key) ([]T, error) {
	raw, err := s.backend.Get(ctx, string(key))
	if errors.Is(err, ErrNotFound) {
		return []T{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}

	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		s.logger.Error("collection is not valid JSON", zap.String("key", string(key)), zap.Error(err))
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

func save[T any](ctx context.Context, s *Store, key Key, items []T) error {
	if items == nil {
		items = []T{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.backend.Set(ctx, string(key), raw); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}
