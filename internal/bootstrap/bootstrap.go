// Package bootstrap wires configuration into a ready set of services shared
// by the API server and the operator CLI.
package bootstrap

import (
	"context"
	"fmt"

	"residence-backend/internal/accesslog"
	"residence-backend/internal/audit"
	"residence-backend/internal/config"
	"residence-backend/internal/credential"
	"residence-backend/internal/dashboard"
	"residence-backend/internal/database"
	"residence-backend/internal/events"
	"residence-backend/internal/guest"
	"residence-backend/internal/resident"
	"residence-backend/internal/scanner"
	"residence-backend/internal/store"
	"residence-backend/internal/users"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

type Services struct {
	Config    *config.Config
	Logger    *zap.Logger
	Store     *store.Store
	Codec     *credential.Codec
	Publisher events.Publisher

	Users      *users.Service
	Audit      *audit.Service
	Residents  *resident.Service
	AccessLogs *accesslog.Service
	Scanner    *scanner.Service
	Guests     *guest.Service
	Dashboard  *dashboard.Service
}

// OpenBackend returns the record backend selected by STORE_DRIVER.
func OpenBackend(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store.Backend, error) {
	switch cfg.StoreDriver {
	case "memory":
		return store.NewMemoryBackend(), nil
	case "file":
		fb, err := store.NewFileBackend(cfg.StoreDir)
		if err != nil {
			return nil, err
		}
		return fb, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		logger.Info("redis connected", zap.String("addr", cfg.Redis.Addr))
		return store.NewRedisBackend(client, store.DefaultRedisPrefix), nil
	case "postgres":
		db, err := database.Open(cfg.DatabaseDSN, logger)
		if err != nil {
			return nil, err
		}
		return store.NewGormBackend(db), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// NewPublisher connects to MQTT when enabled. A broker that cannot be
// reached is logged and access events are dropped.
func NewPublisher(cfg *config.Config, logger *zap.Logger) events.Publisher {
	if !cfg.MQTT.Enabled {
		return events.Nop{}
	}
	p, err := events.NewMQTTPublisher(cfg.MQTT, logger)
	if err != nil {
		logger.Warn("mqtt publisher disabled", zap.Error(err))
		return events.Nop{}
	}
	return p
}

// New builds every service over backend. The caller owns Close.
func New(cfg *config.Config, backend store.Backend, publisher events.Publisher, logger *zap.Logger) (*Services, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	if publisher == nil {
		publisher = events.Nop{}
	}

	st := store.New(backend, logger)
	codec := credential.NewCodec(cfg.CredentialValidity(), credential.WithImageSize(cfg.CredentialImageSize))
	auditSvc := audit.NewService(st, logger)
	residents := resident.NewService(st, codec, auditSvc, logger)
	logs := accesslog.NewService(st, publisher, loc, logger)
	guests := guest.NewService(st, codec, residents, logs, cfg.GuestGrace(), logger)

	return &Services{
		Config:     cfg,
		Logger:     logger,
		Store:      st,
		Codec:      codec,
		Publisher:  publisher,
		Users:      users.NewService(st),
		Audit:      auditSvc,
		Residents:  residents,
		AccessLogs: logs,
		Scanner:    scanner.NewService(codec, residents, guests, logs, logger),
		Guests:     guests,
		Dashboard:  dashboard.NewService(st, loc),
	}, nil
}

// Open selects the backend and publisher from cfg and builds the services.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Services, error) {
	backend, err := OpenBackend(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	svc, err := New(cfg, backend, NewPublisher(cfg, logger), logger)
	if err != nil {
		backend.Close()
		return nil, err
	}
	return svc, nil
}

func (s *Services) Close() {
	s.Publisher.Close()
	if err := s.Store.Close(); err != nil {
		s.Logger.Warn("store close failed", zap.Error(err))
	}
}
