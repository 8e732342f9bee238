package store

import (
	"context"
	"errors"
	"time"

	"residence-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormBackend keeps one models.Record row per collection.
type GormBackend struct {
	db *gorm.DB
}

func NewGormBackend(db *gorm.DB) *GormBackend {
	return &GormBackend{db: db}
}

func (g *GormBackend) Get(ctx context.Context, key string) ([]byte, error) {
	var rec models.Record
	err := g.db.WithContext(ctx).First(&rec, "collection = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(rec.Payload), nil
}

func (g *GormBackend) Set(ctx context.Context, key string, value []byte) error {
	rec := models.Record{
		Collection: key,
		Payload:    string(value),
		UpdatedAt:  time.Now(),
	}
	return g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "collection"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
	}).Create(&rec).Error
}

func (g *GormBackend) Delete(ctx context.Context, key string) error {
	return g.db.WithContext(ctx).Delete(&models.Record{}, "collection = ?", key).Error
}

func (g *GormBackend) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
