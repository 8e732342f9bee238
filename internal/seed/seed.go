// Package seed writes the demo compound into an empty store.
package seed

import (
	"context"
	"fmt"
	"time"

	"residence-backend/internal/credential"
	"residence-backend/internal/models"
	"residence-backend/internal/store"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type Options struct {
	// AdminPassword, when set, becomes the password of the seeded admin user.
	AdminPassword string
	Now           func() time.Time
}

// Run seeds each collection that has never been written. Collections that
// already exist, even empty ones, are left alone. It returns the keys it
// wrote.
func Run(ctx context.Context, s *store.Store, codec *credential.Codec, opts Options, logger *zap.Logger) ([]store.Key, error) {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	t := now()

	var seeded []store.Key
	mark := func(key store.Key, wrote bool, err error) error {
		if err != nil {
			return fmt.Errorf("seed %s: %w", key, err)
		}
		if wrote {
			seeded = append(seeded, key)
		}
		return nil
	}

	wrote, err := seedIfMissing(ctx, s, store.KeyResidents, func() ([]models.Resident, error) { return residents(codec) })
	if err := mark(store.KeyResidents, wrote, err); err != nil {
		return nil, err
	}
	wrote, err = seedIfMissing(ctx, s, store.KeyAccessLogs, func() ([]models.AccessLog, error) { return accessLogs(t), nil })
	if err := mark(store.KeyAccessLogs, wrote, err); err != nil {
		return nil, err
	}
	wrote, err = seedIfMissing(ctx, s, store.KeyUsers, func() ([]models.User, error) { return users(t, opts.AdminPassword) })
	if err := mark(store.KeyUsers, wrote, err); err != nil {
		return nil, err
	}
	wrote, err = seedIfMissing(ctx, s, store.KeyGuests, func() ([]models.Guest, error) { return []models.Guest{}, nil })
	if err := mark(store.KeyGuests, wrote, err); err != nil {
		return nil, err
	}

	if len(seeded) > 0 {
		keys := make([]string, len(seeded))
		for i, k := range seeded {
			keys[i] = string(k)
		}
		logger.Info("demo data seeded", zap.Strings("collections", keys))
	}
	return seeded, nil
}

func seedIfMissing[T any](ctx context.Context, s *store.Store, key store.Key, build func() ([]T, error)) (bool, error) {
	exists, err := s.Exists(ctx, key)
	if err != nil || exists {
		return false, err
	}
	items, err := build()
	if err != nil {
		return false, err
	}
	if err := store.Save(ctx, s, key, items); err != nil {
		return false, err
	}
	return true, nil
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func residents(codec *credential.Codec) ([]models.Resident, error) {
	list := []models.Resident{
		{
			ID:         "1",
			FirstName:  "John",
			LastName:   "Smith",
			Email:      "john.smith@email.com",
			Phone:      "+1-555-0101",
			UnitNumber: "A-101",
			Building:   "Building A",
			EmergencyContact: models.EmergencyContact{
				Name: "Jane Smith", Phone: "+1-555-0102", Relationship: "Spouse",
			},
			VehicleInfo: &models.VehicleInfo{
				LicensePlate: "ABC-123", Make: "Toyota", Model: "Camry", Color: "Blue",
			},
			IsActive:  true,
			CreatedAt: date(2024, 1, 15),
			UpdatedAt: date(2024, 1, 15),
		},
		{
			ID:         "2",
			FirstName:  "Maria",
			LastName:   "Garcia",
			Email:      "maria.garcia@email.com",
			Phone:      "+1-555-0201",
			UnitNumber: "B-205",
			Building:   "Building B",
			EmergencyContact: models.EmergencyContact{
				Name: "Carlos Garcia", Phone: "+1-555-0202", Relationship: "Brother",
			},
			IsActive:  true,
			CreatedAt: date(2024, 1, 20),
			UpdatedAt: date(2024, 1, 20),
		},
		{
			ID:         "3",
			FirstName:  "David",
			LastName:   "Johnson",
			Email:      "david.johnson@email.com",
			Phone:      "+1-555-0301",
			UnitNumber: "C-312",
			Building:   "Building C",
			EmergencyContact: models.EmergencyContact{
				Name: "Sarah Johnson", Phone: "+1-555-0302", Relationship: "Wife",
			},
			VehicleInfo: &models.VehicleInfo{
				LicensePlate: "XYZ-789", Make: "Honda", Model: "Accord", Color: "Red",
			},
			IsActive:  true,
			CreatedAt: date(2024, 2, 1),
			UpdatedAt: date(2024, 2, 1),
		},
	}

	for i := range list {
		qr, err := codec.IssueImage(&list[i])
		if err != nil {
			return nil, err
		}
		list[i].QRCode = qr
	}
	return list, nil
}

func accessLogs(now time.Time) []models.AccessLog {
	return []models.AccessLog{
		{
			ID:                "1",
			ResidentID:        "1",
			ResidentName:      "John Smith",
			UnitNumber:        "A-101",
			Timestamp:         now,
			AccessType:        models.AccessEntry,
			Method:            models.AccessMethodQRCode,
			Location:          "Main Gate",
			SecurityPersonnel: "Officer Brown",
		},
		{
			ID:                "2",
			ResidentID:        "2",
			ResidentName:      "Maria Garcia",
			UnitNumber:        "B-205",
			Timestamp:         now.Add(-time.Hour),
			AccessType:        models.AccessExit,
			Method:            models.AccessMethodQRCode,
			Location:          "Main Gate",
			SecurityPersonnel: "Officer Brown",
		},
	}
}

func users(now time.Time, adminPassword string) ([]models.User, error) {
	list := []models.User{
		{
			ID:        "1",
			Username:  "admin",
			Role:      models.RoleAdmin,
			FirstName: "System",
			LastName:  "Administrator",
			Email:     "admin@compound.com",
			IsActive:  true,
			LastLogin: &now,
		},
		{
			ID:        "2",
			Username:  "security1",
			Role:      models.RoleSecurity,
			FirstName: "Robert",
			LastName:  "Brown",
			Email:     "r.brown@compound.com",
			IsActive:  true,
			LastLogin: &now,
		},
	}
	if adminPassword != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		list[0].PasswordHash = string(hash)
	}
	return list, nil
}
