package resident

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"residence-backend/internal/audit"
	"residence-backend/internal/credential"
	"residence-backend/internal/models"
	"residence-backend/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const EntityType = "resident"

var (
	ErrNotFound = errors.New("resident not found")
	ErrInvalid  = errors.New("invalid resident")
)

type SortField string

const (
	SortByName      SortField = "name"
	SortByUnit      SortField = "unit"
	SortByBuilding  SortField = "building"
	SortByCreatedAt SortField = "createdAt"
)

type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

type Filter struct {
	Building string
	IsActive *bool
	Search   string
}

// Input carries the editable fields of a new resident.
type Input struct {
	FirstName        string                  `json:"firstName"`
	LastName         string                  `json:"lastName"`
	Email            string                  `json:"email"`
	Phone            string                  `json:"phone"`
	UnitNumber       string                  `json:"unitNumber"`
	Building         string                  `json:"building"`
	EmergencyContact models.EmergencyContact `json:"emergencyContact"`
	VehicleInfo      *models.VehicleInfo     `json:"vehicleInfo"`
	IsActive         *bool                   `json:"isActive"`
	Photo            string                  `json:"photo"`
}

// Patch holds a partial update; nil fields are left alone.
type Patch struct {
	FirstName        *string                  `json:"firstName"`
	LastName         *string                  `json:"lastName"`
	Email            *string                  `json:"email"`
	Phone            *string                  `json:"phone"`
	UnitNumber       *string                  `json:"unitNumber"`
	Building         *string                  `json:"building"`
	EmergencyContact *models.EmergencyContact `json:"emergencyContact"`
	VehicleInfo      *models.VehicleInfo      `json:"vehicleInfo"`
	IsActive         *bool                    `json:"isActive"`
	Photo            *string                  `json:"photo"`
}

type Service struct {
	store  *store.Store
	codec  *credential.Codec
	audit  *audit.Service
	logger *zap.Logger
	now    func() time.Time
	newID  func() string
}

func NewService(s *store.Store, codec *credential.Codec, auditSvc *audit.Service, logger *zap.Logger) *Service {
	svc := &Service{
		store:  s,
		codec:  codec,
		audit:  auditSvc,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
	if auditSvc != nil {
		auditSvc.Register(EntityType, svc)
	}
	return svc
}

// List applies filter then sort. Sorting happens only when both field and
// direction are set; an unknown field keeps stored order.
func (s *Service) List(ctx context.Context, f *Filter, field SortField, dir SortDirection) ([]models.Resident, error) {
	residents, err := store.Load[models.Resident](ctx, s.store, store.KeyResidents)
	if err != nil {
		return nil, err
	}
	if f != nil {
		residents = applyFilter(residents, *f)
	}
	if field != "" && dir != "" {
		sortResidents(residents, field, dir)
	}
	return residents, nil
}

func applyFilter(in []models.Resident, f Filter) []models.Resident {
	term := strings.ToLower(f.Search)
	out := make([]models.Resident, 0, len(in))
	for _, r := range in {
		if f.Building != "" && r.Building != f.Building {
			continue
		}
		if f.IsActive != nil && r.IsActive != *f.IsActive {
			continue
		}
		if term != "" &&
			!strings.Contains(strings.ToLower(r.FirstName), term) &&
			!strings.Contains(strings.ToLower(r.LastName), term) &&
			!strings.Contains(strings.ToLower(r.UnitNumber), term) &&
			!strings.Contains(strings.ToLower(r.Email), term) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func sortResidents(rs []models.Resident, field SortField, dir SortDirection) {
	var cmp func(a, b models.Resident) int
	switch field {
	case SortByName:
		cmp = func(a, b models.Resident) int { return strings.Compare(a.FullName(), b.FullName()) }
	case SortByUnit:
		cmp = func(a, b models.Resident) int { return strings.Compare(a.UnitNumber, b.UnitNumber) }
	case SortByBuilding:
		cmp = func(a, b models.Resident) int { return strings.Compare(a.Building, b.Building) }
	case SortByCreatedAt:
		cmp = func(a, b models.Resident) int { return a.CreatedAt.Compare(b.CreatedAt) }
	default:
		return
	}
	desc := dir == SortDesc
	sort.SliceStable(rs, func(i, j int) bool {
		c := cmp(rs[i], rs[j])
		if desc {
			return c > 0
		}
		return c < 0
	})
}

func (s *Service) Get(ctx context.Context, id string) (*models.Resident, error) {
	residents, err := store.Load[models.Resident](ctx, s.store, store.KeyResidents)
	if err != nil {
		return nil, err
	}
	for _, r := range residents {
		if r.ID == id {
			return &r, nil
		}
	}
	return nil, ErrNotFound
}

// Buildings returns the distinct building names in ascending order.
func (s *Service) Buildings(ctx context.Context) ([]string, error) {
	residents, err := store.Load[models.Resident](ctx, s.store, store.KeyResidents)
	if err != nil {
		return nil, err
	}
	seen := map[string]struct{}{}
	out := []string{}
	for _, r := range residents {
		if _, ok := seen[r.Building]; ok || r.Building == "" {
			continue
		}
		seen[r.Building] = struct{}{}
		out = append(out, r.Building)
	}
	sort.Strings(out)
	return out, nil
}

func validateInput(in Input) error {
	var missing []string
	if strings.TrimSpace(in.FirstName) == "" {
		missing = append(missing, "firstName")
	}
	if strings.TrimSpace(in.LastName) == "" {
		missing = append(missing, "lastName")
	}
	if strings.TrimSpace(in.UnitNumber) == "" {
		missing = append(missing, "unitNumber")
	}
	if strings.TrimSpace(in.Building) == "" {
		missing = append(missing, "building")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s required", ErrInvalid, strings.Join(missing, ", "))
	}
	return nil
}

func (s *Service) Create(ctx context.Context, in Input, actor models.User) (*models.Resident, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	now := s.now()
	r := models.Resident{
		ID:               s.newID(),
		FirstName:        strings.TrimSpace(in.FirstName),
		LastName:         strings.TrimSpace(in.LastName),
		Email:            strings.TrimSpace(in.Email),
		Phone:            strings.TrimSpace(in.Phone),
		UnitNumber:       strings.TrimSpace(in.UnitNumber),
		Building:         strings.TrimSpace(in.Building),
		EmergencyContact: in.EmergencyContact,
		VehicleInfo:      in.VehicleInfo,
		IsActive:         true,
		CreatedAt:        now,
		UpdatedAt:        now,
		Photo:            in.Photo,
	}
	if in.IsActive != nil {
		r.IsActive = *in.IsActive
	}

	qr, err := s.codec.IssueImage(&r)
	if err != nil {
		return nil, err
	}
	r.QRCode = qr

	err = store.Mutate(ctx, s.store, store.KeyResidents, func(rs []models.Resident) ([]models.Resident, error) {
		return append(rs, r), nil
	})
	if err != nil {
		return nil, err
	}

	s.writeAudit(ctx, actor, models.AuditActionCreate, r.ID, "Created resident "+r.FullName(), nil, r)
	s.logger.Info("resident created", zap.String("resident_id", r.ID), zap.String("unit", r.UnitNumber))
	return &r, nil
}

// Update applies p and regenerates the credential when the name or unit
// number changed.
func (s *Service) Update(ctx context.Context, id string, p Patch, actor models.User) (*models.Resident, error) {
	var before, after models.Resident
	err := store.Mutate(ctx, s.store, store.KeyResidents, func(rs []models.Resident) ([]models.Resident, error) {
		idx := indexOf(rs, id)
		if idx < 0 {
			return nil, ErrNotFound
		}
		before = rs[idx]
		r := rs[idx]

		if p.FirstName != nil {
			r.FirstName = strings.TrimSpace(*p.FirstName)
		}
		if p.LastName != nil {
			r.LastName = strings.TrimSpace(*p.LastName)
		}
		if p.Email != nil {
			r.Email = strings.TrimSpace(*p.Email)
		}
		if p.Phone != nil {
			r.Phone = strings.TrimSpace(*p.Phone)
		}
		if p.UnitNumber != nil {
			r.UnitNumber = strings.TrimSpace(*p.UnitNumber)
		}
		if p.Building != nil {
			r.Building = strings.TrimSpace(*p.Building)
		}
		if p.EmergencyContact != nil {
			r.EmergencyContact = *p.EmergencyContact
		}
		if p.VehicleInfo != nil {
			r.VehicleInfo = p.VehicleInfo
		}
		if p.IsActive != nil {
			r.IsActive = *p.IsActive
		}
		if p.Photo != nil {
			r.Photo = *p.Photo
		}

		if err := validateInput(Input{FirstName: r.FirstName, LastName: r.LastName, UnitNumber: r.UnitNumber, Building: r.Building}); err != nil {
			return nil, err
		}

		if r.FirstName != before.FirstName || r.LastName != before.LastName || r.UnitNumber != before.UnitNumber {
			qr, err := s.codec.IssueImage(&r)
			if err != nil {
				return nil, err
			}
			r.QRCode = qr
		}
		r.UpdatedAt = s.now()

		rs[idx] = r
		after = r
		return rs, nil
	})
	if err != nil {
		return nil, err
	}

	s.writeAudit(ctx, actor, models.AuditActionUpdate, id, "Updated resident "+after.FullName(), before, after)
	return &after, nil
}

// ReissueCredential renders a fresh credential with a new validity window.
func (s *Service) ReissueCredential(ctx context.Context, id string, actor models.User) (*models.Resident, error) {
	var before, after models.Resident
	err := store.Mutate(ctx, s.store, store.KeyResidents, func(rs []models.Resident) ([]models.Resident, error) {
		idx := indexOf(rs, id)
		if idx < 0 {
			return nil, ErrNotFound
		}
		before = rs[idx]
		qr, err := s.codec.IssueImage(&rs[idx])
		if err != nil {
			return nil, err
		}
		rs[idx].QRCode = qr
		rs[idx].UpdatedAt = s.now()
		after = rs[idx]
		return rs, nil
	})
	if err != nil {
		return nil, err
	}

	s.writeAudit(ctx, actor, models.AuditActionUpdate, id, "Reissued credential for "+after.FullName(), before, after)
	return &after, nil
}

// Delete removes the resident with id and reports whether one existed.
// The stored list is not rewritten when nothing matched.
func (s *Service) Delete(ctx context.Context, id string, actor models.User) (bool, error) {
	var removed models.Resident
	err := store.Mutate(ctx, s.store, store.KeyResidents, func(rs []models.Resident) ([]models.Resident, error) {
		idx := indexOf(rs, id)
		if idx < 0 {
			return nil, ErrNotFound
		}
		removed = rs[idx]
		return append(rs[:idx], rs[idx+1:]...), nil
	})
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	s.writeAudit(ctx, actor, models.AuditActionDelete, id, "Deleted resident "+removed.FullName(), removed, nil)
	s.logger.Info("resident deleted", zap.String("resident_id", id))
	return true, nil
}

func (s *Service) writeAudit(ctx context.Context, actor models.User, action models.AuditAction, id, desc string, before, after any) {
	if s.audit == nil {
		return
	}
	err := s.audit.WriteLog(ctx, audit.LogOptions{
		UserID:      actor.ID,
		UserName:    actor.FullName(),
		EntityType:  EntityType,
		EntityID:    id,
		Action:      action,
		Description: desc,
		Before:      before,
		After:       after,
	})
	if err != nil {
		s.logger.Error("audit log not written", zap.String("resident_id", id), zap.Error(err))
	}
}

func indexOf(rs []models.Resident, id string) int {
	for i := range rs {
		if rs[i].ID == id {
			return i
		}
	}
	return -1
}

// UndoCreate, UndoUpdate and UndoDelete let the audit trail revert
// resident changes.

func (s *Service) UndoCreate(ctx context.Context, id string) error {
	return store.Mutate(ctx, s.store, store.KeyResidents, func(rs []models.Resident) ([]models.Resident, error) {
		idx := indexOf(rs, id)
		if idx < 0 {
			return nil, ErrNotFound
		}
		return append(rs[:idx], rs[idx+1:]...), nil
	})
}

func (s *Service) UndoUpdate(ctx context.Context, id string, before json.RawMessage) error {
	var prev models.Resident
	if err := json.Unmarshal(before, &prev); err != nil {
		return fmt.Errorf("decode previous state: %w", err)
	}
	return store.Mutate(ctx, s.store, store.KeyResidents, func(rs []models.Resident) ([]models.Resident, error) {
		idx := indexOf(rs, id)
		if idx < 0 {
			return nil, ErrNotFound
		}
		prev.UpdatedAt = s.now()
		rs[idx] = prev
		return rs, nil
	})
}

func (s *Service) UndoDelete(ctx context.Context, before json.RawMessage) error {
	var prev models.Resident
	if err := json.Unmarshal(before, &prev); err != nil {
		return fmt.Errorf("decode deleted resident: %w", err)
	}
	if prev.ID == "" {
		return fmt.Errorf("%w: deleted state has no id", ErrInvalid)
	}
	return store.Mutate(ctx, s.store, store.KeyResidents, func(rs []models.Resident) ([]models.Resident, error) {
		if indexOf(rs, prev.ID) >= 0 {
			return nil, fmt.Errorf("%w: id %s already exists", ErrInvalid, prev.ID)
		}
		return append(rs, prev), nil
	})
}
