package users

import (
	"context"
	"errors"
	"strings"
	"time"

	"residence-backend/internal/models"
	"residence-backend/internal/store"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrNoUsers  = errors.New("no users stored")
	ErrNotFound = errors.New("user not found")
)

type Service struct {
	store *store.Store
	now   func() time.Time
}

func NewService(s *store.Store) *Service {
	return &Service{store: s, now: time.Now}
}

func (s *Service) List(ctx context.Context) ([]models.User, error) {
	return store.Load[models.User](ctx, s.store, store.KeyUsers)
}

// Current returns the first stored user. There is no session concept
// beyond that unless a token names someone else.
func (s *Service) Current(ctx context.Context) (*models.User, error) {
	list, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, ErrNoUsers
	}
	u := list[0]
	return &u, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.User, error) {
	list, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range list {
		if u.ID == id {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (s *Service) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	username = strings.TrimSpace(strings.ToLower(username))
	list, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range list {
		if strings.ToLower(u.Username) == username {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (s *Service) SetPassword(ctx context.Context, username, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.update(ctx, username, func(u *models.User) {
		u.PasswordHash = string(hash)
	})
}

// Authenticate checks a username/password pair and stamps lastLogin.
// Users without a password hash cannot log in.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	u, err := s.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if !u.IsActive || u.PasswordHash == "" {
		return nil, ErrNotFound
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrNotFound
	}

	now := s.now()
	if err := s.update(ctx, u.Username, func(x *models.User) { x.LastLogin = &now }); err != nil {
		return nil, err
	}
	u.LastLogin = &now
	return u, nil
}

func (s *Service) update(ctx context.Context, username string, fn func(*models.User)) error {
	username = strings.ToLower(username)
	return store.Mutate(ctx, s.store, store.KeyUsers, func(list []models.User) ([]models.User, error) {
		for i := range list {
			if strings.ToLower(list[i].Username) == username {
				fn(&list[i])
				return list, nil
			}
		}
		return nil, ErrNotFound
	})
}
