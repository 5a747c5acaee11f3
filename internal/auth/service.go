package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/simdesk/internal/rbac"
	"github.com/odyssey-erp/simdesk/internal/shared"
)

// Service wraps authentication business rules.
type Service struct {
	repo Repository
	cost int
	now  func() time.Time

	// dummyHash is compared against for unknown usernames so both failure
	// paths cost one bcrypt comparison.
	dummyOnce sync.Once
	dummyHash []byte
}

// Option customises a Service.
type Option func(*Service)

// WithBcryptCost overrides the hashing cost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService constructs a new Service.
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{repo: repo, cost: bcrypt.DefaultCost, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Authenticate validates username/password credentials and records the login.
func (s *Service) Authenticate(ctx context.Context, username, password string) (rbac.Principal, error) {
	username = strings.TrimSpace(username)
	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			return rbac.Principal{}, err
		}
		_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(password))
		return rbac.Principal{}, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return rbac.Principal{}, shared.ErrInvalidCredentials
	}
	if !user.Role.Valid() {
		return rbac.Principal{}, shared.ErrInvalidCredentials
	}
	if err := s.repo.TouchLastLogin(ctx, user.ID, s.now().UTC()); err != nil {
		return rbac.Principal{}, fmt.Errorf("auth: record login: %w", err)
	}
	return user.Principal(), nil
}

// HashPassword hashes a plaintext password with bcrypt.
func (s *Service) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CreateUser stores a new account with a hashed password.
func (s *Service) CreateUser(ctx context.Context, username, password string, role rbac.Role) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, fmt.Errorf("auth: username and password required: %w", shared.ErrValidation)
	}
	if !role.Valid() {
		return nil, fmt.Errorf("auth: role %q: %w", role, shared.ErrValidation)
	}
	hash, err := s.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}
	user := &User{Username: username, PasswordHash: hash, Role: role, CreatedAt: s.now().UTC()}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// EnsureDefaultAdmin creates an admin account when no user exists yet.
// It reports whether an account was created.
func (s *Service) EnsureDefaultAdmin(ctx context.Context, username, password string) (bool, error) {
	n, err := s.repo.CountUsers(ctx)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	if _, err := s.CreateUser(ctx, username, password, rbac.RoleAdmin); err != nil {
		return false, fmt.Errorf("auth: seed admin: %w", err)
	}
	return true, nil
}

func (s *Service) dummy() []byte {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("simdesk-unknown-user"), s.cost)
	})
	return s.dummyHash
}
