package auth

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/odyssey-erp/simdesk/internal/platform/db"
	"github.com/odyssey-erp/simdesk/internal/rbac"
	"github.com/odyssey-erp/simdesk/internal/shared"
)

// Repository defines persistence operations for auth module.
type Repository interface {
	FindByUsername(ctx context.Context, username string) (*User, error)
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
	CountUsers(ctx context.Context) (int64, error)
	CreateUser(ctx context.Context, user *User) error
}

// GormRepository implements Repository on the relational store.
type GormRepository struct {
	conn *gorm.DB
}

// NewRepository constructs a store-backed repository.
func NewRepository(conn *gorm.DB) *GormRepository {
	return &GormRepository{conn: conn}
}

// FindByUsername fetches a user by username.
func (r *GormRepository) FindByUsername(ctx context.Context, username string) (*User, error) {
	var row db.User
	err := r.conn.WithContext(ctx).Where("username = ?", username).Take(&row).Error
	if err != nil {
		if db.IsNotFound(err) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("auth: find user: %w", err)
	}
	return toDomainUser(row), nil
}

// TouchLastLogin stamps the user's last successful login.
func (r *GormRepository) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	res := r.conn.WithContext(ctx).Model(&db.User{}).Where("id = ?", id).Update("last_login_at", at)
	if res.Error != nil {
		return fmt.Errorf("auth: touch last login: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// CountUsers returns the number of accounts.
func (r *GormRepository) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	if err := r.conn.WithContext(ctx).Model(&db.User{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("auth: count users: %w", err)
	}
	return n, nil
}

// CreateUser inserts an account and fills in its ID.
func (r *GormRepository) CreateUser(ctx context.Context, user *User) error {
	row := db.User{
		Username:     user.Username,
		PasswordHash: user.PasswordHash,
		Role:         string(user.Role),
		CreatedAt:    user.CreatedAt,
		LastLoginAt:  user.LastLoginAt,
	}
	if err := r.conn.WithContext(ctx).Create(&row).Error; err != nil {
		if db.IsDuplicateKey(err) {
			return shared.ErrDuplicateKey
		}
		return fmt.Errorf("auth: create user: %w", err)
	}
	user.ID = row.ID
	return nil
}

func toDomainUser(row db.User) *User {
	return &User{
		ID:           row.ID,
		Username:     row.Username,
		PasswordHash: row.PasswordHash,
		Role:         rbac.Role(row.Role),
		CreatedAt:    row.CreatedAt,
		LastLoginAt:  row.LastLoginAt,
	}
}

var _ Repository = (*GormRepository)(nil)
