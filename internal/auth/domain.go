package auth

import (
	"time"

	"github.com/odyssey-erp/simdesk/internal/rbac"
)

// User represents a dashboard account.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Role         rbac.Role
	CreatedAt    time.Time
	LastLoginAt  *time.Time
}

// Principal returns the session identity for the user.
func (u User) Principal() rbac.Principal {
	return rbac.Principal{UserID: u.ID, Username: u.Username, Role: u.Role}
}
