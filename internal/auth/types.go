package auth

import (
	"strings"
	"time"
)

// Role is the closed set of user categories determining capability grants.
type Role string

const (
	RoleAdmin           Role = "admin"
	RolePlatformManager Role = "platform_manager"
	RoleCSR             Role = "csr"
	RolePersonInNeed    Role = "person_in_need"
	RoleUserAdmin       Role = "user_admin"
)

// Roles enumerates every known role.
var Roles = []Role{RoleAdmin, RolePlatformManager, RoleCSR, RolePersonInNeed, RoleUserAdmin}

// Valid reports whether the role belongs to the closed set.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RolePlatformManager, RoleCSR, RolePersonInNeed, RoleUserAdmin:
		return true
	}
	return false
}

const (
	UserStatusActive    = "active"
	UserStatusSuspended = "suspended"
)

// UserRecord represents a stored account. The secret hash never leaves the
// auth boundary in API responses.
type UserRecord struct {
	ID         int64             `json:"id"`
	Username   string            `json:"username"`
	SecretHash string            `json:"-"`
	Role       Role              `json:"role"`
	Profile    map[string]string `json:"profile,omitempty"`
	Status     string            `json:"status"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// SessionState models the session lifecycle. Expired and Revoked are
// terminal.
type SessionState string

const (
	SessionActive  SessionState = "active"
	SessionExpired SessionState = "expired"
	SessionRevoked SessionState = "revoked"
)

// Session is the server-side record backing an issued token, keyed by the
// token id embedded in the signed envelope.
type Session struct {
	TokenID   string
	UserID    int64
	IssuedAt  time.Time
	ExpiresAt time.Time
	State     SessionState
}

// SessionGrant is returned to a successfully authenticated client.
type SessionGrant struct {
	Token     string    `json:"token"`
	UserID    int64     `json:"user_id"`
	Role      Role      `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Principal is an authenticated subject with verified claims.
type Principal struct {
	User   UserRecord
	Claims Claims
}

// NormalizeUsername lower-cases and trims a username for lookups and
// uniqueness checks.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
