package auth

import "context"

// CredentialStore owns UserRecord lifetime. Implementations must be safe for
// concurrent use; Create assigns the next sequential id and enforces username
// uniqueness.
type CredentialStore interface {
	Create(ctx context.Context, username, secretHash string, role Role, profile map[string]string) (UserRecord, error)
	FindByUsername(ctx context.Context, username string) (UserRecord, error)
	FindByID(ctx context.Context, id int64) (UserRecord, error)
	List(ctx context.Context) ([]UserRecord, error)
	SetSuspended(ctx context.Context, id int64, suspended bool) error
}

// SessionStore owns Session lifetime, keyed by token id.
type SessionStore interface {
	Create(ctx context.Context, s Session) error
	Find(ctx context.Context, tokenID string) (Session, error)
	// Revoke reports whether it performed the Active→Revoked transition.
	// Revoking a missing or terminal session is a no-op, not an error.
	Revoke(ctx context.Context, tokenID string) (bool, error)
	// Expire reports whether it performed the Active→Expired transition.
	// Same no-op semantics as Revoke for missing or terminal sessions.
	Expire(ctx context.Context, tokenID string) (bool, error)
	RevokeAllForUser(ctx context.Context, userID int64) error
}
