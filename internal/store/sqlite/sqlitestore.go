// Package sqlite implements the credential and session stores on an embedded
// SQLite database. Suited to single-node deployments without PostgreSQL.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"carelink.org/internal/auth"
)

var (
	_ auth.CredentialStore = (*CredentialStore)(nil)
	_ auth.SessionStore    = (*SessionStore)(nil)
)

// Store bundles the credential and session stores over one database handle.
type Store struct {
	db *sql.DB
	// modernc sqlite does not support concurrent writers.
	writeMu sync.Mutex
}

// Open opens (or creates) the database file and initialises the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	db.SetConnMaxLifetime(5 * time.Minute)
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func initSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			username    TEXT    UNIQUE NOT NULL,
			secret_hash TEXT    NOT NULL,
			role        TEXT    NOT NULL,
			profile     TEXT    NOT NULL DEFAULT '{}',
			status      TEXT    NOT NULL DEFAULT 'active',
			created_at  INTEGER NOT NULL,
			updated_at  INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS sessions (
			token_id   TEXT    PRIMARY KEY,
			user_id    INTEGER NOT NULL,
			issued_at  INTEGER NOT NULL,
			expires_at INTEGER NOT NULL,
			state      TEXT    NOT NULL DEFAULT 'active'
		);
		CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id, state);
	`); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Credentials returns the credential store view.
func (s *Store) Credentials() *CredentialStore { return &CredentialStore{store: s} }

// Sessions returns the session store view.
func (s *Store) Sessions() *SessionStore { return &SessionStore{store: s} }

func isUniqueViolation(err error) bool {
	var liteErr *sqlite.Error
	if !errors.As(err, &liteErr) {
		return false
	}
	switch liteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}

// CredentialStore implements auth.CredentialStore on SQLite.
type CredentialStore struct {
	store *Store
}

func (s *CredentialStore) Create(ctx context.Context, username, secretHash string, role auth.Role, profile map[string]string) (auth.UserRecord, error) {
	s.store.writeMu.Lock()
	defer s.store.writeMu.Unlock()

	username = auth.NormalizeUsername(username)
	profileJSON, _ := json.Marshal(profile)
	now := time.Now().UTC()

	res, err := s.store.db.ExecContext(ctx,
		`INSERT INTO users (username, secret_hash, role, profile, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		username, secretHash, string(role), string(profileJSON), auth.UserStatusActive,
		now.Unix(), now.Unix(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return auth.UserRecord{}, auth.ErrDuplicateUsername
		}
		return auth.UserRecord{}, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return auth.UserRecord{}, err
	}
	return auth.UserRecord{
		ID:         id,
		Username:   username,
		SecretHash: secretHash,
		Role:       role,
		Profile:    profile,
		Status:     auth.UserStatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

func (s *CredentialStore) FindByUsername(ctx context.Context, username string) (auth.UserRecord, error) {
	row := s.store.db.QueryRowContext(ctx,
		`SELECT id, username, secret_hash, role, profile, status, created_at, updated_at
		 FROM users WHERE username = ?`,
		auth.NormalizeUsername(username),
	)
	return scanUser(row)
}

func (s *CredentialStore) FindByID(ctx context.Context, id int64) (auth.UserRecord, error) {
	row := s.store.db.QueryRowContext(ctx,
		`SELECT id, username, secret_hash, role, profile, status, created_at, updated_at
		 FROM users WHERE id = ?`, id,
	)
	return scanUser(row)
}

func (s *CredentialStore) List(ctx context.Context) ([]auth.UserRecord, error) {
	rows, err := s.store.db.QueryContext(ctx,
		`SELECT id, username, secret_hash, role, profile, status, created_at, updated_at
		 FROM users ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []auth.UserRecord
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *CredentialStore) SetSuspended(ctx context.Context, id int64, suspended bool) error {
	s.store.writeMu.Lock()
	defer s.store.writeMu.Unlock()

	status := auth.UserStatusActive
	if suspended {
		status = auth.UserStatusSuspended
	}
	res, err := s.store.db.ExecContext(ctx,
		`UPDATE users SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC().Unix(), id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return auth.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (auth.UserRecord, error) {
	var (
		u                auth.UserRecord
		role, profile    string
		created, updated int64
	)
	if err := row.Scan(&u.ID, &u.Username, &u.SecretHash, &role, &profile, &u.Status, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return auth.UserRecord{}, auth.ErrNotFound
		}
		return auth.UserRecord{}, err
	}
	u.Role = auth.Role(role)
	if profile != "" {
		_ = json.Unmarshal([]byte(profile), &u.Profile)
	}
	u.CreatedAt = time.Unix(created, 0).UTC()
	u.UpdatedAt = time.Unix(updated, 0).UTC()
	return u, nil
}

// SessionStore implements auth.SessionStore on SQLite.
type SessionStore struct {
	store *Store
}

func (s *SessionStore) Create(ctx context.Context, sess auth.Session) error {
	s.store.writeMu.Lock()
	defer s.store.writeMu.Unlock()

	_, err := s.store.db.ExecContext(ctx,
		`INSERT INTO sessions (token_id, user_id, issued_at, expires_at, state)
		 VALUES (?, ?, ?, ?, ?)`,
		sess.TokenID, sess.UserID, sess.IssuedAt.Unix(), sess.ExpiresAt.Unix(), string(sess.State),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *SessionStore) Find(ctx context.Context, tokenID string) (auth.Session, error) {
	row := s.store.db.QueryRowContext(ctx,
		`SELECT token_id, user_id, issued_at, expires_at, state
		 FROM sessions WHERE token_id = ?`, tokenID,
	)
	var (
		sess            auth.Session
		issued, expires int64
		state           string
	)
	if err := row.Scan(&sess.TokenID, &sess.UserID, &issued, &expires, &state); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return auth.Session{}, auth.ErrNotFound
		}
		return auth.Session{}, err
	}
	sess.IssuedAt = time.Unix(issued, 0).UTC()
	sess.ExpiresAt = time.Unix(expires, 0).UTC()
	sess.State = auth.SessionState(state)
	return sess, nil
}

// Revoke performs the active-to-revoked transition as a single guarded
// update, so exactly one of any concurrent callers observes true.
func (s *SessionStore) Revoke(ctx context.Context, tokenID string) (bool, error) {
	return s.transition(ctx, tokenID, auth.SessionRevoked)
}

// Expire performs the active-to-expired transition with the same guard.
func (s *SessionStore) Expire(ctx context.Context, tokenID string) (bool, error) {
	return s.transition(ctx, tokenID, auth.SessionExpired)
}

func (s *SessionStore) transition(ctx context.Context, tokenID string, to auth.SessionState) (bool, error) {
	s.store.writeMu.Lock()
	defer s.store.writeMu.Unlock()

	res, err := s.store.db.ExecContext(ctx,
		`UPDATE sessions SET state = ? WHERE token_id = ? AND state = ?`,
		string(to), tokenID, string(auth.SessionActive),
	)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (s *SessionStore) RevokeAllForUser(ctx context.Context, userID int64) error {
	s.store.writeMu.Lock()
	defer s.store.writeMu.Unlock()

	_, err := s.store.db.ExecContext(ctx,
		`UPDATE sessions SET state = ? WHERE user_id = ? AND state = ?`,
		string(auth.SessionRevoked), userID, string(auth.SessionActive),
	)
	return err
}
