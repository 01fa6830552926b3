// Package pg implements the credential and session stores on PostgreSQL.
package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"carelink.org/internal/auth"
)

var (
	_ auth.CredentialStore = (*CredentialStore)(nil)
	_ auth.SessionStore    = (*SessionStore)(nil)
)

const pgUniqueViolation = "23505"

// Open connects to PostgreSQL through the pgx stdlib driver and verifies the
// connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// CredentialStore implements auth.CredentialStore using PostgreSQL.
type CredentialStore struct {
	db *sql.DB
}

func NewCredentialStore(db *sql.DB) *CredentialStore {
	return &CredentialStore{db: db}
}

func (s *CredentialStore) Create(ctx context.Context, username, secretHash string, role auth.Role, profile map[string]string) (auth.UserRecord, error) {
	username = auth.NormalizeUsername(username)
	profileJSON, _ := json.Marshal(profile)

	row := s.db.QueryRowContext(ctx,
		`insert into users(username, secret_hash, role, profile, status)
		 values($1,$2,$3,$4,$5)
		 returning id, created_at, updated_at`,
		username, secretHash, string(role), profileJSON, auth.UserStatusActive,
	)
	u := auth.UserRecord{
		Username:   username,
		SecretHash: secretHash,
		Role:       role,
		Profile:    profile,
		Status:     auth.UserStatusActive,
	}
	if err := row.Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return auth.UserRecord{}, auth.ErrDuplicateUsername
		}
		return auth.UserRecord{}, err
	}
	return u, nil
}

func (s *CredentialStore) FindByUsername(ctx context.Context, username string) (auth.UserRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, username, secret_hash, role, profile, status, created_at, updated_at
		 from users where username=$1`,
		auth.NormalizeUsername(username),
	)
	return scanUser(row)
}

func (s *CredentialStore) FindByID(ctx context.Context, id int64) (auth.UserRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, username, secret_hash, role, profile, status, created_at, updated_at
		 from users where id=$1`, id,
	)
	return scanUser(row)
}

func (s *CredentialStore) List(ctx context.Context) ([]auth.UserRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, username, secret_hash, role, profile, status, created_at, updated_at
		 from users order by id asc`)
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
	status := auth.UserStatusActive
	if suspended {
		status = auth.UserStatusSuspended
	}
	res, err := s.db.ExecContext(ctx,
		`update users set status=$1, updated_at=now() where id=$2`, status, id)
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
		u       auth.UserRecord
		role    string
		profile []byte
	)
	if err := row.Scan(&u.ID, &u.Username, &u.SecretHash, &role, &profile, &u.Status, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return auth.UserRecord{}, auth.ErrNotFound
		}
		return auth.UserRecord{}, err
	}
	u.Role = auth.Role(role)
	if len(profile) > 0 {
		_ = json.Unmarshal(profile, &u.Profile)
	}
	return u, nil
}

// SessionStore implements auth.SessionStore using PostgreSQL.
type SessionStore struct {
	db *sql.DB
}

func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db}
}

func (s *SessionStore) Create(ctx context.Context, sess auth.Session) error {
	_, err := s.db.ExecContext(ctx,
		`insert into sessions(token_id, user_id, issued_at, expires_at, state)
		 values($1,$2,$3,$4,$5)`,
		sess.TokenID, sess.UserID, sess.IssuedAt, sess.ExpiresAt, string(sess.State),
	)
	return err
}

func (s *SessionStore) Find(ctx context.Context, tokenID string) (auth.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`select token_id, user_id, issued_at, expires_at, state
		 from sessions where token_id=$1`, tokenID,
	)
	var (
		sess  auth.Session
		state string
	)
	if err := row.Scan(&sess.TokenID, &sess.UserID, &sess.IssuedAt, &sess.ExpiresAt, &state); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return auth.Session{}, auth.ErrNotFound
		}
		return auth.Session{}, err
	}
	sess.State = auth.SessionState(state)
	return sess, nil
}

// Revoke performs the active-to-revoked transition as a single guarded
// update, so concurrent callers race safely and exactly one observes true.
func (s *SessionStore) Revoke(ctx context.Context, tokenID string) (bool, error) {
	return s.transition(ctx, tokenID, auth.SessionRevoked)
}

// Expire performs the active-to-expired transition with the same guard.
func (s *SessionStore) Expire(ctx context.Context, tokenID string) (bool, error) {
	return s.transition(ctx, tokenID, auth.SessionExpired)
}

func (s *SessionStore) transition(ctx context.Context, tokenID string, to auth.SessionState) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`update sessions set state=$1 where token_id=$2 and state=$3`,
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
	_, err := s.db.ExecContext(ctx,
		`update sessions set state=$1 where user_id=$2 and state=$3`,
		string(auth.SessionRevoked), userID, string(auth.SessionActive),
	)
	return err
}
