package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"carelink.org/internal/auth"
)

func TestCredentialStoreCreate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery("insert into users").
		WithArgs("alice", "hash", "csr", sqlmock.AnyArg(), "active").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(1), now, now))

	store := NewCredentialStore(db)
	u, err := store.Create(context.Background(), "  Alice ", "hash", auth.RoleCSR, map[string]string{"team": "east"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if u.ID != 1 {
		t.Fatalf("unexpected id: %d", u.ID)
	}
	if u.Username != "alice" {
		t.Fatalf("username was not normalized: %q", u.Username)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCredentialStoreCreateDuplicate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("insert into users").
		WithArgs("alice", "hash", "csr", sqlmock.AnyArg(), "active").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_username_key"})

	store := NewCredentialStore(db)
	if _, err := store.Create(context.Background(), "alice", "hash", auth.RoleCSR, nil); !errors.Is(err, auth.ErrDuplicateUsername) {
		t.Fatalf("expected ErrDuplicateUsername, got %v", err)
	}
}

func TestCredentialStoreFindByUsername(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	cols := []string{"id", "username", "secret_hash", "role", "profile", "status", "created_at", "updated_at"}
	mock.ExpectQuery("select id, username, secret_hash, role, profile, status, created_at, updated_at").
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(int64(7), "alice", "hash", "admin", []byte(`{"team":"east"}`), "active", now, now))

	store := NewCredentialStore(db)
	u, err := store.FindByUsername(context.Background(), "Alice")
	if err != nil {
		t.Fatalf("FindByUsername: %v", err)
	}
	if u.ID != 7 || u.Role != auth.RoleAdmin {
		t.Fatalf("unexpected record: %+v", u)
	}
	if u.Profile["team"] != "east" {
		t.Fatalf("profile was not decoded: %v", u.Profile)
	}
}

func TestCredentialStoreFindByIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("select id, username, secret_hash, role, profile, status, created_at, updated_at").
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	store := NewCredentialStore(db)
	if _, err := store.FindByID(context.Background(), 99); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCredentialStoreSetSuspended(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("update users set status").
		WithArgs("suspended", int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("update users set status").
		WithArgs("active", int64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	store := NewCredentialStore(db)
	if err := store.SetSuspended(context.Background(), 7, true); err != nil {
		t.Fatalf("SetSuspended: %v", err)
	}
	if err := store.SetSuspended(context.Background(), 99, false); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing user, got %v", err)
	}
}

func TestSessionStoreRevokeGuardsState(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("update sessions set state").
		WithArgs("revoked", "tok-1", "active").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("update sessions set state").
		WithArgs("revoked", "tok-1", "active").
		WillReturnResult(sqlmock.NewResult(0, 0))

	store := NewSessionStore(db)
	won, err := store.Revoke(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if !won {
		t.Fatal("expected first revoke to win")
	}
	won, err = store.Revoke(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if won {
		t.Fatal("expected second revoke to report no transition")
	}
}

func TestSessionStoreExpireGuardsState(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("update sessions set state").
		WithArgs("expired", "tok-1", "active").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("update sessions set state").
		WithArgs("expired", "tok-1", "active").
		WillReturnResult(sqlmock.NewResult(0, 0))

	store := NewSessionStore(db)
	won, err := store.Expire(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("Expire: %v", err)
	}
	if !won {
		t.Fatal("expected first expire to win")
	}
	won, err = store.Expire(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("Expire: %v", err)
	}
	if won {
		t.Fatal("expected second expire to report no transition")
	}
}

func TestSessionStoreFind(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	issued := time.Now().UTC()
	expires := issued.Add(15 * time.Minute)
	mock.ExpectQuery("select token_id, user_id, issued_at, expires_at, state").
		WithArgs("tok-1").
		WillReturnRows(sqlmock.NewRows([]string{"token_id", "user_id", "issued_at", "expires_at", "state"}).
			AddRow("tok-1", int64(7), issued, expires, "active"))

	store := NewSessionStore(db)
	sess, err := store.Find(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if sess.UserID != 7 || sess.State != auth.SessionActive {
		t.Fatalf("unexpected session: %+v", sess)
	}
}
