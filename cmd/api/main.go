package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"carelink.org/internal/announce"
	"carelink.org/internal/auth"
	"carelink.org/internal/cases"
	"carelink.org/internal/httpapi"
	"carelink.org/internal/obs"
	"carelink.org/internal/store/pg"
	"carelink.org/internal/store/sqlite"
)

var (
	version = "1.0.0"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	secret := os.Getenv("CARELINK_AUTH_SECRET")
	if secret == "" {
		log.Fatal("CARELINK_AUTH_SECRET is required")
	}
	addr := os.Getenv("CARELINK_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	creds, sessions, db, closeStore, err := openStores(ctx)
	cancel()
	if err != nil {
		log.Fatalf("open store: %v", err)
	}

	svc, err := auth.NewService(creds, sessions, secret, auth.WithIssuer("carelink"))
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}

	seedAdmin(svc)

	stream := announce.NewStream()
	board := announce.NewInMemory(stream)
	caseReg := cases.NewInMemory()

	api := httpapi.New(svc, board, stream, caseReg, httpapi.ReadyProbe{DB: db}, version)

	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting carelink-api %s on %s", version, srv.Addr)
	obs.SetReady(true)

	// graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")
	obs.SetReady(false)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	closeStore()
	log.Println("Stopped")
}

// openStores selects the backing store: PostgreSQL when CARELINK_PG_DSN is
// set, else SQLite when CARELINK_SQLITE_PATH is set, else in-memory.
func openStores(ctx context.Context) (auth.CredentialStore, auth.SessionStore, *sql.DB, func(), error) {
	if dsn := os.Getenv("CARELINK_PG_DSN"); dsn != "" {
		db, err := pg.Open(ctx, dsn)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		log.Println("Using PostgreSQL store")
		return pg.NewCredentialStore(db), pg.NewSessionStore(db), db, func() { _ = db.Close() }, nil
	}
	if path := os.Getenv("CARELINK_SQLITE_PATH"); path != "" {
		store, err := sqlite.Open(ctx, path)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		log.Printf("Using SQLite store at %s", path)
		return store.Credentials(), store.Sessions(), nil, func() { _ = store.Close() }, nil
	}
	log.Println("Using in-memory store (accounts do not survive restarts)")
	return auth.NewMemoryCredentials(), auth.NewMemorySessions(), nil, func() {}, nil
}

// seedAdmin bootstraps the first admin account from the environment.
func seedAdmin(svc *auth.Service) {
	username := os.Getenv("CARELINK_ADMIN_USER")
	password := os.Getenv("CARELINK_ADMIN_PASSWORD")
	if username == "" || password == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := svc.CreateUser(ctx, username, password, auth.RoleAdmin, nil)
	switch {
	case err == nil:
		log.Printf("Seeded admin account %q", auth.NormalizeUsername(username))
	case errors.Is(err, auth.ErrDuplicateUsername):
		// Already bootstrapped.
	default:
		log.Fatalf("seed admin: %v", err)
	}
}
