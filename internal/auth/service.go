package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

const defaultSessionTTL = 15 * time.Minute

// dummyHash keeps the cost of an unknown-username login indistinguishable
// from a wrong-secret login.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// Service wires the credential store, token codec, session lifecycle and
// authorization gate behind one API. All operations are safe for concurrent
// use.
type Service struct {
	creds    CredentialStore
	sessions SessionStore
	tokens   *Tokens
	gate     *Gate

	now    func() time.Time
	ttl    time.Duration
	issuer string
}

// Option configures Service behavior.
type Option func(*Service) error

// WithSessionTTL overrides the access token lifetime.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) error {
		if ttl > 0 {
			s.ttl = ttl
		}
		return nil
	}
}

// WithIssuer overrides the token issuer claim.
func WithIssuer(issuer string) Option {
	return func(s *Service) error {
		s.issuer = strings.TrimSpace(issuer)
		return nil
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// NewService constructs the access-control service. The signing secret must
// be non-empty; the capability gate is validated for completeness here, so a
// broken table fails at process start rather than at request time.
func NewService(creds CredentialStore, sessions SessionStore, secret string, opts ...Option) (*Service, error) {
	if creds == nil {
		return nil, errors.New("auth: credential store is required")
	}
	if sessions == nil {
		return nil, errors.New("auth: session store is required")
	}
	svc := &Service{
		creds:    creds,
		sessions: sessions,
		now:      time.Now,
		ttl:      defaultSessionTTL,
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	tokens, err := NewTokens([]byte(strings.TrimSpace(secret)), svc.issuer, svc.now)
	if err != nil {
		return nil, err
	}
	gate, err := NewGate()
	if err != nil {
		return nil, err
	}
	svc.tokens = tokens
	svc.gate = gate
	return svc, nil
}

// Authenticate verifies a username/secret pair and mints a session grant.
// Unknown usernames and wrong secrets fail identically.
func (s *Service) Authenticate(ctx context.Context, username, secret string) (SessionGrant, error) {
	username = NormalizeUsername(username)
	if username == "" || secret == "" {
		return SessionGrant{}, ErrInvalidCredentials
	}
	user, err := s.creds.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			_ = VerifyPassword(dummyHash, secret)
			return SessionGrant{}, ErrInvalidCredentials
		}
		return SessionGrant{}, err
	}
	if err := VerifyPassword(user.SecretHash, secret); err != nil {
		return SessionGrant{}, ErrInvalidCredentials
	}
	if user.Status == UserStatusSuspended {
		return SessionGrant{}, ErrAccountSuspended
	}
	return s.issueGrant(ctx, user)
}

func (s *Service) issueGrant(ctx context.Context, user UserRecord) (SessionGrant, error) {
	token, claims, err := s.tokens.Issue(user.ID, user.Role, s.ttl)
	if err != nil {
		return SessionGrant{}, err
	}
	sess := Session{
		TokenID:   claims.TokenID,
		UserID:    user.ID,
		IssuedAt:  claims.IssuedAt,
		ExpiresAt: claims.ExpiresAt,
		State:     SessionActive,
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return SessionGrant{}, err
	}
	return SessionGrant{
		Token:     token,
		UserID:    user.ID,
		Role:      user.Role,
		ExpiresAt: claims.ExpiresAt,
	}, nil
}

// Validate recovers claims from a presented token and revalidates the backing
// session and its subject. A deleted or suspended subject invalidates the
// session even when the token itself has not expired.
func (s *Service) Validate(ctx context.Context, token string) (Principal, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		if errors.Is(err, ErrExpired) && claims.TokenID != "" {
			// Settle the stored session so its state matches the token.
			_, _ = s.sessions.Expire(ctx, claims.TokenID)
		}
		return Principal{}, err
	}
	sess, err := s.sessions.Find(ctx, claims.TokenID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Principal{}, ErrInvalidToken
		}
		return Principal{}, err
	}
	if sess.State == SessionExpired {
		return Principal{}, ErrExpired
	}
	if sess.State != SessionActive {
		return Principal{}, ErrInvalidToken
	}
	if !s.now().Before(sess.ExpiresAt) {
		// Record the expiry on the session so later lookups see the
		// terminal state without re-checking the deadline.
		_, _ = s.sessions.Expire(ctx, claims.TokenID)
		return Principal{}, ErrExpired
	}
	user, err := s.creds.FindByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			_, _ = s.sessions.Revoke(ctx, claims.TokenID)
			return Principal{}, ErrInvalidToken
		}
		return Principal{}, err
	}
	if user.Status == UserStatusSuspended {
		_, _ = s.sessions.Revoke(ctx, claims.TokenID)
		return Principal{}, ErrInvalidToken
	}
	return Principal{User: user, Claims: claims}, nil
}

// Refresh rotates a session: the old token id is revoked before a new grant
// is minted, so of two concurrent refreshes on the same token exactly one
// wins and the loser observes the token as already invalidated.
func (s *Service) Refresh(ctx context.Context, token string) (SessionGrant, error) {
	principal, err := s.Validate(ctx, token)
	if err != nil {
		return SessionGrant{}, err
	}
	won, err := s.sessions.Revoke(ctx, principal.Claims.TokenID)
	if err != nil {
		return SessionGrant{}, err
	}
	if !won {
		return SessionGrant{}, ErrInvalidToken
	}
	return s.issueGrant(ctx, principal.User)
}

// Revoke terminates the session behind the token. Idempotent: revoking an
// expired or already revoked session is a no-op.
func (s *Service) Revoke(ctx context.Context, token string) error {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		if errors.Is(err, ErrExpired) {
			if claims.TokenID != "" {
				_, _ = s.sessions.Expire(ctx, claims.TokenID)
			}
			return nil
		}
		return err
	}
	_, err = s.sessions.Revoke(ctx, claims.TokenID)
	return err
}

// Authorize delegates to the static capability gate.
func (s *Service) Authorize(role Role, capability Capability) Decision {
	return s.gate.Authorize(role, capability)
}

// Capabilities returns the capability set granted to a role.
func (s *Service) Capabilities(role Role) []Capability {
	return s.gate.RoleCapabilities(role)
}

// CreateUser registers a new account. The plaintext secret is hashed and
// discarded.
func (s *Service) CreateUser(ctx context.Context, username, secret string, role Role, profile map[string]string) (UserRecord, error) {
	username = NormalizeUsername(username)
	if username == "" {
		return UserRecord{}, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	if secret == "" {
		return UserRecord{}, fmt.Errorf("%w: secret is required", ErrInvalidInput)
	}
	if !role.Valid() {
		return UserRecord{}, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}
	hash, err := HashPassword(secret)
	if err != nil {
		return UserRecord{}, err
	}
	return s.creds.Create(ctx, username, hash, role, profile)
}

// ListUsers returns all accounts ordered by id.
func (s *Service) ListUsers(ctx context.Context) ([]UserRecord, error) {
	return s.creds.List(ctx)
}

// GetUser looks up one account.
func (s *Service) GetUser(ctx context.Context, id int64) (UserRecord, error) {
	return s.creds.FindByID(ctx, id)
}

// SetSuspended flips account status. Suspending also revokes the user's
// active sessions.
func (s *Service) SetSuspended(ctx context.Context, id int64, suspended bool) (UserRecord, error) {
	if err := s.creds.SetSuspended(ctx, id, suspended); err != nil {
		return UserRecord{}, err
	}
	if suspended {
		if err := s.sessions.RevokeAllForUser(ctx, id); err != nil {
			return UserRecord{}, err
		}
	}
	return s.creds.FindByID(ctx, id)
}
