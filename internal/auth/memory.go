package auth

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryCredentials implements CredentialStore with in-process concurrency
// safety. Volatile: intended for tests and single-node demo deployments.
type MemoryCredentials struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]*UserRecord
	byName map[string]int64
}

var _ CredentialStore = (*MemoryCredentials)(nil)

// NewMemoryCredentials creates an empty credential store.
func NewMemoryCredentials() *MemoryCredentials {
	return &MemoryCredentials{
		byID:   make(map[int64]*UserRecord),
		byName: make(map[string]int64),
	}
}

func (s *MemoryCredentials) Create(ctx context.Context, username, secretHash string, role Role, profile map[string]string) (UserRecord, error) {
	username = NormalizeUsername(username)
	if username == "" {
		return UserRecord{}, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	if secretHash == "" {
		return UserRecord{}, fmt.Errorf("%w: secret hash is required", ErrInvalidInput)
	}
	if !role.Valid() {
		return UserRecord{}, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byName[username]; taken {
		return UserRecord{}, ErrDuplicateUsername
	}

	s.nextID++
	now := time.Now().UTC()
	user := &UserRecord{
		ID:         s.nextID,
		Username:   username,
		SecretHash: secretHash,
		Role:       role,
		Profile:    copyProfile(profile),
		Status:     UserStatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.byID[user.ID] = user
	s.byName[username] = user.ID
	return cloneUser(user), nil
}

func (s *MemoryCredentials) FindByUsername(ctx context.Context, username string) (UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byName[NormalizeUsername(username)]
	if !ok {
		return UserRecord{}, ErrNotFound
	}
	return cloneUser(s.byID[id]), nil
}

func (s *MemoryCredentials) FindByID(ctx context.Context, id int64) (UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.byID[id]
	if !ok {
		return UserRecord{}, ErrNotFound
	}
	return cloneUser(user), nil
}

func (s *MemoryCredentials) List(ctx context.Context) ([]UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]UserRecord, 0, len(s.byID))
	for _, user := range s.byID {
		out = append(out, cloneUser(user))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryCredentials) SetSuspended(ctx context.Context, id int64, suspended bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	status := UserStatusActive
	if suspended {
		status = UserStatusSuspended
	}
	user.Status = status
	user.UpdatedAt = time.Now().UTC()
	return nil
}

func cloneUser(u *UserRecord) UserRecord {
	out := *u
	out.Profile = copyProfile(u.Profile)
	return out
}

func copyProfile(profile map[string]string) map[string]string {
	if len(profile) == 0 {
		return nil
	}
	out := make(map[string]string, len(profile))
	for k, v := range profile {
		out[k] = v
	}
	return out
}

// MemorySessions implements SessionStore with a single mutex so mutations
// (create, revoke, revoke-all) are atomic with respect to each other.
type MemorySessions struct {
	mu   sync.RWMutex
	byID map[string]*Session
}

var _ SessionStore = (*MemorySessions)(nil)

// NewMemorySessions creates an empty session store.
func NewMemorySessions() *MemorySessions {
	return &MemorySessions{byID: make(map[string]*Session)}
}

func (s *MemorySessions) Create(ctx context.Context, sess Session) error {
	if sess.TokenID == "" {
		return fmt.Errorf("%w: token id is required", ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[sess.TokenID]; exists {
		return fmt.Errorf("%w: session %s already exists", ErrInvalidInput, sess.TokenID)
	}
	stored := sess
	s.byID[sess.TokenID] = &stored
	return nil
}

func (s *MemorySessions) Find(ctx context.Context, tokenID string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.byID[tokenID]
	if !ok {
		return Session{}, ErrNotFound
	}
	return *sess, nil
}

func (s *MemorySessions) Revoke(ctx context.Context, tokenID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byID[tokenID]
	if !ok || sess.State != SessionActive {
		return false, nil
	}
	sess.State = SessionRevoked
	return true, nil
}

func (s *MemorySessions) Expire(ctx context.Context, tokenID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byID[tokenID]
	if !ok || sess.State != SessionActive {
		return false, nil
	}
	sess.State = SessionExpired
	return true, nil
}

func (s *MemorySessions) RevokeAllForUser(ctx context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.byID {
		if sess.UserID == userID && sess.State == SessionActive {
			sess.State = SessionRevoked
		}
	}
	return nil
}
