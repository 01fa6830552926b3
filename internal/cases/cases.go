package cases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"carelink.org/internal/ids"
)

var (
	ErrInvalidInput = errors.New("cases: invalid input")
	ErrNotFound     = errors.New("cases: not found")
)

// Status tracks a support case through its lifecycle.
type Status string

const (
	StatusOpen     Status = "open"
	StatusInReview Status = "in_review"
	StatusClosed   Status = "closed"
)

const maxSummaryLength = 2000

// Request is a support case submitted by a person in need.
type Request struct {
	ID        string    `json:"id"`
	SubjectID int64     `json:"subject_id"`
	Category  string    `json:"category"`
	Summary   string    `json:"summary"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Service defines support case operations.
type Service interface {
	Submit(ctx context.Context, subjectID int64, category, summary string) (Request, error)
	List(ctx context.Context, limit int) ([]Request, error)
	ListBySubject(ctx context.Context, subjectID int64) ([]Request, error)
}

// InMemory implements Service with in-process concurrency safety.
type InMemory struct {
	mu    sync.RWMutex
	items []Request
	now   func() time.Time
}

var _ Service = (*InMemory)(nil)

// NewInMemory creates an empty case registry.
func NewInMemory() *InMemory {
	return &InMemory{now: time.Now}
}

func (s *InMemory) Submit(ctx context.Context, subjectID int64, category, summary string) (Request, error) {
	category = strings.TrimSpace(category)
	summary = strings.TrimSpace(summary)
	if subjectID < 1 {
		return Request{}, fmt.Errorf("%w: subject id is required", ErrInvalidInput)
	}
	if category == "" {
		return Request{}, fmt.Errorf("%w: category is required", ErrInvalidInput)
	}
	if summary == "" {
		return Request{}, fmt.Errorf("%w: summary is required", ErrInvalidInput)
	}
	if len(summary) > maxSummaryLength {
		return Request{}, fmt.Errorf("%w: summary too long", ErrInvalidInput)
	}

	now := s.now().UTC()
	req := Request{
		ID:        ids.New(),
		SubjectID: subjectID,
		Category:  category,
		Summary:   summary,
		Status:    StatusOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.items = append(s.items, req)
	s.mu.Unlock()
	return req, nil
}

// List returns the most recent cases, newest first.
func (s *InMemory) List(ctx context.Context, limit int) ([]Request, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Request, 0, limit)
	for i := len(s.items) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.items[i])
	}
	return out, nil
}

// ListBySubject returns the subject's own cases, newest first.
func (s *InMemory) ListBySubject(ctx context.Context, subjectID int64) ([]Request, error) {
	if subjectID < 1 {
		return nil, fmt.Errorf("%w: subject id is required", ErrInvalidInput)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Request, 0, 8)
	for i := len(s.items) - 1; i >= 0; i-- {
		if s.items[i].SubjectID == subjectID {
			out = append(out, s.items[i])
		}
	}
	return out, nil
}
