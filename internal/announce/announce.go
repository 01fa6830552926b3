package announce

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"carelink.org/internal/ids"
)

var ErrInvalidInput = errors.New("announce: invalid input")

const maxTitleLength = 200

// Announcement is a platform-wide notice published by a platform manager.
type Announcement struct {
	ID        string    `json:"id"`
	AuthorID  int64     `json:"author_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Service defines announcement operations.
type Service interface {
	Publish(ctx context.Context, authorID int64, title, body string) (Announcement, error)
	List(ctx context.Context, limit int) ([]Announcement, error)
}

// InMemory implements Service with in-process concurrency safety. Volatile
// by design; announcements do not survive a restart.
type InMemory struct {
	mu     sync.RWMutex
	items  []Announcement
	stream *Stream
}

var _ Service = (*InMemory)(nil)

// NewInMemory creates an empty announcement board. The stream is optional;
// when set, published announcements are fanned out to live subscribers.
func NewInMemory(stream *Stream) *InMemory {
	return &InMemory{stream: stream}
}

func (s *InMemory) Publish(ctx context.Context, authorID int64, title, body string) (Announcement, error) {
	title = strings.TrimSpace(title)
	body = strings.TrimSpace(body)
	if authorID < 1 {
		return Announcement{}, fmt.Errorf("%w: author id is required", ErrInvalidInput)
	}
	if title == "" {
		return Announcement{}, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if len(title) > maxTitleLength {
		return Announcement{}, fmt.Errorf("%w: title too long", ErrInvalidInput)
	}
	if body == "" {
		return Announcement{}, fmt.Errorf("%w: body is required", ErrInvalidInput)
	}

	ann := Announcement{
		ID:        ids.New(),
		AuthorID:  authorID,
		Title:     title,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.items = append(s.items, ann)
	s.mu.Unlock()

	if s.stream != nil {
		s.stream.Publish(ann)
	}
	return ann, nil
}

// List returns the most recent announcements, newest first.
func (s *InMemory) List(ctx context.Context, limit int) ([]Announcement, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.items)
	if n > limit {
		n = limit
	}
	out := make([]Announcement, 0, n)
	for i := len(s.items) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.items[i])
	}
	return out, nil
}
