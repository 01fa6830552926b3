package announce

import (
	"context"
	"sync"
)

// Stream fan-outs published announcements to all active subscribers
// (SSE clients on dashboards).
type Stream struct {
	mu   sync.RWMutex
	subs map[int]chan Announcement
	next int
}

// NewStream initialises an empty stream.
func NewStream() *Stream {
	return &Stream{subs: make(map[int]chan Announcement)}
}

// Subscribe registers a subscriber and returns a channel which will receive
// announcements. The channel is closed when the provided context ends.
func (s *Stream) Subscribe(ctx context.Context) <-chan Announcement {
	ch := make(chan Announcement, 16)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Publish fan-outs the announcement to all subscribers.
func (s *Stream) Publish(ann Announcement) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- ann:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}
