package announce

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPublishAndList(t *testing.T) {
	board := NewInMemory(nil)
	ctx := context.Background()

	first, err := board.Publish(ctx, 1, "Maintenance window", "Saturday 02:00-04:00 UTC.")
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if first.ID == "" {
		t.Fatalf("expected generated id")
	}

	second, err := board.Publish(ctx, 1, "New intake form", "Rolling out next week.")
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}

	items, err := board.List(ctx, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 announcements, got %d", len(items))
	}
	if items[0].ID != second.ID {
		t.Fatalf("expected newest first, got %s", items[0].ID)
	}
}

func TestPublishValidation(t *testing.T) {
	board := NewInMemory(nil)
	ctx := context.Background()

	if _, err := board.Publish(ctx, 0, "title", "body"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for missing author, got %v", err)
	}
	if _, err := board.Publish(ctx, 1, "   ", "body"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty title, got %v", err)
	}
	if _, err := board.Publish(ctx, 1, "title", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty body, got %v", err)
	}
}

func TestStreamDeliversToSubscribers(t *testing.T) {
	stream := NewStream()
	board := NewInMemory(stream)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := stream.Subscribe(ctx)

	published, err := board.Publish(context.Background(), 7, "Live update", "Streamed to dashboards.")
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case got := <-ch:
		if got.ID != published.ID {
			t.Fatalf("unexpected announcement: %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for streamed announcement")
	}
}

func TestStreamUnsubscribesOnContextEnd(t *testing.T) {
	stream := NewStream()
	ctx, cancel := context.WithCancel(context.Background())
	ch := stream.Subscribe(ctx)
	cancel()

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel was not closed after context end")
		}
	}
}
