package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"carelink.org/internal/announce"
	"carelink.org/internal/audit"
	"carelink.org/internal/auth"
)

type publishAnnouncementRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type listAnnouncementsResponse struct {
	Items []announce.Announcement `json:"items"`
	AsOf  time.Time               `json:"as_of"`
}

func (a *API) handleAnnouncements(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listAnnouncements(w, r)
	case http.MethodPost:
		a.publishAnnouncement(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) listAnnouncements(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requireCapability(w, r, auth.CapViewAnnouncements); !ok {
		return
	}

	limit := 100
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > 1000 {
			writeError(w, r, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = v
	}

	items, err := a.board.List(r.Context(), limit)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	if items == nil {
		items = []announce.Announcement{}
	}
	writeJSON(w, http.StatusOK, listAnnouncementsResponse{
		Items: items,
		AsOf:  time.Now().UTC(),
	})
}

func (a *API) publishAnnouncement(w http.ResponseWriter, r *http.Request) {
	principal, ok := a.requireCapability(w, r, auth.CapPublishAnnouncements)
	if !ok {
		return
	}

	var req publishAnnouncementRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	ann, err := a.board.Publish(r.Context(), principal.User.ID, req.Title, req.Body)
	if err != nil {
		if errors.Is(err, announce.ErrInvalidInput) {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	_ = audit.LogEvent(r.Context(), "announcements.publish", map[string]any{
		"announcement_id": ann.ID,
		"title":           ann.Title,
	})

	writeJSON(w, http.StatusCreated, ann)
}

// StreamAnnouncements serves the announcement feed over Server-Sent Events.
func (a *API) StreamAnnouncements(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := a.requireCapability(w, r, auth.CapViewAnnouncements); !ok {
		return
	}
	if a.stream == nil {
		http.Error(w, "streaming disabled", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ch := a.stream.Subscribe(ctx)

	// Send an initial comment to establish the stream
	_, _ = w.Write([]byte(": stream started\n\n"))
	flusher.Flush()

	for ann := range ch {
		payload, err := json.Marshal(ann)
		if err != nil {
			continue
		}
		_, _ = w.Write([]byte("data: "))
		_, _ = w.Write(payload)
		_, _ = w.Write([]byte("\n\n"))
		flusher.Flush()
	}
}
