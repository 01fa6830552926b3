package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"carelink.org/internal/audit"
	"carelink.org/internal/auth"
	"carelink.org/internal/cases"
)

type submitCaseRequest struct {
	Category string `json:"category"`
	Summary  string `json:"summary"`
}

type listCasesResponse struct {
	Items []cases.Request `json:"items"`
	AsOf  time.Time       `json:"as_of"`
}

func (a *API) handleCases(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listCases(w, r)
	case http.MethodPost:
		a.submitCase(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleOwnCases(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	principal, ok := a.requireCapability(w, r, auth.CapViewOwnCase)
	if !ok {
		return
	}

	items, err := a.cases.ListBySubject(r.Context(), principal.User.ID)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	if items == nil {
		items = []cases.Request{}
	}
	writeJSON(w, http.StatusOK, listCasesResponse{
		Items: items,
		AsOf:  time.Now().UTC(),
	})
}

func (a *API) listCases(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requireCapability(w, r, auth.CapViewCases); !ok {
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

	items, err := a.cases.List(r.Context(), limit)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	if items == nil {
		items = []cases.Request{}
	}
	writeJSON(w, http.StatusOK, listCasesResponse{
		Items: items,
		AsOf:  time.Now().UTC(),
	})
}

func (a *API) submitCase(w http.ResponseWriter, r *http.Request) {
	principal, ok := a.requireCapability(w, r, auth.CapSubmitCase)
	if !ok {
		return
	}

	var req submitCaseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	created, err := a.cases.Submit(r.Context(), principal.User.ID, req.Category, req.Summary)
	if err != nil {
		if errors.Is(err, cases.ErrInvalidInput) {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	_ = audit.LogEvent(r.Context(), "cases.submit", map[string]any{
		"case_id":  created.ID,
		"category": created.Category,
	})

	writeJSON(w, http.StatusCreated, created)
}
