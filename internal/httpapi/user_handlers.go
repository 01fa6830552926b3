package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"carelink.org/internal/audit"
	"carelink.org/internal/auth"
)

type createUserRequest struct {
	Username string            `json:"username"`
	Secret   string            `json:"secret"`
	Role     string            `json:"role"`
	Profile  map[string]string `json:"profile"`
}

type listUsersResponse struct {
	Items []auth.UserRecord `json:"items"`
	AsOf  time.Time         `json:"as_of"`
}

type setStatusRequest struct {
	Status string `json:"status"`
}

func (a *API) handleUsersCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createUser(w, r)
	case http.MethodGet:
		a.listUsers(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleUserResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/users/")
	if path == "" || strings.Contains(strings.TrimSuffix(path, "/status"), "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	if rawID, found := strings.CutSuffix(path, "/status"); found {
		id, err := strconv.ParseInt(rawID, 10, 64)
		if err != nil || id < 1 {
			writeError(w, r, http.StatusNotFound, "user not found")
			return
		}
		if r.Method != http.MethodPut {
			methodNotAllowed(w, r, http.MethodPut)
			return
		}
		a.setUserStatus(w, r, id)
		return
	}

	writeError(w, r, http.StatusNotFound, "resource not found")
}

func (a *API) createUser(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requireCapability(w, r, auth.CapManageUsers); !ok {
		return
	}

	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	user, err := a.auth.CreateUser(r.Context(), req.Username, req.Secret, auth.Role(strings.TrimSpace(req.Role)), req.Profile)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "users.create", map[string]any{
		"subject_id": user.ID,
		"username":   user.Username,
		"role":       user.Role,
	})

	w.Header().Set("Location", "/v1/users/"+strconv.FormatInt(user.ID, 10))
	writeJSON(w, http.StatusCreated, user)
}

func (a *API) listUsers(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requireCapability(w, r, auth.CapViewUsers); !ok {
		return
	}

	users, err := a.auth.ListUsers(r.Context())
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	if users == nil {
		users = []auth.UserRecord{}
	}
	writeJSON(w, http.StatusOK, listUsersResponse{
		Items: users,
		AsOf:  time.Now().UTC(),
	})
}

func (a *API) setUserStatus(w http.ResponseWriter, r *http.Request, id int64) {
	if _, ok := a.requireCapability(w, r, auth.CapSuspendUsers); !ok {
		return
	}

	var req setStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	var suspended bool
	switch strings.TrimSpace(req.Status) {
	case auth.UserStatusActive:
		suspended = false
	case auth.UserStatusSuspended:
		suspended = true
	default:
		writeError(w, r, http.StatusBadRequest, "status must be active or suspended")
		return
	}

	user, err := a.auth.SetSuspended(r.Context(), id, suspended)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "users.set_status", map[string]any{
		"subject_id": user.ID,
		"status":     user.Status,
	})

	writeJSON(w, http.StatusOK, user)
}
