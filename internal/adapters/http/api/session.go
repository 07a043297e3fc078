package api

import (
	"context"
	"net/http"
	"strings"

	service "github.com/okian/fetalhealth/internal/app"
	"github.com/okian/fetalhealth/pkg/logger"
)

// SessionDependencies defines the interface for login and logout.
type SessionDependencies interface {
	Login(ctx context.Context, user, password string) (*service.Session, error)
	Logout(ctx context.Context, sessionID string) error
}

// SessionHandler handles login and logout requests.
type SessionHandler struct {
	deps   SessionDependencies
	logger logger.Logger
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(deps SessionDependencies, l logger.Logger) *SessionHandler {
	return &SessionHandler{deps: deps, logger: l}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	SessionID string `json:"session_id"`
	User      string `json:"user"`
	Rows      int    `json:"rows"`
}

// HandleLogin handles POST /login requests.
func (h *SessionHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	const op = "api.login"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(r.Context(), h.logger, w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		writeError(r.Context(), h.logger, w, NewKind(op, ErrBadRequest))
		return
	}
	sess, err := h.deps.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(r.Context(), h.logger, w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{SessionID: sess.ID, User: sess.User, Rows: sess.Dataset().Len()})
}

// HandleLogout handles POST /logout requests.
func (h *SessionHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	const op = "api.logout"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	id, err := sessionID(r)
	if err != nil {
		writeError(r.Context(), h.logger, w, WrapKind(op, ErrUnauthorized, err))
		return
	}
	if err := h.deps.Logout(r.Context(), id); err != nil {
		writeError(r.Context(), h.logger, w, Wrap(op, err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
