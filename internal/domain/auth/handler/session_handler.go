// Package handler lets browser clients trade a bearer token for a session cookie.
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/2gPigeon/jig-intern-public/pkg/httputil"
	"github.com/2gPigeon/jig-intern-public/pkg/interceptors"
)

// SessionHandler opens and closes cookie sessions.
type SessionHandler struct {
	auth   *interceptors.Authenticator
	logger *slog.Logger
}

func NewSessionHandler(auth *interceptors.Authenticator, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{auth: auth, logger: logger}
}

func (h *SessionHandler) Routes(r chi.Router) {
	r.Post("/api/session", h.Create)
	r.Delete("/api/session", h.Delete)
}

// Create stores the authenticated caller in a session cookie.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := interceptors.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.auth.SaveSession(w, r, userID); err != nil {
		h.logger.Error("failed to save session", slog.String("user_id", userID), slog.Any("error", err))
		httputil.WriteError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "userId": userID})
}

// Delete expires the session cookie.
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.ClearSession(w, r); err != nil {
		h.logger.Error("failed to clear session", slog.Any("error", err))
		httputil.WriteError(w, http.StatusInternalServerError, "failed to clear session")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
