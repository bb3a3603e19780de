package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/2gPigeon/jig-intern-public/internal/domain/import/repository"
	"github.com/2gPigeon/jig-intern-public/pkg/httputil"
	"github.com/2gPigeon/jig-intern-public/pkg/interceptors"
)

type Service interface {
	Submit(ctx context.Context, ownerID string, amount, lat, lon float64) (*repository.PinRecord, error)
	List(ctx context.Context, ownerID, month string) ([]repository.PinRecord, error)
}

type PinsHandler struct {
	svc    Service
	logger *slog.Logger
}

func NewPinsHandler(svc Service, logger *slog.Logger) *PinsHandler {
	return &PinsHandler{svc: svc, logger: logger}
}

func (h *PinsHandler) Routes(r chi.Router) {
	r.Post("/api/pins", h.Submit)
	r.Get("/api/pins", h.List)
}

type submitRequest struct {
	Data      *float64 `json:"data"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// Submit handles POST /api/pins.
func (h *PinsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	userID, ok := interceptors.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req submitRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Data == nil || req.Latitude == nil || req.Longitude == nil {
		httputil.WriteError(w, http.StatusBadRequest, "data, latitude and longitude are required")
		return
	}

	pin, err := h.svc.Submit(r.Context(), userID, *req.Data, *req.Latitude, *req.Longitude)
	if err != nil {
		status := httputil.StatusFor(err)
		if status == http.StatusConflict {
			httputil.WriteError(w, status, "a pin already exists for this time")
			return
		}
		h.logger.Error("failed to submit pin", slog.String("user_id", userID), slog.Any("error", err))
		httputil.WriteError(w, status, "failed to submit pin")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, pin)
}

// List handles GET /api/pins?month=YYYY-MM.
func (h *PinsHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := interceptors.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	pins, err := h.svc.List(r.Context(), userID, r.URL.Query().Get("month"))
	if err != nil {
		status := httputil.StatusFor(err)
		if status == http.StatusBadRequest {
			httputil.WriteError(w, status, err.Error())
			return
		}
		h.logger.Error("failed to list pins", slog.String("user_id", userID), slog.Any("error", err))
		httputil.WriteError(w, status, "failed to list pins")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, pins)
}
