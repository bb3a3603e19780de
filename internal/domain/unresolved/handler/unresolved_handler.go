package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/2gPigeon/jig-intern-public/internal/domain/geocode"
	"github.com/2gPigeon/jig-intern-public/internal/domain/import/repository"
	"github.com/2gPigeon/jig-intern-public/pkg/httputil"
	"github.com/2gPigeon/jig-intern-public/pkg/interceptors"
)

const maxBodyBytes = 64 << 10

const resolveSchema = `{
	"type": "object",
	"required": ["id", "latitude", "longitude"],
	"properties": {
		"id": {"type": "string", "minLength": 1},
		"latitude": {"type": "number", "minimum": -90, "maximum": 90},
		"longitude": {"type": "number", "minimum": -180, "maximum": 180}
	}
}`

// Service is the reconciliation surface used over HTTP.
type Service interface {
	List(ctx context.Context, ownerID string) ([]repository.UnresolvedItem, error)
	Resolve(ctx context.Context, ownerID, id string, lat, lon float64) error
	Suggestions(ctx context.Context, ownerID, id string, limit int) ([]geocode.Suggestion, error)
}

type UnresolvedHandler struct {
	svc    Service
	schema *jsonschema.Schema
	logger *slog.Logger
}

func NewUnresolvedHandler(svc Service, logger *slog.Logger) (*UnresolvedHandler, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("resolve.json", strings.NewReader(resolveSchema)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("resolve.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &UnresolvedHandler{svc: svc, schema: schema, logger: logger}, nil
}

func (h *UnresolvedHandler) Routes(r chi.Router) {
	r.Get("/api/unresolved", h.List)
	r.Post("/api/unresolved/resolve", h.Resolve)
	r.Get("/api/unresolved/{id}/suggestions", h.Suggestions)
}

type resolveRequest struct {
	ID        string  `json:"id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// List handles GET /api/unresolved.
func (h *UnresolvedHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := interceptors.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	items, err := h.svc.List(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list unresolved items", slog.String("user_id", userID), slog.Any("error", err))
		httputil.WriteError(w, http.StatusInternalServerError, "failed to list unresolved items")
		return
	}
	if items == nil {
		items = []repository.UnresolvedItem{}
	}
	httputil.WriteJSON(w, http.StatusOK, items)
}

// Resolve handles POST /api/unresolved/resolve.
func (h *UnresolvedHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	userID, ok := interceptors.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	req, err := h.decodeResolve(body)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.svc.Resolve(r.Context(), userID, req.ID, req.Latitude, req.Longitude); err != nil {
		status := httputil.StatusFor(err)
		switch status {
		case http.StatusNotFound:
			httputil.WriteError(w, status, "unresolved item not found")
		case http.StatusBadRequest:
			httputil.WriteError(w, status, err.Error())
		default:
			h.logger.Error("failed to resolve item",
				slog.String("user_id", userID),
				slog.String("id", req.ID),
				slog.Any("error", err),
			)
			httputil.WriteError(w, status, "failed to resolve item")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *UnresolvedHandler) decodeResolve(body []byte) (*resolveRequest, error) {
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, errors.New("invalid JSON body")
	}
	if err := h.schema.Validate(raw); err != nil {
		return nil, errors.New("invalid body: id, latitude and longitude are required")
	}
	var req resolveRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, errors.New("invalid JSON body")
	}
	return &req, nil
}

// Suggestions handles GET /api/unresolved/{id}/suggestions?limit=.
func (h *UnresolvedHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	userID, ok := interceptors.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			httputil.WriteError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	id := chi.URLParam(r, "id")
	suggestions, err := h.svc.Suggestions(r.Context(), userID, id, limit)
	if err != nil {
		status := httputil.StatusFor(err)
		if status == http.StatusNotFound {
			httputil.WriteError(w, status, "unresolved item not found")
			return
		}
		h.logger.Error("failed to load suggestions", slog.String("id", id), slog.Any("error", err))
		httputil.WriteError(w, status, "failed to load suggestions")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, suggestions)
}
