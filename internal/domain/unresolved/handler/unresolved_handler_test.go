package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2gPigeon/jig-intern-public/internal/domain/geocode"
	"github.com/2gPigeon/jig-intern-public/internal/domain/import/repository"
	"github.com/2gPigeon/jig-intern-public/pkg/apperr"
	"github.com/2gPigeon/jig-intern-public/pkg/interceptors"
)

type resolveCall struct {
	owner, id string
	lat, lon  float64
}

type fakeService struct {
	items    map[string]repository.UnresolvedItem
	resolved []resolveCall
	listErr  error
}

func (f *fakeService) List(_ context.Context, ownerID string) ([]repository.UnresolvedItem, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []repository.UnresolvedItem
	for _, item := range f.items {
		if item.OwnerID == ownerID {
			out = append(out, item)
		}
	}
	return out, nil
}

func (f *fakeService) Resolve(_ context.Context, ownerID, id string, lat, lon float64) error {
	item, ok := f.items[id]
	if !ok || item.OwnerID != ownerID {
		return fmt.Errorf("unresolved %s: %w", id, apperr.ErrNotFound)
	}
	delete(f.items, id)
	f.resolved = append(f.resolved, resolveCall{ownerID, id, lat, lon})
	return nil
}

func (f *fakeService) Suggestions(_ context.Context, ownerID, id string, limit int) ([]geocode.Suggestion, error) {
	item, ok := f.items[id]
	if !ok || item.OwnerID != ownerID {
		return nil, fmt.Errorf("unresolved %s: %w", id, apperr.ErrNotFound)
	}
	return []geocode.Suggestion{{PlaceKey: item.Place, Latitude: 1, Longitude: 2}}, nil
}

func newTestRouter(t *testing.T, svc Service) http.Handler {
	t.Helper()
	h, err := NewUnresolvedHandler(svc, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	r := chi.NewRouter()
	h.Routes(r)
	return r
}

func do(t *testing.T, router http.Handler, method, url, body, userID string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, url, bytes.NewBufferString(body))
	if userID != "" {
		req = req.WithContext(interceptors.WithUserID(req.Context(), userID))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func seeded() *fakeService {
	return &fakeService{items: map[string]repository.UnresolvedItem{
		"item-1": {ID: "item-1", OwnerID: "u1", Place: "謎の店", Amount: 1200},
	}}
}

func TestList(t *testing.T) {
	router := newTestRouter(t, seeded())

	rec := do(t, router, http.MethodGet, "/api/unresolved", "", "u1")
	require.Equal(t, http.StatusOK, rec.Code)
	var items []repository.UnresolvedItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	require.Len(t, items, 1)
	assert.Equal(t, "謎の店", items[0].Place)

	rec = do(t, router, http.MethodGet, "/api/unresolved", "", "u2")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = do(t, router, http.MethodGet, "/api/unresolved", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, newTestRouter(t, &fakeService{listErr: errors.New("boom")}), http.MethodGet, "/api/unresolved", "", "u1")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{"ok", `{"id":"item-1","latitude":35.0,"longitude":139.0}`, http.StatusOK},
		{"unknown id", `{"id":"nope","latitude":35.0,"longitude":139.0}`, http.StatusNotFound},
		{"latitude as string", `{"id":"item-1","latitude":"35","longitude":139.0}`, http.StatusBadRequest},
		{"missing longitude", `{"id":"item-1","latitude":35.0}`, http.StatusBadRequest},
		{"empty id", `{"id":"","latitude":35.0,"longitude":139.0}`, http.StatusBadRequest},
		{"out of range", `{"id":"item-1","latitude":135.0,"longitude":139.0}`, http.StatusBadRequest},
		{"not json", `id=item-1`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := seeded()
			rec := do(t, newTestRouter(t, svc), http.MethodPost, "/api/unresolved/resolve", tt.body, "u1")
			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantCode != http.StatusOK {
				assert.Len(t, svc.items, 1)
			}
		})
	}
}

func TestResolve_SecondCallNotFound(t *testing.T) {
	svc := seeded()
	router := newTestRouter(t, svc)
	body := `{"id":"item-1","latitude":35.0,"longitude":139.0}`

	rec := do(t, router, http.MethodPost, "/api/unresolved/resolve", body, "u1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
	assert.Equal(t, []resolveCall{{"u1", "item-1", 35.0, 139.0}}, svc.resolved)

	rec = do(t, router, http.MethodPost, "/api/unresolved/resolve", body, "u1")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSuggestionsEndpoint(t *testing.T) {
	router := newTestRouter(t, seeded())

	rec := do(t, router, http.MethodGet, "/api/unresolved/item-1/suggestions?limit=3", "", "u1")
	require.Equal(t, http.StatusOK, rec.Code)
	var got []geocode.Suggestion
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)

	rec = do(t, router, http.MethodGet, "/api/unresolved/missing/suggestions", "", "u1")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/unresolved/item-1/suggestions?limit=x", "", "u1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
