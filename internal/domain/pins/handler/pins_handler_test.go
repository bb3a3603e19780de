package handler

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2gPigeon/jig-intern-public/internal/domain/import/repository"
	"github.com/2gPigeon/jig-intern-public/internal/domain/pins"
	"github.com/2gPigeon/jig-intern-public/pkg/interceptors"
	"github.com/2gPigeon/jig-intern-public/pkg/kv"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	store, err := kv.OpenBolt(filepath.Join(t.TempDir(), "pins.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	logger := slog.New(slog.DiscardHandler)
	svc := pins.NewService(repository.NewKVImportRepository(store), time.UTC, logger)
	r := chi.NewRouter()
	NewPinsHandler(svc, logger).Routes(r)
	return r
}

func request(router http.Handler, method, url, body, userID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, url, bytes.NewBufferString(body))
	if userID != "" {
		req = req.WithContext(interceptors.WithUserID(req.Context(), userID))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestSubmitAndList(t *testing.T) {
	router := newTestRouter(t)

	rec := request(router, http.MethodPost, "/api/pins", `{"data":1200,"latitude":35.68,"longitude":139.76}`, "u1")
	require.Equal(t, http.StatusCreated, rec.Code)
	var pin repository.PinRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pin))
	assert.Equal(t, 1200.0, pin.Data)

	rec = request(router, http.MethodGet, "/api/pins?month="+pin.TimeBucket, "", "u1")
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []repository.PinRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Len(t, listed, 1)

	rec = request(router, http.MethodGet, "/api/pins?month="+pin.TimeBucket, "", "u2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestSubmitValidation(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		name     string
		body     string
		user     string
		wantCode int
	}{
		{"unauthenticated", `{"data":1,"latitude":1,"longitude":1}`, "", http.StatusUnauthorized},
		{"not json", `data=1`, "u1", http.StatusBadRequest},
		{"missing latitude", `{"data":1,"longitude":1}`, "u1", http.StatusBadRequest},
		{"wrong type", `{"data":"1","latitude":1,"longitude":1}`, "u1", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := request(router, http.MethodPost, "/api/pins", tt.body, tt.user)
			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}

func TestListBadMonth(t *testing.T) {
	rec := request(newTestRouter(t), http.MethodGet, "/api/pins?month=2024-13", "", "u1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
