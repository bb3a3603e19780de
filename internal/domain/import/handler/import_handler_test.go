package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2gPigeon/jig-intern-public/internal/domain/import/repository"
	"github.com/2gPigeon/jig-intern-public/pkg/apperr"
	"github.com/2gPigeon/jig-intern-public/pkg/interceptors"
)

type fakeImportService struct {
	submitted []string
	body      string
	submitErr error
	jobs      map[string]repository.ImportJob
	getErr    error
}

func (f *fakeImportService) Submit(_ context.Context, ownerID, filename, _ string, r io.Reader) (*repository.ImportJob, error) {
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	f.body = string(data)
	f.submitted = append(f.submitted, filename)
	return &repository.ImportJob{JobID: "job-1", OwnerID: ownerID, Status: repository.JobStatusProcessing}, nil
}

func (f *fakeImportService) GetJob(_ context.Context, ownerID, jobID string) (*repository.ImportJob, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	job, ok := f.jobs[jobID]
	if !ok || job.OwnerID != ownerID {
		return nil, fmt.Errorf("job %s: %w", jobID, apperr.ErrNotFound)
	}
	return &job, nil
}

func newRouter(svc ImportService) http.Handler {
	r := chi.NewRouter()
	NewImportHandler(svc, slog.New(slog.DiscardHandler)).Routes(r)
	return r
}

func multipartBody(t *testing.T, field, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func withUser(r *http.Request, userID string) *http.Request {
	return r.WithContext(interceptors.WithUserID(r.Context(), userID))
}

func TestUpload_TooLarge(t *testing.T) {
	newLimited := func(svc ImportService) http.Handler {
		r := chi.NewRouter()
		NewImportHandler(svc, slog.New(slog.DiscardHandler)).WithMaxUploadBytes(512).Routes(r)
		return r
	}

	t.Run("declared length", func(t *testing.T) {
		svc := &fakeImportService{}
		body, ct := multipartBody(t, "file", "statement.csv", strings.Repeat("a", 2048))
		req := withUser(httptest.NewRequest(http.MethodPost, "/api/import", body), "u1")
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()

		newLimited(svc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		assert.Contains(t, rec.Body.String(), "file too large")
		assert.Empty(t, svc.submitted)
	})

	t.Run("streamed body", func(t *testing.T) {
		svc := &fakeImportService{}
		body, ct := multipartBody(t, "file", "statement.csv", strings.Repeat("a", 2048))
		req := withUser(httptest.NewRequest(http.MethodPost, "/api/import", io.NopCloser(body)), "u1")
		req.ContentLength = -1
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()

		newLimited(svc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		assert.Empty(t, svc.submitted)
	})

	t.Run("within limit", func(t *testing.T) {
		svc := &fakeImportService{}
		body, ct := multipartBody(t, "file", "s.csv", "x")
		req := withUser(httptest.NewRequest(http.MethodPost, "/api/import", body), "u1")
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()

		newLimited(svc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusAccepted, rec.Code)
	})
}

func TestUpload(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		svc := &fakeImportService{}
		body, ct := multipartBody(t, "file", "statement.csv", "取引内容,取引日,出金金額（円）,取引先\n")
		req := withUser(httptest.NewRequest(http.MethodPost, "/api/import", body), "u1")
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()

		newRouter(svc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusAccepted, rec.Code)
		var resp map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, true, resp["ok"])
		assert.Equal(t, "job-1", resp["jobId"])
		assert.Equal(t, []string{"statement.csv"}, svc.submitted)
		assert.Contains(t, svc.body, "取引内容")
	})

	t.Run("not multipart", func(t *testing.T) {
		req := withUser(httptest.NewRequest(http.MethodPost, "/api/import", bytes.NewBufferString(`{}`)), "u1")
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()

		newRouter(&fakeImportService{}).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing file field", func(t *testing.T) {
		body, ct := multipartBody(t, "other", "statement.csv", "x")
		req := withUser(httptest.NewRequest(http.MethodPost, "/api/import", body), "u1")
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()

		newRouter(&fakeImportService{}).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error":"file is required"}`, rec.Body.String())
	})

	t.Run("unauthenticated", func(t *testing.T) {
		svc := &fakeImportService{}
		body, ct := multipartBody(t, "file", "statement.csv", "x")
		req := httptest.NewRequest(http.MethodPost, "/api/import", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()

		newRouter(svc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Empty(t, svc.submitted)
	})

	t.Run("setup failure", func(t *testing.T) {
		svc := &fakeImportService{submitErr: errors.New("queue closed")}
		body, ct := multipartBody(t, "file", "statement.csv", "x")
		req := withUser(httptest.NewRequest(http.MethodPost, "/api/import", body), "u1")
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()

		newRouter(svc).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestStatus(t *testing.T) {
	svc := &fakeImportService{jobs: map[string]repository.ImportJob{
		"job-1": {JobID: "job-1", OwnerID: "u1", Status: repository.JobStatusDone, ImportedCount: 2},
	}}

	tests := []struct {
		name     string
		url      string
		user     string
		wantCode int
	}{
		{"found", "/api/import/status?jobId=job-1", "u1", http.StatusOK},
		{"missing job id", "/api/import/status", "u1", http.StatusBadRequest},
		{"unknown job", "/api/import/status?jobId=nope", "u1", http.StatusNotFound},
		{"other owner", "/api/import/status?jobId=job-1", "u2", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := withUser(httptest.NewRequest(http.MethodGet, tt.url, nil), tt.user)
			rec := httptest.NewRecorder()

			newRouter(svc).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}

	t.Run("body", func(t *testing.T) {
		req := withUser(httptest.NewRequest(http.MethodGet, "/api/import/status?jobId=job-1", nil), "u1")
		rec := httptest.NewRecorder()

		newRouter(svc).ServeHTTP(rec, req)

		var job repository.ImportJob
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
		assert.Equal(t, repository.JobStatusDone, job.Status)
		assert.Equal(t, 2, job.ImportedCount)
	})

	t.Run("store failure", func(t *testing.T) {
		failing := &fakeImportService{getErr: errors.New("boom")}
		req := withUser(httptest.NewRequest(http.MethodGet, "/api/import/status?jobId=job-1", nil), "u1")
		rec := httptest.NewRecorder()

		newRouter(failing).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
