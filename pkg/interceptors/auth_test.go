package interceptors

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuthenticator(t *testing.T) *Authenticator {
	t.Helper()
	a, err := NewAuthenticator("jwt-secret", "session-secret-session-secret-32", slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	return a
}

func echoUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	w.Write([]byte(userID))
}

func TestNewAuthenticator_RequiresSecrets(t *testing.T) {
	_, err := NewAuthenticator("", "s", slog.New(slog.DiscardHandler))
	assert.Error(t, err)
	_, err = NewAuthenticator("j", "", slog.New(slog.DiscardHandler))
	assert.Error(t, err)
}

func TestTokenRoundTrip(t *testing.T) {
	a := newTestAuthenticator(t)

	token, err := a.IssueToken("user-1", time.Hour)
	require.NoError(t, err)

	userID, err := a.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
}

func TestValidateToken_Rejects(t *testing.T) {
	a := newTestAuthenticator(t)

	expired, err := a.IssueToken("user-1", -time.Minute)
	require.NoError(t, err)
	_, err = a.ValidateToken(expired)
	assert.Error(t, err)

	other, err := NewAuthenticator("different", "session-secret-session-secret-32", slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	foreign, err := other.IssueToken("user-1", time.Hour)
	require.NoError(t, err)
	_, err = a.ValidateToken(foreign)
	assert.Error(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "user-1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = a.ValidateToken(none)
	assert.Error(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{}).SignedString([]byte("jwt-secret"))
	require.NoError(t, err)
	_, err = a.ValidateToken(noSubject)
	assert.Error(t, err)
}

func TestMiddleware_Bearer(t *testing.T) {
	a := newTestAuthenticator(t)
	token, err := a.IssueToken("user-1", time.Hour)
	require.NoError(t, err)

	h := a.Middleware(http.HandlerFunc(echoUser))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddleware_Session(t *testing.T) {
	a := newTestAuthenticator(t)

	login := httptest.NewRecorder()
	require.NoError(t, a.SaveSession(login, httptest.NewRequest(http.MethodPost, "/", nil), "user-2"))
	cookies := login.Result().Cookies()
	require.NotEmpty(t, cookies)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	a.Middleware(http.HandlerFunc(echoUser)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-2", rec.Body.String())
}

func TestClearSession(t *testing.T) {
	a := newTestAuthenticator(t)
	rec := httptest.NewRecorder()

	require.NoError(t, a.ClearSession(rec, httptest.NewRequest(http.MethodPost, "/", nil)))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionName, cookies[0].Name)
	assert.True(t, cookies[0].MaxAge < 0)
}
