// Package interceptors resolves the caller's user ID for HTTP handlers.
//
// A request is authenticated by either a Bearer JWT (HS256, subject = user ID)
// or a signed session cookie carrying "user_id". Handlers read the result with
// GetUserIDFromContext.
package interceptors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/sessions"
)

const (
	SessionName      = "pins_session"
	sessionUserIDKey = "user_id"
)

type contextKey string

const userIDKey contextKey = "user_id"

// WithUserID returns a context carrying userID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// GetUserIDFromContext returns the authenticated user ID, if any.
func GetUserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// Authenticator validates tokens and session cookies.
type Authenticator struct {
	jwtSecret []byte
	store     *sessions.CookieStore
	logger    *slog.Logger
}

// NewAuthenticator creates an authenticator. Both secrets are required.
func NewAuthenticator(jwtSecret, sessionSecret string, logger *slog.Logger) (*Authenticator, error) {
	if jwtSecret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if sessionSecret == "" {
		return nil, errors.New("session secret is required")
	}

	store := sessions.NewCookieStore([]byte(sessionSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   30 * 24 * 60 * 60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	return &Authenticator{
		jwtSecret: []byte(jwtSecret),
		store:     store,
		logger:    logger,
	}, nil
}

// IssueToken signs an access token for userID.
func (a *Authenticator) IssueToken(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken returns the subject of a valid token.
func (a *Authenticator) ValidateToken(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return a.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}
	if claims.Subject == "" {
		return "", errors.New("invalid token: missing subject")
	}
	return claims.Subject, nil
}

// SaveSession stores userID in the session cookie.
func (a *Authenticator) SaveSession(w http.ResponseWriter, r *http.Request, userID string) error {
	session, err := a.store.Get(r, SessionName)
	if err != nil && session == nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	session.Values[sessionUserIDKey] = userID
	if err := session.Save(r, w); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// ClearSession expires the session cookie.
func (a *Authenticator) ClearSession(w http.ResponseWriter, r *http.Request) error {
	session, err := a.store.Get(r, SessionName)
	if err != nil && session == nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	session.Options.MaxAge = -1
	return session.Save(r, w)
}

// Middleware attaches the user ID when the request carries valid credentials.
// Unauthenticated requests pass through; handlers decide whether to reject.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userID, ok := a.userFromRequest(r); ok {
			r = r.WithContext(WithUserID(r.Context(), userID))
		}
		next.ServeHTTP(w, r)
	})
}

func (a *Authenticator) userFromRequest(r *http.Request) (string, bool) {
	if authz := r.Header.Get("Authorization"); authz != "" {
		token, found := strings.CutPrefix(authz, "Bearer ")
		if !found {
			return "", false
		}
		userID, err := a.ValidateToken(strings.TrimSpace(token))
		if err != nil {
			a.logger.Debug("rejected bearer token", slog.Any("error", err))
			return "", false
		}
		return userID, true
	}

	session, err := a.store.Get(r, SessionName)
	if err != nil {
		return "", false
	}
	userID, ok := session.Values[sessionUserIDKey].(string)
	return userID, ok && userID != ""
}
