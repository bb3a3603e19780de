// Package geocode resolves merchant names to coordinates through a cache
// backed chain of geocoding providers.
package geocode

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RequestTimeout bounds a single provider call.
const RequestTimeout = 10 * time.Second

// Result is a resolved coordinate.
type Result struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	DisplayName string  `json:"displayName"`
	Source      string  `json:"source"`
}

// Provider looks a place up in an external service. It returns (nil, nil)
// when the service answered but had no candidate, and an error for transport
// failures, non-2xx responses and undecodable bodies.
type Provider interface {
	Name() string
	Geocode(ctx context.Context, query string) (*Result, error)
}

// StatusError is returned when a provider answers with a non-2xx status.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Provider, e.Code, e.Body)
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: RequestTimeout}
}

// doGet performs a GET and returns the body of a 2xx response.
func doGet(ctx context.Context, client *http.Client, provider, url string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", provider, err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", provider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", provider, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := string(body)
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return nil, &StatusError{Provider: provider, Code: resp.StatusCode, Body: snippet}
	}
	return body, nil
}
