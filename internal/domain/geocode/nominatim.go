package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const (
	// NominatimBaseURL is the public OpenStreetMap Nominatim instance.
	NominatimBaseURL = "https://nominatim.openstreetmap.org"

	defaultUserAgent = "jig-pins/1.0"
)

// NominatimProvider queries OpenStreetMap Nominatim.
type NominatimProvider struct {
	baseURL   string
	userAgent string
	country   string
	client    *http.Client
}

// NewNominatimProvider creates a provider scoped to country (ISO 3166-1 alpha-2).
func NewNominatimProvider(baseURL, userAgent, country string) *NominatimProvider {
	if baseURL == "" {
		baseURL = NominatimBaseURL
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &NominatimProvider{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		country:   strings.ToLower(country),
		client:    newHTTPClient(),
	}
}

func (p *NominatimProvider) Name() string { return "nominatim" }

type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

func (p *NominatimProvider) Geocode(ctx context.Context, query string) (*Result, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "jsonv2")
	params.Set("limit", "1")
	if p.country != "" {
		params.Set("countrycodes", p.country)
	}

	// Nominatim's usage policy requires an identifying User-Agent.
	body, err := doGet(ctx, p.client, p.Name(), p.baseURL+"/search?"+params.Encode(), map[string]string{
		"User-Agent": p.userAgent,
	})
	if err != nil {
		return nil, err
	}

	var places []nominatimPlace
	if err := json.Unmarshal(body, &places); err != nil {
		return nil, fmt.Errorf("failed to parse nominatim response: %w", err)
	}
	if len(places) == 0 {
		return nil, nil
	}

	lat, err := strconv.ParseFloat(places[0].Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse nominatim latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(places[0].Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse nominatim longitude: %w", err)
	}

	return &Result{
		Latitude:    lat,
		Longitude:   lon,
		DisplayName: places[0].DisplayName,
		Source:      p.Name(),
	}, nil
}
