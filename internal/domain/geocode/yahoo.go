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

// YahooBaseURL is the Yahoo! Open Local Platform endpoint.
const YahooBaseURL = "https://map.yahooapis.jp"

// YahooProvider queries YOLP local search. It is Japan only.
type YahooProvider struct {
	appID   string
	baseURL string
	client  *http.Client
}

// NewYahooProvider creates a provider; an empty appID disables it.
func NewYahooProvider(appID, baseURL string) *YahooProvider {
	if baseURL == "" {
		baseURL = YahooBaseURL
	}
	return &YahooProvider{
		appID:   appID,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  newHTTPClient(),
	}
}

func (p *YahooProvider) Name() string { return "yahoo" }

// Enabled reports whether an app id is configured.
func (p *YahooProvider) Enabled() bool { return p.appID != "" }

type yahooResponse struct {
	ResultInfo struct {
		Count int `json:"Count"`
	} `json:"ResultInfo"`
	Feature []struct {
		Name     string `json:"Name"`
		Geometry struct {
			Coordinates string `json:"Coordinates"`
		} `json:"Geometry"`
	} `json:"Feature"`
}

func (p *YahooProvider) Geocode(ctx context.Context, query string) (*Result, error) {
	if !p.Enabled() {
		return nil, nil
	}

	params := url.Values{}
	params.Set("appid", p.appID)
	params.Set("query", query)
	params.Set("output", "json")
	params.Set("results", "1")

	body, err := doGet(ctx, p.client, p.Name(), p.baseURL+"/search/local/V1/localSearch?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var resp yahooResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse yahoo response: %w", err)
	}
	if len(resp.Feature) == 0 {
		return nil, nil
	}

	feature := resp.Feature[0]
	lon, lat, err := parseLonLat(feature.Geometry.Coordinates)
	if err != nil {
		return nil, fmt.Errorf("failed to parse yahoo coordinates: %w", err)
	}

	return &Result{
		Latitude:    lat,
		Longitude:   lon,
		DisplayName: feature.Name,
		Source:      p.Name(),
	}, nil
}

// parseLonLat reads YOLP's "lon,lat" coordinate string.
func parseLonLat(s string) (float64, float64, error) {
	lonStr, latStr, ok := strings.Cut(s, ",")
	if !ok {
		return 0, 0, fmt.Errorf("malformed coordinates %q", s)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if err != nil {
		return 0, 0, err
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return 0, 0, err
	}
	return lon, lat, nil
}
