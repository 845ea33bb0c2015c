// Package geocode resolves US zip codes to geographic coordinates using
// the Nominatim search API.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/depotradar/depotradar/internal/client"
	"github.com/depotradar/depotradar/internal/geo"
)

const (
	// DefaultBaseURL is the base URL for the Nominatim API.
	DefaultBaseURL = "https://nominatim.openstreetmap.org"

	// defaultUserAgent identifies this service to Nominatim, which rejects
	// anonymous requests.
	defaultUserAgent = "depotradar/1.0"
)

// ErrNotFound indicates a zip code that did not resolve to any location.
var ErrNotFound = errors.New("location not found")

// Geocoder resolves a US zip code to a coordinate.
type Geocoder interface {
	Lookup(ctx context.Context, zip string) (geo.Coordinate, error)
}

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the Nominatim client.
type ClientConfig struct {
	// BaseURL is the API base URL (defaults to DefaultBaseURL).
	BaseURL string

	// HTTPClient is the HTTP client to use (must implement HTTPDoer).
	// If nil, a default resilient client will be created.
	HTTPClient HTTPDoer

	// UserAgent is sent with every request (defaults to defaultUserAgent).
	UserAgent string

	// Timeout for individual API requests (default: 10s).
	Timeout time.Duration
}

// Client is a Nominatim geocoding client.
type Client struct {
	baseURL    string
	httpClient HTTPDoer
	userAgent  string
}

// NewClient creates a new Nominatim client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		httpClient = client.New(client.Config{
			Name:            "nominatim",
			Timeout:         timeout,
			MaxRetries:      3,
			InitialInterval: 200 * time.Millisecond,
			MaxInterval:     5 * time.Second,
		})
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
		userAgent:  userAgent,
	}
}

type searchResult struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Lookup resolves a US zip code to a coordinate. Zips that resolve to no
// location return an error wrapping ErrNotFound.
func (c *Client) Lookup(ctx context.Context, zip string) (geo.Coordinate, error) {
	u := fmt.Sprintf("%s/search?postalcode=%s&country=USA&format=json", c.baseURL, url.QueryEscape(zip))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return geo.Coordinate{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return geo.Coordinate{}, fmt.Errorf("geocode %s: %w", zip, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return geo.Coordinate{}, fmt.Errorf("unexpected status %d from geocoding endpoint", resp.StatusCode)
	}

	var results []searchResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return geo.Coordinate{}, fmt.Errorf("decode geocoding response: %w", err)
	}

	if len(results) == 0 {
		return geo.Coordinate{}, fmt.Errorf("%w: %s", ErrNotFound, zip)
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return geo.Coordinate{}, fmt.Errorf("parse latitude %q: %w", results[0].Lat, err)
	}
	lng, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return geo.Coordinate{}, fmt.Errorf("parse longitude %q: %w", results[0].Lon, err)
	}

	return geo.Coordinate{Lat: lat, Lng: lng}, nil
}
