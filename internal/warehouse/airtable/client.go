// Package airtable provides a warehouse.Provider backed by the Airtable
// REST API.
package airtable

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/depotradar/depotradar/internal/catalog"
	"github.com/depotradar/depotradar/internal/client"
	"github.com/depotradar/depotradar/internal/warehouse"
)

const (
	// DefaultBaseURL is the base URL for the Airtable REST API.
	DefaultBaseURL = "https://api.airtable.com/v0"

	// ProviderName identifies this provider.
	ProviderName = "airtable"

	// Table names in the warehouse base.
	warehouseTable = "Warehouses"
	requestTable   = "Requests"
)

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// MetricsRecorder records the outcome of upstream API calls.
// middleware.ProviderMetrics satisfies it.
type MetricsRecorder interface {
	RecordRequest(operation string, duration time.Duration, err error)
}

// ClientConfig holds configuration for the Airtable client.
type ClientConfig struct {
	// Token is the API bearer token.
	Token string

	// BaseID identifies the base holding the warehouse tables.
	BaseID string

	// BaseURL is the API base URL (defaults to DefaultBaseURL).
	BaseURL string

	// HTTPClient is the HTTP client to use (must implement HTTPDoer).
	// If nil, a default resilient client will be created.
	HTTPClient HTTPDoer

	// Metrics records per-page request outcomes. Optional.
	Metrics MetricsRecorder

	// Timeout for individual API requests (default: 30s). Full table scans
	// take many paginated round trips.
	Timeout time.Duration
}

// Client is an Airtable API client implementing warehouse.Provider.
type Client struct {
	token      string
	baseID     string
	baseURL    string
	httpClient HTTPDoer
	metrics    MetricsRecorder
}

// NewClient creates a new Airtable client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = client.New(client.Config{
			Name:            ProviderName,
			Timeout:         timeout,
			MaxRetries:      3,
			InitialInterval: 200 * time.Millisecond,
			MaxInterval:     5 * time.Second,
		})
	}

	return &Client{
		token:      cfg.Token,
		baseID:     cfg.BaseID,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
		metrics:    cfg.Metrics,
	}
}

type recordsResponse struct {
	Records []warehouse.Record `json:"records"`
	Offset  string             `json:"offset"`
}

// FetchWarehouses retrieves all warehouse records across every page.
func (c *Client) FetchWarehouses(ctx context.Context) ([]warehouse.Record, error) {
	return c.fetchAll(ctx, warehouseTable)
}

// FetchRequestCounts retrieves per-warehouse request counts. Each request
// record links the warehouses it was placed against; every link counts.
func (c *Client) FetchRequestCounts(ctx context.Context) (map[string]int, error) {
	records, err := c.fetchAll(ctx, requestTable)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, rec := range records {
		linked, _ := rec.Fields["Warehouse"].([]any)
		for _, id := range linked {
			if s, ok := id.(string); ok {
				counts[s]++
			}
		}
	}
	return counts, nil
}

// FetchRequestCountsByLocation retrieves request counts keyed by
// "City,State". Records missing either field are skipped.
func (c *Client) FetchRequestCountsByLocation(ctx context.Context) (map[string]int, error) {
	records, err := c.fetchAll(ctx, requestTable)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, rec := range records {
		city, _ := rec.Fields["City"].(string)
		state, _ := rec.Fields["State"].(string)
		city = strings.TrimSpace(city)
		state = strings.TrimSpace(state)
		if city == "" || state == "" {
			continue
		}
		counts[catalog.Key(city, state)]++
	}
	return counts, nil
}

// FetchRequestTotals retrieves the total request count and the creation
// timestamps. Records with unparseable timestamps still count toward the
// total but contribute no timestamp.
func (c *Client) FetchRequestTotals(ctx context.Context) (warehouse.RequestTotals, error) {
	records, err := c.fetchAll(ctx, requestTable)
	if err != nil {
		return warehouse.RequestTotals{}, err
	}

	totals := warehouse.RequestTotals{
		Total:   len(records),
		Created: make([]time.Time, 0, len(records)),
	}
	for _, rec := range records {
		if rec.CreatedTime == "" {
			continue
		}
		created, err := time.Parse(time.RFC3339, rec.CreatedTime)
		if err != nil {
			continue
		}
		totals.Created = append(totals.Created, created)
	}
	return totals, nil
}

// fetchAll walks a table's offset pagination until exhausted.
func (c *Client) fetchAll(ctx context.Context, table string) ([]warehouse.Record, error) {
	var all []warehouse.Record
	offset := ""

	for {
		page, next, err := c.fetchPage(ctx, table, offset)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)

		if next == "" {
			break
		}
		offset = next
	}

	return all, nil
}

func (c *Client) fetchPage(ctx context.Context, table, offset string) (records []warehouse.Record, next string, err error) {
	if c.metrics != nil {
		start := time.Now()
		defer func() {
			c.metrics.RecordRequest(table, time.Since(start), err)
		}()
	}

	u := fmt.Sprintf("%s/%s/%s", c.baseURL, url.PathEscape(c.baseID), url.PathEscape(table))
	if offset != "" {
		u += "?offset=" + url.QueryEscape(offset)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch %s: %w", table, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("unexpected status %d from %s table", resp.StatusCode, table)
	}

	var result recordsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, "", fmt.Errorf("decode %s response: %w", table, err)
	}

	return result.Records, result.Offset, nil
}
