package metadata

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

	"github.com/google/uuid"

	"github.com/Teck-Lab/teck-cloud-saas/platform/go/dbrouting"
)

// ErrUnavailable wraps every transport, status and decoding failure from the
// customer API. A non-2xx status or garbled body means "service unavailable",
// never "tenant has no database".
var ErrUnavailable = errors.New("customer api unavailable")

// Client is the raw HTTP client for the customer API. It performs no caching;
// Store layers that on top.
type Client struct {
	baseURL string
	http    *http.Client
}

// ClientConfig configures a Client.
type ClientConfig struct {
	// BaseURL is the customer API root, e.g. https://customers.internal/api/v1.
	BaseURL string
	// Timeout bounds each request; default 10s. Ignored when HTTPClient is set.
	Timeout time.Duration
	// HTTPClient overrides the constructed client (tests, custom transports).
	HTTPClient *http.Client
}

// NewClient validates the base URL and builds a Client.
func NewClient(cfg ClientConfig) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("customer api base url is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("parse customer api base url: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{baseURL: base, http: httpClient}, nil
}

// ListTenants fetches one page of tenants, optionally filtered by strategy.
// StrategyNone means unfiltered.
func (c *Client) ListTenants(ctx context.Context, strategy dbrouting.Strategy, size, page int) (Page, error) {
	query := url.Values{}
	query.Set("size", strconv.Itoa(size))
	query.Set("page", strconv.Itoa(page))
	if strategy != dbrouting.StrategyNone {
		query.Set("strategy", string(strategy))
	}

	var result Page
	if err := c.getJSON(ctx, c.baseURL+"/tenants?"+query.Encode(), &result); err != nil {
		return Page{}, err
	}
	return result, nil
}

// GetTenant fetches one tenant record by id, identifier or name.
func (c *Client) GetTenant(ctx context.Context, key string) (TenantDetails, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return TenantDetails{}, fmt.Errorf("tenant key is required")
	}

	var result TenantDetails
	if err := c.getJSON(ctx, c.baseURL+"/tenants/"+url.PathEscape(key), &result); err != nil {
		return TenantDetails{}, err
	}
	return result, nil
}

// GetDatabaseInfo fetches the database placement record for one tenant.
func (c *Client) GetDatabaseInfo(ctx context.Context, tenantID uuid.UUID) (DatabaseInfo, error) {
	var result DatabaseInfo
	if err := c.getJSON(ctx, fmt.Sprintf("%s/tenants/%s/database-info", c.baseURL, tenantID), &result); err != nil {
		return DatabaseInfo{}, err
	}
	return result, nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("%w: build request: %w", ErrUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close() // nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: unexpected status %d from %s", ErrUnavailable, resp.StatusCode, rawURL)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %w", ErrUnavailable, err)
	}
	return nil
}
