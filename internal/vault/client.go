package vault

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ClientConfig holds the settings needed to reach the remote store.
type ClientConfig struct {
	// Address is the base URL of the store's REST API, e.g.
	// "https://vault.devorb.dev".
	Address string

	// Token is the bearer access token.
	Token string

	// RequestTimeout bounds each HTTP request. Defaults to 30s.
	RequestTimeout time.Duration
}

// RESTClient implements API over the store's REST protocol.
type RESTClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewRESTClient creates a client for the remote store. Returns
// ErrNotConfigured if the address or token is missing.
func NewRESTClient(cfg ClientConfig) (*RESTClient, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("%w: missing address", ErrNotConfigured)
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("%w: missing access token", ErrNotConfigured)
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &RESTClient{
		baseURL: cfg.Address,
		token:   cfg.Token,
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
			Timeout: timeout,
		},
	}, nil
}

// ListVaults implements API.ListVaults.
func (c *RESTClient) ListVaults(ctx context.Context) ([]Vault, error) {
	var vaults []Vault
	if err := c.doJSON(ctx, http.MethodGet, "/v1/vaults", nil, &vaults); err != nil {
		return nil, err
	}
	return vaults, nil
}

// ListItems implements API.ListItems. The active filter and tag filter are
// applied server-side.
func (c *RESTClient) ListItems(ctx context.Context, vaultID string) ([]Item, error) {
	path := fmt.Sprintf("/v1/vaults/%s/items?tag=%s&state=active",
		url.PathEscape(vaultID), url.QueryEscape(SyncTag))

	var items []Item
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// GetItem implements API.GetItem.
func (c *RESTClient) GetItem(ctx context.Context, vaultID, itemID string) (*Item, error) {
	path := fmt.Sprintf("/v1/vaults/%s/items/%s",
		url.PathEscape(vaultID), url.PathEscape(itemID))

	var item Item
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// CreateItem implements API.CreateItem.
func (c *RESTClient) CreateItem(ctx context.Context, vaultID string, item *Item) (*Item, error) {
	path := fmt.Sprintf("/v1/vaults/%s/items", url.PathEscape(vaultID))

	var created Item
	if err := c.doJSON(ctx, http.MethodPost, path, item, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// PutItem implements API.PutItem.
func (c *RESTClient) PutItem(ctx context.Context, vaultID string, item *Item) (*Item, error) {
	if item.ID == "" {
		return nil, fmt.Errorf("put item: missing item id")
	}
	path := fmt.Sprintf("/v1/vaults/%s/items/%s",
		url.PathEscape(vaultID), url.PathEscape(item.ID))

	var updated Item
	if err := c.doJSON(ctx, http.MethodPut, path, item, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteItem implements API.DeleteItem.
func (c *RESTClient) DeleteItem(ctx context.Context, vaultID, itemID string) error {
	path := fmt.Sprintf("/v1/vaults/%s/items/%s",
		url.PathEscape(vaultID), url.PathEscape(itemID))
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

// ResolveRefs implements API.ResolveRefs. All references are resolved in a
// single round trip.
func (c *RESTClient) ResolveRefs(ctx context.Context, refs []string) (map[string]string, error) {
	if len(refs) == 0 {
		return map[string]string{}, nil
	}

	body := struct {
		Refs []string `json:"refs"`
	}{Refs: refs}

	var resolved map[string]string
	if err := c.doJSON(ctx, http.MethodPost, "/v1/resolve", body, &resolved); err != nil {
		return nil, err
	}
	return resolved, nil
}

// doJSON performs one request with the auth header set, decoding a JSON
// response into out when out is non-nil.
func (c *RESTClient) doJSON(ctx context.Context, method, path string, in, out any) error {
	var reqBody io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := statusError(resp); err != nil {
		return err
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// statusError maps a non-2xx response to the package error taxonomy.
func statusError(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return &RateLimitError{RetryAfter: retryAfter(resp)}
	case http.StatusNotFound:
		return ErrItemNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	}

	// Keep a slice of the body for diagnostics; transient classification
	// happens on the message downstream.
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
	return fmt.Errorf("remote store returned %s: %s", resp.Status, bytes.TrimSpace(snippet))
}

// retryAfter reads the Retry-After header, in seconds, if present.
func retryAfter(resp *http.Response) time.Duration {
	raw := resp.Header.Get("Retry-After")
	if raw == "" {
		return 0
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
