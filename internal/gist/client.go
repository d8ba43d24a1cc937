// Package gist talks to the pastebin-like store used for the
// configuration-sync flavor: named content blobs grouped into
// containers, no field model, no secret references.
package gist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Sentinel errors for callers that branch on failure mode.
var (
	// ErrNotConfigured means the store address or token is missing.
	ErrNotConfigured = errors.New("gist store is not configured")

	// ErrNotFound means the container does not exist.
	ErrNotFound = errors.New("container not found")

	// ErrUnauthorized means the token was rejected.
	ErrUnauthorized = errors.New("gist store rejected the access token")
)

// Container is one named group of content blobs.
type Container struct {
	ID          string            `json:"id"`
	Description string            `json:"description"`
	Files       map[string]string `json:"-"`
}

// wireContainer is the store's JSON shape: blob content lives one level
// down under each file name.
type wireContainer struct {
	ID          string              `json:"id"`
	Description string              `json:"description"`
	Files       map[string]wireFile `json:"files"`
}

type wireFile struct {
	Content string `json:"content"`
}

// ClientConfig holds the settings needed to reach the store.
type ClientConfig struct {
	// Address is the base URL of the store's REST API.
	Address string

	// Token is the bearer access token.
	Token string

	// RequestTimeout bounds each HTTP request. Defaults to 30s.
	RequestTimeout time.Duration
}

// Client is a minimal REST client for the blob store.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a client. Returns ErrNotConfigured if the address
// or token is missing.
func NewClient(cfg ClientConfig) (*Client, error) {
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

	return &Client{
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

// Get fetches a container and its full content map in one round trip.
func (c *Client) Get(ctx context.Context, id string) (*Container, error) {
	var wire wireContainer
	path := "/gists/" + url.PathEscape(id)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &wire); err != nil {
		return nil, err
	}
	return fromWire(&wire), nil
}

// Create makes a new container holding files. Returns the container
// with its store-assigned id.
func (c *Client) Create(ctx context.Context, description string, files map[string]string) (*Container, error) {
	body := wireContainer{Description: description, Files: toWireFiles(files)}

	var wire wireContainer
	if err := c.doJSON(ctx, http.MethodPost, "/gists", body, &wire); err != nil {
		return nil, err
	}
	return fromWire(&wire), nil
}

// Upsert creates or replaces one named blob inside an existing
// container, leaving its other blobs untouched.
func (c *Client) Upsert(ctx context.Context, id, name, content string) error {
	body := wireContainer{
		Files: map[string]wireFile{name: {Content: content}},
	}
	path := "/gists/" + url.PathEscape(id)
	return c.doJSON(ctx, http.MethodPatch, path, body, nil)
}

func toWireFiles(files map[string]string) map[string]wireFile {
	out := make(map[string]wireFile, len(files))
	for name, content := range files {
		out[name] = wireFile{Content: content}
	}
	return out
}

func fromWire(w *wireContainer) *Container {
	out := &Container{
		ID:          w.ID,
		Description: w.Description,
		Files:       make(map[string]string, len(w.Files)),
	}
	for name, f := range w.Files {
		out.Files[name] = f.Content
	}
	return out
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
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

func statusError(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
	return fmt.Errorf("gist store returned %s: %s", resp.Status, bytes.TrimSpace(snippet))
}
