// Package rest is the client-side consumer of the notification store's
// REST surface. The client session uses it for reconciliation fetches and
// for the authoritative mutations; the push channel only ever tells other
// connections that these calls happened.
package rest

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/bellhop-dev/bellhop/internal/apperr"
	"github.com/bellhop-dev/bellhop/internal/storage"
	go_json "github.com/goccy/go-json"
)

// Fetcher is the slice of the client used by the reconciliation policy.
// The session depends on this interface so tests can fake the store.
type Fetcher interface {
	List(ctx context.Context, opts storage.ListOptions) (storage.Page, error)
}

var _ Fetcher = (*Client)(nil)

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) List(ctx context.Context, opts storage.ListOptions) (storage.Page, error) {
	u, err := url.Parse(c.baseURL + "/api/notifications")
	if err != nil {
		return storage.Page{}, fmt.Errorf("parsing URL: %w", err)
	}

	q := u.Query()
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		q.Set("offset", strconv.Itoa(opts.Offset))
	}
	if opts.UnreadOnly {
		q.Set("unreadOnly", "true")
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return storage.Page{}, fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return storage.Page{}, fmt.Errorf("executing request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := checkStatus(resp, http.StatusOK); err != nil {
		return storage.Page{}, err
	}

	var page storage.Page
	if err := go_json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return storage.Page{}, fmt.Errorf("decoding response: %w", err)
	}
	return page, nil
}

// CreateRequest mirrors the create endpoint's body. UserID targets
// another user; empty means the caller notifies themselves.
type CreateRequest struct {
	UserID      string             `json:"userId,omitempty"`
	Title       string             `json:"title"`
	Message     string             `json:"message"`
	RedirectURL string             `json:"redirectUrl,omitempty"`
	Metadata    go_json.RawMessage `json:"metadata,omitempty"`
}

func (c *Client) Create(ctx context.Context, cr CreateRequest) (storage.Notification, error) {
	body, err := go_json.Marshal(cr)
	if err != nil {
		return storage.Notification{}, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/notifications", bytes.NewReader(body))
	if err != nil {
		return storage.Notification{}, fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return storage.Notification{}, fmt.Errorf("executing request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := checkStatus(resp, http.StatusCreated); err != nil {
		return storage.Notification{}, err
	}

	var created storage.Notification
	if err := go_json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return storage.Notification{}, fmt.Errorf("decoding response: %w", err)
	}
	return created, nil
}

func (c *Client) MarkRead(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/api/notifications/"+url.PathEscape(id)+"/read")
}

func (c *Client) MarkAllRead(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/notifications/read-all")
}

func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/notifications/"+url.PathEscape(id))
}

func (c *Client) do(ctx context.Context, method, path string) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	return checkStatus(resp, http.StatusNoContent)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
}

func checkStatus(resp *http.Response, want int) error {
	if resp.StatusCode == want {
		return nil
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return apperr.AuthFailed("token rejected by server")
	case http.StatusNotFound:
		return apperr.NotFound(apperr.CodeNotFound, "notification not found")
	default:
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
}
