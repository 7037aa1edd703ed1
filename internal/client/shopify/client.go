package shopify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultAPIVersion = "2024-01"
	MaxPageSize       = 250
	accessTokenHeader = "X-Shopify-Access-Token"
)

var (
	ErrMissingCredentials = errors.New("shopify: shop domain and access token are required")
	// ErrDecode marks a response body that does not match the resource shape.
	ErrDecode = errors.New("shopify: malformed response")
)

type Credentials struct {
	ShopDomain  string
	AccessToken string
}

func (c Credentials) Validate() error {
	if strings.TrimSpace(c.ShopDomain) == "" || strings.TrimSpace(c.AccessToken) == "" {
		return ErrMissingCredentials
	}
	return nil
}

type APIError struct {
	Status     int
	Body       string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("shopify API error (%d): %s", e.Status, e.Body)
}

// Retryable reports whether the same request may succeed later.
func (e *APIError) Retryable() bool {
	return e.Status == http.StatusTooManyRequests ||
		e.Status == http.StatusRequestTimeout ||
		e.Status >= http.StatusInternalServerError
}

// ItemError is one list entry that could not be decoded.
type ItemError struct {
	Index int
	ID    ID
	Err   error
}

// PartialError is returned alongside the entries that did decode when some
// entries of a page did not.
type PartialError struct {
	Resource string
	Items    []ItemError
}

func (e *PartialError) Error() string {
	if len(e.Items) == 1 {
		return fmt.Sprintf("decode %s: entry %d (id %q): %v", e.Resource, e.Items[0].Index, e.Items[0].ID, e.Items[0].Err)
	}
	return fmt.Sprintf("decode %s: %d entries skipped", e.Resource, len(e.Items))
}

func (e *PartialError) Unwrap() error { return ErrDecode }

type Options struct {
	// BaseURL replaces https://{shop} when set.
	BaseURL    string
	APIVersion string
	// RatePerShop and Burst size the per-shop token bucket. Zero disables it.
	RatePerShop float64
	Burst       int
}

type ListParams struct {
	Limit        int
	SinceID      string
	UpdatedAtMin *time.Time
}

type Client struct {
	baseURL    string
	apiVersion string
	httpClient *http.Client

	ratePerShop float64
	burst       int
	mu          sync.Mutex
	limiters    map[string]*rate.Limiter
}

func NewClient(httpClient *http.Client, opts Options) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	version := strings.TrimSpace(opts.APIVersion)
	if version == "" {
		version = DefaultAPIVersion
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Client{
		baseURL:     strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"),
		apiVersion:  version,
		httpClient:  httpClient,
		ratePerShop: opts.RatePerShop,
		burst:       burst,
		limiters:    map[string]*rate.Limiter{},
	}
}

// ListCustomers returns one page. Malformed entries are left out and reported
// through a *PartialError returned together with the rest of the page.
func (c *Client) ListCustomers(ctx context.Context, creds Credentials, params ListParams) ([]Customer, error) {
	body, err := c.list(ctx, creds, "customers", params, nil)
	if err != nil {
		return nil, err
	}
	return decodeList[Customer](body, "customers")
}

func (c *Client) ListOrders(ctx context.Context, creds Credentials, params ListParams) ([]Order, error) {
	extra := url.Values{}
	extra.Set("status", "any")
	body, err := c.list(ctx, creds, "orders", params, extra)
	if err != nil {
		return nil, err
	}
	return decodeList[Order](body, "orders")
}

func (c *Client) ListProducts(ctx context.Context, creds Credentials, params ListParams) ([]Product, error) {
	body, err := c.list(ctx, creds, "products", params, nil)
	if err != nil {
		return nil, err
	}
	return decodeList[Product](body, "products")
}

func (c *Client) list(ctx context.Context, creds Credentials, resource string, params ListParams, extra url.Values) ([]byte, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	query := url.Values{}
	for k, v := range extra {
		query[k] = v
	}
	query.Set("limit", strconv.Itoa(normalizeLimit(params.Limit)))
	if params.SinceID != "" {
		query.Set("since_id", params.SinceID)
	}
	if params.UpdatedAtMin != nil && !params.UpdatedAtMin.IsZero() {
		query.Set("updated_at_min", params.UpdatedAtMin.UTC().Format(time.RFC3339))
	}
	path := fmt.Sprintf("/admin/api/%s/%s.json", c.apiVersion, resource)
	return c.doRequest(ctx, creds, path, query)
}

func (c *Client) doRequest(ctx context.Context, creds Credentials, path string, query url.Values) ([]byte, error) {
	if err := c.wait(ctx, creds.ShopDomain); err != nil {
		return nil, err
	}
	fullURL := c.hostFor(creds.ShopDomain) + path
	if len(query) > 0 {
		fullURL = fullURL + "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(accessTokenHeader, creds.AccessToken)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{
			Status:     resp.StatusCode,
			Body:       truncate(string(body), 512),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}
	return body, nil
}

func (c *Client) hostFor(shop string) string {
	if c.baseURL != "" {
		return c.baseURL
	}
	return "https://" + strings.TrimSpace(shop)
}

func (c *Client) wait(ctx context.Context, shop string) error {
	if c.ratePerShop <= 0 {
		return nil
	}
	c.mu.Lock()
	lim, ok := c.limiters[shop]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(c.ratePerShop), c.burst)
		c.limiters[shop] = lim
	}
	c.mu.Unlock()
	return lim.Wait(ctx)
}

type rawSetter[T any] interface {
	*T
	setRaw(json.RawMessage)
}

func decodeList[T any, PT rawSetter[T]](body []byte, key string) ([]T, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode %s: %w: %w", key, ErrDecode, err)
	}
	rawList, ok := envelope[key]
	if !ok {
		return nil, fmt.Errorf("decode %s: %w: missing %q in response", key, ErrDecode, key)
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(rawList, &raws); err != nil {
		return nil, fmt.Errorf("decode %s: %w: %w", key, ErrDecode, err)
	}
	out := make([]T, 0, len(raws))
	var partial *PartialError
	for i, raw := range raws {
		var item T
		if err := json.Unmarshal(raw, &item); err != nil {
			if partial == nil {
				partial = &PartialError{Resource: key}
			}
			var head struct {
				ID ID `json:"id"`
			}
			_ = json.Unmarshal(raw, &head)
			partial.Items = append(partial.Items, ItemError{Index: i, ID: head.ID, Err: err})
			continue
		}
		PT(&item).setRaw(raw)
		out = append(out, item)
	}
	if partial != nil {
		return out, partial
	}
	return out, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > MaxPageSize {
		return MaxPageSize
	}
	return limit
}

func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	secs, err := strconv.ParseFloat(value, 64)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
