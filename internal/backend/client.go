// Package backend binds the e-store REST API. All storefront traffic, session
// and otherwise, funnels through the one request path here so that auth
// headers, content negotiation, error mapping, and redacted logging behave
// identically everywhere.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httpclient"
	"github.com/utafrali/storefront/pkg/logger"
)

const apiVersion = "v1"

// Doer abstracts the underlying HTTP client so the breaker-wrapped client and
// the plain retrying client are interchangeable.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Client is the e-store API binding.
type Client struct {
	base   string
	http   Doer
	logger *slog.Logger
}

// New creates an API client against the given base URL (scheme and host,
// without the version prefix).
func New(baseURL string, httpClient Doer, l *slog.Logger) *Client {
	return &Client{
		base:   strings.TrimRight(baseURL, "/"),
		http:   httpClient,
		logger: l,
	}
}

// call describes one request to the upstream API.
type call struct {
	method string
	path   string
	query  url.Values
	body   any
	// token, when non-empty, is attached as an Authorization bearer header.
	token string
}

// do executes a call and decodes the response into out (which may be nil, or
// a *string for text bodies). Non-2xx statuses and transport failures return
// taxonomy errors; a 204 yields no body.
func (c *Client) do(ctx context.Context, req call, out any) error {
	endpoint := c.base + "/" + apiVersion + "/" + strings.TrimLeft(req.path, "/")
	if len(req.query) > 0 {
		endpoint += "?" + req.query.Encode()
	}

	var payload []byte
	var body io.Reader = http.NoBody
	if req.body != nil {
		var err error
		payload, err = json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("encode %s %s body: %w", req.method, req.path, err)
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, endpoint, body)
	if err != nil {
		return fmt.Errorf("create %s %s request: %w", req.method, req.path, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.token)
	}

	l := logger.WithContext(ctx, c.logger)
	l.DebugContext(ctx, "api request",
		slog.String("method", req.method),
		slog.String("path", req.path),
		slog.Any("body", logger.RedactJSON(payload)),
	)

	resp, err := c.http.Do(ctx, httpReq)
	if err != nil {
		mapped := httpclient.MapTransportError(err)
		l.WarnContext(ctx, "api request failed",
			slog.String("method", req.method),
			slog.String("path", req.path),
			slog.String("error", mapped.Error()),
		)
		return mapped
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return apperrors.Server(fmt.Sprintf("read %s %s response: %v", req.method, req.path, err))
	}

	l.DebugContext(ctx, "api response",
		slog.String("method", req.method),
		slog.String("path", req.path),
		slog.Int("status", resp.StatusCode),
		slog.Any("body", logger.RedactJSON(respBody)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return httpclient.MapBodyError(resp.StatusCode, respBody)
	}

	if resp.StatusCode == http.StatusNoContent || out == nil || len(respBody) == 0 {
		return nil
	}

	// Negotiate by content type: JSON decodes into out, anything else is
	// only meaningful to callers expecting text.
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "application/json") {
		if s, ok := out.(*string); ok {
			*s = string(respBody)
			return nil
		}
		return apperrors.Server(fmt.Sprintf("unexpected content type %q from %s %s", ct, req.method, req.path))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return apperrors.Server(fmt.Sprintf("decode %s %s response: %v", req.method, req.path, err))
	}
	return nil
}

// Register creates an account and returns the pending token triple.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.do(ctx, call{method: http.MethodPost, path: "register", body: req}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Verify confirms the email address using the pending access token and a
// numeric code, returning the permanent token triple.
func (c *Client) Verify(ctx context.Context, accessToken, code string) (*AuthResponse, error) {
	var resp AuthResponse
	req := call{
		method: http.MethodPost,
		path:   "verify",
		query:  url.Values{"code": []string{code}},
		token:  accessToken,
	}
	if err := c.do(ctx, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ResendVerification re-sends the verification code. Invoking the verify
// endpoint without a code is the resend contract; the call is idempotent.
func (c *Client) ResendVerification(ctx context.Context, accessToken string) error {
	return c.do(ctx, call{method: http.MethodPost, path: "verify", token: accessToken}, nil)
}

// Login exchanges identity (username or email) and password for a token triple.
func (c *Client) Login(ctx context.Context, identity, password string) (*AuthResponse, error) {
	var resp AuthResponse
	req := call{
		method: http.MethodPost,
		path:   "login",
		body:   LoginRequest{Identity: identity, Password: password},
	}
	if err := c.do(ctx, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Logout invalidates the server-side session. Best effort by contract.
func (c *Client) Logout(ctx context.Context, accessToken string) error {
	return c.do(ctx, call{method: http.MethodPost, path: "logout", token: accessToken}, nil)
}

// Refresh exchanges a refresh token for a new triple. Both the bare-triple
// and enveloped response shapes are accepted.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenTriple, error) {
	var resp struct {
		Tokens *TokenTriple `json:"tokens"`
		TokenTriple
	}
	req := call{
		method: http.MethodPost,
		path:   "refresh",
		body:   map[string]string{"refreshToken": refreshToken},
	}
	if err := c.do(ctx, req, &resp); err != nil {
		return nil, err
	}
	if resp.Tokens != nil {
		return resp.Tokens, nil
	}
	return &resp.TokenTriple, nil
}

// Profile fetches the authenticated user's profile.
func (c *Client) Profile(ctx context.Context, accessToken string) (*Profile, error) {
	var resp Profile
	if err := c.do(ctx, call{method: http.MethodGet, path: "profile", token: accessToken}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListProducts fetches the product catalog.
func (c *Client) ListProducts(ctx context.Context) ([]Product, error) {
	var resp []Product
	if err := c.do(ctx, call{method: http.MethodGet, path: "products"}, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// GetProduct fetches a single product by ID.
func (c *Client) GetProduct(ctx context.Context, id string) (*Product, error) {
	var resp Product
	if err := c.do(ctx, call{method: http.MethodGet, path: "product/" + url.PathEscape(id)}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateProduct adds a product to the catalog. Requires product-management
// permission upstream; the gateway's guard is advisory only.
func (c *Client) CreateProduct(ctx context.Context, accessToken string, product Product) (*Product, error) {
	var resp Product
	req := call{method: http.MethodPost, path: "product", body: product, token: accessToken}
	if err := c.do(ctx, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Categories fetches the category list.
func (c *Client) Categories(ctx context.Context) ([]Category, error) {
	var resp []Category
	if err := c.do(ctx, call{method: http.MethodGet, path: "category"}, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Countries fetches the supported delivery countries.
func (c *Client) Countries(ctx context.Context) ([]Country, error) {
	var resp []Country
	if err := c.do(ctx, call{method: http.MethodGet, path: "country"}, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// CreateOrder places an order.
func (c *Client) CreateOrder(ctx context.Context, accessToken string, req OrderRequest) (*Order, error) {
	var resp Order
	if err := c.do(ctx, call{method: http.MethodPost, path: "order/create", body: req, token: accessToken}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListOrders fetches the caller's orders.
func (c *Client) ListOrders(ctx context.Context, accessToken string) ([]Order, error) {
	var resp []Order
	if err := c.do(ctx, call{method: http.MethodGet, path: "order", token: accessToken}, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Checkout initiates payment and returns the hosted payment page URL.
func (c *Client) Checkout(ctx context.Context, accessToken string, req CheckoutRequest) (*CheckoutResponse, error) {
	var resp CheckoutResponse
	if err := c.do(ctx, call{method: http.MethodPost, path: "payment/checkout", body: req, token: accessToken}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
