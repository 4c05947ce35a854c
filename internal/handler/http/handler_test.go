package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/backend"
	"github.com/utafrali/storefront/internal/credstore"
	"github.com/utafrali/storefront/internal/session"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/health"
)

// fakeStore implements both the session lifecycle and the storefront proxy
// slices of the e-store API.
type fakeStore struct {
	mu    sync.Mutex
	calls map[string]int

	authResp *backend.AuthResponse
	loginErr error

	products []backend.Product
	orders   []backend.Order
}

func newFakeStore() *fakeStore {
	return &fakeStore{calls: make(map[string]int)}
}

func (f *fakeStore) count(name string) {
	f.mu.Lock()
	f.calls[name]++
	f.mu.Unlock()
}

func (f *fakeStore) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeStore) Register(context.Context, backend.RegisterRequest) (*backend.AuthResponse, error) {
	f.count("register")
	return f.authResp, nil
}

func (f *fakeStore) Verify(context.Context, string, string) (*backend.AuthResponse, error) {
	f.count("verify")
	return f.authResp, nil
}

func (f *fakeStore) ResendVerification(context.Context, string) error {
	f.count("resend")
	return nil
}

func (f *fakeStore) Login(context.Context, string, string) (*backend.AuthResponse, error) {
	f.count("login")
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return f.authResp, nil
}

func (f *fakeStore) Logout(context.Context, string) error {
	f.count("logout")
	return nil
}

func (f *fakeStore) Refresh(context.Context, string) (*backend.TokenTriple, error) {
	f.count("refresh")
	return nil, apperrors.Authentication("refresh token revoked")
}

func (f *fakeStore) Profile(context.Context, string) (*backend.Profile, error) {
	f.count("profile")
	return &backend.Profile{Username: "alice", Email: "alice@example.com"}, nil
}

func (f *fakeStore) ListProducts(context.Context) ([]backend.Product, error) {
	f.count("listProducts")
	return f.products, nil
}

func (f *fakeStore) GetProduct(_ context.Context, id string) (*backend.Product, error) {
	f.count("getProduct")
	for _, p := range f.products {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, apperrors.NotFound("no such product")
}

func (f *fakeStore) CreateProduct(_ context.Context, _ string, p backend.Product) (*backend.Product, error) {
	f.count("createProduct")
	p.ID = "p-new"
	return &p, nil
}

func (f *fakeStore) Categories(context.Context) ([]backend.Category, error) {
	f.count("categories")
	return []backend.Category{{Slug: "lamps", Name: "Lamps"}}, nil
}

func (f *fakeStore) Countries(context.Context) ([]backend.Country, error) {
	f.count("countries")
	return []backend.Country{{Code: "NO", Name: "Norway"}}, nil
}

func (f *fakeStore) CreateOrder(_ context.Context, _ string, req backend.OrderRequest) (*backend.Order, error) {
	f.count("createOrder")
	return &backend.Order{ID: "o1", Status: "created", Orders: req.Orders}, nil
}

func (f *fakeStore) ListOrders(context.Context, string) ([]backend.Order, error) {
	f.count("listOrders")
	return f.orders, nil
}

func (f *fakeStore) Checkout(context.Context, string, backend.CheckoutRequest) (*backend.CheckoutResponse, error) {
	f.count("checkout")
	return &backend.CheckoutResponse{URL: "https://pay.example/session"}, nil
}

func signedIDToken(t *testing.T, groups []string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":            "user-1",
		"email":          "alice@example.com",
		"cognito:groups": groups,
		"exp":            time.Now().Add(time.Hour).Unix(),
	})
	signed, err := tok.SignedString([]byte("test"))
	require.NoError(t, err)
	return signed
}

func authResponse(t *testing.T, groups ...string) *backend.AuthResponse {
	return &backend.AuthResponse{
		Tokens: &backend.TokenTriple{
			AccessToken:  signedIDToken(t, nil),
			IDToken:      signedIDToken(t, groups),
			RefreshToken: "refresh",
		},
		Username: "alice",
		Email:    "alice@example.com",
	}
}

// client drives the router with cookie continuity across requests.
type client struct {
	t       *testing.T
	handler http.Handler
	cookie  *http.Cookie
}

func newTestClient(t *testing.T, fake *fakeStore) *client {
	t.Helper()
	l := slog.New(slog.NewTextHandler(io.Discard, nil))

	stores := make(map[string]credstore.Store)
	var mu sync.Mutex
	reg := session.NewRegistry(fake, func(id string) credstore.Store {
		mu.Lock()
		defer mu.Unlock()
		if s, ok := stores[id]; ok {
			return s
		}
		s := credstore.NewMemoryStore()
		stores[id] = s
		return s
	}, l)

	router := NewRouter(RouterConfig{
		ServiceName: "storefront",
		Environment: "development",
		Session:     SessionConfig{Secure: false, TTL: time.Hour},
	}, reg, fake, health.NewHandler(), l)

	return &client{t: t, handler: router}
}

func (c *client) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	c.t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}

	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)

	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == SessionCookieName {
			c.cookie = cookie
		}
	}
	return rec
}

func decodeData[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var body struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Data
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error.Code
}

func (c *client) login(fake *fakeStore, groups ...string) {
	c.t.Helper()
	fake.authResp = authResponse(c.t, groups...)
	rec := c.do(http.MethodPost, "/auth/login", `{"identity":"alice","password":"pw"}`, nil)
	require.Equal(c.t, http.StatusOK, rec.Code)
}

func TestSessionEndpoint_AnonymousByDefault(t *testing.T) {
	c := newTestClient(t, newFakeStore())

	rec := c.do(http.MethodGet, "/auth/session", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	s := decodeData[session.Session](t, rec)
	assert.Equal(t, session.StateAnonymous, s.State)
	require.NotNil(t, c.cookie, "first contact mints a session cookie")
	assert.True(t, c.cookie.HttpOnly)
}

func TestRegisterFlow(t *testing.T) {
	fake := newFakeStore()
	c := newTestClient(t, fake)

	rec := c.do(http.MethodPost, "/auth/register",
		`{"username":"alice","email":"bad","password":"weak","gender":"female"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, rec))
	assert.Zero(t, fake.callCount("register"), "invalid input never reaches the upstream")

	fake.authResp = authResponse(t)
	rec = c.do(http.MethodPost, "/auth/register",
		`{"username":"alice","email":"alice@example.com","password":"Str0ng!pass","gender":"female"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	s := decodeData[session.Session](t, rec)
	assert.Equal(t, session.StatePendingVerification, s.State)

	rec = c.do(http.MethodPost, "/auth/verify", `{"code":"123456"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	s = decodeData[session.Session](t, rec)
	assert.Equal(t, session.StateAuthenticated, s.State)
}

func TestResend_WithoutPendingRegistration(t *testing.T) {
	c := newTestClient(t, newFakeStore())

	rec := c.do(http.MethodPost, "/auth/resend", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "SESSION_EXPIRED", errorCode(t, rec))
}

func TestLoginAndLogout(t *testing.T) {
	fake := newFakeStore()
	c := newTestClient(t, fake)
	c.login(fake)

	rec := c.do(http.MethodGet, "/auth/session", "", nil)
	s := decodeData[session.Session](t, rec)
	assert.Equal(t, session.StateAuthenticated, s.State)
	assert.Equal(t, "alice", s.Username)

	rec = c.do(http.MethodPost, "/auth/logout", "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = c.do(http.MethodGet, "/auth/session", "", nil)
	s = decodeData[session.Session](t, rec)
	assert.Equal(t, session.StateAnonymous, s.State)
}

func TestLogin_RejectedCredentials(t *testing.T) {
	fake := newFakeStore()
	fake.loginErr = apperrors.Authentication("bad credentials")
	c := newTestClient(t, fake)

	rec := c.do(http.MethodPost, "/auth/login", `{"identity":"alice","password":"wrong"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "AUTHENTICATION", errorCode(t, rec))
}

func TestLogin_MalformedBody(t *testing.T) {
	fake := newFakeStore()
	c := newTestClient(t, fake)

	rec := c.do(http.MethodPost, "/auth/login", `{not json`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, fake.callCount("login"))
}

func TestCatalog_OpenToGuests(t *testing.T) {
	fake := newFakeStore()
	fake.products = []backend.Product{{ID: "p1", Name: "Lamp", Price: 19.99}}
	c := newTestClient(t, fake)

	rec := c.do(http.MethodGet, "/products", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	products := decodeData[[]backend.Product](t, rec)
	require.Len(t, products, 1)

	rec = c.do(http.MethodGet, "/products/p1", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = c.do(http.MethodGet, "/products/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = c.do(http.MethodGet, "/categories", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = c.do(http.MethodGet, "/countries", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOrders_RequireSession(t *testing.T) {
	fake := newFakeStore()
	c := newTestClient(t, fake)

	rec := c.do(http.MethodGet, "/orders", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, fake.callCount("listOrders"))

	c.login(fake)
	rec = c.do(http.MethodGet, "/orders", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, fake.callCount("listOrders"))
}

func TestOrders_BrowserNavigationRedirects(t *testing.T) {
	c := newTestClient(t, newFakeStore())

	rec := c.do(http.MethodGet, "/orders", "", map[string]string{"Accept": "text/html"})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), "/login")
}

func TestCheckout(t *testing.T) {
	fake := newFakeStore()
	c := newTestClient(t, fake)
	c.login(fake)

	rec := c.do(http.MethodPost, "/checkout", `{"orders":[],"location":{}}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = c.do(http.MethodPost, "/checkout",
		`{"orders":[{"productId":"p1","count":2}],"location":{"country":"NO","address":"Storgata 1"}}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeData[backend.CheckoutResponse](t, rec)
	assert.Equal(t, "https://pay.example/session", resp.URL)
}

func TestAdminProducts_PermissionGate(t *testing.T) {
	fake := newFakeStore()
	c := newTestClient(t, fake)
	c.login(fake)

	body := `{"name":"Lamp","price":19.99}`
	rec := c.do(http.MethodPost, "/admin/products", body, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Zero(t, fake.callCount("createProduct"))

	admin := newTestClient(t, fake)
	admin.login(fake, session.GroupAdmin)
	rec = admin.do(http.MethodPost, "/admin/products", body, nil)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 1, fake.callCount("createProduct"))
}

func TestProfile_RequiresSession(t *testing.T) {
	fake := newFakeStore()
	c := newTestClient(t, fake)

	rec := c.do(http.MethodGet, "/auth/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	c.login(fake)
	rec = c.do(http.MethodGet, "/auth/profile", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	profile := decodeData[backend.Profile](t, rec)
	assert.Equal(t, "alice", profile.Username)
}

func TestHealthEndpoints(t *testing.T) {
	c := newTestClient(t, newFakeStore())

	rec := c.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = c.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
