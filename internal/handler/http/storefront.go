package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/storefront/internal/backend"
	"github.com/utafrali/storefront/internal/guard"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httputil"
)

// StoreAPI is the slice of the e-store API the storefront proxies consume.
// *backend.Client satisfies it.
type StoreAPI interface {
	Profile(ctx context.Context, accessToken string) (*backend.Profile, error)
	ListProducts(ctx context.Context) ([]backend.Product, error)
	GetProduct(ctx context.Context, id string) (*backend.Product, error)
	CreateProduct(ctx context.Context, accessToken string, product backend.Product) (*backend.Product, error)
	Categories(ctx context.Context) ([]backend.Category, error)
	Countries(ctx context.Context) ([]backend.Country, error)
	CreateOrder(ctx context.Context, accessToken string, req backend.OrderRequest) (*backend.Order, error)
	ListOrders(ctx context.Context, accessToken string) ([]backend.Order, error)
	Checkout(ctx context.Context, accessToken string, req backend.CheckoutRequest) (*backend.CheckoutResponse, error)
}

// StorefrontHandler proxies catalog, order, and checkout traffic to the
// e-store API, attaching the session's access token where the upstream
// requires one.
type StorefrontHandler struct {
	api    StoreAPI
	logger *slog.Logger
}

// NewStorefrontHandler creates the storefront proxy handler.
func NewStorefrontHandler(api StoreAPI, l *slog.Logger) *StorefrontHandler {
	return &StorefrontHandler{api: api, logger: l}
}

// Profile handles GET /auth/profile.
func (h *StorefrontHandler) Profile(w http.ResponseWriter, r *http.Request) {
	token, ok := h.accessToken(w, r)
	if !ok {
		return
	}
	profile, err := h.api.Profile(r.Context(), token)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: profile})
}

// ListProducts handles GET /products.
func (h *StorefrontHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.api.ListProducts(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: products})
}

// GetProduct handles GET /products/{id}.
func (h *StorefrontHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		httputil.WriteError(w, r, apperrors.Validation("product id is required"), h.logger)
		return
	}
	product, err := h.api.GetProduct(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: product})
}

// CreateProduct handles POST /admin/products. The route is mounted behind
// the product-management permission guard.
func (h *StorefrontHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var product backend.Product
	if !decodeBody(w, r, &product) {
		return
	}
	if product.Name == "" || product.Price <= 0 {
		httputil.WriteError(w, r, apperrors.Validation("product name and a positive price are required"), h.logger)
		return
	}

	token, ok := h.accessToken(w, r)
	if !ok {
		return
	}
	created, err := h.api.CreateProduct(r.Context(), token, product)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: created})
}

// Categories handles GET /categories.
func (h *StorefrontHandler) Categories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.api.Categories(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: categories})
}

// Countries handles GET /countries.
func (h *StorefrontHandler) Countries(w http.ResponseWriter, r *http.Request) {
	countries, err := h.api.Countries(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: countries})
}

// CreateOrder handles POST /orders.
func (h *StorefrontHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req backend.OrderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Orders) == 0 {
		httputil.WriteError(w, r, apperrors.Validation("an order needs at least one item"), h.logger)
		return
	}

	token, ok := h.accessToken(w, r)
	if !ok {
		return
	}
	order, err := h.api.CreateOrder(r.Context(), token, req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: order})
}

// ListOrders handles GET /orders.
func (h *StorefrontHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	token, ok := h.accessToken(w, r)
	if !ok {
		return
	}
	orders, err := h.api.ListOrders(r.Context(), token)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: orders})
}

// Checkout handles POST /checkout.
func (h *StorefrontHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req backend.CheckoutRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Orders) == 0 {
		httputil.WriteError(w, r, apperrors.Validation("checkout needs at least one item"), h.logger)
		return
	}
	if req.Location.Country == "" || req.Location.Address == "" {
		httputil.WriteError(w, r, apperrors.Validation("a delivery country and address are required"), h.logger)
		return
	}

	token, ok := h.accessToken(w, r)
	if !ok {
		return
	}
	resp, err := h.api.Checkout(r.Context(), token, req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: resp})
}

// accessToken resolves a live access token for the request's session,
// refreshing expired credentials when possible.
func (h *StorefrontHandler) accessToken(w http.ResponseWriter, r *http.Request) (string, bool) {
	m := guard.ManagerFrom(r.Context())
	if m == nil {
		httputil.WriteError(w, r, apperrors.Authentication("sign in to continue"), h.logger)
		return "", false
	}
	token, err := m.AccessToken(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return "", false
	}
	return token, true
}
