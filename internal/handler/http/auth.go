// Package http exposes the storefront gateway's HTTP surface: the session
// lifecycle under /auth, guarded storefront proxies, and operational
// endpoints.
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/utafrali/storefront/internal/guard"
	"github.com/utafrali/storefront/internal/session"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/validator"
)

// AuthHandler serves the session lifecycle endpoints.
type AuthHandler struct {
	registry *session.Registry
	logger   *slog.Logger
}

// NewAuthHandler creates the auth endpoint handler.
func NewAuthHandler(reg *session.Registry, l *slog.Logger) *AuthHandler {
	return &AuthHandler{registry: reg, logger: l}
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var input session.RegisterInput
	if !decodeBody(w, r, &input) {
		return
	}

	m := guard.ManagerFrom(r.Context())
	if err := m.Register(r.Context(), input); err != nil {
		h.writeFailure(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: m.Current()})
}

// Verify handles POST /auth/verify.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Code string `json:"code"`
	}
	if !decodeBody(w, r, &input) {
		return
	}

	m := guard.ManagerFrom(r.Context())
	if err := m.VerifyEmail(r.Context(), input.Code); err != nil {
		h.writeFailure(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: m.Current()})
}

// Resend handles POST /auth/resend.
func (h *AuthHandler) Resend(w http.ResponseWriter, r *http.Request) {
	m := guard.ManagerFrom(r.Context())
	if err := m.ResendVerificationCode(r.Context()); err != nil {
		h.writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input session.LoginInput
	if !decodeBody(w, r, &input) {
		return
	}

	m := guard.ManagerFrom(r.Context())
	if err := m.Login(r.Context(), input); err != nil {
		h.writeFailure(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: m.Current()})
}

// Logout handles POST /auth/logout. Local state is always cleared; the
// in-memory manager is evicted so the next request starts clean.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	m := guard.ManagerFrom(r.Context())
	if err := m.Logout(r.Context()); err != nil {
		h.writeFailure(w, r, err)
		return
	}
	if id := SessionIDFrom(r.Context()); id != "" {
		h.registry.Evict(id)
	}
	w.WriteHeader(http.StatusNoContent)
}

// Refresh handles POST /auth/refresh.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	m := guard.ManagerFrom(r.Context())
	if err := m.Refresh(r.Context()); err != nil {
		h.writeFailure(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: m.Current()})
}

// Session handles GET /auth/session. Always succeeds; an anonymous browser
// gets an anonymous projection.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	m := guard.ManagerFrom(r.Context())
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: m.Current()})
}

func (h *AuthHandler) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		httputil.WriteValidationError(w, valErr)
		return
	}
	httputil.WriteError(w, r, err, h.logger)
}

// decodeBody reads a JSON request body into dst, writing a validation error
// and returning false when it is malformed.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(dst); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{
				Code:    "VALIDATION_ERROR",
				Message: "request body must be valid JSON",
			},
		})
		return false
	}
	return true
}
