// Package guard gates HTTP routes on session state. Checks here are
// advisory navigation control; the upstream API independently authorizes
// every privileged call.
package guard

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/utafrali/storefront/internal/session"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httputil"
)

// LoginPath is where browser requests are sent when a session is required
// but absent.
const LoginPath = "/login"

type ctxKey struct{}

// WithManager attaches the request's session manager to the context.
func WithManager(ctx context.Context, m *session.Manager) context.Context {
	return context.WithValue(ctx, ctxKey{}, m)
}

// ManagerFrom returns the session manager attached to the context, or nil.
func ManagerFrom(ctx context.Context) *session.Manager {
	m, _ := ctx.Value(ctxKey{}).(*session.Manager)
	return m
}

// RequireSession rejects requests without a live authenticated session.
// Expired credentials get one refresh attempt before rejection. Browser
// navigation is redirected to the sign-in page; API callers get a 401.
func RequireSession(l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m := ManagerFrom(r.Context())
			if m == nil {
				reject(w, r, l)
				return
			}

			s := m.Current()
			if s.State == session.StateAuthenticated && s.Expired {
				if err := m.Refresh(r.Context()); err == nil {
					s = m.Current()
				}
			}
			if !s.Authenticated() {
				reject(w, r, l)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequirePermission rejects authenticated sessions that lack the given
// permission group. Mount after RequireSession.
func RequirePermission(group string, l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m := ManagerFrom(r.Context())
			if m == nil || !m.Current().Authenticated() {
				reject(w, r, l)
				return
			}
			if !m.HasPermission(group) {
				httputil.WriteError(w, r, apperrors.Authorization("you do not have permission to do this"), l)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AllowGuest marks a route as reachable without a session. It performs no
// check; it exists so route tables state their access policy explicitly.
func AllowGuest(next http.Handler) http.Handler {
	return next
}

func reject(w http.ResponseWriter, r *http.Request, l *slog.Logger) {
	if wantsHTML(r) {
		target := LoginPath
		if r.URL.Path != "" && r.URL.Path != LoginPath {
			target += "?next=" + url.QueryEscape(r.URL.RequestURI())
		}
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}
	httputil.WriteError(w, r, apperrors.Authentication("sign in to continue"), l)
}

// wantsHTML distinguishes browser navigation from API calls by the Accept
// header.
func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}
