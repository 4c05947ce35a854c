package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/storefront/internal/guard"
	"github.com/utafrali/storefront/internal/session"
	"github.com/utafrali/storefront/pkg/httputil"
)

// SessionCookieName identifies the browser session. The cookie carries an
// opaque ID only; tokens never leave the gateway.
const SessionCookieName = "storefront_session"

// SessionConfig controls the session cookie.
type SessionConfig struct {
	Secure bool
	TTL    time.Duration
}

type sessionIDKey struct{}

// SessionIDFrom returns the browser session ID attached to the context.
func SessionIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDKey{}).(string)
	return id
}

// SessionContext assigns every request a browser session, minting the cookie
// on first contact, and attaches the session's Manager to the context.
func SessionContext(reg *session.Registry, cfg SessionConfig, l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := ""
			if c, err := r.Cookie(SessionCookieName); err == nil && c.Value != "" {
				if _, err := uuid.Parse(c.Value); err == nil {
					id = c.Value
				}
			}
			if id == "" {
				id = uuid.NewString()
			}

			// Refresh the cookie lifetime on every request so active
			// shoppers never lose their session mid-visit.
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookieName,
				Value:    id,
				Path:     "/",
				MaxAge:   int(cfg.TTL.Seconds()),
				HttpOnly: true,
				Secure:   cfg.Secure,
				SameSite: http.SameSiteLaxMode,
			})

			m, err := reg.Manager(r.Context(), id)
			if err != nil {
				httputil.WriteError(w, r, err, l)
				return
			}

			ctx := context.WithValue(r.Context(), sessionIDKey{}, id)
			ctx = guard.WithManager(ctx, m)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
