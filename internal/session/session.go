// Package session owns per-browser authentication state for the storefront
// gateway. Each browser session gets one Manager, which drives the
// register, verify, login, refresh, and logout flows against the e-store API
// and keeps the credential store in sync with what actually happened.
package session

import (
	"time"
)

// Permission groups the identity backend assigns to accounts. Admins hold
// every permission implicitly.
const (
	GroupAdmin         = "ADMIN"
	GroupManageProduct = "MANAGE_PRODUCT"
)

// State is the authentication lifecycle position of a browser session.
type State string

const (
	// StateAnonymous means no credentials are held.
	StateAnonymous State = "anonymous"
	// StateRegistering means an account creation request is in flight.
	StateRegistering State = "registering"
	// StatePendingVerification means the account exists but the email
	// address has not been confirmed yet.
	StatePendingVerification State = "pending_verification"
	// StateAuthenticated means a full credential set is held.
	StateAuthenticated State = "authenticated"
)

// Session is a point-in-time projection of a Manager, safe to serialize to
// the browser. It never carries token material.
type Session struct {
	State     State     `json:"state"`
	Username  string    `json:"username,omitempty"`
	Email     string    `json:"email,omitempty"`
	Groups    []string  `json:"groups,omitempty"`
	ExpiresAt time.Time `json:"expiresAt,omitzero"`
	// Expired is set when credentials are held but the identity token is
	// past its lifetime. A refresh may still recover the session.
	Expired bool `json:"expired,omitempty"`
	Loading bool `json:"loading,omitempty"`
}

// Authenticated reports whether the session holds live credentials.
func (s Session) Authenticated() bool {
	return s.State == StateAuthenticated && !s.Expired
}

// Allows reports whether the session's groups grant the given permission.
// Group claims are decoded without signature verification, so this gates
// navigation only; the upstream API re-checks every privileged call.
func (s Session) Allows(group string) bool {
	if !s.Authenticated() {
		return false
	}
	for _, g := range s.Groups {
		if g == GroupAdmin || g == group {
			return true
		}
	}
	return false
}
