// Package claims decodes identity-token payloads without verifying the
// signature. The decoded view is informational only and feeds expiry display
// and permission gating in the UI layer; trust is established by the backend
// rejecting invalid or expired tokens on every protected call.
package claims

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the decoded, unverified view of an identity token payload.
type Claims struct {
	Subject   string
	Email     string
	Groups    []string
	ExpiresAt time.Time
}

// Expired reports whether the claims' expiration has passed at the given
// instant. Claims without an exp are treated as expired.
func (c *Claims) Expired(now time.Time) bool {
	if c.ExpiresAt.IsZero() {
		return true
	}
	return !now.Before(c.ExpiresAt)
}

// InGroup reports whether the role-tag set contains the given group.
func (c *Claims) InGroup(group string) bool {
	for _, g := range c.Groups {
		if g == group {
			return true
		}
	}
	return false
}

var parser = jwt.NewParser(jwt.WithPaddingAllowed())

// Decode extracts the payload of a three-part signed token. It is total: for
// any input it returns either well-formed claims or false, never panics. Both
// the standard and URL-safe base64 alphabets are accepted, with or without
// padding. The signature is NOT verified.
func Decode(token string) (*Claims, bool) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, false
	}

	payload := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(normalize(token), payload); err != nil {
		return nil, false
	}

	c := &Claims{}

	if sub, err := payload.GetSubject(); err == nil {
		c.Subject = sub
	}
	if email, ok := payload["email"].(string); ok {
		c.Email = email
	}
	if exp, err := payload.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}
	c.Groups = groupsFrom(payload)

	return c, true
}

// The identity backend delivers group memberships under a vendor-prefixed
// claim name; older token shapes used a bare "groups".
func groupsFrom(payload jwt.MapClaims) []string {
	for _, field := range []string{"cognito:groups", "groups"} {
		raw, ok := payload[field].([]any)
		if !ok {
			continue
		}
		groups := make([]string, 0, len(raw))
		for _, g := range raw {
			if s, ok := g.(string); ok {
				groups = append(groups, s)
			}
		}
		return groups
	}
	return nil
}

// normalize rewrites standard-alphabet base64 segments to the URL-safe
// alphabet the parser expects. Unverified decoding makes this safe; the
// signature bytes are never interpreted.
func normalize(token string) string {
	token = strings.ReplaceAll(token, "+", "-")
	return strings.ReplaceAll(token, "/", "_")
}
