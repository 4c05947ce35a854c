package credstore

import (
	"context"
)

// DefaultTokenKind is the scheme used on the Authorization header.
const DefaultTokenKind = "Bearer"

// Storage keys for the active credential set and the pending-registration
// set. Legacy spellings from older client builds are never read but are
// always cleared, so logout leaves no residue behind.
const (
	KeyAccessToken  = "AccessToken"
	KeyIDToken      = "IdToken"
	KeyRefreshToken = "RefreshToken"
	KeyTokenKind    = "TokenType"

	KeyTempAccessToken  = "TempAccessToken"
	KeyTempIDToken      = "TempIdToken"
	KeyTempRefreshToken = "TempRefreshToken"
)

// LegacyKeys are storage keys written by superseded client builds.
var LegacyKeys = []string{"accessToken", "idToken", "refreshToken", "auth-tokens"}

// CredentialSet is the atomic unit of authentication state: either all three
// tokens are held, or none are. The pending-registration set is the one
// sanctioned exception and may lack a refresh token.
type CredentialSet struct {
	AccessToken  string
	IDToken      string
	RefreshToken string
	TokenKind    string
}

// Complete reports whether all three tokens are present.
func (c CredentialSet) Complete() bool {
	return c.AccessToken != "" && c.IDToken != "" && c.RefreshToken != ""
}

// Kind returns the token kind, defaulting to Bearer.
func (c CredentialSet) Kind() string {
	if c.TokenKind == "" {
		return DefaultTokenKind
	}
	return c.TokenKind
}

// Store persists the credential set across process restarts. Load never
// returns a partially-populated active set: if any required key is missing
// the whole set reads as absent. Clear removes active, pending, and legacy
// keys together.
type Store interface {
	Load(ctx context.Context) (*CredentialSet, error)
	Save(ctx context.Context, creds CredentialSet) error
	Clear(ctx context.Context) error

	LoadPending(ctx context.Context) (*CredentialSet, error)
	SavePending(ctx context.Context, creds CredentialSet) error
	ClearPending(ctx context.Context) error
}

// fromKeys assembles an active credential set from raw storage values,
// returning nil when any required token is missing.
func fromKeys(values map[string]string) *CredentialSet {
	creds := CredentialSet{
		AccessToken:  values[KeyAccessToken],
		IDToken:      values[KeyIDToken],
		RefreshToken: values[KeyRefreshToken],
		TokenKind:    values[KeyTokenKind],
	}
	if !creds.Complete() {
		return nil
	}
	return &creds
}

// pendingFromKeys assembles the pending-registration set. The pending access
// and identity tokens are required; the refresh token is optional.
func pendingFromKeys(values map[string]string) *CredentialSet {
	creds := CredentialSet{
		AccessToken:  values[KeyTempAccessToken],
		IDToken:      values[KeyTempIDToken],
		RefreshToken: values[KeyTempRefreshToken],
	}
	if creds.AccessToken == "" || creds.IDToken == "" {
		return nil
	}
	return &creds
}
