package session

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/utafrali/storefront/internal/backend"
	"github.com/utafrali/storefront/internal/claims"
	"github.com/utafrali/storefront/internal/credstore"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/logger"
	"github.com/utafrali/storefront/pkg/validator"
)

// Authenticator is the slice of the e-store API the session lifecycle needs.
// *backend.Client satisfies it.
type Authenticator interface {
	Register(ctx context.Context, req backend.RegisterRequest) (*backend.AuthResponse, error)
	Verify(ctx context.Context, accessToken, code string) (*backend.AuthResponse, error)
	ResendVerification(ctx context.Context, accessToken string) error
	Login(ctx context.Context, identity, password string) (*backend.AuthResponse, error)
	Logout(ctx context.Context, accessToken string) error
	Refresh(ctx context.Context, refreshToken string) (*backend.TokenTriple, error)
}

// RegisterInput is the account creation form.
type RegisterInput struct {
	Username string `json:"username" validate:"required,username"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,strongpassword"`
	Gender   string `json:"gender" validate:"required,oneof=male female other"`
}

// LoginInput is the sign-in form. Identity accepts a username or an email.
type LoginInput struct {
	Identity string `json:"identity" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Manager drives the authentication lifecycle for one browser session.
// All state transitions go through the mutex; network calls do not hold it.
type Manager struct {
	api    Authenticator
	store  credstore.Store
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	state    State
	creds    *credstore.CredentialSet
	pending  *credstore.CredentialSet
	username string
	email    string

	inFlight atomic.Int32
	refresh  singleflight.Group
}

// NewManager creates a Manager with no credentials loaded. Call Restore to
// pick up persisted state.
func NewManager(api Authenticator, store credstore.Store, l *slog.Logger) *Manager {
	return &Manager{
		api:    api,
		store:  store,
		logger: l,
		now:    time.Now,
		state:  StateAnonymous,
	}
}

// Restore loads persisted credentials and derives the lifecycle state from
// them. An active set wins over a pending one.
func (m *Manager) Restore(ctx context.Context) error {
	creds, err := m.store.Load(ctx)
	if err != nil {
		return apperrors.Persistence(err)
	}
	pending, err := m.store.LoadPending(ctx)
	if err != nil {
		return apperrors.Persistence(err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case creds != nil:
		m.creds = creds
		m.pending = nil
		m.state = StateAuthenticated
	case pending != nil:
		m.pending = pending
		m.state = StatePendingVerification
	default:
		m.state = StateAnonymous
	}
	m.hydrateIdentity()
	return nil
}

// Register creates an account and stores the returned tokens as pending
// until the email address is verified. Input that fails local policy is
// rejected before any network traffic.
func (m *Manager) Register(ctx context.Context, input RegisterInput) error {
	if err := validator.Validate(input); err != nil {
		return invalidInput(err)
	}

	m.setState(StateRegistering)
	done := m.track()
	resp, err := m.api.Register(ctx, backend.RegisterRequest{
		Username: input.Username,
		Email:    input.Email,
		Password: input.Password,
		Gender:   input.Gender,
	})
	done()
	if err != nil {
		m.setState(StateAnonymous)
		return err
	}

	tokens := resp.Tokens
	if tokens == nil || tokens.AccessToken == "" || tokens.IDToken == "" {
		m.setState(StateAnonymous)
		return apperrors.Server("registration response carried no usable tokens")
	}

	pending := credstore.CredentialSet{
		AccessToken:  tokens.AccessToken,
		IDToken:      tokens.IDToken,
		RefreshToken: tokens.RefreshToken,
	}
	if err := m.store.SavePending(ctx, pending); err != nil {
		m.setState(StateAnonymous)
		return apperrors.Persistence(err)
	}

	m.mu.Lock()
	m.pending = &pending
	m.creds = nil
	m.state = StatePendingVerification
	m.username = resp.Username
	m.email = resp.Email
	m.hydrateIdentity()
	m.mu.Unlock()
	return nil
}

// VerifyEmail confirms the email address with the numeric code and promotes
// the pending credentials to the active set.
func (m *Manager) VerifyEmail(ctx context.Context, code string) error {
	if !isVerificationCode(code) {
		return apperrors.InvalidCode("verification code must be numeric")
	}

	m.mu.Lock()
	pending := m.pending
	m.mu.Unlock()
	if pending == nil {
		return apperrors.SessionExpired("no registration is awaiting verification")
	}

	done := m.track()
	resp, err := m.api.Verify(ctx, pending.AccessToken, code)
	done()
	if err != nil {
		return err
	}

	tokens := resp.Tokens
	if tokens == nil || !tokens.Complete() {
		return apperrors.Server("verification response carried an incomplete token set")
	}

	creds := credstore.CredentialSet{
		AccessToken:  tokens.AccessToken,
		IDToken:      tokens.IDToken,
		RefreshToken: tokens.RefreshToken,
		TokenKind:    tokens.TokenType,
	}
	if err := m.store.Save(ctx, creds); err != nil {
		return apperrors.Persistence(err)
	}
	if err := m.store.ClearPending(ctx); err != nil {
		// The active set is already durable; stale pending keys are
		// swept by the next Clear.
		m.logger.WarnContext(ctx, "failed to clear pending credentials", slog.String("error", err.Error()))
	}

	m.mu.Lock()
	m.creds = &creds
	m.pending = nil
	m.state = StateAuthenticated
	m.hydrateIdentity()
	m.mu.Unlock()
	return nil
}

// ResendVerificationCode requests a fresh verification code for the pending
// registration.
func (m *Manager) ResendVerificationCode(ctx context.Context) error {
	m.mu.Lock()
	pending := m.pending
	m.mu.Unlock()
	if pending == nil {
		return apperrors.SessionExpired("no registration is awaiting verification")
	}

	done := m.track()
	defer done()
	return m.api.ResendVerification(ctx, pending.AccessToken)
}

// Login exchanges credentials for a token set. A rejected attempt leaves any
// existing session untouched; a successful one replaces it.
func (m *Manager) Login(ctx context.Context, input LoginInput) error {
	if err := validator.Validate(input); err != nil {
		return invalidInput(err)
	}

	done := m.track()
	resp, err := m.api.Login(ctx, input.Identity, input.Password)
	done()
	if err != nil {
		return err
	}

	tokens := resp.Tokens
	if tokens == nil || !tokens.Complete() {
		return apperrors.Server("login response carried an incomplete token set")
	}

	creds := credstore.CredentialSet{
		AccessToken:  tokens.AccessToken,
		IDToken:      tokens.IDToken,
		RefreshToken: tokens.RefreshToken,
		TokenKind:    tokens.TokenType,
	}
	if err := m.store.Save(ctx, creds); err != nil {
		return apperrors.Persistence(err)
	}

	m.mu.Lock()
	m.creds = &creds
	m.pending = nil
	m.state = StateAuthenticated
	m.username = resp.Username
	m.email = resp.Email
	m.hydrateIdentity()
	m.mu.Unlock()
	return nil
}

// Logout revokes the upstream session on a best-effort basis and always
// clears local state. A network failure never leaves tokens behind.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	creds := m.creds
	m.mu.Unlock()

	if creds != nil {
		done := m.track()
		if err := m.api.Logout(ctx, creds.AccessToken); err != nil {
			l := logger.WithContext(ctx, m.logger)
			l.WarnContext(ctx, "upstream logout failed, clearing local session anyway",
				slog.String("error", err.Error()))
		}
		done()
	}

	if err := m.store.Clear(ctx); err != nil {
		return apperrors.Persistence(err)
	}

	m.mu.Lock()
	m.creds = nil
	m.pending = nil
	m.state = StateAnonymous
	m.username = ""
	m.email = ""
	m.mu.Unlock()
	return nil
}

// Refresh exchanges the refresh token for fresh credentials. Concurrent
// callers share one upstream call. Any refresh failure terminates the
// session; the caller must sign in again.
func (m *Manager) Refresh(ctx context.Context) error {
	m.mu.Lock()
	creds := m.creds
	m.mu.Unlock()
	if creds == nil {
		return apperrors.SessionExpired("no active session to refresh")
	}
	token := creds.RefreshToken

	_, err, _ := m.refresh.Do(token, func() (any, error) {
		done := m.track()
		defer done()

		triple, err := m.api.Refresh(ctx, token)
		if err != nil {
			m.terminate(ctx, token)
			return nil, err
		}
		if triple.AccessToken == "" || triple.IDToken == "" {
			m.terminate(ctx, token)
			return nil, apperrors.Server("refresh response carried an incomplete token set")
		}

		m.mu.Lock()
		defer m.mu.Unlock()
		// The session may have been replaced or cleared while the call
		// was in flight; a late response must not resurrect it.
		if m.creds == nil || m.creds.RefreshToken != token {
			return nil, nil
		}
		next := credstore.CredentialSet{
			AccessToken:  triple.AccessToken,
			IDToken:      triple.IDToken,
			RefreshToken: triple.RefreshToken,
			TokenKind:    triple.TokenType,
		}
		// The token endpoint does not rotate refresh tokens.
		if next.RefreshToken == "" {
			next.RefreshToken = token
		}
		if next.TokenKind == "" {
			next.TokenKind = m.creds.TokenKind
		}
		if err := m.store.Save(ctx, next); err != nil {
			return nil, apperrors.Persistence(err)
		}
		m.creds = &next
		m.hydrateIdentity()
		return nil, nil
	})
	if err != nil {
		return &apperrors.AppError{
			Code:    "SESSION_EXPIRED",
			Message: "your session has expired, please sign in again",
			Status:  http.StatusUnauthorized,
			Err:     fmt.Errorf("%w: %w", apperrors.ErrSessionExpired, err),
		}
	}
	return nil
}

// AccessToken returns a usable access token for upstream calls, refreshing
// first when the held one has expired.
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	creds := m.creds
	m.mu.Unlock()
	if creds == nil {
		return "", apperrors.Authentication("not signed in")
	}

	if c, ok := claims.Decode(creds.AccessToken); ok && c.Expired(m.now()) {
		if err := m.Refresh(ctx); err != nil {
			return "", err
		}
		m.mu.Lock()
		creds = m.creds
		m.mu.Unlock()
		if creds == nil {
			return "", apperrors.SessionExpired("your session has expired, please sign in again")
		}
	}
	return creds.AccessToken, nil
}

// Current returns a projection of the session for the browser.
func (m *Manager) Current() Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Session{
		State:    m.state,
		Username: m.username,
		Email:    m.email,
		Loading:  m.inFlight.Load() > 0,
	}

	var idToken string
	switch {
	case m.state == StateAuthenticated && m.creds != nil:
		idToken = m.creds.IDToken
	case m.state == StatePendingVerification && m.pending != nil:
		idToken = m.pending.IDToken
	}
	if c, ok := claims.Decode(idToken); ok {
		if c.Email != "" {
			s.Email = c.Email
		}
		s.Groups = c.Groups
		s.ExpiresAt = c.ExpiresAt
		s.Expired = c.Expired(m.now())
	} else if idToken != "" {
		// Undecodable identity token: held credentials cannot prove a
		// live session.
		s.Expired = true
	}
	return s
}

// HasPermission reports whether the session's group claims grant the given
// permission right now.
func (m *Manager) HasPermission(group string) bool {
	return m.Current().Allows(group)
}

// IsLoading reports whether any lifecycle network call is in flight.
func (m *Manager) IsLoading() bool {
	return m.inFlight.Load() > 0
}

// terminate clears all credential state after a failed refresh, unless the
// session has already moved on to a different refresh token.
func (m *Manager) terminate(ctx context.Context, refreshToken string) {
	m.mu.Lock()
	if m.creds == nil || m.creds.RefreshToken != refreshToken {
		m.mu.Unlock()
		return
	}
	m.creds = nil
	m.pending = nil
	m.state = StateAnonymous
	m.username = ""
	m.email = ""
	m.mu.Unlock()

	if err := m.store.Clear(ctx); err != nil {
		m.logger.WarnContext(ctx, "failed to clear credentials after refresh failure",
			slog.String("error", err.Error()))
	}
}

// hydrateIdentity fills username and email from the identity token claims
// when the flow response did not carry them. Callers hold the mutex.
func (m *Manager) hydrateIdentity() {
	var idToken string
	switch {
	case m.creds != nil:
		idToken = m.creds.IDToken
	case m.pending != nil:
		idToken = m.pending.IDToken
	default:
		return
	}
	if c, ok := claims.Decode(idToken); ok {
		if m.email == "" {
			m.email = c.Email
		}
		if m.username == "" {
			m.username = c.Subject
		}
	}
}

// setState transitions the lifecycle state under the mutex.
func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// track marks a lifecycle network call as in flight until the returned
// function runs.
func (m *Manager) track() func() {
	m.inFlight.Add(1)
	return func() { m.inFlight.Add(-1) }
}

// invalidInput wraps a local policy violation so callers can match both the
// validation sentinel and the field-level detail.
func invalidInput(err error) error {
	return &apperrors.AppError{
		Code:    "VALIDATION_ERROR",
		Message: err.Error(),
		Status:  http.StatusBadRequest,
		Err:     fmt.Errorf("%w: %w", apperrors.ErrValidation, err),
	}
}

func isVerificationCode(code string) bool {
	if code == "" {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
