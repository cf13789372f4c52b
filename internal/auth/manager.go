package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spin/internal/models"
	"github.com/desertthunder/spin/internal/server"
	"github.com/desertthunder/spin/internal/shared"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
)

const (
	// refreshMargin is the safety window before expiry inside which a token
	// is treated as already expired and refreshed.
	refreshMargin = 60 * time.Second

	// authTimeout bounds the wait for the provider redirect during the
	// interactive grant.
	authTimeout = 2 * time.Minute
)

// State identifies a credential lifecycle phase.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthorizing
	StateAuthenticated
	StateRefreshPending
	StateRevoked
)

// String returns the state name used in status output.
func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthorizing:
		return "authorizing"
	case StateAuthenticated:
		return "authenticated"
	case StateRefreshPending:
		return "refresh_pending"
	case StateRevoked:
		return "revoked"
	default:
		return "unknown"
	}
}

// Scopes returns the authorization scopes the application requests.
func Scopes() []string {
	return []string{
		spotifyauth.ScopeUserReadCurrentlyPlaying,
		spotifyauth.ScopeUserReadPlaybackState,
		spotifyauth.ScopeUserModifyPlaybackState,
		spotifyauth.ScopeUserLibraryRead,
		spotifyauth.ScopePlaylistReadPrivate,
		spotifyauth.ScopePlaylistReadCollaborative,
		spotifyauth.ScopePlaylistModifyPrivate,
		spotifyauth.ScopePlaylistModifyPublic,
	}
}

// Manager owns the mutable credential state for the primary source.
//
// All token reads pass through a single mutex, so concurrent callers
// serialize on the read-refresh-write critical section and at most one
// refresh is in flight at a time. Implements [oauth2.TokenSource].
type Manager struct {
	conf   *oauth2.Config
	store  *Store
	logger *log.Logger

	mu    sync.Mutex
	cred  *Credential
	state State

	addr    string
	margin  time.Duration
	timeout time.Duration
	openURL func(string) error
	now     func() time.Time
}

// Opts configures a [Manager]. Zero fields fall back to production defaults.
type Opts struct {
	Config   *shared.Config
	Store    *Store
	Logger   *log.Logger
	Endpoint oauth2.Endpoint    // token endpoints, the Spotify accounts service when zero
	OpenURL  func(string) error // browser opener, replaceable in tests
	Timeout  time.Duration      // authorization callback wait, default 2 minutes
	Now      func() time.Time   // clock, replaceable in tests
}

// NewManager wires a credential lifecycle manager from application config.
func NewManager(opts Opts) (*Manager, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = shared.DefaultConfig()
	}

	sp := cfg.Credentials.Spotify
	if sp.ClientID == "" || sp.ClientSecret == "" {
		return nil, fmt.Errorf("%w: spotify client_id and client_secret are required", shared.ErrMissingCredentials)
	}

	store := opts.Store
	if store == nil {
		var err error
		if store, err = NewStore(sp.TokenPath); err != nil {
			return nil, err
		}
	}

	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	endpoint := opts.Endpoint
	if endpoint.TokenURL == "" {
		endpoint = oauth2.Endpoint{AuthURL: spotifyauth.AuthURL, TokenURL: spotifyauth.TokenURL}
	}

	redirect := sp.RedirectURI
	if redirect == "" {
		redirect = fmt.Sprintf("http://%s%s", cfg.Server.Addr(), server.CallbackPath)
	}

	openURL := opts.OpenURL
	if openURL == nil {
		openURL = shared.OpenBrowser
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = authTimeout
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Manager{
		conf: &oauth2.Config{
			ClientID:     sp.ClientID,
			ClientSecret: sp.ClientSecret,
			RedirectURL:  redirect,
			Scopes:       Scopes(),
			Endpoint:     endpoint,
		},
		store:   store,
		logger:  logger,
		addr:    cfg.Server.Addr(),
		margin:  refreshMargin,
		timeout: timeout,
		openURL: openURL,
		now:     now,
	}, nil
}

// StorePath returns the credential file location, for status output.
func (m *Manager) StorePath() string {
	return m.store.Path()
}

// Token implements [oauth2.TokenSource], letting HTTP clients pull fresh
// access tokens through the manager transparently.
func (m *Manager) Token() (*oauth2.Token, error) {
	return m.GetValidToken(context.Background())
}

// HTTPClient returns an [http.Client] whose transport injects a valid access
// token into every request.
func (m *Manager) HTTPClient(ctx context.Context) *http.Client {
	return oauth2.NewClient(ctx, m)
}

// GetValidToken returns a currently valid access token, refreshing at most
// once when the stored token is inside the expiry safety margin.
//
// Callers never observe a stale token: the result is either a token with
// validity remaining or an error.
func (m *Manager) GetValidToken(ctx context.Context) (*oauth2.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.loadLocked(); err != nil {
		return nil, err
	}

	if m.cred == nil {
		return nil, fmt.Errorf("%w: no stored credentials, run 'spin auth login'", shared.ErrNotAuthenticated)
	}

	if m.now().Before(m.cred.ExpiresAt.Add(-m.margin)) {
		return m.tokenLocked(), nil
	}

	if err := m.refreshLocked(ctx); err != nil {
		return nil, err
	}

	return m.tokenLocked(), nil
}

// Refresh forces an immediate token refresh regardless of remaining validity.
func (m *Manager) Refresh(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.loadLocked(); err != nil {
		return err
	}

	if m.cred == nil {
		return fmt.Errorf("%w: no stored credentials, run 'spin auth login'", shared.ErrNotAuthenticated)
	}

	return m.refreshLocked(ctx)
}

// CheckAuth reports the credential state without refreshing or mutating
// anything on disk.
func (m *Manager) CheckAuth() (*models.AuthStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.loadLocked(); err != nil {
		return nil, err
	}

	status := &models.AuthStatus{State: m.state.String()}
	if m.cred == nil {
		return status, nil
	}

	status.ExpiresAt = m.cred.ExpiresAt
	status.Scopes = m.cred.Scopes

	if remaining := m.cred.ExpiresAt.Sub(m.now()); remaining > 0 {
		status.Remaining = remaining.Round(time.Second).String()
	} else {
		status.Remaining = "expired"
	}

	return status, nil
}

// Authorize runs the interactive authorization-code grant: it starts a
// single-use loopback listener, opens the browser to the consent page, waits
// for the provider redirect, and persists the exchanged credential.
func (m *Manager) Authorize(ctx context.Context) error {
	m.mu.Lock()
	m.state = StateAuthorizing
	m.mu.Unlock()

	token, err := m.runAuthFlow(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err != nil {
		m.settleLocked()
		return err
	}

	cred := &Credential{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
		Scopes:       m.conf.Scopes,
	}

	if err := m.store.Save(cred); err != nil {
		m.settleLocked()
		return err
	}

	m.cred = cred
	m.state = StateAuthenticated
	m.logger.Info("authorization complete", "expires_at", cred.ExpiresAt.Format(time.RFC3339))

	return nil
}

// Revoke deletes the stored credential. The manager stays revoked until a
// new [Manager.Authorize] run.
func (m *Manager) Revoke() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Delete(); err != nil {
		return err
	}

	m.cred = nil
	m.state = StateRevoked

	return nil
}

// runAuthFlow drives the loopback listener and returns the exchanged token.
func (m *Manager) runAuthFlow(ctx context.Context) (*oauth2.Token, error) {
	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAuthorization, err)
	}

	handler := server.NewOAuthHandler(m.conf, state)
	router := server.NewBasicRouter()
	router.Use(server.LogRequests(m.logger))
	router.Handler(handler)

	srv := &http.Server{Addr: m.addr, Handler: router}
	serverErrors := make(chan error, 1)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			m.logger.Warn("error shutting down callback listener", "error", err)
		}
	}()

	// Give the listener a moment to start.
	time.Sleep(100 * time.Millisecond)

	authURL := m.conf.AuthCodeURL(state)

	m.logger.Infof("waiting for authorization at %v (%v timeout)", m.addr, m.timeout)

	if err := m.openURL(authURL); err != nil {
		m.logger.Warn("could not open browser, visit the URL manually", "url", authURL)
	}

	timeout := time.NewTimer(m.timeout)
	defer timeout.Stop()

	select {
	case result := <-handler.Result():
		if result.Error() != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrAuthorization, result.Error())
		}

		if result.Token == nil {
			return nil, fmt.Errorf("%w: no token received", shared.ErrAuthorization)
		}

		return result.Token, nil
	case err := <-serverErrors:
		return nil, fmt.Errorf("%w: callback listener: %v", shared.ErrAuthorization, err)
	case <-timeout.C:
		return nil, fmt.Errorf("%w: no callback received within %v", shared.ErrTimeout, m.timeout)
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", shared.ErrAuthorization, ctx.Err())
	}
}

// loadLocked pulls the credential from disk on first use. Call with the
// mutex held.
func (m *Manager) loadLocked() error {
	if m.cred != nil {
		return nil
	}

	cred, err := m.store.Load()
	if err != nil {
		return err
	}

	if cred != nil {
		m.cred = cred
		m.state = StateAuthenticated
	}

	return nil
}

// refreshLocked exchanges the refresh token for a new access token and
// persists the result. Call with the mutex held; a single attempt is made
// per call.
func (m *Manager) refreshLocked(ctx context.Context) error {
	if m.cred.RefreshToken == "" {
		m.state = StateRevoked
		return fmt.Errorf("%w: stored credential has no refresh token", shared.ErrReauthRequired)
	}

	m.state = StateRefreshPending
	m.logger.Debug("access token expiring, refreshing")

	seed := &oauth2.Token{RefreshToken: m.cred.RefreshToken}

	refreshed, err := m.conf.TokenSource(ctx, seed).Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil && retrieveErr.Response.StatusCode < http.StatusInternalServerError {
			m.state = StateRevoked
			return fmt.Errorf("%w: %v", shared.ErrReauthRequired, err)
		}

		m.state = StateAuthenticated
		return fmt.Errorf("%w: token refresh: %v", shared.ErrSourceUnavailable, err)
	}

	cred := &Credential{
		AccessToken:  refreshed.AccessToken,
		RefreshToken: m.cred.RefreshToken,
		ExpiresAt:    refreshed.Expiry,
		Scopes:       m.cred.Scopes,
	}

	// Providers rotate refresh tokens at their discretion; keep the current
	// one unless the response carries a replacement.
	if refreshed.RefreshToken != "" {
		cred.RefreshToken = refreshed.RefreshToken
	}

	if err := m.store.Save(cred); err != nil {
		m.logger.Warn("failed to persist refreshed credential", "error", err)
	}

	m.cred = cred
	m.state = StateAuthenticated
	m.logger.Debug("access token refreshed", "expires_at", cred.ExpiresAt.Format(time.RFC3339))

	return nil
}

// settleLocked restores the state matching the credential on hand after a
// failed transition. Call with the mutex held.
func (m *Manager) settleLocked() {
	if m.cred != nil {
		m.state = StateAuthenticated
	} else {
		m.state = StateUnauthenticated
	}
}

// tokenLocked converts the stored credential for transport use. Call with
// the mutex held.
func (m *Manager) tokenLocked() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  m.cred.AccessToken,
		RefreshToken: m.cred.RefreshToken,
		Expiry:       m.cred.ExpiresAt,
		TokenType:    "Bearer",
	}
}
