package session

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	"github.com/jake-scott/bluestar-bridge/internal/pkg/logging"
	"github.com/jake-scott/bluestar-bridge/internal/pkg/metrics"
	"github.com/jake-scott/bluestar-bridge/internal/pkg/transport"
)

// HeaderName carries the session token on authenticated requests
const HeaderName = "X-APP-SESSION"

// DefaultTTL is how long a session token is trusted after login
const DefaultTTL = time.Second * 3600

var (
	ErrUnauthorized = errors.New("request unauthorized after re-login")
	ErrNoToken      = errors.New("no session token")
	ErrLoginFailed  = errors.New("login failed")
)

// Doer sends a request to the vendor cloud
type Doer interface {
	Do(ctx context.Context, r transport.Request) (*transport.Response, error)
}

// Call issues one authenticated request using token
type Call func(ctx context.Context, token string) (*transport.Response, error)

type loginResponse struct {
	Data *struct {
		SessionToken *string `json:"session_token"`
	} `json:"data"`
}

// Manager owns the session token.  Logins are coalesced so at most one is
// in flight; callers arriving meanwhile share its outcome.
type Manager struct {
	doer     Doer
	loginURL string
	creds    Credentials
	ttl      time.Duration
	now      func() time.Time

	flight singleflight.Group

	mu        sync.RWMutex
	token     string
	expiresAt time.Time
}

func NewManager(doer Doer, loginURL string, creds Credentials) *Manager {
	return &Manager{
		doer:     doer,
		loginURL: loginURL,
		creds:    creds,
		ttl:      DefaultTTL,
		now:      time.Now,
	}
}

// Token returns the current token if it has not expired
func (m *Manager) Token() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.token != "" && m.now().Before(m.expiresAt) {
		return m.token, true
	}
	return "", false
}

func (m *Manager) Authenticated() bool {
	_, ok := m.Token()
	return ok
}

// ExpiresAt returns the expiry of the current token, zero when unauthenticated
func (m *Manager) ExpiresAt() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.token == "" {
		return time.Time{}
	}
	return m.expiresAt
}

// Invalidate drops the current token
func (m *Manager) Invalidate() {
	m.mu.Lock()
	m.token = ""
	m.expiresAt = time.Time{}
	m.mu.Unlock()

	metrics.SessionValid(false)
}

// invalidateToken drops the token only if it is still the one that was
// rejected, so a fresher token from a concurrent login survives.
func (m *Manager) invalidateToken(rejected string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token == rejected {
		m.token = ""
		m.expiresAt = time.Time{}
		metrics.SessionValid(false)
	}
}

// EnsureAuthenticated returns immediately while the token is valid,
// otherwise it logs in.
func (m *Manager) EnsureAuthenticated(ctx context.Context) error {
	if m.Authenticated() {
		return nil
	}

	if ctx == nil {
		ctx = context.Background()
	}

	// The login outlives a cancelled caller so that the callers sharing it
	// still get a result; the transport timeout bounds it.
	loginCtx := context.WithoutCancel(ctx)

	_, err, shared := m.flight.Do("login", func() (interface{}, error) {
		if m.Authenticated() {
			return nil, nil
		}
		return nil, m.login(loginCtx)
	})
	if shared {
		logging.Logger(ctx).Debug("shared an in-flight login")
	}

	return err
}

func (m *Manager) login(ctx context.Context) error {
	ctxLogger := logging.Logger(ctx)

	if !m.creds.Valid() {
		metrics.Login(false)
		return errors.Wrap(ErrLoginFailed, "no credentials configured")
	}

	ctxLogger.Info("Logging in to Bluestar API")

	resp, err := m.doer.Do(ctx, transport.Request{
		Method: http.MethodPost,
		URL:    m.loginURL,
		Body:   m.creds.loginRequest(),
	})
	if err != nil {
		metrics.Login(false)
		return errors.Wrap(err, "sending login request")
	}

	if resp.StatusCode != http.StatusOK {
		metrics.Login(false)
		return errors.Wrapf(ErrLoginFailed, "status %d: %s", resp.StatusCode, resp.Body)
	}

	lr := loginResponse{}
	if err := resp.DecodeJSON(&lr); err != nil {
		metrics.Login(false)
		return errors.Wrap(err, "parsing login response")
	}

	if lr.Data == nil || lr.Data.SessionToken == nil || *lr.Data.SessionToken == "" {
		metrics.Login(false)
		return errors.Wrap(ErrLoginFailed, "no session token in login response")
	}

	m.mu.Lock()
	m.token = *lr.Data.SessionToken
	m.expiresAt = m.now().Add(m.ttl)
	m.mu.Unlock()

	metrics.Login(true)
	ctxLogger.Info("Login successful")

	return nil
}

func (m *Manager) authenticatedToken(ctx context.Context) (string, error) {
	if err := m.EnsureAuthenticated(ctx); err != nil {
		return "", err
	}

	token, ok := m.Token()
	if !ok {
		return "", ErrNoToken
	}
	return token, nil
}

// Do runs call with a valid token.  A 401 answer invalidates the token and
// the call is retried exactly once after a fresh login; a second 401 is
// returned as ErrUnauthorized.
func (m *Manager) Do(ctx context.Context, call Call) (*transport.Response, error) {
	token, err := m.authenticatedToken(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := call(ctx, token)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	logging.Logger(ctx).Warn("Authentication failed, attempting re-login")
	m.invalidateToken(token)

	token, err = m.authenticatedToken(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "re-login after 401")
	}

	resp, err = call(ctx, token)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		m.invalidateToken(token)
		return nil, ErrUnauthorized
	}

	return resp, nil
}

// Header returns h with the session token attached
func Header(h http.Header, token string) http.Header {
	if h == nil {
		h = http.Header{}
	}
	if token != "" {
		h.Set(HeaderName, token)
	}
	return h
}
