package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Session is the bearer credential for API access. It is held by a
// SessionProvider and never cached beyond request scope by the Gateway.
type Session struct {
	AccessToken string
	UserID      string
	ExpiresAt   time.Time
}

// SessionProvider yields the current session, or nil when signed out.
// Returning nil is not an error.
type SessionProvider interface {
	Session() *Session
}

// SessionStore is a mutable in-memory SessionProvider.
type SessionStore struct {
	mu      sync.RWMutex
	session *Session
}

// NewSessionStore constructs an empty session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{}
}

// Session returns the current session or nil.
func (s *SessionStore) Session() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// Put replaces the current session.
func (s *SessionStore) Put(session *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = session
}

// Clear drops the current session.
func (s *SessionStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = nil
}

// Navigator moves the UI to a client-side route. Injected so the gateway
// never reaches into global browser state.
type Navigator func(path string)

// AuthError indicates the remote rejected the session (401/403). The
// gateway has already performed the forced sign-out when it surfaces.
type AuthError struct {
	Status int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("client: session rejected (HTTP %d)", e.Status)
}

// TransportError indicates a network or remote failure; the HTTP status,
// when known, is embedded in the message.
type TransportError struct {
	Status  int
	Message string
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("client: request failed (HTTP %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("client: request failed: %s", e.Message)
}

// GatewayConfig wires the gateway's collaborators explicitly.
type GatewayConfig struct {
	BaseURL    string
	HTTPClient *http.Client
	Sessions   SessionProvider
	State      StateStore
	Navigate   Navigator
	// SignOut is the auth collaborator's sign-out; its failure is swallowed
	// so the user-visible outcome (logged out, back at root) always happens.
	SignOut func(ctx context.Context) error
	Logger  *zap.Logger
}

// Gateway performs authenticated requests against the BrandBond API and
// enforces the forced sign-out contract on rejected sessions.
type Gateway struct {
	baseURL    string
	httpClient *http.Client
	sessions   SessionProvider
	state      StateStore
	navigate   Navigator
	signOut    func(ctx context.Context) error
	logger     *zap.Logger
}

// NewGateway constructs a Gateway.
func NewGateway(cfg GatewayConfig) (*Gateway, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("client: base url required")
	}
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("client: session provider required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
		sessions:   cfg.Sessions,
		state:      cfg.State,
		navigate:   cfg.Navigate,
		signOut:    cfg.SignOut,
		logger:     logger,
	}, nil
}

// Session returns the current session or nil; it never fails for "no
// session".
func (g *Gateway) Session() *Session {
	return g.sessions.Session()
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

// Do issues one API request. A nil out skips decoding. 401/403 responses
// trigger the forced sign-out flow before returning an AuthError.
func (g *Gateway) Do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return &TransportError{Message: err.Error()}
		}
		reader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return &TransportError{Message: err.Error()}
	}
	request.Header.Set("Content-Type", "application/json")
	if session := g.sessions.Session(); session != nil {
		request.Header.Set("Authorization", "Bearer "+session.AccessToken)
	}

	response, err := g.httpClient.Do(request)
	if err != nil {
		return &TransportError{Message: err.Error()}
	}
	defer response.Body.Close()

	raw, err := io.ReadAll(response.Body)
	if err != nil {
		return &TransportError{Status: response.StatusCode, Message: err.Error()}
	}

	if response.StatusCode == http.StatusUnauthorized || response.StatusCode == http.StatusForbidden {
		g.ForceSignOut(ctx)
		return &AuthError{Status: response.StatusCode}
	}

	var parsed envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return &TransportError{Status: response.StatusCode, Message: "malformed response body"}
		}
	}

	if response.StatusCode < 200 || response.StatusCode > 299 {
		message := parsed.Error
		if message == "" {
			message = http.StatusText(response.StatusCode)
		}
		return &TransportError{Status: response.StatusCode, Message: message}
	}

	if out != nil {
		if len(parsed.Data) == 0 {
			return &TransportError{Status: response.StatusCode, Message: "missing data envelope"}
		}
		if err := json.Unmarshal(parsed.Data, out); err != nil {
			return &TransportError{Status: response.StatusCode, Message: err.Error()}
		}
	}
	return nil
}

// ForceSignOut runs the sign-out flow: best-effort collaborator sign-out,
// clear both persisted keys, navigate to the root route. Secondary
// failures are logged and swallowed.
func (g *Gateway) ForceSignOut(ctx context.Context) {
	if g.signOut != nil {
		if err := g.signOut(ctx); err != nil {
			g.logger.Warn("sign-out collaborator failed", zap.Error(err))
		}
	}
	if g.state != nil {
		if err := g.state.Delete(KeyLastRoute); err != nil {
			g.logger.Warn("failed to clear last route", zap.Error(err))
		}
		if err := g.state.Delete(KeyRegistrationDraft); err != nil {
			g.logger.Warn("failed to clear registration draft", zap.Error(err))
		}
	}
	if g.navigate != nil {
		g.navigate("/")
	}
}
