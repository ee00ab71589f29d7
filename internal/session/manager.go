package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	gosync "sync"

	"golang.org/x/sync/singleflight"

	"github.com/s3gear/s3gear/internal/credential"
	"github.com/s3gear/s3gear/internal/nso"
	"github.com/s3gear/s3gear/internal/splatnet"
)

const refreshKey = "refresh"

// Store persists the credential set. config.Store is the real implementation.
type Store interface {
	Credentials() credential.Credentials
	SaveCredentials(credential.Credentials) error
}

// Deriver regenerates tokens from a session credential.
type Deriver interface {
	Derive(ctx context.Context, session string, loc credential.Locale) (*nso.Tokens, error)
}

// Validator checks the stored tokens against the backend.
type Validator interface {
	IsValid(ctx context.Context) (bool, error)
}

// Querier runs one authenticated persisted query.
type Querier interface {
	Query(ctx context.Context, queryID string, variables any) (json.RawMessage, error)
}

// Authenticator obtains a session credential interactively. It returns the
// new session token or credential.ManualSession when the user opts out, and
// an error wrapping nso.ErrCredentialAbsent when the user declines.
type Authenticator interface {
	Login(ctx context.Context) (string, error)
}

// Deps are the collaborators of a Manager. Auth may be nil, in which case a
// missing session credential is fatal.
type Deps struct {
	Store     Store
	Deriver   Deriver
	Validator Validator
	Client    Querier
	Auth      Authenticator
}

// Manager drives the credential lifecycle.
type Manager struct {
	deps   Deps
	logger *slog.Logger

	group singleflight.Group

	mu    gosync.Mutex
	state State
}

// NewManager creates a Manager. The initial state is inferred from the store.
func NewManager(deps Deps, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		deps:   deps,
		logger: logger,
		state:  stateFor(deps.Store.Credentials()),
	}
}

// State reports the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	prev := m.state
	m.state = s
	m.mu.Unlock()

	if prev != s {
		m.logger.Debug("session state", slog.String("from", prev.String()), slog.String("to", s.String()))
	}
}

// Prepare makes sure usable tokens are stored before the first query: blank
// tokens are regenerated outright, present ones are probed and regenerated
// if the backend no longer accepts them.
func (m *Manager) Prepare(ctx context.Context) error {
	creds := m.deps.Store.Credentials()

	if !creds.HasTokens() || creds.Session == "" {
		return m.Refresh(ctx, ReasonBlank)
	}

	valid, err := m.deps.Validator.IsValid(ctx)
	if err != nil {
		return fmt.Errorf("session: validating tokens: %w", err)
	}

	if !valid {
		return m.Refresh(ctx, ReasonExpired)
	}

	m.setState(stateFor(creds))

	return nil
}

// Refresh regenerates and persists the short-lived tokens. Concurrent calls
// share one handshake and all observe its result.
func (m *Manager) Refresh(ctx context.Context, reason Reason) error {
	_, err, shared := m.group.Do(refreshKey, func() (any, error) {
		return nil, m.refresh(ctx, reason)
	})

	if shared {
		m.logger.Debug("joined in-flight token refresh", slog.String("reason", string(reason)))
	}

	return err
}

func (m *Manager) refresh(ctx context.Context, reason Reason) error {
	creds := m.deps.Store.Credentials()
	resting := stateFor(creds)

	if creds.Session == "" {
		session, err := m.login(ctx)
		if err != nil {
			m.setState(StateNoCredential)
			return err
		}

		creds = creds.WithoutTokens()
		creds.Session = session

		if err := m.deps.Store.SaveCredentials(creds); err != nil {
			m.setState(StateNoCredential)
			return fmt.Errorf("session: saving session credential: %w", err)
		}
	}

	m.setState(StateRefreshing)

	m.logger.Info("tokens need replacing",
		slog.String("reason", string(reason)),
		slog.Bool("manual", creds.IsManual()),
	)

	tokens, err := m.deps.Deriver.Derive(ctx, creds.Session, creds.Locale)
	if err != nil {
		m.setState(resting)
		return err
	}

	updated := creds.WithTokens(tokens.Access, tokens.Bullet)
	updated.Locale = mergeLocale(creds.Locale, tokens.Locale, tokens.Manual)

	if err := m.deps.Store.SaveCredentials(updated); err != nil {
		m.setState(resting)
		return fmt.Errorf("session: saving tokens: %w", err)
	}

	if tokens.Manual {
		m.setState(StateManual)
		m.logger.Info("wrote manually entered tokens")
	} else {
		m.setState(StateTokensValid)
		m.logger.Info("wrote new tokens",
			slog.String("account", tokens.AccountName),
			slog.String("locale", updated.Locale.String()),
		)
	}

	return nil
}

func (m *Manager) login(ctx context.Context) (string, error) {
	if m.deps.Auth == nil {
		return "", fmt.Errorf("%w: run the login command first", nso.ErrCredentialAbsent)
	}

	m.setState(StateAwaitingLogin)

	session, err := m.deps.Auth.Login(ctx)
	if err != nil {
		return "", err
	}

	if session == "" {
		return "", nso.ErrCredentialAbsent
	}

	return session, nil
}

// Query runs a persisted query. When the backend rejects the tokens, they
// are regenerated once and the query is retried once; a second rejection is
// returned to the caller.
func (m *Manager) Query(ctx context.Context, queryID string, variables any) (json.RawMessage, error) {
	raw, err := m.deps.Client.Query(ctx, queryID, variables)
	if err == nil || !errors.Is(err, splatnet.ErrTokenRejected) {
		return raw, err
	}

	m.logger.Info("tokens rejected, regenerating", slog.String("query", queryID))

	if refreshErr := m.Refresh(ctx, ReasonRejected); refreshErr != nil {
		return nil, refreshErr
	}

	return m.deps.Client.Query(ctx, queryID, variables)
}
