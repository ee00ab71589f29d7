package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	gosync "sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s3gear/s3gear/internal/config"
	"github.com/s3gear/s3gear/internal/credential"
	"github.com/s3gear/s3gear/internal/nso"
	"github.com/s3gear/s3gear/internal/splatnet"
)

// memStore is an in-memory Store.
type memStore struct {
	mu    gosync.Mutex
	creds credential.Credentials
	saves []credential.Credentials
	err   error
}

func (s *memStore) Credentials() credential.Credentials {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.creds
}

func (s *memStore) SaveCredentials(c credential.Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}

	s.creds = c
	s.saves = append(s.saves, c)

	return nil
}

// fakeDeriver hands out numbered tokens and can block until released.
type fakeDeriver struct {
	calls    atomic.Int32
	sessions []string
	mu       gosync.Mutex
	locale   credential.Locale
	manual   bool
	err      error
	release  chan struct{}
	started  chan struct{}
}

func (d *fakeDeriver) Derive(_ context.Context, session string, _ credential.Locale) (*nso.Tokens, error) {
	n := d.calls.Add(1)

	d.mu.Lock()
	d.sessions = append(d.sessions, session)
	d.mu.Unlock()

	if d.started != nil {
		close(d.started)
		d.started = nil
	}

	if d.release != nil {
		<-d.release
	}

	if d.err != nil {
		return nil, d.err
	}

	loc := d.locale
	if loc.IsZero() {
		loc = credential.Locale{Lang: "fr-FR", Country: "FR"}
	}

	return &nso.Tokens{
		Access:      fmt.Sprintf("gtoken-%d", n),
		Bullet:      fmt.Sprintf("bullet-%d", n),
		Locale:      loc,
		AccountName: "Agent",
		Manual:      d.manual,
	}, nil
}

type fakeValidator struct {
	valid bool
	err   error
	calls int
}

func (v *fakeValidator) IsValid(context.Context) (bool, error) {
	v.calls++

	return v.valid, v.err
}

// fakeQuerier rejects while the stored bullet token is in reject.
type fakeQuerier struct {
	store  *memStore
	reject map[string]bool
	calls  []string
}

func (q *fakeQuerier) Query(_ context.Context, _ string, _ any) (json.RawMessage, error) {
	bullet := q.store.Credentials().Bullet
	q.calls = append(q.calls, bullet)

	if q.reject[bullet] {
		return nil, &splatnet.APIError{StatusCode: 401, Endpoint: "/api/graphql", Err: splatnet.ErrTokenRejected}
	}

	return json.RawMessage(`{"data":{}}`), nil
}

type fakeAuth struct {
	session string
	err     error
	calls   int
}

func (a *fakeAuth) Login(context.Context) (string, error) {
	a.calls++

	return a.session, a.err
}

func storedCreds() credential.Credentials {
	return credential.Credentials{
		Session: "session",
		Access:  "gtoken-0",
		Bullet:  "bullet-0",
		Locale:  credential.Locale{Lang: "ja-JP", Country: "JP"},
	}
}

func TestNewManager_InitialState(t *testing.T) {
	tests := []struct {
		creds credential.Credentials
		want  State
	}{
		{credential.Credentials{}, StateNoCredential},
		{credential.Credentials{Session: credential.ManualSession}, StateManual},
		{storedCreds(), StateTokensValid},
	}

	for _, tt := range tests {
		m := NewManager(Deps{Store: &memStore{creds: tt.creds}}, nil)
		assert.Equal(t, tt.want, m.State(), tt.creds.String())
	}
}

func TestPrepare_BlankTokensRefreshWithoutProbe(t *testing.T) {
	store := &memStore{creds: storedCreds().WithoutTokens()}
	deriver := &fakeDeriver{}
	validator := &fakeValidator{valid: true}

	m := NewManager(Deps{Store: store, Deriver: deriver, Validator: validator}, nil)

	require.NoError(t, m.Prepare(context.Background()))
	assert.Equal(t, int32(1), deriver.calls.Load())
	assert.Zero(t, validator.calls)
	assert.Equal(t, "gtoken-1", store.creds.Access)
	assert.Equal(t, "bullet-1", store.creds.Bullet)
	assert.Equal(t, StateTokensValid, m.State())
}

func TestPrepare_ValidTokensUntouched(t *testing.T) {
	store := &memStore{creds: storedCreds()}
	deriver := &fakeDeriver{}
	validator := &fakeValidator{valid: true}

	m := NewManager(Deps{Store: store, Deriver: deriver, Validator: validator}, nil)

	require.NoError(t, m.Prepare(context.Background()))
	assert.Zero(t, deriver.calls.Load())
	assert.Equal(t, 1, validator.calls)
	assert.Empty(t, store.saves)
}

func TestPrepare_ExpiredTokensRefreshed(t *testing.T) {
	store := &memStore{creds: storedCreds()}
	deriver := &fakeDeriver{}

	m := NewManager(Deps{Store: store, Deriver: deriver, Validator: &fakeValidator{}}, nil)

	require.NoError(t, m.Prepare(context.Background()))
	assert.Equal(t, int32(1), deriver.calls.Load())
	assert.Equal(t, "gtoken-1", store.creds.Access)
}

func TestPrepare_ValidatorError(t *testing.T) {
	boom := errors.New("network down")
	store := &memStore{creds: storedCreds()}
	deriver := &fakeDeriver{}

	m := NewManager(Deps{Store: store, Deriver: deriver, Validator: &fakeValidator{err: boom}}, nil)

	err := m.Prepare(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Zero(t, deriver.calls.Load())
}

func TestRefresh_LocaleMerge(t *testing.T) {
	tests := []struct {
		name   string
		stored credential.Locale
		want   credential.Locale
	}{
		{"user language wins, account country adopted", credential.Locale{Lang: "ja-JP", Country: "JP"}, credential.Locale{Lang: "ja-JP", Country: "FR"}},
		{"no user language takes account language", credential.Locale{}, credential.Locale{Lang: "fr-FR", Country: "FR"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			creds := storedCreds()
			creds.Locale = tt.stored
			store := &memStore{creds: creds}

			m := NewManager(Deps{Store: store, Deriver: &fakeDeriver{}}, nil)

			require.NoError(t, m.Refresh(context.Background(), ReasonForced))
			assert.Equal(t, tt.want, store.creds.Locale)
		})
	}
}

func TestRefresh_ManualTokens(t *testing.T) {
	creds := credential.Credentials{Session: credential.ManualSession, Locale: credential.Locale{Lang: "de-DE", Country: "DE"}}
	store := &memStore{creds: creds}
	deriver := &fakeDeriver{manual: true, locale: credential.DefaultLocale}

	m := NewManager(Deps{Store: store, Deriver: deriver}, nil)

	require.NoError(t, m.Refresh(context.Background(), ReasonBlank))
	assert.Equal(t, StateManual, m.State())
	assert.Equal(t, credential.ManualSession, store.creds.Session)
	assert.Equal(t, credential.Locale{Lang: "de-DE", Country: "DE"}, store.creds.Locale)
	assert.Equal(t, []string{credential.ManualSession}, deriver.sessions)
}

func TestRefresh_NoSessionLogsIn(t *testing.T) {
	store := &memStore{}
	deriver := &fakeDeriver{}
	auth := &fakeAuth{session: "new-session"}

	m := NewManager(Deps{Store: store, Deriver: deriver, Auth: auth}, nil)
	assert.Equal(t, StateNoCredential, m.State())

	require.NoError(t, m.Refresh(context.Background(), ReasonBlank))

	assert.Equal(t, 1, auth.calls)
	assert.Equal(t, []string{"new-session"}, deriver.sessions)
	require.Len(t, store.saves, 2)
	assert.Equal(t, "new-session", store.saves[0].Session)
	assert.False(t, store.saves[0].HasTokens())
	assert.Equal(t, "gtoken-1", store.saves[1].Access)
	assert.Equal(t, StateTokensValid, m.State())
}

func TestRefresh_LoginDeclined(t *testing.T) {
	store := &memStore{}
	deriver := &fakeDeriver{}
	auth := &fakeAuth{err: fmt.Errorf("%w: declined", nso.ErrCredentialAbsent)}

	m := NewManager(Deps{Store: store, Deriver: deriver, Auth: auth}, nil)

	err := m.Refresh(context.Background(), ReasonBlank)
	require.ErrorIs(t, err, nso.ErrCredentialAbsent)
	assert.Zero(t, deriver.calls.Load())
	assert.Empty(t, store.saves)
	assert.Equal(t, StateNoCredential, m.State())
}

func TestRefresh_NoAuthenticator(t *testing.T) {
	m := NewManager(Deps{Store: &memStore{}, Deriver: &fakeDeriver{}}, nil)

	err := m.Refresh(context.Background(), ReasonBlank)
	require.ErrorIs(t, err, nso.ErrCredentialAbsent)
}

func TestRefresh_EmptyLoginResult(t *testing.T) {
	m := NewManager(Deps{Store: &memStore{}, Deriver: &fakeDeriver{}, Auth: &fakeAuth{}}, nil)

	err := m.Refresh(context.Background(), ReasonBlank)
	require.ErrorIs(t, err, nso.ErrCredentialAbsent)
}

func TestRefresh_DerivationFailureKeepsStore(t *testing.T) {
	store := &memStore{creds: storedCreds()}
	stepErr := &nso.StepError{Step: nso.StepCoralLogin, StatusCode: 401, Err: errors.New("nope")}

	m := NewManager(Deps{Store: store, Deriver: &fakeDeriver{err: stepErr}}, nil)

	err := m.Refresh(context.Background(), ReasonExpired)
	require.ErrorIs(t, err, nso.ErrDerivationFailed)
	assert.Empty(t, store.saves)
	assert.Equal(t, storedCreds(), store.creds)
	assert.Equal(t, StateTokensValid, m.State())
}

func TestRefresh_PersistenceFailure(t *testing.T) {
	boom := errors.New("disk full")
	store := &memStore{creds: storedCreds(), err: boom}

	m := NewManager(Deps{Store: store, Deriver: &fakeDeriver{}}, nil)

	err := m.Refresh(context.Background(), ReasonExpired)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "saving tokens")
}

func TestRefresh_ConcurrentCallersShareOneDerivation(t *testing.T) {
	store := &memStore{creds: storedCreds()}
	deriver := &fakeDeriver{release: make(chan struct{}), started: make(chan struct{})}
	started := deriver.started

	m := NewManager(Deps{Store: store, Deriver: deriver}, nil)

	const callers = 5

	errs := make(chan error, callers)

	go func() { errs <- m.Refresh(context.Background(), ReasonRejected) }()

	<-started
	assert.Equal(t, StateRefreshing, m.State())

	var launched gosync.WaitGroup

	for range callers - 1 {
		launched.Add(1)

		go func() {
			launched.Done()
			errs <- m.Refresh(context.Background(), ReasonRejected)
		}()
	}

	launched.Wait()
	// Give the joiners time to reach the in-flight call.
	time.Sleep(50 * time.Millisecond)
	close(deriver.release)

	for range callers {
		require.NoError(t, <-errs)
	}

	assert.Equal(t, int32(1), deriver.calls.Load())
	assert.Len(t, store.saves, 1)
	assert.Equal(t, StateTokensValid, m.State())
}

func TestQuery_SuccessNoRefresh(t *testing.T) {
	store := &memStore{creds: storedCreds()}
	deriver := &fakeDeriver{}
	q := &fakeQuerier{store: store}

	m := NewManager(Deps{Store: store, Deriver: deriver, Client: q}, nil)

	raw, err := m.Query(context.Background(), splatnet.HomeQuery, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":{}}`, string(raw))
	assert.Zero(t, deriver.calls.Load())
}

func TestQuery_RejectedRefreshesAndRetriesOnce(t *testing.T) {
	store := &memStore{creds: storedCreds()}
	deriver := &fakeDeriver{}
	q := &fakeQuerier{store: store, reject: map[string]bool{"bullet-0": true}}

	m := NewManager(Deps{Store: store, Deriver: deriver, Client: q}, nil)

	_, err := m.Query(context.Background(), splatnet.EquipmentsQuery, nil)
	require.NoError(t, err)

	assert.Equal(t, int32(1), deriver.calls.Load())
	assert.Equal(t, []string{"bullet-0", "bullet-1"}, q.calls)
}

func TestQuery_SecondRejectionSurfaced(t *testing.T) {
	store := &memStore{creds: storedCreds()}
	deriver := &fakeDeriver{}
	q := &fakeQuerier{store: store, reject: map[string]bool{"bullet-0": true, "bullet-1": true}}

	m := NewManager(Deps{Store: store, Deriver: deriver, Client: q}, nil)

	_, err := m.Query(context.Background(), splatnet.EquipmentsQuery, nil)
	require.ErrorIs(t, err, splatnet.ErrTokenRejected)

	assert.Equal(t, int32(1), deriver.calls.Load())
	assert.Len(t, q.calls, 2)
}

func TestQuery_OtherErrorsNotRetried(t *testing.T) {
	store := &memStore{creds: storedCreds()}
	deriver := &fakeDeriver{}
	boom := errors.New("connection refused")

	m := NewManager(Deps{Store: store, Deriver: deriver, Client: querierFunc(func() error { return boom })}, nil)

	_, err := m.Query(context.Background(), splatnet.HomeQuery, nil)
	require.ErrorIs(t, err, boom)
	assert.Zero(t, deriver.calls.Load())
}

func TestQuery_RefreshFailureSurfaced(t *testing.T) {
	store := &memStore{creds: storedCreds()}
	stepErr := &nso.StepError{Step: nso.StepFTokenLogin, Err: errors.New("down")}
	q := &fakeQuerier{store: store, reject: map[string]bool{"bullet-0": true}}

	m := NewManager(Deps{Store: store, Deriver: &fakeDeriver{err: stepErr}, Client: q}, nil)

	_, err := m.Query(context.Background(), splatnet.HomeQuery, nil)
	require.ErrorIs(t, err, nso.ErrDerivationFailed)
	assert.Len(t, q.calls, 1)
}

type querierFunc func() error

func (f querierFunc) Query(context.Context, string, any) (json.RawMessage, error) {
	return nil, f()
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "no credential", StateNoCredential.String())
	assert.Equal(t, "refreshing", StateRefreshing.String())
	assert.Equal(t, "unknown", State(42).String())
}

func TestMergeLocale(t *testing.T) {
	assert.Equal(t, credential.Locale{Lang: "en-GB", Country: "GB"},
		mergeLocale(credential.Locale{Lang: "en-GB"}, credential.Locale{Lang: "fr-FR", Country: "GB"}, false))
	assert.Equal(t, credential.DefaultLocale,
		mergeLocale(credential.Locale{}, credential.DefaultLocale, true))
	assert.Equal(t, credential.Locale{Lang: "en-US", Country: "US"},
		mergeLocale(credential.Locale{}, credential.Locale{}, false))
}

func TestMergeLocale_UnsupportedAccountLocale(t *testing.T) {
	assert.Equal(t, credential.Locale{Lang: "en-US", Country: "BR"},
		mergeLocale(credential.Locale{}, credential.Locale{Lang: "pt-BR", Country: "BR"}, false))
	assert.Equal(t, credential.Locale{Lang: "ja-JP", Country: "US"},
		mergeLocale(credential.Locale{Lang: "ja-JP"}, credential.Locale{Lang: "ja-JP", Country: "not-a-country"}, false))
	assert.Equal(t, credential.Locale{Lang: "fr-FR", Country: "FR"},
		mergeLocale(credential.Locale{}, credential.Locale{Lang: "fr-fr", Country: "fr"}, false),
		"account values are canonicalized")
}

func TestRefresh_UnsupportedAccountLanguageKeepsTokens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	store, err := config.Open(path, nil, nil)
	require.NoError(t, err)
	require.NoError(t, store.SaveCredentials(credential.Credentials{Session: "session"}))

	deriver := &fakeDeriver{locale: credential.Locale{Lang: "pt-BR", Country: "BR"}}
	m := NewManager(Deps{Store: store, Deriver: deriver}, nil)

	require.NoError(t, m.Refresh(context.Background(), ReasonBlank))

	creds := store.Credentials()
	assert.Equal(t, "gtoken-1", creds.Access)
	assert.Equal(t, "bullet-1", creds.Bullet)
	assert.Equal(t, credential.Locale{Lang: "en-US", Country: "BR"}, creds.Locale)

	reloaded, err := config.Open(path, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "bullet-1", reloaded.Credentials().Bullet)
}
