package nso

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/s3gear/s3gear/internal/credential"
)

const testAppVersion = "2.10.1"

// fakeNintendo serves every endpoint of the handshake from one mux.
type fakeNintendo struct {
	t *testing.T

	mu       sync.Mutex
	hits     map[string]int
	failPath map[string]int
	fReqs    []fTokenRequest
	fHeaders []http.Header
	coralReq map[string]any
	wstReq   map[string]any
	wstAuth  string
	fStatus  []int // per-call status overrides for /f, consumed in order

	coralLoginBody string // replaces the coral login answer when set
}

func newFakeNintendo(t *testing.T) (*fakeNintendo, *httptest.Server) {
	t.Helper()

	f := &fakeNintendo{t: t, hits: map[string]int{}, failPath: map[string]int{}}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /app", f.wrap(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `<p class="whats-new__latest__version">Version `+testAppVersion+`</p>`)
	}))

	mux.HandleFunc("POST /connect/1.0.0/api/session_token", f.wrap(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())

		if r.PostForm.Get("client_id") != clientID || r.PostForm.Get("session_token_code_verifier") == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		writeJSON(w, map[string]string{"session_token": "st-" + r.PostForm.Get("session_token_code"), "code": "x"})
	}))

	mux.HandleFunc("POST /connect/1.0.0/api/token", f.wrap(func(w http.ResponseWriter, r *http.Request) {
		var req accountTokenRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		if req.SessionToken != "good-session" || req.GrantType != sessionTokenGrant {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		writeJSON(w, accountTokens{AccessToken: "na-access", IDToken: "na-id"})
	}))

	mux.HandleFunc("GET /2.0.0/users/me", f.wrap(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer na-access" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		writeJSON(w, UserInfo{ID: "na-user", Nickname: "nick", Language: "fr-FR", Country: "FR", Birthday: "1990-01-01"})
	}))

	mux.HandleFunc("POST /f", f.wrap(func(w http.ResponseWriter, r *http.Request) {
		var req fTokenRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		f.mu.Lock()
		f.fReqs = append(f.fReqs, req)
		f.fHeaders = append(f.fHeaders, r.Header.Clone())

		status := http.StatusOK
		if len(f.fStatus) > 0 {
			status = f.fStatus[0]
			f.fStatus = f.fStatus[1:]
		}
		f.mu.Unlock()

		if status != http.StatusOK {
			w.WriteHeader(status)
			writeJSON(w, fToken{Error: "upstream", ErrorMessage: "busy"})

			return
		}

		writeJSON(w, fToken{F: "f-" + req.Token, RequestID: req.RequestID, Timestamp: 1700000000000})
	}))

	mux.HandleFunc("POST /v3/Account/Login", f.wrap(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		f.mu.Lock()
		f.coralReq = body["parameter"].(map[string]any)
		override := f.coralLoginBody
		f.mu.Unlock()

		if override != "" {
			_, _ = io.WriteString(w, override)
			return
		}

		_, _ = io.WriteString(w, `{"status":0,"result":{"user":{"id":123456789012,"name":"Agent"},`+
			`"webApiServerCredential":{"accessToken":"coral-access"}}}`)
	}))

	mux.HandleFunc("POST /v2/Game/GetWebServiceToken", f.wrap(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		f.mu.Lock()
		f.wstReq = body["parameter"].(map[string]any)
		f.wstAuth = r.Header.Get("Authorization")
		f.mu.Unlock()

		_, _ = io.WriteString(w, `{"status":0,"result":{"accessToken":"the-gtoken","expiresIn":7200}}`)
	}))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return f, srv
}

// wrap counts hits and applies failPath overrides.
func (f *fakeNintendo) wrap(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.hits[r.URL.Path]++
		status, fail := f.failPath[r.URL.Path]
		f.mu.Unlock()

		if fail {
			w.WriteHeader(status)
			_, _ = io.WriteString(w, `{"error":"forced"}`)

			return
		}

		h(w, r)
	}
}

func (f *fakeNintendo) hitCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.hits[path]
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func testEndpoints(url string) Endpoints {
	return Endpoints{
		Accounts: url,
		API:      url,
		Coral:    url,
		AppStore: url + "/app",
		FGen:     url + "/f",
	}
}

// sleepRecorder is a sleepFunc that records durations and returns at once.
type sleepRecorder struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sleeps = append(s.sleeps, d)

	return nil
}

func newTestClient(t *testing.T, url string) (*Client, *sleepRecorder) {
	t.Helper()

	rec := &sleepRecorder{}
	c := NewClient(testEndpoints(url), http.DefaultClient, slog.Default())
	c.sleepFunc = rec.sleep

	return c, rec
}

// fakeBullets is a BulletIssuer.
type fakeBullets struct {
	gtoken string
	loc    credential.Locale
	err    error
}

func (b *fakeBullets) BulletToken(_ context.Context, gtoken string, loc credential.Locale) (string, error) {
	b.gtoken = gtoken
	b.loc = loc

	if b.err != nil {
		return "", b.err
	}

	return "bullet-for-" + gtoken, nil
}

// fakeManual is a ManualEntry.
type fakeManual struct {
	access, bullet string
	err            error
	calls          int
}

func (m *fakeManual) EnterTokens(context.Context) (string, string, error) {
	m.calls++

	return m.access, m.bullet, m.err
}
