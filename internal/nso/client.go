package nso

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Backoff for f-token retries.
const (
	maxFTokenRetries = 3
	baseBackoff      = 1 * time.Second
	maxBackoff       = 10 * time.Second
	backoffFactor    = 2.0
	jitterFraction   = 0.25

	maxErrorBody = 4 << 10
)

// Endpoints are the service origins the handshake talks to. Tests point them
// at httptest servers.
type Endpoints struct {
	Accounts string // Nintendo Account OAuth endpoints
	API      string // Nintendo Account user API
	Coral    string // Nintendo Switch Online app API
	AppStore string // app listing scraped for the current app version
	FGen     string // f-token service
}

// DefaultEndpoints returns the production origins with fGen as the f-token
// service URL.
func DefaultEndpoints(fGen string) Endpoints {
	return Endpoints{
		Accounts: "https://accounts.nintendo.com",
		API:      "https://api.accounts.nintendo.com",
		Coral:    "https://api-lp1.znc.srv.nintendo.com",
		AppStore: "https://apps.apple.com/us/app/nintendo-switch-online/id1234806557",
		FGen:     fGen,
	}
}

// Client speaks to the Nintendo Account, NSO app and f-token services.
type Client struct {
	endpoints  Endpoints
	httpClient *http.Client
	logger     *slog.Logger

	appVersion *appVersionCache

	// sleepFunc is called to wait between retries. Defaults to timeSleep.
	// Tests override this to avoid real delays.
	sleepFunc func(ctx context.Context, d time.Duration) error
}

// NewClient creates a handshake client.
func NewClient(endpoints Endpoints, httpClient *http.Client, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	c := &Client{
		endpoints:  endpoints,
		httpClient: httpClient,
		logger:     logger,
		sleepFunc:  timeSleep,
	}

	c.appVersion = newAppVersionCache(c)

	return c
}

// postJSON sends body as JSON and decodes a 2xx answer into out. Failures
// are reported as *StepError for step.
func (c *Client) postJSON(ctx context.Context, step Step, target string, header http.Header, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return stepErr(step, 0, fmt.Errorf("encoding request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return stepErr(step, 0, fmt.Errorf("creating request: %w", err))
	}

	for k, v := range header {
		req.Header[k] = v
	}

	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	return c.do(step, req, out)
}

// postForm sends a form-encoded POST and decodes a 2xx answer into out.
func (c *Client) postForm(ctx context.Context, step Step, target string, header http.Header, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		return stepErr(step, 0, fmt.Errorf("creating request: %w", err))
	}

	for k, v := range header {
		req.Header[k] = v
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return c.do(step, req, out)
}

// getJSON sends a GET and decodes a 2xx answer into out.
func (c *Client) getJSON(ctx context.Context, step Step, target string, header http.Header, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return stepErr(step, 0, fmt.Errorf("creating request: %w", err))
	}

	for k, v := range header {
		req.Header[k] = v
	}

	return c.do(step, req, out)
}

func (c *Client) do(step Step, req *http.Request, out any) error {
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return stepErr(step, 0, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("handshake request",
		slog.String("step", string(step)),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

		return stepErr(step, resp.StatusCode, fmt.Errorf("unexpected response: %s", bytes.TrimSpace(msg)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return stepErr(step, resp.StatusCode, fmt.Errorf("decoding response: %w", err))
	}

	return nil
}

// calcBackoff computes exponential backoff with ±25% jitter.
func calcBackoff(attempt int) time.Duration {
	backoff := float64(baseBackoff) * math.Pow(backoffFactor, float64(attempt))
	if backoff > float64(maxBackoff) {
		backoff = float64(maxBackoff)
	}

	jitter := backoff * jitterFraction * (rand.Float64()*2 - 1) //nolint:gosec // jitter does not need crypto rand
	backoff += jitter

	return time.Duration(backoff)
}

// timeSleep waits for the given duration or until the context is canceled.
// It is the default sleepFunc for Client.
func timeSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
