package splatnet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/motoki317/sc"

	"github.com/s3gear/s3gear/internal/credential"
)

// Backend endpoints and fixed header values.
const (
	DefaultBaseURL = "https://api.lp1.av5ja.srv.nintendo.net"

	// DefaultUserAgent mimics the in-app web view. Overridable with the
	// app_user_agent config key.
	DefaultUserAgent = "Mozilla/5.0 (Linux; Android 11; Pixel 5) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) " +
		"Chrome/94.0.4606.61 Mobile Safari/537.36"

	graphQLPath   = "/api/graphql"
	requestedWith = "com.nintendo.znca"
	gtokenCookie  = "_gtoken"

	// maxErrorBody caps how much of an error response is kept for messages.
	maxErrorBody = 4 << 10
)

// CredentialSource provides the live credential set. config.Store is the
// real implementation.
type CredentialSource interface {
	Credentials() credential.Credentials
}

// Client is an HTTP client for the SplatNet 3 backend. It builds headers
// fresh on every request from the CredentialSource, because the bullet token
// may have been rotated since the last call. It never retries: recovering
// from a rejected token is the caller's decision.
type Client struct {
	baseURL    string
	httpClient *http.Client
	creds      CredentialSource
	userAgent  string
	logger     *slog.Logger

	webView *sc.Cache[struct{}, string]
}

// NewClient creates a backend client.
// baseURL is typically DefaultBaseURL; an empty userAgent selects
// DefaultUserAgent.
func NewClient(
	baseURL string,
	httpClient *http.Client,
	creds CredentialSource,
	userAgent string,
	logger *slog.Logger,
) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	c := &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		creds:      creds,
		userAgent:  userAgent,
		logger:     logger,
	}

	c.webView = sc.NewMust(func(ctx context.Context, _ struct{}) (string, error) {
		return c.fetchWebViewVersion(ctx)
	}, webViewTTL, webViewTTL)

	return c
}

// BaseURL returns the backend origin.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// graphQLBody is the persisted-query envelope.
type graphQLBody struct {
	Extensions graphQLExtensions `json:"extensions"`
	Variables  any               `json:"variables"`
}

type graphQLExtensions struct {
	PersistedQuery persistedQuery `json:"persistedQuery"`
}

type persistedQuery struct {
	Version    int    `json:"version"`
	SHA256Hash string `json:"sha256Hash"`
}

// encodeQuery renders the request body for a persisted query. nil variables
// are sent as an empty object.
func encodeQuery(queryID string, variables any) ([]byte, error) {
	if variables == nil {
		variables = struct{}{}
	}

	body, err := json.Marshal(graphQLBody{
		Extensions: graphQLExtensions{
			PersistedQuery: persistedQuery{Version: 1, SHA256Hash: queryID},
		},
		Variables: variables,
	})
	if err != nil {
		return nil, fmt.Errorf("splatnet: encoding query %s: %w", queryID, err)
	}

	return body, nil
}

// Query executes one persisted GraphQL query and returns the raw response
// body. Any non-2xx status yields an *APIError matching ErrTokenRejected.
func (c *Client) Query(ctx context.Context, queryID string, variables any) (json.RawMessage, error) {
	resp, err := c.postQuery(ctx, queryID, variables)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return nil, c.rejection(resp, queryID)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("splatnet: reading response for %s: %w", queryID, err)
	}

	if !json.Valid(body) {
		return nil, fmt.Errorf("splatnet: query %s returned invalid JSON", queryID)
	}

	c.logger.Debug("query succeeded",
		slog.String("query", queryID),
		slog.Int("status", resp.StatusCode),
		slog.Int("bytes", len(body)),
	)

	return body, nil
}

// Probe executes a persisted query and returns only the status code. The
// body is drained unread.
func (c *Client) Probe(ctx context.Context, queryID string) (int, error) {
	resp, err := c.postQuery(ctx, queryID, nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	_, _ = io.Copy(io.Discard, resp.Body)

	c.logger.Debug("probe finished",
		slog.String("query", queryID),
		slog.Int("status", resp.StatusCode),
	)

	return resp.StatusCode, nil
}

// postQuery sends one authenticated GraphQL POST.
func (c *Client) postQuery(ctx context.Context, queryID string, variables any) (*http.Response, error) {
	body, err := encodeQuery(queryID, variables)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+graphQLPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("splatnet: creating request: %w", err)
	}

	c.setGraphQLHeaders(ctx, req, c.creds.Credentials())

	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("splatnet: query %s: %w", queryID, err)
	}

	c.logger.Debug("graphql request",
		slog.String("query", queryID),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", time.Since(start)),
	)

	return resp, nil
}

// setGraphQLHeaders attaches the authenticated header set. Tokens come from
// creds, read by the caller immediately before the request.
func (c *Client) setGraphQLHeaders(ctx context.Context, req *http.Request, creds credential.Credentials) {
	loc := creds.Locale.OrDefault()

	req.Header.Set("Authorization", "Bearer "+creds.Bullet)
	req.Header.Set("Accept-Language", loc.Lang)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Web-View-Ver", c.WebViewVersion(ctx))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Origin", c.baseURL)
	req.Header.Set("X-Requested-With", requestedWith)
	req.Header.Set("Referer", fmt.Sprintf("%s?lang=%s&na_country=%s&na_lang=%s",
		c.baseURL, loc.Lang, loc.Country, loc.Lang))
	req.AddCookie(&http.Cookie{Name: gtokenCookie, Value: creds.Access})
}

// rejection builds the APIError for a non-2xx GraphQL answer.
func (c *Client) rejection(resp *http.Response, queryID string) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	c.logger.Warn("query rejected",
		slog.String("query", queryID),
		slog.Int("status", resp.StatusCode),
	)

	return &APIError{
		StatusCode: resp.StatusCode,
		Endpoint:   graphQLPath,
		Message:    string(bytes.TrimSpace(msg)),
		Err:        classifyStatus(resp.StatusCode),
		rejected:   true,
	}
}
