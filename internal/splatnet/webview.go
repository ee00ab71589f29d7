package splatnet

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"time"
)

// WebViewVersionFallback is sent when the version cannot be scraped. The
// backend answers 403 on bullet-token requests once it is too old.
const WebViewVersionFallback = "6.0.0-30a1464a"

// webViewTTL keeps a scraped version for the life of the process.
const webViewTTL = 365 * 24 * time.Hour

// revisionPrefixLen is how many hex digits of the git revision the backend
// expects after the semantic version.
const revisionPrefixLen = 8

// maxAssetBytes caps the home page and script downloads.
const maxAssetBytes = 16 << 20

var (
	mainScriptPattern = regexp.MustCompile(`src="(/static/js/main\.[0-9a-f]{8}\.js)"`)
	revisionPattern   = regexp.MustCompile(`=.([0-9a-f]{40}).*revision_info_not_set.*=.(\d+\.\d+\.\d+)-`)
)

// WebViewVersion returns the X-Web-View-Ver value. The first successful
// scrape is cached for the process lifetime and concurrent callers share one
// fetch. A failed scrape is not cached: the fallback is returned and the next
// call tries again.
func (c *Client) WebViewVersion(ctx context.Context) string {
	v, err := c.webView.Get(ctx, struct{}{})
	if err != nil {
		c.logger.Warn("using fallback web view version",
			slog.String("fallback", WebViewVersionFallback),
			slog.String("error", err.Error()),
		)

		return WebViewVersionFallback
	}

	return v
}

// fetchWebViewVersion loads the backend home page, follows it to the main
// script bundle and extracts "<version>-<revision[:8]>" from it.
func (c *Client) fetchWebViewVersion(ctx context.Context) (string, error) {
	page, err := c.getAsset(ctx, "/")
	if err != nil {
		return "", err
	}

	m := mainScriptPattern.FindSubmatch(page)
	if m == nil {
		return "", fmt.Errorf("splatnet: main script not found on home page")
	}

	script, err := c.getAsset(ctx, string(m[1]))
	if err != nil {
		return "", err
	}

	rm := revisionPattern.FindSubmatch(script)
	if rm == nil {
		return "", fmt.Errorf("splatnet: version info not found in %s", m[1])
	}

	version := fmt.Sprintf("%s-%s", rm[2], rm[1][:revisionPrefixLen])

	c.logger.Debug("scraped web view version", slog.String("version", version))

	return version, nil
}

// getAsset fetches a public (unauthenticated) backend asset.
func (c *Client) getAsset(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("splatnet: creating request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("splatnet: fetching %s: %w", path, err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return nil, &APIError{StatusCode: resp.StatusCode, Endpoint: path, Err: classifyStatus(resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAssetBytes))
	if err != nil {
		return nil, fmt.Errorf("splatnet: reading %s: %w", path, err)
	}

	return body, nil
}
