package nso

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/motoki317/sc"
)

// AppVersionFallback is the NSO app version reported when the store listing
// cannot be read. Coral rejects logins from versions it considers too old.
const AppVersionFallback = "2.12.0"

const (
	appVersionTTL = 24 * time.Hour
	maxPageBytes  = 4 << 20
)

var appVersionPattern = regexp.MustCompile(`whats-new__latest__version">Version (\d+\.\d+\.\d+)<`)

type appVersionCache = sc.Cache[struct{}, string]

func newAppVersionCache(c *Client) *appVersionCache {
	return sc.NewMust(func(ctx context.Context, _ struct{}) (string, error) {
		return c.fetchAppVersion(ctx)
	}, appVersionTTL, appVersionTTL)
}

// AppVersion returns the current NSO app version, scraped once from the app
// store listing. Failed scrapes fall back to AppVersionFallback and are
// retried on the next call.
func (c *Client) AppVersion(ctx context.Context) string {
	v, err := c.appVersion.Get(ctx, struct{}{})
	if err != nil {
		c.logger.Warn("using fallback app version",
			slog.String("fallback", AppVersionFallback),
			slog.String("error", err.Error()),
		)

		return AppVersionFallback
	}

	return v
}

func (c *Client) fetchAppVersion(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoints.AppStore, nil)
	if err != nil {
		return "", fmt.Errorf("nso: creating app store request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("nso: fetching app store listing: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("nso: app store listing: HTTP %d", resp.StatusCode)
	}

	page, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("nso: reading app store listing: %w", err)
	}

	m := appVersionPattern.FindSubmatch(page)
	if m == nil {
		return "", fmt.Errorf("nso: version not found in app store listing")
	}

	c.logger.Debug("scraped app version", slog.String("version", string(m[1])))

	return string(m[1]), nil
}
