package splatnet

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/s3gear/s3gear/internal/credential"
)

const bulletTokenPath = "/api/bullet_tokens"

// bulletTokenResponse is the subset of the bullet-token answer we use.
type bulletTokenResponse struct {
	BulletToken string `json:"bulletToken"`
}

// BulletToken exchanges a gtoken for a bullet token. The gtoken is passed
// explicitly rather than read from the CredentialSource: during derivation
// the new gtoken is not stored yet.
func (c *Client) BulletToken(ctx context.Context, gtoken string, loc credential.Locale) (string, error) {
	loc = loc.OrDefault()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+bulletTokenPath, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("splatnet: creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept-Language", loc.Lang)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Web-View-Ver", c.WebViewVersion(ctx))
	req.Header.Set("X-NACOUNTRY", loc.Country)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Origin", c.baseURL)
	req.Header.Set("X-Requested-With", requestedWith)
	req.AddCookie(&http.Cookie{Name: gtokenCookie, Value: gtoken})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("splatnet: requesting bullet token: %w", err)
	}
	defer resp.Body.Close()

	if err := bulletStatusError(resp); err != nil {
		return "", err
	}

	var parsed bulletTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("splatnet: decoding bullet token response: %w", err)
	}

	if parsed.BulletToken == "" {
		return "", fmt.Errorf("splatnet: bullet token response has no bulletToken")
	}

	c.logger.Debug("bullet token issued",
		slog.String("country", loc.Country),
		slog.Int("length", len(parsed.BulletToken)),
	)

	return parsed.BulletToken, nil
}

// bulletStatusError maps bullet-token statuses. 204 is a success code on the
// wire but carries no token: the account never played online.
func bulletStatusError(resp *http.Response) error {
	var sentinel error

	switch {
	case resp.StatusCode == http.StatusNoContent:
		sentinel = ErrNoOnlinePlay
	case resp.StatusCode == http.StatusUnauthorized:
		sentinel = ErrInvalidGToken
	case resp.StatusCode == http.StatusForbidden:
		sentinel = ErrObsoleteVersion
	case isSuccess(resp.StatusCode):
		return nil
	default:
		sentinel = classifyStatus(resp.StatusCode)
	}

	msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	return &APIError{
		StatusCode: resp.StatusCode,
		Endpoint:   bulletTokenPath,
		Message:    string(msg),
		Err:        sentinel,
	}
}
