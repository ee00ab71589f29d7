package nso

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
)

// f-token hash methods.
const (
	hashMethodLogin  = 1
	hashMethodWebAPI = 2
)

// fTokenUserAgent identifies this tool to the f-token service.
const fTokenUserAgent = "s3gear"

type fTokenRequest struct {
	Token       string `json:"token"`
	HashMethod  int    `json:"hash_method"`
	RequestID   string `json:"request_id,omitempty"`
	NAID        string `json:"na_id,omitempty"`
	CoralUserID string `json:"coral_user_id,omitempty"`
}

// fToken is the f-token service answer.
type fToken struct {
	F            string `json:"f"`
	RequestID    string `json:"request_id"`
	Timestamp    int64  `json:"timestamp"`
	Error        string `json:"error,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// diagnostic renders the service's own error fields, if any.
func (f *fToken) diagnostic() string {
	switch {
	case f.Error != "" && f.ErrorMessage != "":
		return f.Error + ": " + f.ErrorMessage
	case f.Error != "":
		return f.Error
	default:
		return f.ErrorMessage
	}
}

// requestFToken asks the f-token service for a proof. Transport errors, 5xx
// and 429 answers are retried up to maxFTokenRetries times with the same
// request_id; anything else fails immediately.
func (c *Client) requestFToken(ctx context.Context, step Step, req fTokenRequest) (*fToken, error) {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	for attempt := 0; ; attempt++ {
		f, retryable, err := c.requestFTokenOnce(ctx, step, req)
		if err == nil {
			if f.RequestID == "" {
				f.RequestID = req.RequestID
			}

			return f, nil
		}

		if !retryable || attempt >= maxFTokenRetries {
			return nil, err
		}

		backoff := calcBackoff(attempt)

		c.logger.Warn("retrying f-token request",
			slog.String("step", string(step)),
			slog.Int("attempt", attempt+1),
			slog.Duration("backoff", backoff),
			slog.String("error", err.Error()),
		)

		if sleepErr := c.sleepFunc(ctx, backoff); sleepErr != nil {
			return nil, stepErr(step, 0, sleepErr)
		}
	}
}

func (c *Client) requestFTokenOnce(ctx context.Context, step Step, body fTokenRequest) (*fToken, bool, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, false, stepErr(step, 0, fmt.Errorf("encoding request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoints.FGen, bytes.NewReader(payload))
	if err != nil {
		return nil, false, stepErr(step, 0, fmt.Errorf("creating request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("User-Agent", fTokenUserAgent)
	req.Header.Set("X-znca-Platform", "Android")
	req.Header.Set("X-znca-Version", c.AppVersion(ctx))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, stepErr(step, 0, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, stepErr(step, resp.StatusCode, fmt.Errorf("reading response: %w", err))
	}

	var f fToken

	decodeErr := json.Unmarshal(raw, &f)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		retryable := resp.StatusCode == http.StatusTooManyRequests ||
			resp.StatusCode >= http.StatusInternalServerError

		msg := f.diagnostic()
		if decodeErr != nil || msg == "" {
			msg = string(bytes.TrimSpace(raw))
		}

		return nil, retryable, stepErr(step, resp.StatusCode, fmt.Errorf("f-token service: %s", msg))
	}

	if decodeErr != nil {
		return nil, false, stepErr(step, resp.StatusCode, fmt.Errorf("decoding response: %w", decodeErr))
	}

	if f.F == "" {
		msg := f.diagnostic()
		if msg == "" {
			msg = "response has no f"
		}

		return nil, false, stepErr(step, resp.StatusCode, errors.New(msg))
	}

	return &f, false, nil
}
