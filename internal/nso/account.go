package nso

import (
	"context"
	"errors"
	"net/http"

	"github.com/s3gear/s3gear/internal/credential"
)

const (
	userInfoPath = "/2.0.0/users/me"

	sessionTokenGrant = "urn:ietf:params:oauth:grant-type:jwt-bearer-session-token"
)

type accountTokenRequest struct {
	ClientID     string `json:"client_id"`
	SessionToken string `json:"session_token"`
	GrantType    string `json:"grant_type"`
}

// accountTokens are the Nintendo Account tokens minted from a session token.
type accountTokens struct {
	AccessToken string `json:"access_token"`
	IDToken     string `json:"id_token"`
}

// UserInfo is the subset of the Nintendo Account profile the handshake uses.
type UserInfo struct {
	ID       string `json:"id"`
	Nickname string `json:"nickname"`
	Language string `json:"language"`
	Country  string `json:"country"`
	Birthday string `json:"birthday"`
}

// Locale returns the account's language and country.
func (u *UserInfo) Locale() credential.Locale {
	return credential.Locale{Lang: u.Language, Country: u.Country}
}

func (c *Client) accountHeader(ctx context.Context, lang string) http.Header {
	header := http.Header{}
	header.Set("User-Agent", c.accountsUserAgent(ctx))
	header.Set("Accept-Language", lang)
	header.Set("Accept", "application/json")

	return header
}

// accountTokens exchanges the session token for an id token and an access
// token.
func (c *Client) accountTokens(ctx context.Context, session, lang string) (*accountTokens, error) {
	body := accountTokenRequest{
		ClientID:     clientID,
		SessionToken: session,
		GrantType:    sessionTokenGrant,
	}

	var tok accountTokens
	if err := c.postJSON(ctx, StepIDToken, c.endpoints.Accounts+tokenPath, c.accountHeader(ctx, lang), body, &tok); err != nil {
		return nil, err
	}

	if tok.IDToken == "" || tok.AccessToken == "" {
		return nil, stepErr(StepIDToken, 0, errors.New("response is missing id_token or access_token"))
	}

	return &tok, nil
}

// userInfo loads the account profile.
func (c *Client) userInfo(ctx context.Context, accessToken, lang string) (*UserInfo, error) {
	header := c.accountHeader(ctx, lang)
	header.Set("Authorization", "Bearer "+accessToken)

	var info UserInfo
	if err := c.getJSON(ctx, StepUserInfo, c.endpoints.API+userInfoPath, header, &info); err != nil {
		return nil, err
	}

	if info.ID == "" {
		return nil, stepErr(StepUserInfo, 0, errors.New("response has no user id"))
	}

	return &info, nil
}
