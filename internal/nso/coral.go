package nso

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
)

const (
	coralLoginPath      = "/v3/Account/Login"
	webServiceTokenPath = "/v2/Game/GetWebServiceToken"

	// splatnet3ServiceID is the web service id of SplatNet 3.
	splatnet3ServiceID int64 = 4834290508791808
)

// coralEnvelope wraps every coral request body.
type coralEnvelope[T any] struct {
	Parameter T `json:"parameter"`
}

type coralLoginParams struct {
	F          string `json:"f"`
	Language   string `json:"language"`
	NABirthday string `json:"naBirthday"`
	NACountry  string `json:"naCountry"`
	NAIDToken  string `json:"naIdToken"`
	RequestID  string `json:"requestId"`
	Timestamp  int64  `json:"timestamp"`
}

type webServiceTokenParams struct {
	F                 string `json:"f"`
	ID                int64  `json:"id"`
	RegistrationToken string `json:"registrationToken"`
	RequestID         string `json:"requestId"`
	Timestamp         int64  `json:"timestamp"`
}

// coralResponse is the shared coral answer shape. A non-zero Status is an
// error even on HTTP 200.
type coralResponse[T any] struct {
	Status       int    `json:"status"`
	ErrorMessage string `json:"errorMessage"`
	Result       T      `json:"result"`
}

func (r *coralResponse[T]) err() error {
	if r.Status == 0 {
		return nil
	}

	if r.ErrorMessage != "" {
		return fmt.Errorf("coral status %d: %s", r.Status, r.ErrorMessage)
	}

	return fmt.Errorf("coral status %d", r.Status)
}

type coralLoginResult struct {
	User struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	} `json:"user"`
	WebAPIServerCredential struct {
		AccessToken string `json:"accessToken"`
	} `json:"webApiServerCredential"`
}

// coralSession is the outcome of a coral login.
type coralSession struct {
	UserID      string
	AccountName string
	AccessToken string
}

func (c *Client) coralHeader(ctx context.Context, bearer string) http.Header {
	version := c.AppVersion(ctx)

	header := http.Header{}
	header.Set("X-Platform", "Android")
	header.Set("X-ProductVersion", version)
	header.Set("User-Agent", "com.nintendo.znca/"+version+"(Android/7.1.2)")
	header.Set("Accept", "application/json")

	if bearer != "" {
		header.Set("Authorization", "Bearer "+bearer)
	}

	return header
}

// coralLogin signs in to the NSO app API with the step-one proof.
func (c *Client) coralLogin(ctx context.Context, idToken string, user *UserInfo, f *fToken) (*coralSession, error) {
	body := coralEnvelope[coralLoginParams]{Parameter: coralLoginParams{
		F:          f.F,
		Language:   user.Language,
		NABirthday: user.Birthday,
		NACountry:  user.Country,
		NAIDToken:  idToken,
		RequestID:  f.RequestID,
		Timestamp:  f.Timestamp,
	}}

	var resp coralResponse[coralLoginResult]
	if err := c.postJSON(ctx, StepCoralLogin, c.endpoints.Coral+coralLoginPath, c.coralHeader(ctx, ""), body, &resp); err != nil {
		return nil, err
	}

	if err := resp.err(); err != nil {
		return nil, stepErr(StepCoralLogin, 0, err)
	}

	if resp.Result.WebAPIServerCredential.AccessToken == "" {
		return nil, stepErr(StepCoralLogin, 0, errors.New("response has no web API access token"))
	}

	return &coralSession{
		UserID:      strconv.FormatInt(resp.Result.User.ID, 10),
		AccountName: resp.Result.User.Name,
		AccessToken: resp.Result.WebAPIServerCredential.AccessToken,
	}, nil
}

type webServiceTokenResult struct {
	AccessToken string `json:"accessToken"`
}

// webServiceToken requests the SplatNet 3 gtoken with the step-two proof.
func (c *Client) webServiceToken(ctx context.Context, coral *coralSession, f *fToken) (string, error) {
	body := coralEnvelope[webServiceTokenParams]{Parameter: webServiceTokenParams{
		F:                 f.F,
		ID:                splatnet3ServiceID,
		RegistrationToken: coral.AccessToken,
		RequestID:         f.RequestID,
		Timestamp:         f.Timestamp,
	}}

	var resp coralResponse[webServiceTokenResult]

	err := c.postJSON(ctx, StepWebServiceToken, c.endpoints.Coral+webServiceTokenPath,
		c.coralHeader(ctx, coral.AccessToken), body, &resp)
	if err != nil {
		return "", err
	}

	if err := resp.err(); err != nil {
		return "", stepErr(StepWebServiceToken, 0, err)
	}

	if resp.Result.AccessToken == "" {
		return "", stepErr(StepWebServiceToken, 0, errors.New("response has no access token"))
	}

	return resp.Result.AccessToken, nil
}
