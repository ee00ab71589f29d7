package nso

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/s3gear/s3gear/internal/credential"
)

// BulletIssuer exchanges a gtoken for a bullet token. splatnet.Client is the
// real implementation.
type BulletIssuer interface {
	BulletToken(ctx context.Context, gtoken string, loc credential.Locale) (string, error)
}

// ManualEntry asks the user to type in tokens by hand.
type ManualEntry interface {
	EnterTokens(ctx context.Context) (access, bullet string, err error)
}

// Tokens is the outcome of one derivation. Locale is the account's locale,
// or DefaultLocale for manually entered tokens.
type Tokens struct {
	Access      string
	Bullet      string
	Locale      credential.Locale
	AccountName string
	Manual      bool
}

// Deriver runs the full handshake from session token to bullet token.
type Deriver struct {
	client  *Client
	bullets BulletIssuer
	manual  ManualEntry
	logger  *slog.Logger
}

// NewDeriver creates a Deriver. manual may be nil when no terminal is
// available; manual-mode derivations then fail with ErrCredentialAbsent.
func NewDeriver(client *Client, bullets BulletIssuer, manual ManualEntry, logger *slog.Logger) *Deriver {
	if logger == nil {
		logger = slog.Default()
	}

	return &Deriver{client: client, bullets: bullets, manual: manual, logger: logger}
}

// Derive produces a fresh gtoken and bullet token from session. An empty
// session or the manual sentinel takes the manual-entry path without any
// network call. Each step runs at most once (f-token transport retries
// aside); the first failure is returned as a *StepError naming the step.
func (d *Deriver) Derive(ctx context.Context, session string, loc credential.Locale) (*Tokens, error) {
	if session == "" || session == credential.ManualSession {
		return d.deriveManual(ctx)
	}

	lang := loc.OrDefault().Lang

	d.logger.Info("generating new gtoken and bullet token")

	acct, err := d.client.accountTokens(ctx, session, lang)
	if err != nil {
		return nil, err
	}

	user, err := d.client.userInfo(ctx, acct.AccessToken, lang)
	if err != nil {
		return nil, err
	}

	f1, err := d.client.requestFToken(ctx, StepFTokenLogin, fTokenRequest{
		Token:      acct.IDToken,
		HashMethod: hashMethodLogin,
		NAID:       user.ID,
	})
	if err != nil {
		return nil, err
	}

	coral, err := d.client.coralLogin(ctx, acct.IDToken, user, f1)
	if err != nil {
		return nil, err
	}

	f2, err := d.client.requestFToken(ctx, StepFTokenWebAPI, fTokenRequest{
		Token:       coral.AccessToken,
		HashMethod:  hashMethodWebAPI,
		NAID:        user.ID,
		CoralUserID: coral.UserID,
	})
	if err != nil {
		return nil, err
	}

	gtoken, err := d.client.webServiceToken(ctx, coral, f2)
	if err != nil {
		return nil, err
	}

	accountLoc := user.Locale().OrDefault()

	bullet, err := d.bullets.BulletToken(ctx, gtoken, accountLoc)
	if err != nil {
		return nil, stepErr(StepBulletToken, 0, err)
	}

	d.logger.Info("tokens generated",
		slog.String("account", coral.AccountName),
		slog.String("locale", accountLoc.String()),
	)

	return &Tokens{
		Access:      gtoken,
		Bullet:      bullet,
		Locale:      accountLoc,
		AccountName: coral.AccountName,
	}, nil
}

func (d *Deriver) deriveManual(ctx context.Context) (*Tokens, error) {
	if d.manual == nil {
		return nil, fmt.Errorf("%w: manual token entry is not available", ErrCredentialAbsent)
	}

	d.logger.Info("automatic token generation is off, asking for tokens")

	access, bullet, err := d.manual.EnterTokens(ctx)
	if err != nil {
		return nil, fmt.Errorf("nso: manual token entry: %w", err)
	}

	access = credential.TrimToken(access)
	bullet = credential.TrimToken(bullet)

	if access == "" || bullet == "" {
		return nil, fmt.Errorf("%w: gtoken and bullet token are both required", ErrCredentialAbsent)
	}

	return &Tokens{
		Access: access,
		Bullet: bullet,
		Locale: credential.DefaultLocale,
		Manual: true,
	}, nil
}
