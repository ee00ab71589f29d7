package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/s3gear/s3gear/internal/credential"
	"github.com/s3gear/s3gear/internal/nso"
)

// Prompter runs the interactive parts of the credential lifecycle: the login
// paste-back, manual token entry and the first-run language choice. Without
// a terminal every prompt fails with nso.ErrCredentialAbsent instead of
// blocking on stdin.
type Prompter struct {
	in          *bufio.Reader
	out         io.Writer
	interactive bool
	handshake   *nso.Client
}

// NewPrompter creates a Prompter on the CLIContext's streams.
func NewPrompter(cc *CLIContext, handshake *nso.Client) *Prompter {
	return &Prompter{
		in:          bufio.NewReader(cc.Stdin),
		out:         cc.Stderr,
		interactive: cc.Interactive,
		handshake:   handshake,
	}
}

// stdinIsTerminal reports whether stdin can answer prompts.
func stdinIsTerminal() bool {
	fd := os.Stdin.Fd()

	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func (p *Prompter) requireTerminal(what string) error {
	if !p.interactive {
		return fmt.Errorf("%w: %s needs an interactive terminal", nso.ErrCredentialAbsent, what)
	}

	return nil
}

// readLine reads one trimmed line. EOF with no input means the user gave up.
func (p *Prompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')

	switch {
	case err == nil, errors.Is(err, io.EOF) && line != "":
		return strings.TrimSpace(line), nil
	case errors.Is(err, io.EOF):
		return "", fmt.Errorf("%w: no input", nso.ErrCredentialAbsent)
	default:
		return "", fmt.Errorf("reading input: %w", err)
	}
}

// Login walks the user through the browser sign-in and exchanges the pasted
// redirect for a session token. Typing "skip" opts out of automatic token
// generation and returns credential.ManualSession.
func (p *Prompter) Login(ctx context.Context) (string, error) {
	if err := p.requireTerminal("login"); err != nil {
		return "", err
	}

	req := p.handshake.NewLoginRequest()

	fmt.Fprintf(p.out, "\nNavigate to this URL in your browser:\n%s\n\n", req.URL)
	fmt.Fprintln(p.out, `Log in, right click the "Select this account" button, copy the link address, and paste it below.`)
	fmt.Fprintln(p.out, `Type "skip" to enter gtoken and bulletToken by hand instead.`)
	fmt.Fprint(p.out, "Link: ")

	for {
		line, err := p.readLine()
		if err != nil {
			return "", err
		}

		if line == "" {
			return "", fmt.Errorf("%w: login declined", nso.ErrCredentialAbsent)
		}

		code, err := nso.ParseRedirect(line)
		if err != nil {
			fmt.Fprint(p.out, "That link has no session_token_code. Paste it again: ")
			continue
		}

		if code == credential.ManualSession {
			return credential.ManualSession, nil
		}

		return p.handshake.ExchangeSessionToken(ctx, code, req.Verifier)
	}
}

// EnterTokens asks for a gtoken and bulletToken taken from a proxy capture.
func (p *Prompter) EnterTokens(_ context.Context) (string, string, error) {
	if err := p.requireTerminal("manual token entry"); err != nil {
		return "", "", err
	}

	fmt.Fprintln(p.out, "\nAutomatic token generation is off; enter your tokens by hand.")
	fmt.Fprint(p.out, "gtoken: ")

	access, err := p.readLine()
	if err != nil {
		return "", "", err
	}

	fmt.Fprint(p.out, "bulletToken: ")

	bullet, err := p.readLine()
	if err != nil {
		return "", "", err
	}

	return access, bullet, nil
}

// ChooseLanguage asks for the game language on first run. An empty answer
// accepts the default.
func (p *Prompter) ChooseLanguage() (string, error) {
	if err := p.requireTerminal("language selection"); err != nil {
		return "", err
	}

	fmt.Fprintf(p.out, "Default locale is %s. Press Enter to accept, or enter your own (%s): ",
		credential.DefaultLocale.Lang, strings.Join(credential.SupportedLanguages, ", "))

	for {
		line, err := p.readLine()
		if err != nil {
			return "", err
		}

		if line == "" {
			return credential.DefaultLocale.Lang, nil
		}

		lang, err := credential.NormalizeLanguage(line)
		if err == nil {
			return lang, nil
		}

		fmt.Fprint(p.out, "Invalid language code. Please try entering it again: ")
	}
}
