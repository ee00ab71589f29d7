package main

import (
	"net/http"

	"github.com/s3gear/s3gear/internal/nso"
	"github.com/s3gear/s3gear/internal/session"
	"github.com/s3gear/s3gear/internal/splatnet"
)

// Services holds the backend and handshake clients plus the session manager
// that ties them to the credential store, for one CLI invocation.
type Services struct {
	Backend   *splatnet.Client
	Handshake *nso.Client
	Validator *splatnet.Validator
	Manager   *session.Manager
	Prompter  *Prompter
}

// serviceEndpoints are the origins Services talks to. Tests point them at
// httptest servers.
type serviceEndpoints struct {
	Backend   string
	Handshake nso.Endpoints
}

// NewServices wires the production endpoints.
func NewServices(cc *CLIContext) *Services {
	return newServicesWith(cc, serviceEndpoints{
		Backend:   splatnet.DefaultBaseURL,
		Handshake: nso.DefaultEndpoints(cc.FGenURL()),
	}, defaultHTTPClient())
}

func newServicesWith(cc *CLIContext, ep serviceEndpoints, httpClient *http.Client) *Services {
	logger := cc.Logger
	cfg := cc.Store.Config()

	backend := splatnet.NewClient(ep.Backend, httpClient, cc.Store, cfg.AppUserAgent, logger)
	handshake := nso.NewClient(ep.Handshake, httpClient, logger)
	prompter := NewPrompter(cc, handshake)
	validator := splatnet.NewValidator(backend, cc.Store, logger)

	deriver := nso.NewDeriver(handshake, backend, prompter, logger)

	manager := session.NewManager(session.Deps{
		Store:     cc.Store,
		Deriver:   deriver,
		Validator: validator,
		Client:    backend,
		Auth:      prompter,
	}, logger)

	return &Services{
		Backend:   backend,
		Handshake: handshake,
		Validator: validator,
		Manager:   manager,
		Prompter:  prompter,
	}
}
