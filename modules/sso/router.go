package sso

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Mountable is anything that exposes a sub-router.
type Mountable interface {
	Handle() http.Handler
}

// RouterOptions configures which services to mount in the SSO module.
// Each service is optional and will only be mounted if provided.
type RouterOptions struct {
	Sessions Mountable
	Tokens   Mountable
	Registry Mountable
}

// Router creates the SSO module router.
//
// Example:
//
//	sessionSvc := sso.NewSessionService(cfg, svc, logout, cookies)
//	tokenSvc := sso.NewTokenService(svc)
//
//	r := chi.NewRouter()
//	r.Mount("/sso", sso.Router(sso.RouterOptions{
//	    Sessions: sessionSvc,
//	    Tokens:   tokenSvc,
//	}))
func Router(opts RouterOptions) chi.Router {
	r := chi.NewRouter()

	if opts.Sessions != nil {
		r.Mount("/sessions", opts.Sessions.Handle())
	}
	if opts.Tokens != nil {
		r.Mount("/tokens", opts.Tokens.Handle())
	}
	if opts.Registry != nil {
		r.Mount("/modules", opts.Registry.Handle())
	}

	return r
}
