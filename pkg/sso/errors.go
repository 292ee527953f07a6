package sso

import "errors"

var (
	// ErrSessionNotFound indicates no live session for the given id.
	// Authentication-facing callers treat it as "unauthenticated".
	ErrSessionNotFound = errors.New("sso.session_not_found")

	// ErrSessionExpired indicates the session is past its TTL.
	ErrSessionExpired = errors.New("sso.session_expired")

	// ErrModuleNotRegistered indicates an unknown module id.
	ErrModuleNotRegistered = errors.New("sso.module_not_registered")

	// ErrModuleInactive indicates the module registration is disabled.
	ErrModuleInactive = errors.New("sso.module_inactive")

	// ErrOriginForbidden indicates the target domain is outside the module's allowlist.
	ErrOriginForbidden = errors.New("sso.origin_forbidden")

	// ErrTokenInvalid indicates a handoff token that does not exist or was
	// already redeemed. The two cases are deliberately indistinguishable so
	// a replayed token leaks nothing.
	ErrTokenInvalid = errors.New("sso.token_invalid")

	// ErrTokenExpired indicates a handoff token past its TTL.
	ErrTokenExpired = errors.New("sso.token_expired")

	// ErrDurableWriteFailed indicates the durable store rejected a write.
	// The durable record is the source of truth and must never silently
	// diverge from the cache, so this is always surfaced.
	ErrDurableWriteFailed = errors.New("sso.durable_write_failed")

	// ErrIDGeneration indicates the system entropy source failed.
	ErrIDGeneration = errors.New("sso.id_generation_failed")
)
