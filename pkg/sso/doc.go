// Package sso implements cross-domain single sign-on for a platform of
// independently deployed modules, each served from its own top-level
// domain, sharing one authenticated identity without cross-domain cookies.
//
// A Session is created at login and identified by a cryptographically
// random id carried as a first-party cookie on the primary domain. To
// establish identity on another module's domain, the primary domain mints
// a single-use HandoffToken bound to the (session, module, domain) triple;
// the browser carries it across in a redirect, and the target domain
// redeems it exactly once with ValidateToken. Redemption atomically
// consumes the token, re-checks session and module liveness, and extends
// the session's domain set.
//
// The Service reads through a fast session store (pkg/sessionstore) backed
// by Redis with an in-process fallback, and reconciles cold reads from the
// durable Postgres store, which is the source of truth. Session
// destruction is not implemented here: pkg/logoutsync is the sole owner of
// that transition.
package sso
