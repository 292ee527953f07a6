// Package logoutsync orchestrates session destruction across every process
// and domain sharing the SSO backend. It is the only component permitted
// to drive a session from active to destroyed.
//
// Destruction runs a fixed pipeline: durable audit insert (fatal on
// failure), durable deactivation (fatal) with best-effort cache
// invalidation, best-effort cross-process broadcast, unconditional local
// event emission, fire-and-forget webhook notification, and best-effort
// cleanup of derivative cache entries such as outstanding handoff tokens.
// The ordering guarantees that a crash mid-pipeline leaves the audit trail
// intact and that cold-cache readers of the durable store never see a
// stale active session once the audit exists.
//
// Logout is idempotent: destroying an unknown or already-destroyed session
// is a successful no-op. Global logout applies the same pipeline to each
// of a user's sessions independently, with no atomicity across the set.
package logoutsync
