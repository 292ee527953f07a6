// Package sessionstore provides the fast storage layer behind the SSO
// services: sessions, single-use handoff tokens, per-user session-id sets,
// and a best-effort logout fan-out topic.
//
// The store is a pure storage collaborator with no business rules. It
// prefers a shared Redis backend; on any transport error it logs, flips to
// a private in-process fallback, and keeps serving — transport failures
// never surface to callers. A background probe flips the store back once
// the backend answers pings, without reconciling entries written to the
// fallback in the meantime.
//
// Token consumption is a single atomic fetch-and-delete (GETDEL on the
// shared backend, mutex-serialized access in the fallback), so two
// concurrent redemption attempts for the same token can never both succeed.
package sessionstore
