// Package pg handles connection pooling, health probing, and schema
// migrations for the durable Postgres store. The durable store is the
// source of truth for sessions, module registrations, and the logout audit
// trail; unlike the Redis cache it has no degraded fallback.
package pg
