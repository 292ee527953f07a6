// Package webhook delivers signed JSON notifications to third-party
// endpoints. Deliveries retry transient failures with exponential backoff;
// payloads can be signed with HMAC-SHA256 so receivers can verify origin
// and bound replay windows.
//
// In this repository the logout sync service uses it fire-and-forget for
// `user.logout` events; delivery failures are logged, never propagated.
package webhook
