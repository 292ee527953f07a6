// Package redis handles connection setup and health probing for the shared
// Redis backend used by the session store. Operation timeouts default to a
// couple of seconds so that a dead backend degrades the caller instead of
// stalling it.
package redis
