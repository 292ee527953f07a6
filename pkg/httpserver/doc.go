// Package httpserver runs an HTTP server with graceful shutdown and
// liveness/readiness probe handlers.
package httpserver
