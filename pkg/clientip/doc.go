// Package clientip extracts the originating client IP from HTTP requests
// behind reverse proxies. Session records store this IP for audit and
// device listings.
package clientip
