// Package useragent parses User-Agent strings into the coarse browser,
// OS, and device class shown in a user's active session listing.
package useragent
