package broadcast

import "errors"

var (
	// ErrClosed is returned when publishing to or subscribing on a closed broadcaster.
	ErrClosed = errors.New("broadcast.closed")
)
