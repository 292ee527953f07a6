package config

import "errors"

var (
	// ErrNilPointer is returned when Load receives a nil destination.
	ErrNilPointer = errors.New("config.nil_pointer")

	// ErrParsingConfig wraps env parsing failures (missing required vars, bad values).
	ErrParsingConfig = errors.New("config.parsing_failed")
)
