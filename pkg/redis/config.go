package redis

import "time"

// Config carries connection settings for the shared Redis backend.
// Timeouts are deliberately short: an unreachable backend must degrade the
// session store, never stall request handling.
type Config struct {
	// ConnectionURL in the format "redis://:password@localhost:6379/0".
	ConnectionURL string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`

	// RetryAttempts is the number of connection attempts at startup.
	RetryAttempts int `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`

	// RetryInterval is the wait between startup connection attempts.
	RetryInterval time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"2s"`

	// ConnectTimeout bounds the total startup connection phase.
	ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"10s"`

	// DialTimeout and ReadTimeout bound individual operations once connected.
	DialTimeout time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"2s"`
	ReadTimeout time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"2s"`
}
