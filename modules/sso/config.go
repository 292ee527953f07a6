package sso

// Config holds the HTTP module settings.
type Config struct {
	// CookieName is the first-party session cookie set on the primary domain.
	CookieName string `env:"SSO_COOKIE_NAME" envDefault:"sso_session"`

	// CookieMaxAge is the session cookie lifetime in seconds. Zero makes
	// the cookie a browser-session cookie.
	CookieMaxAge int `env:"SSO_COOKIE_MAX_AGE" envDefault:"86400"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		CookieName:   "sso_session",
		CookieMaxAge: 86400,
	}
}
