// Package cookie manages HMAC-signed HTTP cookies, primarily the
// first-party session cookie on the primary domain.
//
// Signing uses crypto/hmac with SHA-256 over the base64-encoded value.
// Multiple secrets enable key rotation: the first secret signs new
// cookies, all secrets verify, so old cookies stay valid during a
// rotation window.
//
//	man, err := cookie.New([]string{os.Getenv("COOKIE_SECRET")})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	man.Set(w, "sso_session", sessionID)
//	id, err := man.Get(r, "sso_session")
//
// Sentinel errors such as ErrCookieNotFound and ErrInvalidSignature are
// comparable with errors.Is.
package cookie
