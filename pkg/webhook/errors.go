package webhook

import "errors"

var (
	// ErrInvalidURL indicates the webhook URL is malformed or not http(s).
	ErrInvalidURL = errors.New("webhook.invalid_url")

	// ErrDeliveryFailed indicates all delivery attempts were exhausted.
	ErrDeliveryFailed = errors.New("webhook.delivery_failed")

	// ErrUnexpectedStatus indicates a non-2xx response from the endpoint.
	ErrUnexpectedStatus = errors.New("webhook.unexpected_status")

	// ErrInvalidSignature indicates the payload signature does not verify.
	ErrInvalidSignature = errors.New("webhook.invalid_signature")

	// ErrSignatureExpired indicates the signature timestamp is outside the allowed window.
	ErrSignatureExpired = errors.New("webhook.signature_expired")
)
