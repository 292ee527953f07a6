package webhook

import "time"

// SendOption configures a single Send call.
type SendOption func(*sendOptions)

type sendOptions struct {
	timeout    time.Duration
	maxRetries int
	retryDelay time.Duration
	secret     string
	headers    map[string]string
	onDelivery func(DeliveryResult)
}

func defaultSendOptions() *sendOptions {
	return &sendOptions{
		timeout:    10 * time.Second,
		maxRetries: 2,
		retryDelay: time.Second,
	}
}

// WithTimeout bounds each delivery attempt.
func WithTimeout(d time.Duration) SendOption {
	return func(o *sendOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithMaxRetries sets how many times a failed delivery is retried.
func WithMaxRetries(n int) SendOption {
	return func(o *sendOptions) {
		if n >= 0 {
			o.maxRetries = n
		}
	}
}

// WithRetryDelay sets the base delay for exponential backoff between retries.
func WithRetryDelay(d time.Duration) SendOption {
	return func(o *sendOptions) {
		if d > 0 {
			o.retryDelay = d
		}
	}
}

// WithSignature signs the payload with an HMAC-SHA256 of the shared secret.
func WithSignature(secret string) SendOption {
	return func(o *sendOptions) { o.secret = secret }
}

// WithHeader adds a custom header to the delivery request.
func WithHeader(key, value string) SendOption {
	return func(o *sendOptions) {
		if o.headers == nil {
			o.headers = make(map[string]string)
		}
		o.headers[key] = value
	}
}

// WithDeliveryCallback registers an observer invoked after every attempt,
// for logging and metrics.
func WithDeliveryCallback(fn func(DeliveryResult)) SendOption {
	return func(o *sendOptions) { o.onDelivery = fn }
}
