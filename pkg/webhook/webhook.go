package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Sender delivers JSON webhook payloads with retries and optional HMAC
// signing. A single Sender is safe for concurrent use and should be shared
// so that connections are pooled.
type Sender struct {
	client *http.Client
}

// NewSender creates a webhook sender with a pooled HTTP client.
func NewSender() *Sender {
	return &Sender{
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// NewSenderWithClient creates a sender using a custom HTTP client,
// falling back to defaults when client is nil.
func NewSenderWithClient(client *http.Client) *Sender {
	if client == nil {
		return NewSender()
	}
	return &Sender{client: client}
}

// Send POSTs data as JSON to webhookURL, retrying with exponential backoff
// on transport errors and retryable status codes (408, 429, 5xx).
func (s *Sender) Send(ctx context.Context, webhookURL string, data any, opts ...SendOption) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	if err := validateURL(webhookURL); err != nil {
		return err
	}

	options := defaultSendOptions()
	for _, opt := range opts {
		opt(options)
	}

	var lastErr error
	for attempt := 0; attempt <= options.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoffDelay(attempt, options.retryDelay)):
			}
		}

		result, err := s.attempt(ctx, webhookURL, payload, options)
		result.Attempt = attempt + 1
		if options.onDelivery != nil {
			options.onDelivery(result)
		}

		if err == nil {
			return nil
		}
		lastErr = err

		if !result.Retryable {
			break
		}
	}

	return errors.Join(ErrDeliveryFailed, lastErr)
}

// DeliveryResult describes one delivery attempt, for logging and metrics.
type DeliveryResult struct {
	URL        string
	StatusCode int
	Attempt    int
	Duration   time.Duration
	Retryable  bool
	Err        error
}

func (s *Sender) attempt(ctx context.Context, webhookURL string, payload []byte, options *sendOptions) (DeliveryResult, error) {
	result := DeliveryResult{URL: webhookURL}

	reqCtx := ctx
	if options.timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, options.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, webhookURL, bytes.NewReader(payload))
	if err != nil {
		result.Err = err
		return result, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "ssokit-webhook/1.0")
	for k, v := range options.headers {
		req.Header.Set(k, v)
	}

	if options.secret != "" {
		sig := SignPayload(options.secret, payload)
		for k, v := range sig.Headers() {
			req.Header.Set(k, v)
		}
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	result.Duration = time.Since(start)
	if err != nil {
		result.Err = err
		result.Retryable = true
		return result, err
	}
	defer func() {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		_ = resp.Body.Close()
	}()

	result.StatusCode = resp.StatusCode

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return result, nil
	}

	result.Retryable = retryableStatus(resp.StatusCode)
	err = fmt.Errorf("%w: status %d", ErrUnexpectedStatus, resp.StatusCode)
	result.Err = err
	return result, err
}

// backoffDelay returns the exponential delay before the given attempt,
// capped at 30 seconds.
func backoffDelay(attempt int, base time.Duration) time.Duration {
	delay := base << (attempt - 1)
	if delay > 30*time.Second {
		return 30 * time.Second
	}
	return delay
}

func retryableStatus(code int) bool {
	switch {
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests:
		return true
	case code >= 500:
		return true
	default:
		return false
	}
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return errors.Join(ErrInvalidURL, err)
	}
	if !strings.EqualFold(u.Scheme, "http") && !strings.EqualFold(u.Scheme, "https") {
		return fmt.Errorf("%w: scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	return nil
}
