package webhook_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/ssokit/pkg/webhook"
)

func TestSender_Send(t *testing.T) {
	t.Parallel()

	t.Run("delivers json payload", func(t *testing.T) {
		t.Parallel()

		var (
			gotBody        []byte
			gotContentType string
		)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotBody, _ = io.ReadAll(r.Body)
			gotContentType = r.Header.Get("Content-Type")
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		sender := webhook.NewSender()
		err := sender.Send(context.Background(), srv.URL, map[string]string{"event": "test"})
		require.NoError(t, err)

		assert.Equal(t, "application/json", gotContentType)
		assert.JSONEq(t, `{"event":"test"}`, string(gotBody))
	})

	t.Run("retries on 5xx and succeeds", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		sender := webhook.NewSender()
		err := sender.Send(context.Background(), srv.URL, "payload",
			webhook.WithMaxRetries(3),
			webhook.WithRetryDelay(time.Millisecond),
		)
		require.NoError(t, err)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("does not retry on 4xx", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer srv.Close()

		sender := webhook.NewSender()
		err := sender.Send(context.Background(), srv.URL, "payload",
			webhook.WithMaxRetries(3),
			webhook.WithRetryDelay(time.Millisecond),
		)
		require.ErrorIs(t, err, webhook.ErrDeliveryFailed)
		require.ErrorIs(t, err, webhook.ErrUnexpectedStatus)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("exhausted retries fail", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		sender := webhook.NewSender()
		err := sender.Send(context.Background(), srv.URL, "payload",
			webhook.WithMaxRetries(2),
			webhook.WithRetryDelay(time.Millisecond),
		)
		require.ErrorIs(t, err, webhook.ErrDeliveryFailed)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("rejects invalid urls", func(t *testing.T) {
		t.Parallel()

		sender := webhook.NewSender()
		assert.ErrorIs(t, sender.Send(context.Background(), "ftp://example.com/hook", "x"), webhook.ErrInvalidURL)
		assert.ErrorIs(t, sender.Send(context.Background(), "http://", "x"), webhook.ErrInvalidURL)
	})

	t.Run("custom headers", func(t *testing.T) {
		t.Parallel()

		var got string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = r.Header.Get("X-Tenant")
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		sender := webhook.NewSender()
		require.NoError(t, sender.Send(context.Background(), srv.URL, "x",
			webhook.WithHeader("X-Tenant", "acme")))
		assert.Equal(t, "acme", got)
	})

	t.Run("delivery callback observes attempts", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		var results []webhook.DeliveryResult
		sender := webhook.NewSender()
		_ = sender.Send(context.Background(), srv.URL, "x",
			webhook.WithMaxRetries(1),
			webhook.WithRetryDelay(time.Millisecond),
			webhook.WithDeliveryCallback(func(r webhook.DeliveryResult) {
				results = append(results, r)
			}),
		)

		require.Len(t, results, 2)
		assert.Equal(t, 1, results[0].Attempt)
		assert.Equal(t, 2, results[1].Attempt)
		assert.Equal(t, http.StatusBadGateway, results[0].StatusCode)
		assert.True(t, results[0].Retryable)
	})

	t.Run("context cancellation stops retries", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		sender := webhook.NewSender()
		err := sender.Send(ctx, srv.URL, "x",
			webhook.WithMaxRetries(5),
			webhook.WithRetryDelay(time.Hour),
		)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestSender_Send_Signature(t *testing.T) {
	t.Parallel()

	type captured struct {
		body    []byte
		headers http.Header
	}
	var got captured

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.body, _ = io.ReadAll(r.Body)
		got.headers = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sender := webhook.NewSender()
	require.NoError(t, sender.Send(context.Background(), srv.URL,
		map[string]string{"hello": "world"},
		webhook.WithSignature("whsec_test"),
	))

	sig := got.headers.Get("X-Webhook-Signature")
	require.NotEmpty(t, sig)
	require.NotEmpty(t, got.headers.Get("X-Webhook-ID"))

	ts, err := strconv.ParseInt(got.headers.Get("X-Webhook-Timestamp"), 10, 64)
	require.NoError(t, err)

	require.NoError(t, webhook.VerifySignature("whsec_test", got.body, webhook.SignatureHeaders{
		Signature: sig,
		Timestamp: ts,
	}, time.Minute))

	// A different secret must not verify.
	err = webhook.VerifySignature("whsec_other", got.body, webhook.SignatureHeaders{
		Signature: sig,
		Timestamp: ts,
	}, time.Minute)
	assert.ErrorIs(t, err, webhook.ErrInvalidSignature)
}

func TestSender_Send_MarshalError(t *testing.T) {
	t.Parallel()

	sender := webhook.NewSender()
	err := sender.Send(context.Background(), "http://example.com/hook", func() {})
	require.Error(t, err)
}
