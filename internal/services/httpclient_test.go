package services

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fastRetryClient wraps a default transport in the retrying one without the
// provider dialer, so tests hit the local httptest server.
func fastRetryClient() *http.Client {
	return &http.Client{Transport: &retryTransport{base: http.DefaultTransport}}
}

func TestRetryTransportResubmitsPostOnServerError(t *testing.T) {
	var hits int64
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(body))
		if atomic.AddInt64(&hits, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	start := time.Now()
	resp, err := fastRetryClient().Post(srv.URL, "application/json", strings.NewReader(`{"k":"v"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(3), atomic.LoadInt64(&hits))
	// The request body must be replayed intact on every attempt.
	assert.Equal(t, []string{`{"k":"v"}`, `{"k":"v"}`, `{"k":"v"}`}, bodies)
	// Two backoffs: 1s + 2s.
	assert.GreaterOrEqual(t, time.Since(start), 3*time.Second)
}

func TestRetryTransportGivesUpAfterMaxAttempts(t *testing.T) {
	var hits int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	resp, err := fastRetryClient().Post(srv.URL, "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	defer resp.Body.Close()

	// The final response comes back to the caller, who treats the status as
	// a provider failure.
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, int64(retryMaxAttempts), atomic.LoadInt64(&hits))
}

func TestRetryTransportDoesNotRetryGet(t *testing.T) {
	var hits int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	resp, err := fastRetryClient().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, int64(1), atomic.LoadInt64(&hits))
}

func TestRetryTransportDoesNotRetryClientError(t *testing.T) {
	var hits int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	resp, err := fastRetryClient().Post(srv.URL, "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, int64(1), atomic.LoadInt64(&hits))
}

func TestRetryableStatus(t *testing.T) {
	for _, code := range []int{500, 502, 503, 504} {
		assert.True(t, retryableStatus(code), "status %d", code)
	}
	for _, code := range []int{200, 201, 301, 400, 401, 404, 429} {
		assert.False(t, retryableStatus(code), "status %d", code)
	}
}
