package services

import (
	"bytes"
	"io"
	"net"
	"net/http"
	"time"
)

const (
	retryMaxAttempts = 3
	retryBaseBackoff = time.Second
)

// retryableStatus lists provider statuses worth resubmitting.
func retryableStatus(code int) bool {
	switch code {
	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// retryTransport resubmits POST requests a bounded number of times with
// exponential backoff when the provider answers 500/502/503/504 or the
// connection fails. Other methods pass through untouched.
type retryTransport struct {
	base http.RoundTripper
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodPost {
		return t.base.RoundTrip(req)
	}

	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, err
		}
	}

	var resp *http.Response
	var err error
	for attempt := 1; attempt <= retryMaxAttempts; attempt++ {
		if body != nil {
			req.Body = io.NopCloser(bytes.NewReader(body))
		}

		resp, err = t.base.RoundTrip(req)
		if err == nil && !retryableStatus(resp.StatusCode) {
			return resp, nil
		}
		if attempt == retryMaxAttempts {
			break
		}
		if resp != nil {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}

		// backoff = base * 2^(attempt-1)
		select {
		case <-time.After(retryBaseBackoff << (attempt - 1)):
		case <-req.Context().Done():
			return nil, req.Context().Err()
		}
	}

	return resp, err
}

// NewProviderHTTPClient builds the shared session for provider calls with a
// separate connect timeout and an overall read deadline.
func NewProviderHTTPClient(connectTimeout, readTimeout time.Duration) *http.Client {
	dialer := &net.Dialer{Timeout: connectTimeout}
	return &http.Client{
		Timeout: connectTimeout + readTimeout,
		Transport: &retryTransport{
			base: &http.Transport{
				DialContext:           dialer.DialContext,
				ResponseHeaderTimeout: readTimeout,
			},
		},
	}
}
