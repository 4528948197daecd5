package anyllm

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"
)

// errRepeatedAttempt is returned for a repeated attempt when the first one
// failed without an error value to repeat.
var errRepeatedAttempt = errors.New("anyllm: request already sent")

type attemptKey struct{}

// attempt tracks one logical completion request across SDK retries.
type attempt struct {
	mu   sync.Mutex
	sent bool
	err  error
}

// withAttempt scopes ctx to a single logical request.
func withAttempt(ctx context.Context) context.Context {
	return context.WithValue(ctx, attemptKey{}, &attempt{})
}

// NewHTTPClient returns an HTTP client that sends each completion request at
// most once. Responses carry "X-Should-Retry: false" so SDK retry loops stop
// after the first answer, and a retried connection error returns the first
// error without touching the network. A timeout of zero means none.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: &singleAttemptTransport{next: http.DefaultTransport},
	}
}

type singleAttemptTransport struct {
	next http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (t *singleAttemptTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	a, _ := req.Context().Value(attemptKey{}).(*attempt)
	if a != nil {
		a.mu.Lock()
		if a.sent {
			err := a.err
			a.mu.Unlock()
			if err == nil {
				err = errRepeatedAttempt
			}
			return nil, err
		}
		a.sent = true
		a.mu.Unlock()
	}

	res, err := t.next.RoundTrip(req)
	if err != nil {
		if a != nil {
			a.mu.Lock()
			a.err = err
			a.mu.Unlock()
		}
		return nil, err
	}
	if res.Header == nil {
		res.Header = make(http.Header)
	}
	res.Header.Set("X-Should-Retry", "false")
	return res, nil
}
