//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/zere-installer/internal/domain/artifact"
)

// fastClient returns a client whose backoff does not slow the tests down.
func fastClient(opts ...Option) *Client {
	base := []Option{
		WithBackoff(time.Millisecond, 5*time.Millisecond),
		WithCallTimeout(2 * time.Second),
	}

	return NewClient(append(base, opts...)...)
}

// TestGet_RetriesTransientStatus fails twice with 503 and then serves the body.
func TestGet_RetriesTransientStatus(t *testing.T) {
	t.Parallel()

	var (
		calls     atomic.Int32
		userAgent atomic.Value
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent.Store(r.Header.Get("User-Agent"))

		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		_, _ = w.Write([]byte("zerebinary"))
	}))
	defer server.Close()

	body, err := fastClient(WithRetries(3), WithUserAgent("zere-installer/test")).Get(context.Background(), server.URL)
	require.NoError(t, err)
	require.Equal(t, []byte("zerebinary"), body)
	require.Equal(t, int32(3), calls.Load())
	require.Equal(t, "zere-installer/test", userAgent.Load())
}

// TestGet_PermanentStatus does not retry a 404.
func TestGet_PermanentStatus(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.NotFound(w, nil)
	}))
	defer server.Close()

	_, err := fastClient(WithRetries(3)).Get(context.Background(), server.URL+"/zere-darwin-arm64")
	require.ErrorIs(t, err, artifact.ErrHTTP)

	var httpErr *artifact.HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, http.StatusNotFound, httpErr.StatusCode)
	require.Equal(t, int32(1), calls.Load())
}

// TestGet_RetriesExhausted reports the last status after the retry budget is spent.
func TestGet_RetriesExhausted(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := fastClient(WithRetries(2)).Get(context.Background(), server.URL)

	var httpErr *artifact.HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, http.StatusBadGateway, httpErr.StatusCode)
	require.Equal(t, int32(3), calls.Load())
}

// TestGet_NetworkError classifies an unreachable host.
func TestGet_NetworkError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := fastClient(WithRetries(1)).Get(context.Background(), url)
	require.ErrorIs(t, err, artifact.ErrNetwork)
}

// TestGet_AttemptTimeout turns a slow response into a retryable network error.
func TestGet_AttemptTimeout(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			select {
			case <-r.Context().Done():
			case <-time.After(time.Second):
			}

			return
		}

		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	body, err := fastClient(WithRetries(1), WithCallTimeout(50*time.Millisecond)).Get(context.Background(), server.URL)
	require.NoError(t, err)
	require.Equal(t, []byte("ok"), body)
	require.Equal(t, int32(2), calls.Load())
}

// TestGet_Cancelled stops without retrying once the caller gives up.
func TestGet_Cancelled(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fastClient(WithRetries(5)).Get(ctx, server.URL)
	require.ErrorIs(t, err, context.Canceled)
}

// TestGet_SizeLimit rejects bodies larger than the cap.
func TestGet_SizeLimit(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(bytes.Repeat([]byte("z"), 64))
	}))
	defer server.Close()

	_, err := fastClient(WithMaxBytes(16)).Get(context.Background(), server.URL)
	require.ErrorIs(t, err, errResponseTooLarge)
}

// TestGet_Progress renders a bar without altering the body.
func TestGet_Progress(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("zerebinary"))
	}))
	defer server.Close()

	var bar bytes.Buffer

	body, err := fastClient(WithProgress(&bar)).Get(context.Background(), server.URL+"/zere-linux-amd64")
	require.NoError(t, err)
	require.Equal(t, []byte("zerebinary"), body)
	require.Contains(t, bar.String(), "zere-linux-amd64")
}

// TestClient_callContext checks timeout vs cancel-only behavior of callContext.
func TestClient_callContext(t *testing.T) {
	t.Parallel()

	c := &Client{
		callTimeout: 0,
	}

	ctx, cancel := c.callContext(context.Background())
	cancel()

	require.NotNil(t, ctx)

	c.callTimeout = 10 * time.Millisecond

	ctx, cancel = c.callContext(context.Background())
	defer cancel()

	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	require.WithinDuration(t, time.Now().Add(10*time.Millisecond), deadline, 30*time.Millisecond)
}
