//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"

	"github.com/oshokin/zere-installer/internal/config"
	"github.com/oshokin/zere-installer/internal/domain/artifact"
	"github.com/oshokin/zere-installer/internal/logger"
)

// Client downloads release files over HTTP(S) with a per-attempt timeout and
// bounded exponential-backoff retries.
type Client struct {
	// http is the underlying transport.
	http *http.Client
	// callTimeout bounds a single attempt, including reading the body.
	callTimeout time.Duration
	// retries is how many times a retryable failure is retried.
	retries int
	// initialInterval and maxInterval shape the backoff between attempts.
	initialInterval time.Duration
	maxInterval     time.Duration
	// maxBytes caps the response size.
	maxBytes int64
	// userAgent is sent with every request.
	userAgent string
	// progress receives a progress bar per attempt when set.
	progress io.Writer
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets the timeout of a single attempt.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithRetries sets how many times a retryable failure is retried.
func WithRetries(retries int) Option {
	return func(c *Client) {
		if retries >= 0 {
			c.retries = retries
		}
	}
}

// WithBackoff sets the first and the largest delay between attempts.
func WithBackoff(initial, maxInterval time.Duration) Option {
	return func(c *Client) {
		if initial > 0 {
			c.initialInterval = initial
		}

		if maxInterval >= initial && maxInterval > 0 {
			c.maxInterval = maxInterval
		}
	}
}

// WithMaxBytes caps the number of bytes read from a response.
func WithMaxBytes(limit int64) Option {
	return func(c *Client) {
		if limit > 0 {
			c.maxBytes = limit
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		if userAgent != "" {
			c.userAgent = userAgent
		}
	}
}

// WithProgress renders a download progress bar into w.
func WithProgress(w io.Writer) Option {
	return func(c *Client) {
		c.progress = w
	}
}

// WithHTTPClient replaces the transport, mostly for tests.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

const (
	// defaultInitialInterval is the first backoff delay.
	defaultInitialInterval = time.Second
	// defaultMaxInterval caps the backoff delay.
	defaultMaxInterval = 8 * time.Second
	// defaultUserAgent is used unless WithUserAgent is given.
	defaultUserAgent = "zere-installer"
	// progressThrottle limits progress bar redraws.
	progressThrottle = 100 * time.Millisecond
)

// errResponseTooLarge is returned when a response exceeds the configured cap.
var errResponseTooLarge = errors.New("response exceeds size limit")

// NewClient creates a download client.
func NewClient(opts ...Option) *Client {
	client := &Client{
		http:            &http.Client{},
		callTimeout:     config.DefaultTimeout,
		retries:         config.DefaultRetries,
		initialInterval: defaultInitialInterval,
		maxInterval:     defaultMaxInterval,
		maxBytes:        config.DefaultMaxArtifactSize,
		userAgent:       defaultUserAgent,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Get downloads url and returns the body.
// Transport failures, timeouts, 408, 429 and 5xx responses are retried; other
// non-2xx statuses fail immediately with *artifact.HTTPError.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	var (
		body    []byte
		attempt int
	)

	operation := func() error {
		attempt++

		data, err := c.getOnce(ctx, url)
		if err != nil {
			return err
		}

		body = data

		return nil
	}

	notify := func(err error, wait time.Duration) {
		logger.WarnKV(ctx, "Download attempt failed, retrying",
			"url", url, "attempt", attempt, "wait", wait, "error", err)
	}

	if err := backoff.RetryNotify(operation, c.policy(ctx), notify); err != nil {
		return nil, err
	}

	logger.InfoKV(ctx, "Downloaded", "url", url, "size", humanize.Bytes(uint64(len(body))), "attempts", attempt)

	return body, nil
}

// policy builds the bounded exponential backoff for one Get call.
//
//nolint:ireturn // backoff.BackOff is the interface RetryNotify expects.
func (c *Client) policy(ctx context.Context) backoff.BackOff {
	exponential := backoff.NewExponentialBackOff()
	exponential.InitialInterval = c.initialInterval
	exponential.MaxInterval = c.maxInterval
	exponential.MaxElapsedTime = 0

	return backoff.WithContext(backoff.WithMaxRetries(exponential, uint64(c.retries)), ctx)
}

// getOnce performs a single attempt. Non-retryable failures are wrapped in
// backoff.Permanent.
func (c *Client) getOnce(ctx context.Context, url string) ([]byte, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("build request: %w", err))
	}

	req.Header.Set("User-Agent", c.userAgent)

	response, err := c.http.Do(req)
	if err != nil {
		return nil, c.transportError(ctx, url, err)
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		statusErr := &artifact.HTTPError{URL: url, StatusCode: response.StatusCode, Status: response.Status}
		if isRetryableStatus(response.StatusCode) {
			return nil, statusErr
		}

		return nil, backoff.Permanent(statusErr)
	}

	if response.ContentLength > c.maxBytes {
		return nil, backoff.Permanent(fmt.Errorf("%s: %w (%s > %s)", url, errResponseTooLarge,
			humanize.Bytes(uint64(response.ContentLength)), humanize.Bytes(uint64(c.maxBytes))))
	}

	var (
		buffer bytes.Buffer
		sink   io.Writer = &buffer
	)

	if c.progress != nil {
		bar := c.newProgressBar(url, response.ContentLength)
		defer func() {
			_ = bar.Finish()
		}()

		sink = io.MultiWriter(&buffer, bar)
	}

	read, err := io.Copy(sink, io.LimitReader(response.Body, c.maxBytes+1))
	if err != nil {
		return nil, c.transportError(ctx, url, err)
	}

	if read > c.maxBytes {
		return nil, backoff.Permanent(fmt.Errorf("%s: %w (limit %s)", url, errResponseTooLarge,
			humanize.Bytes(uint64(c.maxBytes))))
	}

	return buffer.Bytes(), nil
}

// transportError classifies a failed request or body read. Cancellation of
// the caller's context is permanent; everything else is a retryable network error.
func (c *Client) transportError(ctx context.Context, url string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return backoff.Permanent(ctxErr)
	}

	return fmt.Errorf("%w: %s: %w", artifact.ErrNetwork, url, err)
}

// newProgressBar creates a byte-counting bar, or a spinner when the size is unknown.
func (c *Client) newProgressBar(url string, size int64) *progressbar.ProgressBar {
	if size <= 0 {
		size = -1
	}

	return progressbar.NewOptions64(size,
		progressbar.OptionSetWriter(c.progress),
		progressbar.OptionSetDescription("downloading "+path.Base(url)),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(progressThrottle),
	)
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}

// isRetryableStatus reports statuses worth another attempt.
func isRetryableStatus(code int) bool {
	return code == http.StatusRequestTimeout ||
		code == http.StatusTooManyRequests ||
		code >= http.StatusInternalServerError
}
