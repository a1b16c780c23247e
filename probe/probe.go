// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package probe checks that a running server answers a GET with the
// expected status, retrying while it comes up.
package probe

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/z5labs/minihttpd/internal/try"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// RequestError is returned when no response could be obtained.
type RequestError struct {
	URL   string
	Cause error
}

// Error implements the [builtin.error] interface.
func (e RequestError) Error() string {
	return fmt.Sprintf("probe request to %s failed: %s", e.URL, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e RequestError) Unwrap() error {
	return e.Cause
}

// UnexpectedStatusError is returned when the server answered with
// a status other than the expected one.
type UnexpectedStatusError struct {
	URL      string
	Expected int
	Got      int
}

// Error implements the [builtin.error] interface.
func (e UnexpectedStatusError) Error() string {
	return fmt.Sprintf("probe of %s expected status %d but got %d", e.URL, e.Expected, e.Got)
}

// Option configures a [Prober].
type Option func(*Prober)

// Retries sets how many times a failed attempt is retried.
func Retries(n int) Option {
	return func(p *Prober) {
		p.client.RetryMax = n
	}
}

// Backoff bounds the wait between attempts.
func Backoff(min, max time.Duration) Option {
	return func(p *Prober) {
		p.client.RetryWaitMin = min
		p.client.RetryWaitMax = max
	}
}

// Expect sets the status code a successful probe must see.
func Expect(code int) Option {
	return func(p *Prober) {
		p.expect = code
	}
}

// Logger routes the retry logs to logger.
func Logger(logger *slog.Logger) Option {
	return func(p *Prober) {
		if logger == nil {
			return
		}
		p.client.Logger = logger
	}
}

// Prober issues GET requests with retries.
type Prober struct {
	client *retryablehttp.Client
	expect int
}

// New returns a Prober that expects 200 OK by default.
//
// Any answer other than the expected status is retried. Once retries run
// out the last answer is still returned so it can be reported.
func New(opts ...Option) *Prober {
	client := retryablehttp.NewClient()
	client.Logger = nil
	client.RetryMax = 3
	client.RetryWaitMin = 100 * time.Millisecond
	client.RetryWaitMax = time.Second
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	client.HTTPClient.Transport = otelhttp.NewTransport(client.HTTPClient.Transport)

	p := &Prober{
		client: client,
		expect: http.StatusOK,
	}
	client.CheckRetry = p.checkRetry
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Prober) checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if err != nil {
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	return resp.StatusCode != p.expect, nil
}

// Result is what the server answered.
type Result struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Check GETs url. A [Result] is returned whenever a response was read,
// including alongside an [UnexpectedStatusError].
func (p *Prober) Check(ctx context.Context, url string) (_ Result, err error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{}, RequestError{URL: url, Cause: err}
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return Result{}, RequestError{URL: url, Cause: err}
	}
	defer try.Close(&err, resp.Body)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, RequestError{URL: url, Cause: err}
	}

	res := Result{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}
	if resp.StatusCode != p.expect {
		return res, UnexpectedStatusError{
			URL:      url,
			Expected: p.expect,
			Got:      resp.StatusCode,
		}
	}
	return res, nil
}
