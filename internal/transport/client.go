// Package transport issues the HTTP calls built by the request runner.
package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/postnome/postnome/internal/ir"
	"github.com/postnome/postnome/internal/logging"
)

// Call is a fully substituted request.
type Call struct {
	Method  string
	URL     string
	Headers []ir.Header
	Body    string
}

// Response is what came back. Header names are canonicalized and only the
// first value of repeated headers is kept.
type Response struct {
	Status  int
	Headers map[string]string
	Body    string
}

// Options configure a Client.
type Options struct {
	Timeout            time.Duration
	Retry              *RetryPolicy
	InsecureSkipVerify bool
}

// Client executes calls over net/http, retrying transient failures.
type Client struct {
	http    *http.Client
	retry   *RetryPolicy
	timeout time.Duration
}

// New creates a client.
func New(opts Options) *Client {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if opts.InsecureSkipVerify {
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for self-signed lab services
	}
	retry := opts.Retry
	if retry == nil {
		retry = DefaultRetryPolicy()
	}
	return &Client{
		http:    &http.Client{Transport: tr},
		retry:   retry,
		timeout: opts.Timeout,
	}
}

// statusError marks responses whose status is worth retrying.
type statusError struct {
	status int
}

func (e *statusError) Error() string {
	return strings.ToLower(http.StatusText(e.status))
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// retryRejected retries only statuses that mean the server refused the call
// before handling it.
func retryRejected(err error) bool {
	var se *statusError
	if !errors.As(err, &se) {
		return false
	}
	return se.status == http.StatusTooManyRequests || se.status == http.StatusServiceUnavailable
}

// idempotent reports whether a call may be repeated after a network failure.
func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}

// Do executes call. Network failures that persist after retries are
// returned as errors; any HTTP status, including retried ones, is a response.
// Non-idempotent calls are never resent after a network failure.
func (c *Client) Do(ctx context.Context, call Call) (*Response, error) {
	method := strings.ToUpper(call.Method)
	if method == "" {
		method = http.MethodGet
	}
	shouldRetry := IsTransientError
	if !idempotent(method) {
		shouldRetry = retryRejected
	}

	var last *Response
	err := RetryWithBackoff(ctx, c.retry, func() error {
		resp, err := c.do(ctx, method, call)
		if err != nil {
			return err
		}
		last = resp
		if retryableStatus(resp.Status) {
			return &statusError{status: resp.Status}
		}
		return nil
	}, shouldRetry)

	var se *statusError
	if err != nil && errors.As(err, &se) && last != nil {
		logging.Warn("giving up on retryable status", "url", call.URL, "status", last.Status)
		return last, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, call.URL, err)
	}
	return last, nil
}

func (c *Client) do(ctx context.Context, method string, call Call) (*Response, error) {
	ctx, cancel := WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if call.Body != "" || method == http.MethodPost {
		body = strings.NewReader(call.Body)
	}
	req, err := http.NewRequestWithContext(ctx, method, call.URL, body)
	if err != nil {
		return nil, err
	}
	for _, h := range call.Headers {
		if strings.EqualFold(h.Name(), "Content-Length") {
			continue
		}
		req.Header.Set(h.Name(), h.Value())
	}

	logging.Debug("sending request", "method", method, "url", call.URL)
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	logging.Debug("received response", "url", call.URL, "status", resp.StatusCode, "bytes", len(data), "duration", time.Since(start))

	headers := make(map[string]string, len(resp.Header))
	for k, v := range resp.Header {
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}
	return &Response{Status: resp.StatusCode, Headers: headers, Body: string(data)}, nil
}
