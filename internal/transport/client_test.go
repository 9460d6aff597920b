package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/postnome/postnome/internal/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy() *RetryPolicy {
	return &RetryPolicy{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestClient_Get(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api", r.URL.Path)
		assert.Equal(t, "yes", r.Header.Get("X-Test"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"mol":"A"}`))
	}))
	defer srv.Close()

	c := New(Options{Retry: fastPolicy()})
	resp, err := c.Do(context.Background(), Call{
		Method:  "get",
		URL:     srv.URL + "/api",
		Headers: []ir.Header{ir.NewHeader("X-Test", "yes")},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "application/json", resp.Headers["Content-Type"])
	assert.Equal(t, `{"mol":"A"}`, resp.Body)
}

func TestClient_PostBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, int64(len(body)), r.ContentLength)
		assert.Equal(t, "text/plain", r.Header.Get("Content-Type"))
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	c := New(Options{Retry: fastPolicy()})
	resp, err := c.Do(context.Background(), Call{
		Method: "post",
		URL:    srv.URL,
		Headers: []ir.Header{
			ir.NewHeader("Content-Type", "text/plain"),
			ir.NewHeader("Content-Length", "999"),
		},
		Body: "payload",
	})
	require.NoError(t, err)
	assert.Equal(t, "payload", resp.Body)
}

func TestClient_RetriesRetryableStatus(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := New(Options{Retry: fastPolicy()})
	resp, err := c.Do(context.Background(), Call{Method: "get", URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Body)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_GivesUpWithLastResponse(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New(Options{Retry: fastPolicy()})
	resp, err := c.Do(context.Background(), Call{Method: "get", URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, resp.Status)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_ClientErrorsAreNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(Options{Retry: fastPolicy()})
	resp, err := c.Do(context.Background(), Call{Method: "get", URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.Status)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

// droppingServer closes the connection without answering.
func droppingServer(t *testing.T, calls *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		hj, ok := w.(http.Hijacker)
		if !ok {
			t.Error("response writer cannot be hijacked")
			return
		}
		conn, _, err := hj.Hijack()
		if err != nil {
			t.Error(err)
			return
		}
		_ = conn.Close()
	}))
}

func TestClient_PostIsNotResentAfterNetworkFailure(t *testing.T) {
	var calls int32
	srv := droppingServer(t, &calls)
	defer srv.Close()

	c := New(Options{Retry: fastPolicy()})
	_, err := c.Do(context.Background(), Call{Method: "post", URL: srv.URL, Body: "order"})
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_GetIsResentAfterNetworkFailure(t *testing.T) {
	var calls int32
	srv := droppingServer(t, &calls)
	defer srv.Close()

	c := New(Options{Retry: fastPolicy()})
	_, err := c.Do(context.Background(), Call{Method: "get", URL: srv.URL})
	require.Error(t, err)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(2))
}

func TestClient_PostRetriesRejectedStatus(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := New(Options{Retry: fastPolicy()})
	resp, err := c.Do(context.Background(), Call{Method: "post", URL: srv.URL, Body: "x"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Body)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestClient_PostGatewayErrorIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(Options{Retry: fastPolicy()})
	resp, err := c.Do(context.Background(), Call{Method: "post", URL: srv.URL, Body: "x"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, resp.Status)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := New(Options{Retry: fastPolicy()})
	_, err := c.Do(context.Background(), Call{Method: "get", URL: url})
	assert.Error(t, err)
}

func TestClient_BadURL(t *testing.T) {
	c := New(Options{Retry: fastPolicy()})
	_, err := c.Do(context.Background(), Call{Method: "get", URL: "://broken"})
	assert.Error(t, err)
}
