package adapter

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testClient(serverURL string, pageSize int) httpClient {
	return newHTTPClient(serverURL, "test-key", pageSize, zap.NewNop())
}

func TestGetJSONSendsAPIKeyAuth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "test-key", user)
		assert.Equal(t, "X", pass)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	var out map[string]bool
	err := testClient(server.URL, 10).getJSON(context.Background(), "/ping", &out)
	require.NoError(t, err)
	assert.True(t, out["ok"])
}

func TestGetWithRetryHonorsRetryAfter(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	start := time.Now()
	var out map[string]bool
	err := testClient(server.URL, 10).getWithRetry(context.Background(), "/limited", &out)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.GreaterOrEqual(t, time.Since(start), time.Second, "server-supplied delay must be honored")
}

func TestGetWithRetryStopsOnClientError(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	var out map[string]bool
	err := testClient(server.URL, 10).getWithRetry(context.Background(), "/denied", &out)
	require.Error(t, err)
	assert.Equal(t, 1, calls, "4xx responses must not be retried")
}

func TestGetWithRetryNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	var out map[string]bool
	err := testClient(server.URL, 10).getWithRetry(context.Background(), "/missing", &out)
	assert.ErrorIs(t, err, ErrIssueNotFound)
}

func TestGetWithRetryContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	var out map[string]bool
	err := testClient(server.URL, 10).getWithRetry(ctx, "/flaky", &out)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, defaultRetryAfter, parseRetryAfter(""))
	assert.Equal(t, defaultRetryAfter, parseRetryAfter("soon"))
	assert.Equal(t, defaultRetryAfter, parseRetryAfter("-5"))
	assert.Equal(t, 7*time.Second, parseRetryAfter("7"))
}
