package httpds

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config { return Config{Timeout: 2 * time.Second} }

// TestOpen_Success returns the body of a 200 response and sends the
// configured headers.
func TestOpen_Success(t *testing.T) {
	t.Parallel()

	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		assert.Equal(t, "secret", r.Header.Get("X-Token"))
		_, _ = io.WriteString(w, "id,price\n1,10\n")
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.Header = http.Header{"X-Token": []string{"secret"}}
	rc, err := New(srv.URL, cfg).Open(context.Background())
	require.NoError(t, err)
	defer rc.Close()

	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "id,price\n1,10\n", string(body))
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))
}

// TestOpen_ErrorStatusIsNotRetried fails on the first non-2xx response,
// transient or not.
func TestOpen_ErrorStatusIsNotRetried(t *testing.T) {
	t.Parallel()

	for _, code := range []int{http.StatusNotFound, http.StatusTooManyRequests, http.StatusBadGateway} {
		t.Run(http.StatusText(code), func(t *testing.T) {
			t.Parallel()

			var hits int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&hits, 1)
				w.WriteHeader(code)
			}))
			defer srv.Close()

			rc, err := New(srv.URL, testConfig()).Open(context.Background())
			require.Error(t, err)
			assert.Nil(t, rc)
			assert.ErrorContains(t, err, fmt.Sprintf("status %d", code))
			assert.EqualValues(t, 1, atomic.LoadInt32(&hits))
		})
	}
}

func TestOpen_TransportError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url, testConfig()).Open(context.Background())
	assert.ErrorContains(t, err, "httpds: GET")
}

func TestOpen_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New("http://127.0.0.1:1/x", testConfig()).Open(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpen_EmptyURL(t *testing.T) {
	t.Parallel()

	_, err := New("", testConfig()).Open(context.Background())
	assert.ErrorContains(t, err, "url must not be empty")
}
