package debrid

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onyxstream/internal/ratelimit"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	limiter := ratelimit.NewCallLimiter(0)
	return NewClient("test-key", server.URL, limiter, 3, 10*time.Millisecond), server
}

func TestAddMagnetSendsBearerToken(t *testing.T) {
	var gotAuth atomic.Value
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		require.Equal(t, "/torrents/addMagnet", r.URL.Path)
		require.NoError(t, r.ParseForm())
		require.Equal(t, "magnet:?xt=urn:btih:abc", r.PostForm.Get("magnet"))
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"TOR1","uri":"magnet:?xt=urn:btih:abc"}`))
	}))

	id, err := client.AddMagnet(context.Background(), "magnet:?xt=urn:btih:abc")
	require.NoError(t, err)
	assert.Equal(t, "TOR1", id)
	assert.Equal(t, "Bearer test-key", gotAuth.Load())
}

func TestAuthFailureNotRetried(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := client.AddMagnet(context.Background(), "magnet:?xt=urn:btih:abc")
	require.ErrorIs(t, err, ErrProviderAuth)
	assert.Equal(t, int32(1), calls.Load(), "auth failures must not be retried")
}

func TestTransientErrorRetriedThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"id":"TOR1"}`))
	}))

	id, err := client.AddMagnet(context.Background(), "magnet:?xt=urn:btih:abc")
	require.NoError(t, err)
	assert.Equal(t, "TOR1", id)
	assert.Equal(t, int32(3), calls.Load())
}

func TestTransientErrorExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := client.AddMagnet(context.Background(), "magnet:?xt=urn:btih:abc")
	require.ErrorIs(t, err, ErrProviderUnavailable)
	assert.Equal(t, int32(3), calls.Load(), "expected exactly the configured attempt budget")
}

func TestNonRetryableAPIErrorSurfacesMessage(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"magnet_invalid","error_code":30}`))
	}))

	_, err := client.AddMagnet(context.Background(), "magnet:?xt=urn:btih:abc")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrProviderUnavailable)
	assert.Contains(t, err.Error(), "magnet_invalid")
	assert.Equal(t, int32(1), calls.Load())
}

func TestCallsRespectSharedLimiter(t *testing.T) {
	const interval = 40 * time.Millisecond

	var timestamps []time.Time
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		timestamps = append(timestamps, time.Now())
		w.Write([]byte(`{"id":"TOR1","filename":"x","status":"downloaded","files":[],"links":[]}`))
	}))
	defer server.Close()

	limiter := ratelimit.NewCallLimiter(interval)
	client := NewClient("k", server.URL, limiter, 1, 0)

	for i := 0; i < 3; i++ {
		_, err := client.TorrentInfo(context.Background(), "TOR1")
		require.NoError(t, err)
	}

	require.Len(t, timestamps, 3)
	for i := 1; i < len(timestamps); i++ {
		gap := timestamps[i].Sub(timestamps[i-1])
		assert.GreaterOrEqual(t, gap, interval-10*time.Millisecond,
			"calls %d and %d spaced %v apart", i-1, i, gap)
	}
}

func TestSelectFilesPostsIDs(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/torrents/selectFiles/TOR1", r.URL.Path)
		require.NoError(t, r.ParseForm())
		require.Equal(t, "4", r.PostForm.Get("files"))
		w.WriteHeader(http.StatusNoContent)
	}))

	require.NoError(t, client.SelectFiles(context.Background(), "TOR1", "4"))
}

func TestUnrestrictLinkRequiresDownloadURL(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"filename":"video.mkv","filesize":10}`))
	}))

	_, err := client.UnrestrictLink(context.Background(), "https://real-debrid.com/d/XYZ")
	require.Error(t, err)
}

func TestCallCancelledContext(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"TOR1"}`))
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.AddMagnet(ctx, "magnet:?xt=urn:btih:abc")
	require.ErrorIs(t, err, context.Canceled)
}
