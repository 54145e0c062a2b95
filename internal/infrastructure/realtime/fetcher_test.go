package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/TRAXX-Intelligence/internal/config"
	"github.com/turtacn/TRAXX-Intelligence/internal/infrastructure/database/redis"
	"github.com/turtacn/TRAXX-Intelligence/internal/testutil"
	"github.com/turtacn/TRAXX-Intelligence/pkg/errors"
)

type contextServer struct {
	*httptest.Server
	hits map[string]*int32
}

func newContextServer(t *testing.T, routes map[string]string) *contextServer {
	cs := &contextServer{hits: make(map[string]*int32)}
	mux := http.NewServeMux()
	for path, body := range routes {
		path, body := path, body
		cs.hits[path] = new(int32)
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(cs.hits[path], 1)
			if body == "" {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(body))
		})
	}
	cs.Server = httptest.NewServer(mux)
	t.Cleanup(cs.Close)
	return cs
}

func fetcherFor(t *testing.T, url string, opts ...Option) *Fetcher {
	f, err := NewFetcher(config.QueryConfig{ContextBaseURL: url, ContextTimeout: time.Second, ContextCacheTTL: 15 * time.Second}, nil, opts...)
	require.NoError(t, err)
	return f
}

func TestNewFetcher_RequiresBaseURL(t *testing.T) {
	_, err := NewFetcher(config.QueryConfig{}, nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
}

func TestFetcher_Shapes(t *testing.T) {
	srv := newContextServer(t, map[string]string{
		PathKits:   `[{"id":"t-1"},{"id":"t-2"},"junk"]`,
		PathAlerts: `{"success":true,"data":{"alerts":[{"id":"a-1"}]}}`,
		PathStats:  `{"success":true,"data":{"active_trackers":12}}`,
	})
	f := fetcherFor(t, srv.URL+"/")
	ctx := context.Background()

	kits, err := f.FetchKits(ctx)
	require.NoError(t, err)
	assert.Len(t, kits, 2)
	assert.Equal(t, "t-2", kits[1]["id"])

	alerts, err := f.FetchAlerts(ctx)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "a-1", alerts[0]["id"])

	stats, err := f.FetchStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, float64(12), stats["active_trackers"])
}

func TestFetcher_Failures(t *testing.T) {
	srv := newContextServer(t, map[string]string{
		PathKits:   "",
		PathAlerts: `{"alerts": "nope"}`,
		PathStats:  `[1, 2]`,
	})
	f := fetcherFor(t, srv.URL)
	ctx := context.Background()

	_, err := f.FetchKits(ctx)
	assert.True(t, errors.IsCode(err, errors.ErrCodeQueryContextFailed))
	assert.Contains(t, err.Error(), "HTTP 503")

	_, err = f.FetchAlerts(ctx)
	assert.True(t, errors.IsCode(err, errors.ErrCodeQueryContextFailed))

	_, err = f.FetchStats(ctx)
	assert.True(t, errors.IsCode(err, errors.ErrCodeQueryContextFailed))
}

func TestFetcher_CachesWithinTTL(t *testing.T) {
	srv := newContextServer(t, map[string]string{PathKits: `[{"id":"t-1"}]`})
	clock := testutil.NewFakeClock(testutil.Epoch)
	f := fetcherFor(t, srv.URL, WithCache(redis.NewMemoryCache(clock)))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		kits, err := f.FetchKits(ctx)
		require.NoError(t, err)
		assert.Len(t, kits, 1)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(srv.hits[PathKits]))

	clock.Advance(15 * time.Second)
	_, err := f.FetchKits(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(srv.hits[PathKits]))
}

func TestFetcher_FailuresNotCached(t *testing.T) {
	srv := newContextServer(t, map[string]string{PathStats: ""})
	f := fetcherFor(t, srv.URL, WithCache(redis.NewMemoryCache(nil)))

	for i := 0; i < 2; i++ {
		_, err := f.FetchStats(context.Background())
		assert.Error(t, err)
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(srv.hits[PathStats]))
}

func TestFetcher_HonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()
	f := fetcherFor(t, srv.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := f.FetchKits(ctx)
	assert.True(t, errors.IsCode(err, errors.ErrCodeQueryContextFailed))
}

func TestFetcher_SendsBearer(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	f, err := NewFetcher(config.QueryConfig{ContextBaseURL: srv.URL, APIKey: "k-1"}, nil)
	require.NoError(t, err)
	_, err = f.FetchStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer k-1", auth)
}

//Personal.AI order the ending
