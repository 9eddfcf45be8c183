package geocode

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch_ParsesRankedResults(t *testing.T) {
	var gotQuery, gotFormat, gotLimit, gotUA string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotFormat = r.URL.Query().Get("format")
		gotLimit = r.URL.Query().Get("limit")
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[
			{"lat": "40.7127281", "lon": "-74.0060152", "display_name": "New York, United States", "class": "boundary", "type": "administrative", "importance": 0.94},
			{"lat": "40.1", "lon": "-75.2", "display_name": "Elsewhere", "class": "place", "type": "village", "importance": 0.21}
		]`)
	}))
	defer srv.Close()

	c := NewClient(
		WithBaseURL(srv.URL),
		WithUserAgent("cardmap-test/1.0"),
		WithLimit(5),
		WithRateLimit(1000),
	)

	results, err := c.Search(context.Background(), "New York, NY")
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "New York, NY", gotQuery)
	assert.Equal(t, "jsonv2", gotFormat)
	assert.Equal(t, "5", gotLimit)
	assert.Equal(t, "cardmap-test/1.0", gotUA)

	// Provider rank order is preserved; lat/lon strings become floats.
	assert.InDelta(t, 40.7127281, results[0].Lat, 1e-9)
	assert.InDelta(t, -74.0060152, results[0].Lng, 1e-9)
	assert.Equal(t, "New York, United States", results[0].DisplayName)
	assert.InDelta(t, 40.1, results[1].Lat, 1e-9)
}

func TestSearch_EmptyResultSetIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRateLimit(1000))
	results, err := c.Search(context.Background(), "nowhere at all")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRateLimit(1000))
	_, err := c.Search(context.Background(), "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}

func TestSearch_MalformedLatitude(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[{"lat": "not-a-number", "lon": "-74.0"}]`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRateLimit(1000))
	_, err := c.Search(context.Background(), "anything")
	assert.Error(t, err)
}

func TestSearch_RateLimiterSpacing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	// 10 req/s: the second call must wait roughly 100ms for a token.
	c := NewClient(WithBaseURL(srv.URL), WithRateLimit(10))

	start := time.Now()
	_, err := c.Search(context.Background(), "first")
	require.NoError(t, err)
	_, err = c.Search(context.Background(), "second")
	require.NoError(t, err)

	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestSearch_CacheHitSkipsNetwork(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = io.WriteString(w, `[{"lat": "51.5", "lon": "-0.12", "display_name": "London"}]`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRateLimit(1000), WithCache(newMemCache()))

	first, err := c.Search(context.Background(), "London")
	require.NoError(t, err)
	second, err := c.Search(context.Background(), "London")
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load(), "second search should be served from cache")
	assert.Equal(t, first, second)
}

func TestSearch_CachesEmptyResultSets(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRateLimit(1000), WithCache(newMemCache()))

	_, err := c.Search(context.Background(), "no such place")
	require.NoError(t, err)
	results, err := c.Search(context.Background(), "no such place")
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load(), "unmatched queries should be cached too")
	assert.Empty(t, results)
}

func TestSearch_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRateLimit(1000))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Search(ctx, "anything")
	assert.Error(t, err)
}

func TestCacheKeyNormalizesWhitespaceAndCase(t *testing.T) {
	t.Parallel()

	assert.Equal(t, cacheKey("221B  Baker Street"), cacheKey("221b baker   street"))
	assert.NotEqual(t, cacheKey("221B Baker Street"), cacheKey("220B Baker Street"))
}
