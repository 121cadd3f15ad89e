package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validListing() string {
	return "<!DOCTYPE html><html><body>" + strings.Repeat("<div>товар</div>", 120) + "</body></html>"
}

func testFetcher(retryDelay time.Duration) *Fetcher {
	return New(&Options{Timeout: 2 * time.Second, RetryDelay: retryDelay}, nil)
}

func TestFetchSucceedsFirstAttempt(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, validListing())
	}))
	defer srv.Close()

	f := testFetcher(time.Millisecond)
	defer f.Close()

	body, err := f.Fetch(context.Background(), srv.URL, 3)
	require.NoError(t, err)
	assert.Contains(t, body, "<body>")
	assert.Equal(t, int32(1), hits.Load())
}

func TestFetchSendsBrowserHeaders(t *testing.T) {
	var gotUA, gotLang, gotReferer string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotLang = r.Header.Get("Accept-Language")
		gotReferer = r.Header.Get("Referer")
		fmt.Fprint(w, validListing())
	}))
	defer srv.Close()

	f := testFetcher(time.Millisecond)
	defer f.Close()

	_, err := f.Fetch(context.Background(), srv.URL, 1)
	require.NoError(t, err)

	assert.Contains(t, gotUA, "Chrome/131")
	assert.Contains(t, gotLang, "uk-UA")
	assert.Equal(t, "https://silpo.ua/", gotReferer)
}

func TestFetchRetriesWithLinearBackoff(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, validListing())
	}))
	defer srv.Close()

	const retryDelay = 50 * time.Millisecond
	f := testFetcher(retryDelay)
	defer f.Close()

	start := time.Now()
	body, err := f.Fetch(context.Background(), srv.URL, 3)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Contains(t, body, "<body>")
	assert.Equal(t, int32(3), hits.Load())

	// retryDelay×1 after the first failure, retryDelay×2 after the second.
	assert.GreaterOrEqual(t, elapsed, 3*retryDelay)
}

func TestFetchNoSleepAfterLastAttempt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := testFetcher(time.Hour)
	defer f.Close()

	start := time.Now()
	_, err := f.Fetch(context.Background(), srv.URL, 1)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Less(t, elapsed, time.Second)
}

func TestFetchExhaustionReturnsFetchError(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantReason string
	}{
		{
			name: "blocked",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusForbidden)
			},
			wantReason: ReasonBlocked,
		},
		{
			name: "not found",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			},
			wantReason: ReasonNotFound,
		},
		{
			name: "rate limited",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
			},
			wantReason: ReasonRateLimited,
		},
		{
			name: "other http error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
			wantReason: "http error 502",
		},
		{
			name: "short body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, "<!DOCTYPE html><html>too small</html>")
			},
			wantReason: ReasonShortBody,
		},
		{
			name: "not html",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, strings.Repeat(`{"json":"payload"}`, 100))
			},
			wantReason: ReasonNotHTML,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				tt.handler(w, r)
			}))
			defer srv.Close()

			f := testFetcher(time.Millisecond)
			defer f.Close()

			_, err := f.Fetch(context.Background(), srv.URL, 3)
			require.Error(t, err)

			var fetchErr *FetchError
			require.ErrorAs(t, err, &fetchErr)
			assert.Equal(t, tt.wantReason, fetchErr.Reason)
			assert.Equal(t, 3, fetchErr.Attempts)
			assert.Equal(t, srv.URL, fetchErr.URL)
			assert.Equal(t, int32(3), hits.Load())
		})
	}
}

func TestFetchTimeoutReason(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		fmt.Fprint(w, validListing())
	}))
	defer srv.Close()

	f := New(&Options{Timeout: 20 * time.Millisecond, RetryDelay: time.Millisecond}, nil)
	defer f.Close()

	_, err := f.Fetch(context.Background(), srv.URL, 2)
	require.Error(t, err)

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, ReasonTimeout, fetchErr.Reason)
}

func TestFetchConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	f := testFetcher(time.Millisecond)
	defer f.Close()

	_, err := f.Fetch(context.Background(), srv.URL, 2)
	require.Error(t, err)

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, ReasonConnection, fetchErr.Reason)
}

func TestFetchCancelledContextStopsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := testFetcher(time.Hour)
	defer f.Close()

	_, err := f.Fetch(ctx, srv.URL, 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFetchRenderedWithoutBrowserFallsBack(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, validListing())
	}))
	defer srv.Close()

	f := testFetcher(time.Millisecond)
	defer f.Close()

	body, err := f.FetchRendered(context.Background(), srv.URL, 3)
	require.NoError(t, err)
	assert.Contains(t, body, "<body>")
	assert.Equal(t, int32(1), hits.Load(), "rendered path must degrade to a plain fetch")
}
