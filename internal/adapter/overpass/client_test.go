package overpass_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tap-in-osm/overpass-etl/internal/adapter/overpass"
	"github.com/tap-in-osm/overpass-etl/internal/config"
	"github.com/tap-in-osm/overpass-etl/internal/observability"
)

const testQuery = "[out:json][timeout:60];node[amenity=drinking_water];out geom;"

// now is the frozen test time; response timestamps are offsets from it.
var now = time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

func responseBody(timestamp string, elementCount int) string {
	elements := ""
	for i := 0; i < elementCount; i++ {
		if i > 0 {
			elements += ","
		}
		elements += fmt.Sprintf(`{"type":"node","id":%d,"lat":1.0,"lon":2.0}`, i+1)
	}
	return fmt.Sprintf(`{"version":0.6,"osm3s":{"timestamp_osm_base":%q},"elements":[%s]}`, timestamp, elements)
}

func newClient(t *testing.T, endpoints ...string) *overpass.Client {
	t.Helper()
	cfg := &config.Config{
		Endpoints:       endpoints,
		MaxDataLagHours: 48,
		RequestTimeout:  5 * time.Second,
		RetryCooldown:   time.Millisecond,
		RateLimitRPS:    1000,
		RateLimitBurst:  100,
		UserAgent:       "overpass-etl-test/1.0",
	}
	c := overpass.NewClient(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), observability.NewMetrics())
	c.SetClock(clockwork.NewFakeClockAt(now))
	return c
}

func TestFetch_FirstEndpointSucceeds(t *testing.T) {
	var gotUA, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		require.NoError(t, r.ParseForm())
		gotQuery = r.PostFormValue("data")
		fmt.Fprint(w, responseBody(now.Add(-time.Hour).Format(time.RFC3339), 2))
	}))
	defer srv.Close()

	c := newClient(t, srv.URL)
	resp, err := c.Fetch(context.Background(), testQuery)
	require.NoError(t, err)

	assert.Len(t, resp.Elements, 2)
	assert.Equal(t, "overpass-etl-test/1.0", gotUA)
	assert.Equal(t, testQuery, gotQuery)
}

func TestFetch_FallsBackOnServerError(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gateway timeout", http.StatusGatewayTimeout)
	}))
	defer bad.Close()

	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, responseBody(now.Add(-time.Hour).Format(time.RFC3339), 1))
	}))
	defer good.Close()

	c := newClient(t, bad.URL, good.URL)
	resp, err := c.Fetch(context.Background(), testQuery)
	require.NoError(t, err)
	assert.Len(t, resp.Elements, 1)
}

func TestFetch_FallsBackOnRateLimit(t *testing.T) {
	var limitedCalls atomic.Int32
	limited := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		limitedCalls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer limited.Close()

	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, responseBody(now.Add(-time.Hour).Format(time.RFC3339), 1))
	}))
	defer good.Close()

	c := newClient(t, limited.URL, good.URL)
	resp, err := c.Fetch(context.Background(), testQuery)
	require.NoError(t, err)
	assert.Len(t, resp.Elements, 1)
	assert.Equal(t, int32(1), limitedCalls.Load(), "rate-limited mirror must not be retried")
}

func TestFetch_FallsBackOnStaleData(t *testing.T) {
	stale := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, responseBody(now.Add(-100*time.Hour).Format(time.RFC3339), 5))
	}))
	defer stale.Close()

	fresh := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, responseBody(now.Add(-2*time.Hour).Format(time.RFC3339), 3))
	}))
	defer fresh.Close()

	c := newClient(t, stale.URL, fresh.URL)
	resp, err := c.Fetch(context.Background(), testQuery)
	require.NoError(t, err)
	assert.Len(t, resp.Elements, 3)
}

func TestFetch_AllStaleFails(t *testing.T) {
	stale := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, responseBody(now.Add(-100*time.Hour).Format(time.RFC3339), 5))
	}))
	defer stale.Close()

	c := newClient(t, stale.URL)
	_, err := c.Fetch(context.Background(), testQuery)
	require.Error(t, err)

	var staleErr *overpass.StaleDataError
	require.ErrorAs(t, err, &staleErr)
	assert.InDelta(t, 100.0, staleErr.LagHours, 0.01)
}

func TestFetch_MissingTimestampTreatedAsFresh(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"version":0.6,"osm3s":{},"elements":[{"type":"node","id":1,"lat":1,"lon":2}]}`)
	}))
	defer srv.Close()

	c := newClient(t, srv.URL)
	resp, err := c.Fetch(context.Background(), testQuery)
	require.NoError(t, err)
	assert.Len(t, resp.Elements, 1)
}

func TestFetch_RemarkWithoutElementsFailsOver(t *testing.T) {
	remark := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"version":0.6,"osm3s":{"timestamp_osm_base":"2026-08-25T11:00:00Z"},"remark":"runtime error: query timed out","elements":[]}`)
	}))
	defer remark.Close()

	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, responseBody(now.Add(-time.Hour).Format(time.RFC3339), 2))
	}))
	defer good.Close()

	c := newClient(t, remark.URL, good.URL)
	resp, err := c.Fetch(context.Background(), testQuery)
	require.NoError(t, err)
	assert.Len(t, resp.Elements, 2)
}

func TestFetch_RemarkWithElementsIsNonFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `{"version":0.6,"osm3s":{"timestamp_osm_base":%q},"remark":"some quota warning","elements":[{"type":"node","id":1,"lat":1,"lon":2}]}`,
			now.Add(-time.Hour).Format(time.RFC3339))
	}))
	defer srv.Close()

	c := newClient(t, srv.URL)
	resp, err := c.Fetch(context.Background(), testQuery)
	require.NoError(t, err)
	assert.Equal(t, "some quota warning", resp.Remark)
}

func TestFetch_InvalidJSONFailsOver(t *testing.T) {
	html := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "<html>overloaded</html>")
	}))
	defer html.Close()

	c := newClient(t, html.URL)
	_, err := c.Fetch(context.Background(), testQuery)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all overpass endpoints failed")
}

func TestFetch_ContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := newClient(t, srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Fetch(ctx, testQuery)
	require.Error(t, err)
}
