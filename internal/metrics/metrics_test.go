package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounters(t *testing.T) {
	t.Parallel()

	r := NewRecorder()
	r.ObserveURL(true)
	r.ObserveURL(true)
	r.ObserveURL(false)
	r.ObserveListing(true, 5, 20*time.Millisecond)
	r.ObserveListing(false, 0, time.Second)
	r.ObserveIngest(7, 2, time.Unix(1_700_000_000, 0))

	assert.Equal(t, 2.0, testutil.ToFloat64(r.urls.WithLabelValues("valid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.urls.WithLabelValues("fallback")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.listings.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.listings.WithLabelValues("error")))
	assert.Equal(t, 5.0, testutil.ToFloat64(r.returned))
	assert.Equal(t, 7.0, testutil.ToFloat64(r.ingested.WithLabelValues("upserted")))
	assert.Equal(t, 1_700_000_000.0, testutil.ToFloat64(r.lastScrape))
}

func TestRecorderHandler(t *testing.T) {
	t.Parallel()

	r := NewRecorder()
	r.ObserveURL(false)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `formations_urls_total{outcome="fallback"} 1`)
}
