package geocoding

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGeocoder(t *testing.T, handler http.HandlerFunc) *Geocoder {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewGeocoder(logrus.New(), Options{
		BaseURL:        server.URL,
		UserAgent:      "test-agent",
		MaxAttempts:    3,
		RetryBaseDelay: time.Millisecond,
		CacheDir:       t.TempDir(),
	})
}

func featureJSON(x, y float64) map[string]interface{} {
	return map[string]interface{}{
		"features": []map[string]interface{}{
			{"geometry": map[string]interface{}{"x": x, "y": y}},
		},
	}
}

func TestGeocodeAddress(t *testing.T) {
	var gotWhere, gotUA string
	g := newTestGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
		gotWhere = r.URL.Query().Get("where")
		gotUA = r.Header.Get("User-Agent")
		json.NewEncoder(w).Encode(featureJSON(184320.94, 668548.65))
	})

	x, y, err := g.GeocodeAddress("הגולן", 1, true)
	require.NoError(t, err)
	assert.Equal(t, 184320.94, x)
	assert.Equal(t, 668548.65, y)
	assert.Contains(t, gotWhere, "LIKE")
	assert.Contains(t, gotWhere, "הגולן")
	assert.Equal(t, "test-agent", gotUA)
}

func TestGeocodeExactMatch(t *testing.T) {
	var gotWhere string
	g := newTestGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
		gotWhere = r.URL.Query().Get("where")
		json.NewEncoder(w).Encode(featureJSON(1, 2))
	})

	_, _, err := g.GeocodeAddress("הגולן", 1, false)
	require.NoError(t, err)
	assert.NotContains(t, gotWhere, "LIKE")
	assert.Contains(t, gotWhere, "street_name = 'הגולן'")
}

func TestGeocodeFirstFeatureWins(t *testing.T) {
	g := newTestGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"features": []map[string]interface{}{
				{"geometry": map[string]interface{}{"x": 10.0, "y": 20.0}},
				{"geometry": map[string]interface{}{"x": 30.0, "y": 40.0}},
			},
		})
	})

	x, y, err := g.GeocodeAddress("הרצל", 5, true)
	require.NoError(t, err)
	assert.Equal(t, 10.0, x)
	assert.Equal(t, 20.0, y)
}

func TestGeocodeAddressNotFound(t *testing.T) {
	g := newTestGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"features": []interface{}{}})
	})

	_, _, err := g.GeocodeAddress("אין רחוב כזה", 1, true)
	require.ErrorIs(t, err, ErrAddressNotFound)
}

func TestGeocodeRetriesThenSucceeds(t *testing.T) {
	var requests int
	g := newTestGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(featureJSON(5, 6))
	})

	x, y, err := g.GeocodeAddress("הגולן", 1, true)
	require.NoError(t, err)
	assert.Equal(t, 5.0, x)
	assert.Equal(t, 6.0, y)
	assert.Equal(t, 3, requests)
}

func TestGeocodeRetryBudgetExhausted(t *testing.T) {
	var requests int
	g := newTestGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, _, err := g.GeocodeAddress("הגולן", 1, true)
	require.ErrorIs(t, err, ErrUpstreamService)
	assert.Equal(t, 3, requests)
}

func TestGeocodeCacheHit(t *testing.T) {
	var requests int
	g := newTestGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		json.NewEncoder(w).Encode(featureJSON(1.5, 2.5))
	})

	x1, y1, err := g.GeocodeAddress("הגולן", 1, true)
	require.NoError(t, err)

	x2, y2, err := g.GeocodeAddress("הגולן", 1, true)
	require.NoError(t, err)
	assert.Equal(t, x1, x2)
	assert.Equal(t, y1, y2)
	assert.Equal(t, 1, requests, "second lookup must come from the cache")
}
