package catalog

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDiscovery(t *testing.T, handler http.HandlerFunc) *Discovery {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewDiscovery(logrus.New(), Options{
		SearchURL: server.URL,
		UserAgent: "test-agent",
	})
}

func searchResult(resources ...Resource) map[string]interface{} {
	return map[string]interface{}{
		"success": true,
		"result": map[string]interface{}{
			"results": []map[string]interface{}{
				{"title": "pkg", "resources": resources},
			},
		},
	}
}

func TestFindPrefersDatastoreActive(t *testing.T) {
	var requests int
	d := newTestDiscovery(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		json.NewEncoder(w).Encode(searchResult(
			Resource{ID: "flat", Name: "עסקאות נדלן", Format: "CSV"},
			Resource{ID: "live", Name: "real estate transactions", DatastoreActive: true},
		))
	})

	res, err := d.FindTransactionsResource()
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "live", res.ID)
	// A datastore-backed hit short-circuits the remaining queries.
	assert.Equal(t, 1, requests)
}

func TestFindFallsBackToFlatFile(t *testing.T) {
	var requests int
	d := newTestDiscovery(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		json.NewEncoder(w).Encode(searchResult(
			Resource{ID: "flat-1", Name: "עסקאות מקרקעין", Format: "CSV"},
			Resource{ID: "flat-2", Name: "transactions archive", Format: "XLSX"},
		))
	})

	res, err := d.FindTransactionsResource()
	require.NoError(t, err)
	require.NotNil(t, res)
	// First flat-file candidate across all queries wins, but only after
	// every query was given a chance to produce a datastore-backed hit.
	assert.Equal(t, "flat-1", res.ID)
	assert.Equal(t, len(searchQueries), requests)
}

func TestFindNoKeywordMatch(t *testing.T) {
	d := newTestDiscovery(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(searchResult(
			Resource{ID: "other", Name: "air quality measurements", DatastoreActive: true},
		))
	})

	res, err := d.FindTransactionsResource()
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestFindKeywordOnDescription(t *testing.T) {
	d := newTestDiscovery(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(searchResult(
			Resource{ID: "desc", Name: "dataset 7", Description: "כל עסקאות המקרקעין", DatastoreActive: true},
		))
	})

	res, err := d.FindTransactionsResource()
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "desc", res.ID)
}

func TestFindSurvivesFailingQueries(t *testing.T) {
	var requests int
	d := newTestDiscovery(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(searchResult(
			Resource{ID: "live", Name: "real estate transactions", DatastoreActive: true},
		))
	})

	res, err := d.FindTransactionsResource()
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "live", res.ID)
}

func TestFindEmptyCatalog(t *testing.T) {
	d := newTestDiscovery(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"result":  map[string]interface{}{"results": []interface{}{}},
		})
	})

	res, err := d.FindTransactionsResource()
	require.NoError(t, err)
	assert.Nil(t, res)
}
