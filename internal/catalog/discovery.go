package catalog

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Candidate search queries, tried in order. The transactions dataset is
// republished under changing names, so both Hebrew and English phrasings are
// attempted.
var searchQueries = []string{
	"עסקאות נדל\"ן",
	"real estate transactions",
	"עסקאות מקרקעין",
	"נדלן",
}

// Keyword substrings that mark a resource as transactions data.
var resourceKeywords = []string{
	"transactions",
	"עסקאות",
	"מקרקעין",
	"נדל",
}

// File formats acceptable as a flat-file fallback when no datastore-backed
// resource exists.
var fallbackFormats = map[string]bool{
	"CSV":  true,
	"XLS":  true,
	"XLSX": true,
}

// Resource is one catalog resource candidate for the transactions dataset.
type Resource struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	Format          string `json:"format"`
	URL             string `json:"url"`
	DatastoreActive bool   `json:"datastore_active"`
}

type searchResponse struct {
	Success bool `json:"success"`
	Result  struct {
		Results []struct {
			Title     string     `json:"title"`
			Resources []Resource `json:"resources"`
		} `json:"results"`
	} `json:"result"`
}

// Options configures a Discovery client.
type Options struct {
	SearchURL  string
	UserAgent  string
	Timeout    time.Duration
	SearchRows int
}

// Discovery locates the currently active real-estate transactions dataset in
// an open-data catalog.
type Discovery struct {
	logger *logrus.Logger
	opts   Options
	client *http.Client
}

func NewDiscovery(logger *logrus.Logger, opts Options) *Discovery {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.SearchRows == 0 {
		opts.SearchRows = 10
	}
	return &Discovery{
		logger: logger,
		opts:   opts,
		client: &http.Client{Timeout: opts.Timeout},
	}
}

// FindTransactionsResource searches the catalog for a transactions resource.
// A datastore-backed resource short-circuits the remaining queries; otherwise
// the first flat-file candidate found across all queries is returned. A nil
// result without error means nothing matched.
func (d *Discovery) FindTransactionsResource() (*Resource, error) {
	var fallback *Resource

	for _, query := range searchQueries {
		resp, err := d.search(query)
		if err != nil {
			d.logger.WithError(err).WithField("query", query).Warn("Catalog search failed")
			continue
		}

		for _, pkg := range resp.Result.Results {
			for i := range pkg.Resources {
				res := pkg.Resources[i]
				if !matchesKeywords(res) {
					continue
				}

				if res.DatastoreActive {
					d.logger.WithFields(logrus.Fields{
						"resource_id": res.ID,
						"name":        res.Name,
						"query":       query,
					}).Info("Found datastore-backed transactions resource")
					return &res, nil
				}

				if fallback == nil && fallbackFormats[strings.ToUpper(res.Format)] {
					d.logger.WithFields(logrus.Fields{
						"resource_id": res.ID,
						"format":      res.Format,
					}).Debug("Recorded flat-file fallback resource")
					fallback = &res
				}
			}
		}
	}

	if fallback != nil {
		d.logger.WithField("resource_id", fallback.ID).Info("Falling back to flat-file transactions resource")
	}
	return fallback, nil
}

func matchesKeywords(res Resource) bool {
	haystack := strings.ToLower(res.Name + " " + res.Description)
	for _, kw := range resourceKeywords {
		if strings.Contains(haystack, kw) {
			return true
		}
	}
	return false
}

func (d *Discovery) search(query string) (*searchResponse, error) {
	params := url.Values{
		"q":    []string{query},
		"rows": []string{strconv.Itoa(d.opts.SearchRows)},
	}

	req, err := http.NewRequest("GET", d.opts.SearchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}

	req.URL.RawQuery = params.Encode()
	req.Header.Set("User-Agent", d.opts.UserAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog search failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %v", err)
	}

	var result searchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %v", err)
	}
	if !result.Success {
		return nil, fmt.Errorf("catalog reported failure")
	}

	return &result, nil
}
