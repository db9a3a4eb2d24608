package datastore

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"nadlanscope/server/internal/models"
)

// Options configures a Fetcher.
type Options struct {
	SearchURL       string
	UserAgent       string
	Timeout         time.Duration
	PageSize        int
	PageSizeCeiling int
	PageDelay       time.Duration
}

// Fetcher retrieves rows from a datastore-backed catalog resource in bounded
// pages.
type Fetcher struct {
	logger *logrus.Logger
	opts   Options
	client *http.Client
}

type searchResponse struct {
	Success bool `json:"success"`
	Result  struct {
		Records []models.RawTransactionRecord `json:"records"`
	} `json:"result"`
}

func NewFetcher(logger *logrus.Logger, opts Options) *Fetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.PageSize == 0 {
		opts.PageSize = 1000
	}
	if opts.PageSizeCeiling == 0 {
		opts.PageSizeCeiling = 32000
	}
	if opts.PageDelay == 0 {
		opts.PageDelay = 300 * time.Millisecond
	}
	return &Fetcher{
		logger: logger,
		opts:   opts,
		client: &http.Client{Timeout: opts.Timeout},
	}
}

// FetchAll retrieves up to limit rows from the resource, optionally narrowed
// by the free-text filter q. A failing page stops pagination and returns the
// rows accumulated so far; comparables work on a best-effort sample.
func (f *Fetcher) FetchAll(resourceID, q string, limit int) []models.RawTransactionRecord {
	var records []models.RawTransactionRecord

	for len(records) < limit {
		pageSize := f.opts.PageSize
		if remaining := limit - len(records); remaining < pageSize {
			pageSize = remaining
		}
		if pageSize > f.opts.PageSizeCeiling {
			pageSize = f.opts.PageSizeCeiling
		}

		page, err := f.fetchPage(resourceID, q, pageSize, len(records))
		if err != nil {
			f.logger.WithError(err).WithFields(logrus.Fields{
				"resource_id": resourceID,
				"offset":      len(records),
				"fetched":     len(records),
			}).Warn("Page fetch failed, returning partial results")
			break
		}

		records = append(records, page...)

		// A short page signals end-of-data.
		if len(page) < pageSize {
			break
		}

		time.Sleep(f.opts.PageDelay)
	}

	f.logger.WithFields(logrus.Fields{
		"resource_id": resourceID,
		"count":       len(records),
	}).Info("Fetched datastore rows")

	return records
}

func (f *Fetcher) fetchPage(resourceID, q string, limit, offset int) ([]models.RawTransactionRecord, error) {
	params := url.Values{
		"resource_id": []string{resourceID},
		"limit":       []string{strconv.Itoa(limit)},
		"offset":      []string{strconv.Itoa(offset)},
	}
	if q != "" {
		params.Set("q", q)
	}

	req, err := http.NewRequest("GET", f.opts.SearchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}

	req.URL.RawQuery = params.Encode()
	req.Header.Set("User-Agent", f.opts.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("datastore request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("datastore returned status %d", resp.StatusCode)
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
		return nil, fmt.Errorf("datastore reported failure")
	}

	return result.Result.Records, nil
}
