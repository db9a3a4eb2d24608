package geocoding

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	// ErrAddressNotFound means the feature service returned zero features
	// for the street / house-number combination.
	ErrAddressNotFound = errors.New("address not found")

	// ErrUpstreamService means the feature service kept failing after the
	// retry budget was exhausted.
	ErrUpstreamService = errors.New("upstream service failure")
)

// Options configures a Geocoder.
type Options struct {
	BaseURL        string
	UserAgent      string
	Timeout        time.Duration
	MaxAttempts    int
	RetryBaseDelay time.Duration
	CacheDir       string
}

// Geocoder resolves street addresses to planar grid coordinates via a
// spatial address feature service.
type Geocoder struct {
	logger    *logrus.Logger
	opts      Options
	cacheDir  string
	cache     map[string][]float64
	cacheLock sync.RWMutex
	client    *http.Client
}

func NewGeocoder(logger *logrus.Logger, opts Options) *Geocoder {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = 3
	}
	if opts.RetryBaseDelay == 0 {
		opts.RetryBaseDelay = time.Second
	}
	if opts.CacheDir == "" {
		opts.CacheDir = filepath.Join(os.TempDir(), "nadlanscope", "geocode_cache")
	}
	os.MkdirAll(opts.CacheDir, 0755)

	g := &Geocoder{
		logger:   logger,
		opts:     opts,
		cacheDir: opts.CacheDir,
		cache:    make(map[string][]float64),
		client:   &http.Client{Timeout: opts.Timeout},
	}

	g.loadCache()

	return g
}

func (g *Geocoder) loadCache() {
	cacheFile := filepath.Join(g.cacheDir, "geocode_cache.json")
	data, err := os.ReadFile(cacheFile)
	if err != nil {
		g.logger.Debugf("Could not load geocode cache: %v", err)
		return
	}

	err = json.Unmarshal(data, &g.cache)
	if err != nil {
		g.logger.Errorf("Failed to parse geocode cache: %v", err)
		return
	}

	g.logger.Infof("Loaded %d cached addresses", len(g.cache))
}

func (g *Geocoder) saveCache() {
	g.cacheLock.RLock()
	defer g.cacheLock.RUnlock()

	cacheFile := filepath.Join(g.cacheDir, "geocode_cache.json")
	data, err := json.Marshal(g.cache)
	if err != nil {
		g.logger.Errorf("Failed to marshal geocode cache: %v", err)
		return
	}

	err = os.WriteFile(cacheFile, data, 0644)
	if err != nil {
		g.logger.Errorf("Failed to save geocode cache: %v", err)
	}
}

type featureResponse struct {
	Features []struct {
		Geometry struct {
			X float64 `json:"x"`
			Y float64 `json:"y"`
		} `json:"geometry"`
	} `json:"features"`
}

// GeocodeAddress resolves a street name and house number to planar grid
// coordinates. When like is true the street name is matched as a substring,
// otherwise exactly. The first matching feature wins.
func (g *Geocoder) GeocodeAddress(street string, houseNumber int, like bool) (float64, float64, error) {
	cacheKey := fmt.Sprintf("%s|%d|%t", street, houseNumber, like)

	g.cacheLock.RLock()
	if coords, ok := g.cache[cacheKey]; ok {
		g.cacheLock.RUnlock()
		if len(coords) == 2 {
			g.logger.WithFields(logrus.Fields{
				"street":       street,
				"house_number": houseNumber,
				"source":       "cache",
			}).Debug("Found coordinates in cache")
			return coords[0], coords[1], nil
		}
		return 0, 0, fmt.Errorf("invalid cached coordinates")
	}
	g.cacheLock.RUnlock()

	g.logger.WithFields(logrus.Fields{
		"street":       street,
		"house_number": houseNumber,
		"like":         like,
	}).Info("Geocoding address")

	var where string
	escaped := strings.ReplaceAll(street, "'", "''")
	if like {
		where = fmt.Sprintf("street_name LIKE '%%%s%%' AND house_number = %d", escaped, houseNumber)
	} else {
		where = fmt.Sprintf("street_name = '%s' AND house_number = %d", escaped, houseNumber)
	}

	params := url.Values{
		"where":          []string{where},
		"outFields":      []string{"*"},
		"returnGeometry": []string{"true"},
		"f":              []string{"json"},
	}

	result, err := g.queryWithRetry(params)
	if err != nil {
		return 0, 0, err
	}

	if len(result.Features) == 0 {
		g.logger.WithFields(logrus.Fields{
			"street":       street,
			"house_number": houseNumber,
		}).Warn("No features returned for address")
		return 0, 0, fmt.Errorf("%w: %s %d", ErrAddressNotFound, street, houseNumber)
	}

	x := result.Features[0].Geometry.X
	y := result.Features[0].Geometry.Y

	g.logger.WithFields(logrus.Fields{
		"street":       street,
		"house_number": houseNumber,
		"x":            x,
		"y":            y,
	}).Info("Successfully geocoded address")

	g.cacheLock.Lock()
	g.cache[cacheKey] = []float64{x, y}
	g.cacheLock.Unlock()

	go g.saveCache()

	return x, y, nil
}

// queryWithRetry issues the feature-service request with linear backoff
// (base delay times the attempt number) up to the configured attempt budget.
func (g *Geocoder) queryWithRetry(params url.Values) (*featureResponse, error) {
	var lastErr error
	for attempt := 1; attempt <= g.opts.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := g.opts.RetryBaseDelay * time.Duration(attempt-1)
			g.logger.Infof("Retrying geocode request, attempt %d of %d after %s", attempt, g.opts.MaxAttempts, delay)
			time.Sleep(delay)
		}

		result, err := g.query(params)
		if err == nil {
			return result, nil
		}
		lastErr = err
		g.logger.WithError(err).Warnf("Geocode request failed on attempt %d", attempt)
	}

	return nil, fmt.Errorf("%w: %v", ErrUpstreamService, lastErr)
}

func (g *Geocoder) query(params url.Values) (*featureResponse, error) {
	req, err := http.NewRequest("GET", g.opts.BaseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}

	req.URL.RawQuery = params.Encode()
	req.Header.Set("User-Agent", g.opts.UserAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocoding request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocoding service returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %v", err)
	}

	var result featureResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %v", err)
	}

	return &result, nil
}
