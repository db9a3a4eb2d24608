package config

import (
	"time"

	"github.com/caarlos0/env/v6"
)

type Config struct {
	// Server configuration
	Server struct {
		Port   string `env:"SERVER_PORT" envDefault:"5260"`
		DBPath string `env:"DB_PATH" envDefault:"database/nadlanscope.db"`
	}

	// Upstream service endpoints
	Upstream struct {
		// Spatial address feature service used for geocoding
		GeocoderURL string `env:"GEOCODER_URL" envDefault:"https://ags.govmap.gov.il/arcgis/rest/services/AdditionalData/MapServer/0/query"`

		// Open-data catalog search endpoint
		CatalogSearchURL string `env:"CATALOG_SEARCH_URL" envDefault:"https://data.gov.il/api/3/action/package_search"`

		// Tabular datastore query endpoint
		DatastoreSearchURL string `env:"DATASTORE_SEARCH_URL" envDefault:"https://data.gov.il/api/3/action/datastore_search"`

		// Identifying User-Agent sent on every outbound request
		UserAgent string `env:"UPSTREAM_USER_AGENT" envDefault:"NadlanScope Comparables/1.0"`
	}

	// Geocoding configuration
	Geocoding struct {
		// Request timeout for one feature-service call
		Timeout time.Duration `env:"GEOCODE_TIMEOUT" envDefault:"30s"`

		// Maximum number of attempts before surfacing an upstream error
		MaxAttempts int `env:"GEOCODE_MAX_ATTEMPTS" envDefault:"3"`

		// Base delay for linear backoff (delay = base * attempt)
		RetryBaseDelay time.Duration `env:"GEOCODE_RETRY_BASE_DELAY" envDefault:"1s"`

		// Directory for the file-backed geocode cache
		CacheDir string `env:"GEOCODE_CACHE_DIR" envDefault:""`
	}

	// Catalog discovery configuration
	Catalog struct {
		Timeout time.Duration `env:"CATALOG_TIMEOUT" envDefault:"30s"`

		// Maximum packages inspected per candidate query
		SearchRows int `env:"CATALOG_SEARCH_ROWS" envDefault:"10"`
	}

	// Datastore pagination configuration
	Datastore struct {
		Timeout time.Duration `env:"DATASTORE_TIMEOUT" envDefault:"60s"`

		// Preferred page size; capped by PageSizeCeiling
		PageSize int `env:"DATASTORE_PAGE_SIZE" envDefault:"1000"`

		// Hard upstream page-size ceiling
		PageSizeCeiling int `env:"DATASTORE_PAGE_CEILING" envDefault:"32000"`

		// Unconditional pacing delay between successive page fetches
		PageDelay time.Duration `env:"DATASTORE_PAGE_DELAY" envDefault:"300ms"`
	}

	// Search-history persistence configuration
	History struct {
		// Queue buffer size for pending search records
		QueueSize int `env:"HISTORY_QUEUE_SIZE" envDefault:"64"`

		// Number of concurrent persistence workers
		ProcessorCount int `env:"HISTORY_PROCESSOR_COUNT" envDefault:"1"`

		// Maximum number of retries for failed batches
		MaxRetries int `env:"HISTORY_MAX_RETRIES" envDefault:"3"`

		// Delay between retries
		RetryDelay time.Duration `env:"HISTORY_RETRY_DELAY" envDefault:"5s"`
	}

	// Dataset refresher configuration
	Refresher struct {
		// How often the active transactions dataset is rediscovered
		Interval time.Duration `env:"DATASET_REFRESH_INTERVAL" envDefault:"1h"`
	}
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
