package main

import (
	"os"
	"path/filepath"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"nadlanscope/server/config"
	"nadlanscope/server/internal/api"
	"nadlanscope/server/internal/catalog"
	"nadlanscope/server/internal/comps"
	"nadlanscope/server/internal/datastore"
	"nadlanscope/server/internal/geocoding"
	"nadlanscope/server/internal/processor"
	"nadlanscope/server/internal/queue"
	"nadlanscope/server/internal/scheduler"
	"nadlanscope/server/internal/store"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	// Initialize the search-history store
	if dir := filepath.Dir(cfg.Server.DBPath); dir != "." {
		os.MkdirAll(dir, 0755)
	}
	logger.Infof("Using database at: %s", cfg.Server.DBPath)
	st, err := store.NewStore(cfg.Server.DBPath, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize store")
	}

	// Start the asynchronous search-record persistence pipeline
	recordQueue := queue.NewSearchRecordQueue(cfg.History.QueueSize, logger)
	recordQueue.Start()
	batchProcessor := processor.NewBatchProcessor(st.GetDB(), recordQueue, cfg, logger)
	batchProcessor.Start()
	defer batchProcessor.Stop()

	// Upstream clients
	geocoder := geocoding.NewGeocoder(logger, geocoding.Options{
		BaseURL:        cfg.Upstream.GeocoderURL,
		UserAgent:      cfg.Upstream.UserAgent,
		Timeout:        cfg.Geocoding.Timeout,
		MaxAttempts:    cfg.Geocoding.MaxAttempts,
		RetryBaseDelay: cfg.Geocoding.RetryBaseDelay,
		CacheDir:       cfg.Geocoding.CacheDir,
	})
	discovery := catalog.NewDiscovery(logger, catalog.Options{
		SearchURL:  cfg.Upstream.CatalogSearchURL,
		UserAgent:  cfg.Upstream.UserAgent,
		Timeout:    cfg.Catalog.Timeout,
		SearchRows: cfg.Catalog.SearchRows,
	})
	fetcher := datastore.NewFetcher(logger, datastore.Options{
		SearchURL:       cfg.Upstream.DatastoreSearchURL,
		UserAgent:       cfg.Upstream.UserAgent,
		Timeout:         cfg.Datastore.Timeout,
		PageSize:        cfg.Datastore.PageSize,
		PageSizeCeiling: cfg.Datastore.PageSizeCeiling,
		PageDelay:       cfg.Datastore.PageDelay,
	})

	service := comps.NewService(logger, geocoder, discovery, fetcher)

	// Keep the active dataset id warm in the background
	refresher := scheduler.NewDatasetRefresher(discovery, logger, cfg.Refresher.Interval)
	refresher.Start()
	defer refresher.Stop()

	handler := api.NewHandler(service, st, recordQueue, refresher, logger)

	router := gin.Default()
	router.Use(cors.Default())
	api.SetupRoutes(router, handler)

	logger.Infof("Starting server on port %s", cfg.Server.Port)
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		logger.WithError(err).Fatal("Server failed to start")
	}
}
