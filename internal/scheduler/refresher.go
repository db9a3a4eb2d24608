package scheduler

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"nadlanscope/server/internal/comps"
)

// DatasetRefresher periodically re-runs catalog discovery so requests can
// skip it when a known-fresh transactions resource id is available. The
// pipeline still discovers on its own when no hint exists.
type DatasetRefresher struct {
	finder     comps.ResourceFinder
	logger     *logrus.Logger
	interval   time.Duration
	stopChan   chan struct{}
	wg         sync.WaitGroup
	mu         sync.RWMutex
	resourceID string
}

// NewDatasetRefresher creates a refresher polling at the given interval.
func NewDatasetRefresher(finder comps.ResourceFinder, logger *logrus.Logger, interval time.Duration) *DatasetRefresher {
	if interval <= 0 {
		interval = time.Hour
	}
	return &DatasetRefresher{
		finder:   finder,
		logger:   logger,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start runs an immediate refresh and then refreshes on the interval.
func (r *DatasetRefresher) Start() {
	r.wg.Add(1)
	go r.run()
}

func (r *DatasetRefresher) run() {
	defer r.wg.Done()

	if err := r.Refresh(); err != nil {
		r.logger.WithError(err).Warn("Initial dataset discovery failed")
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopChan:
			return
		case <-ticker.C:
			if err := r.Refresh(); err != nil {
				r.logger.WithError(err).Warn("Scheduled dataset discovery failed")
			}
		}
	}
}

// Refresh re-runs discovery and updates the cached resource id. A run that
// finds nothing clears the hint so requests fall back to their own discovery.
func (r *DatasetRefresher) Refresh() error {
	resource, err := r.finder.FindTransactionsResource()
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if resource == nil || !resource.DatastoreActive {
		r.logger.Warn("Dataset discovery found no datastore-backed resource")
		r.resourceID = ""
		return nil
	}

	if r.resourceID != resource.ID {
		r.logger.WithFields(logrus.Fields{
			"previous": r.resourceID,
			"current":  resource.ID,
		}).Info("Active transactions dataset changed")
	}
	r.resourceID = resource.ID
	return nil
}

// CurrentResourceID returns the cached resource id, or empty when discovery
// has not succeeded yet.
func (r *DatasetRefresher) CurrentResourceID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resourceID
}

// Stop gracefully stops the refresher.
func (r *DatasetRefresher) Stop() {
	close(r.stopChan)
	r.wg.Wait()
}
