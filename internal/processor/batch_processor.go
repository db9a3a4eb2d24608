package processor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"nadlanscope/server/config"
	"nadlanscope/server/internal/models"
	"nadlanscope/server/internal/queue"
	"nadlanscope/server/internal/store"
)

// BatchProcessor drains the search-record queue and persists batches with
// transaction and retry logic.
type BatchProcessor struct {
	db        *gorm.DB
	logger    *logrus.Logger
	config    *config.Config
	queue     *queue.SearchRecordQueue
	waitGroup sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewBatchProcessor creates a new batch processor instance
func NewBatchProcessor(db *gorm.DB, q *queue.SearchRecordQueue, cfg *config.Config, logger *logrus.Logger) *BatchProcessor {
	ctx, cancel := context.WithCancel(context.Background())
	return &BatchProcessor{
		db:     db,
		queue:  q,
		config: cfg,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins processing batches from the queue
func (p *BatchProcessor) Start() {
	for i := 0; i < p.config.History.ProcessorCount; i++ {
		p.waitGroup.Add(1)
		go p.processLoop()
	}
}

// Stop gracefully shuts down the processor
func (p *BatchProcessor) Stop() {
	p.cancel()
	p.waitGroup.Wait()
}

func (p *BatchProcessor) processLoop() {
	defer p.waitGroup.Done()

	p.queue.Subscribe(func(batch []*models.SearchRecord) error {
		return p.processBatch(batch)
	})
}

// processBatch persists a single batch with retries on failure.
func (p *BatchProcessor) processBatch(batch []*models.SearchRecord) error {
	var err error
	for attempt := 0; attempt <= p.config.History.MaxRetries; attempt++ {
		if attempt > 0 {
			p.logger.Infof("Retrying batch persistence, attempt %d of %d", attempt, p.config.History.MaxRetries)
			time.Sleep(p.config.History.RetryDelay)
		}

		err = p.db.Transaction(func(tx *gorm.DB) error {
			if err := store.SaveSearchRecords(tx, batch); err != nil {
				return fmt.Errorf("failed to save search records batch: %w", err)
			}
			return nil
		})

		if err == nil {
			p.logger.Infof("Successfully persisted batch of %d search records", len(batch))
			return nil
		}

		p.logger.Errorf("Batch persistence failed: %v", err)
	}

	return fmt.Errorf("failed to persist batch after %d attempts: %w", p.config.History.MaxRetries, err)
}
