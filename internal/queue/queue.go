package queue

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"nadlanscope/server/internal/models"
)

var (
	ErrQueueFull   = errors.New("queue is full")
	ErrQueueClosed = errors.New("queue is closed")
)

// SearchRecordQueue is an in-memory queue of search-record batches awaiting
// persistence, so recording a search never adds latency to a response.
type SearchRecordQueue struct {
	items    chan []*models.SearchRecord
	done     chan struct{}
	maxSize  int
	closed   bool
	mu       sync.RWMutex
	logger   *logrus.Logger
	handlers []func([]*models.SearchRecord) error
}

// NewSearchRecordQueue creates a queue with the specified buffer size.
func NewSearchRecordQueue(bufferSize int, logger *logrus.Logger) *SearchRecordQueue {
	return &SearchRecordQueue{
		items:    make(chan []*models.SearchRecord, bufferSize),
		done:     make(chan struct{}),
		maxSize:  bufferSize,
		logger:   logger,
		handlers: make([]func([]*models.SearchRecord) error, 0),
	}
}

// Push adds a batch of search records to the queue.
func (q *SearchRecordQueue) Push(records []*models.SearchRecord) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return ErrQueueClosed
	}
	q.mu.RUnlock()

	// Non-blocking send to prevent deadlocks
	select {
	case q.items <- records:
		q.logger.WithField("batch_size", len(records)).Debug("Pushed batch to queue")
		return nil
	default:
		return ErrQueueFull
	}
}

// Subscribe adds a handler function that will be called for each batch
func (q *SearchRecordQueue) Subscribe(handler func([]*models.SearchRecord) error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers = append(q.handlers, handler)
}

// Start begins processing items in the queue
func (q *SearchRecordQueue) Start() {
	go q.process()
}

func (q *SearchRecordQueue) process() {
	for {
		select {
		case <-q.done:
			return
		case batch := <-q.items:
			q.processBatch(batch)
		}
	}
}

func (q *SearchRecordQueue) processBatch(batch []*models.SearchRecord) {
	q.mu.RLock()
	handlers := q.handlers
	q.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(batch); err != nil {
			q.logger.WithError(err).Error("Handler failed to process batch")
		}
	}
}

// Close stops the queue and prevents new items from being added.
func (q *SearchRecordQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}

	q.closed = true
	close(q.done)
	close(q.items)
	return nil
}

// Len returns the current number of batches in the queue.
func (q *SearchRecordQueue) Len() int {
	return len(q.items)
}

// IsClosed returns whether the queue has been closed.
func (q *SearchRecordQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
