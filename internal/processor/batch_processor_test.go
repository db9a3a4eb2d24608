package processor

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nadlanscope/server/config"
	"nadlanscope/server/internal/models"
	"nadlanscope/server/internal/queue"
	"nadlanscope/server/internal/store"
)

func newTestProcessor(t *testing.T) (*BatchProcessor, *store.Store, *queue.SearchRecordQueue) {
	logger := logrus.New()

	st, err := store.NewStore(filepath.Join(t.TempDir(), "test.db"), logger)
	require.NoError(t, err)

	q := queue.NewSearchRecordQueue(10, logger)

	cfg := &config.Config{}
	cfg.History.ProcessorCount = 1
	cfg.History.MaxRetries = 2
	cfg.History.RetryDelay = time.Millisecond

	return NewBatchProcessor(st.GetDB(), q, cfg, logger), st, q
}

func TestProcessBatchPersists(t *testing.T) {
	p, st, _ := newTestProcessor(t)

	batch := []*models.SearchRecord{
		{Street: "הגולן", HouseNumber: 1, CompCount: 7},
	}
	require.NoError(t, p.processBatch(batch))

	got, err := st.RecentSearches(10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "הגולן", got[0].Street)
	assert.Equal(t, 7, got[0].CompCount)
}

func TestQueueToStoreFlow(t *testing.T) {
	p, st, q := newTestProcessor(t)

	p.Start()
	q.Start()
	defer p.Stop()
	defer q.Close()

	// Give the processor goroutines time to subscribe.
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, q.Push([]*models.SearchRecord{
		{Street: "הרצל", HouseNumber: 5},
	}))

	assert.Eventually(t, func() bool {
		got, err := st.RecentSearches(10)
		return err == nil && len(got) == 1
	}, time.Second, 10*time.Millisecond)
}
