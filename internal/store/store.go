package store

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"nadlanscope/server/internal/models"
)

// Store persists completed comparables searches. It sits outside the
// pipeline; the pipeline itself holds no persistent state.
type Store struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewStore(dbPath string, logger *logrus.Logger) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&models.SearchRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// GetDB exposes the underlying gorm handle for transactional batch writes.
func (s *Store) GetDB() *gorm.DB {
	return s.db
}

// SaveSearchRecords inserts a batch of search records within the given
// transaction handle.
func SaveSearchRecords(tx *gorm.DB, records []*models.SearchRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := tx.Create(records).Error; err != nil {
		return fmt.Errorf("failed to insert search records: %w", err)
	}
	return nil
}

// RecentSearches returns the most recent search records, newest first.
func (s *Store) RecentSearches(limit int) ([]models.SearchRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	var records []models.SearchRecord
	err := s.db.Order("created_at DESC, id DESC").Limit(limit).Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query search records: %w", err)
	}
	return records, nil
}
