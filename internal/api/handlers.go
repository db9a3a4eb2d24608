package api

import (
	"errors"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"nadlanscope/server/internal/comps"
	"nadlanscope/server/internal/geocoding"
	"nadlanscope/server/internal/models"
	"nadlanscope/server/internal/queue"
	"nadlanscope/server/internal/scheduler"
	"nadlanscope/server/internal/store"
)

// ComparablesService runs one comparables lookup end to end.
type ComparablesService interface {
	FetchComparables(req comps.Request) (*models.ComparablesResult, string, error)
}

type Handler struct {
	service   ComparablesService
	store     *store.Store
	queue     *queue.SearchRecordQueue
	refresher *scheduler.DatasetRefresher
	logger    *logrus.Logger
}

// ComparablesQuery binds the /api/comparables query parameters.
type ComparablesQuery struct {
	Street      string   `form:"street" binding:"required"`
	HouseNumber int      `form:"house_number" binding:"required"`
	City        string   `form:"city"`
	DateFrom    string   `form:"date_from"`
	DateTo      string   `form:"date_to"`
	TargetArea  *float64 `form:"target_area"`
	Limit       int      `form:"limit"`
	Top         int      `form:"top"`
}

func NewHandler(service ComparablesService, st *store.Store, q *queue.SearchRecordQueue, refresher *scheduler.DatasetRefresher, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}

	return &Handler{
		service:   service,
		store:     st,
		queue:     q,
		refresher: refresher,
		logger:    logger,
	}
}

// GetComparables resolves ranked comparable transactions for a subject
// address.
func (h *Handler) GetComparables(c *gin.Context) {
	var query ComparablesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.logger.WithError(err).Error("Failed to parse comparables query")
		c.JSON(http.StatusBadRequest, gin.H{"error": "street and house_number are required"})
		return
	}

	dateFrom, err := parseDateParam(query.DateFrom)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date_from must be an ISO date (YYYY-MM-DD)"})
		return
	}
	dateTo, err := parseDateParam(query.DateTo)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date_to must be an ISO date (YYYY-MM-DD)"})
		return
	}

	req := comps.Request{
		Street:      query.Street,
		HouseNumber: query.HouseNumber,
		City:        query.City,
		DateFrom:    dateFrom,
		DateTo:      dateTo,
		TargetArea:  query.TargetArea,
		Limit:       query.Limit,
		Top:         query.Top,
	}
	if h.refresher != nil {
		req.ResourceID = h.refresher.CurrentResourceID()
	}

	started := time.Now()
	result, resourceID, err := h.service.FetchComparables(req)
	if err != nil {
		h.renderPipelineError(c, err)
		return
	}

	h.recordSearch(req, result, resourceID, time.Since(started))

	c.JSON(http.StatusOK, result)
}

func (h *Handler) renderPipelineError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, geocoding.ErrAddressNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "address not found"})
	case errors.Is(err, comps.ErrNoTransactionsDataset):
		c.JSON(http.StatusNotFound, gin.H{"error": "no transactions dataset is currently available"})
	case errors.Is(err, geocoding.ErrUpstreamService):
		h.logger.WithError(err).Error("Upstream service failure")
		c.JSON(http.StatusBadGateway, gin.H{"error": "upstream service unavailable"})
	default:
		h.logger.WithError(err).Error("Comparables lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch comparables"})
	}
}

// recordSearch queues the completed search for asynchronous persistence.
func (h *Handler) recordSearch(req comps.Request, result *models.ComparablesResult, resourceID string, took time.Duration) {
	if h.queue == nil {
		return
	}

	record := &models.SearchRecord{
		Street:             req.Street,
		HouseNumber:        req.HouseNumber,
		SubjectLongitude:   result.Stats.Subject.Longitude,
		SubjectLatitude:    result.Stats.Subject.Latitude,
		ResourceID:         resourceID,
		CompCount:          result.Stats.Count,
		MedianPricePerArea: result.Stats.MedianPricePerArea,
		AvgPricePerArea:    result.Stats.AvgPricePerArea,
		DurationMs:         took.Milliseconds(),
	}

	if err := h.queue.Push([]*models.SearchRecord{record}); err != nil {
		h.logger.WithError(err).Warn("Failed to queue search record")
	}
}

// GetRecentSearches returns the most recently recorded searches.
func (h *Handler) GetRecentSearches(c *gin.Context) {
	limitStr := c.DefaultQuery("limit", "10")
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 {
		limit = 10
	}

	searches, err := h.store.RecentSearches(limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get recent searches")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get recent searches"})
		return
	}

	c.JSON(http.StatusOK, searches)
}

// RefreshDataset forces a rediscovery of the active transactions dataset.
func (h *Handler) RefreshDataset(c *gin.Context) {
	if h.refresher == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "dataset refresher is not running"})
		return
	}

	if err := h.refresher.Refresh(); err != nil {
		h.logger.WithError(err).Error("Failed to refresh dataset")
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to refresh dataset"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      "refreshed",
		"resource_id": h.refresher.CurrentResourceID(),
	})
}

// Health reports service liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func parseDateParam(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
