package comps

import (
	"fmt"
	"time"

	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus"

	"nadlanscope/server/internal/catalog"
	"nadlanscope/server/internal/geodesy"
	"nadlanscope/server/internal/models"
	"nadlanscope/server/internal/normalize"
)

// Geocoder resolves a street address to planar grid coordinates.
type Geocoder interface {
	GeocodeAddress(street string, houseNumber int, like bool) (float64, float64, error)
}

// ResourceFinder locates the active transactions dataset in the open-data
// catalog. A nil resource without error means nothing matched.
type ResourceFinder interface {
	FindTransactionsResource() (*catalog.Resource, error)
}

// RowFetcher retrieves up to limit raw rows from a datastore resource,
// degrading to partial results on mid-pagination failure.
type RowFetcher interface {
	FetchAll(resourceID, q string, limit int) []models.RawTransactionRecord
}

// Request holds the parameters of one comparables lookup.
type Request struct {
	Street      string
	HouseNumber int

	// City narrows the datastore free-text query and drives the
	// cross-jurisdiction city filter. Empty disables both.
	City string

	// Inclusive deal-date bounds.
	DateFrom *time.Time
	DateTo   *time.Time

	// TargetArea enables the ±20% area-similarity filter.
	TargetArea *float64

	// Limit caps rows fetched upstream before filtering; Top caps the
	// ranked comparables returned.
	Limit int
	Top   int

	// ResourceID skips catalog discovery when a known-fresh dataset id is
	// available (e.g. from the background refresher).
	ResourceID string
}

const (
	defaultLimit = 2000
	defaultTop   = 20
)

// Service runs the comparable-transactions pipeline: geocode the subject,
// discover the transactions dataset, fetch rows, normalize, rank, aggregate.
// Each invocation is self-contained and synchronous.
type Service struct {
	logger      *logrus.Logger
	geocoder    Geocoder
	finder      ResourceFinder
	fetcher     RowFetcher
	transformer *geodesy.Transformer
	normalizer  *normalize.Normalizer
}

func NewService(logger *logrus.Logger, geocoder Geocoder, finder ResourceFinder, fetcher RowFetcher) *Service {
	return &Service{
		logger:      logger,
		geocoder:    geocoder,
		finder:      finder,
		fetcher:     fetcher,
		transformer: geodesy.Default,
		normalizer:  normalize.NewNormalizer(logger, geodesy.Default),
	}
}

// FetchComparables resolves ranked comparable transactions for the subject
// address. Geocoding and discovery failures surface to the caller; fetch and
// normalization problems degrade to a smaller result set.
func (s *Service) FetchComparables(req Request) (*models.ComparablesResult, string, error) {
	if req.Limit <= 0 {
		req.Limit = defaultLimit
	}
	if req.Top <= 0 {
		req.Top = defaultTop
	}

	x, y, err := s.geocoder.GeocodeAddress(req.Street, req.HouseNumber, true)
	if err != nil {
		return nil, "", err
	}

	point := s.transformer.ToGeodetic(x, y)
	subject := models.SubjectLocation{
		Street:      req.Street,
		HouseNumber: req.HouseNumber,
		LocalX:      x,
		LocalY:      y,
		Longitude:   point[0],
		Latitude:    point[1],
	}

	resourceID := req.ResourceID
	if resourceID == "" {
		resource, err := s.finder.FindTransactionsResource()
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrNoTransactionsDataset, err)
		}
		if resource == nil {
			return nil, "", ErrNoTransactionsDataset
		}
		if !resource.DatastoreActive {
			// A flat-file resource cannot be paginated; without a
			// queryable backend there is nothing to fetch from.
			s.logger.WithField("resource_id", resource.ID).Warn("Only a flat-file transactions resource is available")
			return nil, "", ErrNoTransactionsDataset
		}
		resourceID = resource.ID
	}

	rows := s.fetcher.FetchAll(resourceID, req.City, req.Limit)

	filters := normalize.Filters{
		City:       req.City,
		DateFrom:   req.DateFrom,
		DateTo:     req.DateTo,
		TargetArea: req.TargetArea,
		Subject:    &orb.Point{subject.Longitude, subject.Latitude},
	}

	var candidates []models.ComparableTransaction
	for _, row := range rows {
		if comp := s.normalizer.Normalize(row, filters); comp != nil {
			candidates = append(candidates, *comp)
		}
	}

	s.logger.WithFields(logrus.Fields{
		"street":       req.Street,
		"house_number": req.HouseNumber,
		"fetched":      len(rows),
		"candidates":   len(candidates),
	}).Info("Normalized transaction rows")

	top := Rank(candidates, req.Top)

	return &models.ComparablesResult{
		Stats: Aggregate(top, subject),
		Comps: top,
	}, resourceID, nil
}
