package models

import "time"

// RawTransactionRecord is one row exactly as the upstream datastore returned
// it. Key names vary by dataset revision and language, so it stays untyped.
type RawTransactionRecord map[string]interface{}

// SubjectLocation is the property being appraised. Planar and geodetic
// coordinates are derived together and always describe the same point.
type SubjectLocation struct {
	Street      string  `json:"street"`
	HouseNumber int     `json:"house_number"`
	LocalX      float64 `json:"local_x"`
	LocalY      float64 `json:"local_y"`
	Longitude   float64 `json:"longitude"`
	Latitude    float64 `json:"latitude"`
}

// ComparableTransaction is a normalized transaction record. Fields that could
// not be resolved from the raw row are nil rather than zero, so consumers can
// tell "missing" from "actually zero".
type ComparableTransaction struct {
	DealDate     *string              `json:"deal_date"`
	Price        *float64             `json:"price"`
	PricePerArea *float64             `json:"price_per_area"`
	Rooms        *float64             `json:"rooms"`
	Area         *float64             `json:"area"`
	City         *string              `json:"city"`
	Street       *string              `json:"street"`
	HouseNumber  *string              `json:"house_number"`
	Longitude    *float64             `json:"longitude"`
	Latitude     *float64             `json:"latitude"`
	DistanceM    *float64             `json:"distance_m"`
	Raw          RawTransactionRecord `json:"raw"`
}

// CompStats summarizes the truncated top-N comparables list. Medians and
// averages ignore nil values and are nil when every value is nil.
type CompStats struct {
	Count              int             `json:"count"`
	MedianPricePerArea *float64        `json:"median_price_per_area"`
	AvgPricePerArea    *float64        `json:"avg_price_per_area"`
	MedianPrice        *float64        `json:"median_price"`
	AvgPrice           *float64        `json:"avg_price"`
	MedianArea         *float64        `json:"median_area"`
	Subject            SubjectLocation `json:"subject"`
}

// ComparablesResult is the top-level response for one comparables lookup.
// Stats are computed only over Comps, which is already filtered, ranked and
// truncated.
type ComparablesResult struct {
	Stats CompStats               `json:"stats"`
	Comps []ComparableTransaction `json:"comps"`
}

// SearchRecord is the persisted trace of one completed comparables search.
type SearchRecord struct {
	ID                 int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Street             string    `json:"street"`
	HouseNumber        int       `json:"house_number"`
	SubjectLongitude   float64   `json:"subject_longitude"`
	SubjectLatitude    float64   `json:"subject_latitude"`
	ResourceID         string    `json:"resource_id"`
	CompCount          int       `json:"comp_count"`
	MedianPricePerArea *float64  `json:"median_price_per_area"`
	AvgPricePerArea    *float64  `json:"avg_price_per_area"`
	DurationMs         int64     `json:"duration_ms"`
	CreatedAt          time.Time `json:"created_at" gorm:"autoCreateTime"`
}
