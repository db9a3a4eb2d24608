package normalize

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus"

	"nadlanscope/server/internal/geodesy"
	"nadlanscope/server/internal/models"
)

// Ordered alias lists per canonical field. Key names differ between dataset
// revisions and languages; the first present, non-empty key wins.
var (
	dateKeys = []string{
		"DEALDATE", "DEALDATETIME", "deal_date", "dealDate", "date",
		"תאריך עסקה", "תאריך מכירה", "תאריך",
	}
	priceKeys = []string{
		"DEALAMOUNT", "deal_amount", "price", "amount",
		"מחיר", "מחיר עסקה", "סכום עסקה", "שווי עסקה",
	}
	roomsKeys = []string{
		"ASSETROOMNUM", "rooms", "room_num",
		"חדרים", "מספר חדרים",
	}
	areaKeys = []string{
		"DEALNATURE", "area", "built_area", "GROSSAREA", "NETAREA",
		"שטח", "שטח בנוי", "שטח במ\"ר",
	}
	cityKeys = []string{
		"City", "city", "SETL_NAME", "settlement",
		"עיר", "ישוב", "יישוב",
	}
	streetKeys = []string{
		"Street", "street", "STREET_NAME",
		"רחוב", "שם רחוב",
	}
	houseNumberKeys = []string{
		"house_number", "HOUSENUM", "BUILDINGNUM",
		"מספר בית", "בית",
	}
	longitudeKeys = []string{
		"long", "lon", "longitude", "X_WGS", "lng",
	}
	latitudeKeys = []string{
		"lat", "latitude", "Y_WGS",
	}
	planarXKeys = []string{
		"x", "X", "ITM_X", "coordinate_x", "נ.צ. X",
	}
	planarYKeys = []string{
		"y", "Y", "ITM_Y", "coordinate_y", "נ.צ. Y",
	}
)

// Layouts tried in order when parsing deal dates. Day-first formats come
// before month-first ambiguity can bite; upstream feeds are day-first.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"02/01/2006",
	"02-01-2006",
	"02.01.2006",
	"02/01/2006 15:04:05",
	"2006/01/02",
	"02/01/06",
}

// Filters carries the per-request constraints applied during normalization.
type Filters struct {
	// City discards records whose city field does not contain this
	// substring. Empty disables the filter.
	City string

	// DateFrom / DateTo are inclusive bounds; records with no parseable
	// date pass through.
	DateFrom *time.Time
	DateTo   *time.Time

	// TargetArea enables the ±20% area-similarity filter.
	TargetArea *float64

	// Subject is the appraised property's geodetic location, used for
	// distance computation. Nil leaves distances unset.
	Subject *orb.Point
}

// Normalizer maps raw datastore rows onto canonical comparable transactions.
type Normalizer struct {
	logger      *logrus.Logger
	transformer *geodesy.Transformer
}

func NewNormalizer(logger *logrus.Logger, transformer *geodesy.Transformer) *Normalizer {
	if transformer == nil {
		transformer = geodesy.Default
	}
	return &Normalizer{
		logger:      logger,
		transformer: transformer,
	}
}

// Normalize maps one raw record onto a ComparableTransaction, or returns nil
// when a filter discards the record. Resolution failures on individual fields
// leave those fields nil; the raw row is always retained.
func (n *Normalizer) Normalize(raw models.RawTransactionRecord, f Filters) *models.ComparableTransaction {
	city := resolveString(raw, cityKeys)
	if f.City != "" && city != nil && !strings.Contains(*city, f.City) {
		return nil
	}

	dealDate := resolveDate(raw, dateKeys)
	if dealDate != nil && (f.DateFrom != nil || f.DateTo != nil) {
		d, err := time.Parse("2006-01-02", *dealDate)
		if err == nil {
			if f.DateFrom != nil && d.Before(*f.DateFrom) {
				return nil
			}
			if f.DateTo != nil && d.After(*f.DateTo) {
				return nil
			}
		}
	}

	area := resolveFloat(raw, areaKeys)
	if f.TargetArea != nil {
		if area == nil {
			return nil
		}
		target := *f.TargetArea
		if diff := *area - target; diff < -0.2*target || diff > 0.2*target {
			return nil
		}
	}

	price := resolveFloat(raw, priceKeys)

	var pricePerArea *float64
	if price != nil && area != nil && *area > 0 {
		ppa := *price / *area
		pricePerArea = &ppa
	}

	lon := resolveFloat(raw, longitudeKeys)
	lat := resolveFloat(raw, latitudeKeys)
	if lon == nil || lat == nil {
		if x, y := resolveFloat(raw, planarXKeys), resolveFloat(raw, planarYKeys); x != nil && y != nil {
			p := n.transformer.ToGeodetic(*x, *y)
			lon = &p[0]
			lat = &p[1]
		}
	}

	var distance *float64
	if lon != nil && lat != nil && f.Subject != nil {
		d := geodesy.Haversine(*f.Subject, orb.Point{*lon, *lat})
		distance = &d
	}

	return &models.ComparableTransaction{
		DealDate:     dealDate,
		Price:        price,
		PricePerArea: pricePerArea,
		Rooms:        resolveFloat(raw, roomsKeys),
		Area:         area,
		City:         city,
		Street:       resolveString(raw, streetKeys),
		HouseNumber:  resolveString(raw, houseNumberKeys),
		Longitude:    lon,
		Latitude:     lat,
		DistanceM:    distance,
		Raw:          raw,
	}
}

// resolve returns the first present, non-empty value among the given keys.
func resolve(raw models.RawTransactionRecord, keys []string) (interface{}, bool) {
	for _, key := range keys {
		v, ok := raw[key]
		if !ok || v == nil {
			continue
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			continue
		}
		return v, true
	}
	return nil, false
}

func resolveString(raw models.RawTransactionRecord, keys []string) *string {
	v, ok := resolve(raw, keys)
	if !ok {
		return nil
	}
	var s string
	switch t := v.(type) {
	case string:
		s = strings.TrimSpace(t)
	case float64:
		// JSON numbers arrive as float64; render integers without a
		// trailing fraction.
		if t == float64(int64(t)) {
			s = strconv.FormatInt(int64(t), 10)
		} else {
			s = strconv.FormatFloat(t, 'f', -1, 64)
		}
	default:
		s = fmt.Sprintf("%v", t)
	}
	if s == "" {
		return nil
	}
	return &s
}

func resolveFloat(raw models.RawTransactionRecord, keys []string) *float64 {
	v, ok := resolve(raw, keys)
	if !ok {
		return nil
	}
	return parseFloat(v)
}

// parseFloat tolerantly parses numbers that may carry thousands-separator
// commas, currency marks or surrounding whitespace.
func parseFloat(v interface{}) *float64 {
	switch t := v.(type) {
	case float64:
		return &t
	case int:
		f := float64(t)
		return &f
	case int64:
		f := float64(t)
		return &f
	case string:
		s := strings.TrimSpace(t)
		s = strings.ReplaceAll(s, ",", "")
		s = strings.Trim(s, "₪ ")
		if s == "" {
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}

// resolveDate parses a free-form date value into an ISO calendar date.
// Unparseable or absent dates normalize to nil.
func resolveDate(raw models.RawTransactionRecord, keys []string) *string {
	v, ok := resolve(raw, keys)
	if !ok {
		return nil
	}
	s, isStr := v.(string)
	if !isStr {
		return nil
	}
	s = strings.TrimSpace(s)

	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			iso := d.Format("2006-01-02")
			return &iso
		}
	}

	// Datetime strings with unknown time parts: retry on the date token
	// alone.
	if idx := strings.IndexAny(s, " T"); idx > 0 {
		token := s[:idx]
		for _, layout := range dateLayouts {
			if d, err := time.Parse(layout, token); err == nil {
				iso := d.Format("2006-01-02")
				return &iso
			}
		}
	}

	return nil
}
