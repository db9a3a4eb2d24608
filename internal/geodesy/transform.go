package geodesy

import (
	"math"

	"github.com/paulmach/orb"
)

// ellipsoid holds the defining parameters of a reference ellipsoid plus the
// derived values the projection formulas need.
type ellipsoid struct {
	a   float64 // semi-major axis (m)
	b   float64 // semi-minor axis (m)
	f   float64 // flattening
	e2  float64 // first eccentricity squared
	ep2 float64 // second eccentricity squared
}

func newEllipsoid(a, b float64) ellipsoid {
	e2 := (a*a - b*b) / (a * a)
	return ellipsoid{
		a:   a,
		b:   b,
		f:   (a - b) / a,
		e2:  e2,
		ep2: e2 / (1 - e2),
	}
}

// tmGrid is a Transverse Mercator grid definition over some ellipsoid.
type tmGrid struct {
	lon0   float64 // central meridian (rad)
	lat0   float64 // latitude of origin (rad)
	k0     float64 // scale factor at the central meridian
	falseE float64
	falseN float64
}

var (
	grs80 = newEllipsoid(6378137.0, 6356752.3141)
	wgs84 = newEllipsoid(6378137.0, 6356752.3142)

	// Israel TM Grid (the local cadastral system), defined on GRS80.
	itmGrid = tmGrid{
		lon0:   35.2045169444444 * math.Pi / 180,
		lat0:   31.7343936111111 * math.Pi / 180,
		k0:     1.0000067,
		falseE: 219529.584,
		falseN: 626907.390,
	}

	// Geocentric translation from the local geodetic datum to WGS84.
	itmToWGS84Shift = [3]float64{24.0024, 17.1032, 17.8444}
)

// Transformer converts between the local planar cadastral grid and WGS84
// longitude/latitude. It is stateless and safe for concurrent use; Default is
// the shared process-wide instance.
type Transformer struct {
	grid  tmGrid
	local ellipsoid
	world ellipsoid
	shift [3]float64
	m0    float64 // meridional arc at the grid origin, precomputed
}

// Default is the shared transformer for the Israel TM grid.
var Default = NewTransformer()

// NewTransformer builds a transformer for the Israel TM grid. Construction
// precomputes the origin arc; reuse the instance rather than rebuilding it.
func NewTransformer() *Transformer {
	t := &Transformer{
		grid:  itmGrid,
		local: grs80,
		world: wgs84,
		shift: itmToWGS84Shift,
	}
	t.m0 = meridionalArc(t.local, t.grid.lat0)
	return t
}

// ToGeodetic converts planar grid coordinates to a WGS84 (longitude,
// latitude) point in degrees. Out-of-domain inputs produce nonsensical but
// finite output; the transform itself never fails.
func (t *Transformer) ToGeodetic(x, y float64) orb.Point {
	lat, lon := t.inverseTM(x, y)
	lat, lon = molodensky(lat, lon, t.local, t.world, t.shift[0], t.shift[1], t.shift[2])
	return orb.Point{lon * 180 / math.Pi, lat * 180 / math.Pi}
}

// ToPlanar converts a WGS84 longitude/latitude (degrees) to planar grid
// coordinates.
func (t *Transformer) ToPlanar(lon, lat float64) (x, y float64) {
	latR := lat * math.Pi / 180
	lonR := lon * math.Pi / 180
	latR, lonR = molodensky(latR, lonR, t.world, t.local, -t.shift[0], -t.shift[1], -t.shift[2])
	return t.forwardTM(latR, lonR)
}

// meridionalArc returns the ellipsoidal distance from the equator to lat.
func meridionalArc(e ellipsoid, lat float64) float64 {
	e2 := e.e2
	e4 := e2 * e2
	e6 := e4 * e2
	return e.a * ((1-e2/4-3*e4/64-5*e6/256)*lat -
		(3*e2/8+3*e4/32+45*e6/1024)*math.Sin(2*lat) +
		(15*e4/256+45*e6/1024)*math.Sin(4*lat) -
		(35*e6/3072)*math.Sin(6*lat))
}

// forwardTM projects geodetic coordinates (rad) on the local ellipsoid onto
// the grid.
func (t *Transformer) forwardTM(lat, lon float64) (x, y float64) {
	e := t.local
	sin := math.Sin(lat)
	cos := math.Cos(lat)
	tan := math.Tan(lat)

	n := e.a / math.Sqrt(1-e.e2*sin*sin)
	tt := tan * tan
	c := e.ep2 * cos * cos
	a := (lon - t.grid.lon0) * cos
	m := meridionalArc(e, lat)

	a2 := a * a
	a3 := a2 * a
	a4 := a3 * a
	a5 := a4 * a
	a6 := a5 * a

	x = t.grid.falseE + t.grid.k0*n*(a+
		(1-tt+c)*a3/6+
		(5-18*tt+tt*tt+72*c-58*e.ep2)*a5/120)
	y = t.grid.falseN + t.grid.k0*(m-t.m0+n*tan*(a2/2+
		(5-tt+9*c+4*c*c)*a4/24+
		(61-58*tt+tt*tt+600*c-330*e.ep2)*a6/720))
	return x, y
}

// inverseTM unprojects grid coordinates to geodetic coordinates (rad) on the
// local ellipsoid.
func (t *Transformer) inverseTM(x, y float64) (lat, lon float64) {
	e := t.local
	m := t.m0 + (y-t.grid.falseN)/t.grid.k0
	mu := m / (e.a * (1 - e.e2/4 - 3*e.e2*e.e2/64 - 5*e.e2*e.e2*e.e2/256))

	e1 := (1 - math.Sqrt(1-e.e2)) / (1 + math.Sqrt(1-e.e2))
	e1p2 := e1 * e1
	e1p3 := e1p2 * e1
	e1p4 := e1p3 * e1

	// Footpoint latitude.
	fp := mu + (3*e1/2-27*e1p3/32)*math.Sin(2*mu) +
		(21*e1p2/16-55*e1p4/32)*math.Sin(4*mu) +
		(151*e1p3/96)*math.Sin(6*mu) +
		(1097*e1p4/512)*math.Sin(8*mu)

	sin := math.Sin(fp)
	cos := math.Cos(fp)
	tan := math.Tan(fp)

	c1 := e.ep2 * cos * cos
	t1 := tan * tan
	sin2 := sin * sin
	n1 := e.a / math.Sqrt(1-e.e2*sin2)
	r1 := e.a * (1 - e.e2) / math.Pow(1-e.e2*sin2, 1.5)
	d := (x - t.grid.falseE) / (n1 * t.grid.k0)

	d2 := d * d
	d3 := d2 * d
	d4 := d3 * d
	d5 := d4 * d
	d6 := d5 * d

	lat = fp - (n1*tan/r1)*(d2/2-
		(5+3*t1+10*c1-4*c1*c1-9*e.ep2)*d4/24+
		(61+90*t1+298*c1+45*t1*t1-252*e.ep2-3*c1*c1)*d6/720)
	lon = t.grid.lon0 + (d-
		(1+2*t1+c1)*d3/6+
		(5-2*c1+28*t1-3*c1*c1+8*e.ep2+24*t1*t1)*d5/120)/cos
	return lat, lon
}

// molodensky shifts geodetic coordinates (rad) between datums using the
// abridged Molodensky transformation with the given geocentric translation.
func molodensky(lat, lon float64, from, to ellipsoid, dx, dy, dz float64) (float64, float64) {
	sinLat := math.Sin(lat)
	cosLat := math.Cos(lat)
	sinLon := math.Sin(lon)
	cosLon := math.Cos(lon)

	da := to.a - from.a
	df := to.f - from.f

	sin2 := sinLat * sinLat
	rn := from.a / math.Sqrt(1-from.e2*sin2)
	rm := from.a * (1 - from.e2) / math.Pow(1-from.e2*sin2, 1.5)

	dLat := (-dx*sinLat*cosLon - dy*sinLat*sinLon + dz*cosLat +
		da*(rn*from.e2*sinLat*cosLat)/from.a +
		df*(rm*(from.a/from.b)+rn*(from.b/from.a))*sinLat*cosLat) / rm
	dLon := (-dx*sinLon + dy*cosLon) / (rn * cosLat)

	return lat + dLat, lon + dLon
}
