package geodesy

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	tr := NewTransformer()

	// Grid coordinates spread across the projection domain.
	points := [][2]float64{
		{184320.94, 668548.65},
		{219529.584, 626907.390},
		{178000, 663900},
		{222000, 631000},
		{205000, 741000},
		{195000, 593000},
	}

	for _, p := range points {
		geo := tr.ToGeodetic(p[0], p[1])
		x, y := tr.ToPlanar(geo[0], geo[1])
		assert.InDelta(t, p[0], x, 1.0, "x round trip for %v", p)
		assert.InDelta(t, p[1], y, 1.0, "y round trip for %v", p)
	}
}

func TestToGeodeticRange(t *testing.T) {
	tr := NewTransformer()

	// A central Tel Aviv grid point must land near its known geodetic
	// position.
	geo := tr.ToGeodetic(178000, 663900)
	assert.InDelta(t, 34.77, geo[0], 0.05)
	assert.InDelta(t, 32.07, geo[1], 0.05)
}

func TestDefaultTransformer(t *testing.T) {
	require.NotNil(t, Default)

	a := Default.ToGeodetic(184320.94, 668548.65)
	b := NewTransformer().ToGeodetic(184320.94, 668548.65)
	assert.Equal(t, a, b)
}

func TestHaversine(t *testing.T) {
	// One degree of longitude on the equator.
	d := Haversine(orb.Point{0, 0}, orb.Point{1, 0})
	assert.InDelta(t, 111195, d, 111195*0.001)

	// One degree of latitude.
	d = Haversine(orb.Point{0, 0}, orb.Point{0, 1})
	assert.InDelta(t, 111195, d, 111195*0.001)

	assert.Zero(t, Haversine(orb.Point{34.78, 32.08}, orb.Point{34.78, 32.08}))
}

func TestHaversineSymmetry(t *testing.T) {
	p1 := orb.Point{34.78, 32.08}
	p2 := orb.Point{34.99, 32.79}
	assert.InDelta(t, Haversine(p1, p2), Haversine(p2, p1), 1e-9)
	assert.False(t, math.IsNaN(Haversine(p1, p2)))
}
