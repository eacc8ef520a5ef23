package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceMetersSamePoint(t *testing.T) {
	p := Point{Latitude: 37.5509, Longitude: 127.0754}
	assert.InDelta(t, 0, DistanceMeters(p, p), 1e-6)
}

func TestDistanceMetersKnownValues(t *testing.T) {
	// one thousandth of a degree of latitude is ~111 m everywhere
	a := Point{Latitude: 37.5500, Longitude: 127.0754}
	b := Point{Latitude: 37.5510, Longitude: 127.0754}
	assert.InDelta(t, 111.2, DistanceMeters(a, b), 0.5)

	// Seoul -> Busan is roughly 325 km
	seoul := Point{Latitude: 37.5665, Longitude: 126.9780}
	busan := Point{Latitude: 35.1796, Longitude: 129.0756}
	assert.InDelta(t, 325000, DistanceMeters(seoul, busan), 2000)
}

func TestDistanceIsSymmetric(t *testing.T) {
	a := Point{Latitude: 10, Longitude: 20}
	b := Point{Latitude: -5, Longitude: 33}
	assert.InDelta(t, DistanceMeters(a, b), DistanceMeters(b, a), 1e-6)
}
