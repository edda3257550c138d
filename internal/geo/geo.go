package geo

import (
	"math"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"trip-planner/internal/models"
)

const earthRadiusKm = 6371.0

// DistanceKm is the great-circle (haversine) distance between two points
func DistanceKm(a, b models.Coordinates) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180.0 }
	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// NewLineString builds a lng/lat line string from route points
func NewLineString(points []models.Coordinates) *geom.LineString {
	coords := make([]geom.Coord, len(points))
	for i, p := range points {
		coords[i] = geom.Coord{p.Lng, p.Lat}
	}
	return geom.NewLineString(geom.XY).MustSetCoords(coords)
}

// MarshalGeoJSON encodes route points as a GeoJSON LineString
func MarshalGeoJSON(points []models.Coordinates) ([]byte, error) {
	return geojson.Marshal(NewLineString(points))
}

// NearestDistanceKm returns the smallest distance from p to any of the lines,
// measured against each segment, and false when no line has a point.
func NearestDistanceKm(p models.Coordinates, lines []*geom.LineString) (float64, bool) {
	best := math.Inf(1)
	found := false

	for _, ls := range lines {
		if ls == nil || ls.NumCoords() == 0 {
			continue
		}
		found = true

		if ls.NumCoords() == 1 {
			c := ls.Coord(0)
			best = math.Min(best, DistanceKm(p, models.Coordinates{Lat: c.Y(), Lng: c.X()}))
			continue
		}

		for i := 0; i < ls.NumCoords()-1; i++ {
			best = math.Min(best, segmentDistanceKm(p, ls.Coord(i), ls.Coord(i+1)))
		}
	}

	return best, found
}

// segmentDistanceKm projects p onto the segment a-b in a local equirectangular
// plane and measures the great-circle distance to the projected point.
func segmentDistanceKm(p models.Coordinates, a, b geom.Coord) float64 {
	scale := math.Cos(p.Lat * math.Pi / 180)
	ax, ay := a.X()*scale, a.Y()
	bx, by := b.X()*scale, b.Y()
	px, py := p.Lng*scale, p.Lat

	dx, dy := bx-ax, by-ay
	t := 0.0
	if l2 := dx*dx + dy*dy; l2 > 0 {
		t = ((px-ax)*dx + (py-ay)*dy) / l2
		t = math.Max(0, math.Min(1, t))
	}

	closest := models.Coordinates{
		Lat: a.Y() + t*(b.Y()-a.Y()),
		Lng: a.X() + t*(b.X()-a.X()),
	}
	return DistanceKm(p, closest)
}
