package isochrones

import (
	"math"

	"github.com/paulmach/orb"
)

const (
	earthR = 20037508.34
)

// Projection defines which coordinate reference system input geometries are provided in
type Projection uint16

const (
	// PROJECTION_WGS84 expects longitude/latitude input (EPSG:4326). Geometries are
	// projected to EPSG:3857 before any metric computation and projected back on output.
	// Web Mercator stretches distances away from the equator, so treat costs as approximate
	// for far northern/southern networks or supply metric input instead.
	PROJECTION_WGS84 = Projection(iota + 1)
	// PROJECTION_PLANAR expects input already in a metric planar CRS. Coordinates pass through untouched
	PROJECTION_PLANAR
)

func (iotaIdx Projection) String() string {
	return [...]string{"wgs84", "planar"}[iotaIdx-1]
}

func epsg4326To3857(lon, lat float64) (float64, float64) {
	x := lon * earthR / 180
	y := math.Log(math.Tan((90+lat)*math.Pi/360)) / (math.Pi / 180)
	y = y * earthR / 180
	return x, y
}

func epsg3857To4326(x, y float64) (float64, float64) {
	lon := x * 180 / earthR
	lat := math.Atan(math.Exp(y*math.Pi/earthR))*360/math.Pi - 90
	return lon, lat
}

func pointToEuclidean(pt orb.Point) orb.Point {
	euclideanX, euclideanY := epsg4326To3857(pt.Lon(), pt.Lat())
	return orb.Point{euclideanX, euclideanY}
}

func pointToWGS84(pt orb.Point) orb.Point {
	lon, lat := epsg3857To4326(pt[0], pt[1])
	return orb.Point{lon, lat}
}

func lineToEuclidean(line orb.LineString) orb.LineString {
	newLine := make(orb.LineString, len(line))
	for i, pt := range line {
		newLine[i] = pointToEuclidean(pt)
	}
	return newLine
}

func ringToWGS84(ring orb.Ring) orb.Ring {
	newRing := make(orb.Ring, len(ring))
	for i, pt := range ring {
		newRing[i] = pointToWGS84(pt)
	}
	return newRing
}

func multiPolygonToWGS84(mp orb.MultiPolygon) orb.MultiPolygon {
	newMP := make(orb.MultiPolygon, len(mp))
	for i, poly := range mp {
		newPoly := make(orb.Polygon, len(poly))
		for j, ring := range poly {
			newPoly[j] = ringToWGS84(ring)
		}
		newMP[i] = newPoly
	}
	return newMP
}
