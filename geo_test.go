package isochrones

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
)

func TestProjectionRoundTrip(t *testing.T) {
	lon, lat := 37.6417350769043, 55.751849391735284
	x, y := epsg4326To3857(lon, lat)
	backLon, backLat := epsg3857To4326(x, y)
	if math.Abs(backLon-lon) > 1e-9 || math.Abs(backLat-lat) > 1e-9 {
		t.Errorf("Round trip must restore (%f, %f), but got (%f, %f)", lon, lat, backLon, backLat)
	}
}

func TestLineToEuclidean(t *testing.T) {
	line := orb.LineString{{37.6180, 55.7520}, {37.6260, 55.7520}}
	projected := lineToEuclidean(line)
	if len(projected) != len(line) {
		t.Errorf("Projected line must keep %d points, but got %d", len(line), len(projected))
	}
	// 0.008 degrees of longitude is about 890 meters on the EPSG:3857 plane
	length := getLength(projected)
	if math.Abs(length-890.5) > 1.0 {
		t.Errorf("Projected length must be around 890.5, but got %f", length)
	}
}
