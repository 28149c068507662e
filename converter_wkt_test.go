package isochrones

import (
	"testing"

	"github.com/paulmach/orb"
)

func TestPrepareWKTPoint(t *testing.T) {
	wkt := PrepareWKTPoint(orb.Point{37.5, 55.25})
	correct := "POINT(37.500000 55.250000)"
	if wkt != correct {
		t.Errorf("WKT must be '%s', but got '%s'", correct, wkt)
	}
}

func TestPrepareWKTLinestring(t *testing.T) {
	wkt := PrepareWKTLinestring(orb.LineString{{0, 0}, {1, 1}})
	correct := "LINESTRING(0.000000 0.000000,1.000000 1.000000)"
	if wkt != correct {
		t.Errorf("WKT must be '%s', but got '%s'", correct, wkt)
	}
}

func TestPrepareWKTMultiPolygon(t *testing.T) {
	iso := Isochrone{
		OriginID: "a",
		Cutoff:   100,
		Geom: orb.MultiPolygon{
			orb.Polygon{orb.Ring{{0, 0}, {1, 0}, {1, 1}, {0, 0}}},
		},
	}
	wkt := iso.WKT()
	correct := "MULTIPOLYGON(((0.000000 0.000000,1.000000 0.000000,1.000000 1.000000,0.000000 0.000000)))"
	if wkt != correct {
		t.Errorf("WKT must be '%s', but got '%s'", correct, wkt)
	}
}
