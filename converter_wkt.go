package isochrones

import (
	"fmt"
	"strings"

	"github.com/paulmach/orb"
)

// PrepareWKTLinestring returns WKT representation of LineString
func PrepareWKTLinestring(line orb.LineString) string {
	ptsStr := make([]string, len(line))
	for i := range line {
		ptsStr[i] = fmt.Sprintf("%f %f", line[i][0], line[i][1])
	}
	return fmt.Sprintf("LINESTRING(%s)", strings.Join(ptsStr, ","))
}

// PrepareWKTPoint returns WKT representation of Point
func PrepareWKTPoint(pt orb.Point) string {
	return fmt.Sprintf("POINT(%f %f)", pt[0], pt[1])
}

// PrepareWKTMultiPolygon returns WKT representation of MultiPolygon
func PrepareWKTMultiPolygon(mp orb.MultiPolygon) string {
	polygonsStr := make([]string, len(mp))
	for i, polygon := range mp {
		ringsStr := make([]string, len(polygon))
		for j, ring := range polygon {
			ptsStr := make([]string, len(ring))
			for k := range ring {
				ptsStr[k] = fmt.Sprintf("%f %f", ring[k][0], ring[k][1])
			}
			ringsStr[j] = fmt.Sprintf("(%s)", strings.Join(ptsStr, ","))
		}
		polygonsStr[i] = fmt.Sprintf("(%s)", strings.Join(ringsStr, ","))
	}
	return fmt.Sprintf("MULTIPOLYGON(%s)", strings.Join(polygonsStr, ","))
}

// WKT returns the isochrone boundary in well-known text form, handy for pasting into
// GIS tools during debugging
func (iso *Isochrone) WKT() string {
	return PrepareWKTMultiPolygon(iso.Geom)
}
