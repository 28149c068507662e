package isochrones

import (
	"fmt"

	geojson "github.com/paulmach/go.geojson"
	"github.com/paulmach/orb"
	"github.com/pkg/errors"
)

// RoadSegmentsFromGeoJSON extracts road polylines from a feature collection.
// LineString and MultiLineString features are recognized; anything else is skipped.
// An optional numeric 'speed' (km/h) property feeds the time-based cost model
func RoadSegmentsFromGeoJSON(fc *geojson.FeatureCollection) ([]RoadSegment, error) {
	if fc == nil {
		return nil, errors.New("feature collection is nil")
	}
	segments := []RoadSegment{}
	for i, feature := range fc.Features {
		if feature.Geometry == nil {
			continue
		}
		speed := 0.0
		if value, err := feature.PropertyFloat64("speed"); err == nil {
			speed = value
		}
		id := fmt.Sprintf("road-%d", i)
		if feature.ID != nil {
			id = fmt.Sprintf("%v", feature.ID)
		}
		switch {
		case feature.Geometry.IsLineString():
			segments = append(segments, RoadSegment{
				ID:       id,
				Geom:     coordsToLine(feature.Geometry.LineString),
				SpeedKmh: speed,
			})
		case feature.Geometry.IsMultiLineString():
			for j, line := range feature.Geometry.MultiLineString {
				segments = append(segments, RoadSegment{
					ID:       fmt.Sprintf("%s/%d", id, j),
					Geom:     coordsToLine(line),
					SpeedKmh: speed,
				})
			}
		}
	}
	if len(segments) == 0 {
		return nil, errors.New("no line features found")
	}
	return segments, nil
}

// OriginsFromGeoJSON extracts origin points from a feature collection. An 'id'
// property becomes the origin identifier; the feature index is used otherwise
func OriginsFromGeoJSON(fc *geojson.FeatureCollection) ([]OriginPoint, error) {
	if fc == nil {
		return nil, errors.New("feature collection is nil")
	}
	origins := []OriginPoint{}
	for i, feature := range fc.Features {
		if feature.Geometry == nil || !feature.Geometry.IsPoint() {
			continue
		}
		id := fmt.Sprintf("origin-%d", i)
		if value, err := feature.PropertyString("id"); err == nil && value != "" {
			id = value
		}
		origins = append(origins, OriginPoint{
			ID:   id,
			Geom: orb.Point{feature.Geometry.Point[0], feature.Geometry.Point[1]},
		})
	}
	if len(origins) == 0 {
		return nil, errors.New("no point features found")
	}
	return origins, nil
}

// ToGeoJSON converts the result into a feature collection: one MultiPolygon feature
// per isochrone tagged with 'origin_id' and 'cutoff' properties
func (result *Result) ToGeoJSON() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for i := range result.Isochrones {
		iso := &result.Isochrones[i]
		feature := geojson.NewFeature(geojson.NewMultiPolygonGeometry(multiPolygonToCoords(iso.Geom)...))
		feature.SetProperty("origin_id", iso.OriginID)
		feature.SetProperty("cutoff", iso.Cutoff)
		fc.AddFeature(feature)
	}
	return fc
}

func coordsToLine(coords [][]float64) orb.LineString {
	line := make(orb.LineString, 0, len(coords))
	for _, pt := range coords {
		if len(pt) < 2 {
			continue
		}
		line = append(line, orb.Point{pt[0], pt[1]})
	}
	return line
}

func multiPolygonToCoords(mp orb.MultiPolygon) [][][][]float64 {
	polygons := make([][][][]float64, len(mp))
	for i, polygon := range mp {
		rings := make([][][]float64, len(polygon))
		for j, ring := range polygon {
			coords := make([][]float64, len(ring))
			for k, pt := range ring {
				coords[k] = []float64{pt[0], pt[1]}
			}
			rings[j] = coords
		}
		polygons[i] = rings
	}
	return polygons
}

// MultiPolygonFromGeoJSON converts a decoded MultiPolygon (or Polygon) geometry back
// into orb representation. Round-tripping through GeoJSON preserves ring coordinates
func MultiPolygonFromGeoJSON(geometry *geojson.Geometry) (orb.MultiPolygon, error) {
	if geometry == nil {
		return nil, errors.New("geometry is nil")
	}
	var raw [][][][]float64
	switch {
	case geometry.IsMultiPolygon():
		raw = geometry.MultiPolygon
	case geometry.IsPolygon():
		raw = [][][][]float64{geometry.Polygon}
	default:
		return nil, errors.Errorf("unexpected geometry type '%s'", geometry.Type)
	}
	mp := make(orb.MultiPolygon, len(raw))
	for i, polygon := range raw {
		rings := make(orb.Polygon, len(polygon))
		for j, ring := range polygon {
			converted := make(orb.Ring, len(ring))
			for k, pt := range ring {
				converted[k] = orb.Point{pt[0], pt[1]}
			}
			rings[j] = converted
		}
		mp[i] = rings
	}
	return mp, nil
}
