package isochrones

import (
	"context"
	"testing"
	"time"

	geojson "github.com/paulmach/go.geojson"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"
)

func gridRoads() []RoadSegment {
	// 3x3 grid of 100-unit blocks
	segments := []RoadSegment{}
	for i := 0; i <= 2; i++ {
		y := float64(i) * 100
		segments = append(segments, RoadSegment{
			ID:   "h",
			Geom: orb.LineString{{0, y}, {200, y}},
		})
		x := float64(i) * 100
		segments = append(segments, RoadSegment{
			ID:   "v",
			Geom: orb.LineString{{x, 0}, {x, 200}},
		})
	}
	return segments
}

func TestIsochronesEndToEnd(t *testing.T) {
	origins := []OriginPoint{
		{ID: "a", Geom: orb.Point{0, 0}},
		{ID: "b", Geom: orb.Point{200, 200}},
	}
	result, err := Compute(context.Background(), gridRoads(), origins,
		WithProjection(PROJECTION_PLANAR),
		WithCutoffs(120, 250),
		WithBufferMargin(20),
	)
	require.NoError(t, err)
	require.Empty(t, result.Warnings)
	require.Len(t, result.Isochrones, 4)

	// Origins in input order, cutoffs ascending within each origin
	require.Equal(t, "a", result.Isochrones[0].OriginID)
	require.Equal(t, 120.0, result.Isochrones[0].Cutoff)
	require.Equal(t, "a", result.Isochrones[1].OriginID)
	require.Equal(t, 250.0, result.Isochrones[1].Cutoff)
	require.Equal(t, "b", result.Isochrones[2].OriginID)

	for i := range result.Isochrones {
		requireValidMultiPolygon(t, result.Isochrones[i].Geom)
	}
	// A larger cutoff must cover at least the smaller one's area
	require.Greater(t,
		multiPolygonArea(result.Isochrones[1].Geom),
		multiPolygonArea(result.Isochrones[0].Geom))
}

func TestIsochronesSnapWarning(t *testing.T) {
	origins := []OriginPoint{
		{ID: "near", Geom: orb.Point{50, 0}},
		{ID: "far", Geom: orb.Point{100, 700}},
	}
	result, err := Compute(context.Background(), gridRoads(), origins,
		WithProjection(PROJECTION_PLANAR),
		WithCutoffs(100),
		WithSnapRadius(100),
	)
	require.NoError(t, err)
	require.Len(t, result.Isochrones, 1, "the reachable origin must still produce output")
	require.Equal(t, "near", result.Isochrones[0].OriginID)

	require.Len(t, result.Warnings, 1)
	require.Equal(t, "far", result.Warnings[0].OriginID)
	require.Equal(t, STAGE_SNAP, result.Warnings[0].Stage)
	require.Contains(t, result.Warnings[0].Message, "far")
}

func TestIsochronesUnionMode(t *testing.T) {
	origins := []OriginPoint{
		{ID: "a", Geom: orb.Point{0, 0}},
		{ID: "b", Geom: orb.Point{200, 0}},
	}
	result, err := Compute(context.Background(), gridRoads(), origins,
		WithProjection(PROJECTION_PLANAR),
		WithCutoffs(80, 150),
		WithUnionOrigins(true),
		WithBufferMargin(20),
	)
	require.NoError(t, err)
	require.Len(t, result.Isochrones, 2, "union mode yields one isochrone per cutoff")
	for i := range result.Isochrones {
		require.Equal(t, "union", result.Isochrones[i].OriginID)
		requireValidMultiPolygon(t, result.Isochrones[i].Geom)
	}
	require.Equal(t, 80.0, result.Isochrones[0].Cutoff)
	require.Equal(t, 150.0, result.Isochrones[1].Cutoff)
}

func TestIsochronesConcaveMode(t *testing.T) {
	origins := []OriginPoint{{ID: "a", Geom: orb.Point{100, 100}}}
	result, err := Compute(context.Background(), gridRoads(), origins,
		WithProjection(PROJECTION_PLANAR),
		WithCutoffs(150),
		WithBoundaryMode(BOUNDARY_CONCAVE),
		WithConcavity(0.5),
	)
	require.NoError(t, err)
	require.Empty(t, result.Warnings)
	require.Len(t, result.Isochrones, 1)
	requireValidMultiPolygon(t, result.Isochrones[0].Geom)
}

func TestIsochronesCutoffValidation(t *testing.T) {
	origins := []OriginPoint{{ID: "a", Geom: orb.Point{0, 0}}}

	_, err := Compute(context.Background(), gridRoads(), origins,
		WithProjection(PROJECTION_PLANAR),
		WithCutoffs())
	require.Error(t, err)

	_, err = Compute(context.Background(), gridRoads(), origins,
		WithProjection(PROJECTION_PLANAR),
		WithCutoffs(-100))
	require.Error(t, err)
}

func TestIsochronesTimeout(t *testing.T) {
	origins := []OriginPoint{
		{ID: "a", Geom: orb.Point{0, 0}},
		{ID: "b", Geom: orb.Point{200, 200}},
	}
	result, err := Compute(context.Background(), gridRoads(), origins,
		WithProjection(PROJECTION_PLANAR),
		WithCutoffs(100),
		WithQueryTimeout(time.Nanosecond),
	)
	require.NoError(t, err, "expired queries return partial results, not an error")
	require.Empty(t, result.Isochrones)
	require.Len(t, result.Warnings, len(origins))
	for _, warning := range result.Warnings {
		require.Equal(t, STAGE_TRAVERSAL, warning.Stage)
	}
}

func TestIsochronesWGS84(t *testing.T) {
	// Short street in central Moscow, roughly 500 meters long
	segments := []RoadSegment{
		{ID: "a", Geom: orb.LineString{{37.6180, 55.7520}, {37.6260, 55.7520}}},
	}
	origins := []OriginPoint{{ID: "a", Geom: orb.Point{37.6220, 55.7521}}}
	result, err := Compute(context.Background(), segments, origins,
		WithCutoffs(200),
		WithBufferMargin(30),
	)
	require.NoError(t, err)
	require.Empty(t, result.Warnings)
	require.Len(t, result.Isochrones, 1)

	// Output must come back in geographic coordinates near the input street
	for _, polygon := range result.Isochrones[0].Geom {
		for _, ring := range polygon {
			for _, pt := range ring {
				require.InDelta(t, 37.622, pt[0], 0.05)
				require.InDelta(t, 55.752, pt[1], 0.05)
			}
		}
	}
}

func TestIsochronesNetworkReuse(t *testing.T) {
	network, err := NewNetwork(gridRoads(),
		WithProjection(PROJECTION_PLANAR),
		WithCutoffs(100),
		WithBufferMargin(20),
	)
	require.NoError(t, err)
	require.Equal(t, 9, network.Graph().NumNodes())
	require.Equal(t, 12, network.Graph().NumEdges())

	first, err := network.Isochrones(context.Background(), []OriginPoint{{ID: "a", Geom: orb.Point{0, 0}}})
	require.NoError(t, err)
	second, err := network.Isochrones(context.Background(), []OriginPoint{{ID: "a", Geom: orb.Point{0, 0}}})
	require.NoError(t, err)
	require.Len(t, first.Isochrones, 1)
	require.InDelta(t,
		multiPolygonArea(first.Isochrones[0].Geom),
		multiPolygonArea(second.Isochrones[0].Geom), 1e-9)
}

func TestIsochronesEmptyInput(t *testing.T) {
	_, err := Compute(context.Background(), nil, []OriginPoint{{ID: "a"}},
		WithProjection(PROJECTION_PLANAR),
		WithCutoffs(100))
	require.Error(t, err)
	require.IsType(t, &GraphBuildError{}, err)
}

func TestResultGeoJSONRoundTrip(t *testing.T) {
	origins := []OriginPoint{{ID: "a", Geom: orb.Point{0, 0}}}
	result, err := Compute(context.Background(), gridRoads(), origins,
		WithProjection(PROJECTION_PLANAR),
		WithCutoffs(120),
		WithBufferMargin(20),
	)
	require.NoError(t, err)
	require.Len(t, result.Isochrones, 1)

	data, err := result.ToGeoJSON().MarshalJSON()
	require.NoError(t, err)

	fc, err := geojson.UnmarshalFeatureCollection(data)
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)

	originID, err := fc.Features[0].PropertyString("origin_id")
	require.NoError(t, err)
	require.Equal(t, "a", originID)
	cutoff, err := fc.Features[0].PropertyFloat64("cutoff")
	require.NoError(t, err)
	require.Equal(t, 120.0, cutoff)

	mp, err := MultiPolygonFromGeoJSON(fc.Features[0].Geometry)
	require.NoError(t, err)
	require.InDelta(t, multiPolygonArea(result.Isochrones[0].Geom), multiPolygonArea(mp), 1e-6)
}

func TestRoadSegmentsFromGeoJSON(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	line := geojson.NewFeature(geojson.NewLineStringGeometry([][]float64{{0, 0}, {100, 0}}))
	line.SetProperty("speed", 60.0)
	fc.AddFeature(line)
	multi := geojson.NewFeature(geojson.NewMultiLineStringGeometry(
		[][]float64{{0, 0}, {0, 100}},
		[][]float64{{0, 100}, {100, 100}},
	))
	fc.AddFeature(multi)
	fc.AddFeature(geojson.NewFeature(geojson.NewPointGeometry([]float64{5, 5})))

	segments, err := RoadSegmentsFromGeoJSON(fc)
	require.NoError(t, err)
	require.Len(t, segments, 3, "point features are skipped, multilines are exploded")
	require.Equal(t, 60.0, segments[0].SpeedKmh)

	origins, err := OriginsFromGeoJSON(fc)
	require.NoError(t, err)
	require.Len(t, origins, 1)
	require.Equal(t, orb.Point{5, 5}, origins[0].Geom)
}
