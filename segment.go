package isochrones

import (
	"github.com/paulmach/orb"
)

// RoadSegment is a single road polyline as supplied by the caller. Immutable input:
// the graph builder never modifies it
type RoadSegment struct {
	// ID is a caller-defined identifier (e.g. OSM way ID). Informational only
	ID string
	// Geom is an ordered sequence of coordinates
	Geom orb.LineString
	// SpeedKmh is an optional travel speed for the time-based cost model.
	// Zero means "not set": the default speed from the configuration applies
	SpeedKmh float64
}

// valid reports whether the segment could contribute at least one edge
func (segment *RoadSegment) valid() bool {
	return len(segment.Geom) >= 2 && getLength(segment.Geom) > 0
}

// OriginPoint is a coordinate isochrones should be computed around. It is not a part
// of the stored graph: it gets snapped onto the graph at query time
type OriginPoint struct {
	ID   string
	Geom orb.Point
}
