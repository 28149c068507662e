package isochrones

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/tidwall/rtree"
)

// SpatialIndex answers nearest-node / nearest-edge-point queries against a built
// graph. Built once right after the graph and read-only thereafter, so it is safe
// for unbounded concurrent readers
type SpatialIndex struct {
	graph    *Graph
	edgeTree rtree.RTreeG[EdgeID]
	nodeTree rtree.RTreeG[NodeID]
}

// NewSpatialIndex builds R-tree indexes over edge bounding boxes and vertex points
func NewSpatialIndex(graph *Graph) *SpatialIndex {
	index := &SpatialIndex{graph: graph}
	for _, edgeID := range graph.EdgeIDs() {
		edge := graph.edges[edgeID]
		minX, minY := math.Inf(1), math.Inf(1)
		maxX, maxY := math.Inf(-1), math.Inf(-1)
		for _, pt := range edge.Geom {
			minX = math.Min(minX, pt[0])
			minY = math.Min(minY, pt[1])
			maxX = math.Max(maxX, pt[0])
			maxY = math.Max(maxY, pt[1])
		}
		index.edgeTree.Insert([2]float64{minX, minY}, [2]float64{maxX, maxY}, edgeID)
	}
	for _, nodeID := range graph.NodeIDs() {
		pt := graph.nodes[nodeID].Geom
		index.nodeTree.Insert([2]float64{pt[0], pt[1]}, [2]float64{pt[0], pt[1]}, nodeID)
	}
	return index
}

// NearestEdge returns the edge closest to the given point along with the projection
// onto its geometry, the arc length fraction of the projection and the distance to it.
// Returns false when the graph has no edges
func (index *SpatialIndex) NearestEdge(pt orb.Point) (EdgeID, orb.Point, float64, float64, bool) {
	found := false
	var nearestID EdgeID

	target := [2]float64{pt[0], pt[1]}
	index.edgeTree.Nearby(
		// Tree boxes are ranked by squared distance, so the exact item distance has
		// to be squared as well to keep the priority order consistent
		rtree.BoxDist[float64, EdgeID](target, target, func(min, max [2]float64, edgeID EdgeID) float64 {
			_, _, dist := pointToLine(pt, index.graph.edges[edgeID].Geom)
			return dist * dist
		}),
		func(min, max [2]float64, edgeID EdgeID, dist float64) bool {
			// Entries arrive ordered by exact distance, so the first one wins
			nearestID = edgeID
			found = true
			return false
		},
	)
	if !found {
		return 0, orb.Point{}, 0, 0, false
	}
	proj, fraction, dist := pointToLine(pt, index.graph.edges[nearestID].Geom)
	return nearestID, proj, fraction, dist, true
}

// NearestNode returns the vertex closest to the given point and the distance to it.
// Returns false when the graph has no vertices
func (index *SpatialIndex) NearestNode(pt orb.Point) (NodeID, float64, bool) {
	found := false
	var nearestID NodeID
	nearestDist := math.Inf(1)

	target := [2]float64{pt[0], pt[1]}
	index.nodeTree.Nearby(
		rtree.BoxDist[float64, NodeID](target, target, nil),
		func(min, max [2]float64, nodeID NodeID, dist float64) bool {
			nearestID = nodeID
			// The default box ranking yields squared distances
			nearestDist = math.Sqrt(dist)
			found = true
			return false
		},
	)
	return nearestID, nearestDist, found
}

// SnappedOrigin is a transient virtual node materialized for a single query: the
// origin projected onto its nearest edge, connected to that edge's endpoints with
// costs scaled by the projection fraction. The shared graph is never mutated
type SnappedOrigin struct {
	OriginID string
	Origin   orb.Point
	Point    orb.Point
	EdgeID   EdgeID
	Fraction float64
	Distance float64
}

// Snap projects an arbitrary origin point onto the graph. Exceeding the maximum snap
// radius yields OriginUnreachableError
func (index *SpatialIndex) Snap(origin OriginPoint, maxSnapRadius float64) (*SnappedOrigin, error) {
	edgeID, proj, fraction, dist, ok := index.NearestEdge(origin.Geom)
	if !ok {
		return nil, &OriginUnreachableError{OriginID: origin.ID, Distance: math.Inf(1), SnapRadius: maxSnapRadius}
	}
	if maxSnapRadius > 0 && dist > maxSnapRadius {
		return nil, &OriginUnreachableError{OriginID: origin.ID, Distance: dist, SnapRadius: maxSnapRadius}
	}
	return &SnappedOrigin{
		OriginID: origin.ID,
		Origin:   origin.Geom,
		Point:    proj,
		EdgeID:   edgeID,
		Fraction: fraction,
		Distance: dist,
	}, nil
}
