package isochrones

import (
	"fmt"
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/tidwall/rtree"
)

const (
	DEFAULT_FIRST_VERTEX = 0
	DEFAULT_FIRST_EDGE   = 0
)

// CostModel defines which scalar is accumulated along edges during traversal
type CostModel uint16

const (
	// COST_DISTANCE makes edge cost equal its length in meters
	COST_DISTANCE = CostModel(iota + 1)
	// COST_TIME makes edge cost equal travel time in seconds, using per-segment speed
	// when provided and the configured default speed otherwise
	COST_TIME
)

func (iotaIdx CostModel) String() string {
	return [...]string{"distance", "time"}[iotaIdx-1]
}

type graphBuilder struct {
	tolerance    float64
	costModel    CostModel
	defaultSpeed float64 // km/h

	lines  []orb.LineString
	speeds []float64 // km/h per line, 0 => unknown
	// split positions per line as arc length offsets
	cuts [][]float64

	nodeIDs    map[[2]int64]NodeID
	lastVertex NodeID
	lastEdge   EdgeID
	graph      *Graph
}

// chordRef addresses a single chord of a cleaned polyline
type chordRef struct {
	line  int
	chord int
}

// buildGraph converts raw road segments into a topologically connected weighted graph.
// Segments are split at every junction (interior-interior crossings and
// interior-endpoint touches within the tolerance), coincident endpoints are merged
// into shared vertices and each surviving chain becomes a single weighted edge
func buildGraph(segments []RoadSegment, tolerance float64, costModel CostModel, defaultSpeedKmh float64) (*Graph, error) {
	if tolerance <= 0 {
		tolerance = 1e-9
	}
	builder := &graphBuilder{
		tolerance:    tolerance,
		costModel:    costModel,
		defaultSpeed: defaultSpeedKmh,
		nodeIDs:      make(map[[2]int64]NodeID),
		lastVertex:   DEFAULT_FIRST_VERTEX,
		lastEdge:     DEFAULT_FIRST_EDGE,
		graph: &Graph{
			nodes: make(map[NodeID]*Node),
			edges: make(map[EdgeID]*Edge),
		},
	}

	builder.cleanSegments(segments)
	if len(builder.lines) == 0 {
		return nil, &GraphBuildError{Reason: "no valid segments in input"}
	}
	builder.findJunctions()
	builder.assemble()
	if builder.graph.NumEdges() == 0 {
		return nil, &GraphBuildError{Reason: "all segments degenerate to zero length"}
	}
	return builder.graph, nil
}

// cleanSegments drops unusable input and collapses consecutive near-duplicate points
func (builder *graphBuilder) cleanSegments(segments []RoadSegment) {
	for i := range segments {
		if !segments[i].valid() {
			continue
		}
		cleaned := make(orb.LineString, 0, len(segments[i].Geom))
		for _, pt := range segments[i].Geom {
			if len(cleaned) > 0 && findDistance(cleaned[len(cleaned)-1], pt) <= builder.tolerance {
				continue
			}
			cleaned = append(cleaned, pt)
		}
		if len(cleaned) < 2 {
			continue
		}
		builder.lines = append(builder.lines, cleaned)
		builder.speeds = append(builder.speeds, segments[i].SpeedKmh)
	}
	builder.cuts = make([][]float64, len(builder.lines))
}

// findJunctions detects chord crossings and touches between polylines and records
// them as split positions (arc length offsets) on both participants
func (builder *graphBuilder) findJunctions() {
	var tree rtree.RTreeG[chordRef]
	chordOffsets := make([][]float64, len(builder.lines))

	for li, line := range builder.lines {
		chordOffsets[li] = make([]float64, len(line))
		offset := 0.0
		for ci := 1; ci < len(line); ci++ {
			chordOffsets[li][ci-1] = offset
			offset += findDistance(line[ci-1], line[ci])
			minX := math.Min(line[ci-1][0], line[ci][0]) - builder.tolerance
			minY := math.Min(line[ci-1][1], line[ci][1]) - builder.tolerance
			maxX := math.Max(line[ci-1][0], line[ci][0]) + builder.tolerance
			maxY := math.Max(line[ci-1][1], line[ci][1]) + builder.tolerance
			tree.Insert([2]float64{minX, minY}, [2]float64{maxX, maxY}, chordRef{line: li, chord: ci - 1})
		}
		chordOffsets[li][len(line)-1] = offset
	}

	for li, line := range builder.lines {
		for ci := 1; ci < len(line); ci++ {
			a1 := line[ci-1]
			a2 := line[ci]
			minX := math.Min(a1[0], a2[0]) - builder.tolerance
			minY := math.Min(a1[1], a2[1]) - builder.tolerance
			maxX := math.Max(a1[0], a2[0]) + builder.tolerance
			maxY := math.Max(a1[1], a2[1]) + builder.tolerance

			tree.Search([2]float64{minX, minY}, [2]float64{maxX, maxY}, func(min, max [2]float64, other chordRef) bool {
				// Visit each pair once; adjacent chords of the same polyline share a
				// vertex which is not a junction
				if other.line < li || (other.line == li && other.chord <= ci) {
					return true
				}
				b1 := builder.lines[other.line][other.chord]
				b2 := builder.lines[other.line][other.chord+1]

				if crossing, found := segmentsIntersection(a1, a2, b1, b2); found {
					builder.cutAt(li, chordOffsets[li][ci-1], a1, crossing)
					builder.cutAt(other.line, chordOffsets[other.line][other.chord], b1, crossing)
				}
				// Tangential touches are not caught by the intersection solver
				builder.touch(li, ci-1, chordOffsets, other, b1, b2)
				builder.touch(other.line, other.chord, chordOffsets, chordRef{line: li, chord: ci - 1}, a1, a2)
				return true
			})
		}
	}
}

// touch splits the chord identified by (li, chord) at projections of the other chord's
// endpoints when they lie within the tolerance of it
func (builder *graphBuilder) touch(li, chord int, chordOffsets [][]float64, other chordRef, b1, b2 orb.Point) {
	a1 := builder.lines[li][chord]
	a2 := builder.lines[li][chord+1]
	for _, endpoint := range []orb.Point{b1, b2} {
		proj, t, dist := pointToSegment(endpoint, a1, a2)
		if dist > builder.tolerance || t <= 0 || t >= 1 {
			continue
		}
		builder.cutAt(li, chordOffsets[li][chord], a1, proj)
	}
}

// cutAt records a split position on the polyline: chord start offset plus the distance
// from the chord start to the junction point
func (builder *graphBuilder) cutAt(li int, chordStartOffset float64, chordStart, junction orb.Point) {
	builder.cuts[li] = append(builder.cuts[li], chordStartOffset+findDistance(chordStart, junction))
}

// assemble splits every polyline at its recorded junctions and emits graph edges
func (builder *graphBuilder) assemble() {
	for li, line := range builder.lines {
		total := getLength(line)
		positions := append([]float64{0, total}, builder.cuts[li]...)
		sort.Float64s(positions)

		prev := 0.0
		for _, pos := range positions[1:] {
			if pos-prev <= builder.tolerance {
				continue
			}
			if pos > total {
				pos = total
			}
			builder.addEdge(lineSubstring(line, prev, pos), builder.speeds[li])
			prev = pos
		}
	}
}

func (builder *graphBuilder) addEdge(geom orb.LineString, speedKmh float64) {
	length := getLength(geom)
	if length <= builder.tolerance {
		return
	}
	sourceID := builder.materializeNode(geom[0])
	targetID := builder.materializeNode(geom[len(geom)-1])
	// Pin chain ends to merged vertex coordinates so edge geometry stays connected
	geom[0] = builder.graph.nodes[sourceID].Geom
	geom[len(geom)-1] = builder.graph.nodes[targetID].Geom

	edge := &Edge{
		ID:           builder.lastEdge,
		SourceNodeID: sourceID,
		TargetNodeID: targetID,
		LengthMeters: length,
		Cost:         builder.edgeCost(length, speedKmh),
		Geom:         geom,
	}
	builder.lastEdge++
	builder.graph.edges[edge.ID] = edge
	builder.graph.nodes[sourceID].incidentEdges = append(builder.graph.nodes[sourceID].incidentEdges, edge.ID)
	if targetID != sourceID {
		builder.graph.nodes[targetID].incidentEdges = append(builder.graph.nodes[targetID].incidentEdges, edge.ID)
	}
}

func (builder *graphBuilder) edgeCost(lengthMeters, speedKmh float64) float64 {
	if builder.costModel != COST_TIME {
		return lengthMeters
	}
	speed := speedKmh
	if speed <= 0 {
		speed = builder.defaultSpeed
	}
	return lengthMeters / (speed / 3.6)
}

// materializeNode returns vertex for given coordinate, merging coincident points
// within the tolerance via a quantized key
func (builder *graphBuilder) materializeNode(pt orb.Point) NodeID {
	key := [2]int64{
		int64(math.Round(pt[0] / builder.tolerance)),
		int64(math.Round(pt[1] / builder.tolerance)),
	}
	if id, ok := builder.nodeIDs[key]; ok {
		return id
	}
	id := builder.lastVertex
	builder.lastVertex++
	builder.nodeIDs[key] = id
	builder.graph.nodes[id] = &Node{ID: id, Geom: pt}
	return id
}

// describeGraph is a diagnostics helper used by verbose mode
func describeGraph(graph *Graph) string {
	return fmt.Sprintf("%d nodes, %d edges, %d components", graph.NumNodes(), graph.NumEdges(), len(graph.Components()))
}
