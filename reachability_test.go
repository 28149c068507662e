package isochrones

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"
)

func TestCostHeapOrdering(t *testing.T) {
	heap := &costHeap{}
	rnd := rand.New(rand.NewSource(42))
	costs := make([]float64, 0, 256)
	for i := 0; i < 256; i++ {
		cost := rnd.Float64() * 1000.0
		costs = append(costs, cost)
		heap.Push(NodeID(i), cost)
	}
	sort.Float64s(costs)
	for i := 0; i < 256; i++ {
		item := heap.Pop()
		require.Equal(t, costs[i], item.cost)
	}
	require.Equal(t, 0, heap.Len())
}

// Chain of three 100-unit segments with the origin at the chain start. A 150 cutoff
// fully covers the first edge and crosses the second one exactly in its middle
func TestReachabilityCrossingInterpolation(t *testing.T) {
	graph := buildTestGraph(t, []RoadSegment{
		{ID: "a", Geom: orb.LineString{{0, 0}, {100, 0}}},
		{ID: "b", Geom: orb.LineString{{100, 0}, {200, 0}}},
		{ID: "c", Geom: orb.LineString{{200, 0}, {300, 0}}},
	})
	index := NewSpatialIndex(graph)
	snapped, err := index.Snap(OriginPoint{ID: "p1", Geom: orb.Point{0, 0}}, 0)
	require.NoError(t, err)

	labels := runTraversal(graph, snapped, 150)
	set := extractReachable(graph, snapped, labels, 150)

	require.Len(t, set.NodeCosts, 2)
	costs := make([]float64, 0, 2)
	for _, cost := range set.NodeCosts {
		costs = append(costs, cost)
	}
	sort.Float64s(costs)
	require.InDelta(t, 0.0, costs[0], 1e-9)
	require.InDelta(t, 100.0, costs[1], 1e-9)

	crossingFound := false
	for _, partial := range set.PartialEdges {
		if partial.FromNodeID >= 0 {
			require.InDelta(t, 150.0, partial.Crossing[0], 1e-9)
			require.InDelta(t, 0.0, partial.Crossing[1], 1e-9)
			require.InDelta(t, 50.0, getLength(partial.Geom), 1e-9)
			crossingFound = true
		}
	}
	require.True(t, crossingFound, "cutoff crossing must be interpolated on the second edge")
}

func TestReachabilityZeroCutoff(t *testing.T) {
	graph := buildTestGraph(t, []RoadSegment{
		{ID: "a", Geom: orb.LineString{{0, 0}, {100, 0}}},
	})
	index := NewSpatialIndex(graph)
	snapped, err := index.Snap(OriginPoint{ID: "p1", Geom: orb.Point{50, 10}}, 0)
	require.NoError(t, err)

	labels := runTraversal(graph, snapped, 0)
	set := extractReachable(graph, snapped, labels, 0)

	require.Empty(t, set.NodeCosts)
	require.Empty(t, set.FullEdges)
	require.Empty(t, set.PartialEdges)
	require.Equal(t, []orb.Point{{50, 0}}, set.StartPoints)
	require.True(t, set.Empty())
}

func TestReachabilityMidEdgeOrigin(t *testing.T) {
	graph := buildTestGraph(t, []RoadSegment{
		{ID: "a", Geom: orb.LineString{{0, 0}, {100, 0}}},
	})
	index := NewSpatialIndex(graph)
	snapped, err := index.Snap(OriginPoint{ID: "p1", Geom: orb.Point{30, 5}}, 0)
	require.NoError(t, err)

	// Budget 20 reaches neither endpoint: two clips around the projection point
	labels := runTraversal(graph, snapped, 20)
	require.Empty(t, labels)
	set := extractReachable(graph, snapped, labels, 20)
	require.Len(t, set.PartialEdges, 2)
	total := 0.0
	for _, partial := range set.PartialEdges {
		require.Equal(t, NodeID(-1), partial.FromNodeID)
		total += getLength(partial.Geom)
	}
	require.InDelta(t, 40.0, total, 1e-9)

	// Budget 40 settles the nearer endpoint only
	labels = runTraversal(graph, snapped, 40)
	require.Len(t, labels, 1)
	set = extractReachable(graph, snapped, labels, 40)
	require.Len(t, set.NodeCosts, 1)
}

func TestReachabilityMonotoneCutoffs(t *testing.T) {
	segments := []RoadSegment{
		{ID: "a", Geom: orb.LineString{{0, 0}, {100, 0}}},
		{ID: "b", Geom: orb.LineString{{100, 0}, {200, 0}}},
		{ID: "c", Geom: orb.LineString{{100, 0}, {100, 150}}},
		{ID: "d", Geom: orb.LineString{{100, 150}, {250, 150}}},
	}
	graph := buildTestGraph(t, segments)
	index := NewSpatialIndex(graph)
	snapped, err := index.Snap(OriginPoint{ID: "p1", Geom: orb.Point{10, 0}}, 0)
	require.NoError(t, err)

	cutoffs := []float64{50, 120, 300, 600}
	labels := runTraversal(graph, snapped, cutoffs[len(cutoffs)-1])

	prevNodes := -1
	prevEdges := -1
	for _, cutoff := range cutoffs {
		set := extractReachable(graph, snapped, labels, cutoff)
		require.GreaterOrEqual(t, len(set.NodeCosts), prevNodes)
		require.GreaterOrEqual(t, len(set.FullEdges), prevEdges)
		for _, cost := range set.NodeCosts {
			require.LessOrEqual(t, cost, cutoff)
		}
		prevNodes = len(set.NodeCosts)
		prevEdges = len(set.FullEdges)
	}

	// The largest cutoff covers the whole network
	full := extractReachable(graph, snapped, labels, 600)
	require.Len(t, full.NodeCosts, graph.NumNodes())
}

func TestMergeReachableSets(t *testing.T) {
	graph := buildTestGraph(t, []RoadSegment{
		{ID: "a", Geom: orb.LineString{{0, 0}, {100, 0}}},
		{ID: "b", Geom: orb.LineString{{100, 0}, {200, 0}}},
	})
	index := NewSpatialIndex(graph)

	left, err := index.Snap(OriginPoint{ID: "p1", Geom: orb.Point{0, 0}}, 0)
	require.NoError(t, err)
	right, err := index.Snap(OriginPoint{ID: "p2", Geom: orb.Point{200, 0}}, 0)
	require.NoError(t, err)

	cutoff := 120.0
	setLeft := extractReachable(graph, left, runTraversal(graph, left, cutoff), cutoff)
	setRight := extractReachable(graph, right, runTraversal(graph, right, cutoff), cutoff)
	merged := mergeReachableSets([]*ReachableSet{setLeft, setRight})

	require.Equal(t, "union", merged.OriginID)
	require.Len(t, merged.NodeCosts, graph.NumNodes())
	require.Len(t, merged.StartPoints, 2)
	// Labels are minimums over the origins
	for nodeID, cost := range merged.NodeCosts {
		if leftCost, ok := setLeft.NodeCosts[nodeID]; ok {
			require.LessOrEqual(t, cost, leftCost)
		}
		if rightCost, ok := setRight.NodeCosts[nodeID]; ok {
			require.LessOrEqual(t, cost, rightCost)
		}
	}
	// An edge fully covered by either origin must not reappear as a partial clip
	fullSeen := make(map[EdgeID]bool)
	for _, edgeID := range merged.FullEdges {
		fullSeen[edgeID] = true
	}
	for _, partial := range merged.PartialEdges {
		require.False(t, fullSeen[partial.EdgeID])
	}
}
