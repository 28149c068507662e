package isochrones

import (
	"github.com/paulmach/orb"
)

// costHeapItem is a priority queue entry
type costHeapItem struct {
	node NodeID
	cost float64
}

// costHeap is a concrete-typed binary min-heap for the traversal priority queue
type costHeap struct {
	items []costHeapItem
}

func (h *costHeap) Len() int { return len(h.items) }

func (h *costHeap) Push(node NodeID, cost float64) {
	h.items = append(h.items, costHeapItem{node, cost})
	h.siftUp(len(h.items) - 1)
}

func (h *costHeap) Pop() costHeapItem {
	n := len(h.items)
	item := h.items[0]
	h.items[0] = h.items[n-1]
	h.items = h.items[:n-1]
	if len(h.items) > 0 {
		h.siftDown(0)
	}
	return item
}

func (h *costHeap) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if h.items[i].cost >= h.items[parent].cost {
			break
		}
		h.items[i], h.items[parent] = h.items[parent], h.items[i]
		i = parent
	}
}

func (h *costHeap) siftDown(i int) {
	n := len(h.items)
	for {
		smallest := i
		left := 2*i + 1
		right := 2*i + 2
		if left < n && h.items[left].cost < h.items[smallest].cost {
			smallest = left
		}
		if right < n && h.items[right].cost < h.items[smallest].cost {
			smallest = right
		}
		if smallest == i {
			break
		}
		h.items[i], h.items[smallest] = h.items[smallest], h.items[i]
		i = smallest
	}
}

// PartialEdge is the clipped part of an edge crossed exactly at the cutoff cost
type PartialEdge struct {
	EdgeID EdgeID
	// FromNodeID is the reached endpoint the clip starts at, or -1 when the clip
	// starts at the virtual origin projection
	FromNodeID NodeID
	// Crossing is the interpolated point where the cutoff budget runs out
	Crossing orb.Point
	Geom     orb.LineString
}

// ReachableSet holds everything reachable from one origin within one cost cutoff:
// fully reached vertices with their cost labels, fully covered edges and partial
// edges clipped at interpolated crossing points. Computed per query, not persisted
type ReachableSet struct {
	OriginID     string
	Cutoff       float64
	NodeCosts    map[NodeID]float64
	StartPoints  []orb.Point
	FullEdges    []EdgeID
	PartialEdges []PartialEdge
}

// Points returns reached vertices, crossing points and origin projections as a flat
// point cloud (the concave boundary mode input)
func (set *ReachableSet) Points(graph *Graph) []orb.Point {
	points := make([]orb.Point, 0, len(set.NodeCosts)+len(set.PartialEdges)+len(set.StartPoints))
	points = append(points, set.StartPoints...)
	for nodeID := range set.NodeCosts {
		points = append(points, graph.nodes[nodeID].Geom)
	}
	for i := range set.PartialEdges {
		points = append(points, set.PartialEdges[i].Crossing)
	}
	return points
}

// Empty reports whether nothing in the graph is covered (not even a clipped edge part)
func (set *ReachableSet) Empty() bool {
	return len(set.NodeCosts) == 0 && len(set.FullEdges) == 0 && len(set.PartialEdges) == 0
}

// runTraversal is a single-source shortest-path labeling seeded from the virtual
// origin: both endpoints of the snap edge start with costs scaled by the projection
// fraction. One priority-ordered nondecreasing-cost run to the maximum requested
// cutoff; all smaller cutoffs are read off the same labeling
func runTraversal(graph *Graph, snapped *SnappedOrigin, maxCutoff float64) map[NodeID]float64 {
	labels := make(map[NodeID]float64)
	heap := &costHeap{}

	snapEdge := graph.edges[snapped.EdgeID]
	seed := func(nodeID NodeID, cost float64) {
		if cost > maxCutoff {
			return
		}
		if known, ok := labels[nodeID]; ok && known <= cost {
			return
		}
		labels[nodeID] = cost
		heap.Push(nodeID, cost)
	}
	seed(snapEdge.SourceNodeID, snapped.Fraction*snapEdge.Cost)
	seed(snapEdge.TargetNodeID, (1-snapped.Fraction)*snapEdge.Cost)

	for heap.Len() > 0 {
		item := heap.Pop()
		if item.cost > labels[item.node] {
			// Stale entry
			continue
		}
		for _, edgeID := range graph.nodes[item.node].incidentEdges {
			edge := graph.edges[edgeID]
			neighborID := edge.OtherEnd(item.node)
			nextCost := item.cost + edge.Cost
			if nextCost > maxCutoff {
				continue
			}
			if known, ok := labels[neighborID]; ok && known <= nextCost {
				continue
			}
			labels[neighborID] = nextCost
			heap.Push(neighborID, nextCost)
		}
	}
	return labels
}

// extractReachable reads a single cutoff off the cost labeling. A vertex is fully
// reached when its label does not exceed the cutoff; for each edge with exactly one
// reached endpoint the crossing point is interpolated along the edge geometry at
// exactly the cutoff cost
func extractReachable(graph *Graph, snapped *SnappedOrigin, labels map[NodeID]float64, cutoff float64) *ReachableSet {
	set := &ReachableSet{
		OriginID:    snapped.OriginID,
		Cutoff:      cutoff,
		NodeCosts:   make(map[NodeID]float64),
		StartPoints: []orb.Point{snapped.Point},
	}
	for nodeID, label := range labels {
		if label <= cutoff {
			set.NodeCosts[nodeID] = label
		}
	}

	for _, edgeID := range graph.EdgeIDs() {
		if edgeID == snapped.EdgeID {
			continue
		}
		edge := graph.edges[edgeID]
		labelU, reachedU := set.NodeCosts[edge.SourceNodeID]
		labelV, reachedV := set.NodeCosts[edge.TargetNodeID]
		switch {
		case reachedU && reachedV:
			set.FullEdges = append(set.FullEdges, edgeID)
		case reachedU:
			set.appendPartial(edge, edge.SourceNodeID, cutoff-labelU)
		case reachedV:
			set.appendPartial(edge, edge.TargetNodeID, cutoff-labelV)
		}
	}

	set.clipSnapEdge(graph, snapped, cutoff)
	return set
}

// appendPartial clips the edge starting at the reached endpoint with the leftover
// cost budget. Cost is uniform along an edge, so the budget fraction of the cost maps
// to the same fraction of arc length
func (set *ReachableSet) appendPartial(edge *Edge, fromNodeID NodeID, budget float64) {
	if budget <= 0 || edge.Cost <= 0 {
		return
	}
	meters := budget / edge.Cost * edge.LengthMeters
	if meters >= edge.LengthMeters {
		// Whole edge is coverable; the opposite endpoint just was not settled from
		// this side. Keep the clip maximal
		meters = edge.LengthMeters
	}
	var geom orb.LineString
	if fromNodeID == edge.SourceNodeID {
		geom = lineSubstring(edge.Geom, 0, meters)
	} else {
		geom = reverseLine(lineSubstring(edge.Geom, edge.LengthMeters-meters, edge.LengthMeters))
	}
	set.PartialEdges = append(set.PartialEdges, PartialEdge{
		EdgeID:     edge.ID,
		FromNodeID: fromNodeID,
		Crossing:   geom[len(geom)-1],
		Geom:       geom,
	})
}

// clipSnapEdge covers the virtual origin overlay. The snap edge is handled as two
// half-edges meeting at the projection point: a half is fully covered when its far
// endpoint is reached, otherwise it is clipped at the remaining budget
func (set *ReachableSet) clipSnapEdge(graph *Graph, snapped *SnappedOrigin, cutoff float64) {
	edge := graph.edges[snapped.EdgeID]
	projOffset := snapped.Fraction * edge.LengthMeters

	metersFor := func(budget float64) float64 {
		if edge.Cost <= 0 {
			return edge.LengthMeters
		}
		return budget / edge.Cost * edge.LengthMeters
	}

	// Toward source (backwards along the geometry)
	if _, ok := set.NodeCosts[edge.SourceNodeID]; ok {
		set.appendSnapClip(edge, lineSubstring(edge.Geom, 0, projOffset))
	} else if meters := metersFor(cutoff); meters > 0 && projOffset > 0 {
		if meters > projOffset {
			meters = projOffset
		}
		set.appendSnapClip(edge, reverseLine(lineSubstring(edge.Geom, projOffset-meters, projOffset)))
	}

	// Toward target
	if _, ok := set.NodeCosts[edge.TargetNodeID]; ok {
		set.appendSnapClip(edge, lineSubstring(edge.Geom, projOffset, edge.LengthMeters))
	} else if meters := metersFor(cutoff); meters > 0 && projOffset < edge.LengthMeters {
		if meters > edge.LengthMeters-projOffset {
			meters = edge.LengthMeters - projOffset
		}
		set.appendSnapClip(edge, lineSubstring(edge.Geom, projOffset, projOffset+meters))
	}
}

func (set *ReachableSet) appendSnapClip(edge *Edge, geom orb.LineString) {
	if getLength(geom) <= 0 {
		return
	}
	set.PartialEdges = append(set.PartialEdges, PartialEdge{
		EdgeID:     edge.ID,
		FromNodeID: -1,
		Crossing:   geom[len(geom)-1],
		Geom:       geom,
	})
}

// mergeReachableSets unions per-origin sets computed for the same cutoff. Reached
// vertices are unioned with the minimum label kept; costs are never averaged
func mergeReachableSets(sets []*ReachableSet) *ReachableSet {
	if len(sets) == 1 {
		return sets[0]
	}
	merged := &ReachableSet{
		OriginID:  "union",
		Cutoff:    sets[0].Cutoff,
		NodeCosts: make(map[NodeID]float64),
	}
	fullSeen := make(map[EdgeID]bool)
	for _, set := range sets {
		merged.StartPoints = append(merged.StartPoints, set.StartPoints...)
		for nodeID, label := range set.NodeCosts {
			if known, ok := merged.NodeCosts[nodeID]; !ok || label < known {
				merged.NodeCosts[nodeID] = label
			}
		}
		for _, edgeID := range set.FullEdges {
			if !fullSeen[edgeID] {
				fullSeen[edgeID] = true
				merged.FullEdges = append(merged.FullEdges, edgeID)
			}
		}
	}
	for _, set := range sets {
		for _, partial := range set.PartialEdges {
			if !fullSeen[partial.EdgeID] {
				merged.PartialEdges = append(merged.PartialEdges, partial)
			}
		}
	}
	return merged
}
