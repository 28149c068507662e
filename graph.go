package isochrones

import (
	"sort"

	"github.com/paulmach/orb"
)

type NodeID int64

type EdgeID int64

// Node is a graph vertex: a topological junction or a road dead end
type Node struct {
	ID   NodeID
	Geom orb.Point

	incidentEdges []EdgeID
}

// Edge is an undirected road chain between two junction nodes. It carries the full
// chain geometry, its metric length and its travel cost (which equals the length for
// the distance cost model)
type Edge struct {
	ID           EdgeID
	SourceNodeID NodeID
	TargetNodeID NodeID
	LengthMeters float64
	Cost         float64
	Geom         orb.LineString
}

// OtherEnd returns the opposite endpoint of the edge
func (edge *Edge) OtherEnd(nodeID NodeID) NodeID {
	if edge.SourceNodeID == nodeID {
		return edge.TargetNodeID
	}
	return edge.SourceNodeID
}

// Graph is a routable road network. Built once by the graph builder and read-only
// thereafter, so it is safe for unbounded concurrent readers. The graph may consist
// of multiple disconnected components
type Graph struct {
	nodes map[NodeID]*Node
	edges map[EdgeID]*Edge
}

// NumNodes returns number of vertices
func (graph *Graph) NumNodes() int {
	return len(graph.nodes)
}

// NumEdges returns number of edges
func (graph *Graph) NumEdges() int {
	return len(graph.edges)
}

// Node returns vertex by its identifier
func (graph *Graph) Node(id NodeID) (*Node, bool) {
	node, ok := graph.nodes[id]
	return node, ok
}

// Edge returns edge by its identifier
func (graph *Graph) Edge(id EdgeID) (*Edge, bool) {
	edge, ok := graph.edges[id]
	return edge, ok
}

// NodeIDs returns sorted identifiers of all vertices
func (graph *Graph) NodeIDs() []NodeID {
	ids := make([]NodeID, 0, len(graph.nodes))
	for id := range graph.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// EdgeIDs returns sorted identifiers of all edges
func (graph *Graph) EdgeIDs() []EdgeID {
	ids := make([]EdgeID, 0, len(graph.edges))
	for id := range graph.edges {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// IncidentEdges returns identifiers of edges touching given vertex
func (graph *Graph) IncidentEdges(nodeID NodeID) []EdgeID {
	node, ok := graph.nodes[nodeID]
	if !ok {
		return nil
	}
	return node.incidentEdges
}

// Components returns connected components of the graph as sorted slices of vertex
// identifiers
func (graph *Graph) Components() [][]NodeID {
	seen := make(map[NodeID]bool, len(graph.nodes))
	components := [][]NodeID{}
	for _, startID := range graph.NodeIDs() {
		if seen[startID] {
			continue
		}
		queue := []NodeID{startID}
		seen[startID] = true
		component := []NodeID{}
		for qi := 0; qi < len(queue); qi++ {
			currentID := queue[qi]
			component = append(component, currentID)
			for _, edgeID := range graph.nodes[currentID].incidentEdges {
				neighborID := graph.edges[edgeID].OtherEnd(currentID)
				if !seen[neighborID] {
					seen[neighborID] = true
					queue = append(queue, neighborID)
				}
			}
		}
		sort.Slice(component, func(i, j int) bool { return component[i] < component[j] })
		components = append(components, component)
	}
	return components
}
