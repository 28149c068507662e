package isochrones

import (
	"github.com/LdDl/ch"
	"github.com/pkg/errors"
)

// ExportToCH converts the built road graph into a contraction hierarchies graph so
// downstream consumers can run point-to-point shortest path queries over the same
// network the isochrones were computed on. Every undirected edge becomes a pair of
// directed ones. Set prepare to run the contraction immediately (required before
// calling ShortestPath on the result)
func (graph *Graph) ExportToCH(prepare bool) (*ch.Graph, error) {
	routable := ch.Graph{}
	for _, nodeID := range graph.NodeIDs() {
		if err := routable.CreateVertex(int64(nodeID)); err != nil {
			return nil, errors.Wrapf(err, "Can't create vertex %d", nodeID)
		}
	}
	for _, edgeID := range graph.EdgeIDs() {
		edge := graph.edges[edgeID]
		source := int64(edge.SourceNodeID)
		target := int64(edge.TargetNodeID)
		if source == target {
			// Pure cycles contribute nothing to point-to-point queries
			continue
		}
		if err := routable.AddEdge(source, target, edge.Cost); err != nil {
			return nil, errors.Wrapf(err, "Can't add edge %d -> %d", source, target)
		}
		if err := routable.AddEdge(target, source, edge.Cost); err != nil {
			return nil, errors.Wrapf(err, "Can't add edge %d -> %d", target, source)
		}
	}
	if prepare {
		routable.PrepareContractionHierarchies()
	}
	return &routable, nil
}
