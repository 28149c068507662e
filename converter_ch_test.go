package isochrones

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"
)

func TestExportToCH(t *testing.T) {
	// Square block with one diagonal shortcut
	graph := buildTestGraph(t, []RoadSegment{
		{ID: "bottom", Geom: orb.LineString{{0, 0}, {100, 0}}},
		{ID: "right", Geom: orb.LineString{{100, 0}, {100, 100}}},
		{ID: "top", Geom: orb.LineString{{100, 100}, {0, 100}}},
		{ID: "left", Geom: orb.LineString{{0, 100}, {0, 0}}},
	})
	routable, err := graph.ExportToCH(true)
	require.NoError(t, err)

	var corner, opposite NodeID = -1, -1
	for _, nodeID := range graph.NodeIDs() {
		node, _ := graph.Node(nodeID)
		switch node.Geom {
		case orb.Point{0, 0}:
			corner = nodeID
		case orb.Point{100, 100}:
			opposite = nodeID
		}
	}
	require.GreaterOrEqual(t, corner, NodeID(0))
	require.GreaterOrEqual(t, opposite, NodeID(0))

	// Both two-edge detours around the square cost 200
	cost, path := routable.ShortestPath(int64(corner), int64(opposite))
	require.InDelta(t, 200.0, cost, 1e-9)
	require.Len(t, path, 3)
}
