package isochrones

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"
)

// concaveBoundary traces an alpha shape around the reached point cloud (vertices plus
// crossing points). The triangulation is filtered by circumradius: the concavity
// parameter in [0;1] interpolates the radius threshold between the median
// triangulation edge (tight tracking, may split sparse spots apart) and the enclosing
// radius (effectively a convex hull)
type concaveBoundary struct {
	concavity      float64
	fallbackMargin float64
}

func (builder *concaveBoundary) Build(graph *Graph, set *ReachableSet) (orb.MultiPolygon, error) {
	points := dedupePoints(set.Points(graph))
	hull := convexHull(points)
	if hull == nil {
		// Too few points or a collinear cloud: an alpha shape has no interior, so
		// fall back to a thin buffer around what was reached
		fallback := &bufferBoundary{margin: builder.fallbackMargin, maxCells: maxFieldCells}
		return fallback.Build(graph, set)
	}
	hullArea := signedArea(hull)

	concavity := builder.concavity
	if concavity < 0 {
		concavity = 0
	}
	if concavity >= 0.999 {
		return orb.MultiPolygon{orb.Polygon{hull}}, nil
	}

	triangles := delaunay(points)
	if len(triangles) == 0 {
		return orb.MultiPolygon{orb.Polygon{hull}}, nil
	}

	medianEdge := medianEdgeLength(points, triangles)
	bound := boundsOf(nil, points)
	enclosingRadius := findDistance(bound.Min, bound.Max) / 2
	alphaRadius := medianEdge + concavity*(enclosingRadius-medianEdge)

	kept := triangles[:0:0]
	for _, tri := range triangles {
		if math.Sqrt(tri.rsq) <= alphaRadius {
			kept = append(kept, tri)
		}
	}
	if len(kept) == 0 {
		return orb.MultiPolygon{orb.Polygon{hull}}, nil
	}

	segments := boundaryEdges(points, kept)
	quant := math.Max(medianEdge*1e-9, 1e-12)
	rings := assembleRings(segments, quant)
	minRingArea := medianEdge * medianEdge * 1e-6
	mp := nestRings(rings, minRingArea)

	// A concave hull collapsing to a sliver of the convex hull means the alpha value
	// was too aggressive for this cloud; the convex hull is the honest answer then
	totalArea := 0.0
	for _, polygon := range mp {
		for _, ring := range polygon {
			totalArea += signedArea(ring)
		}
	}
	if totalArea < 0.05*hullArea {
		return orb.MultiPolygon{orb.Polygon{hull}}, nil
	}

	validated, err := validateBoundary(mp, quant)
	if err != nil {
		return nil, errors.Wrap(err, "alpha shape repair failed")
	}
	return validated, nil
}

func dedupePoints(points []orb.Point) []orb.Point {
	seen := make(map[[2]float64]bool, len(points))
	result := make([]orb.Point, 0, len(points))
	for _, pt := range points {
		key := [2]float64{pt[0], pt[1]}
		if !seen[key] {
			seen[key] = true
			result = append(result, pt)
		}
	}
	return result
}

// triangle references three point indices with a precomputed circumcircle
type triangle struct {
	a, b, c int
	cx, cy  float64
	rsq     float64
}

func (tri *triangle) circumContains(pt orb.Point) bool {
	dx := pt[0] - tri.cx
	dy := pt[1] - tri.cy
	return dx*dx+dy*dy <= tri.rsq
}

func makeTriangle(points []orb.Point, a, b, c int) triangle {
	pa, pb, pc := points[a], points[b], points[c]
	d := 2 * (pa[0]*(pb[1]-pc[1]) + pb[0]*(pc[1]-pa[1]) + pc[0]*(pa[1]-pb[1]))
	tri := triangle{a: a, b: b, c: c}
	if math.Abs(d) < 1e-12 {
		// Degenerate (collinear) triangle: make its circumcircle swallow everything
		// so it always gets replaced
		tri.rsq = math.Inf(1)
		return tri
	}
	aSq := pa[0]*pa[0] + pa[1]*pa[1]
	bSq := pb[0]*pb[0] + pb[1]*pb[1]
	cSq := pc[0]*pc[0] + pc[1]*pc[1]
	tri.cx = (aSq*(pb[1]-pc[1]) + bSq*(pc[1]-pa[1]) + cSq*(pa[1]-pb[1])) / d
	tri.cy = (aSq*(pc[0]-pb[0]) + bSq*(pa[0]-pc[0]) + cSq*(pb[0]-pa[0])) / d
	dx := pa[0] - tri.cx
	dy := pa[1] - tri.cy
	tri.rsq = dx*dx + dy*dy
	return tri
}

// delaunay is a Bowyer-Watson triangulation over a super-triangle
func delaunay(points []orb.Point) []triangle {
	if len(points) < 3 {
		return nil
	}
	bound := boundsOf(nil, points)
	spanX := bound.Max[0] - bound.Min[0]
	spanY := bound.Max[1] - bound.Min[1]
	span := math.Max(math.Max(spanX, spanY), 1.0)
	midX := (bound.Min[0] + bound.Max[0]) / 2
	midY := (bound.Min[1] + bound.Max[1]) / 2

	extended := make([]orb.Point, len(points), len(points)+3)
	copy(extended, points)
	superA := len(extended)
	extended = append(extended,
		orb.Point{midX - 20*span, midY - span},
		orb.Point{midX, midY + 20*span},
		orb.Point{midX + 20*span, midY - span},
	)

	triangles := []triangle{makeTriangle(extended, superA, superA+1, superA+2)}

	type edge struct{ a, b int }
	normalize := func(a, b int) edge {
		if a > b {
			a, b = b, a
		}
		return edge{a, b}
	}

	for pi := 0; pi < len(points); pi++ {
		pt := extended[pi]
		edgeCount := make(map[edge]int)
		edgeDirected := make(map[edge][2]int)
		survivors := triangles[:0:0]
		for _, tri := range triangles {
			if !tri.circumContains(pt) {
				survivors = append(survivors, tri)
				continue
			}
			for _, pair := range [][2]int{{tri.a, tri.b}, {tri.b, tri.c}, {tri.c, tri.a}} {
				key := normalize(pair[0], pair[1])
				edgeCount[key]++
				edgeDirected[key] = pair
			}
		}
		triangles = survivors
		for key, count := range edgeCount {
			if count != 1 {
				continue
			}
			pair := edgeDirected[key]
			triangles = append(triangles, makeTriangle(extended, pair[0], pair[1], pi))
		}
	}

	result := triangles[:0:0]
	for _, tri := range triangles {
		if tri.a >= superA || tri.b >= superA || tri.c >= superA {
			continue
		}
		result = append(result, tri)
	}
	return result
}

func medianEdgeLength(points []orb.Point, triangles []triangle) float64 {
	lengths := make([]float64, 0, len(triangles)*3)
	for _, tri := range triangles {
		lengths = append(lengths,
			findDistance(points[tri.a], points[tri.b]),
			findDistance(points[tri.b], points[tri.c]),
			findDistance(points[tri.c], points[tri.a]),
		)
	}
	if len(lengths) == 0 {
		return 0
	}
	sort.Float64s(lengths)
	return lengths[len(lengths)/2]
}

// boundaryEdges returns directed edges used by exactly one kept triangle. Triangles
// are oriented counter-clockwise first, so the emitted segments keep the shape
// interior on their left and assemble into properly wound rings
func boundaryEdges(points []orb.Point, kept []triangle) []orientedSegment {
	type edge struct{ a, b int }
	normalize := func(a, b int) edge {
		if a > b {
			a, b = b, a
		}
		return edge{a, b}
	}
	count := make(map[edge]int)
	directed := make(map[edge][2]int)
	for _, tri := range kept {
		a, b, c := tri.a, tri.b, tri.c
		if cross(points[a], points[b], points[c]) < 0 {
			b, c = c, b
		}
		for _, pair := range [][2]int{{a, b}, {b, c}, {c, a}} {
			key := normalize(pair[0], pair[1])
			count[key]++
			directed[key] = pair
		}
	}
	var segments []orientedSegment
	for key, n := range count {
		if n != 1 {
			continue
		}
		pair := directed[key]
		segments = append(segments, orientedSegment{a: points[pair[0]], b: points[pair[1]]})
	}
	return segments
}
