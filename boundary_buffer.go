package isochrones

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"
)

const (
	// maxFieldCells caps the sampled distance field size; the cell size grows to fit
	maxFieldCells = 1 << 22
	// cellsPerMargin controls contour smoothness relative to the buffer margin
	cellsPerMargin = 4.0
)

// bufferBoundary buffers each reached edge and isolated point outward by the margin
// and unions the result. The union is taken on a sampled distance field: a grid
// corner is inside when its distance to the nearest reached geometry is below the
// margin, and marching squares traces the iso-contour. No boolean polygon overlay is
// needed, which keeps the construction robust for arbitrary self-overlapping input
type bufferBoundary struct {
	margin   float64
	maxCells int
}

func (builder *bufferBoundary) Build(graph *Graph, set *ReachableSet) (orb.MultiPolygon, error) {
	if builder.margin <= 0 {
		return nil, errors.New("buffer margin must be positive")
	}
	lines, points := collectSources(graph, set)
	if len(lines) == 0 && len(points) == 0 {
		return nil, errors.New("empty reachable set")
	}

	field := newDistanceField(boundsOf(lines, points), builder.margin, builder.maxCells)
	for _, line := range lines {
		field.addLine(line)
	}
	for _, pt := range points {
		field.addPoint(pt)
	}

	segments := field.marchingSquares()
	rings := assembleRings(segments, field.cell*1e-6)
	mp := nestRings(rings, field.cell*field.cell*0.5)
	return validateBoundary(mp, field.cell*1e-9)
}

// collectSources gathers buffered geometry: full edge chains, clipped partial chains
// and all reached points (covers isolated vertices and the origin projection)
func collectSources(graph *Graph, set *ReachableSet) ([]orb.LineString, []orb.Point) {
	lines := make([]orb.LineString, 0, len(set.FullEdges)+len(set.PartialEdges))
	for _, edgeID := range set.FullEdges {
		lines = append(lines, graph.edges[edgeID].Geom)
	}
	for i := range set.PartialEdges {
		lines = append(lines, set.PartialEdges[i].Geom)
	}
	points := make([]orb.Point, 0, len(set.StartPoints)+len(set.NodeCosts))
	points = append(points, set.StartPoints...)
	for nodeID := range set.NodeCosts {
		points = append(points, graph.nodes[nodeID].Geom)
	}
	return lines, points
}

func boundsOf(lines []orb.LineString, points []orb.Point) orb.Bound {
	bound := orb.Bound{Min: orb.Point{math.Inf(1), math.Inf(1)}, Max: orb.Point{math.Inf(-1), math.Inf(-1)}}
	extend := func(pt orb.Point) {
		bound.Min[0] = math.Min(bound.Min[0], pt[0])
		bound.Min[1] = math.Min(bound.Min[1], pt[1])
		bound.Max[0] = math.Max(bound.Max[0], pt[0])
		bound.Max[1] = math.Max(bound.Max[1], pt[1])
	}
	for _, line := range lines {
		for _, pt := range line {
			extend(pt)
		}
	}
	for _, pt := range points {
		extend(pt)
	}
	return bound
}

// distanceField samples "margin minus distance to nearest source" on a regular grid.
// Positive corners are inside the buffered union
type distanceField struct {
	origin orb.Point
	cell   float64
	margin float64
	nx, ny int // cells per axis; corners are (nx+1) x (ny+1)
	values []float64
}

func newDistanceField(bound orb.Bound, margin float64, maxCells int) *distanceField {
	pad := margin * 1.5
	minPt := orb.Point{bound.Min[0] - pad, bound.Min[1] - pad}
	width := bound.Max[0] + pad - minPt[0]
	height := bound.Max[1] + pad - minPt[1]

	cell := margin / cellsPerMargin
	if needed := (width/cell + 2) * (height/cell + 2); needed > float64(maxCells) {
		cell = math.Sqrt(width * height / float64(maxCells) * 1.05)
	}
	nx := int(math.Ceil(width/cell)) + 1
	ny := int(math.Ceil(height/cell)) + 1

	field := &distanceField{
		origin: minPt,
		cell:   cell,
		margin: margin,
		nx:     nx,
		ny:     ny,
		values: make([]float64, (nx+1)*(ny+1)),
	}
	for i := range field.values {
		field.values[i] = -margin
	}
	return field
}

func (field *distanceField) corner(ix, iy int) orb.Point {
	return orb.Point{field.origin[0] + float64(ix)*field.cell, field.origin[1] + float64(iy)*field.cell}
}

func (field *distanceField) value(ix, iy int) float64 {
	return field.values[iy*(field.nx+1)+ix]
}

// raise lifts a corner value to "margin - dist" when that is an improvement
func (field *distanceField) raise(ix, iy int, dist float64) {
	idx := iy*(field.nx+1) + ix
	if v := field.margin - dist; v > field.values[idx] {
		field.values[idx] = v
	}
}

// window returns corner index ranges covering a bounding box expanded by the margin
func (field *distanceField) window(minX, minY, maxX, maxY float64) (int, int, int, int) {
	pad := field.margin + field.cell
	ix0 := int(math.Floor((minX - pad - field.origin[0]) / field.cell))
	iy0 := int(math.Floor((minY - pad - field.origin[1]) / field.cell))
	ix1 := int(math.Ceil((maxX + pad - field.origin[0]) / field.cell))
	iy1 := int(math.Ceil((maxY + pad - field.origin[1]) / field.cell))
	if ix0 < 0 {
		ix0 = 0
	}
	if iy0 < 0 {
		iy0 = 0
	}
	if ix1 > field.nx {
		ix1 = field.nx
	}
	if iy1 > field.ny {
		iy1 = field.ny
	}
	return ix0, iy0, ix1, iy1
}

func (field *distanceField) addLine(line orb.LineString) {
	for i := 1; i < len(line); i++ {
		a := line[i-1]
		b := line[i]
		ix0, iy0, ix1, iy1 := field.window(math.Min(a[0], b[0]), math.Min(a[1], b[1]), math.Max(a[0], b[0]), math.Max(a[1], b[1]))
		for iy := iy0; iy <= iy1; iy++ {
			for ix := ix0; ix <= ix1; ix++ {
				_, _, dist := pointToSegment(field.corner(ix, iy), a, b)
				field.raise(ix, iy, dist)
			}
		}
	}
}

func (field *distanceField) addPoint(pt orb.Point) {
	ix0, iy0, ix1, iy1 := field.window(pt[0], pt[1], pt[0], pt[1])
	for iy := iy0; iy <= iy1; iy++ {
		for ix := ix0; ix <= ix1; ix++ {
			field.raise(ix, iy, findDistance(field.corner(ix, iy), pt))
		}
	}
}

// marchingSquares extracts the zero iso-contour as directed segments with interior
// on the left. Saddle cells are resolved by the cell center average
func (field *distanceField) marchingSquares() []orientedSegment {
	var segments []orientedSegment

	interp := func(pa orb.Point, a float64, pb orb.Point, b float64) orb.Point {
		t := a / (a - b)
		if t < 0 {
			t = 0
		} else if t > 1 {
			t = 1
		}
		return orb.Point{pa[0] + t*(pb[0]-pa[0]), pa[1] + t*(pb[1]-pa[1])}
	}

	for iy := 0; iy < field.ny; iy++ {
		for ix := 0; ix < field.nx; ix++ {
			v00 := field.value(ix, iy)
			v10 := field.value(ix+1, iy)
			v11 := field.value(ix+1, iy+1)
			v01 := field.value(ix, iy+1)

			caseIdx := 0
			if v00 > 0 {
				caseIdx |= 1
			}
			if v10 > 0 {
				caseIdx |= 2
			}
			if v11 > 0 {
				caseIdx |= 4
			}
			if v01 > 0 {
				caseIdx |= 8
			}
			if caseIdx == 0 || caseIdx == 15 {
				continue
			}

			p00 := field.corner(ix, iy)
			p10 := field.corner(ix+1, iy)
			p11 := field.corner(ix+1, iy+1)
			p01 := field.corner(ix, iy+1)

			bottom := func() orb.Point { return interp(p00, v00, p10, v10) }
			right := func() orb.Point { return interp(p10, v10, p11, v11) }
			top := func() orb.Point { return interp(p01, v01, p11, v11) }
			left := func() orb.Point { return interp(p00, v00, p01, v01) }
			emit := func(a, b orb.Point) {
				if a != b {
					segments = append(segments, orientedSegment{a: a, b: b})
				}
			}

			switch caseIdx {
			case 1:
				emit(bottom(), left())
			case 2:
				emit(right(), bottom())
			case 3:
				emit(right(), left())
			case 4:
				emit(top(), right())
			case 5:
				if v00+v10+v11+v01 > 0 {
					emit(top(), left())
					emit(bottom(), right())
				} else {
					emit(bottom(), left())
					emit(top(), right())
				}
			case 6:
				emit(top(), bottom())
			case 7:
				emit(top(), left())
			case 8:
				emit(left(), top())
			case 9:
				emit(bottom(), top())
			case 10:
				if v00+v10+v11+v01 > 0 {
					emit(left(), bottom())
					emit(right(), top())
				} else {
					emit(right(), bottom())
					emit(left(), top())
				}
			case 11:
				emit(right(), top())
			case 12:
				emit(left(), right())
			case 13:
				emit(bottom(), right())
			case 14:
				emit(left(), bottom())
			}
		}
	}
	return segments
}
