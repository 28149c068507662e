package isochrones

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"
)

// BoundaryMode selects boundary construction strategy
type BoundaryMode uint16

const (
	// BOUNDARY_BUFFER buffers reached edges outward by a margin and unions the result.
	// Robust and always well-formed; over-approximates near network gaps
	BOUNDARY_BUFFER = BoundaryMode(iota + 1)
	// BOUNDARY_CONCAVE traces an alpha shape around reached points. Tracks the point
	// cloud tightly for small concavity values, approaches a convex hull for large ones
	BOUNDARY_CONCAVE
)

func (iotaIdx BoundaryMode) String() string {
	return [...]string{"buffer", "concave_hull"}[iotaIdx-1]
}

// BoundaryBuilder converts a reachable set into closed polygon(s)
type BoundaryBuilder interface {
	Build(graph *Graph, set *ReachableSet) (orb.MultiPolygon, error)
}

// newBoundaryBuilder maps the tagged configuration variant to an implementation
func newBoundaryBuilder(cfg *Config) BoundaryBuilder {
	if cfg.BoundaryMode == BOUNDARY_CONCAVE {
		return &concaveBoundary{
			concavity:      cfg.Concavity,
			fallbackMargin: cfg.BufferMargin,
		}
	}
	return &bufferBoundary{
		margin:   cfg.BufferMargin,
		maxCells: maxFieldCells,
	}
}

// orientedSegment is a directed contour piece with interior on its left side
type orientedSegment struct {
	a, b orb.Point
}

// assembleRings links directed contour segments into closed rings by endpoint
// matching. Segments are emitted with interior on the left, so exterior rings come
// out counter-clockwise and holes clockwise. Unclosable chains are dropped
func assembleRings(segments []orientedSegment, quant float64) []orb.Ring {
	type key [2]int64
	quantize := func(pt orb.Point) key {
		return key{int64(math.Round(pt[0] / quant)), int64(math.Round(pt[1] / quant))}
	}

	next := make(map[key][]int, len(segments))
	for i := range segments {
		k := quantize(segments[i].a)
		next[k] = append(next[k], i)
	}

	used := make([]bool, len(segments))
	var rings []orb.Ring
	for start := range segments {
		if used[start] {
			continue
		}
		ring := orb.Ring{segments[start].a, segments[start].b}
		used[start] = true
		startKey := quantize(segments[start].a)
		current := quantize(segments[start].b)
		closed := false
		for current != startKey {
			candidates := next[current]
			follow := -1
			for _, ci := range candidates {
				if !used[ci] {
					follow = ci
					break
				}
			}
			if follow < 0 {
				break
			}
			used[follow] = true
			ring = append(ring, segments[follow].b)
			current = quantize(segments[follow].b)
		}
		if current == startKey {
			ring[len(ring)-1] = ring[0]
			closed = true
		}
		if closed && len(ring) >= 4 {
			rings = append(rings, ring)
		}
	}
	return rings
}

// nestRings groups rings into polygons: counter-clockwise rings become exteriors,
// clockwise rings are attached as holes to the smallest exterior containing them
func nestRings(rings []orb.Ring, minArea float64) orb.MultiPolygon {
	type shell struct {
		ring orb.Ring
		area float64
	}
	var exteriors []shell
	var holes []shell
	for _, ring := range rings {
		area := signedArea(ring)
		if math.Abs(area) < minArea {
			continue
		}
		if area > 0 {
			exteriors = append(exteriors, shell{ring: ring, area: area})
		} else {
			holes = append(holes, shell{ring: ring, area: -area})
		}
	}
	// Largest exteriors first for deterministic output
	sort.Slice(exteriors, func(i, j int) bool { return exteriors[i].area > exteriors[j].area })

	polygons := make([]orb.Polygon, len(exteriors))
	for i := range exteriors {
		polygons[i] = orb.Polygon{exteriors[i].ring}
	}
	for _, hole := range holes {
		bestIdx := -1
		bestArea := math.Inf(1)
		for i := range exteriors {
			if exteriors[i].area <= hole.area {
				continue
			}
			if pointInRing(hole.ring[0], exteriors[i].ring) && exteriors[i].area < bestArea {
				bestIdx = i
				bestArea = exteriors[i].area
			}
		}
		if bestIdx >= 0 {
			polygons[bestIdx] = append(polygons[bestIdx], hole.ring)
		}
	}
	return orb.MultiPolygon(polygons)
}

// repairRing drops consecutive duplicate points and guarantees closure
func repairRing(ring orb.Ring, quant float64) orb.Ring {
	repaired := make(orb.Ring, 0, len(ring))
	for _, pt := range ring {
		if len(repaired) > 0 && findDistance(repaired[len(repaired)-1], pt) <= quant {
			continue
		}
		repaired = append(repaired, pt)
	}
	if len(repaired) < 3 {
		return nil
	}
	if repaired[0] != repaired[len(repaired)-1] {
		repaired = append(repaired, repaired[0])
	}
	if len(repaired) < 4 {
		return nil
	}
	return repaired
}

// ringSelfIntersects checks every non-adjacent chord pair for a proper crossing
func ringSelfIntersects(ring orb.Ring) bool {
	n := len(ring) - 1
	for i := 0; i < n; i++ {
		for j := i + 2; j < n; j++ {
			if i == 0 && j == n-1 {
				// Adjacent through the closure point
				continue
			}
			if _, found := segmentsIntersection(ring[i], ring[i+1], ring[j], ring[j+1]); found {
				return true
			}
		}
	}
	return false
}

// validateBoundary repairs each ring and verifies topological validity: closed rings,
// consistent winding (counter-clockwise exteriors, clockwise holes), no
// self-intersections. Unrepairable geometry yields an error for the caller to wrap
func validateBoundary(mp orb.MultiPolygon, quant float64) (orb.MultiPolygon, error) {
	result := make(orb.MultiPolygon, 0, len(mp))
	for _, polygon := range mp {
		repairedPolygon := make(orb.Polygon, 0, len(polygon))
		for ri, ring := range polygon {
			repaired := repairRing(ring, quant)
			if repaired == nil {
				if ri == 0 {
					return nil, errors.New("exterior ring degenerates after repair")
				}
				continue
			}
			if ringSelfIntersects(repaired) {
				return nil, errors.New("ring self-intersection is not repairable")
			}
			area := signedArea(repaired)
			if ri == 0 && area < 0 {
				return nil, errors.New("exterior ring has clockwise winding")
			}
			if ri > 0 && area > 0 {
				return nil, errors.New("hole ring has counter-clockwise winding")
			}
			repairedPolygon = append(repairedPolygon, repaired)
		}
		if len(repairedPolygon) > 0 {
			result = append(result, repairedPolygon)
		}
	}
	if len(result) == 0 {
		return nil, errors.New("no polygons survived validation")
	}
	return result, nil
}
