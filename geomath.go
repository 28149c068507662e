package isochrones

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
)

// findDistance returns distance between two points (assuming they are Euclidean: X == Lon, Y == Lat)
func findDistance(p, q orb.Point) float64 {
	xdistance := p[0] - q[0]
	ydistance := p[1] - q[1]
	return math.Sqrt(xdistance*xdistance + ydistance*ydistance)
}

// getLength returns length for given line (assuming points of the line are Euclidean)
func getLength(line orb.LineString) float64 {
	totalLength := 0.0
	if len(line) < 2 {
		return totalLength
	}
	for i := 1; i < len(line); i++ {
		totalLength += findDistance(line[i-1], line[i])
	}
	return totalLength
}

// pointOnSegmentByFraction returns a point on given segment using fraction of its length
func pointOnSegmentByFraction(p, q orb.Point, fraction float64) orb.Point {
	return orb.Point{
		(1-fraction)*p[0] + fraction*q[0],
		(1-fraction)*p[1] + fraction*q[1],
	}
}

// segmentsIntersection returns intersection point of two segments (not lines) if it does exist
// p1, p2 - first segment
// p3, p4 - second segment
// Note: Euclidean space
func segmentsIntersection(p1, p2, p3, p4 orb.Point) (orb.Point, bool) {
	d1x := p2[0] - p1[0]
	d1y := p2[1] - p1[1]
	d2x := p4[0] - p3[0]
	d2y := p4[1] - p3[1]

	det := d1x*d2y - d1y*d2x
	if det == 0 {
		// Parallel or collinear
		return orb.Point{}, false
	}

	t := ((p3[0]-p1[0])*d2y - (p3[1]-p1[1])*d2x) / det
	u := ((p3[0]-p1[0])*d1y - (p3[1]-p1[1])*d1x) / det
	if t < 0 || t > 1 || u < 0 || u > 1 {
		return orb.Point{}, false
	}
	return orb.Point{p1[0] + t*d1x, p1[1] + t*d1y}, true
}

// pointToSegment projects given point onto segment [a;b].
// Returns projection point, fraction of segment length (0.0 => a, 1.0 => b) and distance to projection
func pointToSegment(pt, a, b orb.Point) (orb.Point, float64, float64) {
	dx := b[0] - a[0]
	dy := b[1] - a[1]
	segLenSq := dx*dx + dy*dy
	if segLenSq == 0 {
		return a, 0.0, findDistance(pt, a)
	}
	t := ((pt[0]-a[0])*dx + (pt[1]-a[1])*dy) / segLenSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	proj := orb.Point{a[0] + t*dx, a[1] + t*dy}
	return proj, t, findDistance(pt, proj)
}

// pointToLine projects given point onto polyline.
// Returns projection point, fraction of polyline length and distance to projection
func pointToLine(pt orb.Point, line orb.LineString) (orb.Point, float64, float64) {
	bestDist := math.Inf(1)
	bestProj := orb.Point{}
	bestOffset := 0.0

	offset := 0.0
	for i := 1; i < len(line); i++ {
		proj, t, dist := pointToSegment(pt, line[i-1], line[i])
		segLen := findDistance(line[i-1], line[i])
		if dist < bestDist {
			bestDist = dist
			bestProj = proj
			bestOffset = offset + t*segLen
		}
		offset += segLen
	}

	total := getLength(line)
	if total == 0 {
		return line[0], 0.0, findDistance(pt, line[0])
	}
	return bestProj, bestOffset / total, bestDist
}

// lineSubstring cuts polyline by arc length range [from; to].
// Out of range values are clamped. Assumes Euclidean space
func lineSubstring(line orb.LineString, from, to float64) orb.LineString {
	total := getLength(line)
	if from < 0 {
		from = 0
	}
	if to > total {
		to = total
	}
	if from >= to {
		pt := pointAlongLine(line, from)
		return orb.LineString{pt, pt}
	}

	var result orb.LineString
	traveled := 0.0
	for i := 1; i < len(line); i++ {
		segLen := findDistance(line[i-1], line[i])
		segStart := traveled
		segEnd := traveled + segLen
		traveled = segEnd
		if segEnd < from || segLen == 0 {
			continue
		}
		if len(result) == 0 {
			fraction := 0.0
			if from > segStart {
				fraction = (from - segStart) / segLen
			}
			result = append(result, pointOnSegmentByFraction(line[i-1], line[i], fraction))
		}
		if to <= segEnd {
			result = append(result, pointOnSegmentByFraction(line[i-1], line[i], (to-segStart)/segLen))
			return result
		}
		result = append(result, line[i])
	}
	if len(result) < 2 {
		result = append(result, line[len(line)-1])
	}
	return result
}

// pointAlongLine returns a point at given arc length offset from the start of polyline
func pointAlongLine(line orb.LineString, offset float64) orb.Point {
	if offset <= 0 {
		return line[0]
	}
	traveled := 0.0
	for i := 1; i < len(line); i++ {
		segLen := findDistance(line[i-1], line[i])
		if traveled+segLen >= offset && segLen > 0 {
			return pointOnSegmentByFraction(line[i-1], line[i], (offset-traveled)/segLen)
		}
		traveled += segLen
	}
	return line[len(line)-1]
}

// reverseLine reverses order of points in given line. Returns new slice
func reverseLine(pts orb.LineString) orb.LineString {
	inputLen := len(pts)
	output := make(orb.LineString, inputLen)
	for i, n := range pts {
		j := inputLen - i - 1
		output[j] = n
	}
	return output
}

// signedArea returns shoelace area of the ring. Positive for counter-clockwise winding
func signedArea(ring orb.Ring) float64 {
	area := 0.0
	for i := 1; i < len(ring); i++ {
		area += ring[i-1][0]*ring[i][1] - ring[i][0]*ring[i-1][1]
	}
	return area / 2.0
}

// pointInRing reports whether the point lies inside the ring (ray casting)
func pointInRing(pt orb.Point, ring orb.Ring) bool {
	inside := false
	for i := 1; i < len(ring); i++ {
		a := ring[i-1]
		b := ring[i]
		if (a[1] > pt[1]) != (b[1] > pt[1]) {
			x := a[0] + (pt[1]-a[1])/(b[1]-a[1])*(b[0]-a[0])
			if pt[0] < x {
				inside = !inside
			}
		}
	}
	return inside
}

// cross returns z-component of cross product for vectors (o->a) and (o->b)
func cross(o, a, b orb.Point) float64 {
	return (a[0]-o[0])*(b[1]-o[1]) - (a[1]-o[1])*(b[0]-o[0])
}

// convexHull returns convex hull for the given set of points as a closed counter-clockwise ring.
// Returns nil if the hull degenerates (all points coincident or collinear)
// Note: Andrew's monotone chain
func convexHull(points []orb.Point) orb.Ring {
	if len(points) < 3 {
		return nil
	}
	pts := make([]orb.Point, len(points))
	copy(pts, points)
	sort.Slice(pts, func(i, j int) bool {
		if pts[i][0] != pts[j][0] {
			return pts[i][0] < pts[j][0]
		}
		return pts[i][1] < pts[j][1]
	})

	var lower []orb.Point
	for _, p := range pts {
		for len(lower) >= 2 && cross(lower[len(lower)-2], lower[len(lower)-1], p) <= 0 {
			lower = lower[:len(lower)-1]
		}
		lower = append(lower, p)
	}
	var upper []orb.Point
	for i := len(pts) - 1; i >= 0; i-- {
		p := pts[i]
		for len(upper) >= 2 && cross(upper[len(upper)-2], upper[len(upper)-1], p) <= 0 {
			upper = upper[:len(upper)-1]
		}
		upper = append(upper, p)
	}

	if len(lower) < 3 || len(upper) < 3 {
		return nil
	}
	hull := append(lower[:len(lower)-1], upper[:len(upper)-1]...)
	ring := make(orb.Ring, 0, len(hull)+1)
	ring = append(ring, hull...)
	ring = append(ring, hull[0])
	return ring
}
