package isochrones

import (
	"fmt"
)

// Stage identifies the pipeline stage an error or warning originated from
type Stage uint16

const (
	STAGE_GRAPH_BUILD = Stage(iota + 1)
	STAGE_SNAP
	STAGE_TRAVERSAL
	STAGE_BOUNDARY
)

func (iotaIdx Stage) String() string {
	return [...]string{"graph_build", "snap", "traversal", "boundary"}[iotaIdx-1]
}

// GraphBuildError is returned when the road network input can not produce a single
// valid edge. Nothing downstream can proceed, so the whole query aborts.
type GraphBuildError struct {
	Reason string
}

func (e *GraphBuildError) Error() string {
	return fmt.Sprintf("%s: %s", STAGE_GRAPH_BUILD, e.Reason)
}

// OriginUnreachableError is returned when an origin point lies further from the
// road network than the configured snap radius. It is isolated to a single origin:
// the orchestrator records it as a warning and other origins still complete.
type OriginUnreachableError struct {
	OriginID   string
	Distance   float64
	SnapRadius float64
}

func (e *OriginUnreachableError) Error() string {
	return fmt.Sprintf("%s: origin '%s' is %.1f away from nearest edge (> %.1f)", STAGE_SNAP, e.OriginID, e.Distance, e.SnapRadius)
}

// BoundaryConstructionError is returned when geometry repair failed for a single
// (origin, cutoff) polygon. Other polygons of the same query still complete.
type BoundaryConstructionError struct {
	OriginID string
	Cutoff   float64
	Err      error
}

func (e *BoundaryConstructionError) Error() string {
	return fmt.Sprintf("%s: origin '%s' cutoff %.1f: %s", STAGE_BOUNDARY, e.OriginID, e.Cutoff, e.Err.Error())
}

func (e *BoundaryConstructionError) Unwrap() error {
	return e.Err
}
