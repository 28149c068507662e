// Package isochrones computes service areas over road networks: polygons delimiting
// everything reachable from origin points within given travel-cost budgets. The
// pipeline builds a routable graph from raw road polylines, snaps origins onto it
// through a spatial index, labels reachable vertices with a single shortest-path
// traversal per origin and traces boundary polygons in either buffer or concave-hull
// mode.
package isochrones

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"
)

// Config carries both build-time and query-time parameters
type Config struct {
	CostModel    CostModel
	Cutoffs      []float64
	BoundaryMode BoundaryMode
	// BufferMargin is the outward margin for the buffer mode and the fallback margin
	// for degenerate concave shapes
	BufferMargin float64
	// Concavity in [0;1]: smaller tracks the reached points tightly, larger
	// approaches a convex hull
	Concavity    float64
	UnionOrigins bool
	// SnapRadius limits how far an origin may be from the nearest edge; zero means unlimited
	SnapRadius float64
	// QueryTimeout bounds one whole query; on expiry already-completed origin results
	// are returned together with timeout warnings. Zero means no timeout
	QueryTimeout time.Duration
	// Workers bounds the per-origin worker pool; zero means number of CPU cores
	Workers int
	// NodeTolerance merges coincident vertices within this distance during graph build
	NodeTolerance float64
	// DefaultSpeedKmh applies to segments without a speed attribute in the time cost model
	DefaultSpeedKmh float64
	Projection      Projection
	Verbose         bool
}

// NewConfig returns configuration with defaults applied
func NewConfig(options ...func(*Config)) *Config {
	cfg := &Config{
		CostModel:       COST_DISTANCE,
		BoundaryMode:    BOUNDARY_BUFFER,
		BufferMargin:    50.0,
		Concavity:       0.3,
		SnapRadius:      0,
		Workers:         0,
		NodeTolerance:   0.01,
		DefaultSpeedKmh: 40.0,
		Projection:      PROJECTION_WGS84,
	}
	for _, option := range options {
		option(cfg)
	}
	return cfg
}

func WithCostModel(costModel CostModel) func(*Config) {
	return func(cfg *Config) {
		cfg.CostModel = costModel
	}
}

func WithCutoffs(cutoffs ...float64) func(*Config) {
	return func(cfg *Config) {
		cfg.Cutoffs = cutoffs
	}
}

func WithBoundaryMode(mode BoundaryMode) func(*Config) {
	return func(cfg *Config) {
		cfg.BoundaryMode = mode
	}
}

func WithBufferMargin(margin float64) func(*Config) {
	return func(cfg *Config) {
		cfg.BufferMargin = margin
	}
}

func WithConcavity(concavity float64) func(*Config) {
	return func(cfg *Config) {
		cfg.Concavity = concavity
	}
}

func WithUnionOrigins(union bool) func(*Config) {
	return func(cfg *Config) {
		cfg.UnionOrigins = union
	}
}

func WithSnapRadius(radius float64) func(*Config) {
	return func(cfg *Config) {
		cfg.SnapRadius = radius
	}
}

func WithQueryTimeout(timeout time.Duration) func(*Config) {
	return func(cfg *Config) {
		cfg.QueryTimeout = timeout
	}
}

func WithWorkers(workers int) func(*Config) {
	return func(cfg *Config) {
		cfg.Workers = workers
	}
}

func WithNodeTolerance(tolerance float64) func(*Config) {
	return func(cfg *Config) {
		cfg.NodeTolerance = tolerance
	}
}

func WithDefaultSpeed(speedKmh float64) func(*Config) {
	return func(cfg *Config) {
		cfg.DefaultSpeedKmh = speedKmh
	}
}

func WithProjection(projection Projection) func(*Config) {
	return func(cfg *Config) {
		cfg.Projection = projection
	}
}

func WithVerbose(verbose bool) func(*Config) {
	return func(cfg *Config) {
		cfg.Verbose = verbose
	}
}

// Isochrone is one output polygon tagged with the origin and cutoff it was built for
type Isochrone struct {
	OriginID string
	Cutoff   float64
	Geom     orb.MultiPolygon
}

// Warning is a non-fatal per-origin failure surfaced alongside partial results
type Warning struct {
	OriginID string
	Stage    Stage
	Message  string
}

// Result is an ordered collection of isochrones: origins in input order, cutoffs ascending
type Result struct {
	Isochrones []Isochrone
	Warnings   []Warning
}

// Network is a routable road network with its spatial index: built once, immutable
// afterwards and safe to share between any number of concurrent queries
type Network struct {
	graph *Graph
	index *SpatialIndex
	cfg   *Config
}

// NewNetwork builds the graph and the spatial index from raw road segments
func NewNetwork(segments []RoadSegment, options ...func(*Config)) (*Network, error) {
	cfg := NewConfig(options...)

	prepared := segments
	if cfg.Projection == PROJECTION_WGS84 {
		prepared = make([]RoadSegment, len(segments))
		for i := range segments {
			prepared[i] = segments[i]
			prepared[i].Geom = lineToEuclidean(segments[i].Geom)
		}
	}

	st := time.Now()
	graph, err := buildGraph(prepared, cfg.NodeTolerance, cfg.CostModel, cfg.DefaultSpeedKmh)
	if err != nil {
		return nil, err
	}
	if cfg.Verbose {
		fmt.Printf("Graph built in %v: %s\n", time.Since(st), describeGraph(graph))
	}

	st = time.Now()
	index := NewSpatialIndex(graph)
	if cfg.Verbose {
		fmt.Printf("Spatial index built in %v\n", time.Since(st))
	}

	return &Network{graph: graph, index: index, cfg: cfg}, nil
}

// Graph exposes the built road graph (read-only)
func (network *Network) Graph() *Graph {
	return network.graph
}

// Index exposes the built spatial index (read-only)
func (network *Network) Index() *SpatialIndex {
	return network.index
}

// Compute is the one-shot entry point: builds the network and runs a single query
func Compute(ctx context.Context, segments []RoadSegment, origins []OriginPoint, options ...func(*Config)) (*Result, error) {
	network, err := NewNetwork(segments, options...)
	if err != nil {
		return nil, err
	}
	return network.Isochrones(ctx, origins)
}

// originOutcome is what a single worker produces for one origin
type originOutcome struct {
	isochrones []Isochrone
	sets       []*ReachableSet // per cutoff, union mode only
	warnings   []Warning
}

// Isochrones runs a full query: snap each origin, label reachability once per origin,
// read every cutoff off the labeling and trace boundary polygons. Origins are
// processed on a bounded worker pool; the shared graph and index are only read. A
// snap failure or boundary failure is recorded as a warning and the remaining output
// still completes
func (network *Network) Isochrones(ctx context.Context, origins []OriginPoint) (*Result, error) {
	cfg := network.cfg
	cutoffs, err := normalizeCutoffs(cfg.Cutoffs)
	if err != nil {
		return nil, err
	}
	if cfg.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.QueryTimeout)
		defer cancel()
	}

	boundaryBuilder := newBoundaryBuilder(cfg)
	maxCutoff := cutoffs[len(cutoffs)-1]

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(origins) && len(origins) > 0 {
		workers = len(origins)
	}

	outcomes := make([]*originOutcome, len(origins))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				outcomes[i] = network.computeOrigin(ctx, origins[i], cutoffs, maxCutoff, boundaryBuilder)
			}
		}()
	}
	for i := range origins {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	result := &Result{}
	if cfg.UnionOrigins {
		network.unionOutcomes(ctx, result, outcomes, cutoffs, boundaryBuilder)
	} else {
		for _, outcome := range outcomes {
			result.Isochrones = append(result.Isochrones, outcome.isochrones...)
			result.Warnings = append(result.Warnings, outcome.warnings...)
		}
	}

	if cfg.Projection == PROJECTION_WGS84 {
		for i := range result.Isochrones {
			result.Isochrones[i].Geom = multiPolygonToWGS84(result.Isochrones[i].Geom)
		}
	}
	return result, nil
}

// computeOrigin handles one origin end to end: snap, traverse, extract every cutoff
// and (unless the union mode postpones it) trace the boundary polygons
func (network *Network) computeOrigin(ctx context.Context, origin OriginPoint, cutoffs []float64, maxCutoff float64, boundaryBuilder BoundaryBuilder) *originOutcome {
	outcome := &originOutcome{}
	if err := ctx.Err(); err != nil {
		outcome.warnings = append(outcome.warnings, Warning{
			OriginID: origin.ID,
			Stage:    STAGE_TRAVERSAL,
			Message:  "query timed out before origin was processed",
		})
		return outcome
	}

	queryPoint := origin
	if network.cfg.Projection == PROJECTION_WGS84 {
		queryPoint.Geom = pointToEuclidean(origin.Geom)
	}

	snapped, err := network.index.Snap(queryPoint, network.cfg.SnapRadius)
	if err != nil {
		outcome.warnings = append(outcome.warnings, Warning{
			OriginID: origin.ID,
			Stage:    STAGE_SNAP,
			Message:  err.Error(),
		})
		return outcome
	}

	labels := runTraversal(network.graph, snapped, maxCutoff)
	for _, cutoff := range cutoffs {
		set := extractReachable(network.graph, snapped, labels, cutoff)
		if network.cfg.UnionOrigins {
			outcome.sets = append(outcome.sets, set)
			continue
		}
		geom, err := boundaryBuilder.Build(network.graph, set)
		if err != nil {
			boundaryErr := &BoundaryConstructionError{OriginID: origin.ID, Cutoff: cutoff, Err: err}
			outcome.warnings = append(outcome.warnings, Warning{
				OriginID: origin.ID,
				Stage:    STAGE_BOUNDARY,
				Message:  boundaryErr.Error(),
			})
			continue
		}
		outcome.isochrones = append(outcome.isochrones, Isochrone{OriginID: origin.ID, Cutoff: cutoff, Geom: geom})
	}
	return outcome
}

// unionOutcomes merges per-origin reachable sets cutoff by cutoff and traces a single
// boundary per cutoff
func (network *Network) unionOutcomes(ctx context.Context, result *Result, outcomes []*originOutcome, cutoffs []float64, boundaryBuilder BoundaryBuilder) {
	for _, outcome := range outcomes {
		result.Warnings = append(result.Warnings, outcome.warnings...)
	}
	for ci, cutoff := range cutoffs {
		var sets []*ReachableSet
		for _, outcome := range outcomes {
			if ci < len(outcome.sets) {
				sets = append(sets, outcome.sets[ci])
			}
		}
		if len(sets) == 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			result.Warnings = append(result.Warnings, Warning{
				OriginID: "union",
				Stage:    STAGE_BOUNDARY,
				Message:  fmt.Sprintf("query timed out before cutoff %.1f boundary was traced", cutoff),
			})
			continue
		}
		merged := mergeReachableSets(sets)
		geom, err := boundaryBuilder.Build(network.graph, merged)
		if err != nil {
			boundaryErr := &BoundaryConstructionError{OriginID: merged.OriginID, Cutoff: cutoff, Err: err}
			result.Warnings = append(result.Warnings, Warning{
				OriginID: merged.OriginID,
				Stage:    STAGE_BOUNDARY,
				Message:  boundaryErr.Error(),
			})
			continue
		}
		result.Isochrones = append(result.Isochrones, Isochrone{OriginID: merged.OriginID, Cutoff: cutoff, Geom: geom})
	}
}

func normalizeCutoffs(cutoffs []float64) ([]float64, error) {
	if len(cutoffs) == 0 {
		return nil, errors.New("at least one cost cutoff is required")
	}
	normalized := make([]float64, 0, len(cutoffs))
	for _, cutoff := range cutoffs {
		if cutoff < 0 {
			return nil, errors.Errorf("cutoff %f is negative", cutoff)
		}
		normalized = append(normalized, cutoff)
	}
	sort.Float64s(normalized)
	deduped := normalized[:1]
	for _, cutoff := range normalized[1:] {
		if cutoff != deduped[len(deduped)-1] {
			deduped = append(deduped, cutoff)
		}
	}
	return deduped, nil
}
