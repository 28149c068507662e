package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/LdDl/isochrones"
	geojson "github.com/paulmach/go.geojson"
	"go.uber.org/zap"
)

var (
	roadsFile  = flag.String("roads", "", "GeoJSON file with road LineString/MultiLineString features")
	osmFile    = flag.String("osm", "", "*.osm / *.pbf file with road network (alternative to -roads)")
	tagStr     = flag.String("tags", "", "Set of needed OSM 'highway' tags (separated by commas); empty means sane defaults")
	pointsFile = flag.String("points", "points.geojson", "GeoJSON file with origin Point features")
	cutoffsStr = flag.String("cutoffs", "500,1000", "Cost cutoffs (separated by commas). Meters for cost_type=distance, seconds for cost_type=time")
	costType   = flag.String("cost_type", "distance", "Cost model. Expected values: distance / time")
	mode       = flag.String("mode", "buffer", "Boundary mode. Expected values: buffer / concave")
	margin     = flag.Float64("margin", 50.0, "Buffer margin (meters)")
	concavity  = flag.Float64("concavity", 0.3, "Concavity in [0;1] for concave mode. Larger values approach a convex hull")
	union      = flag.Bool("union", false, "Union all origins into a single isochrone per cutoff")
	snapRadius = flag.Float64("snap_radius", 0, "Maximum snap distance from origin to the road network (meters). 0 means unlimited")
	timeout    = flag.Duration("timeout", 0, "Per-query timeout. Expired queries return already-completed origins. 0 means no timeout")
	workers    = flag.Int("workers", 0, "Worker pool size. 0 means number of CPU cores")
	speed      = flag.Float64("speed", 40.0, "Default speed (km/h) for segments without a speed attribute (cost_type=time)")
	planar     = flag.Bool("planar", false, "Input coordinates are already in a metric planar CRS")
	out        = flag.String("out", "isochrones.geojson", "Output GeoJSON file")
)

func main() {
	flag.Parse()

	log, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	cutoffs, err := parseCutoffs(*cutoffsStr)
	if err != nil {
		log.Fatal("bad cutoffs", zap.Error(err))
	}

	segments, err := loadRoads(log)
	if err != nil {
		log.Fatal("failed to load roads", zap.Error(err))
	}
	log.Info("roads loaded", zap.Int("segments", len(segments)))

	origins, err := loadOrigins()
	if err != nil {
		log.Fatal("failed to load origin points", zap.Error(err))
	}
	log.Info("origin points loaded", zap.Int("points", len(origins)))

	options := []func(*isochrones.Config){
		isochrones.WithCutoffs(cutoffs...),
		isochrones.WithBufferMargin(*margin),
		isochrones.WithConcavity(*concavity),
		isochrones.WithUnionOrigins(*union),
		isochrones.WithSnapRadius(*snapRadius),
		isochrones.WithQueryTimeout(*timeout),
		isochrones.WithWorkers(*workers),
		isochrones.WithDefaultSpeed(*speed),
	}
	switch *costType {
	case "distance":
		options = append(options, isochrones.WithCostModel(isochrones.COST_DISTANCE))
	case "time":
		options = append(options, isochrones.WithCostModel(isochrones.COST_TIME))
	default:
		log.Fatal("bad cost_type", zap.String("cost_type", *costType))
	}
	switch *mode {
	case "buffer":
		options = append(options, isochrones.WithBoundaryMode(isochrones.BOUNDARY_BUFFER))
	case "concave":
		options = append(options, isochrones.WithBoundaryMode(isochrones.BOUNDARY_CONCAVE))
	default:
		log.Fatal("bad boundary mode", zap.String("mode", *mode))
	}
	if *planar {
		options = append(options, isochrones.WithProjection(isochrones.PROJECTION_PLANAR))
	}

	st := time.Now()
	result, err := isochrones.Compute(context.Background(), segments, origins, options...)
	if err != nil {
		log.Fatal("computation failed", zap.Error(err))
	}
	log.Info("computation finished",
		zap.Duration("elapsed", time.Since(st)),
		zap.Int("isochrones", len(result.Isochrones)),
		zap.Int("warnings", len(result.Warnings)),
	)
	for _, warning := range result.Warnings {
		log.Warn("partial result",
			zap.String("origin", warning.OriginID),
			zap.String("stage", warning.Stage.String()),
			zap.String("message", warning.Message),
		)
	}

	data, err := result.ToGeoJSON().MarshalJSON()
	if err != nil {
		log.Fatal("failed to encode output", zap.Error(err))
	}
	if err := os.WriteFile(*out, data, 0644); err != nil {
		log.Fatal("failed to write output", zap.Error(err))
	}
	log.Info("output written", zap.String("file", *out))
}

func parseCutoffs(raw string) ([]float64, error) {
	parts := strings.Split(raw, ",")
	cutoffs := make([]float64, 0, len(parts))
	for _, part := range parts {
		value, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, err
		}
		cutoffs = append(cutoffs, value)
	}
	return cutoffs, nil
}

func loadRoads(log *zap.Logger) ([]isochrones.RoadSegment, error) {
	if *osmFile != "" {
		var cfg *isochrones.OSMRoadConfig
		if *tagStr != "" {
			cfg = &isochrones.OSMRoadConfig{Tags: strings.Split(*tagStr, ",")}
		}
		log.Info("importing road network from OSM", zap.String("file", *osmFile))
		return isochrones.ImportRoadsFromOSM(*osmFile, cfg, false)
	}
	if *roadsFile == "" {
		return nil, fmt.Errorf("either -roads or -osm must be provided")
	}
	fc, err := readFeatureCollection(*roadsFile)
	if err != nil {
		return nil, err
	}
	return isochrones.RoadSegmentsFromGeoJSON(fc)
}

func loadOrigins() ([]isochrones.OriginPoint, error) {
	fc, err := readFeatureCollection(*pointsFile)
	if err != nil {
		return nil, err
	}
	return isochrones.OriginsFromGeoJSON(fc)
}

func readFeatureCollection(filename string) (*geojson.FeatureCollection, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return geojson.UnmarshalFeatureCollection(data)
}
