package isochrones

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"github.com/paulmach/osm/osmxml"
	"github.com/pkg/errors"
)

// OSMScanner is a common interface for XML and PBF scanners
type OSMScanner interface {
	Scan() bool
	Close() error
	Err() error
	Object() osm.Object
}

// OSMRoadConfig filters OSM ways by their 'highway' tag values
type OSMRoadConfig struct {
	Tags []string
}

// CheckTag checks if incoming tag is represented in configuration
func (cfg *OSMRoadConfig) CheckTag(tag string) bool {
	for i := range cfg.Tags {
		if cfg.Tags[i] == tag {
			return true
		}
	}
	return false
}

var defaultHighwayTags = []string{
	"motorway", "motorway_link", "trunk", "trunk_link", "primary", "primary_link",
	"secondary", "secondary_link", "tertiary", "tertiary_link", "residential",
	"unclassified", "road",
}

// ImportRoadsFromOSM reads an *.osm / *.osm.pbf file and converts matching highways
// into road segments (WGS84 longitude/latitude) ready for the graph builder. The
// optional 'maxspeed' tag feeds the time-based cost model
func ImportRoadsFromOSM(filename string, cfg *OSMRoadConfig, verbose bool) ([]RoadSegment, error) {
	if cfg == nil || len(cfg.Tags) == 0 {
		cfg = &OSMRoadConfig{Tags: defaultHighwayTags}
	}

	if verbose {
		fmt.Printf("Processing ways from '%s'... ", filename)
	}
	st := time.Now()

	type wayData struct {
		id       osm.WayID
		nodes    []osm.NodeID
		speedKmh float64
	}
	ways := []wayData{}
	nodesNeeded := make(map[osm.NodeID]orb.Point)

	err := scanOSMFile(filename, func(obj osm.Object) {
		way, ok := obj.(*osm.Way)
		if !ok {
			return
		}
		if len(way.Nodes) < 2 || !cfg.CheckTag(way.Tags.Find("highway")) {
			return
		}
		prepared := wayData{id: way.ID, nodes: make([]osm.NodeID, 0, len(way.Nodes)), speedKmh: parseMaxspeed(way.Tags.Find("maxspeed"))}
		for _, wayNode := range way.Nodes {
			prepared.nodes = append(prepared.nodes, wayNode.ID)
			nodesNeeded[wayNode.ID] = orb.Point{}
		}
		ways = append(ways, prepared)
	})
	if err != nil {
		return nil, errors.Wrap(err, "Can't scan ways")
	}
	if verbose {
		fmt.Printf("Done in %v (%d ways)\n", time.Since(st), len(ways))
		fmt.Printf("Processing nodes... ")
	}
	st = time.Now()

	nodesFound := make(map[osm.NodeID]bool, len(nodesNeeded))
	err = scanOSMFile(filename, func(obj osm.Object) {
		node, ok := obj.(*osm.Node)
		if !ok {
			return
		}
		if _, needed := nodesNeeded[node.ID]; needed {
			nodesNeeded[node.ID] = orb.Point{node.Lon, node.Lat}
			nodesFound[node.ID] = true
		}
	})
	if err != nil {
		return nil, errors.Wrap(err, "Can't scan nodes")
	}
	if verbose {
		fmt.Printf("Done in %v (%d nodes)\n", time.Since(st), len(nodesFound))
	}

	segments := make([]RoadSegment, 0, len(ways))
	for _, way := range ways {
		geom := make(orb.LineString, 0, len(way.nodes))
		for _, nodeID := range way.nodes {
			if !nodesFound[nodeID] {
				continue
			}
			geom = append(geom, nodesNeeded[nodeID])
		}
		if len(geom) < 2 {
			continue
		}
		segments = append(segments, RoadSegment{
			ID:       fmt.Sprintf("osm-way-%d", way.id),
			Geom:     geom,
			SpeedKmh: way.speedKmh,
		})
	}
	if len(segments) == 0 {
		return nil, errors.Errorf("No usable highways found in '%s'", filename)
	}
	return segments, nil
}

// scanOSMFile runs one full pass over the file, guessing the scanner from the extension
func scanOSMFile(filename string, handle func(osm.Object)) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	var scanner OSMScanner
	switch ext := filepath.Ext(filename); ext {
	case ".osm", ".xml":
		scanner = osmxml.New(context.Background(), file)
	case ".pbf":
		scanner = osmpbf.New(context.Background(), file, 4)
	default:
		return errors.Errorf("File extension '%s' for file '%s' is not handled yet", ext, filename)
	}
	defer scanner.Close()

	for scanner.Scan() {
		handle(scanner.Object())
	}
	return scanner.Err()
}

// parseMaxspeed extracts the numeric part of an OSM maxspeed tag value (km/h)
func parseMaxspeed(value string) float64 {
	if value == "" {
		return 0
	}
	fields := strings.Fields(value)
	speed, err := strconv.ParseFloat(fields[0], 64)
	if err != nil || speed <= 0 {
		return 0
	}
	if len(fields) > 1 && fields[1] == "mph" {
		speed *= 1.609344
	}
	return speed
}
