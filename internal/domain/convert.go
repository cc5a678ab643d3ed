package domain

import (
	"fmt"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// areaTagKeys are tag keys whose presence marks a closed way as an area.
var areaTagKeys = map[string]struct{}{
	"building":     {},
	"landuse":      {},
	"natural":      {},
	"leisure":      {},
	"amenity":      {},
	"shop":         {},
	"boundary":     {},
	"historic":     {},
	"place":        {},
	"area:highway": {},
	"craft":        {},
	"office":       {},
	"tourism":      {},
	"aeroway":      {},
}

// areaTagValues are specific tag=value pairs with area semantics whose keys
// alone do not imply an area.
var areaTagValues = map[[2]string]struct{}{
	{"highway", "rest_area"}:  {},
	{"highway", "services"}:   {},
	{"leisure", "track"}:      {},
	{"natural", "water"}:      {},
	{"waterway", "riverbank"}: {},
	{"waterway", "dock"}:      {},
	{"waterway", "boatyard"}:  {},
}

// isArea reports whether a closed way with these tags should be rendered as
// a Polygon rather than a LineString. An explicit area tag overrides the
// key and key=value heuristics.
func isArea(tags map[string]string) bool {
	if len(tags) == 0 {
		return false
	}
	switch tags["area"] {
	case "yes":
		return true
	case "no":
		return false
	}
	for key := range tags {
		if _, ok := areaTagKeys[key]; ok {
			return true
		}
	}
	for key, value := range tags {
		if _, ok := areaTagValues[[2]string{key, value}]; ok {
			return true
		}
	}
	return false
}

// lineFromGeometry converts an Overpass geometry array to a GeoJSON-ordered
// coordinate sequence, dropping null entries.
func lineFromGeometry(pts []*LatLon) orb.LineString {
	line := make(orb.LineString, 0, len(pts))
	for _, pt := range pts {
		if pt == nil {
			continue
		}
		line = append(line, orb.Point{pt.Lon, pt.Lat})
	}
	return line
}

// isClosed reports whether a coordinate sequence forms a closed ring.
// Three points plus the closing duplicate is the minimum valid ring.
func isClosed(line orb.LineString) bool {
	if len(line) < 4 {
		return false
	}
	return line[0] == line[len(line)-1]
}

// reversed returns a reversed copy of the line.
func reversed(line orb.LineString) orb.LineString {
	out := make(orb.LineString, len(line))
	for i, pt := range line {
		out[len(line)-1-i] = pt
	}
	return out
}

// mergeWaysIntoRings stitches way segments into closed rings by matching
// endpoints in either orientation. Segments that cannot be closed are
// returned separately as open chains.
func mergeWaysIntoRings(ways []orb.LineString) (rings []orb.Ring, unclosed []orb.LineString) {
	var remaining []orb.LineString
	for _, w := range ways {
		if len(w) >= 2 {
			remaining = append(remaining, w)
		}
	}

	for len(remaining) > 0 {
		current := remaining[0]
		remaining = remaining[1:]

		for attached := true; attached; {
			attached = false
			for i, candidate := range remaining {
				var merged orb.LineString
				switch {
				case current[len(current)-1] == candidate[0]:
					merged = append(current, candidate[1:]...)
				case current[len(current)-1] == candidate[len(candidate)-1]:
					merged = append(current, reversed(candidate)[1:]...)
				case current[0] == candidate[len(candidate)-1]:
					merged = append(candidate, current[1:]...)
				case current[0] == candidate[0]:
					merged = append(reversed(candidate), current[1:]...)
				default:
					continue
				}
				current = merged
				remaining = append(remaining[:i], remaining[i+1:]...)
				attached = true
				break
			}
		}

		if isClosed(current) {
			rings = append(rings, orb.Ring(current))
		} else {
			unclosed = append(unclosed, current)
		}
	}
	return rings, unclosed
}

// buildMultiPolygon assembles relation members into a Polygon or MultiPolygon.
// Inner rings are assigned to the outer ring containing their centroid, with
// the first outer as fallback. When no outer ring closes, the open chains are
// returned as LineString/MultiLineString so partial data still renders.
// Returns nil when the members carry no usable geometry.
func buildMultiPolygon(members []Member) orb.Geometry {
	var outerWays, innerWays []orb.LineString
	for _, m := range members {
		if m.Type != "way" || len(m.Geometry) == 0 {
			continue
		}
		line := lineFromGeometry(m.Geometry)
		if len(line) < 2 {
			continue
		}
		if m.Role == "inner" {
			innerWays = append(innerWays, line)
		} else {
			outerWays = append(outerWays, line)
		}
	}

	outerRings, outerUnclosed := mergeWaysIntoRings(outerWays)
	innerRings, _ := mergeWaysIntoRings(innerWays)

	if len(outerRings) == 0 {
		switch len(outerUnclosed) {
		case 0:
			return nil
		case 1:
			return outerUnclosed[0]
		default:
			return orb.MultiLineString(outerUnclosed)
		}
	}

	polygons := make(orb.MultiPolygon, len(outerRings))
	for i, ring := range outerRings {
		polygons[i] = orb.Polygon{ring}
	}

	for _, inner := range innerRings {
		centroid, _ := planar.CentroidArea(inner)
		assigned := false
		for i := range polygons {
			if planar.RingContains(polygons[i][0], centroid) {
				polygons[i] = append(polygons[i], inner)
				assigned = true
				break
			}
		}
		if !assigned {
			polygons[0] = append(polygons[0], inner)
		}
	}

	if len(polygons) == 1 {
		return polygons[0]
	}
	return polygons
}

// wayGeometry maps a way element to its geometry: a Polygon for closed
// area-tagged rings, a LineString otherwise, with the "out center" point as
// last resort.
func wayGeometry(e Element) orb.Geometry {
	line := lineFromGeometry(e.Geometry)
	if len(line) >= 2 {
		if isClosed(line) && isArea(e.Tags) {
			return orb.Polygon{orb.Ring(line)}
		}
		return line
	}
	if e.Center != nil {
		return orb.Point{e.Center.Lon, e.Center.Lat}
	}
	return nil
}

// relationGeometry maps a relation element to its geometry based on its
// type tag, falling back to the center point or bounds midpoint.
func relationGeometry(e Element) orb.Geometry {
	switch e.Tags["type"] {
	case "multipolygon", "boundary":
		if len(e.Members) > 0 {
			if geom := buildMultiPolygon(e.Members); geom != nil {
				return geom
			}
		}
	case "route":
		var lines []orb.LineString
		for _, m := range e.Members {
			// Node members (stops, platforms) carry no route geometry.
			if m.Type != "way" || len(m.Geometry) == 0 {
				continue
			}
			line := lineFromGeometry(m.Geometry)
			if len(line) >= 2 {
				lines = append(lines, line)
			}
		}
		switch len(lines) {
		case 0:
		case 1:
			return lines[0]
		default:
			return orb.MultiLineString(lines)
		}
	}

	if e.Center != nil {
		return orb.Point{e.Center.Lon, e.Center.Lat}
	}
	if e.Bounds != nil {
		return orb.Point{
			(e.Bounds.MinLon + e.Bounds.MaxLon) / 2,
			(e.Bounds.MinLat + e.Bounds.MaxLat) / 2,
		}
	}
	return nil
}

// FeatureFromElement converts one OSM element to a GeoJSON Feature.
// Returns nil when the element has no usable geometry.
func FeatureFromElement(e Element) *geojson.Feature {
	var geom orb.Geometry
	switch e.Type {
	case "node":
		if e.Lat != nil && e.Lon != nil {
			geom = orb.Point{*e.Lon, *e.Lat}
		}
	case "way":
		geom = wayGeometry(e)
	case "relation":
		geom = relationGeometry(e)
	}
	if geom == nil {
		return nil
	}

	f := geojson.NewFeature(geom)
	for k, v := range e.Tags {
		f.Properties[k] = v
	}
	f.Properties["@id"] = fmt.Sprintf("%s/%d", e.Type, e.ID)
	f.Properties["@type"] = e.Type
	return f
}

// typeRank orders features node < way < relation in the output artifact.
func typeRank(elementType string) int {
	switch elementType {
	case "node":
		return 0
	case "way":
		return 1
	case "relation":
		return 2
	default:
		return 9
	}
}

// Convert turns Overpass elements into a FeatureCollection in canonical
// order (node < way < relation, then OSM id) so successive artifacts diff
// cleanly. The second return value is the number of elements skipped for
// lacking usable geometry.
func Convert(elements []Element) (*geojson.FeatureCollection, int) {
	ordered := make([]Element, len(elements))
	copy(ordered, elements)
	sort.SliceStable(ordered, func(i, j int) bool {
		if a, b := typeRank(ordered[i].Type), typeRank(ordered[j].Type); a != b {
			return a < b
		}
		return ordered[i].ID < ordered[j].ID
	})

	fc := geojson.NewFeatureCollection()
	skipped := 0
	for _, e := range ordered {
		f := FeatureFromElement(e)
		if f == nil {
			skipped++
			continue
		}
		fc.Append(f)
	}
	return fc, skipped
}
