// Package domain models Overpass API responses and their conversion to GeoJSON.
//
// # Data Source
//
// Data comes from the Overpass API (https://overpass-api.de), a read-only
// query service over OpenStreetMap. A run submits a user-authored Overpass QL
// query (which must declare [out:json]) and receives a JSON document with an
// osm3s metadata block and a flat list of elements: nodes, ways, and
// relations. Ways and relation members carry inline geometry when the query
// uses "out geom".
//
// # Conversion Conventions
//
// Each element maps to at most one GeoJSON Feature. Properties are the
// element's tags plus two synthetic keys, following the overpass-turbo
// convention:
//
//	"@id"   → "<type>/<id>", e.g. "way/42"
//	"@type" → "node" | "way" | "relation"
//
// Geometry mapping:
//
//	node     → Point
//	way      → LineString, or Polygon when the ring is closed and the tags
//	           indicate an area (see isArea); Point from "center" as fallback
//	relation → multipolygon/boundary: member ways stitched into rings and
//	           assembled into Polygon/MultiPolygon with hole assignment;
//	           route: member ways as LineString/MultiLineString;
//	           otherwise Point from "center" or the midpoint of "bounds"
//
// Elements without usable geometry produce no Feature and are reported as
// skipped.
//
// # Area Detection
//
// OSM has no explicit polygon type: a closed way is an area only when its
// tags say so. An explicit area=yes/no tag wins; otherwise a fixed set of tag
// keys (building, landuse, natural, ...) and tag=value pairs
// (highway=rest_area, natural=water, ...) mark the way as an area. The sets
// follow standard OSM area conventions.
//
// # Guard Checks
//
// Before the artifact is replaced, the new feature count is validated: zero
// features always fail, and a drop of more than the configured threshold
// percentage relative to the previous committed count fails. A drop exactly
// at the threshold passes. See [CheckFeatureCount].
package domain
