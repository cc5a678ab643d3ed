package domain

import "time"

// LatLon is a single coordinate in an Overpass inline geometry array.
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Center is the approximate center returned by "out center".
type Center struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Bounds is the bounding box Overpass attaches to ways and relations.
type Bounds struct {
	MinLat float64 `json:"minlat"`
	MinLon float64 `json:"minlon"`
	MaxLat float64 `json:"maxlat"`
	MaxLon float64 `json:"maxlon"`
}

// Member is a relation member. Geometry entries can be null when a member
// way is only partially inside the queried area, hence the pointer slice.
type Member struct {
	Type     string    `json:"type"`
	Ref      int64     `json:"ref"`
	Role     string    `json:"role"`
	Geometry []*LatLon `json:"geometry,omitempty"`
}

// Element is a single OSM element from an Overpass JSON response.
// Lat/Lon are pointers so a node at (0,0) is distinguishable from a way,
// which has no coordinates of its own.
type Element struct {
	Type     string            `json:"type"`
	ID       int64             `json:"id"`
	Lat      *float64          `json:"lat,omitempty"`
	Lon      *float64          `json:"lon,omitempty"`
	Center   *Center           `json:"center,omitempty"`
	Bounds   *Bounds           `json:"bounds,omitempty"`
	Tags     map[string]string `json:"tags,omitempty"`
	Nodes    []int64           `json:"nodes,omitempty"`
	Geometry []*LatLon         `json:"geometry,omitempty"`
	Members  []Member          `json:"members,omitempty"`
}

// Meta is the osm3s metadata block of an Overpass response.
type Meta struct {
	TimestampOSMBase string `json:"timestamp_osm_base"`
	Copyright        string `json:"copyright,omitempty"`
}

// Response is a parsed Overpass API response.
type Response struct {
	Version   float64   `json:"version"`
	Generator string    `json:"generator"`
	OSM3S     Meta      `json:"osm3s"`
	Remark    string    `json:"remark,omitempty"`
	Elements  []Element `json:"elements"`
}

// DataTimestamp parses osm3s.timestamp_osm_base. ok is false when the
// timestamp is missing or unparseable, in which case the response is treated
// as fresh.
func (r *Response) DataTimestamp() (ts time.Time, ok bool) {
	if r.OSM3S.TimestampOSMBase == "" {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339, r.OSM3S.TimestampOSMBase)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}
