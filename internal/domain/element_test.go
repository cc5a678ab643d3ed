package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponse_DataTimestamp(t *testing.T) {
	r := &Response{OSM3S: Meta{TimestampOSMBase: "2026-08-24T21:00:00Z"}}
	ts, ok := r.DataTimestamp()
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 8, 24, 21, 0, 0, 0, time.UTC), ts)
}

func TestResponse_DataTimestamp_MissingOrInvalid(t *testing.T) {
	_, ok := (&Response{}).DataTimestamp()
	assert.False(t, ok)

	_, ok = (&Response{OSM3S: Meta{TimestampOSMBase: "yesterday"}}).DataTimestamp()
	assert.False(t, ok)
}

func TestResponse_UnmarshalOverpassJSON(t *testing.T) {
	payload := `{
		"version": 0.6,
		"generator": "Overpass API 0.7.62",
		"osm3s": {"timestamp_osm_base": "2026-08-24T21:00:00Z"},
		"elements": [
			{"type": "node", "id": 1, "lat": 48.85, "lon": 2.29, "tags": {"amenity": "cafe"}},
			{"type": "way", "id": 2, "nodes": [1, 3],
			 "geometry": [{"lat": 1, "lon": 2}, null, {"lat": 3, "lon": 4}],
			 "bounds": {"minlat": 1, "minlon": 2, "maxlat": 3, "maxlon": 4}},
			{"type": "relation", "id": 3, "center": {"lat": 5, "lon": 6},
			 "members": [{"type": "way", "ref": 2, "role": "outer"}]}
		]
	}`

	var r Response
	require.NoError(t, json.Unmarshal([]byte(payload), &r))
	require.Len(t, r.Elements, 3)

	node := r.Elements[0]
	require.NotNil(t, node.Lat)
	assert.Equal(t, 48.85, *node.Lat)
	assert.Equal(t, "cafe", node.Tags["amenity"])

	way := r.Elements[1]
	assert.Nil(t, way.Lat)
	require.Len(t, way.Geometry, 3)
	assert.Nil(t, way.Geometry[1], "null geometry entries must survive parsing")
	require.NotNil(t, way.Bounds)

	rel := r.Elements[2]
	require.NotNil(t, rel.Center)
	assert.Equal(t, int64(2), rel.Members[0].Ref)
}

func TestQuery_Validate(t *testing.T) {
	assert.ErrorIs(t, Query("").Validate(), ErrEmptyQuery)
	assert.ErrorIs(t, Query("   \n\t ").Validate(), ErrEmptyQuery)
	assert.ErrorIs(t, Query(`node["amenity"];out;`).Validate(), ErrNoJSONOutput)
	assert.NoError(t, Query(`[out:json][timeout:120];node["amenity"];out geom;`).Validate())
}

func TestQuery_HasTimeout(t *testing.T) {
	assert.True(t, Query("[out:json][timeout:120];").HasTimeout())
	assert.False(t, Query("[out:json];").HasTimeout())
}
