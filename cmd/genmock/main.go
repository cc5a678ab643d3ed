// Command genmock generates a synthetic Overpass response fixture and the
// artifact it converts to, running through the real domain code so the pair
// stays consistent with pipeline behavior. The fixtures exercise every
// geometry path: node, open and closed ways, a multipolygon with a hole,
// and a route relation.
//
// Usage:
//
//	go run ./cmd/genmock -response-out testdata/response.json -artifact-out testdata/expected.geojson
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/tap-in-osm/overpass-etl/internal/domain"
)

const mockDataTimestamp = "2026-08-20T00:00:00Z"

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	responseOut := flag.String("response-out", "", "output path for the Overpass response fixture")
	artifactOut := flag.String("artifact-out", "", "output path for the expected GeoJSON artifact")
	flag.Parse()

	if *responseOut == "" || *artifactOut == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -response-out, -artifact-out")
	}

	resp := mockResponse()

	respData, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}
	if err := os.WriteFile(*responseOut, append(respData, '\n'), 0o644); err != nil {
		return fmt.Errorf("write response fixture: %w", err)
	}

	fc, skipped := domain.Convert(resp.Elements)
	if skipped != 0 {
		return fmt.Errorf("mock elements produced %d skips, fixture must convert cleanly", skipped)
	}

	fcData, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal artifact: %w", err)
	}
	if err := os.WriteFile(*artifactOut, append(fcData, '\n'), 0o644); err != nil {
		return fmt.Errorf("write artifact fixture: %w", err)
	}

	fmt.Printf("Wrote %d elements to %s and %d features to %s\n",
		len(resp.Elements), *responseOut, len(fc.Features), *artifactOut)
	return nil
}

func mockResponse() domain.Response {
	return domain.Response{
		Version:   0.6,
		Generator: "genmock",
		OSM3S:     domain.Meta{TimestampOSMBase: mockDataTimestamp},
		Elements: []domain.Element{
			node(101, 48.8584, 2.2945, map[string]string{"amenity": "drinking_water"}),
			node(102, 48.8606, 2.3376, map[string]string{"amenity": "fountain"}),
			{
				Type: "way", ID: 201,
				Tags: map[string]string{"highway": "footpath"},
				Geometry: points(
					48.8580, 2.2940,
					48.8582, 2.2950,
					48.8585, 2.2960,
				),
			},
			{
				Type: "way", ID: 202,
				Tags: map[string]string{"building": "yes"},
				Geometry: points(
					48.8600, 2.3000,
					48.8600, 2.3010,
					48.8610, 2.3010,
					48.8610, 2.3000,
					48.8600, 2.3000,
				),
			},
			{
				Type: "relation", ID: 301,
				Tags: map[string]string{"type": "multipolygon", "natural": "water"},
				Members: []domain.Member{
					{Type: "way", Ref: 401, Role: "outer", Geometry: points(
						48.8700, 2.3100,
						48.8700, 2.3140,
						48.8740, 2.3140,
					)},
					{Type: "way", Ref: 402, Role: "outer", Geometry: points(
						48.8740, 2.3140,
						48.8740, 2.3100,
						48.8700, 2.3100,
					)},
					{Type: "way", Ref: 403, Role: "inner", Geometry: points(
						48.8710, 2.3110,
						48.8710, 2.3120,
						48.8720, 2.3120,
						48.8710, 2.3110,
					)},
				},
			},
			{
				Type: "relation", ID: 302,
				Tags: map[string]string{"type": "route", "route": "hiking"},
				Members: []domain.Member{
					{Type: "way", Ref: 404, Geometry: points(
						48.8800, 2.3200,
						48.8810, 2.3210,
					)},
					{Type: "way", Ref: 405, Geometry: points(
						48.8820, 2.3220,
						48.8830, 2.3230,
					)},
					{Type: "node", Ref: 406, Role: "stop"},
				},
			},
		},
	}
}

func node(id int64, lat, lon float64, tags map[string]string) domain.Element {
	return domain.Element{Type: "node", ID: id, Lat: &lat, Lon: &lon, Tags: tags}
}

// points builds a geometry array from alternating lat, lon values.
func points(latLon ...float64) []*domain.LatLon {
	pts := make([]*domain.LatLon, 0, len(latLon)/2)
	for i := 0; i+1 < len(latLon); i += 2 {
		pts = append(pts, &domain.LatLon{Lat: latLon[i], Lon: latLon[i+1]})
	}
	return pts
}
