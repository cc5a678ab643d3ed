// Command validate performs offline integrity checks on a committed GeoJSON
// artifact (and optionally the query file that produces it): structure,
// property conventions, canonical ordering, and duplicate detection.
//
// Usage:
//
//	go run ./cmd/validate -artifact data.geojson [-query query.overpassql]
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/paulmach/orb/geojson"

	"github.com/tap-in-osm/overpass-etl/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	artifactPath := flag.String("artifact", "", "path to the GeoJSON artifact")
	queryPath := flag.String("query", "", "optional path to the Overpass QL query file")
	flag.Parse()

	if *artifactPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*artifactPath, *queryPath); code != 0 {
		os.Exit(code)
	}
}

func run(artifactPath, queryPath string) int {
	fmt.Println("=== Artifact Integrity Validation ===")
	fmt.Println()

	data, err := os.ReadFile(artifactPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: read artifact: %v\n", err)
		return 1
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: parse artifact: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateProperties(fc),
		validateGeometries(fc),
		validateOrdering(fc),
		validateUniqueness(fc),
	}
	if queryPath != "" {
		phases = append(phases, validateQuery(queryPath))
	}

	allPassed := true
	for _, p := range phases {
		status := "PASS"
		if !p.passed() {
			status = fmt.Sprintf("FAIL (%d errors)", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-36s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Features: %d\n", len(fc.Features))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// featureKey extracts (@type, numeric id) from a feature's properties.
func featureKey(f *geojson.Feature) (string, int64, error) {
	id, _ := f.Properties["@id"].(string)
	elemType, _ := f.Properties["@type"].(string)
	if id == "" || elemType == "" {
		return "", 0, fmt.Errorf("missing @id or @type")
	}
	prefix, numStr, found := strings.Cut(id, "/")
	if !found || prefix != elemType {
		return "", 0, fmt.Errorf("@id %q does not match @type %q", id, elemType)
	}
	num, err := strconv.ParseInt(numStr, 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("@id %q has non-numeric id", id)
	}
	return elemType, num, nil
}

func validateProperties(fc *geojson.FeatureCollection) *phase {
	p := &phase{name: "property conventions"}
	for i, f := range fc.Features {
		if _, _, err := featureKey(f); err != nil {
			p.errorf("feature %d: %v", i, err)
		}
	}
	return p
}

func validateGeometries(fc *geojson.FeatureCollection) *phase {
	p := &phase{name: "geometry presence"}
	for i, f := range fc.Features {
		if f.Geometry == nil {
			p.errorf("feature %d: nil geometry", i)
		}
	}
	return p
}

func validateOrdering(fc *geojson.FeatureCollection) *phase {
	p := &phase{name: "canonical ordering"}

	rank := func(t string) int {
		switch t {
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

	prevRank, prevID := -1, int64(-1)
	for i, f := range fc.Features {
		elemType, id, err := featureKey(f)
		if err != nil {
			continue // reported by the properties phase
		}
		r := rank(elemType)
		if r < prevRank || (r == prevRank && id < prevID) {
			p.errorf("feature %d (%s/%d) out of order", i, elemType, id)
		}
		prevRank, prevID = r, id
	}
	return p
}

func validateUniqueness(fc *geojson.FeatureCollection) *phase {
	p := &phase{name: "unique ids"}
	seen := make(map[string]int, len(fc.Features))
	for i, f := range fc.Features {
		id, _ := f.Properties["@id"].(string)
		if id == "" {
			continue
		}
		if first, ok := seen[id]; ok {
			p.errorf("feature %d duplicates @id %q (first at %d)", i, id, first)
			continue
		}
		seen[id] = i
	}
	return p
}

func validateQuery(path string) *phase {
	p := &phase{name: "query file"}
	data, err := os.ReadFile(path)
	if err != nil {
		p.errorf("read query: %v", err)
		return p
	}
	query := domain.Query(strings.TrimSpace(string(data)))
	if err := query.Validate(); err != nil {
		p.errorf("%v", err)
	}
	if !query.HasTimeout() {
		p.errorf("query does not declare [timeout:...]")
	}
	return p
}
