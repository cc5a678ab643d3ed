// Package queryfile loads the user-authored Overpass QL query from disk.
package queryfile

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/tap-in-osm/overpass-etl/internal/domain"
)

// Loader reads and validates the query file.
// It implements pipeline.QuerySource.
type Loader struct {
	path   string
	logger *slog.Logger
}

// NewLoader creates a Loader for the given query file path.
func NewLoader(path string, logger *slog.Logger) *Loader {
	return &Loader{path: path, logger: logger}
}

// Load reads the query file, trims surrounding whitespace, and validates it.
func (l *Loader) Load() (domain.Query, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return "", fmt.Errorf("read query file %q: %w", l.path, err)
	}

	query := domain.Query(strings.TrimSpace(string(data)))
	if err := query.Validate(); err != nil {
		return "", fmt.Errorf("query file %q: %w", l.path, err)
	}
	if !query.HasTimeout() {
		l.logger.Warn("query does not declare [timeout:...]; the server default applies", "path", l.path)
	}
	return query, nil
}
