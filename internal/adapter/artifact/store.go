// Package artifact persists the GeoJSON FeatureCollection that each run
// either replaces atomically or leaves untouched.
package artifact

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/paulmach/orb/geojson"
)

// Store manages the single committed artifact file.
// It implements pipeline.Artifact.
type Store struct {
	path   string
	logger *slog.Logger
}

// NewStore creates a Store for the artifact at path.
func NewStore(path string, logger *slog.Logger) *Store {
	return &Store{path: path, logger: logger}
}

// Path returns the artifact file path.
func (s *Store) Path() string { return s.path }

// PreviousCount returns the feature count of the committed artifact. ok is
// false when the file is missing or unparseable, in which case the caller
// skips the drop check rather than blocking a first or recovery run.
func (s *Store) PreviousCount() (count int, ok bool) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("could not read previous artifact, skipping drop check", "path", s.path, "error", err)
		}
		return 0, false
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		s.logger.Warn("could not parse previous artifact, skipping drop check", "path", s.path, "error", err)
		return 0, false
	}
	return len(fc.Features), true
}

// Replace atomically overwrites the artifact with the given collection:
// marshal, write to a temp file in the same directory, fsync, rename. Any
// failure leaves the previous artifact byte-identical.
func (s *Store) Replace(fc *geojson.FeatureCollection) error {
	data, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal feature collection: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	tmpName := tmp.Name()

	if err := writeAndClose(tmp, data); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write temp artifact: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp artifact: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace artifact: %w", err)
	}

	s.logger.Info("artifact replaced", "path", s.path, "features", len(fc.Features), "bytes", len(data))
	return nil
}

func writeAndClose(f *os.File, data []byte) error {
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
