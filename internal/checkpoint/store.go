// Package checkpoint persists per-stage artifacts as JSON files. The
// existence of an artifact is the resumability signal: a stage whose
// artifact is on disk is skipped entirely on re-run.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Store reads and writes stage artifacts under a single directory.
type Store struct {
	dir    string
	logger *slog.Logger
}

// NewStore creates a Store rooted at dir, creating it if needed.
func NewStore(dir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create checkpoint dir: %w", err)
	}
	return &Store{dir: dir, logger: logger.With("component", "checkpoint")}, nil
}

// ArtifactName builds the artifact name for a stage, optionally scoped to a
// group: "<stage>.json" or "<stage>_<slug>.json".
func ArtifactName(stage, group string) string {
	if group == "" {
		return stage + ".json"
	}
	return stage + "_" + Slugify(group) + ".json"
}

// Has reports whether the named artifact exists.
func (s *Store) Has(name string) bool {
	_, err := os.Stat(filepath.Join(s.dir, name))
	return err == nil
}

// Load decodes the named artifact into v.
func (s *Store) Load(name string, v any) error {
	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		return fmt.Errorf("open checkpoint %s: %w", name, err)
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(v); err != nil {
		return fmt.Errorf("decode checkpoint %s: %w", name, err)
	}
	s.logger.Info("checkpoint loaded", "artifact", name)
	return nil
}

// Save writes v as the named artifact. The write is atomic: a temp file is
// renamed into place so an interrupted run never leaves a partial artifact.
func (s *Store) Save(name string, v any) error {
	tmpPath := filepath.Join(s.dir, name+".tmp")
	finalPath := filepath.Join(s.dir, name)

	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create checkpoint file: %w", err)
	}

	if err := json.NewEncoder(f).Encode(v); err != nil {
		f.Close()
		return fmt.Errorf("encode checkpoint %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close checkpoint file: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		return fmt.Errorf("rename checkpoint file: %w", err)
	}

	s.logger.Info("checkpoint saved", "artifact", name)
	return nil
}

// Clean removes the named artifact if present.
func (s *Store) Clean(name string) error {
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

var slugPattern = regexp.MustCompile(`[^A-Za-z0-9]+`)

// Slugify converts "My Cool Name" to "my_cool_name" for use in artifact
// and output file names.
func Slugify(text string) string {
	return strings.ToLower(strings.Trim(slugPattern.ReplaceAllString(text, "_"), "_"))
}
