// Package storage writes assembled tables to output sinks: CSV files
// (default), a SQLite database, or a MongoDB collection, plus the per-group
// JSON quality report.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/psivak/filmwiki/internal/checkpoint"
	"github.com/psivak/filmwiki/internal/config"
	"github.com/psivak/filmwiki/internal/types"
)

// Columns is the fixed output column order.
var Columns = []string{
	"title", "imdb_id", "year", "summary", "people",
	"decade", "people_count", "has_summary", "language",
}

// Exporter persists the assembled rows for one category group.
type Exporter interface {
	// Export writes all rows for a group.
	Export(ctx context.Context, group string, rows []types.Row) error

	// Close flushes pending writes and releases resources.
	Close() error

	// Name returns the sink identifier.
	Name() string
}

// NewExporter creates the sink selected by config.
func NewExporter(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Exporter, error) {
	switch cfg.Storage.Type {
	case "csv":
		return NewCSVExporter(cfg.Storage.OutputDir, logger)
	case "sqlite":
		return NewSQLiteExporter(cfg.Storage.SQLitePath, logger)
	case "mongodb":
		return NewMongoExporter(ctx, cfg.Storage.MongoURI, cfg.Storage.MongoDB, logger)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}
}

// WriteReport writes the quality report for a group as an indented JSON
// file under dir.
func WriteReport(dir, group string, report *types.QualityReport) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create reports dir: %w", err)
	}
	path := filepath.Join(dir, "quality_report_"+checkpoint.Slugify(group)+".json")

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create report file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}
	return path, nil
}
