package pipeline

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/psivak/filmwiki/internal/clean"
	"github.com/psivak/filmwiki/internal/storage"
)

// CleanOnly re-runs cleaning and enrichment over already-produced CSV
// files, rewriting each in place and regenerating its quality report. No
// network calls are made.
func (p *Pipeline) CleanOnly(ctx context.Context) error {
	pattern := filepath.Join(p.cfg.Storage.OutputDir, "indian_films_*.csv")
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		p.logger.Warn("no output files to clean", "pattern", pattern)
		return nil
	}

	exporter, err := storage.NewCSVExporter(p.cfg.Storage.OutputDir, p.logger)
	if err != nil {
		return err
	}

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		group := groupFromPath(path)
		p.logger.Info("cleaning existing file", "path", path, "group", group)

		rows, err := storage.ReadCSV(path)
		if err != nil {
			p.logger.Error("read failed, skipping file", "path", path, "error", err)
			continue
		}

		rows = clean.Clean(rows)
		clean.Enrich(rows)

		reportPath, err := storage.WriteReport(p.cfg.Storage.ReportsDir, group, clean.Report(rows))
		if err != nil {
			return err
		}
		p.logger.Info("quality report written", "group", group, "path", reportPath)

		if err := exporter.Export(ctx, group, rows); err != nil {
			return err
		}
		p.logger.Info("cleaned rows written", "path", path, "rows", len(rows))
	}
	return nil
}

// groupFromPath recovers the group slug from an output file name.
func groupFromPath(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), ".csv")
	return strings.TrimPrefix(name, "indian_films_")
}
