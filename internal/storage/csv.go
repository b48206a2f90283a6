package storage

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/psivak/filmwiki/internal/checkpoint"
	"github.com/psivak/filmwiki/internal/types"
)

// CSVExporter writes one delimited file per category group.
type CSVExporter struct {
	dir    string
	logger *slog.Logger
}

// NewCSVExporter creates a CSV exporter writing under dir.
func NewCSVExporter(dir string, logger *slog.Logger) (*CSVExporter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &CSVExporter{dir: dir, logger: logger.With("component", "csv_exporter")}, nil
}

func (e *CSVExporter) Name() string { return "csv" }

// GroupPath returns the output file path for a group.
func (e *CSVExporter) GroupPath(group string) string {
	return filepath.Join(e.dir, "indian_films_"+checkpoint.Slugify(group)+".csv")
}

func (e *CSVExporter) Export(_ context.Context, group string, rows []types.Row) error {
	path := e.GroupPath(group)
	f, err := os.Create(path)
	if err != nil {
		return &types.StorageError{Backend: "csv", Err: err}
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(Columns); err != nil {
		return &types.StorageError{Backend: "csv", Err: fmt.Errorf("write header: %w", err)}
	}
	for _, row := range rows {
		if err := w.Write(recordFromRow(row)); err != nil {
			return &types.StorageError{Backend: "csv", Err: fmt.Errorf("write row: %w", err)}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return &types.StorageError{Backend: "csv", Err: err}
	}

	e.logger.Info("csv written", "path", path, "rows", len(rows))
	return nil
}

func (e *CSVExporter) Close() error { return nil }

func recordFromRow(row types.Row) []string {
	return []string{
		row.Title,
		strDeref(row.IMDbID),
		intDeref(row.Year),
		strDeref(row.Summary),
		strDeref(row.People),
		intDeref(row.Decade),
		strconv.Itoa(row.PeopleCount),
		strconv.FormatBool(row.HasSummary),
		strDeref(row.Language),
	}
}

// ReadCSV loads a previously written group file back into rows. Only the
// source columns matter to the caller; derived columns are recomputed by
// the cleaning stage.
func ReadCSV(path string) ([]types.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	col := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		col[name] = i
	}

	rows := make([]types.Row, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := types.Row{
			Title:   field(rec, col, "title"),
			IMDbID:  strPtrField(rec, col, "imdb_id"),
			Summary: strPtrField(rec, col, "summary"),
			People:  strPtrField(rec, col, "people"),
		}
		if y := field(rec, col, "year"); y != "" {
			if year, err := strconv.Atoi(y); err == nil {
				row.Year = &year
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func field(rec []string, col map[string]int, name string) string {
	i, ok := col[name]
	if !ok || i >= len(rec) {
		return ""
	}
	return rec[i]
}

func strPtrField(rec []string, col map[string]int, name string) *string {
	if v := field(rec, col, name); v != "" {
		return &v
	}
	return nil
}

func strDeref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func intDeref(i *int) string {
	if i == nil {
		return ""
	}
	return strconv.Itoa(*i)
}
