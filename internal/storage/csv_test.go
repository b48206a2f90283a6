package storage

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/psivak/filmwiki/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func sampleRows() []types.Row {
	return []types.Row{
		{
			Title:       "Film A",
			IMDbID:      types.StringPtr("tt123"),
			Year:        types.IntPtr(2005),
			Summary:     types.StringPtr("A Hindi-language drama."),
			People:      types.StringPtr("X; Y"),
			Decade:      types.IntPtr(2000),
			PeopleCount: 2,
			HasSummary:  true,
			Language:    types.StringPtr("Hindi"),
		},
		{Title: "Film B"},
	}
}

func TestCSVExportAndReadBack(t *testing.T) {
	dir := t.TempDir()
	e, err := NewCSVExporter(dir, testLogger)
	if err != nil {
		t.Fatalf("NewCSVExporter: %v", err)
	}

	group := "Indian films by genre"
	if err := e.Export(context.Background(), group, sampleRows()); err != nil {
		t.Fatalf("Export: %v", err)
	}

	path := e.GroupPath(group)
	if filepath.Base(path) != "indian_films_indian_films_by_genre.csv" {
		t.Errorf("unexpected output name: %s", path)
	}

	rows, err := ReadCSV(path)
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}

	a := rows[0]
	if a.Title != "Film A" {
		t.Errorf("title = %q", a.Title)
	}
	if a.IMDbID == nil || *a.IMDbID != "tt123" {
		t.Errorf("imdb_id = %v", a.IMDbID)
	}
	if a.Year == nil || *a.Year != 2005 {
		t.Errorf("year = %v", a.Year)
	}
	if a.People == nil || *a.People != "X; Y" {
		t.Errorf("people = %v", a.People)
	}

	b := rows[1]
	if b.IMDbID != nil || b.Year != nil || b.Summary != nil || b.People != nil {
		t.Errorf("empty fields should read back as nil: %+v", b)
	}
}

func TestWriteReport(t *testing.T) {
	dir := t.TempDir()
	report := &types.QualityReport{
		TotalRows:       2,
		NullCounts:      map[string]int{"imdb_id": 1},
		NullPercentages: map[string]float64{"imdb_id": 50},
		DecadeHistogram: map[int]int{2000: 1},
	}

	path, err := WriteReport(dir, "Indian films by genre", report)
	if err != nil {
		t.Fatalf("WriteReport: %v", err)
	}
	if filepath.Base(path) != "quality_report_indian_films_by_genre.json" {
		t.Errorf("unexpected report name: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	var got types.QualityReport
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal report: %v", err)
	}
	if got.TotalRows != 2 || got.NullCounts["imdb_id"] != 1 {
		t.Errorf("round-trip mismatch: %+v", got)
	}
}
