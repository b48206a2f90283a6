package storage

import (
	"context"
	"database/sql"
	"log/slog"

	_ "github.com/mattn/go-sqlite3"

	"github.com/psivak/filmwiki/internal/types"
)

// SQLiteExporter writes assembled rows into a SQLite database, one table
// shared across groups with a group_name column.
type SQLiteExporter struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteExporter opens (or creates) the database at dbPath.
func NewSQLiteExporter(dbPath string, logger *slog.Logger) (*SQLiteExporter, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, &types.StorageError{Backend: "sqlite", Err: err}
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS films (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			group_name TEXT NOT NULL,
			title TEXT NOT NULL,
			imdb_id TEXT,
			year INTEGER,
			summary TEXT,
			people TEXT,
			decade INTEGER,
			people_count INTEGER NOT NULL DEFAULT 0,
			has_summary BOOLEAN NOT NULL DEFAULT 0,
			language TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		db.Close()
		return nil, &types.StorageError{Backend: "sqlite", Err: err}
	}

	return &SQLiteExporter{db: db, logger: logger.With("component", "sqlite_exporter")}, nil
}

func (e *SQLiteExporter) Name() string { return "sqlite" }

func (e *SQLiteExporter) Export(ctx context.Context, group string, rows []types.Row) error {
	// Re-runs replace the group's rows wholesale.
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return &types.StorageError{Backend: "sqlite", Err: err}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM films WHERE group_name = ?`, group); err != nil {
		tx.Rollback()
		return &types.StorageError{Backend: "sqlite", Err: err}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO films (group_name, title, imdb_id, year, summary, people,
		                   decade, people_count, has_summary, language)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return &types.StorageError{Backend: "sqlite", Err: err}
	}
	defer stmt.Close()

	for _, row := range rows {
		_, err := stmt.ExecContext(ctx, group, row.Title, row.IMDbID, row.Year,
			row.Summary, row.People, row.Decade, row.PeopleCount,
			row.HasSummary, row.Language)
		if err != nil {
			tx.Rollback()
			return &types.StorageError{Backend: "sqlite", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &types.StorageError{Backend: "sqlite", Err: err}
	}

	e.logger.Info("sqlite written", "group", group, "rows", len(rows))
	return nil
}

func (e *SQLiteExporter) Close() error {
	return e.db.Close()
}
