package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"nota/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository stores the collection in an embedded SQLite table. Unlike
// the flat file it persists record identifiers across restarts.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single writer keeps SaveAll serialized with LoadAll.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// LoadAll implements Store.
func (r *SQLiteRepository) LoadAll(ctx context.Context) ([]core.Record, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, date, item, quantity, unit_price, total FROM notes ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query notes: %w", err)
	}
	defer rows.Close()

	records := []core.Record{}
	for rows.Next() {
		var (
			rec  core.Record
			date string
		)
		if err := rows.Scan(&rec.ID, &date, &rec.Item, &rec.Quantity, &rec.UnitPrice, &rec.Total); err != nil {
			return nil, fmt.Errorf("%w: scan note: %v", core.ErrMalformedStore, err)
		}
		rec.Date, err = core.ParseDate(date)
		if err != nil {
			return nil, fmt.Errorf("%w: note %s: %v", core.ErrMalformedStore, rec.ID, err)
		}
		if !rec.Consistent() {
			return nil, fmt.Errorf("%w: note %s: total %d does not equal %d x %d",
				core.ErrMalformedStore, rec.ID, rec.Total, rec.Quantity, rec.UnitPrice)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notes: %w", err)
	}

	return records, nil
}

// SaveAll implements Store. The table is replaced inside one transaction.
func (r *SQLiteRepository) SaveAll(ctx context.Context, records []core.Record) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM notes`); err != nil {
		return fmt.Errorf("clear notes: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO notes (id, position, date, item, quantity, unit_price, total) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, rec := range records {
		if _, err := stmt.ExecContext(ctx, rec.ID, i, rec.Date.String(), rec.Item, rec.Quantity, rec.UnitPrice, rec.Total); err != nil {
			return fmt.Errorf("insert note %s: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit notes: %w", err)
	}

	slog.DebugContext(ctx, "Notes saved to SQLite", "records", len(records))
	return nil
}
