// Package sqlite provides SQLite database operations.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vidfetch/vidfetch/internal/domain"
)

// Repository stores the download history.
type Repository struct {
	db *sql.DB
}

// NewRepository opens (or creates) the history database under dataDir.
func NewRepository(dataDir string) (*Repository, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "downloads.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer: SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if err := configureDB(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}
	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	slog.Info("database initialized", "path", dbPath)

	return &Repository{db: db}, nil
}

func configureDB(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=10000",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}
	return nil
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS downloads (
			id TEXT PRIMARY KEY,
			video_id TEXT NOT NULL,
			url TEXT NOT NULL,
			title TEXT,
			format TEXT NOT NULL,
			quality TEXT NOT NULL,
			method TEXT,
			status TEXT DEFAULT 'processing',
			translated INTEGER DEFAULT 0,
			error TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			completed_at DATETIME
		);

		CREATE INDEX IF NOT EXISTS idx_downloads_video ON downloads(video_id);
		CREATE INDEX IF NOT EXISTS idx_downloads_created ON downloads(created_at);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Create inserts a new download record.
func (r *Repository) Create(ctx context.Context, rec *domain.DownloadRecord) error {
	query := `
		INSERT INTO downloads (id, video_id, url, title, format, quality, method, status, translated, error, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		rec.ID,
		rec.VideoID,
		rec.URL,
		rec.Title,
		rec.Format,
		rec.Quality,
		string(rec.Method),
		string(rec.Status),
		rec.Translated,
		rec.Error,
		rec.CreatedAt,
		rec.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create download record: %w", err)
	}
	return nil
}

// Update rewrites the mutable fields of an existing record.
func (r *Repository) Update(ctx context.Context, rec *domain.DownloadRecord) error {
	query := `
		UPDATE downloads
		SET title = ?, method = ?, status = ?, translated = ?, error = ?, completed_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		rec.Title,
		string(rec.Method),
		string(rec.Status),
		rec.Translated,
		rec.Error,
		rec.CompletedAt,
		rec.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update download record: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("download record not found: %s", rec.ID)
	}
	return nil
}

// Recent returns the latest records, newest first.
func (r *Repository) Recent(ctx context.Context, limit int) ([]*domain.DownloadRecord, error) {
	query := `
		SELECT id, video_id, url, title, format, quality, method, status, translated, error, created_at, completed_at
		FROM downloads
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query downloads: %w", err)
	}
	defer rows.Close()

	var records []*domain.DownloadRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate downloads: %w", err)
	}
	return records, nil
}

// DeleteOlderThan prunes history records past the retention window.
// Returns the number of deleted rows.
func (r *Repository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM downloads WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune downloads: %w", err)
	}
	return result.RowsAffected()
}

func scanRecord(rows *sql.Rows) (*domain.DownloadRecord, error) {
	rec := &domain.DownloadRecord{}
	var title, method, errorMsg sql.NullString
	var completedAt sql.NullTime
	var status string

	err := rows.Scan(
		&rec.ID,
		&rec.VideoID,
		&rec.URL,
		&title,
		&rec.Format,
		&rec.Quality,
		&method,
		&status,
		&rec.Translated,
		&errorMsg,
		&rec.CreatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan download record: %w", err)
	}

	rec.Title = title.String
	rec.Method = domain.RetrievalMethod(method.String)
	rec.Status = domain.DownloadStatus(status)
	rec.Error = errorMsg.String
	if completedAt.Valid {
		rec.CompletedAt = &completedAt.Time
	}
	return rec, nil
}
