package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/your-org/buddywatch/internal/errs"
	"github.com/your-org/buddywatch/internal/models"
)

// SQLiteStore is a single-node RecordStore for local deployments.
type SQLiteStore struct {
	db *sql.DB
}

var _ RecordStore = (*SQLiteStore)(nil)

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS video_assets (
			id            TEXT PRIMARY KEY,
			owner_id      TEXT NOT NULL,
			title         TEXT NOT NULL,
			blob_key      TEXT NOT NULL UNIQUE,
			thumbnail_key TEXT,
			filename      TEXT NOT NULL DEFAULT '',
			content_type  TEXT NOT NULL DEFAULT '',
			size          INTEGER NOT NULL DEFAULT 0,
			created_at    DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS video_assets_owner_idx ON video_assets (owner_id, created_at);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Create(ctx context.Context, a *models.VideoAsset) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO video_assets (id, owner_id, title, blob_key, thumbnail_key, filename, content_type, size, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID.String(), a.OwnerID, a.Title, a.BlobKey, nullString(a.ThumbnailKey),
		a.Filename, a.ContentType, a.Size, a.CreatedAt.UTC(),
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return fmt.Errorf("create asset: duplicate id or blob key: %w", err)
		}
		return fmt.Errorf("create asset: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id uuid.UUID) (*models.VideoAsset, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, title, blob_key, thumbnail_key, filename, content_type, size, created_at
		 FROM video_assets WHERE id = ?`, id.String())

	a, err := scanSQLiteAsset(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("get asset %s: %w", id, errs.ErrNotFound)
		}
		return nil, fmt.Errorf("get asset: %w", err)
	}
	return a, nil
}

func (s *SQLiteStore) ListByOwner(ctx context.Context, ownerID string) ([]models.VideoAsset, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, title, blob_key, thumbnail_key, filename, content_type, size, created_at
		 FROM video_assets WHERE owner_id = ? ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	assets := []models.VideoAsset{}
	for rows.Next() {
		a, err := scanSQLiteAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		assets = append(assets, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	return assets, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM video_assets WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete asset: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete asset: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("delete asset %s: %w", id, errs.ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) KeyReferenced(ctx context.Context, key string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM video_assets WHERE blob_key = ? OR thumbnail_key = ?`, key, key,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check key reference: %w", err)
	}
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteAsset(row rowScanner) (*models.VideoAsset, error) {
	var (
		a     models.VideoAsset
		id    string
		thumb sql.NullString
	)
	if err := row.Scan(&id, &a.OwnerID, &a.Title, &a.BlobKey, &thumb,
		&a.Filename, &a.ContentType, &a.Size, &a.CreatedAt); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse asset id %q: %w", id, err)
	}
	a.ID = parsed
	if thumb.Valid {
		t := thumb.String
		a.ThumbnailKey = &t
	}
	return &a, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
