package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/your-org/buddywatch/internal/config"
	"github.com/your-org/buddywatch/internal/errs"
	"github.com/your-org/buddywatch/internal/models"
)

const (
	assetsTable = "video_assets"

	idColumn           = "id"
	ownerIDColumn      = "owner_id"
	titleColumn        = "title"
	blobKeyColumn      = "blob_key"
	thumbnailKeyColumn = "thumbnail_key"
	filenameColumn     = "filename"
	contentTypeColumn  = "content_type"
	sizeColumn         = "size"
	createdAtColumn    = "created_at"
)

var assetColumns = []string{
	idColumn, ownerIDColumn, titleColumn, blobKeyColumn, thumbnailKeyColumn,
	filenameColumn, contentTypeColumn, sizeColumn, createdAtColumn,
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS video_assets (
	id            UUID PRIMARY KEY,
	owner_id      TEXT NOT NULL,
	title         VARCHAR(255) NOT NULL,
	blob_key      TEXT NOT NULL UNIQUE,
	thumbnail_key TEXT,
	filename      TEXT NOT NULL DEFAULT '',
	content_type  TEXT NOT NULL DEFAULT '',
	size          BIGINT NOT NULL DEFAULT 0,
	created_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS video_assets_owner_created_idx ON video_assets (owner_id, created_at DESC);
CREATE INDEX IF NOT EXISTS video_assets_thumbnail_key_idx ON video_assets (thumbnail_key);
`

type PostgresStore struct {
	pool    *pgxpool.Pool
	builder squirrel.StatementBuilderType
}

var _ RecordStore = (*PostgresStore)(nil)

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{
		pool:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}, nil
}

// Migrate creates the schema if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Create(ctx context.Context, a *models.VideoAsset) error {
	sql, args, err := s.builder.
		Insert(assetsTable).
		Columns(assetColumns...).
		Values(a.ID, a.OwnerID, a.Title, a.BlobKey, a.ThumbnailKey,
			a.Filename, a.ContentType, a.Size, a.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := s.pool.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("create asset: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*models.VideoAsset, error) {
	sql, args, err := s.builder.
		Select(assetColumns...).
		From(assetsTable).
		Where(squirrel.Eq{idColumn: id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	a, err := scanAsset(s.pool.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get asset %s: %w", id, errs.ErrNotFound)
		}
		return nil, fmt.Errorf("get asset: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) ListByOwner(ctx context.Context, ownerID string) ([]models.VideoAsset, error) {
	sql, args, err := s.builder.
		Select(assetColumns...).
		From(assetsTable).
		Where(squirrel.Eq{ownerIDColumn: ownerID}).
		OrderBy(createdAtColumn + " DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	assets := []models.VideoAsset{}
	for rows.Next() {
		a, err := scanAsset(rows)
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

func (s *PostgresStore) Delete(ctx context.Context, id uuid.UUID) error {
	sql, args, err := s.builder.
		Delete(assetsTable).
		Where(squirrel.Eq{idColumn: id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	tag, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("delete asset: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete asset %s: %w", id, errs.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) KeyReferenced(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM video_assets WHERE blob_key = $1 OR thumbnail_key = $1)`, key,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check key reference: %w", err)
	}
	return exists, nil
}

func scanAsset(row pgx.Row) (*models.VideoAsset, error) {
	var a models.VideoAsset
	err := row.Scan(&a.ID, &a.OwnerID, &a.Title, &a.BlobKey, &a.ThumbnailKey,
		&a.Filename, &a.ContentType, &a.Size, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
