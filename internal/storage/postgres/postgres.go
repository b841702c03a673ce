package postgres

import (
	"context"
	"fmt"

	"github.com/FranksOps/burrow/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ensure postgresBackend implements storage.Backend
var _ storage.Backend = (*postgresBackend)(nil)

type postgresBackend struct {
	pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS search_hits (
	id TEXT PRIMARY KEY,
	search_id TEXT NOT NULL,
	engine TEXT NOT NULL,
	query TEXT NOT NULL,
	page INTEGER NOT NULL,
	rank INTEGER NOT NULL,
	title TEXT NOT NULL,
	href TEXT NOT NULL,
	body TEXT,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_search_hits_query ON search_hits (engine, query);
`

const insertHit = `
INSERT INTO search_hits (
	id, search_id, engine, query, page, rank, title, href, body, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`

// New creates a new Postgres-backed storage.Backend.
func New(ctx context.Context, dsn string) (storage.Backend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: %w", err)
	}

	_, err = pool.Exec(ctx, schema)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: %w", err)
	}

	return &postgresBackend{pool: pool}, nil
}

func (b *postgresBackend) Save(ctx context.Context, hits ...*storage.Hit) error {
	if len(hits) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, h := range hits {
		batch.Queue(insertHit,
			h.ID,
			h.SearchID,
			h.Engine,
			h.Query,
			h.Page,
			h.Rank,
			h.Title,
			h.Href,
			h.Body,
			h.CreatedAt,
		)
	}

	br := b.pool.SendBatch(ctx, batch)
	for range hits {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("postgres: %w", err)
		}
	}

	if err := br.Close(); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	return nil
}

func (b *postgresBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.Hit, error) {
	query := `SELECT id, search_id, engine, query, page, rank, title, href, COALESCE(body, ''), created_at FROM search_hits WHERE 1=1`
	args := []any{}
	paramCount := 1

	if filter.Engine != "" {
		query += fmt.Sprintf(` AND engine = $%d`, paramCount)
		args = append(args, filter.Engine)
		paramCount++
	}
	if filter.Query != "" {
		query += fmt.Sprintf(` AND query = $%d`, paramCount)
		args = append(args, filter.Query)
		paramCount++
	}
	if filter.Href != "" {
		query += fmt.Sprintf(` AND href = $%d`, paramCount)
		args = append(args, filter.Href)
		paramCount++
	}
	if filter.Since != nil {
		query += fmt.Sprintf(` AND created_at >= $%d`, paramCount)
		args = append(args, *filter.Since)
		paramCount++
	}

	query += ` ORDER BY created_at DESC, rank ASC`

	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, paramCount)
		args = append(args, filter.Limit)
		paramCount++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, paramCount)
		args = append(args, filter.Offset)
	}

	rows, err := b.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	defer rows.Close()

	var hits []*storage.Hit
	for rows.Next() {
		var h storage.Hit

		err := rows.Scan(
			&h.ID, &h.SearchID, &h.Engine, &h.Query, &h.Page, &h.Rank,
			&h.Title, &h.Href, &h.Body, &h.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}

		hits = append(hits, &h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}

	return hits, nil
}

func (b *postgresBackend) Close() error {
	b.pool.Close()
	return nil
}
