package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/FranksOps/burrow/internal/storage"
	_ "modernc.org/sqlite"
)

// ensure sqliteBackend implements storage.Backend
var _ storage.Backend = (*sqliteBackend)(nil)

type sqliteBackend struct {
	db *sql.DB
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
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_search_hits_query ON search_hits (engine, query);
`

// New creates a new SQLite-backed storage.Backend.
func New(dsn string) (storage.Backend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: %w", err)
	}

	return &sqliteBackend{db: db}, nil
}

func (b *sqliteBackend) Save(ctx context.Context, hits ...*storage.Hit) error {
	if len(hits) == 0 {
		return nil
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO search_hits (
		id, search_id, engine, query, page, rank, title, href, body, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}
	defer stmt.Close()

	for _, h := range hits {
		_, err := stmt.ExecContext(ctx,
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
		if err != nil {
			return fmt.Errorf("sqlite: insert %s: %w", h.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}
	return nil
}

func (b *sqliteBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.Hit, error) {
	query := `SELECT id, search_id, engine, query, page, rank, title, href, body, created_at FROM search_hits WHERE 1=1`
	args := []any{}

	if filter.Engine != "" {
		query += ` AND engine = ?`
		args = append(args, filter.Engine)
	}
	if filter.Query != "" {
		query += ` AND query = ?`
		args = append(args, filter.Query)
	}
	if filter.Href != "" {
		query += ` AND href = ?`
		args = append(args, filter.Href)
	}
	if filter.Since != nil {
		query += ` AND created_at >= ?`
		args = append(args, *filter.Since)
	}

	query += ` ORDER BY created_at DESC, rank ASC`

	// SQLite only accepts OFFSET after a LIMIT clause.
	if filter.Limit > 0 || filter.Offset > 0 {
		limit := filter.Limit
		if limit <= 0 {
			limit = -1
		}
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: %w", err)
	}
	defer rows.Close()

	var hits []*storage.Hit
	for rows.Next() {
		var h storage.Hit
		var body sql.NullString

		err := rows.Scan(
			&h.ID, &h.SearchID, &h.Engine, &h.Query, &h.Page, &h.Rank,
			&h.Title, &h.Href, &body, &h.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		h.Body = body.String

		hits = append(hits, &h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: %w", err)
	}

	return hits, nil
}

func (b *sqliteBackend) Close() error {
	return b.db.Close()
}
