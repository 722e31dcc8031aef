package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT        NOT NULL,
	id         TEXT        NOT NULL,
	data       JSONB       NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS documents_data_gin ON documents USING GIN (data jsonb_path_ops);
CREATE INDEX IF NOT EXISTS documents_created_idx ON documents (collection, created_at DESC);
`

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres stores every collection in a single JSONB table.
type Postgres struct {
	db querier
}

// NewPostgres wraps a connection pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{db: pool}
}

// Connect opens a pool for dsn and verifies it with a ping.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Migrate creates the documents table and its indexes if they do not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate documents table: %w", err)
	}
	return nil
}

const returning = ` RETURNING id, data, created_at, updated_at`

func (p *Postgres) Get(ctx context.Context, collection, id string) (*Document, error) {
	row := p.db.QueryRow(ctx, `
		SELECT id, data, created_at, updated_at
		FROM documents
		WHERE collection = $1 AND id = $2
	`, collection, id)
	return scanOne(row)
}

func (p *Postgres) Add(ctx context.Context, collection string, fields interface{}) (*Document, error) {
	data, err := encodeFields(fields)
	if err != nil {
		return nil, err
	}
	row := p.db.QueryRow(ctx, `
		INSERT INTO documents (collection, id, data)
		VALUES ($1, $2, $3::jsonb)`+returning,
		collection, uuid.NewString(), data)
	return scanOne(row)
}

func (p *Postgres) Update(ctx context.Context, collection, id string, fields interface{}) (*Document, error) {
	data, err := encodeFields(fields)
	if err != nil {
		return nil, err
	}
	row := p.db.QueryRow(ctx, `
		UPDATE documents
		SET data = data || $3::jsonb, updated_at = NOW()
		WHERE collection = $1 AND id = $2`+returning,
		collection, id, data)
	return scanOne(row)
}

func (p *Postgres) Set(ctx context.Context, collection, id string, fields interface{}) (*Document, error) {
	data, err := encodeFields(fields)
	if err != nil {
		return nil, err
	}
	row := p.db.QueryRow(ctx, `
		INSERT INTO documents (collection, id, data)
		VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (collection, id) DO UPDATE
		SET data = documents.data || EXCLUDED.data, updated_at = NOW()`+returning,
		collection, id, data)
	return scanOne(row)
}

func (p *Postgres) Find(ctx context.Context, q Query) ([]Document, error) {
	where, err := encodeFilter(q.Where)
	if err != nil {
		return nil, err
	}

	sql := `
		SELECT id, data, created_at, updated_at
		FROM documents
		WHERE collection = $1 AND data @> $2::jsonb`
	args := []any{q.Collection, where}

	dir := "ASC"
	if q.Desc {
		dir = "DESC"
	}
	switch q.OrderBy {
	case "":
		sql += ` ORDER BY created_at ASC, id ASC`
	case OrderByCreated:
		sql += ` ORDER BY created_at ` + dir + `, id ` + dir
	default:
		args = append(args, q.OrderBy)
		sql += fmt.Sprintf(` ORDER BY data -> $%d %s, id %s`, len(args), dir, dir)
	}
	if q.Limit > 0 {
		args = append(args, q.Limit)
		sql += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := p.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Collection, err)
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		doc, err := scanDoc(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", q.Collection, err)
	}
	return docs, nil
}

func (p *Postgres) Count(ctx context.Context, collection string, where ...Filter) (int, error) {
	filter, err := encodeFilter(where)
	if err != nil {
		return 0, err
	}
	var n int
	err = p.db.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM documents
		WHERE collection = $1 AND data @> $2::jsonb
	`, collection, filter).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return n, nil
}

func encodeFields(fields interface{}) ([]byte, error) {
	data, err := Fields(fields)
	if err != nil {
		return nil, err
	}
	return json.Marshal(data)
}

func encodeFilter(where []Filter) ([]byte, error) {
	obj, err := filterObject(where)
	if err != nil {
		return nil, err
	}
	return json.Marshal(obj)
}

func scanOne(row pgx.Row) (*Document, error) {
	doc, err := scanDoc(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return doc, err
}

func scanDoc(row pgx.Row) (*Document, error) {
	var (
		doc Document
		raw []byte
	)
	if err := row.Scan(&doc.ID, &raw, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	if err := json.Unmarshal(raw, &doc.Data); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", doc.ID, err)
	}
	if doc.Data == nil {
		doc.Data = map[string]interface{}{}
	}
	return &doc, nil
}
