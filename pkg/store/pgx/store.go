package pgx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/worklens/backend/pkg/store"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Store implements store.DocumentStore on PostgreSQL. Documents live in a
// single table keyed by (tenant, collection, doc_id) with the fields held as
// JSONB.
type Store struct {
	conn pgxIConn
}

// NewStore creates a Store on an existing connection or pool.
func NewStore(conn pgxIConn) *Store {
	return &Store{conn: conn}
}

const listSQL = `
SELECT doc_id, data
FROM documents
WHERE tenant = $1 AND collection = $2
ORDER BY doc_id;
`

func (s *Store) List(ctx context.Context, tenant, collection string) ([]store.Doc, error) {
	rows, err := s.conn.Query(ctx, listSQL, tenant, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s documents: %w", collection, err)
	}
	defer rows.Close()

	return scanDocs(rows)
}

const getSQL = `
SELECT data
FROM documents
WHERE tenant = $1 AND collection = $2 AND doc_id = $3;
`

func (s *Store) Get(ctx context.Context, tenant, collection, id string) (map[string]any, bool, error) {
	var raw []byte
	err := s.conn.QueryRow(ctx, getSQL, tenant, collection, id).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get document %s/%s: %w", collection, id, err)
	}

	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, false, fmt.Errorf("failed to decode document %s/%s: %w", collection, id, err)
	}
	return data, true, nil
}

const upsertSQL = `
INSERT INTO documents (tenant, collection, doc_id, data)
VALUES ($1, $2, $3, $4)
ON CONFLICT (tenant, collection, doc_id)
DO UPDATE SET data = EXCLUDED.data;
`

func (s *Store) Upsert(ctx context.Context, tenant, collection, id string, fields map[string]any, merge bool) error {
	if id == "" {
		return fmt.Errorf("document id is empty")
	}

	if merge {
		existing, ok, err := s.Get(ctx, tenant, collection, id)
		if err != nil {
			return err
		}
		if ok {
			fields = store.MergeFields(existing, fields)
		}
	}

	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode document %s/%s: %w", collection, id, err)
	}

	_, err = s.conn.Exec(ctx, upsertSQL, tenant, collection, id, raw)
	if err != nil {
		return fmt.Errorf("failed to upsert document %s/%s: %w", collection, id, err)
	}
	return nil
}

const idsSQL = `
SELECT doc_id
FROM documents
WHERE tenant = $1 AND collection = $2
ORDER BY doc_id;
`

const deleteSQL = `
DELETE FROM documents
WHERE tenant = $1 AND collection = $2 AND doc_id = $3;
`

func (s *Store) DeleteAll(ctx context.Context, tenant, collection string) (int, error) {
	rows, err := s.conn.Query(ctx, idsSQL, tenant, collection)
	if err != nil {
		return 0, fmt.Errorf("failed to list %s document ids: %w", collection, err)
	}

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	err = store.ChunkRange(len(ids), store.BatchLimit, func(start, end int) error {
		batch := &pgx.Batch{}
		for _, id := range ids[start:end] {
			batch.Queue(deleteSQL, tenant, collection, id)
		}
		results := s.conn.SendBatch(ctx, batch)
		defer results.Close()
		for range ids[start:end] {
			if _, err := results.Exec(); err != nil {
				return fmt.Errorf("failed to delete from %s: %w", collection, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return len(ids), nil
}

const querySQL = `
SELECT doc_id, data
FROM documents
WHERE tenant = $1 AND collection = $2
  AND lower(data->>$3) LIKE lower($4) ESCAPE '\'
ORDER BY lower(data->>$3), doc_id
LIMIT $5;
`

func (s *Store) Query(ctx context.Context, tenant, collection, field, prefix string, limit int) ([]store.Doc, error) {
	if limit <= 0 {
		limit = store.BatchLimit
	}

	pattern := escapeLike(prefix) + "%"
	rows, err := s.conn.Query(ctx, querySQL, tenant, collection, field, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s documents: %w", collection, err)
	}
	defer rows.Close()

	return scanDocs(rows)
}

const countSQL = `
SELECT count(*)
FROM documents
WHERE tenant = $1 AND collection = $2;
`

func (s *Store) Count(ctx context.Context, tenant, collection string) (int, error) {
	var count int
	if err := s.conn.QueryRow(ctx, countSQL, tenant, collection).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count %s documents: %w", collection, err)
	}
	return count, nil
}

func scanDocs(rows pgx.Rows) ([]store.Doc, error) {
	docs := make([]store.Doc, 0)
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		var data map[string]any
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("failed to decode document %s: %w", id, err)
		}
		docs = append(docs, store.Doc{ID: id, Data: data})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
