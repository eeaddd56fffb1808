package store

import "context"

// BatchLimit is the maximum number of writes the store accepts in one atomic
// batch. Bulk operations must chunk accordingly and commit each chunk before
// starting the next.
const BatchLimit = 500

// Doc is one stored document together with its id inside the collection.
type Doc struct {
	ID   string
	Data map[string]any
}

// DocumentStore is a generic collection-oriented document store partitioned
// by tenant. Collections live in a per-tenant key space; no cross-tenant
// operation exists.
//
// Implementations: pgx (PostgreSQL, JSONB documents) and memory (tests and
// local runs).
type DocumentStore interface {
	// List returns all documents in a collection, ordered by id.
	List(ctx context.Context, tenant, collection string) ([]Doc, error)

	// Get fetches a single document. A missing document is reported through
	// the second return value, not an error.
	Get(ctx context.Context, tenant, collection, id string) (map[string]any, bool, error)

	// Upsert writes a document under the given id. With merge set, fields are
	// deep-merged into the existing document (new keys win); without it the
	// document is replaced wholesale.
	Upsert(ctx context.Context, tenant, collection, id string, fields map[string]any, merge bool) error

	// DeleteAll removes every document in a collection using chunked batch
	// deletes of at most BatchLimit documents each. Returns the number of
	// documents deleted.
	DeleteAll(ctx context.Context, tenant, collection string) (int, error)

	// Query returns up to limit documents whose named field starts with
	// prefix, compared case-insensitively, ordered by that field.
	Query(ctx context.Context, tenant, collection, field, prefix string, limit int) ([]Doc, error)

	// Count returns the number of documents in a collection.
	Count(ctx context.Context, tenant, collection string) (int, error)
}

// ChunkRange invokes fn over [start,end) windows of at most chunkSize until
// total is covered or fn returns an error.
func ChunkRange(total, chunkSize int, fn func(start, end int) error) error {
	if total <= 0 {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = total
	}
	for start := 0; start < total; start += chunkSize {
		end := min(start+chunkSize, total)
		if err := fn(start, end); err != nil {
			return err
		}
	}
	return nil
}

// MergeFields deep-merges src into dst and returns the result. Nested maps
// are merged recursively; for conflicting scalar keys src wins. dst is not
// modified.
func MergeFields(dst, src map[string]any) map[string]any {
	out := make(map[string]any, len(dst)+len(src))
	for k, v := range dst {
		out[k] = v
	}
	for k, v := range src {
		existing, ok := out[k]
		if ok {
			em, eok := existing.(map[string]any)
			sm, sok := v.(map[string]any)
			if eok && sok {
				out[k] = MergeFields(em, sm)
				continue
			}
		}
		out[k] = v
	}
	return out
}
