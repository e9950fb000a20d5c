package docstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres stores every leaf of the tree as one row of the documents table.
// Statement names are registered on each connection by internal/db.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps a pool whose connections have the doc_* statements
// prepared.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Get implements Store.
func (p *Postgres) Get(ctx context.Context, path string) (json.RawMessage, error) {
	path, err := CleanPath(path)
	if err != nil {
		return nil, err
	}

	rows, err := p.pool.Query(ctx, "doc_get_subtree", path, childPrefix(path))
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", path, err)
	}
	defer rows.Close()

	found := make(map[string]json.RawMessage)
	for rows.Next() {
		var (
			leafPath string
			value    []byte
		)
		if err := rows.Scan(&leafPath, &value); err != nil {
			return nil, fmt.Errorf("scan %s: %w", path, err)
		}
		found[relative(path, leafPath)] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get %s: %w", path, err)
	}
	return assemble(found)
}

// Set implements Store.
func (p *Postgres) Set(ctx context.Context, path string, value any) error {
	return p.Update(ctx, map[string]any{path: value})
}

// Delete implements Store.
func (p *Postgres) Delete(ctx context.Context, path string) error {
	return p.Update(ctx, map[string]any{path: nil})
}

// Update implements Store. All writes commit in one transaction.
func (p *Postgres) Update(ctx context.Context, values map[string]any) error {
	writes, err := planWrites(values)
	if err != nil {
		return err
	}

	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		for _, w := range writes {
			keep := make([]string, 0, len(w.leaves))
			for rel := range w.leaves {
				keep = append(keep, absolute(w.path, rel))
			}
			// Leaves that survive are upserted in place, so the insert trigger
			// only sees paths that did not exist before.
			if _, err := tx.Exec(ctx, "doc_prune_subtree", w.path, childPrefix(w.path), keep); err != nil {
				return fmt.Errorf("clear %s: %w", w.path, err)
			}
			if anc := ancestors(w.path); len(anc) > 0 {
				if _, err := tx.Exec(ctx, "doc_delete_paths", anc); err != nil {
					return fmt.Errorf("clear ancestors of %s: %w", w.path, err)
				}
			}
			if len(w.leaves) == 0 {
				continue
			}

			batch := &pgx.Batch{}
			for rel, v := range w.leaves {
				batch.Queue("doc_upsert_leaf", absolute(w.path, rel), []byte(v))
			}
			if err := tx.SendBatch(ctx, batch).Close(); err != nil {
				return fmt.Errorf("write %s: %w", w.path, err)
			}
		}
		return nil
	})
}

// Ping implements Pinger.
func (p *Postgres) Ping(ctx context.Context) error {
	var n int
	return p.pool.QueryRow(ctx, "health_check").Scan(&n)
}
