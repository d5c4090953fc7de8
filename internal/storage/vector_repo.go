package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("record not found")
)

const nowMillis = `strftime('%Y-%m-%d %H:%M:%f', 'now')`

// VectorRepo persists collections and their vectors in SQLite.
type VectorRepo struct {
	db *sql.DB
}

// NewVectorRepo creates a new VectorRepo.
func NewVectorRepo(db *sql.DB) *VectorRepo {
	return &VectorRepo{db: db}
}

// DB returns the underlying database connection.
func (r *VectorRepo) DB() *sql.DB {
	return r.db
}

// GetCollection returns the named collection or ErrNotFound.
func (r *VectorRepo) GetCollection(ctx context.Context, name string) (*CollectionRecord, error) {
	var c CollectionRecord
	err := r.db.QueryRowContext(ctx,
		"SELECT name, vector_size, created_at FROM collections WHERE name = ?", name,
	).Scan(&c.Name, &c.VectorSize, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query collection: %w", err)
	}
	return &c, nil
}

// CreateCollection creates a collection. Creating an existing collection is a no-op;
// callers validate the vector size with GetCollection.
func (r *VectorRepo) CreateCollection(ctx context.Context, name string, vectorSize int) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO collections (name, vector_size) VALUES (?, ?) ON CONFLICT (name) DO NOTHING",
		name, vectorSize,
	)
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

// Upsert inserts or overwrites records by (collection, id) in a single transaction.
func (r *VectorRepo) Upsert(ctx context.Context, records []VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO vectors (collection, id, vector, metadata, updated_at)
		 VALUES (?, ?, ?, ?, `+nowMillis+`)
		 ON CONFLICT (collection, id) DO UPDATE SET
		 vector = excluded.vector, metadata = excluded.metadata, updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer func() {
		_ = stmt.Close()
	}()

	for _, rec := range records {
		meta := rec.Metadata
		if meta == nil {
			meta = map[string]any{}
		}
		metaJSON, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("failed to encode metadata for %s: %w", rec.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, rec.Collection, rec.ID, EncodeVector(rec.Vector), string(metaJSON)); err != nil {
			return fmt.Errorf("failed to upsert vector %s: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit upsert: %w", err)
	}
	return nil
}

// GetByIDs returns the records with the given ids. Missing ids are skipped.
func (r *VectorRepo) GetByIDs(ctx context.Context, collection string, ids []string) ([]VectorRecord, error) {
	if len(ids) == 0 {
		return []VectorRecord{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids)+1)
	args = append(args, collection)
	for _, id := range ids {
		args = append(args, id)
	}

	return r.query(ctx,
		"SELECT collection, id, vector, metadata, updated_at FROM vectors WHERE collection = ? AND id IN ("+placeholders+") ORDER BY updated_at DESC, id",
		args...)
}

// ListAll returns every record in the collection, most recently written first.
func (r *VectorRepo) ListAll(ctx context.Context, collection string) ([]VectorRecord, error) {
	return r.query(ctx,
		"SELECT collection, id, vector, metadata, updated_at FROM vectors WHERE collection = ? ORDER BY updated_at DESC, id",
		collection)
}

// Delete removes records by id and returns how many were deleted.
func (r *VectorRepo) Delete(ctx context.Context, collection string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids)+1)
	args = append(args, collection)
	for _, id := range ids {
		args = append(args, id)
	}

	res, err := r.db.ExecContext(ctx, "DELETE FROM vectors WHERE collection = ? AND id IN ("+placeholders+")", args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete vectors: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read deleted count: %w", err)
	}
	return n, nil
}

// Count returns the number of records in the collection.
func (r *VectorRepo) Count(ctx context.Context, collection string) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM vectors WHERE collection = ?", collection).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count vectors: %w", err)
	}
	return count, nil
}

func (r *VectorRepo) query(ctx context.Context, q string, args ...any) ([]VectorRecord, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query vectors: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	records := []VectorRecord{}
	for rows.Next() {
		var rec VectorRecord
		var blob []byte
		var metaJSON string
		if err := rows.Scan(&rec.Collection, &rec.ID, &blob, &metaJSON, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan vector: %w", err)
		}
		if rec.Vector, err = DecodeVector(blob); err != nil {
			return nil, fmt.Errorf("failed to decode vector %s: %w", rec.ID, err)
		}
		if err := json.Unmarshal([]byte(metaJSON), &rec.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata %s: %w", rec.ID, err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return records, nil
}
