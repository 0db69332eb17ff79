// Package repository stores chunk metadata in Postgres.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"convrag/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS document_metadata (
	id                  SERIAL PRIMARY KEY,
	file_name           TEXT NOT NULL,
	chunk_text          TEXT NOT NULL,
	chunk_index         INTEGER NOT NULL,
	vector_id           TEXT NOT NULL UNIQUE,
	chunk_strategy      TEXT NOT NULL,
	additional_metadata JSONB,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_document_metadata_file_name ON document_metadata (file_name);`

// ChunkRecord is one persisted chunk.
type ChunkRecord struct {
	domain.TextUnit
	ID        int64
	FileName  string
	VectorID  string
	Strategy  string
	Metadata  map[string]any
	CreatedAt time.Time
}

type chunkRow struct {
	ID        int64     `db:"id"`
	FileName  string    `db:"file_name"`
	Text      string    `db:"chunk_text"`
	Index     int       `db:"chunk_index"`
	VectorID  string    `db:"vector_id"`
	Strategy  string    `db:"chunk_strategy"`
	Metadata  []byte    `db:"additional_metadata"`
	CreatedAt time.Time `db:"created_at"`
}

// ChunkRepository handles chunk metadata access.
type ChunkRepository struct {
	db *sqlx.DB
}

// Open connects to Postgres with a lib/pq DSN or URL.
func Open(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return db, nil
}

// NewChunkRepository creates a repository over db.
func NewChunkRepository(db *sqlx.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

// EnsureSchema creates the document_metadata table if it is missing.
func (r *ChunkRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// SaveChunks writes one row per chunk in a single transaction. Row i gets
// chunk_index i and vector id batch.VectorIDs[i].
func (r *ChunkRepository) SaveChunks(ctx context.Context, batch domain.ChunkBatch) (err error) {
	if len(batch.Chunks) != len(batch.VectorIDs) {
		return fmt.Errorf("%w: %d chunks but %d vector ids", domain.ErrInvalidArgument, len(batch.Chunks), len(batch.VectorIDs))
	}
	if len(batch.Chunks) == 0 {
		return nil
	}
	meta := batch.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	metadataJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query := `
		INSERT INTO document_metadata (
			file_name, chunk_text, chunk_index, vector_id, chunk_strategy, additional_metadata
		) VALUES ($1, $2, $3, $4, $5, $6)`
	for i, chunk := range batch.Chunks {
		if _, err = tx.ExecContext(ctx, query,
			batch.FileName, chunk, i, batch.VectorIDs[i], batch.Strategy, metadataJSON,
		); err != nil {
			var pgErr *pq.Error
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return fmt.Errorf("vector id %s already recorded: %w", batch.VectorIDs[i], err)
			}
			return fmt.Errorf("failed to insert chunk %d: %w", i, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit chunks: %w", err)
	}
	return nil
}

// ChunksByFile returns the chunks of one file ordered by chunk_index.
func (r *ChunkRepository) ChunksByFile(ctx context.Context, fileName string) ([]ChunkRecord, error) {
	var rows []chunkRow
	query := `
		SELECT id, file_name, chunk_text, chunk_index, vector_id, chunk_strategy,
		       additional_metadata, created_at
		FROM document_metadata
		WHERE file_name = $1
		ORDER BY chunk_index`
	if err := r.db.SelectContext(ctx, &rows, query, fileName); err != nil {
		return nil, fmt.Errorf("failed to get chunks: %w", err)
	}

	out := make([]ChunkRecord, 0, len(rows))
	for _, row := range rows {
		rec := ChunkRecord{
			TextUnit:  domain.TextUnit{Index: row.Index, Content: row.Text},
			ID:        row.ID,
			FileName:  row.FileName,
			VectorID:  row.VectorID,
			Strategy:  row.Strategy,
			CreatedAt: row.CreatedAt,
		}
		if len(row.Metadata) > 0 {
			if err := json.Unmarshal(row.Metadata, &rec.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata of chunk %d: %w", row.ID, err)
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

// NopChunkRepository discards chunk metadata. Used when no database is set up.
type NopChunkRepository struct{}

func (NopChunkRepository) SaveChunks(context.Context, domain.ChunkBatch) error { return nil }

func (NopChunkRepository) ChunksByFile(context.Context, string) ([]ChunkRecord, error) {
	return nil, nil
}
