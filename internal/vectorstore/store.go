// Package vectorstore couples an embedder with a similarity index.
//
// Store is the only entry point the rest of the module uses: it embeds text,
// assigns record ids, enforces the collection dimension and ranks search
// results. Embed and Upsert keep input order, so ids returned by AddTexts
// correspond positionally to the texts passed in.
package vectorstore

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"convrag/internal/domain"
	"convrag/internal/embedding"
	"convrag/internal/observability"
)

// Record is an upsert request. An empty ID gets a fresh random id.
type Record struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// Store embeds text and talks to the vector index.
type Store struct {
	embedder embedding.Embedder
	index    Index
	logger   observability.Logger
}

// NewStore creates a Store over the given embedder and index.
func NewStore(embedder embedding.Embedder, index Index, logger observability.Logger) *Store {
	if logger == nil {
		logger = observability.NoopLogger{}
	}
	return &Store{embedder: embedder, index: index, logger: logger.WithPrefix("vectorstore")}
}

// Embed returns one vector per text in input order.
func (s *Store) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vecs, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("%w: %d vectors for %d texts", domain.ErrEmbeddingProvider, len(vecs), len(texts))
	}
	return vecs, nil
}

// Upsert stores records and returns their ids in input order.
// Every vector must match the collection dimension; when the index does not
// know its dimension yet, all vectors must at least agree with each other.
func (s *Store) Upsert(ctx context.Context, records []Record) ([]string, error) {
	if len(records) == 0 {
		return nil, nil
	}
	want := s.index.Dimension()
	if want == 0 {
		want = len(records[0].Vector)
	}
	out := make([]domain.VectorRecord, len(records))
	ids := make([]string, len(records))
	for i, r := range records {
		if len(r.Vector) != want || want == 0 {
			return nil, fmt.Errorf("%w: record %d has %d values, collection expects %d",
				domain.ErrDimensionMismatch, i, len(r.Vector), want)
		}
		id := r.ID
		if id == "" {
			id = uuid.NewString()
		}
		ids[i] = id
		out[i] = domain.VectorRecord{ID: id, Vector: r.Vector, Payload: r.Payload}
	}
	if err := s.index.Upsert(ctx, out); err != nil {
		return nil, fmt.Errorf("upsert %d records: %w", len(out), err)
	}
	s.logger.Debug("Upserted vectors", map[string]interface{}{"count": len(out), "dimension": want})
	return ids, nil
}

// AddTexts embeds texts and stores each with payload {"text": text} plus the
// shared metadata. Per-text payload fields may be supplied through extra,
// which is indexed like texts and may be nil.
func (s *Store) AddTexts(ctx context.Context, texts []string, metadata map[string]any, extra []map[string]any) ([]string, error) {
	if extra != nil && len(extra) != len(texts) {
		return nil, fmt.Errorf("%w: %d payloads for %d texts", domain.ErrInvalidArgument, len(extra), len(texts))
	}
	vecs, err := s.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	records := make([]Record, len(texts))
	for i, t := range texts {
		payload := make(map[string]any, len(metadata)+2)
		for k, v := range metadata {
			payload[k] = v
		}
		if extra != nil {
			for k, v := range extra[i] {
				payload[k] = v
			}
		}
		payload[PayloadText] = t
		records[i] = Record{Vector: vecs[i], Payload: payload}
	}
	return s.Upsert(ctx, records)
}

// Search embeds the query with the store's embedder and returns at most topK
// results ordered by descending cosine similarity. Index failures are
// wrapped in domain.ErrRetrieval.
func (s *Store) Search(ctx context.Context, query string, topK int) ([]domain.SearchResult, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: top_k must be a positive integer, got %d", domain.ErrInvalidArgument, topK)
	}
	vecs, err := s.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	results, err := s.index.Search(ctx, vecs[0], topK)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrRetrieval, err)
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// InitCollection recreates the index collection, deleting all stored vectors.
// A non-positive size uses the embedder's dimension.
func (s *Store) InitCollection(ctx context.Context, vectorSize int) error {
	if vectorSize <= 0 {
		vectorSize = s.embedder.Dimension()
	}
	if vectorSize <= 0 {
		return fmt.Errorf("%w: vector size unknown for embedder %s", domain.ErrInvalidArgument, s.embedder.Name())
	}
	if err := s.index.Init(ctx, vectorSize); err != nil {
		return fmt.Errorf("init collection: %w", err)
	}
	s.logger.Info("Collection initialized", map[string]interface{}{"vector_size": vectorSize, "model": s.embedder.Model()})
	return nil
}

// Texts extracts the chunk texts from search results.
func Texts(results []domain.SearchResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Text
	}
	return out
}
