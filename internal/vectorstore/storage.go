package vectorstore

import (
	"context"

	"convrag/internal/domain"
)

// Index is a cosine-similarity vector index with upsert-by-id and top-k search.
type Index interface {
	// Init (re)creates the collection for vectors of the given size, dropping existing data.
	Init(ctx context.Context, dimension int) error
	// Upsert stores records; a record whose ID already exists replaces it.
	Upsert(ctx context.Context, records []domain.VectorRecord) error
	// Search returns at most topK records ordered by descending similarity.
	Search(ctx context.Context, vector []float32, topK int) ([]domain.SearchResult, error)
	// Dimension is the collection vector size, or 0 when not yet known.
	Dimension() int
}

// Payload keys written for every stored chunk.
const (
	PayloadText = "text"
	// payloadLegacyText is the key used by older ingestions.
	payloadLegacyText = "chunk"
)

// PayloadString reads a string field from a payload, tolerating missing keys.
func PayloadString(payload map[string]any, key string) string {
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}

// TextOf returns the chunk text stored in a payload.
func TextOf(payload map[string]any) string {
	if t := PayloadString(payload, PayloadText); t != "" {
		return t
	}
	return PayloadString(payload, payloadLegacyText)
}
