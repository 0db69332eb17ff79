package memory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"convrag/internal/domain"
	"convrag/internal/vectorstore"
)

// Storage is a simple in-memory vector index using brute-force cosine similarity.
// If Init was not called, the first upsert fixes the dimension.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	records   []domain.VectorRecord
	byID      map[string]int
}

func NewStorage() *Storage { return &Storage{byID: make(map[string]int)} }

func (s *Storage) Init(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimension = dimension
	s.records = nil
	s.byID = make(map[string]int)
	return nil
}

func (s *Storage) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimension
}

func (s *Storage) Upsert(_ context.Context, records []domain.VectorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dim := s.dimension
	for _, r := range records {
		if r.ID == "" {
			return fmt.Errorf("%w: record without id", domain.ErrInvalidArgument)
		}
		if dim == 0 {
			dim = len(r.Vector)
		}
		if len(r.Vector) != dim || dim == 0 {
			return fmt.Errorf("%w: got %d, collection has %d", domain.ErrDimensionMismatch, len(r.Vector), dim)
		}
	}
	s.dimension = dim
	for _, r := range records {
		if i, ok := s.byID[r.ID]; ok {
			s.records[i] = r
			continue
		}
		s.byID[r.ID] = len(s.records)
		s.records = append(s.records, r)
	}
	return nil
}

func (s *Storage) Search(_ context.Context, vector []float32, topK int) ([]domain.SearchResult, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: top_k must be positive", domain.ErrInvalidArgument)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.dimension != 0 && len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d, collection has %d", domain.ErrDimensionMismatch, len(vector), s.dimension)
	}
	scores := make([]float64, len(s.records))
	idxs := make([]int, len(s.records))
	for i := range s.records {
		scores[i] = cosine(s.records[i].Vector, vector)
		idxs[i] = i
	}
	// Stable so equal scores keep insertion order.
	sort.SliceStable(idxs, func(a, b int) bool { return scores[idxs[a]] > scores[idxs[b]] })
	if topK > len(idxs) {
		topK = len(idxs)
	}
	results := make([]domain.SearchResult, 0, topK)
	for _, j := range idxs[:topK] {
		r := s.records[j]
		results = append(results, domain.SearchResult{
			ID:      r.ID,
			Text:    vectorstore.TextOf(r.Payload),
			Score:   scores[j],
			Payload: r.Payload,
		})
	}
	return results, nil
}

// Len returns the number of stored records.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
