package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"convrag/internal/domain"
)

func rec(id string, text string, v ...float32) domain.VectorRecord {
	return domain.VectorRecord{ID: id, Vector: v, Payload: map[string]any{"text": text}}
}

func TestStorage_SearchOrdersByCosine(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()
	require.NoError(t, s.Init(ctx, 2))
	require.NoError(t, s.Upsert(ctx, []domain.VectorRecord{
		rec("1", "east", 1, 0),
		rec("2", "north", 0, 1),
		rec("3", "north-east", 1, 1),
		rec("4", "west", -1, 0),
	}))

	res, err := s.Search(ctx, []float32{0.9, 0.1}, 3)
	require.NoError(t, err)
	require.Len(t, res, 3)
	assert.Equal(t, []string{"east", "north-east", "north"}, []string{res[0].Text, res[1].Text, res[2].Text})
	for i := 1; i < len(res); i++ {
		assert.GreaterOrEqual(t, res[i-1].Score, res[i].Score)
	}
}

func TestStorage_CosineIgnoresMagnitude(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()
	require.NoError(t, s.Upsert(ctx, []domain.VectorRecord{
		rec("big", "big", 10, 1),
		rec("aligned", "aligned", 0.1, 0.1),
	}))
	res, err := s.Search(ctx, []float32{1, 1}, 1)
	require.NoError(t, err)
	assert.Equal(t, "aligned", res[0].ID)
}

func TestStorage_UpsertOverwritesByID(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()
	require.NoError(t, s.Upsert(ctx, []domain.VectorRecord{rec("a", "old", 1, 0)}))
	require.NoError(t, s.Upsert(ctx, []domain.VectorRecord{rec("a", "new", 0, 1)}))

	assert.Equal(t, 1, s.Len())
	res, err := s.Search(ctx, []float32{0, 1}, 5)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "new", res[0].Text)
}

func TestStorage_DimensionMismatch(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()
	require.NoError(t, s.Init(ctx, 3))

	err := s.Upsert(ctx, []domain.VectorRecord{rec("a", "x", 1, 0)})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	assert.Equal(t, 0, s.Len())

	_, err = s.Search(ctx, []float32{1}, 1)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestStorage_InvalidTopK(t *testing.T) {
	s := NewStorage()
	_, err := s.Search(context.Background(), []float32{1}, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestStorage_InitDropsData(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()
	require.NoError(t, s.Upsert(ctx, []domain.VectorRecord{rec("a", "x", 1, 0)}))
	require.NoError(t, s.Init(ctx, 2))
	assert.Equal(t, 0, s.Len())
	assert.Error(t, s.Init(ctx, 0))
}
