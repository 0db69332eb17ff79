package extractive

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_PicksMatchingSentencesInOrder(t *testing.T) {
	g := New(2)
	chunks := []string{
		"Qdrant stores the document vectors. The weather was nice.",
		"Redis keeps chat history per session. Chat history is trimmed to the last turns.",
	}
	got, err := g.Generate(context.Background(), "Where is chat history kept?", chunks, nil)
	require.NoError(t, err)
	assert.Equal(t, "Redis keeps chat history per session. Chat history is trimmed to the last turns.", got)
}

func TestGenerate_NoAnswer(t *testing.T) {
	g := New(3)
	ctx := context.Background()

	got, err := g.Generate(ctx, "anything", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, NoAnswer, got)

	got, err = g.Generate(ctx, "pizza recipes", []string{"Qdrant stores vectors."}, nil)
	require.NoError(t, err)
	assert.Equal(t, NoAnswer, got)
}

func TestGenerate_DeduplicatesOverlappingChunks(t *testing.T) {
	g := New(5)
	got, err := g.Generate(context.Background(), "vectors", []string{"Vectors live in Qdrant.", "Vectors live in Qdrant."}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Vectors live in Qdrant.", got)
}

func TestGenerate_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(1).Generate(ctx, "q", []string{"q."}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
