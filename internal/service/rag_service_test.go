package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"convrag/internal/chunker"
	"convrag/internal/domain"
	"convrag/internal/embedding/hashing"
	"convrag/internal/memory"
	"convrag/internal/repository"
	"convrag/internal/vectorstore"
	vsmemory "convrag/internal/vectorstore/memory"
)

type fakeGenerator struct {
	answer  string
	err     error
	calls   int
	query   string
	context []string
	history []domain.ChatMessage
}

func (g *fakeGenerator) Generate(_ context.Context, query string, chunks []string, history []domain.ChatMessage) (string, error) {
	g.calls++
	g.query, g.context, g.history = query, chunks, history
	return g.answer, g.err
}

type failingRetriever struct{ err error }

func (r failingRetriever) Search(context.Context, string, int) ([]domain.SearchResult, error) {
	return nil, r.err
}

type recordingRetriever struct{ topK int }

func (r *recordingRetriever) Search(_ context.Context, _ string, topK int) ([]domain.SearchResult, error) {
	r.topK = topK
	return []domain.SearchResult{{ID: "1", Text: "only chunk", Score: 1}}, nil
}

type brokenHistory struct{ *memory.Memory }

func (brokenHistory) History(context.Context, string) ([]domain.ChatMessage, error) {
	return nil, errors.New("redis: connection refused")
}

type recordingChunks struct{ batches []domain.ChunkBatch }

func (r *recordingChunks) SaveChunks(_ context.Context, b domain.ChunkBatch) error {
	r.batches = append(r.batches, b)
	return nil
}

func (r *recordingChunks) ChunksByFile(_ context.Context, fileName string) ([]repository.ChunkRecord, error) {
	var out []repository.ChunkRecord
	for _, b := range r.batches {
		if b.FileName != fileName {
			continue
		}
		for i, c := range b.Chunks {
			out = append(out, repository.ChunkRecord{
				TextUnit: domain.TextUnit{Index: i, Content: c},
				FileName: b.FileName,
				VectorID: b.VectorIDs[i],
				Strategy: b.Strategy,
			})
		}
	}
	return out, nil
}

type fixture struct {
	svc    *RAGService
	store  *vectorstore.Store
	memory *memory.Memory
	gen    *fakeGenerator
	chunks *recordingChunks
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := vectorstore.NewStore(hashing.NewEmbedder(256), vsmemory.NewStorage(), nil)
	mem := memory.New(memory.NewLocalStore(), 3)
	gen := &fakeGenerator{answer: "an answer"}
	chunks := &recordingChunks{}
	svc := NewRAGService(Deps{Retriever: store, Indexer: store, Memory: mem, Generator: gen, Chunks: chunks})
	return &fixture{svc: svc, store: store, memory: mem, gen: gen, chunks: chunks}
}

func TestAsk_AppendsTurnAfterSuccess(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.store.AddTexts(ctx, []string{"redis stores chat history", "qdrant stores vectors"}, nil, nil)
	require.NoError(t, err)
	require.NoError(t, f.memory.AppendBatch(ctx, "s1", []domain.ChatMessage{
		{Role: domain.RoleUser, Content: "hi"},
		{Role: domain.RoleAssistant, Content: "hello"},
	}))

	ans, err := f.svc.Ask(ctx, AskRequest{SessionID: "s1", Query: "where is chat history stored", TopK: 1})
	require.NoError(t, err)
	assert.Equal(t, "an answer", ans.Answer)
	assert.Equal(t, []string{"redis stores chat history"}, ans.ContextChunks)

	assert.Equal(t, "where is chat history stored", f.gen.query)
	assert.Equal(t, ans.ContextChunks, f.gen.context)
	assert.Len(t, f.gen.history, 2)

	history, err := f.memory.History(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, domain.ChatMessage{Role: domain.RoleUser, Content: "where is chat history stored"}, history[2])
	assert.Equal(t, domain.ChatMessage{Role: domain.RoleAssistant, Content: "an answer"}, history[3])
}

func TestAsk_RetrievalFailureLeavesMemoryUnchanged(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	gen := &fakeGenerator{answer: "unused"}
	svc := NewRAGService(Deps{
		Retriever: failingRetriever{err: errors.New("dial tcp: connection refused")},
		Indexer:   f.store,
		Memory:    f.memory,
		Generator: gen,
	})
	require.NoError(t, f.memory.Append(ctx, "s1", domain.RoleUser, "earlier"))

	_, err := svc.Ask(ctx, AskRequest{SessionID: "s1", Query: "anything"})
	assert.ErrorIs(t, err, domain.ErrRetrieval)
	assert.Equal(t, 0, gen.calls)

	history, err := f.memory.History(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []domain.ChatMessage{{Role: domain.RoleUser, Content: "earlier"}}, history)
}

func TestAsk_EmbeddingFailureIsRetrievalError(t *testing.T) {
	f := newFixture(t)
	svc := NewRAGService(Deps{
		Retriever: failingRetriever{err: domain.ErrEmbeddingProvider},
		Memory:    f.memory,
		Generator: f.gen,
	})
	_, err := svc.Ask(context.Background(), AskRequest{SessionID: "s1", Query: "q"})
	assert.ErrorIs(t, err, domain.ErrRetrieval)
	assert.ErrorIs(t, err, domain.ErrEmbeddingProvider)
}

func TestAsk_GenerationFailureLeavesMemoryUnchanged(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.gen.err = errors.New("model overloaded")

	_, err := f.svc.Ask(ctx, AskRequest{SessionID: "s1", Query: "anything"})
	assert.ErrorIs(t, err, domain.ErrGeneration)

	history, err := f.memory.History(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestAsk_HistoryReadFailureAborts(t *testing.T) {
	f := newFixture(t)
	svc := NewRAGService(Deps{Retriever: f.store, Memory: brokenHistory{f.memory}, Generator: f.gen})

	_, err := svc.Ask(context.Background(), AskRequest{SessionID: "s1", Query: "q"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, 0, f.gen.calls)
}

func TestAsk_TopK(t *testing.T) {
	f := newFixture(t)
	r := &recordingRetriever{}
	svc := NewRAGService(Deps{Retriever: r, Memory: f.memory, Generator: f.gen})
	ctx := context.Background()

	_, err := svc.Ask(ctx, AskRequest{SessionID: "s", Query: "q"})
	require.NoError(t, err)
	assert.Equal(t, DefaultTopK, r.topK)

	_, err = svc.Ask(ctx, AskRequest{SessionID: "s", Query: "q", TopK: 7})
	require.NoError(t, err)
	assert.Equal(t, 7, r.topK)

	_, err = svc.Ask(ctx, AskRequest{SessionID: "s", Query: "q", TopK: -1})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestAsk_RequiresSessionAndQuery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Ask(ctx, AskRequest{Query: "q"})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	_, err = f.svc.Ask(ctx, AskRequest{SessionID: "s", Query: "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	assert.Equal(t, 0, f.gen.calls)
}

func TestIngest_StoresChunksInOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	opts := chunker.Options{ChunkSize: 3, Overlap: 1}

	res, err := f.svc.Ingest(ctx, IngestRequest{
		FileName: "abc.txt",
		Text:     "A.B.C.",
		Options:  &opts,
		Metadata: map[string]any{"author": "ops"},
	})
	require.NoError(t, err)
	assert.Equal(t, "abc.txt", res.FileName)
	assert.Equal(t, 3, res.TotalChunks)
	require.Len(t, res.VectorIDs, 3)

	require.Len(t, f.chunks.batches, 1)
	batch := f.chunks.batches[0]
	assert.Equal(t, []string{"A.B", "B.C", "C."}, batch.Chunks)
	assert.Equal(t, res.VectorIDs, batch.VectorIDs)
	assert.Equal(t, "fixed", batch.Strategy)

	for i, chunk := range batch.Chunks {
		hits, err := f.store.Search(ctx, chunk, 3)
		require.NoError(t, err)
		var found bool
		for _, h := range hits {
			if h.ID == res.VectorIDs[i] {
				found = true
				assert.Equal(t, chunk, h.Text)
				assert.Equal(t, i, h.Payload["chunk_index"])
				assert.Equal(t, "abc.txt", h.Payload["file_name"])
				assert.Equal(t, "ops", h.Payload["author"])
			}
		}
		assert.True(t, found, "chunk %d not retrievable by its id", i)
	}
}

func TestIngest_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Ingest(ctx, IngestRequest{FileName: "x.txt", Text: "text", Strategy: "paragraphs"})
	assert.ErrorIs(t, err, domain.ErrInvalidStrategy)

	_, err = f.svc.Ingest(ctx, IngestRequest{FileName: "x.txt", Text: " \n "})
	assert.ErrorIs(t, err, domain.ErrEmptyInput)
	assert.Empty(t, f.chunks.batches)
}

func TestDocumentChunks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	opts := chunker.Options{ChunkSize: 3, Overlap: 1}
	res, err := f.svc.Ingest(ctx, IngestRequest{FileName: "abc.txt", Text: "A.B.C.", Options: &opts})
	require.NoError(t, err)

	got, err := f.svc.DocumentChunks(ctx, "abc.txt")
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, rec := range got {
		assert.Equal(t, i, rec.Index)
		assert.Equal(t, res.VectorIDs[i], rec.VectorID)
	}
	assert.Equal(t, "C.", got[2].Content)

	got, err = f.svc.DocumentChunks(ctx, "other.txt")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = f.svc.DocumentChunks(ctx, " ")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestDocumentChunks_WithoutDatabase(t *testing.T) {
	store := vectorstore.NewStore(hashing.NewEmbedder(64), vsmemory.NewStorage(), nil)
	svc := NewRAGService(Deps{Retriever: store, Indexer: store, Memory: memory.New(memory.NewLocalStore(), 1), Generator: &fakeGenerator{}})
	got, err := svc.DocumentChunks(context.Background(), "abc.txt")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestHistoryAndClear(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.svc.Ask(ctx, AskRequest{SessionID: "s", Query: "q"})
	require.NoError(t, err)

	history, err := f.svc.History(ctx, "s")
	require.NoError(t, err)
	assert.Len(t, history, 2)

	require.NoError(t, f.svc.ClearHistory(ctx, "s"))
	history, err = f.svc.History(ctx, "s")
	require.NoError(t, err)
	assert.Empty(t, history)
}
