// Package service ties chunking, retrieval, memory and generation together.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"convrag/internal/chunker"
	"convrag/internal/domain"
	"convrag/internal/observability"
	"convrag/internal/repository"
	"convrag/internal/vectorstore"
)

// DefaultTopK is the number of chunks retrieved when a request does not say.
const DefaultTopK = 3

// Retriever finds the chunks most similar to a query.
type Retriever interface {
	Search(ctx context.Context, query string, topK int) ([]domain.SearchResult, error)
}

// Indexer embeds and stores chunk texts, returning ids in input order.
type Indexer interface {
	AddTexts(ctx context.Context, texts []string, metadata map[string]any, extra []map[string]any) ([]string, error)
}

// Conversation is the bounded per-session message log.
type Conversation interface {
	History(ctx context.Context, sessionID string) ([]domain.ChatMessage, error)
	AppendBatch(ctx context.Context, sessionID string, messages []domain.ChatMessage) error
	Clear(ctx context.Context, sessionID string) error
}

// ChunkStore persists chunk metadata and reads it back per file.
type ChunkStore interface {
	domain.ChunkWriter
	ChunksByFile(ctx context.Context, fileName string) ([]repository.ChunkRecord, error)
}

// AskRequest is one conversational query.
type AskRequest struct {
	SessionID string
	Query     string
	// TopK is the number of chunks to retrieve; 0 means DefaultTopK.
	TopK int
}

// IngestRequest is one document to index.
type IngestRequest struct {
	FileName string
	Text     string
	// Strategy defaults to fixed.
	Strategy chunker.Strategy
	// Options defaults to chunker.DefaultOptions when nil.
	Options  *chunker.Options
	Metadata map[string]any
}

// IngestResult reports what an ingestion stored.
type IngestResult struct {
	FileName    string
	TotalChunks int
	VectorIDs   []string
}

// RAGService answers queries from retrieved context and session history, and
// ingests documents into the vector store.
type RAGService struct {
	retriever Retriever
	indexer   Indexer
	memory    Conversation
	generator domain.Generator
	chunks    ChunkStore
	logger    observability.Logger
}

// Deps are the collaborators of a RAGService. Chunks and Logger are optional.
type Deps struct {
	Retriever Retriever
	Indexer   Indexer
	Memory    Conversation
	Generator domain.Generator
	Chunks    ChunkStore
	Logger    observability.Logger
}

// NewRAGService creates the service.
func NewRAGService(d Deps) *RAGService {
	logger := d.Logger
	if logger == nil {
		logger = observability.NoopLogger{}
	}
	chunks := d.Chunks
	if chunks == nil {
		chunks = repository.NopChunkRepository{}
	}
	return &RAGService{
		retriever: d.Retriever,
		indexer:   d.Indexer,
		memory:    d.Memory,
		generator: d.Generator,
		chunks:    chunks,
		logger:    logger.WithPrefix("rag"),
	}
}

// Ask answers a query in the context of a session. The session log is only
// extended, by the query and the answer together, once generation succeeded.
func (s *RAGService) Ask(ctx context.Context, req AskRequest) (*domain.Answer, error) {
	if strings.TrimSpace(req.SessionID) == "" {
		return nil, fmt.Errorf("%w: session id is required", domain.ErrInvalidArgument)
	}
	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("%w: query is required", domain.ErrInvalidArgument)
	}
	topK := req.TopK
	if topK == 0 {
		topK = DefaultTopK
	}
	if topK < 0 {
		return nil, fmt.Errorf("%w: max_results must be positive, got %d", domain.ErrInvalidArgument, topK)
	}
	start := time.Now()

	history, err := s.memory.History(ctx, req.SessionID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	results, err := s.retriever.Search(ctx, req.Query, topK)
	if err != nil {
		s.logger.Error("Retrieval failed", map[string]interface{}{"session_id": req.SessionID, "error": err.Error()})
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrRetrieval) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrRetrieval, err)
	}
	contextChunks := vectorstore.Texts(results)

	answer, err := s.generator.Generate(ctx, req.Query, contextChunks, history)
	if err != nil {
		s.logger.Error("Generation failed", map[string]interface{}{"session_id": req.SessionID, "error": err.Error()})
		if errors.Is(err, domain.ErrGeneration) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrGeneration, err)
	}

	if err := s.memory.AppendBatch(ctx, req.SessionID, []domain.ChatMessage{
		{Role: domain.RoleUser, Content: req.Query},
		{Role: domain.RoleAssistant, Content: answer},
	}); err != nil {
		return nil, fmt.Errorf("save turn: %w", err)
	}

	s.logger.Info("Answered query", map[string]interface{}{
		"session_id":  req.SessionID,
		"history":     len(history),
		"chunks":      len(contextChunks),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return &domain.Answer{Answer: answer, ContextChunks: contextChunks}, nil
}

// Ingest chunks a document, stores the chunks as vectors and records their
// metadata. VectorIDs[i] is the id of chunk i.
func (s *RAGService) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	strategy := req.Strategy
	if strategy == "" {
		strategy = chunker.StrategyFixed
	}
	opts := chunker.DefaultOptions()
	if req.Options != nil {
		opts = *req.Options
	}
	chunks, err := chunker.Chunk(req.Text, strategy, opts)
	if err != nil {
		return nil, err
	}
	strategy, _ = chunker.ParseStrategy(string(strategy))

	extra := make([]map[string]any, len(chunks))
	for i := range chunks {
		extra[i] = map[string]any{
			"file_name":      req.FileName,
			"chunk_index":    i,
			"chunk_strategy": string(strategy),
		}
	}
	ids, err := s.indexer.AddTexts(ctx, chunks, req.Metadata, extra)
	if err != nil {
		return nil, fmt.Errorf("store chunks: %w", err)
	}

	if err := s.chunks.SaveChunks(ctx, domain.ChunkBatch{
		FileName:  req.FileName,
		Chunks:    chunks,
		VectorIDs: ids,
		Strategy:  string(strategy),
		Metadata:  req.Metadata,
	}); err != nil {
		return nil, fmt.Errorf("save chunk metadata: %w", err)
	}

	s.logger.Info("Ingested document", map[string]interface{}{
		"file_name": req.FileName,
		"strategy":  string(strategy),
		"chunks":    len(chunks),
	})
	return &IngestResult{FileName: req.FileName, TotalChunks: len(chunks), VectorIDs: ids}, nil
}

// DocumentChunks returns the persisted chunks of an ingested file in chunk
// order. It is empty when nothing was stored under that name.
func (s *RAGService) DocumentChunks(ctx context.Context, fileName string) ([]repository.ChunkRecord, error) {
	if strings.TrimSpace(fileName) == "" {
		return nil, fmt.Errorf("%w: file name is required", domain.ErrInvalidArgument)
	}
	return s.chunks.ChunksByFile(ctx, fileName)
}

// History returns the stored messages of a session, oldest first.
func (s *RAGService) History(ctx context.Context, sessionID string) ([]domain.ChatMessage, error) {
	return s.memory.History(ctx, sessionID)
}

// ClearHistory forgets a session.
func (s *RAGService) ClearHistory(ctx context.Context, sessionID string) error {
	return s.memory.Clear(ctx, sessionID)
}
