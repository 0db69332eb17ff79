// Package api exposes the RAG service over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"convrag/internal/chunker"
	"convrag/internal/domain"
	"convrag/internal/extract"
	"convrag/internal/observability"
	"convrag/internal/repository"
	"convrag/internal/service"
)

// MaxUploadBytes bounds the size of an uploaded document.
const MaxUploadBytes = 32 << 20

// RAG is the service surface used by the handlers.
type RAG interface {
	Ask(ctx context.Context, req service.AskRequest) (*domain.Answer, error)
	Ingest(ctx context.Context, req service.IngestRequest) (*service.IngestResult, error)
	History(ctx context.Context, sessionID string) ([]domain.ChatMessage, error)
	ClearHistory(ctx context.Context, sessionID string) error
	DocumentChunks(ctx context.Context, fileName string) ([]repository.ChunkRecord, error)
}

// Handler handles API requests.
type Handler struct {
	rag          RAG
	chunkOptions chunker.Options
	logger       observability.Logger
}

// NewHandler creates a handler. Uploaded documents are chunked with opts.
func NewHandler(rag RAG, opts chunker.Options, logger observability.Logger) *Handler {
	if logger == nil {
		logger = observability.NoopLogger{}
	}
	return &Handler{rag: rag, chunkOptions: opts, logger: logger.WithPrefix("api")}
}

// NewRouter builds the gin engine with all routes registered. A positive
// timeout bounds every request's context.
func NewRouter(h *Handler, timeout time.Duration) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), h.requestLogger(), requestTimeout(timeout))
	h.RegisterRoutes(r)
	return r
}

// RegisterRoutes registers all API routes.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/health", h.health)
	r.POST("/ingest/upload", h.upload)
	r.GET("/documents/:file_name/chunks", h.documentChunks)

	rag := r.Group("/rag")
	rag.POST("/query", h.query)
	rag.GET("/history/:session_id", h.history)
	rag.DELETE("/history/:session_id", h.clearHistory)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "API is running"})
}

type queryRequest struct {
	UserID     string `json:"user_id" binding:"required"`
	Query      string `json:"query" binding:"required"`
	MaxResults int    `json:"max_results"`
}

func (h *Handler) query(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}
	ans, err := h.rag.Ask(c.Request.Context(), service.AskRequest{
		SessionID: req.UserID,
		Query:     req.Query,
		TopK:      req.MaxResults,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ans)
}

func (h *Handler) upload(c *gin.Context) {
	strategy, err := chunker.ParseStrategy(c.DefaultQuery("chunk_strategy", string(chunker.StrategyFixed)))
	if err != nil {
		h.respondError(c, err)
		return
	}
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "missing file field"})
		return
	}
	if header.Size > MaxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"detail": "file too large"})
		return
	}
	f, err := header.Open()
	if err != nil {
		h.respondError(c, err)
		return
	}
	defer f.Close()

	text, err := extract.Text(header.Filename, f, header.Size)
	if err != nil {
		h.respondError(c, err)
		return
	}
	opts := h.chunkOptions
	res, err := h.rag.Ingest(c.Request.Context(), service.IngestRequest{
		FileName: header.Filename,
		Text:     text,
		Strategy: strategy,
		Options:  &opts,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":      "File '" + res.FileName + "' processed successfully.",
		"total_chunks": res.TotalChunks,
		"vector_ids":   res.VectorIDs,
	})
}

type chunkResponse struct {
	Index     int            `json:"chunk_index"`
	Text      string         `json:"chunk_text"`
	VectorID  string         `json:"vector_id"`
	Strategy  string         `json:"chunk_strategy"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

func (h *Handler) documentChunks(c *gin.Context) {
	fileName := c.Param("file_name")
	records, err := h.rag.DocumentChunks(c.Request.Context(), fileName)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if len(records) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"detail": "No chunks stored for '" + fileName + "'"})
		return
	}
	chunks := make([]chunkResponse, len(records))
	for i, r := range records {
		chunks[i] = chunkResponse{
			Index:     r.Index,
			Text:      r.Content,
			VectorID:  r.VectorID,
			Strategy:  r.Strategy,
			Metadata:  r.Metadata,
			CreatedAt: r.CreatedAt,
		}
	}
	c.JSON(http.StatusOK, gin.H{"file_name": fileName, "chunks": chunks})
}

func (h *Handler) history(c *gin.Context) {
	sessionID := c.Param("session_id")
	msgs, err := h.rag.History(c.Request.Context(), sessionID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": sessionID, "messages": msgs})
}

func (h *Handler) clearHistory(c *gin.Context) {
	if err := h.rag.ClearHistory(c.Request.Context(), c.Param("session_id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// respondError maps domain errors to status codes.
func (h *Handler) respondError(c *gin.Context, err error) {
	status, detail := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", map[string]interface{}{
			"path":   c.FullPath(),
			"status": status,
			"error":  err.Error(),
		})
	}
	c.JSON(status, gin.H{"detail": detail})
}

// StatusFor returns the HTTP status and client-facing detail for err.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidStrategy),
		errors.Is(err, domain.ErrInvalidArgument),
		errors.Is(err, domain.ErrEmptyInput),
		errors.Is(err, domain.ErrUnsupportedFormat):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrRetrieval), errors.Is(err, domain.ErrEmbeddingProvider):
		return http.StatusBadGateway, "Vector search failed"
	case errors.Is(err, domain.ErrGeneration):
		return http.StatusBadGateway, "Answer generation failed"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "Request timed out"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		h.logger.Debug("Handled request", map[string]interface{}{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
		})
	}
}

func requestTimeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
