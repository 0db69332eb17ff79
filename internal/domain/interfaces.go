package domain

import "context"

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Valid reports whether r is one of the known chat roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem, RoleTool:
		return true
	}
	return false
}

// TextUnit is one chunk produced from a source document.
type TextUnit struct {
	Index   int
	Content string
}

// VectorRecord is a stored embedding with its payload.
type VectorRecord struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// ChatMessage is a single entry of a session history.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// SearchResult represents a retrieved chunk with its similarity score.
type SearchResult struct {
	ID      string
	Text    string
	Score   float64
	Payload map[string]any
}

// Answer is the result of one conversational query.
type Answer struct {
	Answer        string   `json:"answer"`
	ContextChunks []string `json:"context_chunks"`
}

// Generator produces an answer from a query, retrieved context and prior turns.
type Generator interface {
	Generate(ctx context.Context, query string, context []string, history []ChatMessage) (string, error)
}

// ChunkBatch is the ordered output of one ingestion, ready for persistence.
// Chunks[i] was stored under VectorIDs[i].
type ChunkBatch struct {
	FileName  string
	Chunks    []string
	VectorIDs []string
	Strategy  string
	Metadata  map[string]any
}

// ChunkWriter persists chunk metadata for later lookup by file name.
type ChunkWriter interface {
	SaveChunks(ctx context.Context, batch ChunkBatch) error
}
