package domain

import "errors"

var (
	// ErrInvalidStrategy is returned for an unknown chunking strategy.
	ErrInvalidStrategy = errors.New("invalid chunking strategy")

	// ErrInvalidArgument is returned when a caller supplied value is out of range.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrEmptyInput is returned when there is no text to chunk.
	ErrEmptyInput = errors.New("empty input")

	// ErrEmbeddingProvider wraps failures of the embedding service.
	ErrEmbeddingProvider = errors.New("embedding provider error")

	// ErrGeneration wraps failures of the language model.
	ErrGeneration = errors.New("generation error")

	// ErrRetrieval wraps failures of the vector index during search.
	ErrRetrieval = errors.New("retrieval error")

	// ErrDimensionMismatch is returned when a vector does not fit the collection.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrUnsupportedFormat is returned for documents that cannot be turned into text.
	ErrUnsupportedFormat = errors.New("unsupported document format")
)
