// Package chunker splits raw document text into ordered retrievable units.
//
// Two strategies are available. Fixed emits a sliding character window;
// Semantic groups blank-line separated paragraphs into size-bounded chunks.
// All lengths are counted in characters (runes), not bytes.
package chunker

import (
	"fmt"
	"strings"

	"convrag/internal/domain"
)

// Strategy names a chunking algorithm.
type Strategy string

const (
	StrategyFixed    Strategy = "fixed"
	StrategySemantic Strategy = "semantic"
)

// Options configures both strategies. Fields of the strategy not in use are ignored.
type Options struct {
	ChunkSize    int `yaml:"chunk_size" json:"chunk_size"`
	Overlap      int `yaml:"overlap" json:"overlap"`
	MinChunkSize int `yaml:"min_chunk_size" json:"min_chunk_size"`
	MaxChunkSize int `yaml:"max_chunk_size" json:"max_chunk_size"`
}

// DefaultOptions returns 500/50 for fixed and 200/1000 for semantic chunking.
func DefaultOptions() Options {
	return Options{ChunkSize: 500, Overlap: 50, MinChunkSize: 200, MaxChunkSize: 1000}
}

// ParseStrategy validates a strategy name coming from a caller.
func ParseStrategy(name string) (Strategy, error) {
	s := Strategy(strings.ToLower(strings.TrimSpace(name)))
	switch s {
	case StrategyFixed, StrategySemantic:
		return s, nil
	}
	return "", fmt.Errorf("%w: %q (use %q or %q)", domain.ErrInvalidStrategy, name, StrategyFixed, StrategySemantic)
}

// Chunk routes text to the requested strategy. Text that is empty after
// trimming yields domain.ErrEmptyInput for every strategy.
func Chunk(text string, strategy Strategy, opts Options) ([]string, error) {
	s, err := ParseStrategy(string(strategy))
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, domain.ErrEmptyInput
	}
	switch s {
	case StrategyFixed:
		if opts.ChunkSize <= 0 || opts.Overlap < 0 {
			return nil, fmt.Errorf("%w: chunk_size must be positive and overlap non-negative", domain.ErrInvalidArgument)
		}
		return Fixed(text, opts.ChunkSize, opts.Overlap), nil
	default:
		if opts.MaxChunkSize <= 0 || opts.MinChunkSize < 0 {
			return nil, fmt.Errorf("%w: max_chunk_size must be positive and min_chunk_size non-negative", domain.ErrInvalidArgument)
		}
		return Semantic(text, opts.MinChunkSize, opts.MaxChunkSize), nil
	}
}
