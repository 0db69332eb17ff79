package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"convrag/internal/chunker"
	"convrag/internal/extract"
	"convrag/internal/service"
)

var ingestStrategy string

var ingestCmd = &cobra.Command{
	Use:   "ingest [file...]",
	Short: "Chunk, embed and store .txt and .pdf documents",
	Long: `Ingests documents into the configured vector store and records chunk
metadata in the database when one is configured. With the in-memory vector
store the vectors are lost when the command exits; use qdrant for ingestion
that outlives the process.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestStrategy, "strategy", "s", "", "chunking strategy: fixed or semantic (default chunker.strategy)")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	a, err := buildApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.VectorStore.Type == "memory" || cfg.VectorStore.Type == "" {
		logger.Warn("In-memory vector store: ingested vectors are not kept after exit", nil)
	}
	results, err := ingestFiles(cmd, a.service, expandPaths(args), ingestStrategy, cfg.Chunker.Strategy, cfg.Chunker.Options())
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

type ingestOutput struct {
	FileName    string   `json:"file_name"`
	TotalChunks int      `json:"total_chunks"`
	VectorIDs   []string `json:"vector_ids"`
}

func ingestFiles(cmd *cobra.Command, svc *service.RAGService, paths []string, strategy, fallback string, opts chunker.Options) ([]ingestOutput, error) {
	if strategy == "" {
		strategy = fallback
	}
	s, err := chunker.ParseStrategy(strategy)
	if err != nil {
		return nil, err
	}
	out := make([]ingestOutput, 0, len(paths))
	for _, p := range paths {
		text, err := extract.File(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		res, err := svc.Ingest(cmd.Context(), service.IngestRequest{
			FileName: filepath.Base(p),
			Text:     text,
			Strategy: s,
			Options:  &opts,
			Metadata: map[string]any{"source_path": p},
		})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		out = append(out, ingestOutput{FileName: res.FileName, TotalChunks: res.TotalChunks, VectorIDs: res.VectorIDs})
	}
	return out, nil
}

// expandPaths resolves glob patterns; arguments that match nothing are kept
// so that the missing file is reported.
func expandPaths(args []string) []string {
	var out []string
	for _, p := range args {
		matches, _ := filepath.Glob(p)
		if matches == nil {
			matches = []string{p}
		}
		out = append(out, matches...)
	}
	return out
}
