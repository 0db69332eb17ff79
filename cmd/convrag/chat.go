package main

import (
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"convrag/internal/observability"
	"convrag/internal/tui"
)

var (
	chatSession string
	chatTopK    int
	chatLogFile string
)

var chatCmd = &cobra.Command{
	Use:   "chat [file...]",
	Short: "Chat with the indexed documents in the terminal",
	Long: `Opens an interactive chat session. Files given as arguments are ingested
first, which makes the command usable with the in-memory vector store.`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatSession, "session", "cli", "session id whose history is used and extended")
	chatCmd.Flags().IntVarP(&chatTopK, "top-k", "k", 3, "number of chunks retrieved per question")
	chatCmd.Flags().StringVar(&chatLogFile, "log-file", "", "write logs to this file (logs are discarded otherwise)")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// Log lines on stderr would corrupt the terminal UI.
	var logger observability.Logger = observability.NoopLogger{}
	if chatLogFile != "" {
		f, err := os.OpenFile(chatLogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		defer f.Close()
		logger = observability.NewStandardLoggerTo(f, "convrag", observability.ParseLevel(cfg.Log.Level))
	}
	a, err := buildApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if len(args) > 0 {
		results, err := ingestFiles(cmd, a.service, expandPaths(args), "", cfg.Chunker.Strategy, cfg.Chunker.Options())
		if err != nil {
			return err
		}
		for _, r := range results {
			cmd.Printf("Ingested %s: %d chunks\n", r.FileName, r.TotalChunks)
		}
	}

	m := tui.New(a.service, tui.Options{SessionID: chatSession, TopK: chatTopK, Timeout: cfg.RequestTimeout()})
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
