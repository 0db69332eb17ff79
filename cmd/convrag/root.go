package main

import (
	"github.com/spf13/cobra"

	"convrag/internal/config"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "convrag",
	Short: "Conversational retrieval-augmented generation backend",
	Long: `convrag ingests documents into a vector store and answers questions
from the retrieved chunks and a bounded per-session chat history.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		config.LoadDotEnv()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to YAML config file (default ./config.yaml, then ~/.config/convrag/config.yaml)")
}

func loadConfig() (*config.AppConfig, error) {
	if cfgPath == "" {
		cfg, _, err := config.LoadDefault()
		return cfg, err
	}
	return config.Load(cfgPath)
}
