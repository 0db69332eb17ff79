package main

import (
	"github.com/spf13/cobra"
)

var collectionSize int

var initCollectionCmd = &cobra.Command{
	Use:   "init-collection",
	Short: "Recreate the vector collection, deleting all stored vectors",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := buildApp(cmd.Context(), cfg, newLogger(cfg))
		if err != nil {
			return err
		}
		defer a.Close()

		size := collectionSize
		if size <= 0 && cfg.VectorStore.Qdrant != nil {
			size = cfg.VectorStore.Qdrant.VectorSize
		}
		if err := a.store.InitCollection(cmd.Context(), size); err != nil {
			return err
		}
		cmd.Println("Collection initialized")
		return nil
	},
}

func init() {
	initCollectionCmd.Flags().IntVar(&collectionSize, "size", 0, "vector size (default vector_store.qdrant.vector_size, then the embedder dimension)")
	rootCmd.AddCommand(initCollectionCmd)
}
