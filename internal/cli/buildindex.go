package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aniverse/backend/internal/embedding"
	"github.com/aniverse/backend/internal/ingest"
)

func init() {
	cmd := &cobra.Command{
		Use:   "build-index",
		Short: "Rebuild the embedding index from the catalog",
		Long:  "Embed every catalog entry with a usable synopsis and rewrite the vector index. Run after every ingest; there is no incremental update.",
		Run:   runBuildIndex,
	}

	RootCmd.AddCommand(cmd)
}

func runBuildIndex(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	log := newLogger(cfg)
	defer log.Sync()

	s, err := openStore(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	embedder := embedding.NewFromEnv()
	count, err := ingest.BuildIndex(cmd.Context(), log, s, embedder, cfg.IndexPath)
	if err != nil {
		exitErr("build index", err)
	}
	fmt.Printf("indexed %d vectors at %s\n", count, cfg.IndexPath)
}
