package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aniverse/backend/internal/ingest"
	"github.com/aniverse/backend/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "ingest [dataset.csv]",
		Short: "Load a catalog CSV dump into the database",
		Long:  "Load a MyAnimeList-style CSV export into the catalog. Rerun build-index afterwards so the embedding index matches.",
		Args:  cobra.ExactArgs(1),
		Run:   runIngest,
	}

	cmd.Flags().String("media", "anime", "Media type of the dataset: anime or manga")
	cmd.Flags().Int("limit", 0, "Load at most N entries (0 = all)")

	RootCmd.AddCommand(cmd)
}

func runIngest(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	log := newLogger(cfg)
	defer log.Sync()

	mediaFlag, _ := cmd.Flags().GetString("media")
	limit, _ := cmd.Flags().GetInt("limit")

	media := model.MediaType(mediaFlag)
	if media != model.MediaAnime && media != model.MediaManga {
		exitErr("ingest", fmt.Errorf("media must be anime or manga, got %q", mediaFlag))
	}

	s, err := openStore(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	count, err := ingest.LoadCSV(cmd.Context(), log, s, args[0], media, limit)
	if err != nil {
		exitErr("ingest", err)
	}
	fmt.Printf("loaded %d %s entries\n", count, media)
}
