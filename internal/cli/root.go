// Package cli implements the aniverse commands.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aniverse/backend/internal/config"
	"github.com/aniverse/backend/internal/logger"
	"github.com/aniverse/backend/internal/store"
)

var (
	dbPath    string
	indexPath string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "aniverse",
	Short: "Anime/manga catalog server with vector recommendations",
	Long:  "AniVerse backend: catalog search, personal lists, embedding-based recommendations, and an LLM assistant. SQLite-backed, single binary.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $ANIVERSE_DB or ~/.aniverse/aniverse.db)")
	RootCmd.PersistentFlags().StringVarP(&indexPath, "index", "i", "", "Embedding index path (default: $ANIVERSE_INDEX or ~/.aniverse/vectors.idx)")
}

func loadConfig() config.Config {
	cfg := config.Load()
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if indexPath != "" {
		cfg.IndexPath = indexPath
	}
	return cfg
}

func newLogger(cfg config.Config) *logger.Logger {
	log, err := logger.New(cfg.Mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: init logger: %v\n", err)
		os.Exit(1)
	}
	return log
}

func openStore(cfg config.Config) (*store.SQLiteStore, error) {
	return store.NewSQLiteStore(cfg.DBPath)
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
