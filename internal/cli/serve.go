package cli

import (
	"github.com/spf13/cobra"

	"github.com/aniverse/backend/internal/auth"
	"github.com/aniverse/backend/internal/chat"
	"github.com/aniverse/backend/internal/llm"
	"github.com/aniverse/backend/internal/recommend"
	"github.com/aniverse/backend/internal/server"
	"github.com/aniverse/backend/internal/similarity"
)

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Run:   runServe,
	}

	cmd.Flags().String("addr", "", "Listen address (default: $ANIVERSE_ADDR or :8000)")

	RootCmd.AddCommand(cmd)
}

func runServe(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Addr = addr
	}

	log := newLogger(cfg)
	defer log.Sync()

	s, err := openStore(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	index, err := similarity.Load(cfg.IndexPath)
	if err != nil {
		exitErr("load embedding index", err)
	}
	if index.Len() == 0 {
		log.Warn("embedding index is empty; similarity endpoints will return no results", "path", cfg.IndexPath)
	}

	authSvc := auth.NewService(cfg.JWTSecret, cfg.AccessTokenTTL)
	engine := recommend.NewEngine(log, index, s, s)
	completer := llm.NewClient("", cfg.GroqAPIKey, cfg.LLMModel, cfg.LLMTimeout)
	dispatcher := chat.NewDispatcher(log, completer, s, s)

	srv := server.New(log, s, s, s, authSvc, engine, dispatcher)

	log.Info("listening", "addr", cfg.Addr, "vectors", index.Len())
	if err := srv.Router().Run(cfg.Addr); err != nil {
		exitErr("serve", err)
	}
}
