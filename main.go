package main

import (
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"synbot/internal/api"
	"synbot/internal/auth"
	"synbot/internal/cache"
	"synbot/internal/config"
	"synbot/internal/generate"
	"synbot/internal/session"
	"synbot/internal/store"
)

func main() {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfgPath := os.Getenv("SYNBOT_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}
	if cfg.Backend.APIKey == config.DefaultAPIKey {
		logger.Warn().Msg("backend api key is the placeholder, set HF_API_KEY")
	}

	var (
		credentials store.CredentialStore
		transcripts store.TranscriptStore
	)
	switch strings.ToLower(cfg.Storage.Driver) {
	case "json":
		credentials = store.NewJSONCredentialStore(cfg.Storage.UsersFile)
		transcripts = store.NewJSONTranscriptStore(cfg.Storage.HistoryFile)
	default:
		db, err := store.Open(cfg.Storage)
		if err != nil {
			logger.Fatal().Err(err).Msg("open database")
		}
		defer db.Close()
		if err := store.Migrate(db, cfg.Storage.Driver); err != nil {
			logger.Fatal().Err(err).Msg("migrate database")
		}
		credentials = store.NewSQLCredentialStore(db)
		transcripts = store.NewSQLTranscriptStore(db)
	}
	logger.Info().Str("driver", cfg.Storage.Driver).Msg("storage ready")

	cacheClient, err := cache.New(cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("create redis client")
	}
	defer cacheClient.Close()

	generator := generate.NewClient(cfg.Backend)
	controller := session.NewController(credentials, transcripts, generator)
	authManager := auth.NewManager(0, cacheClient)
	handlers := api.NewHandler(controller, authManager, logger)

	router := gin.New()
	router.Use(api.RequestLogger(logger), gin.Recovery())
	handlers.RegisterRoutes(router)

	addr := cfg.BasicConfig.ServerAddress
	if addr == "" {
		addr = ":8090"
	}
	logger.Info().Str("addr", addr).Str("model", cfg.Backend.Model).Msg("starting server")
	if err := router.Run(addr); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}
