package main

import (
	"context"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"vidsentry/internal/api"
	"vidsentry/internal/broadcast"
	"vidsentry/internal/config"
	"vidsentry/internal/gemini"
	"vidsentry/internal/logging"
	"vidsentry/internal/pipeline"
	"vidsentry/internal/service/chat"
	"vidsentry/internal/worker"
)

func main() {
	logging.Init()

	cfgPath := os.Getenv("VIDSENTRY_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if cfg.GeminiAPIKey() == "" {
		log.Fatal().Msg("GEMINI_API_KEY is not set")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	files, err := gemini.NewFileService(ctx, cfg.GeminiAPIKey(), cfg.GeminiModel())
	if err != nil {
		log.Fatal().Err(err).Msg("init gemini file service")
	}

	hub := broadcast.NewHub()
	pipe := pipeline.New(files, hub, cfg.BasicConfig.UploadDir)

	cleanInterval := time.Duration(cfg.BasicConfig.TempCleanInterval) * time.Minute
	if cleanInterval <= 0 {
		cleanInterval = pipeline.DefaultTempFileCleanupInterval
	}
	tempTTL := time.Duration(cfg.BasicConfig.TempFileTTL) * time.Minute
	if tempTTL <= 0 {
		tempTTL = pipeline.DefaultTempFileTTL
	}
	pipeline.NewCleaner(cfg.BasicConfig.UploadDir, tempTTL).Start(ctx, cleanInterval)

	chatService, err := chat.NewService(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("init chat service")
	}

	dispatcher := worker.NewDispatcher(worker.Config{
		MinWorkers:  cfg.BasicConfig.MinWorkers,
		MaxWorkers:  cfg.BasicConfig.MaxWorkers,
		QueueSize:   cfg.BasicConfig.QueueSize,
		IdleTimeout: time.Duration(cfg.BasicConfig.WorkerIdleTimeout) * time.Minute,
	}, pipe)

	handlers := api.NewHandler(dispatcher, chatService, hub)

	router := gin.Default()
	handlers.RegisterRoutes(router)

	addr := cfg.BasicConfig.ServerAddress
	if addr == "" {
		addr = ":3000"
	}
	log.Info().Str("addr", addr).Msg("starting server")
	if err := router.Run(addr); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
