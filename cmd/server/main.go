package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/recipecast/api/internal/client"
	"github.com/recipecast/api/internal/config"
	"github.com/recipecast/api/internal/handler"
	"github.com/recipecast/api/internal/logger"
	"github.com/recipecast/api/internal/middleware"
	"github.com/recipecast/api/internal/ratelimit"
	"github.com/recipecast/api/internal/service"
	"github.com/recipecast/api/internal/storage"
	ws "github.com/recipecast/api/internal/websocket"
	"github.com/recipecast/api/internal/worker"
)

func main() {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	log := logger.New(logger.Options{
		Development: cfg.Server.IsDevelopment(),
		Level:       cfg.Server.LogLevel,
	})

	// Scratch storage must be usable before any job is accepted
	store := storage.NewScratchStore(cfg.Media.TempDir, logger.Component(log, "storage"))
	if err := store.EnsureReady(); err != nil {
		log.WithError(err).Fatal("scratch storage unavailable")
	}

	limiter, closeLimiter := newLimiter(cfg, log)
	defer closeLimiter()

	validate := validator.New()

	// Initialize external clients
	downloader := client.NewDownloader(cfg.Media.DownloaderPath)
	if !downloader.Available() {
		log.WithField("path", downloader.Path()).Warn("downloader binary not found on PATH, transcription starts will fail")
	}
	assemblyClient := client.NewAssemblyAIClient(&cfg.AssemblyAI)
	llmClient := client.NewLLMClient(&cfg.OpenAI)
	youtubeClient := client.NewYouTubeClient(&cfg.YouTube)

	for name, p := range map[string]handler.Configurable{
		"ASSEMBLY_AI_API_KEY": assemblyClient,
		"OPENAI_API_KEY":      llmClient,
		"YOUTUBE_API_KEY":     youtubeClient,
	} {
		if !p.IsConfigured() {
			log.WithField("setting", name).Warn("credential not set, dependent endpoints will fail")
		}
	}

	// Initialize services
	audioService := service.NewAudioService(downloader, store, logger.Component(log, "audio"))
	enrichmentService := service.NewEnrichmentService(llmClient, limiter, logger.Component(log, "enrichment"))
	transcriptionService := service.NewTranscriptionService(audioService, assemblyClient, enrichmentService, store, logger.Component(log, "transcription"))

	poller := worker.NewStatusPoller(transcriptionService, cfg.Poll.Interval, logger.Component(log, "poller"))
	stream := ws.NewStream(poller, logger.Component(log, "stream"))

	// Initialize handlers
	handlers := handler.Handlers{
		Transcription: handler.NewTranscriptionHandler(transcriptionService, stream),
		QA:            handler.NewQAHandler(transcriptionService, validate),
		YouTube:       handler.NewYouTubeHandler(youtubeClient),
		Health: handler.NewHealthHandler(map[string]handler.Configurable{
			"assemblyai": assemblyClient,
			"openai":     llmClient,
			"youtube":    youtubeClient,
		}),
	}

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler:          customErrorHandler,
		DisableStartupMessage: !cfg.Server.IsDevelopment(),
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(middleware.RequestLogger(logger.Component(log, "http"), log.IsLevelEnabled(logrus.DebugLevel)))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	handler.Register(app, handlers)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.WithError(err).Error("Server shutdown error")
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.WithFields(logrus.Fields{"addr": addr, "scratch_dir": store.Dir()}).Info("Server starting")
	if err := app.Listen(addr); err != nil {
		log.WithError(err).Fatal("Server error")
	}
}

// newLimiter builds the process-wide language-model rate limiter.
func newLimiter(cfg *config.Config, log *logrus.Logger) (ratelimit.Limiter, func()) {
	if cfg.RateLimit.Backend != "redis" {
		return ratelimit.NewWindow(cfg.RateLimit.LLMPerWindow, cfg.RateLimit.WindowDuration), func() {}
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.WithError(err).Warn("Redis not available, rate limiting will allow calls until it is")
	}

	limiter := ratelimit.NewRedisWindow(redisClient, cfg.RateLimit.LLMPerWindow, cfg.RateLimit.WindowDuration, logger.Component(log, "ratelimit"))
	return limiter, func() { redisClient.Close() }
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
