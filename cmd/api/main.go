package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/support-assistant/backend/internal/api/handlers"
	"github.com/support-assistant/backend/internal/assistant"
	"github.com/support-assistant/backend/internal/evaluation"
	"github.com/support-assistant/backend/internal/indexer"
	"github.com/support-assistant/backend/internal/llm"
	"github.com/support-assistant/backend/internal/metrics"
	"github.com/support-assistant/backend/internal/search"
	"github.com/support-assistant/backend/internal/search/weaviatestore"
	"github.com/support-assistant/backend/internal/session"
	"github.com/support-assistant/backend/internal/storage/sqlite"
	"github.com/support-assistant/backend/pkg/config"
	appLogger "github.com/support-assistant/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting Support Assistant API Server")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	err = sqliteClient.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	store, err := weaviatestore.New(weaviatestore.Config{
		Host:               cfg.Search.Host,
		Scheme:             cfg.Search.Scheme,
		APIKey:             cfg.Search.APIKey,
		Class:              cfg.Search.IndexName,
		EmbeddingModel:     cfg.LLM.EmbeddingModel,
		VectorDimensions:   cfg.Search.VectorDimensions,
		HNSWMaxConnections: cfg.Search.HNSWM,
		HNSWEfConstruction: cfg.Search.HNSWEfConstruct,
		HNSWEf:             cfg.Search.HNSWEfSearch,
		HybridAlpha:        cfg.Search.HybridAlpha,
		Timeout:            time.Duration(cfg.Search.TimeoutSec) * time.Second,
	})
	if err != nil {
		appLogger.Fatal("Failed to create search index client", zap.Error(err))
	}

	err = store.EnsureIndex(context.Background())
	if err != nil {
		appLogger.Fatal("Failed to ensure search index", zap.Error(err))
	}

	llmClient := llm.NewClient(
		cfg.LLM.APIKey,
		cfg.LLM.Model,
		cfg.LLM.EmbeddingModel,
		cfg.LLM.MaxTokens,
		cfg.LLM.TimeoutSec,
	)

	retriever := search.NewRetriever(store, search.RetrieverConfig{
		TopK:              cfg.Search.VectorTopK,
		MaxResults:        cfg.Search.MaxResults,
		RerankerThreshold: cfg.Search.RerankerThreshold,
	})

	idx := indexer.New(store, llmClient, llmClient)

	expiry := time.Duration(cfg.Session.ExpiryMinutes) * time.Minute
	var sessionStore session.Store
	if cfg.Session.Durable {
		redisStore, err := session.NewRedisStore(
			context.Background(),
			fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			cfg.Redis.Password,
			cfg.Redis.DB,
			assistant.SystemPrompt,
			expiry,
		)
		if err != nil {
			appLogger.Fatal("Failed to connect to Redis session store", zap.Error(err))
		}
		defer redisStore.Close()
		sessionStore = redisStore
	} else {
		sessionStore = session.NewMemoryStore(assistant.SystemPrompt, expiry)
	}

	sweeper := cron.New()
	_, err = sweeper.AddFunc(cfg.Session.SweepSchedule, func() {
		removed, err := sessionStore.SweepExpired(context.Background())
		if err != nil {
			appLogger.Error("Session sweep failed", zap.Error(err))
			return
		}
		if removed > 0 {
			appLogger.Info("Session sweep completed", zap.Int("removed", removed))
		}
	})
	if err != nil {
		appLogger.Fatal("Failed to schedule session sweep", zap.Error(err))
	}
	sweeper.Start()
	defer sweeper.Stop()

	engine := assistant.NewEngine(sessionStore, llmClient, retriever, sqliteClient, assistant.EngineConfig{
		Temperature: cfg.LLM.Temperature,
		TopP:        cfg.LLM.TopP,
	})
	evaluator := evaluation.NewEvaluator(llmClient, evaluation.Config{
		Model:       cfg.Evaluation.Model,
		Temperature: cfg.Evaluation.Temperature,
		MaxTokens:   cfg.Evaluation.MaxTokens,
	})

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	searchHandler := handlers.NewSearchHandler(engine, sqliteClient)
	knowledgeBaseHandler := handlers.NewKnowledgeBaseHandler(idx)
	validationHandler := handlers.NewValidationHandler(evaluator, sqliteClient)

	api := app.Group("/api/v1")

	api.Post("/search", searchHandler.HandleSearch)
	api.Get("/search/history", searchHandler.HandleSearchHistory)
	api.Delete("/sessions/:id", searchHandler.HandleClearSession)

	api.Post("/knowledgebase", knowledgeBaseHandler.HandleUpload)

	api.Post("/validate", validationHandler.HandleValidate)
	api.Get("/validate/results", validationHandler.HandleResults)

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	api.Get("/ready", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ready",
		})
	})

	app.Get("/metrics", metrics.Handler())

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}
