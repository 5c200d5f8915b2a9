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
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/ragchat/backend/internal/api/handlers"
	"github.com/ragchat/backend/internal/cache/redis"
	"github.com/ragchat/backend/internal/chat"
	"github.com/ragchat/backend/internal/evaluation"
	"github.com/ragchat/backend/internal/extractor"
	"github.com/ragchat/backend/internal/ingestion"
	"github.com/ragchat/backend/internal/llm"
	"github.com/ragchat/backend/internal/metrics"
	"github.com/ragchat/backend/internal/middleware/ratelimit"
	"github.com/ragchat/backend/internal/middleware/security"
	"github.com/ragchat/backend/internal/segmenter"
	"github.com/ragchat/backend/internal/storage/sqlite"
	"github.com/ragchat/backend/internal/vector/milvus"
	"github.com/ragchat/backend/pkg/config"
	appLogger "github.com/ragchat/backend/pkg/logger"
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

	appLogger.Info("Starting knowledge base chat API server")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	if err := sqliteClient.InitSchema(); err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	milvusClient, err := milvus.NewClient(
		cfg.Milvus.Endpoint,
		cfg.Milvus.CollectionName,
		cfg.Milvus.VectorDim,
	)
	if err != nil {
		appLogger.Fatal("Failed to create Milvus client", zap.Error(err))
	}
	defer milvusClient.Close()

	if err := milvusClient.CreateCollection(context.Background()); err != nil {
		appLogger.Fatal("Failed to create collection", zap.Error(err))
	}

	var embeddingCache chat.EmbeddingCache
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Warn("Redis unavailable, running without embedding cache", zap.Error(err))
		} else {
			defer redisClient.Close()
			embeddingCache = redisClient
		}
	}

	llmClient := llm.NewClient(
		cfg.LLM.APIKey,
		cfg.LLM.Model,
		cfg.LLM.EmbeddingModel,
		cfg.LLM.Temperature,
		cfg.LLM.MaxTokens,
	)

	chunkCfg := segmenter.Config{
		ChunkSize:    cfg.Chunking.Size,
		ChunkOverlap: cfg.Chunking.Overlap,
		Mode:         segmenter.Mode(cfg.Chunking.Mode),
		ContextSize:  cfg.Chunking.ContextSize,
	}
	if err := chunkCfg.Validate(); err != nil {
		appLogger.Fatal("Invalid chunking configuration", zap.Error(err))
	}

	processor := ingestion.NewProcessor(
		extractor.NewPDFExtractor(),
		llmClient,
		milvusClient,
		sqliteClient,
		chunkCfg,
	)

	history := evaluation.NewHistory(cfg.Evaluation.RecentWindow, cfg.Evaluation.TrendEpsilon)

	var evaluator chat.Evaluator
	if cfg.Evaluation.Enabled {
		var scorer evaluation.Scorer
		switch cfg.Evaluation.Judge {
		case "heuristic":
			scorer = evaluation.NewHeuristicScorer()
		default:
			scorer = evaluation.NewJudgeScorer(llmClient)
		}
		evaluator = evaluation.NewEngine(scorer, time.Duration(cfg.Evaluation.ScorerTimeoutSec)*time.Second)
	}

	chatEngine := chat.NewEngine(
		llmClient,
		milvusClient,
		llmClient,
		embeddingCache,
		evaluator,
		history,
		chat.Config{
			TopK:            cfg.Retrieval.TopK,
			MaxContextChars: cfg.Retrieval.MaxContextChars,
		},
	)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{}))

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		Logger:               appLogger.GetLogger(),
	})
	defer limiter.Stop()

	documentHandler := handlers.NewDocumentHandler(processor, sqliteClient, chunkCfg)
	chatHandler := handlers.NewChatHandler(chatEngine)
	evaluationHandler := handlers.NewEvaluationHandler(history)
	wsHandler := handlers.NewWebSocketHandler(chatEngine)

	api := app.Group("/api/v1", limiter.Middleware())

	api.Post("/documents", documentHandler.UploadDocument)
	api.Get("/documents", documentHandler.ListDocuments)
	api.Get("/documents/:id", documentHandler.GetDocument)
	api.Delete("/documents/:id", documentHandler.DeleteDocument)

	api.Post("/chat", chatHandler.Chat)

	api.Get("/evaluation/summary", evaluationHandler.GetSummary)
	api.Get("/evaluation/history", evaluationHandler.GetHistory)

	api.Get("/health", func(c *fiber.Ctx) error {
		vectorStatus := "connected"
		if err := milvusClient.Ping(c.Context()); err != nil {
			appLogger.Warn("Vector store health check failed", zap.Error(err))
			vectorStatus = "disconnected"
		}
		return c.JSON(fiber.Map{
			"status":        "healthy",
			"vector_status": vectorStatus,
			"time":          time.Now().Unix(),
		})
	})

	api.Get("/ready", func(c *fiber.Ctx) error {
		if _, err := sqliteClient.ListDocuments(c.Context()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "not ready",
			})
		}
		return c.JSON(fiber.Map{
			"status": "ready",
		})
	})

	app.Get("/metrics", metrics.MetricsHandler())

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/chat", websocket.New(wsHandler.HandleConnection))

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
