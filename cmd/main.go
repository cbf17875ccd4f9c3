package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ia-assistant-platform/internal/ai"
	"ia-assistant-platform/internal/config"
	"ia-assistant-platform/internal/logger"
	"ia-assistant-platform/internal/session"
	"ia-assistant-platform/internal/telemetry"
	"ia-assistant-platform/middleware"
	"ia-assistant-platform/routes"
	"ia-assistant-platform/services"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	shutdownTracer, err := telemetry.InitTracer("ia-assistant-platform")
	if err != nil {
		logger.Warn("Tracing disabled", "error", err)
	} else {
		defer shutdownTracer()
	}
	if _, err := telemetry.InitMetrics(); err != nil {
		logger.Warn("Metrics disabled", "error", err)
	}

	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()
	db := mongoClient.Database(cfg.DBName)

	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer rdb.Close()

	ctx := context.Background()
	embedder, err := ai.NewEmbedder(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to init embeddings client:", err)
	}
	defer embedder.Close()

	chatClient, err := ai.NewChatClient(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to init chat client:", err)
	}
	defer chatClient.Close()

	blobs, err := services.NewBlobStore(cfg)
	if err != nil {
		log.Fatal("Failed to init blob store:", err)
	}

	retriever := services.NewHybridRetriever(db, embedder, cfg)
	indexer := services.NewIndexer(db, embedder, cfg)
	summarizer := services.NewSummarizer(chatClient)
	webSearch := services.NewWebSearchClient(cfg)
	agent := ai.NewAgentClient(cfg)
	sessions := session.NewStore(rdb, cfg)

	queueClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer queueClient.Close()

	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware(cfg))
	router.Use(middleware.TracingMiddleware())
	router.Use(middleware.EnrichTrace())
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RateLimitMiddleware(rdb, cfg))

	sessionMW := middleware.SessionMiddleware(sessions)

	routes.SetupHealthRoutes(router, mongoClient, rdb)
	routes.SetupSessionRoutes(router, routes.SessionDeps{
		Store:  sessions,
		Chunks: services.NewMongoChunkStore(db),
		DB:     db,
	}, sessionMW)
	routes.SetupChatRoutes(router, routes.ChatDeps{
		Cfg:       cfg,
		Retriever: retriever,
		Chat:      chatClient,
		Web:       webSearch,
		Agent:     agent,
		Sessions:  sessions,
		DB:        db,
	}, sessionMW)
	routes.SetupSearchRoutes(router, cfg, retriever, sessionMW)
	routes.SetupUploadRoutes(router, routes.UploadDeps{
		Cfg:        cfg,
		Indexer:    indexer,
		Summarizer: summarizer,
		Retriever:  retriever,
		Blobs:      blobs,
		Queue:      queueClient,
		Sessions:   sessions,
	}, sessionMW)
	routes.SetupIngestRoutes(router, indexer, sessionMW)
	routes.SetupMediaRoutes(router, blobs)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("Server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	logger.Info("Server exited")
}
