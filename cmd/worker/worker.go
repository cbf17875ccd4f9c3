package main

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"time"

	"ia-assistant-platform/internal/ai"
	"ia-assistant-platform/internal/config"
	"ia-assistant-platform/internal/logger"
	"ia-assistant-platform/internal/queue"
	"ia-assistant-platform/services"

	"github.com/go-co-op/gocron"
	"github.com/hibiken/asynq"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

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

	ctx := context.Background()
	embedder, err := ai.NewEmbedder(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to init embeddings client:", err)
	}
	defer embedder.Close()

	indexer := services.NewIndexer(db, embedder, cfg)

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			StrictPriority: true,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	processor := queue.NewTaskProcessor(indexer)

	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskIndexDocument, processor.HandleIndexDocument)

	// Optional periodic sweep of the local data directory.
	if cfg.IngestCronMinutes > 0 {
		scheduler := gocron.NewScheduler(time.UTC)
		scheduler.Every(cfg.IngestCronMinutes).Minutes().Do(func() {
			sweepDataDir(context.Background(), cfg, indexer)
		})
		scheduler.StartAsync()
		defer scheduler.Stop()
	}

	logger.Info("Starting worker",
		"redis", redisOpt.Addr,
		"queues", "critical(6), default(3), low(1)")

	if err := server.Run(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
	}
}

// sweepDataDir indexes every supported file under DATA_DIR. Re-ingesting
// an unchanged file replaces its chunks, so the sweep is idempotent.
func sweepDataDir(ctx context.Context, cfg *config.Config, indexer *services.Indexer) {
	entries, err := os.ReadDir(cfg.DataDir)
	if err != nil {
		logger.Warn("Data dir sweep skipped", "dir", cfg.DataDir, "error", err)
		return
	}

	indexed, failed := 0, 0
	for _, entry := range entries {
		if entry.IsDir() || !services.SupportedExtension(entry.Name()) {
			continue
		}

		path := filepath.Join(cfg.DataDir, entry.Name())
		_, err := indexer.Index(ctx, services.IndexRequest{
			Path:      path,
			SourceURI: "local://" + entry.Name(),
			System:    "local",
		})
		if err != nil {
			logger.Error("Sweep indexing failed", "file", entry.Name(), "error", err)
			failed++
			continue
		}
		indexed++
	}

	logger.Info("Data dir sweep finished", "indexed", indexed, "failed", failed)
}
