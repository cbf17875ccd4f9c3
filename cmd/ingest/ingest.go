package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"ia-assistant-platform/internal/ai"
	"ia-assistant-platform/internal/config"
	"ia-assistant-platform/internal/logger"
	"ia-assistant-platform/services"
)

// Bulk ingestion CLI: indexes every supported document in a directory.
func main() {
	dir := flag.String("dir", "", "directory to ingest (defaults to DATA_DIR)")
	system := flag.String("system", "local", "system tag stored on the chunks")
	year := flag.Int("year", 0, "year tag stored on the chunks")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	if *dir == "" {
		*dir = cfg.DataDir
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

	ctx := context.Background()
	embedder, err := ai.NewEmbedder(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to init embeddings client:", err)
	}
	defer embedder.Close()

	indexer := services.NewIndexer(mongoClient.Database(cfg.DBName), embedder, cfg)

	entries, err := os.ReadDir(*dir)
	if err != nil {
		log.Fatalf("Failed to read %s: %v", *dir, err)
	}

	indexed, failed, skipped := 0, 0, 0
	for _, entry := range entries {
		if entry.IsDir() || !services.SupportedExtension(entry.Name()) {
			skipped++
			continue
		}

		path := filepath.Join(*dir, entry.Name())
		outcome, err := indexer.Index(ctx, services.IndexRequest{
			Path:      path,
			SourceURI: "local://" + entry.Name(),
			System:    *system,
			Year:      *year,
		})
		if err != nil {
			fmt.Printf("FAIL  %s: %v\n", entry.Name(), err)
			failed++
			continue
		}
		fmt.Printf("OK    %s: %d chunks (doc %s)\n", entry.Name(), outcome.ChunkCount, outcome.DocID)
		indexed++
	}

	fmt.Printf("\nIngest finished: %d indexed, %d failed, %d skipped\n", indexed, failed, skipped)
	if failed > 0 && indexed == 0 {
		os.Exit(1)
	}
}
