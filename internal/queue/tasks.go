package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"ia-assistant-platform/internal/logger"
	"ia-assistant-platform/services"
)

const TaskIndexDocument = "document:index"

// IndexDocumentPayload carries everything the worker needs to push one
// file through the indexing pipeline.
type IndexDocumentPayload struct {
	Path      string `json:"path"`
	Title     string `json:"title"`
	SourceURI string `json:"source_uri"`
	System    string `json:"system"`
	Year      int    `json:"year"`
}

func NewIndexDocumentTask(p IndexDocumentPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskIndexDocument,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Queue("critical"),
	), nil
}

// TaskProcessor handles queued indexing jobs.
type TaskProcessor struct {
	indexer *services.Indexer
}

func NewTaskProcessor(indexer *services.Indexer) *TaskProcessor {
	return &TaskProcessor{indexer: indexer}
}

func (p *TaskProcessor) HandleIndexDocument(ctx context.Context, t *asynq.Task) error {
	var payload IndexDocumentPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	logger.Info("Processing queued document", "source_uri", payload.SourceURI, "path", payload.Path)

	outcome, err := p.indexer.Index(ctx, services.IndexRequest{
		Path:      payload.Path,
		Title:     payload.Title,
		SourceURI: payload.SourceURI,
		System:    payload.System,
		Year:      payload.Year,
	})
	if err != nil {
		logger.Error("Queued indexing failed", "source_uri", payload.SourceURI, "error", err)
		return err
	}

	logger.Info("Queued document indexed",
		"doc_id", outcome.DocID,
		"chunks", outcome.ChunkCount,
		"failed_chunks", outcome.FailedChunks)
	return nil
}
