package services

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"ia-assistant-platform/internal/config"
	"ia-assistant-platform/internal/logger"
	"ia-assistant-platform/internal/telemetry"
	"ia-assistant-platform/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// BatchEmbedder is the slice of the embeddings client the indexer needs.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// ChunkUpserter stores chunk records. Batches are independent: a failed
// batch never rolls back earlier ones.
type ChunkUpserter interface {
	UpsertChunks(ctx context.Context, records []models.ChunkRecord) error
	DeleteDoc(ctx context.Context, docID string) error
}

// MongoChunkStore is the production ChunkUpserter over the chunks collection.
type MongoChunkStore struct {
	col *mongo.Collection
}

func NewMongoChunkStore(db *mongo.Database) *MongoChunkStore {
	return &MongoChunkStore{col: db.Collection("chunks")}
}

func (s *MongoChunkStore) UpsertChunks(ctx context.Context, records []models.ChunkRecord) error {
	if len(records) == 0 {
		return nil
	}
	batch := make([]mongo.WriteModel, 0, len(records))
	for _, rec := range records {
		batch = append(batch, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": rec.ID}).
			SetUpdate(bson.M{"$set": rec}).
			SetUpsert(true))
	}
	_, err := s.col.BulkWrite(ctx, batch, options.BulkWrite().SetOrdered(false))
	return err
}

// DeleteDoc removes every chunk belonging to a document.
func (s *MongoChunkStore) DeleteDoc(ctx context.Context, docID string) error {
	_, err := s.col.DeleteMany(ctx, bson.M{"doc_id": docID})
	return err
}

// Count returns the number of indexed chunks.
func (s *MongoChunkStore) Count(ctx context.Context) (int64, error) {
	return s.col.EstimatedDocumentCount(ctx)
}

// IndexRequest describes one document to push through the pipeline.
type IndexRequest struct {
	Path      string // file on disk; empty when Text is given directly
	Text      string // pre-extracted text (web ingestion)
	Title     string
	SourceURI string
	System    string // upload | local | web
	Year      int
	ChunkSize int // 0 uses MAX_CHUNK_SIZE
	Overlap   int // 0 uses CHUNK_OVERLAP
}

// IndexOutcome reports what the pipeline did for one document.
type IndexOutcome struct {
	DocID        string
	Title        string
	ChunkCount   int
	FailedChunks int
	Extraction   *ExtractionResult
	CleanText    string
}

// Indexer runs extract, normalize, chunk, embed, upsert for one document at
// a time. Chunks are embedded in EMBED_MAX_BATCH slices and written in
// INDEX_BATCH_SIZE batches; a failing batch is logged and skipped without
// stopping later batches.
type Indexer struct {
	cfg       *config.Config
	extractor *Extractor
	embedder  BatchEmbedder
	store     ChunkUpserter
	docs      *mongo.Collection
}

func NewIndexer(db *mongo.Database, embedder BatchEmbedder, cfg *config.Config) *Indexer {
	return &Indexer{
		cfg:       cfg,
		extractor: NewExtractor(cfg),
		embedder:  embedder,
		store:     NewMongoChunkStore(db),
		docs:      db.Collection("documents"),
	}
}

// NewIndexerWithStore wires a custom chunk store; used by tests.
func NewIndexerWithStore(store ChunkUpserter, docs *mongo.Collection, embedder BatchEmbedder, cfg *config.Config) *Indexer {
	return &Indexer{
		cfg:       cfg,
		extractor: NewExtractor(cfg),
		embedder:  embedder,
		store:     store,
		docs:      docs,
	}
}

// DocIDFor derives the stable document id from a source URI, so
// re-ingesting a source replaces its chunks instead of duplicating them.
func DocIDFor(sourceURI string) string {
	sum := sha1.Sum([]byte(sourceURI))
	return hex.EncodeToString(sum[:])
}

// Index processes one document end to end and records its status in the
// documents collection.
func (ix *Indexer) Index(ctx context.Context, req IndexRequest) (*IndexOutcome, error) {
	docID := DocIDFor(req.SourceURI)
	title := req.Title
	if title == "" && req.Path != "" {
		title = strings.TrimSuffix(filepath.Base(req.Path), filepath.Ext(req.Path))
	}

	ix.setDocumentStatus(ctx, docID, title, req, models.StatusProcessing, "")

	outcome, err := ix.index(ctx, docID, title, req)
	if err != nil {
		ix.setDocumentStatus(ctx, docID, title, req, models.StatusFailed, err.Error())
		telemetry.RecordDocumentIndexed(ctx, req.System, models.StatusFailed)
		return nil, err
	}

	errMsg := ""
	if outcome.FailedChunks > 0 {
		errMsg = fmt.Sprintf("%d chunks failed to index", outcome.FailedChunks)
	}
	ix.completeDocument(ctx, docID, title, req, outcome, errMsg)
	telemetry.RecordDocumentIndexed(ctx, req.System, models.StatusCompleted)
	telemetry.RecordChunksIndexed(ctx, int64(outcome.ChunkCount))

	return outcome, nil
}

func (ix *Indexer) index(ctx context.Context, docID, title string, req IndexRequest) (*IndexOutcome, error) {
	var text string
	var extraction *ExtractionResult

	if req.Text != "" {
		text = CleanText(req.Text)
		extraction = &ExtractionResult{
			Text:           text,
			Method:         models.ExtractionMethodWeb,
			QualityScore:   QualityScore(text),
			CharacterCount: len([]rune(text)),
		}
	} else {
		var err error
		extraction, err = ix.extractor.Extract(ctx, req.Path, filepath.Base(req.Path))
		if err != nil {
			return nil, fmt.Errorf("extract: %w", err)
		}
		text = extraction.Text
	}

	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("document has no extractable text")
	}

	chunkSize := req.ChunkSize
	if chunkSize <= 0 {
		chunkSize = ix.cfg.MaxChunkSize
	}
	overlap := req.Overlap
	if overlap <= 0 {
		overlap = ix.cfg.ChunkOverlap
	}

	chunks := NewChunker(chunkSize, overlap).Split(text)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("document produced no chunks")
	}

	records, err := ix.embedChunks(ctx, docID, title, req, extraction, chunks)
	if err != nil {
		return nil, err
	}

	// Re-ingesting a shorter version of a document must not leave stale
	// tail chunks behind, so the old set is cleared before the upserts.
	if err := ix.store.DeleteDoc(ctx, docID); err != nil {
		logger.Warn("Failed to clear previous chunks", "doc_id", docID, "error", err)
	}

	indexed, failed := ix.upsertBatched(ctx, docID, records)

	if indexed == 0 {
		return nil, fmt.Errorf("all %d index batches failed", failed)
	}
	return &IndexOutcome{
		DocID:        docID,
		Title:        title,
		ChunkCount:   indexed,
		FailedChunks: failed,
		Extraction:   extraction,
		CleanText:    text,
	}, nil
}

func (ix *Indexer) embedChunks(ctx context.Context, docID, title string, req IndexRequest, extraction *ExtractionResult, chunks []string) ([]models.ChunkRecord, error) {
	records := make([]models.ChunkRecord, 0, len(chunks))

	for start := 0; start < len(chunks); start += ix.cfg.EmbedMaxBatch {
		end := start + ix.cfg.EmbedMaxBatch
		if end > len(chunks) {
			end = len(chunks)
		}
		vectors, err := ix.embedder.EmbedBatch(ctx, chunks[start:end])
		if err != nil {
			return nil, fmt.Errorf("embed chunks %d..%d: %w", start, end, err)
		}
		for i, vec := range vectors {
			idx := start + i
			records = append(records, models.ChunkRecord{
				ID:            fmt.Sprintf("%s_%04d", docID, idx),
				DocID:         docID,
				Title:         title,
				Chunk:         chunks[idx],
				ContentVector: vec,
				SourceURI:     req.SourceURI,
				System:        req.System,
				Year:          req.Year,
			})
		}
	}
	return records, nil
}

// upsertBatched writes records in INDEX_BATCH_SIZE slices. Batch N failing
// does not undo batches < N and does not stop batch N+1.
func (ix *Indexer) upsertBatched(ctx context.Context, docID string, records []models.ChunkRecord) (indexed, failed int) {
	batchSize := ix.cfg.IndexBatchSize
	if batchSize <= 0 {
		batchSize = 500
	}

	for start := 0; start < len(records); start += batchSize {
		end := start + batchSize
		if end > len(records) {
			end = len(records)
		}
		if err := ix.store.UpsertChunks(ctx, records[start:end]); err != nil {
			logger.Error("Index batch failed",
				"doc_id", docID, "batch_start", start, "batch_end", end, "error", err)
			failed += end - start
			continue
		}
		indexed += end - start
	}
	return indexed, failed
}

func (ix *Indexer) setDocumentStatus(ctx context.Context, docID, title string, req IndexRequest, status, errMsg string) {
	if ix.docs == nil {
		return
	}
	now := time.Now()
	update := bson.M{
		"$set": bson.M{
			"title":         title,
			"source_uri":    req.SourceURI,
			"system":        req.System,
			"status":        status,
			"error_message": errMsg,
		},
		"$setOnInsert": bson.M{"uploaded_at": now},
	}
	_, err := ix.docs.UpdateOne(ctx, bson.M{"_id": docID}, update, options.Update().SetUpsert(true))
	if err != nil {
		logger.Warn("Failed to update document status", "doc_id", docID, "status", status, "error", err)
	}
}

func (ix *Indexer) completeDocument(ctx context.Context, docID, title string, req IndexRequest, outcome *IndexOutcome, errMsg string) {
	if ix.docs == nil {
		return
	}
	now := time.Now()
	meta := models.DocumentMetadata{
		Pages:            outcome.Extraction.Pages,
		ExtractionMethod: outcome.Extraction.Method,
		QualityScore:     outcome.Extraction.QualityScore,
		ProcessingTime:   outcome.Extraction.ProcessingTime,
		CharacterCount:   outcome.Extraction.CharacterCount,
	}
	update := bson.M{
		"$set": bson.M{
			"title":         title,
			"source_uri":    req.SourceURI,
			"system":        req.System,
			"status":        models.StatusCompleted,
			"chunk_count":   outcome.ChunkCount,
			"error_message": errMsg,
			"processed_at":  now,
			"metadata":      meta,
		},
		"$setOnInsert": bson.M{"uploaded_at": now},
	}
	_, err := ix.docs.UpdateOne(ctx, bson.M{"_id": docID}, update, options.Update().SetUpsert(true))
	if err != nil {
		logger.Warn("Failed to finalize document", "doc_id", docID, "error", err)
	}
}
