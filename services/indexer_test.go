package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"ia-assistant-platform/internal/config"
	"ia-assistant-platform/models"
)

type fakeEmbedder struct {
	batches [][]string
	fail    bool
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if f.fail {
		return nil, errors.New("embedder down")
	}
	f.batches = append(f.batches, texts)
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(len(texts[i]))}
	}
	return out, nil
}

type fakeStore struct {
	batches       [][]models.ChunkRecord
	failAt        int // 1-based batch index to fail, 0 means never
	received      int
	deleted       []string
	deleteBatches []int // batch count observed at each delete
}

func (f *fakeStore) UpsertChunks(ctx context.Context, records []models.ChunkRecord) error {
	f.batches = append(f.batches, records)
	if f.failAt > 0 && len(f.batches) == f.failAt {
		return errors.New("store unavailable")
	}
	f.received += len(records)
	return nil
}

func (f *fakeStore) DeleteDoc(ctx context.Context, docID string) error {
	f.deleted = append(f.deleted, docID)
	f.deleteBatches = append(f.deleteBatches, len(f.batches))
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		MaxChunkSize:   120,
		ChunkOverlap:   20,
		EmbedMaxBatch:  8,
		IndexBatchSize: 10,
	}
}

func testText() string {
	paras := make([]string, 40)
	for i := range paras {
		paras[i] = strings.Repeat("word ", 20)
	}
	return strings.Join(paras, "\n\n")
}

func TestIndexerBatchesUpserts(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := &fakeStore{}
	ix := NewIndexerWithStore(store, nil, embedder, testConfig())

	outcome, err := ix.Index(context.Background(), IndexRequest{
		Text:      testText(),
		Title:     "doc",
		SourceURI: "local/doc.txt",
		System:    "local",
	})
	if err != nil {
		t.Fatalf("Index() error: %v", err)
	}
	if outcome.ChunkCount == 0 {
		t.Fatal("no chunks indexed")
	}
	for i, b := range store.batches {
		if len(b) > 10 {
			t.Errorf("store batch %d has %d records, exceeds batch size", i, len(b))
		}
	}
	for i, b := range embedder.batches {
		if len(b) > 8 {
			t.Errorf("embed batch %d has %d texts, exceeds embed batch size", i, len(b))
		}
	}
	if store.received != outcome.ChunkCount {
		t.Errorf("outcome reports %d chunks, store received %d", outcome.ChunkCount, store.received)
	}
}

func TestIndexerBatchFailureIsIsolated(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := &fakeStore{failAt: 1}
	ix := NewIndexerWithStore(store, nil, embedder, testConfig())

	outcome, err := ix.Index(context.Background(), IndexRequest{
		Text:      testText(),
		Title:     "doc",
		SourceURI: "local/doc.txt",
		System:    "local",
	})
	if err != nil {
		t.Fatalf("Index() error: %v", err)
	}
	if len(store.batches) < 2 {
		t.Fatalf("expected later batches to run after a failure, got %d batches", len(store.batches))
	}
	if outcome.FailedChunks == 0 {
		t.Error("failed batch not reported in outcome")
	}
	if outcome.ChunkCount != store.received {
		t.Errorf("outcome reports %d indexed, store accepted %d", outcome.ChunkCount, store.received)
	}
}

func TestIndexerEmbedderFailure(t *testing.T) {
	store := &fakeStore{}
	ix := NewIndexerWithStore(store, nil, &fakeEmbedder{fail: true}, testConfig())

	_, err := ix.Index(context.Background(), IndexRequest{
		Text:      testText(),
		SourceURI: "local/doc.txt",
		System:    "local",
	})
	if err == nil {
		t.Fatal("expected error when embedder fails")
	}
	if len(store.batches) != 0 {
		t.Error("nothing should reach the store when embedding fails")
	}
}

func TestIndexerEmptyText(t *testing.T) {
	ix := NewIndexerWithStore(&fakeStore{}, nil, &fakeEmbedder{}, testConfig())
	_, err := ix.Index(context.Background(), IndexRequest{
		Text:      "   ",
		SourceURI: "local/empty.txt",
		System:    "local",
	})
	if err == nil {
		t.Fatal("expected error for empty document")
	}
}

func TestIndexerClearsPreviousChunksBeforeUpsert(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := &fakeStore{}
	ix := NewIndexerWithStore(store, nil, embedder, testConfig())

	req := IndexRequest{
		Text:      testText(),
		Title:     "doc",
		SourceURI: "local/doc.txt",
		System:    "local",
	}
	for i := 0; i < 2; i++ {
		if _, err := ix.Index(context.Background(), req); err != nil {
			t.Fatalf("Index() run %d error: %v", i, err)
		}
	}

	if len(store.deleted) != 2 {
		t.Fatalf("expected one delete per ingest, got %d", len(store.deleted))
	}
	wantID := DocIDFor(req.SourceURI)
	for _, id := range store.deleted {
		if id != wantID {
			t.Errorf("deleted doc id = %q, want %q", id, wantID)
		}
	}
	// The second delete must run before the second ingest's first upsert.
	firstRunBatches := store.deleteBatches[1]
	if firstRunBatches != len(store.batches)/2 {
		t.Errorf("delete ran after %d batches, want before the second run's upserts (%d)",
			firstRunBatches, len(store.batches)/2)
	}
}

func TestDocIDForStable(t *testing.T) {
	a := DocIDFor("uploads/report.pdf")
	b := DocIDFor("uploads/report.pdf")
	c := DocIDFor("uploads/other.pdf")
	if a != b {
		t.Error("doc id must be stable for the same source")
	}
	if a == c {
		t.Error("different sources must not collide")
	}
}
