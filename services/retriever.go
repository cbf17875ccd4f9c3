package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"ia-assistant-platform/internal/ai"
	"ia-assistant-platform/internal/config"
	"ia-assistant-platform/internal/logger"
	"ia-assistant-platform/internal/telemetry"
	"ia-assistant-platform/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// QueryEmbedder is the slice of the embeddings client the retriever needs.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// rrfK is the reciprocal-rank-fusion constant used by the client-side
// fallback. 60 is the standard value from the RRF literature.
const rrfK = 60

// HybridRetriever runs combined lexical + vector queries against the chunk
// store. The preferred path is a single server-side $rankFusion aggregation;
// when the cluster rejects it the lexical and vector queries run separately
// and are fused client-side by reciprocal rank.
type HybridRetriever struct {
	col      *mongo.Collection
	embedder QueryEmbedder
	cfg      *config.Config
}

func NewHybridRetriever(db *mongo.Database, embedder QueryEmbedder, cfg *config.Config) *HybridRetriever {
	return &HybridRetriever{
		col:      db.Collection("chunks"),
		embedder: embedder,
		cfg:      cfg,
	}
}

// Search embeds the query and returns up to top hits in store rank order.
// Each filter clause is an extended-JSON document; clauses are ANDed and
// never interpreted here.
func (r *HybridRetriever) Search(ctx context.Context, query string, top int, filters []string) ([]models.SearchHit, error) {
	if top <= 0 {
		top = r.cfg.DefaultTopK
	}

	start := time.Now()
	defer func() {
		telemetry.RecordSearchLatency(ctx, time.Since(start))
	}()

	vector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		var depErr *ai.DeploymentError
		if errors.As(err, &depErr) {
			return nil, fmt.Errorf("embedding unavailable: %w", err)
		}
		return nil, fmt.Errorf("embed query: %w", err)
	}

	filter, err := BuildSearchFilter(filters)
	if err != nil {
		return nil, err
	}

	hits, err := r.searchRankFusion(ctx, query, vector, top, filter)
	if err == nil {
		return hits, nil
	}
	logger.Debug("Server-side rank fusion unavailable, fusing client-side", "error", err)

	return r.searchFused(ctx, query, vector, top, filter)
}

// BuildSearchFilter parses opaque extended-JSON filter clauses and combines
// them into a single conjunction. Empty input yields a nil filter.
func BuildSearchFilter(clauses []string) (bson.M, error) {
	parsed := make([]bson.M, 0, len(clauses))
	for _, clause := range clauses {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			continue
		}
		var doc bson.M
		if err := bson.UnmarshalExtJSON([]byte(clause), false, &doc); err != nil {
			return nil, fmt.Errorf("invalid filter clause %q: %w", clause, err)
		}
		parsed = append(parsed, doc)
	}

	switch len(parsed) {
	case 0:
		return nil, nil
	case 1:
		return parsed[0], nil
	default:
		return bson.M{"$and": parsed}, nil
	}
}

func (r *HybridRetriever) searchRankFusion(ctx context.Context, query string, vector []float32, top int, filter bson.M) ([]models.SearchHit, error) {
	textPipeline := r.lexicalStages(query, top, filter)
	vectorPipeline := r.vectorStages(vector, top, filter)

	pipeline := mongo.Pipeline{
		{{Key: "$rankFusion", Value: bson.M{
			"input": bson.M{
				"pipelines": bson.M{
					"lexical": textPipeline,
					"vector":  vectorPipeline,
				},
			},
		}}},
		{{Key: "$limit", Value: top}},
		{{Key: "$addFields", Value: bson.M{"score": bson.M{"$meta": "score"}}}},
		{{Key: "$project", Value: hitProjection()}},
	}

	cursor, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var hits []models.SearchHit
	if err := cursor.All(ctx, &hits); err != nil {
		return nil, err
	}
	return hits, nil
}

func (r *HybridRetriever) searchFused(ctx context.Context, query string, vector []float32, top int, filter bson.M) ([]models.SearchHit, error) {
	lexical, err := r.searchLexical(ctx, query, top, filter)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	vectorHits, err := r.searchVector(ctx, vector, top, filter)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	fused := FuseByReciprocalRank(lexical, vectorHits)
	if len(fused) > top {
		fused = fused[:top]
	}
	return fused, nil
}

func (r *HybridRetriever) searchLexical(ctx context.Context, query string, top int, filter bson.M) ([]models.SearchHit, error) {
	stages := r.lexicalStages(query, top, filter)
	stages = append(stages,
		bson.D{{Key: "$addFields", Value: bson.M{"score": bson.M{"$meta": "searchScore"}}}},
		bson.D{{Key: "$project", Value: hitProjection()}},
	)

	cursor, err := r.col.Aggregate(ctx, stages)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var hits []models.SearchHit
	if err := cursor.All(ctx, &hits); err != nil {
		return nil, err
	}
	return hits, nil
}

func (r *HybridRetriever) searchVector(ctx context.Context, vector []float32, top int, filter bson.M) ([]models.SearchHit, error) {
	stages := r.vectorStages(vector, top, filter)
	stages = append(stages,
		bson.D{{Key: "$addFields", Value: bson.M{"score": bson.M{"$meta": "vectorSearchScore"}}}},
		bson.D{{Key: "$project", Value: hitProjection()}},
	)

	cursor, err := r.col.Aggregate(ctx, stages)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var hits []models.SearchHit
	if err := cursor.All(ctx, &hits); err != nil {
		return nil, err
	}
	return hits, nil
}

func (r *HybridRetriever) lexicalStages(query string, top int, filter bson.M) mongo.Pipeline {
	stages := mongo.Pipeline{
		{{Key: "$search", Value: bson.M{
			"index": r.cfg.SearchIndexName,
			"text": bson.M{
				"query": query,
				"path":  bson.A{"title", "chunk"},
			},
		}}},
	}
	if filter != nil {
		stages = append(stages, bson.D{{Key: "$match", Value: filter}})
	}
	stages = append(stages, bson.D{{Key: "$limit", Value: top}})
	return stages
}

func (r *HybridRetriever) vectorStages(vector []float32, top int, filter bson.M) mongo.Pipeline {
	search := bson.M{
		"index":         r.cfg.VectorIndexName,
		"path":          "content_vector",
		"queryVector":   vector,
		"numCandidates": top * 10,
		"limit":         top,
	}
	if filter != nil {
		search["filter"] = filter
	}
	return mongo.Pipeline{
		{{Key: "$vectorSearch", Value: search}},
	}
}

func hitProjection() bson.M {
	return bson.M{
		"_id":        1,
		"doc_id":     1,
		"title":      1,
		"chunk":      1,
		"source_uri": 1,
		"system":     1,
		"year":       1,
		"page":       1,
		"score":      1,
	}
}

// FuseByReciprocalRank merges ranked hit lists: each hit contributes
// 1/(rrfK + rank) per list it appears in, keyed by id. Output is sorted by
// fused score descending, ties broken by id for determinism.
func FuseByReciprocalRank(lists ...[]models.SearchHit) []models.SearchHit {
	scores := make(map[string]float64)
	byID := make(map[string]models.SearchHit)

	for _, list := range lists {
		for rank, hit := range list {
			scores[hit.ID] += 1.0 / float64(rrfK+rank+1)
			if _, seen := byID[hit.ID]; !seen {
				byID[hit.ID] = hit
			}
		}
	}

	fused := make([]models.SearchHit, 0, len(byID))
	for id, hit := range byID {
		hit.Score = scores[id]
		fused = append(fused, hit)
	}
	sort.Slice(fused, func(i, j int) bool {
		if fused[i].Score != fused[j].Score {
			return fused[i].Score > fused[j].Score
		}
		return fused[i].ID < fused[j].ID
	})
	return fused
}
