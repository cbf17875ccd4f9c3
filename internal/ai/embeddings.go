package ai

import (
	"context"
	"errors"
	"fmt"

	"ia-assistant-platform/internal/config"

	"github.com/google/generative-ai-go/genai"
	openai "github.com/sashabaranov/go-openai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// DeploymentError marks a misconfigured embeddings or chat deployment
// (wrong model name, deleted deployment) so callers can render an actionable
// message instead of a generic remote failure.
type DeploymentError struct {
	Provider string
	Model    string
	Endpoint string
	Err      error
}

func (e *DeploymentError) Error() string {
	return fmt.Sprintf("%s model %q not available at %s: %v", e.Provider, e.Model, e.Endpoint, e.Err)
}

func (e *DeploymentError) Unwrap() error {
	return e.Err
}

// Embedder produces embedding vectors. Default provider is Google
// Generative AI; OpenAI-compatible endpoints are selected with
// AI_PROVIDER=openai.
type Embedder struct {
	cfg    *config.Config
	google *genai.Client
	openai *openai.Client
}

func NewEmbedder(ctx context.Context, cfg *config.Config) (*Embedder, error) {
	e := &Embedder{cfg: cfg}
	switch cfg.AIProvider {
	case "google":
		client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
		if err != nil {
			return nil, err
		}
		e.google = client
	case "openai":
		oc := openai.DefaultConfig(cfg.OpenAIAPIKey)
		if cfg.OpenAIBaseURL != "" {
			oc.BaseURL = cfg.OpenAIBaseURL
		}
		e.openai = openai.NewClientWithConfig(oc)
	default:
		return nil, fmt.Errorf("unknown AI provider: %s", cfg.AIProvider)
	}
	return e, nil
}

// EmbedBatch embeds texts in a single request. The result is index-aligned
// with the input. Batches above EMBED_MAX_BATCH are rejected; callers slice
// their input.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if len(texts) > e.cfg.EmbedMaxBatch {
		return nil, fmt.Errorf("batch of %d texts exceeds EMBED_MAX_BATCH (%d)", len(texts), e.cfg.EmbedMaxBatch)
	}

	switch e.cfg.AIProvider {
	case "google":
		return e.embedGoogle(ctx, texts)
	case "openai":
		return e.embedOpenAI(ctx, texts)
	default:
		return nil, fmt.Errorf("unknown AI provider: %s", e.cfg.AIProvider)
	}
}

// EmbedQuery embeds a single query string.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("expected 1 embedding, got %d", len(vectors))
	}
	return vectors[0], nil
}

func (e *Embedder) embedGoogle(ctx context.Context, texts []string) ([][]float32, error) {
	em := e.google.EmbeddingModel(e.cfg.GoogleEmbeddingsModel)
	batch := em.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}

	resp, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == 404 {
			return nil, &DeploymentError{
				Provider: "google",
				Model:    e.cfg.GoogleEmbeddingsModel,
				Endpoint: "generativelanguage.googleapis.com",
				Err:      err,
			}
		}
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: sent %d, got %d", len(texts), len(resp.Embeddings))
	}

	out := make([][]float32, len(texts))
	for i, emb := range resp.Embeddings {
		out[i] = emb.Values
	}
	return out, nil
}

func (e *Embedder) embedOpenAI(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := e.openai.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: texts,
		Model: openai.EmbeddingModel(e.cfg.OpenAIEmbeddingsModel),
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && (apiErr.HTTPStatusCode == 404 || apiErr.Code == "model_not_found") {
			return nil, &DeploymentError{
				Provider: "openai",
				Model:    e.cfg.OpenAIEmbeddingsModel,
				Endpoint: e.cfg.OpenAIBaseURL,
				Err:      err,
			}
		}
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: sent %d, got %d", len(texts), len(resp.Data))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

func (e *Embedder) Close() error {
	if e.google != nil {
		return e.google.Close()
	}
	return nil
}
