package ai

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ia-assistant-platform/internal/config"
	"ia-assistant-platform/internal/logger"
	"ia-assistant-platform/internal/telemetry"

	"github.com/google/generative-ai-go/genai"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
)

// ErrChatUnavailable is returned while the circuit breaker is open.
var ErrChatUnavailable = errors.New("chat service temporarily unavailable")

// ChatClient wraps the configured completion provider behind a circuit
// breaker and a request rate limiter, with token accounting and tracing.
type ChatClient struct {
	cfg          *config.Config
	breaker      *gobreaker.CircuitBreaker
	rateLimiter  *rate.Limiter
	tokenCounter *TokenCounter
	google       *genai.Client
	openai       *openai.Client
}

type TokenCounter struct {
	mu              sync.Mutex
	limits          RateLimits
	minuteTokens    int
	dailyTokens     int
	minuteRequests  int
	dailyRequests   int
	lastMinuteReset time.Time
	lastDayReset    time.Time
}

type RateLimits struct {
	RPM int // Requests per minute
	TPM int // Tokens per minute
	RPD int // Requests per day
}

func NewChatClient(ctx context.Context, cfg *config.Config) (*ChatClient, error) {
	cc := &ChatClient{cfg: cfg}

	switch cfg.AIProvider {
	case "google":
		client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
		if err != nil {
			return nil, err
		}
		cc.google = client
	case "openai":
		oc := openai.DefaultConfig(cfg.OpenAIAPIKey)
		if cfg.OpenAIBaseURL != "" {
			oc.BaseURL = cfg.OpenAIBaseURL
		}
		cc.openai = openai.NewClientWithConfig(oc)
	default:
		return nil, fmt.Errorf("unknown AI provider: %s", cfg.AIProvider)
	}

	limits := getRateLimits(cfg.ChatTier)

	cc.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ChatAPI",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	// RPM limit with some buffer
	cc.rateLimiter = rate.NewLimiter(rate.Limit(float64(limits.RPM)*0.9/60.0), maxInt(limits.RPM/10, 1))
	cc.tokenCounter = &TokenCounter{limits: limits}

	return cc, nil
}

func getRateLimits(tier string) RateLimits {
	switch tier {
	case "free":
		return RateLimits{RPM: 10, TPM: 250000, RPD: 250}
	case "tier1":
		return RateLimits{RPM: 1000, TPM: 1000000, RPD: 10000}
	case "tier2":
		return RateLimits{RPM: 2000, TPM: 4000000, RPD: 50000}
	default:
		return RateLimits{RPM: 10, TPM: 250000, RPD: 250}
	}
}

// Complete sends a fully rendered prompt and returns the answer text.
func (cc *ChatClient) Complete(ctx context.Context, prompt string) (string, error) {
	tracer := otel.Tracer("chat-client")
	ctx, span := tracer.Start(ctx, "chat.complete")
	defer span.End()

	estimatedTokens := estimateTokens(prompt)
	span.SetAttributes(
		attribute.Int("chat.estimated_tokens", estimatedTokens),
		attribute.String("chat.provider", cc.cfg.AIProvider),
	)

	if !cc.tokenCounter.CanConsume(estimatedTokens, 1) {
		span.SetAttributes(attribute.Bool("chat.rate_limited", true))
		return "", errors.New("rate limit exceeded: wait before retry")
	}

	if err := cc.rateLimiter.Wait(ctx); err != nil {
		span.SetAttributes(attribute.Bool("chat.rate_limited", true))
		return "", err
	}

	result, err := cc.breaker.Execute(func() (interface{}, error) {
		answer, actualTokens, err := cc.complete(ctx, prompt)
		if err != nil {
			span.SetAttributes(attribute.Bool("chat.error", true))
			return nil, err
		}
		cc.tokenCounter.RecordUsage(actualTokens, 1)
		telemetry.RecordChatTokens(ctx, int64(actualTokens), cc.cfg.AIProvider)
		span.SetAttributes(attribute.Int("chat.actual_tokens", actualTokens))
		return answer, nil
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			span.SetAttributes(attribute.Bool("chat.circuit_breaker_open", true))
			return "", ErrChatUnavailable
		}
		return "", err
	}

	return result.(string), nil
}

func (cc *ChatClient) complete(ctx context.Context, prompt string) (string, int, error) {
	switch cc.cfg.AIProvider {
	case "google":
		model := cc.google.GenerativeModel(cc.cfg.GeminiChatModel)
		model.SetTemperature(0.2)
		model.SetMaxOutputTokens(2048)

		resp, err := model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			return "", 0, err
		}
		return extractGeminiText(resp), extractGeminiTokens(resp), nil

	case "openai":
		resp, err := cc.openai.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       cc.cfg.OpenAIChatModel,
			Temperature: 0.2,
			MaxTokens:   2048,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
		})
		if err != nil {
			return "", 0, err
		}
		if len(resp.Choices) == 0 {
			return "", 0, errors.New("no completion choices returned")
		}
		return resp.Choices[0].Message.Content, resp.Usage.TotalTokens, nil

	default:
		return "", 0, fmt.Errorf("unknown AI provider: %s", cc.cfg.AIProvider)
	}
}

func (tc *TokenCounter) CanConsume(tokens, requests int) bool {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	now := time.Now()

	// Reset counters if time windows expired
	if now.Sub(tc.lastMinuteReset) >= time.Minute {
		tc.minuteTokens = 0
		tc.minuteRequests = 0
		tc.lastMinuteReset = now
	}

	if now.Sub(tc.lastDayReset) >= 24*time.Hour {
		tc.dailyTokens = 0
		tc.dailyRequests = 0
		tc.lastDayReset = now
	}

	if tc.minuteRequests+requests > tc.limits.RPM {
		return false
	}
	if tc.minuteTokens+tokens > tc.limits.TPM {
		return false
	}
	if tc.dailyRequests+requests > tc.limits.RPD {
		return false
	}

	return true
}

func (tc *TokenCounter) RecordUsage(tokens, requests int) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	tc.minuteTokens += tokens
	tc.minuteRequests += requests
	tc.dailyTokens += tokens
	tc.dailyRequests += requests
}

// estimateTokens is a rough pre-flight estimate: 1 token ≈ 4 characters.
func estimateTokens(prompt string) int {
	est := len(prompt) / 4
	if est < 1 {
		est = 1
	}
	return est
}

func extractGeminiText(resp *genai.GenerateContentResponse) string {
	text := ""
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				text += string(t)
			}
		}
	}
	return text
}

func extractGeminiTokens(resp *genai.GenerateContentResponse) int {
	if resp.UsageMetadata != nil {
		return int(resp.UsageMetadata.TotalTokenCount)
	}
	est := len(extractGeminiText(resp)) / 4
	if est < 1 {
		est = 1
	}
	return est
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func (cc *ChatClient) Close() error {
	if cc.google != nil {
		return cc.google.Close()
	}
	return nil
}
