package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ia-assistant-platform/internal/config"
	"ia-assistant-platform/internal/logger"
	"ia-assistant-platform/models"

	openai "github.com/sashabaranov/go-openai"
)

// RunOutcome is the terminal state of an agent run. Timeouts and remote
// failures are outcomes, not errors; errors are reserved for transport
// problems.
type RunOutcome string

const (
	RunCompleted RunOutcome = "completed"
	RunFailed    RunOutcome = "failed"
	RunTimedOut  RunOutcome = "timed_out"
)

// AgentAnswer is the result of one orchestrated question. Sources are the
// citation annotations attached to the assistant message, when any.
type AgentAnswer struct {
	Outcome RunOutcome
	Text    string
	Sources []models.WebSource
	Detail  string // failure reason or last observed status
}

// AgentClient drives a hosted assistant: create thread, post the question,
// start a run and poll it to a terminal state.
type AgentClient struct {
	client       *openai.Client
	assistantID  string
	pollInterval time.Duration
	timeout      time.Duration
}

func NewAgentClient(cfg *config.Config) *AgentClient {
	oc := openai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.OpenAIBaseURL != "" {
		oc.BaseURL = cfg.OpenAIBaseURL
	}
	return &AgentClient{
		client:       openai.NewClientWithConfig(oc),
		assistantID:  cfg.AgentID,
		pollInterval: time.Duration(cfg.AgentPollMillis) * time.Millisecond,
		timeout:      time.Duration(cfg.AgentTimeoutSeconds) * time.Second,
	}
}

// Configured reports whether an assistant is set up. When false, web_qa
// falls back to the direct web-search path.
func (ac *AgentClient) Configured() bool {
	return ac.assistantID != ""
}

// Ask runs one question through the assistant and returns the typed outcome.
func (ac *AgentClient) Ask(ctx context.Context, question string) (AgentAnswer, error) {
	thread, err := ac.client.CreateThread(ctx, openai.ThreadRequest{})
	if err != nil {
		return AgentAnswer{}, fmt.Errorf("create thread: %w", err)
	}

	_, err = ac.client.CreateMessage(ctx, thread.ID, openai.MessageRequest{
		Role:    openai.ChatMessageRoleUser,
		Content: question,
	})
	if err != nil {
		return AgentAnswer{}, fmt.Errorf("create message: %w", err)
	}

	run, err := ac.client.CreateRun(ctx, thread.ID, openai.RunRequest{
		AssistantID: ac.assistantID,
	})
	if err != nil {
		return AgentAnswer{}, fmt.Errorf("create run: %w", err)
	}

	final, outcome, err := waitForRun(ctx, ac.pollInterval, ac.timeout, func(ctx context.Context) (openai.Run, error) {
		return ac.client.RetrieveRun(ctx, thread.ID, run.ID)
	})
	if err != nil {
		return AgentAnswer{}, err
	}

	switch outcome {
	case RunCompleted:
		text, sources, err := ac.latestAssistantMessage(ctx, thread.ID, run.ID)
		if err != nil {
			return AgentAnswer{}, err
		}
		return AgentAnswer{Outcome: RunCompleted, Text: text, Sources: sources}, nil
	case RunTimedOut:
		logger.Warn("Agent run timed out", "thread_id", thread.ID, "run_id", run.ID, "last_status", string(final.Status))
		return AgentAnswer{Outcome: RunTimedOut, Detail: string(final.Status)}, nil
	default:
		detail := string(final.Status)
		if final.LastError != nil {
			detail = final.LastError.Message
		}
		return AgentAnswer{Outcome: RunFailed, Detail: detail}, nil
	}
}

// waitForRun polls fetch until the run reaches a terminal status or the
// timeout elapses. The fetch function is injected so the loop is testable
// without a live assistant.
func waitForRun(ctx context.Context, interval, timeout time.Duration, fetch func(context.Context) (openai.Run, error)) (openai.Run, RunOutcome, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last openai.Run
	for {
		run, err := fetch(ctx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return last, RunTimedOut, nil
			}
			return last, RunFailed, err
		}
		last = run

		switch run.Status {
		case openai.RunStatusCompleted:
			return run, RunCompleted, nil
		case openai.RunStatusFailed, openai.RunStatusCancelled, openai.RunStatusExpired, openai.RunStatusRequiresAction:
			// requires_action is terminal here: no tool outputs are submitted.
			return run, RunFailed, nil
		}

		select {
		case <-ctx.Done():
			return last, RunTimedOut, nil
		case <-ticker.C:
		}
	}
}

func (ac *AgentClient) latestAssistantMessage(ctx context.Context, threadID, runID string) (string, []models.WebSource, error) {
	limit := 10
	order := "desc"
	msgs, err := ac.client.ListMessage(ctx, threadID, &limit, &order, nil, nil, &runID)
	if err != nil {
		return "", nil, fmt.Errorf("list messages: %w", err)
	}
	for _, m := range msgs.Messages {
		if m.Role != openai.ChatMessageRoleAssistant {
			continue
		}
		var parts []string
		var sources []models.WebSource
		for _, c := range m.Content {
			if c.Text == nil {
				continue
			}
			if c.Text.Value != "" {
				parts = append(parts, c.Text.Value)
			}
			sources = append(sources, citationsFromAnnotations(c.Text.Annotations)...)
		}
		if len(parts) > 0 {
			return strings.Join(parts, "\n\n"), dedupeSources(sources), nil
		}
	}
	return "", nil, errors.New("run completed without an assistant message")
}

// citationsFromAnnotations extracts URL citations from the annotation list
// of an assistant message. Annotations arrive untyped and their shape varies
// between the flat form and the nested url_citation form, so field lookups
// are best-effort. Entries without a URL are skipped.
func citationsFromAnnotations(annotations []any) []models.WebSource {
	var sources []models.WebSource
	for _, a := range annotations {
		m, ok := a.(map[string]any)
		if !ok {
			continue
		}
		url := annotationField(m, "url", "source")
		if url == "" {
			continue
		}
		title := annotationField(m, "title")
		if title == "" {
			title = url
		}
		sources = append(sources, models.WebSource{
			Title:   title,
			Snippet: annotationField(m, "quote", "snippet"),
			URL:     url,
		})
	}
	return sources
}

// annotationField reads the first non-empty string among keys, checking the
// annotation itself and then its nested url_citation object.
func annotationField(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	nested, ok := m["url_citation"].(map[string]any)
	if !ok {
		return ""
	}
	for _, k := range keys {
		if s, ok := nested[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// dedupeSources collapses repeated citation URLs, keeping first occurrence
// order.
func dedupeSources(sources []models.WebSource) []models.WebSource {
	if len(sources) < 2 {
		return sources
	}
	seen := make(map[string]bool, len(sources))
	out := sources[:0]
	for _, s := range sources {
		if seen[s.URL] {
			continue
		}
		seen[s.URL] = true
		out = append(out, s)
	}
	return out
}
