package routes

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ia-assistant-platform/internal/ai"
	"ia-assistant-platform/internal/config"
	"ia-assistant-platform/internal/logger"
	"ia-assistant-platform/internal/telemetry"
	"ia-assistant-platform/middleware"
	"ia-assistant-platform/models"
	"ia-assistant-platform/services"
	"ia-assistant-platform/utils"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
)

// Refusal texts shown when the corpus has no usable evidence.
const (
	refusalNoEvidence = "제공된 자료에서 관련 내용을 찾지 못했습니다. 질문을 바꾸거나 문서를 업로드해 주세요."
	refusalOffTopic   = "질문이 업로드된 자료와 충분히 관련되어 보이지 않아 답변을 생성하지 않았습니다."
)

// Retriever is the slice of the hybrid retriever the chat flow needs.
type Retriever interface {
	Search(ctx context.Context, query string, top int, filters []string) ([]models.SearchHit, error)
}

// Completer produces one completion for one prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// WebSearcher backs the web_qa mode.
type WebSearcher interface {
	Configured() bool
	Search(ctx context.Context, query string, top int) ([]models.WebSource, error)
}

// AgentAsker orchestrates a question through a hosted assistant.
type AgentAsker interface {
	Configured() bool
	Ask(ctx context.Context, question string) (ai.AgentAnswer, error)
}

// HistorySink records answered and refused questions on the session.
type HistorySink interface {
	AppendHistory(ctx context.Context, id string, entry models.HistoryEntry) error
}

// ChatDeps bundles everything the chat endpoints depend on. Interfaces
// keep the handlers testable without live backends.
type ChatDeps struct {
	Cfg       *config.Config
	Retriever Retriever
	Chat      Completer
	Web       WebSearcher
	Agent     AgentAsker // nil or unconfigured falls back to direct web search
	Sessions  HistorySink
	DB        *mongo.Database // nil disables quota enforcement
}

func SetupChatRoutes(router gin.IRouter, deps ChatDeps, sessionMW gin.HandlerFunc) {
	chat := router.Group("/chat")
	chat.Use(sessionMW)

	chat.POST("/ask", HandleChatAsk(deps))
	chat.GET("/history", HandleChatHistory())
	chat.GET("/history/:n", HandleChatHistory())
}

// HandleChatAsk answers one question in qa, ia_summary or web_qa mode.
// Evidence-free questions are refused rather than answered from model
// memory.
func HandleChatAsk(deps ChatDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.ChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithError(c, http.StatusBadRequest,
				"invalid_input", "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		mode := req.Mode
		if mode == "" {
			mode = services.ModeQA
		}
		switch mode {
		case services.ModeQA, services.ModeIASummary, services.ModeWebQA:
		default:
			utils.RespondWithError(c, http.StatusBadRequest,
				"invalid_mode", "Unknown chat mode", gin.H{"mode": mode})
			return
		}

		start := time.Now()
		sessionID := middleware.GetSessionID(c)

		filters := req.Filter
		if mode != services.ModeWebQA {
			if forced := forcedFilter(c.Request.Context(), deps, sessionID); forced != "" {
				filters = append([]string{forced}, filters...)
			}
		}

		var resp *models.ChatResponse
		var err error
		if mode == services.ModeWebQA {
			resp, err = answerFromWeb(c.Request.Context(), deps, req.Question)
		} else {
			resp, err = answerFromCorpus(c.Request.Context(), deps, sessionID, mode, req, filters)
		}
		if err != nil {
			respondChatError(c, err)
			return
		}

		resp.Mode = mode
		resp.LatencyMS = time.Since(start).Milliseconds()
		resp.Timestamp = time.Now()

		recordHistory(c.Request.Context(), deps, sessionID, mode, req, filters, resp)
		c.JSON(http.StatusOK, resp)
	}
}

func answerFromCorpus(ctx context.Context, deps ChatDeps, sessionID, mode string, req models.ChatRequest, filters []string) (*models.ChatResponse, error) {
	cfg := deps.Cfg

	topK := req.TopK
	if topK <= 0 {
		topK = cfg.DefaultTopK
	}

	hits, err := deps.Retriever.Search(ctx, req.Question, topK, filters)
	if err != nil {
		return nil, err
	}

	if len(hits) == 0 {
		telemetry.RecordGuardRefusal(ctx, "no_evidence")
		return &models.ChatResponse{Answer: refusalNoEvidence, Refused: true, Reason: "no_evidence"}, nil
	}
	if !services.RelevantEnough(req.Question, hits, cfg.GuardTopK, cfg.GuardMinMatches) {
		telemetry.RecordGuardRefusal(ctx, "off_topic")
		return &models.ChatResponse{Answer: refusalOffTopic, Hits: hits, Refused: true, Reason: "off_topic"}, nil
	}

	prompt, err := services.BuildPrompt(mode, req.Question, hits)
	if err != nil {
		return nil, err
	}

	if deps.DB != nil {
		if err := ai.CheckSessionQuota(ctx, deps.DB, sessionID, len(prompt)/4); err != nil {
			return nil, err
		}
	}

	answer, err := deps.Chat.Complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	return &models.ChatResponse{Answer: answer, Hits: hits}, nil
}

func answerFromWeb(ctx context.Context, deps ChatDeps, question string) (*models.ChatResponse, error) {
	// A configured assistant takes precedence over the direct search path.
	if deps.Agent != nil && deps.Agent.Configured() {
		answer, err := deps.Agent.Ask(ctx, question)
		if err != nil {
			return nil, err
		}
		switch answer.Outcome {
		case ai.RunCompleted:
			return &models.ChatResponse{Answer: answer.Text, Sources: answer.Sources}, nil
		case ai.RunTimedOut:
			return &models.ChatResponse{
				Answer:  "에이전트 응답이 제한 시간 내에 완료되지 않았습니다. 잠시 후 다시 시도해 주세요.",
				Refused: true,
				Reason:  "agent_timeout",
			}, nil
		default:
			return &models.ChatResponse{
				Answer:  "에이전트가 질문을 처리하지 못했습니다.",
				Refused: true,
				Reason:  "agent_failed",
			}, nil
		}
	}

	if deps.Web == nil || !deps.Web.Configured() {
		return nil, errWebSearchUnavailable
	}

	sources, err := deps.Web.Search(ctx, question, 5)
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		telemetry.RecordGuardRefusal(ctx, "no_web_results")
		return &models.ChatResponse{Answer: refusalNoEvidence, Refused: true, Reason: "no_web_results"}, nil
	}

	answer, err := deps.Chat.Complete(ctx, services.BuildWebPrompt(question, sources))
	if err != nil {
		return nil, err
	}
	return &models.ChatResponse{Answer: answer, Sources: sources}, nil
}

var errWebSearchUnavailable = errors.New("web search is not configured")

func forcedFilter(ctx context.Context, deps ChatDeps, sessionID string) string {
	// The middleware already loaded the state; the sink may also expose it.
	type stateGetter interface {
		Get(ctx context.Context, id string) (*models.SessionState, error)
	}
	if g, ok := deps.Sessions.(stateGetter); ok && sessionID != "" {
		if state, err := g.Get(ctx, sessionID); err == nil && state != nil {
			return state.ForcedFilter
		}
	}
	return ""
}

func recordHistory(ctx context.Context, deps ChatDeps, sessionID, mode string, req models.ChatRequest, filters []string, resp *models.ChatResponse) {
	if deps.Sessions == nil || sessionID == "" {
		return
	}

	refs := make([]models.HitRef, 0, len(resp.Hits))
	for _, h := range resp.Hits {
		refs = append(refs, models.HitRef{Title: h.Title, Page: h.Page, SourceURI: h.SourceURI})
	}

	entry := models.HistoryEntry{
		Mode:      mode,
		Question:  req.Question,
		Hits:      refs,
		Timestamp: time.Now(),
	}
	// The stored filter is the effective conjunction: forced clause first,
	// then every request clause, exactly as the retriever saw them.
	if len(filters) > 0 {
		entry.Filter = strings.Join(filters, " AND ")
	}
	if err := deps.Sessions.AppendHistory(ctx, sessionID, entry); err != nil {
		logger.Warn("Failed to append chat history", "session_id", sessionID, "error", err)
	}
}

// HandleChatHistory returns the session history, optionally limited to the
// last n entries via the :n path parameter.
func HandleChatHistory() gin.HandlerFunc {
	return func(c *gin.Context) {
		state := middleware.GetSessionState(c)
		if state == nil {
			utils.RespondWithError(c, http.StatusUnauthorized,
				"session_expired", "Session not found or expired", nil)
			return
		}

		history := state.History
		if nParam := c.Param("n"); nParam != "" {
			n, err := strconv.Atoi(nParam)
			if err != nil || n < 0 {
				utils.RespondWithError(c, http.StatusBadRequest,
					"invalid_limit", "History limit must be a non-negative integer", nil)
				return
			}
			if n < len(history) {
				history = history[len(history)-n:]
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"session_id": state.ID,
			"count":      len(history),
			"history":    history,
		})
	}
}

func respondChatError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ai.ErrChatUnavailable):
		utils.RespondWithError(c, http.StatusServiceUnavailable,
			"chat_unavailable", "Chat service temporarily unavailable, try again shortly", nil)
	case errors.Is(err, ai.ErrQuotaExceeded):
		utils.RespondWithError(c, http.StatusTooManyRequests,
			"quota_exceeded", "Daily token quota exceeded for this session", nil)
	case errors.Is(err, errWebSearchUnavailable):
		utils.RespondWithError(c, http.StatusServiceUnavailable,
			"web_search_unavailable", "Web search is not configured", nil)
	default:
		utils.RespondWithError(c, http.StatusBadGateway,
			"chat_failed", "Failed to generate an answer", gin.H{"error": err.Error()})
	}
}
