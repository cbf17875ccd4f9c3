package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"ia-assistant-platform/internal/ai"
	"ia-assistant-platform/internal/config"
	"ia-assistant-platform/models"

	"github.com/gin-gonic/gin"
)

type fakeRetriever struct {
	hits    []models.SearchHit
	err     error
	filters []string // filters of the last call
}

func (f *fakeRetriever) Search(ctx context.Context, query string, top int, filters []string) ([]models.SearchHit, error) {
	f.filters = filters
	return f.hits, f.err
}

type fakeCompleter struct {
	answer string
	calls  int
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	f.calls++
	return f.answer, nil
}

type fakeSessions struct {
	entries []models.HistoryEntry
}

func (f *fakeSessions) AppendHistory(ctx context.Context, id string, entry models.HistoryEntry) error {
	f.entries = append(f.entries, entry)
	return nil
}

// fakeStatefulSessions additionally serves session state, which the chat
// flow uses to pick up the forced filter.
type fakeStatefulSessions struct {
	fakeSessions
	state *models.SessionState
}

func (f *fakeStatefulSessions) Get(ctx context.Context, id string) (*models.SessionState, error) {
	return f.state, nil
}

type fakeAgent struct {
	answer ai.AgentAnswer
	err    error
}

func (f *fakeAgent) Configured() bool { return true }

func (f *fakeAgent) Ask(ctx context.Context, question string) (ai.AgentAnswer, error) {
	return f.answer, f.err
}

func testChatConfig() *config.Config {
	return &config.Config{
		DefaultTopK:     8,
		GuardTopK:       3,
		GuardMinMatches: 2,
	}
}

func chatTestRouter(deps ChatDeps) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("session_id", "sess-1")
		c.Next()
	})
	router.POST("/chat/ask", HandleChatAsk(deps))
	return router
}

func askQuestion(t *testing.T, router *gin.Engine, body map[string]any) (*httptest.ResponseRecorder, models.ChatResponse) {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/chat/ask", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	var resp models.ChatResponse
	if w.Code == http.StatusOK {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return w, resp
}

func TestChatAskRefusesWithoutEvidence(t *testing.T) {
	chat := &fakeCompleter{answer: "should not be used"}
	sessions := &fakeSessions{}
	router := chatTestRouter(ChatDeps{
		Cfg:       testChatConfig(),
		Retriever: &fakeRetriever{hits: nil},
		Chat:      chat,
		Sessions:  sessions,
	})

	w, resp := askQuestion(t, router, map[string]any{"question": "보안 정책은 무엇인가요?"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if !resp.Refused || resp.Reason != "no_evidence" {
		t.Errorf("expected a no_evidence refusal, got %+v", resp)
	}
	if chat.calls != 0 {
		t.Errorf("chat model must not be called without evidence, got %d calls", chat.calls)
	}
	if len(sessions.entries) != 1 {
		t.Errorf("refusals must still be recorded in history, got %d entries", len(sessions.entries))
	}
}

func TestChatAskRefusesOffTopicQuestion(t *testing.T) {
	hits := []models.SearchHit{
		{ID: "a", Title: "보안지침", Chunk: "접근 통제와 권한 관리 절차."},
		{ID: "b", Title: "보안지침", Chunk: "비밀번호 변경 주기."},
	}
	chat := &fakeCompleter{answer: "should not be used"}
	router := chatTestRouter(ChatDeps{
		Cfg:       testChatConfig(),
		Retriever: &fakeRetriever{hits: hits},
		Chat:      chat,
		Sessions:  &fakeSessions{},
	})

	w, resp := askQuestion(t, router, map[string]any{"question": "오늘 급식 메뉴 알려줘"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if !resp.Refused || resp.Reason != "off_topic" {
		t.Errorf("expected an off_topic refusal, got refused=%v reason=%q", resp.Refused, resp.Reason)
	}
	if chat.calls != 0 {
		t.Errorf("chat model must not be called for off topic questions, got %d calls", chat.calls)
	}
}

func TestChatAskAnswersWithEvidence(t *testing.T) {
	hits := []models.SearchHit{
		{ID: "a", Title: "보안 정책 요약", Chunk: "보안 정책은 접근 통제를 포함한다.", SourceURI: "upload://a.pdf"},
		{ID: "b", Title: "보안 운영", Chunk: "정책 위반 시 보고 절차.", SourceURI: "upload://b.pdf"},
	}
	chat := &fakeCompleter{answer: "보안 정책은 접근 통제를 다룹니다."}
	sessions := &fakeSessions{}
	router := chatTestRouter(ChatDeps{
		Cfg:       testChatConfig(),
		Retriever: &fakeRetriever{hits: hits},
		Chat:      chat,
		Sessions:  sessions,
	})

	w, resp := askQuestion(t, router, map[string]any{"question": "보안 정책 내용을 알려줘"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if resp.Refused {
		t.Fatalf("expected an answer, got refusal %q", resp.Reason)
	}
	if resp.Answer != chat.answer {
		t.Errorf("answer = %q", resp.Answer)
	}
	if len(resp.Hits) != 2 {
		t.Errorf("expected evidence hits in the response, got %d", len(resp.Hits))
	}
	if chat.calls != 1 {
		t.Errorf("expected exactly one completion, got %d", chat.calls)
	}
	if len(sessions.entries) != 1 || len(sessions.entries[0].Hits) != 2 {
		t.Errorf("history entry missing hit refs: %+v", sessions.entries)
	}
}

func TestChatAskWebQASurfacesAgentCitations(t *testing.T) {
	sources := []models.WebSource{
		{Title: "보안 공지", URL: "https://example.com/notice", Snippet: "정기 점검 안내"},
		{Title: "FAQ", URL: "https://example.com/faq"},
	}
	router := chatTestRouter(ChatDeps{
		Cfg:       testChatConfig(),
		Retriever: &fakeRetriever{},
		Chat:      &fakeCompleter{},
		Agent: &fakeAgent{answer: ai.AgentAnswer{
			Outcome: ai.RunCompleted,
			Text:    "점검은 매주 화요일입니다.",
			Sources: sources,
		}},
		Sessions: &fakeSessions{},
	})

	w, resp := askQuestion(t, router, map[string]any{"question": "점검 일정 알려줘", "mode": "web_qa"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if resp.Refused {
		t.Fatalf("expected an answer, got refusal %q", resp.Reason)
	}
	if len(resp.Sources) != 2 {
		t.Fatalf("expected agent citations in the response, got %d", len(resp.Sources))
	}
	if resp.Sources[0].URL != "https://example.com/notice" {
		t.Errorf("citation order changed: %+v", resp.Sources)
	}
}

func TestChatHistoryRecordsEffectiveFilter(t *testing.T) {
	hits := []models.SearchHit{
		{ID: "a", Title: "보안 정책 요약", Chunk: "보안 정책은 접근 통제를 포함한다."},
		{ID: "b", Title: "보안 운영", Chunk: "정책 위반 시 보고 절차."},
	}
	sessions := &fakeStatefulSessions{
		state: &models.SessionState{ID: "sess-1", ForcedFilter: `{"doc_id":"d1"}`},
	}
	retriever := &fakeRetriever{hits: hits}
	router := chatTestRouter(ChatDeps{
		Cfg:       testChatConfig(),
		Retriever: retriever,
		Chat:      &fakeCompleter{answer: "답변"},
		Sessions:  sessions,
	})

	w, _ := askQuestion(t, router, map[string]any{
		"question": "보안 정책 내용을 알려줘",
		"filter":   []string{`{"year":2024}`, `{"system":"web"}`},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	wantFilters := []string{`{"doc_id":"d1"}`, `{"year":2024}`, `{"system":"web"}`}
	if len(retriever.filters) != len(wantFilters) {
		t.Fatalf("retriever saw filters %v, want %v", retriever.filters, wantFilters)
	}
	for i := range wantFilters {
		if retriever.filters[i] != wantFilters[i] {
			t.Fatalf("retriever saw filters %v, want %v", retriever.filters, wantFilters)
		}
	}

	if len(sessions.entries) != 1 {
		t.Fatalf("expected one history entry, got %d", len(sessions.entries))
	}
	want := `{"doc_id":"d1"} AND {"year":2024} AND {"system":"web"}`
	if got := sessions.entries[0].Filter; got != want {
		t.Errorf("history filter = %q, want %q", got, want)
	}
}

func TestChatAskRejectsUnknownMode(t *testing.T) {
	router := chatTestRouter(ChatDeps{
		Cfg:       testChatConfig(),
		Retriever: &fakeRetriever{},
		Chat:      &fakeCompleter{},
	})

	w, _ := askQuestion(t, router, map[string]any{"question": "q", "mode": "poetry"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}
