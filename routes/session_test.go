package routes

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"ia-assistant-platform/models"

	"github.com/gin-gonic/gin"
)

type fakeChunkCounter struct {
	n   int64
	err error
}

func (f *fakeChunkCounter) Count(ctx context.Context) (int64, error) {
	return f.n, f.err
}

func dashboardRouter(deps SessionDeps, state *models.SessionState) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("session_id", state.ID)
		c.Set("session_state", state)
		c.Next()
	})
	router.GET("/session/dashboard", HandleSessionDashboard(deps))
	return router
}

func getDashboard(t *testing.T, router *gin.Engine) map[string]any {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/session/dashboard", nil)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func TestDashboardUsesStoreChunkCount(t *testing.T) {
	state := &models.SessionState{
		ID:      "sess-1",
		Uploads: []models.UploadRecord{{DocID: "d1", ChunkCount: 7}},
	}
	router := dashboardRouter(SessionDeps{Chunks: &fakeChunkCounter{n: 1234}}, state)

	body := getDashboard(t, router)
	if got := body["indexed_chunks"].(float64); got != 1234 {
		t.Errorf("indexed_chunks = %v, want the store total 1234", got)
	}
	if got := body["session_chunks"].(float64); got != 7 {
		t.Errorf("session_chunks = %v, want 7", got)
	}
}

func TestDashboardFallsBackToSessionSum(t *testing.T) {
	state := &models.SessionState{
		ID: "sess-1",
		Uploads: []models.UploadRecord{
			{DocID: "d1", ChunkCount: 3},
			{DocID: "d2", ChunkCount: 5},
		},
	}
	for name, counter := range map[string]ChunkCounter{
		"no counter":    nil,
		"store failure": &fakeChunkCounter{err: errors.New("store down")},
	} {
		router := dashboardRouter(SessionDeps{Chunks: counter}, state)
		body := getDashboard(t, router)
		if got := body["indexed_chunks"].(float64); got != 8 {
			t.Errorf("%s: indexed_chunks = %v, want the session sum 8", name, got)
		}
	}
}
