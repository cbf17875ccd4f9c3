package routes

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"ia-assistant-platform/internal/ai"
	"ia-assistant-platform/internal/logger"
	"ia-assistant-platform/internal/session"
	"ia-assistant-platform/middleware"
	"ia-assistant-platform/services"
	"ia-assistant-platform/utils"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
)

// ChunkCounter reports the size of the indexed corpus.
type ChunkCounter interface {
	Count(ctx context.Context) (int64, error)
}

// SessionDeps bundles what the session endpoints depend on beyond the
// store itself.
type SessionDeps struct {
	Store  *session.Store
	Chunks ChunkCounter    // nil falls back to the session's own upload sum
	DB     *mongo.Database // nil omits quota status from the dashboard
}

func SetupSessionRoutes(router gin.IRouter, deps SessionDeps, sessionMW gin.HandlerFunc) {
	store := deps.Store
	router.POST("/session", HandleSessionCreate(store))

	protected := router.Group("/session")
	protected.Use(sessionMW)
	protected.DELETE("", HandleSessionDestroy(store))
	protected.GET("/dashboard", HandleSessionDashboard(deps))
	protected.POST("/filter", HandleSetFilter(store))
	protected.DELETE("/filter", HandleClearFilter(store))
	protected.GET("/history/export", HandleHistoryExport())
}

// HandleSessionCreate opens a session and returns its bearer token.
// Credentials are only checked when the server has them configured.
func HandleSessionCreate(store *session.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		// Body is optional for open deployments.
		_ = c.ShouldBindJSON(&req)

		state, token, err := store.Create(c.Request.Context(), req.Username, req.Password)
		if err == session.ErrBadCredentials {
			utils.RespondWithError(c, http.StatusUnauthorized,
				"invalid_credentials", "Invalid username or password", nil)
			return
		}
		if err != nil {
			utils.RespondWithError(c, http.StatusInternalServerError,
				"session_create_failed", "Failed to create session", nil)
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"session_id": state.ID,
			"token":      token,
			"created_at": state.CreatedAt,
		})
	}
}

func HandleSessionDestroy(store *session.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := middleware.GetSessionID(c)
		if err := store.Destroy(c.Request.Context(), sessionID); err != nil {
			utils.RespondWithError(c, http.StatusInternalServerError,
				"session_destroy_failed", "Failed to destroy session", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "session destroyed"})
	}
}

// HandleSessionDashboard summarizes what the session has done so far.
func HandleSessionDashboard(deps SessionDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		state := middleware.GetSessionState(c)
		if state == nil {
			utils.RespondWithError(c, http.StatusUnauthorized,
				"session_expired", "Session not found or expired", nil)
			return
		}

		refused := 0
		for _, h := range state.History {
			if len(h.Hits) == 0 {
				refused++
			}
		}

		sessionChunks := 0
		tagCounts := make(map[string]int)
		for _, u := range state.Uploads {
			sessionChunks += u.ChunkCount
			for _, tag := range u.Hashtags {
				tagCounts[tag]++
			}
		}

		// The indexed total comes from the store; the session sum only
		// stands in when no counter is wired or the store is unreachable.
		indexedChunks := int64(sessionChunks)
		if deps.Chunks != nil {
			if n, err := deps.Chunks.Count(c.Request.Context()); err == nil {
				indexedChunks = n
			} else {
				logger.Warn("Failed to count indexed chunks", "error", err)
			}
		}

		resp := gin.H{
			"session_id":     state.ID,
			"created_at":     state.CreatedAt,
			"questions":      len(state.History),
			"refusals":       refused,
			"uploads":        state.Uploads,
			"session_chunks": sessionChunks,
			"indexed_chunks": indexedChunks,
			"top_hashtags":   topHashtags(tagCounts, 10),
			"forced_filter":  state.ForcedFilter,
		}

		if deps.DB != nil {
			if quota, err := ai.GetSessionQuotaStatus(c.Request.Context(), deps.DB, state.ID); err == nil {
				resp["quota"] = quota
			} else {
				logger.Warn("Failed to load session quota", "session_id", state.ID, "error", err)
			}
		}

		c.JSON(http.StatusOK, resp)
	}
}

// topHashtags returns the n most frequent tags, most used first, ties
// broken alphabetically.
func topHashtags(counts map[string]int, n int) []string {
	tags := make([]string, 0, len(counts))
	for tag := range counts {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool {
		if counts[tags[i]] != counts[tags[j]] {
			return counts[tags[i]] > counts[tags[j]]
		}
		return tags[i] < tags[j]
	})
	if len(tags) > n {
		tags = tags[:n]
	}
	return tags
}

// HandleSetFilter pins a retrieval filter for every later question in
// this session. The clause is validated before it is stored.
func HandleSetFilter(store *session.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Filter string `json:"filter" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithError(c, http.StatusBadRequest,
				"invalid_input", "Filter clause required", gin.H{"error": err.Error()})
			return
		}

		if _, err := services.BuildSearchFilter([]string{req.Filter}); err != nil {
			utils.RespondWithError(c, http.StatusBadRequest,
				"invalid_filter", "Filter clause is not valid", gin.H{"error": err.Error()})
			return
		}

		sessionID := middleware.GetSessionID(c)
		if err := store.SetForcedFilter(c.Request.Context(), sessionID, req.Filter); err != nil {
			utils.RespondWithError(c, http.StatusInternalServerError,
				"filter_set_failed", "Failed to store filter", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "filter set", "filter": req.Filter})
	}
}

func HandleClearFilter(store *session.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := middleware.GetSessionID(c)
		if err := store.ClearForcedFilter(c.Request.Context(), sessionID); err != nil {
			utils.RespondWithError(c, http.StatusInternalServerError,
				"filter_clear_failed", "Failed to clear filter", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "filter cleared"})
	}
}

// HandleHistoryExport streams the session history as an XLSX download.
func HandleHistoryExport() gin.HandlerFunc {
	return func(c *gin.Context) {
		state := middleware.GetSessionState(c)
		if state == nil {
			utils.RespondWithError(c, http.StatusUnauthorized,
				"session_expired", "Session not found or expired", nil)
			return
		}

		data, filename, err := services.ExportHistoryXLSX(state.ID, state.History)
		if err != nil {
			utils.RespondWithError(c, http.StatusInternalServerError,
				"export_failed", "Failed to build export", gin.H{"error": err.Error()})
			return
		}

		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
		c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
	}
}
