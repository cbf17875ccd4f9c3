package routes

import (
	"net/http"
	"strconv"

	"ia-assistant-platform/internal/config"
	"ia-assistant-platform/models"
	"ia-assistant-platform/utils"

	"github.com/gin-gonic/gin"
)

func SetupSearchRoutes(router gin.IRouter, cfg *config.Config, retriever Retriever, sessionMW gin.HandlerFunc) {
	search := router.Group("/search")
	search.Use(sessionMW)
	search.GET("", HandleSearch(cfg, retriever))
}

// HandleSearch runs a raw hybrid retrieval and returns scored hits with
// truncated chunk previews.
func HandleSearch(cfg *config.Config, retriever Retriever) gin.HandlerFunc {
	return func(c *gin.Context) {
		query := c.Query("q")
		if query == "" {
			utils.RespondWithError(c, http.StatusBadRequest,
				"missing_query", "Query parameter q is required", nil)
			return
		}

		top := cfg.DefaultTopK
		if topParam := c.Query("top"); topParam != "" {
			n, err := strconv.Atoi(topParam)
			if err != nil || n <= 0 || n > 50 {
				utils.RespondWithError(c, http.StatusBadRequest,
					"invalid_top", "top must be an integer between 1 and 50", nil)
				return
			}
			top = n
		}

		var filters []string
		if filter := c.Query("filter"); filter != "" {
			filters = []string{filter}
		}

		hits, err := retriever.Search(c.Request.Context(), query, top, filters)
		if err != nil {
			utils.RespondWithError(c, http.StatusBadGateway,
				"search_failed", "Search failed", gin.H{"error": err.Error()})
			return
		}

		previews := make([]models.SearchHit, len(hits))
		for i, h := range hits {
			h.Chunk = truncatePreview(h.Chunk, cfg.SnippetPreviewChars)
			previews[i] = h
		}

		c.JSON(http.StatusOK, gin.H{
			"query": query,
			"count": len(previews),
			"hits":  previews,
		})
	}
}

func truncatePreview(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes]) + "…"
}
