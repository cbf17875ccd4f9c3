package routes

import (
	"net/http"

	"ia-assistant-platform/internal/crawler"
	"ia-assistant-platform/services"
	"ia-assistant-platform/utils"

	"github.com/gin-gonic/gin"
)

func SetupIngestRoutes(router gin.IRouter, indexer DocumentIndexer, sessionMW gin.HandlerFunc) {
	ingest := router.Group("/ingest")
	ingest.Use(sessionMW)
	ingest.POST("/url", HandleIngestURL(indexer, crawler.NewFetcher()))
}

// HandleIngestURL fetches one web page and indexes its text content.
func HandleIngestURL(indexer DocumentIndexer, fetcher *crawler.Fetcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			URL    string `json:"url" binding:"required"`
			System string `json:"system"`
			Year   int    `json:"year"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithError(c, http.StatusBadRequest,
				"invalid_input", "URL required", gin.H{"error": err.Error()})
			return
		}

		page, err := fetcher.Fetch(req.URL)
		if err != nil {
			utils.RespondWithError(c, http.StatusBadGateway,
				"fetch_failed", "Failed to fetch URL", gin.H{"error": err.Error()})
			return
		}

		system := req.System
		if system == "" {
			system = "web"
		}

		outcome, err := indexer.Index(c.Request.Context(), services.IndexRequest{
			Text:      page.Text,
			Title:     page.Title,
			SourceURI: page.URL,
			System:    system,
			Year:      req.Year,
		})
		if err != nil {
			utils.RespondWithError(c, http.StatusInternalServerError,
				"index_failed", "Failed to index page", gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"doc_id":      outcome.DocID,
			"title":       outcome.Title,
			"chunk_count": outcome.ChunkCount,
			"source_uri":  page.URL,
		})
	}
}
