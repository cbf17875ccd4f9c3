package routes

import (
	"context"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"ia-assistant-platform/internal/config"
	"ia-assistant-platform/internal/logger"
	"ia-assistant-platform/internal/queue"
	"ia-assistant-platform/middleware"
	"ia-assistant-platform/models"
	"ia-assistant-platform/services"
	"ia-assistant-platform/utils"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
)

// DocumentIndexer runs one document through the indexing pipeline.
type DocumentIndexer interface {
	Index(ctx context.Context, req services.IndexRequest) (*services.IndexOutcome, error)
}

// Digester produces the upload-time summary and hashtags.
type Digester interface {
	Digest(ctx context.Context, text string) (*services.DocumentDigest, error)
}

// Enqueuer is the slice of the asynq client used for async processing.
type Enqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// UploadSink records upload outcomes on the session.
type UploadSink interface {
	AppendUpload(ctx context.Context, id string, rec models.UploadRecord) error
}

// UploadDeps bundles the upload endpoint's collaborators.
type UploadDeps struct {
	Cfg        *config.Config
	Indexer    DocumentIndexer
	Summarizer Digester
	Retriever  Retriever
	Blobs      *services.BlobStore
	Queue      Enqueuer // nil forces synchronous processing
	Sessions   UploadSink
}

// uploadResult reports what happened to one file. Failures never abort
// the remaining files of the same request.
type uploadResult struct {
	Filename   string   `json:"filename"`
	Status     string   `json:"status"` // indexed | queued | failed
	DocID      string   `json:"doc_id,omitempty"`
	ChunkCount int      `json:"chunk_count,omitempty"`
	Summary    string   `json:"summary,omitempty"`
	Hashtags   []string `json:"hashtags,omitempty"`
	Similar    []models.HitRef `json:"similar,omitempty"`
	BlobURL    string   `json:"blob_url,omitempty"`
	Error      string   `json:"error,omitempty"`
}

func SetupUploadRoutes(router gin.IRouter, deps UploadDeps, sessionMW gin.HandlerFunc) {
	docs := router.Group("/documents")
	docs.Use(sessionMW)
	docs.POST("/upload", HandleUpload(deps))
	docs.GET("/uploads", HandleUploadList())
	docs.GET("/uploads/:n", HandleUploadList())
}

// HandleUpload accepts one or more documents, stores the originals and
// pushes each through extract, chunk, embed, index. Files above the sync
// processing limit are queued for the worker instead.
func HandleUpload(deps UploadDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		form, err := c.MultipartForm()
		if err != nil {
			utils.RespondWithError(c, http.StatusBadRequest,
				"invalid_form", "Multipart form required", gin.H{"error": err.Error()})
			return
		}

		files := form.File["files"]
		if len(files) == 0 {
			files = form.File["file"]
		}
		if len(files) == 0 {
			utils.RespondWithError(c, http.StatusBadRequest,
				"no_files", "No files in request", nil)
			return
		}
		if len(files) > deps.Cfg.MaxUploadFiles {
			utils.RespondWithError(c, http.StatusBadRequest,
				"too_many_files", "Too many files in one request",
				gin.H{"max_files": deps.Cfg.MaxUploadFiles})
			return
		}

		sessionID := middleware.GetSessionID(c)
		results := make([]uploadResult, 0, len(files))
		for _, fh := range files {
			results = append(results, processUpload(c.Request.Context(), deps, sessionID, fh))
		}

		c.JSON(http.StatusOK, gin.H{"results": results})
	}
}

func processUpload(ctx context.Context, deps UploadDeps, sessionID string, fh *multipart.FileHeader) uploadResult {
	result := uploadResult{Filename: fh.Filename, Status: "failed"}

	if fh.Size > deps.Cfg.MaxFileSize {
		result.Error = "file exceeds the size limit"
		return result
	}
	if !services.SupportedExtension(fh.Filename) {
		result.Error = "unsupported file type " + strings.ToLower(filepath.Ext(fh.Filename))
		return result
	}

	sourceURI := "upload://" + fh.Filename
	docID := services.DocIDFor(sourceURI)
	result.DocID = docID

	src, err := fh.Open()
	if err != nil {
		result.Error = "failed to read upload"
		return result
	}
	defer src.Close()

	name, err := deps.Blobs.Save(docID, fh.Filename, src)
	if err != nil {
		result.Error = "failed to store file"
		return result
	}
	path, err := deps.Blobs.Path(name)
	if err != nil {
		result.Error = "failed to locate stored file"
		return result
	}

	title := strings.TrimSuffix(fh.Filename, filepath.Ext(fh.Filename))

	// Large files go to the worker queue.
	if deps.Queue != nil && fh.Size > deps.Cfg.SyncProcessingLimit {
		task, err := queue.NewIndexDocumentTask(queue.IndexDocumentPayload{
			Path:      path,
			Title:     title,
			SourceURI: sourceURI,
			System:    "upload",
		})
		if err == nil {
			_, err = deps.Queue.Enqueue(task)
		}
		if err != nil {
			result.Error = "failed to queue file for processing"
			return result
		}
		result.Status = "queued"
		return result
	}

	outcome, err := deps.Indexer.Index(ctx, services.IndexRequest{
		Path:      path,
		Title:     title,
		SourceURI: sourceURI,
		System:    "upload",
		ChunkSize: deps.Cfg.UploadChunkSize,
		Overlap:   deps.Cfg.UploadChunkOverlap,
	})
	if err != nil {
		result.Error = err.Error()
		return result
	}

	result.Status = "indexed"
	result.ChunkCount = outcome.ChunkCount
	result.BlobURL = deps.Blobs.SignedURL(name)

	if deps.Summarizer != nil {
		if digest, err := deps.Summarizer.Digest(ctx, outcome.CleanText); err == nil {
			result.Summary = digest.Summary
			result.Hashtags = digest.Hashtags
		} else {
			logger.Warn("Upload digest failed", "doc_id", docID, "error", err)
		}
	}
	if deps.Retriever != nil {
		result.Similar = similarDocuments(ctx, deps.Retriever, docID, result.Summary, title)
	}

	if deps.Sessions != nil && sessionID != "" {
		rec := models.UploadRecord{
			DocID:      docID,
			Title:      title,
			ChunkCount: outcome.ChunkCount,
			Summary:    result.Summary,
			Hashtags:   result.Hashtags,
			Similar:    result.Similar,
			BlobURL:    result.BlobURL,
			Timestamp:  time.Now(),
		}
		if err := deps.Sessions.AppendUpload(ctx, sessionID, rec); err != nil {
			logger.Warn("Failed to record upload", "session_id", sessionID, "error", err)
		}
	}
	return result
}

// HandleUploadList returns the session's upload records, optionally only
// the last n via the :n path parameter.
func HandleUploadList() gin.HandlerFunc {
	return func(c *gin.Context) {
		state := middleware.GetSessionState(c)
		if state == nil {
			utils.RespondWithError(c, http.StatusUnauthorized,
				"session_expired", "Session not found or expired", nil)
			return
		}

		uploads := state.Uploads
		if nParam := c.Param("n"); nParam != "" {
			n, err := strconv.Atoi(nParam)
			if err != nil || n < 0 {
				utils.RespondWithError(c, http.StatusBadRequest,
					"invalid_limit", "Upload limit must be a non-negative integer", nil)
				return
			}
			if n < len(uploads) {
				uploads = uploads[len(uploads)-n:]
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"session_id": state.ID,
			"count":      len(uploads),
			"uploads":    uploads,
		})
	}
}

// similarDocuments finds up to three already indexed documents close to
// the new one, keyed off its summary (falling back to the title).
func similarDocuments(ctx context.Context, retriever Retriever, docID, summary, title string) []models.HitRef {
	query := summary
	if query == "" {
		query = title
	}
	hits, err := retriever.Search(ctx, query, 6, nil)
	if err != nil {
		return nil
	}

	seen := map[string]bool{docID: true}
	refs := make([]models.HitRef, 0, 3)
	for _, h := range hits {
		if seen[h.DocID] {
			continue
		}
		seen[h.DocID] = true
		refs = append(refs, models.HitRef{Title: h.Title, Page: h.Page, SourceURI: h.SourceURI})
		if len(refs) == 3 {
			break
		}
	}
	return refs
}
