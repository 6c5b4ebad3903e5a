package routes

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"rag-knowledge-platform/internal/queue"
	"rag-knowledge-platform/services"
	"rag-knowledge-platform/utils"
)

type ingestRequest struct {
	DocumentID string         `json:"document_id"`
	Text       string         `json:"text"`
	Metadata   map[string]any `json:"metadata"`
	// Async defers chunking and embedding to the worker queue.
	Async bool `json:"async"`
}

// SetupDocumentRoutes wires document ingestion and deletion. The asynq client
// may be nil, in which case async requests are rejected.
func SetupDocumentRoutes(router *gin.Engine, rag *services.RAGService, queueClient *asynq.Client) {
	documents := router.Group("/documents")

	documents.POST("", func(c *gin.Context) {
		var req ingestRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}
		if strings.TrimSpace(req.Text) == "" {
			utils.RespondWithBadRequest(c, "text is required", nil)
			return
		}

		if req.Async {
			if queueClient == nil {
				utils.RespondWithError(c, http.StatusServiceUnavailable, "queue_unavailable", "async ingestion is not configured", nil)
				return
			}
			task, err := queue.NewIngestDocumentTask(req.DocumentID, req.Text, req.Metadata)
			if err != nil {
				utils.RespondWithInternalError(c, "failed to create ingest task", nil)
				return
			}
			info, err := queueClient.Enqueue(task)
			if err != nil {
				utils.RespondWithError(c, http.StatusServiceUnavailable, "queue_unavailable", "failed to enqueue ingest task", nil)
				return
			}
			c.JSON(http.StatusAccepted, gin.H{"task_id": info.ID, "queue": info.Queue})
			return
		}

		documentID, chunks, err := rag.IngestDocument(c.Request.Context(), req.DocumentID, req.Text, req.Metadata)
		if err != nil {
			utils.RespondWithAppError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"document_id": documentID,
			"chunks":      chunks,
		})
	})

	documents.DELETE("/:id", func(c *gin.Context) {
		documentID := c.Param("id")
		if documentID == "" {
			utils.RespondWithBadRequest(c, "document id is required", nil)
			return
		}

		if c.Query("async") == "true" {
			if queueClient == nil {
				utils.RespondWithError(c, http.StatusServiceUnavailable, "queue_unavailable", "async deletion is not configured", nil)
				return
			}
			task, err := queue.NewDeleteDocumentTask(documentID)
			if err != nil {
				utils.RespondWithInternalError(c, "failed to create delete task", nil)
				return
			}
			info, err := queueClient.Enqueue(task)
			if err != nil {
				utils.RespondWithError(c, http.StatusServiceUnavailable, "queue_unavailable", "failed to enqueue delete task", nil)
				return
			}
			c.JSON(http.StatusAccepted, gin.H{"task_id": info.ID, "queue": info.Queue})
			return
		}

		removed, err := rag.DeleteDocument(c.Request.Context(), documentID)
		if err != nil {
			utils.RespondWithAppError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"document_id":    documentID,
			"chunks_removed": removed,
		})
	})
}
