package routes

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"rag-knowledge-platform/services"
	"rag-knowledge-platform/utils"
)

// SetupQueryRoutes wires the query endpoint.
func SetupQueryRoutes(router *gin.Engine, rag *services.RAGService) {
	router.POST("/query", func(c *gin.Context) {
		var req services.QueryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}
		if strings.TrimSpace(req.Question) == "" {
			utils.RespondWithBadRequest(c, "question is required", nil)
			return
		}

		resp, err := rag.Query(c.Request.Context(), req)
		if err != nil {
			utils.RespondWithAppError(c, err)
			return
		}

		c.JSON(http.StatusOK, resp)
	})
}
