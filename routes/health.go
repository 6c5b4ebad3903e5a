package routes

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"rag-knowledge-platform/internal/index"
)

// SetupHealthRoutes wires liveness and index stats endpoints.
func SetupHealthRoutes(router *gin.Engine, idx index.VectorIndex) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
	})

	router.GET("/stats", func(c *gin.Context) {
		count, err := idx.Count(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": "index unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"chunks_indexed": count})
	})
}
