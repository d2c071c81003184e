package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the transcription API. submit runs only in front of the upload route.
func RegisterRoutes(r gin.IRouter, h *TranscriptionHandler, submit ...gin.HandlerFunc) {
	group := r.Group("/transcriptions")
	{
		handlers := append(append([]gin.HandlerFunc{}, submit...), h.CreateTranscription)
		group.POST("", handlers...)
		group.GET("/:id", h.GetTranscription)
		group.GET("/:id/events", h.StreamEvents)
	}
}

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
