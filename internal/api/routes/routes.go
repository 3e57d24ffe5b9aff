package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yoockh/medscribe/internal/api/handlers"
)

type Deps struct {
	Recording *handlers.RecordingHandler
	Workflow  *handlers.WorkflowHandler
	WS        *handlers.WSHandler

	// StaticDir, when set, is served for unmatched GET requests.
	StaticDir string
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	// Health-ish
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	// Recorder steps
	r.POST("/upload", d.Recording.Upload)
	r.POST("/transcribe", d.Recording.Transcribe)
	r.GET("/transcription-status", d.Recording.Status)
	r.GET("/transcript", d.Recording.Transcript)

	// Server-driven workflows
	r.POST("/workflows", d.Workflow.Create)
	r.GET("/workflows/:id", d.Workflow.Get)
	r.DELETE("/workflows/:id", d.Workflow.Cancel)

	// WebSocket
	r.GET("/ws/workflows/:id", d.WS.WorkflowWS)

	if d.StaticDir != "" {
		r.NoRoute(gin.WrapH(http.FileServer(http.Dir(d.StaticDir))))
	}
}
