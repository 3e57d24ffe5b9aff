package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yoockh/medscribe/internal/services"
)

type WorkflowHandler struct {
	svc            services.WorkflowService
	maxUploadBytes int64
}

func NewWorkflowHandler(svc services.WorkflowService, maxUploadBytes int64) *WorkflowHandler {
	return &WorkflowHandler{svc: svc, maxUploadBytes: maxUploadBytes}
}

// Create starts a workflow for the raw audio body and answers before the
// upload happens.
func (h *WorkflowHandler) Create(c *gin.Context) {
	clip, err := readClip(c, h.maxUploadBytes, "WorkflowHandler.Create")
	if err != nil {
		writeError(c, err)
		return
	}

	snap, err := h.svc.Start(c.Request.Context(), clip, jobOptionsFromQuery(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Location", "/workflows/"+snap.ID)
	c.JSON(http.StatusAccepted, snap)
}

func (h *WorkflowHandler) Get(c *gin.Context) {
	snap, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *WorkflowHandler) Cancel(c *gin.Context) {
	snap, err := h.svc.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	status := http.StatusAccepted
	if snap.Terminal() {
		status = http.StatusOK
	}
	c.JSON(status, snap)
}
