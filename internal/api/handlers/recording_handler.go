package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yoockh/medscribe/internal/models"
	"github.com/yoockh/medscribe/internal/services"
	"github.com/yoockh/medscribe/internal/utils"
)

// RecordingHandler serves the step-by-step endpoints the browser recorder
// drives itself: upload, start a job, poll it, read the transcript.
type RecordingHandler struct {
	svc            services.TranscriptionService
	maxUploadBytes int64
}

func NewRecordingHandler(svc services.TranscriptionService, maxUploadBytes int64) *RecordingHandler {
	return &RecordingHandler{svc: svc, maxUploadBytes: maxUploadBytes}
}

type UploadResponse struct {
	Location models.Locator `json:"Location"`
}

type TranscribeRequest struct {
	MediaFileURI string `json:"mediaFileUri" binding:"required"`
	LanguageCode string `json:"languageCode"`
	Specialty    string `json:"specialty"`
	Type         string `json:"type"` // CONVERSATION|DICTATION
	OutputBucket string `json:"outputBucket"`
}

type TranscribeResponse struct {
	JobID                models.JobHandle `json:"jobId"`
	TranscriptionJobName models.JobHandle `json:"TranscriptionJobName"`
}

type TranscriptResponse struct {
	Transcript string `json:"transcript"`
}

func (h *RecordingHandler) Upload(c *gin.Context) {
	clip, err := readClip(c, h.maxUploadBytes, "RecordingHandler.Upload")
	if err != nil {
		writeError(c, err)
		return
	}

	loc, err := h.svc.Upload(c.Request.Context(), clip)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, UploadResponse{Location: loc})
}

func (h *RecordingHandler) Transcribe(c *gin.Context) {
	var req TranscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.ValidationError("RecordingHandler.Transcribe", "mediaFileUri is required", err))
		return
	}

	handle, err := h.svc.StartJob(c.Request.Context(), models.Locator(req.MediaFileURI), models.JobOptions{
		LanguageCode:     req.LanguageCode,
		DomainSpecialty:  req.Specialty,
		ConversationType: req.Type,
		OutputLocation:   req.OutputBucket,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, TranscribeResponse{JobID: handle, TranscriptionJobName: handle})
}

// Status returns the provider's job descriptor as-is.
func (h *RecordingHandler) Status(c *gin.Context) {
	handle := models.JobHandle(c.Query("jobName"))

	st, err := h.svc.JobStatus(c.Request.Context(), handle)
	if err != nil {
		writeError(c, err)
		return
	}

	desc := st.Job
	if desc == nil {
		desc = &models.JobDescriptor{
			TranscriptionJobName:   string(handle),
			TranscriptionJobStatus: string(st.State),
			FailureReason:          st.Reason,
		}
		if st.ResultLocator != "" {
			desc.Transcript = &models.JobTranscript{TranscriptFileUri: string(st.ResultLocator)}
		}
	}
	c.JSON(http.StatusOK, desc)
}

func (h *RecordingHandler) Transcript(c *gin.Context) {
	text, err := h.svc.FetchTranscript(c.Request.Context(), models.Locator(c.Query("uri")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, TranscriptResponse{Transcript: text})
}
