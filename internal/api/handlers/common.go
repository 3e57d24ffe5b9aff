package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yoockh/medscribe/internal/models"
	"github.com/yoockh/medscribe/internal/utils"
)

type APIError struct {
	Code    utils.Code   `json:"code"`
	Message string       `json:"message"`
	Stage   models.Stage `json:"stage,omitempty"`
}

func writeError(c *gin.Context, err error) {
	status := utils.HTTPStatus(err)
	_ = c.Error(err)

	var ae *utils.AppError
	if errors.As(err, &ae) {
		msg := ae.Message
		if msg == "" {
			msg = http.StatusText(status)
		}
		c.JSON(status, APIError{
			Code:    ae.Code,
			Message: msg,
			Stage:   stageOf(utils.KindOf(err)),
		})
		return
	}

	c.JSON(status, APIError{
		Code:    utils.CodeInternal,
		Message: http.StatusText(status),
	})
}

func stageOf(k utils.Kind) models.Stage {
	switch k {
	case utils.KindStorage:
		return models.StageUpload
	case utils.KindSubmission:
		return models.StageSubmit
	case utils.KindLookup:
		return models.StageTranscribe
	case utils.KindFetch, utils.KindFormat:
		return models.StageFetch
	default:
		return ""
	}
}

// readClip reads the raw request body as an audio clip of at most limit bytes.
func readClip(c *gin.Context, limit int64, op string) (models.AudioClip, error) {
	body := http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	data, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return models.AudioClip{}, utils.E(utils.CodeTooLarge, op, "audio body exceeds upload limit", err)
		}
		return models.AudioClip{}, utils.E(utils.CodeInvalidArgument, op, "failed to read audio body", err)
	}

	clip := models.NewAudioClip(data, c.ContentType())
	if err := clip.Validate(); err != nil {
		return models.AudioClip{}, utils.ValidationError(op, err.Error(), nil)
	}
	return clip, nil
}

// jobOptionsFromQuery reads per-request recognition options from the URL.
func jobOptionsFromQuery(c *gin.Context) models.JobOptions {
	return models.JobOptions{
		LanguageCode:     c.Query("languageCode"),
		DomainSpecialty:  c.Query("specialty"),
		ConversationType: c.Query("type"),
	}
}
