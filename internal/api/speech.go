package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ensemble-chat/backend/internal/service"
	apperrors "ensemble-chat/backend/pkg/errors"
)

type SpeechHandler struct {
	speech *service.SpeechService
}

func NewSpeechHandler(speech *service.SpeechService) *SpeechHandler {
	return &SpeechHandler{speech: speech}
}

func (h *SpeechHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/speech", h.Synthesize)
}

type synthesizeRequest struct {
	Text    string `json:"text" binding:"required"`
	VoiceID string `json:"voice_id"`
}

// Synthesize returns playback audio for a message, or 204 when the
// generation service has no audio for it.
func (h *SpeechHandler) Synthesize(c *gin.Context) {
	var req synthesizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewBadRequestError(apperrors.CodeValidation, err.Error()))
		return
	}
	audio, err := h.speech.Synthesize(c.Request.Context(), req.Text, req.VoiceID)
	if err != nil {
		c.Error(apperrors.NewInternalServerError(apperrors.CodeGenerationFailed, err.Error()))
		return
	}
	if audio == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.Data(http.StatusOK, "audio/mpeg", audio)
}
