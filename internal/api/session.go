package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"ensemble-chat/backend/internal/models"
	"ensemble-chat/backend/internal/orchestrator"
	"ensemble-chat/backend/internal/service"
	apperrors "ensemble-chat/backend/pkg/errors"
)

type SessionHandler struct {
	sessions *service.SessionService
}

func NewSessionHandler(sessions *service.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

func (h *SessionHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/sessions", h.CreateSession)
	rg.GET("/sessions", h.ListSessions)
	rg.GET("/sessions/:sessionId", h.GetSession)
	rg.DELETE("/sessions/:sessionId", h.DeleteSession)
	rg.POST("/sessions/:sessionId/open", h.OpenSession)
	rg.POST("/sessions/:sessionId/close", h.CloseSession)
	rg.POST("/sessions/:sessionId/messages", h.SendMessage)
	rg.POST("/sessions/:sessionId/media", h.GenerateMedia)
	rg.POST("/sessions/:sessionId/nsfw", h.ToggleNSFW)
	rg.POST("/sessions/:sessionId/clear", h.ClearHistory)
}

func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req models.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewBadRequestError(apperrors.CodeValidation, err.Error()))
		return
	}
	session, err := h.sessions.CreateSession(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

func (h *SessionHandler) ListSessions(c *gin.Context) {
	sessions, err := h.sessions.ListSessions(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	if sessions == nil {
		sessions = []models.ChatSession{}
	}
	c.JSON(http.StatusOK, sessions)
}

func (h *SessionHandler) GetSession(c *gin.Context) {
	session, err := h.sessions.GetSession(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *SessionHandler) DeleteSession(c *gin.Context) {
	if err := h.sessions.DeleteSession(c.Request.Context(), c.Param("sessionId")); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// OpenSession activates a session view: the background updater starts and
// subsequent commits are pushed over the websocket.
func (h *SessionHandler) OpenSession(c *gin.Context) {
	session, err := h.sessions.OpenSession(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *SessionHandler) CloseSession(c *gin.Context) {
	h.sessions.CloseSession(c.Param("sessionId"))
	c.Status(http.StatusNoContent)
}

type sendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// SendMessage commits the user's message and starts the agent turn loop in
// the background. The response carries the session as of the user message;
// agent turns arrive over the websocket.
func (h *SessionHandler) SendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewBadRequestError(apperrors.CodeValidation, err.Error()))
		return
	}
	session, err := h.sessions.SendMessage(c.Request.Context(), c.Param("sessionId"), req.Content)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusAccepted, session)
}

type generateMediaRequest struct {
	Type string `json:"type" binding:"required,oneof=photo video"`
}

func (h *SessionHandler) GenerateMedia(c *gin.Context) {
	var req generateMediaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewBadRequestError(apperrors.CodeValidation, err.Error()))
		return
	}
	session, err := h.sessions.GenerateMedia(c.Request.Context(), c.Param("sessionId"), req.Type)
	if err != nil {
		if errors.Is(err, orchestrator.ErrEmptyTranscript) {
			c.Error(apperrors.NewBadRequestError(apperrors.CodeEmptyTranscript,
				"cannot generate media for an empty conversation"))
			return
		}
		c.Error(apperrors.NewInternalServerError(apperrors.CodeGenerationFailed, err.Error()))
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *SessionHandler) ToggleNSFW(c *gin.Context) {
	session, err := h.sessions.ToggleNSFW(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *SessionHandler) ClearHistory(c *gin.Context) {
	session, err := h.sessions.ClearHistory(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, session)
}
