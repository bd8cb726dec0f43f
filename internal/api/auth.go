package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "ensemble-chat/backend/pkg/errors"
	"ensemble-chat/backend/pkg/jwt"
)

type AuthHandler struct {
	jwt *jwt.Service
}

func NewAuthHandler(jwtService *jwt.Service) *AuthHandler {
	return &AuthHandler{jwt: jwtService}
}

func (h *AuthHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/auth/guest", h.GuestToken)
}

// GuestToken mints a token for a new anonymous browsing context.
func (h *AuthHandler) GuestToken(c *gin.Context) {
	token, guestID, err := h.jwt.IssueGuestToken()
	if err != nil {
		c.Error(apperrors.NewInternalServerError("TOKEN_ISSUE_FAILED", "could not issue guest token"))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":    token,
		"guest_id": guestID,
	})
}
