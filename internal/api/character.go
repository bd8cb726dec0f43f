package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ensemble-chat/backend/internal/models"
	"ensemble-chat/backend/internal/service"
	apperrors "ensemble-chat/backend/pkg/errors"
)

type CharacterHandler struct {
	characters *service.CharacterService
}

func NewCharacterHandler(characters *service.CharacterService) *CharacterHandler {
	return &CharacterHandler{characters: characters}
}

func (h *CharacterHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/characters", h.CreateCharacter)
	rg.GET("/characters", h.ListCharacters)
	rg.GET("/characters/:characterId", h.GetCharacter)
	rg.PUT("/characters/:characterId", h.UpdateCharacter)
	rg.DELETE("/characters/:characterId", h.DeleteCharacter)
	rg.POST("/characters/avatar", h.GenerateAvatar)
}

func (h *CharacterHandler) CreateCharacter(c *gin.Context) {
	var req models.CreateCharacterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewBadRequestError(apperrors.CodeValidation, err.Error()))
		return
	}
	character, err := h.characters.CreateCharacter(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, character)
}

func (h *CharacterHandler) ListCharacters(c *gin.Context) {
	characters, err := h.characters.ListCharacters(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	if characters == nil {
		characters = []models.Character{}
	}
	c.JSON(http.StatusOK, characters)
}

func (h *CharacterHandler) GetCharacter(c *gin.Context) {
	character, err := h.characters.GetCharacter(c.Request.Context(), c.Param("characterId"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, character)
}

func (h *CharacterHandler) UpdateCharacter(c *gin.Context) {
	var req models.CreateCharacterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewBadRequestError(apperrors.CodeValidation, err.Error()))
		return
	}
	character, err := h.characters.UpdateCharacter(c.Request.Context(), c.Param("characterId"), &req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, character)
}

func (h *CharacterHandler) DeleteCharacter(c *gin.Context) {
	if err := h.characters.DeleteCharacter(c.Request.Context(), c.Param("characterId")); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

type generateAvatarRequest struct {
	Description string `json:"description" binding:"required"`
}

// GenerateAvatar renders a standalone portrait so the client can preview it
// before committing to a character.
func (h *CharacterHandler) GenerateAvatar(c *gin.Context) {
	var req generateAvatarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewBadRequestError(apperrors.CodeValidation, err.Error()))
		return
	}
	avatar, err := h.characters.GenerateAvatar(c.Request.Context(), req.Description)
	if err != nil {
		c.Error(apperrors.NewInternalServerError(apperrors.CodeGenerationFailed, err.Error()))
		return
	}
	c.JSON(http.StatusOK, gin.H{"avatar": avatar})
}
