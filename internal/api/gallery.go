package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ensemble-chat/backend/internal/models"
	"ensemble-chat/backend/internal/service"
	apperrors "ensemble-chat/backend/pkg/errors"
)

type GalleryHandler struct {
	gallery *service.GalleryService
}

func NewGalleryHandler(gallery *service.GalleryService) *GalleryHandler {
	return &GalleryHandler{gallery: gallery}
}

func (h *GalleryHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/gallery", h.SaveItem)
	rg.GET("/gallery", h.ListItems)
	rg.DELETE("/gallery/:itemId", h.DeleteItem)
}

func (h *GalleryHandler) SaveItem(c *gin.Context) {
	var req models.SaveGalleryItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewBadRequestError(apperrors.CodeValidation, err.Error()))
		return
	}
	item, err := h.gallery.SaveItem(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *GalleryHandler) ListItems(c *gin.Context) {
	items, err := h.gallery.ListItems(c.Request.Context(), c.Query("type"))
	if err != nil {
		c.Error(err)
		return
	}
	if items == nil {
		items = []models.GalleryItem{}
	}
	c.JSON(http.StatusOK, items)
}

func (h *GalleryHandler) DeleteItem(c *gin.Context) {
	if err := h.gallery.DeleteItem(c.Request.Context(), c.Param("itemId")); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}
