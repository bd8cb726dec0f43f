package models

import (
	"time"

	"gorm.io/gorm"
)

// Gallery item kinds.
const (
	GalleryTypeImage      = "image"
	GalleryTypeVideo      = "video"
	GalleryTypeBackground = "background"
)

type GalleryItem struct {
	gorm.Model `json:"-"`
	ID         string    `json:"id" gorm:"primarykey"`
	Type       string    `json:"type" gorm:"not null;index"`
	URL        string    `json:"url" gorm:"not null"`
	Caption    string    `json:"caption"`
	Timestamp  time.Time `json:"timestamp"`
}

type SaveGalleryItemRequest struct {
	Type    string `json:"type" binding:"required,oneof=image video background"`
	URL     string `json:"url" binding:"required"`
	Caption string `json:"caption"`
}
