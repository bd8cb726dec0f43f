package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"ensemble-chat/backend/internal/models"
	apperrors "ensemble-chat/backend/pkg/errors"
)

// GalleryService stores media the user chose to keep. Nothing is saved here
// automatically; handlers call it on explicit request only.
type GalleryService struct {
	db *gorm.DB
}

func NewGalleryService(db *gorm.DB) *GalleryService {
	return &GalleryService{db: db}
}

func (s *GalleryService) SaveItem(ctx context.Context, req *models.SaveGalleryItemRequest) (*models.GalleryItem, error) {
	item := &models.GalleryItem{
		ID:        uuid.NewString(),
		Type:      req.Type,
		URL:       req.URL,
		Caption:   req.Caption,
		Timestamp: time.Now(),
	}
	if result := s.db.WithContext(ctx).Create(item); result.Error != nil {
		return nil, result.Error
	}
	return item, nil
}

// ListItems returns gallery items newest first, optionally filtered by type.
func (s *GalleryService) ListItems(ctx context.Context, itemType string) ([]models.GalleryItem, error) {
	query := s.db.WithContext(ctx).Order("timestamp desc")
	if itemType != "" {
		query = query.Where("type = ?", itemType)
	}
	var items []models.GalleryItem
	if result := query.Find(&items); result.Error != nil {
		return nil, result.Error
	}
	return items, nil
}

func (s *GalleryService) DeleteItem(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Delete(&models.GalleryItem{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.NewNotFoundError(apperrors.CodeGalleryMissing,
			fmt.Sprintf("gallery item %s does not exist", id))
	}
	return nil
}
