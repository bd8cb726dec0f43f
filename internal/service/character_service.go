package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"ensemble-chat/backend/ai"
	"ensemble-chat/backend/internal/models"
	"ensemble-chat/backend/pkg/cache"
	apperrors "ensemble-chat/backend/pkg/errors"
	"ensemble-chat/backend/pkg/logger"
)

const avatarPromptPrefix = "Anime style portrait, high quality, character avatar: "

// CharacterService owns durable character state. It is the orchestrator's
// CharacterWriter: evolution analyses land here. Reads go through an
// in-process cache since the cast is re-resolved on every turn loop.
type CharacterService struct {
	db    *gorm.DB
	gen   ai.Service
	cache *cache.Cache
	log   *logger.Logger
}

func NewCharacterService(db *gorm.DB, gen ai.Service, log *logger.Logger) *CharacterService {
	return &CharacterService{db: db, gen: gen, cache: cache.NewCache(), log: log}
}

func (s *CharacterService) CreateCharacter(ctx context.Context, req *models.CreateCharacterRequest) (*models.Character, error) {
	character := &models.Character{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
		Avatar:      req.Avatar,
		Color:       req.Color,
		Voice:       req.Voice,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	if character.Avatar == "" {
		avatar, err := s.GenerateAvatar(ctx, req.Description)
		if err != nil {
			// The character is still usable without an avatar.
			s.log.Warn("avatar generation failed, creating character without one",
				"character", req.Name, "error", err)
		} else {
			character.Avatar = avatar
		}
	}

	if result := s.db.WithContext(ctx).Create(character); result.Error != nil {
		return nil, result.Error
	}
	s.cache.Set(character.ID, *character)
	return character, nil
}

// GenerateAvatar renders a portrait for the description via the generation
// service.
func (s *CharacterService) GenerateAvatar(ctx context.Context, description string) (string, error) {
	avatar, err := s.gen.GenerateImage(ctx, avatarPromptPrefix+description, nil)
	if err != nil {
		return "", err
	}
	if avatar == "" {
		return "", fmt.Errorf("avatar generation returned an empty result")
	}
	return avatar, nil
}

func (s *CharacterService) GetCharacter(ctx context.Context, id string) (*models.Character, error) {
	if cached, ok := s.cache.Get(id); ok {
		character := cached.(models.Character)
		return &character, nil
	}

	var character models.Character
	result := s.db.WithContext(ctx).First(&character, "id = ?", id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewNotFoundError(apperrors.CodeCharacterMissing,
			fmt.Sprintf("character %s does not exist", id))
	}
	if result.Error != nil {
		return nil, result.Error
	}
	s.cache.Set(id, character)
	return &character, nil
}

func (s *CharacterService) ListCharacters(ctx context.Context) ([]models.Character, error) {
	var characters []models.Character
	if result := s.db.WithContext(ctx).Order("created_at asc").Find(&characters); result.Error != nil {
		return nil, result.Error
	}
	return characters, nil
}

// GetCharacters resolves a list of IDs, preserving order. Missing IDs are an
// error; a session must never reference a deleted character.
func (s *CharacterService) GetCharacters(ctx context.Context, ids []string) ([]models.Character, error) {
	characters := make([]models.Character, 0, len(ids))
	for _, id := range ids {
		c, err := s.GetCharacter(ctx, id)
		if err != nil {
			return nil, err
		}
		characters = append(characters, *c)
	}
	return characters, nil
}

func (s *CharacterService) UpdateCharacter(ctx context.Context, id string, req *models.CreateCharacterRequest) (*models.Character, error) {
	character, err := s.GetCharacter(ctx, id)
	if err != nil {
		return nil, err
	}
	character.Name = req.Name
	character.Description = req.Description
	if req.Avatar != "" {
		character.Avatar = req.Avatar
	}
	if req.Color != "" {
		character.Color = req.Color
	}
	if req.Voice != "" {
		character.Voice = req.Voice
	}
	character.UpdatedAt = time.Now()

	if result := s.db.WithContext(ctx).Save(character); result.Error != nil {
		return nil, result.Error
	}
	s.cache.Set(id, *character)
	return character, nil
}

func (s *CharacterService) DeleteCharacter(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Delete(&models.Character{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.NewNotFoundError(apperrors.CodeCharacterMissing,
			fmt.Sprintf("character %s does not exist", id))
	}
	s.cache.Delete(id)
	return nil
}

// UpdateEvolutionContext persists the analyzer's updated long-term memory
// for a character and returns the fresh row.
func (s *CharacterService) UpdateEvolutionContext(ctx context.Context, characterID, evolutionContext string) (models.Character, error) {
	result := s.db.WithContext(ctx).Model(&models.Character{}).
		Where("id = ?", characterID).
		Updates(map[string]any{
			"evolution_context": evolutionContext,
			"updated_at":        time.Now(),
		})
	if result.Error != nil {
		return models.Character{}, result.Error
	}
	if result.RowsAffected == 0 {
		return models.Character{}, apperrors.NewNotFoundError(apperrors.CodeCharacterMissing,
			fmt.Sprintf("character %s does not exist", characterID))
	}
	s.cache.Delete(characterID)
	character, err := s.GetCharacter(ctx, characterID)
	if err != nil {
		return models.Character{}, err
	}
	return *character, nil
}
