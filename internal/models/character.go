package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

type Character struct {
	gorm.Model       `json:"-"`
	ID               string    `json:"id" gorm:"primarykey"`
	Name             string    `json:"name" gorm:"not null"`
	Description      string    `json:"description" gorm:"not null"`
	Avatar           string    `json:"avatar"`
	Color            string    `json:"color"`
	Voice            string    `json:"voice"`
	EvolutionContext string    `json:"evolution_context"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// HasInlineAvatar reports whether the avatar is embedded image data rather
// than an external URL. Only inline avatars are usable as visual references
// for image generation.
func (c *Character) HasInlineAvatar() bool {
	return strings.HasPrefix(c.Avatar, "data:image")
}

type CreateCharacterRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description" binding:"required"`
	Avatar      string `json:"avatar"`
	Color       string `json:"color"`
	Voice       string `json:"voice"`
}
