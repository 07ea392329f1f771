package models

import (
	"time"

	"github.com/google/uuid"
)

// Song is one catalog entry. Audio and thumbnail objects live in S3;
// AudioURL/ThumbnailURL are filled with presigned or public URLs at read time.
type Song struct {
	ID           uuid.UUID `json:"id"`
	Title        string    `json:"title"`
	Artist       string    `json:"artist"`
	Category     string    `json:"category"`
	AudioKey     string    `json:"-"`
	ThumbnailKey string    `json:"-"`
	AudioURL     string    `json:"audio_url,omitempty"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
	Description  string    `json:"description,omitempty"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
