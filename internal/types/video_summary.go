package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// VideoSummary holds the LLM-produced short summary together with the
// embedding computed over the assembled metadata text.
type VideoSummary struct {
	VideoID        uuid.UUID      `gorm:"type:uuid;column:video_id;primaryKey" json:"video_id"`
	Video          *Video         `gorm:"constraint:OnDelete:CASCADE;foreignKey:VideoID;references:ID" json:"-"`
	ShortSummary   string         `gorm:"column:short_summary;not null;default:''" json:"short_summary"`
	Embedding      datatypes.JSON `gorm:"column:embedding;type:jsonb" json:"embedding,omitempty"`
	EmbeddingModel string         `gorm:"column:embedding_model" json:"embedding_model,omitempty"`
	CreatedAt      time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (VideoSummary) TableName() string { return "video_summary" }
