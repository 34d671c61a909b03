package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Video lifecycle. Transitions move forward only: uploaded -> processing ->
// ready, with failed reserved for retry exhaustion.
const (
	VideoStatusUploaded   = "uploaded"
	VideoStatusProcessing = "processing"
	VideoStatusReady      = "ready"
	VideoStatusFailed     = "failed"
)

type Video struct {
	ID               uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID           uuid.UUID      `gorm:"type:uuid;column:user_id;not null;index:ix_videos_user_id_created_at,priority:1" json:"user_id"`
	User             *User          `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"-"`
	Title            string         `gorm:"column:title;not null;default:''" json:"title"`
	Description      string         `gorm:"column:description;not null;default:''" json:"description"`
	OriginalFilename string         `gorm:"column:original_filename;not null" json:"original_filename"`
	RawKey           string         `gorm:"column:raw_key;not null" json:"raw_key"`
	Status           string         `gorm:"column:status;not null;default:'uploaded'" json:"status"`
	Probe            datatypes.JSON `gorm:"column:probe;type:jsonb" json:"probe,omitempty"`
	DurationSeconds  *float64       `gorm:"column:duration_seconds" json:"duration_seconds,omitempty"`
	ContentType      string         `gorm:"column:content_type" json:"content_type,omitempty"`
	Language         string         `gorm:"column:language;default:'en'" json:"language,omitempty"`
	Error            string         `gorm:"column:error" json:"error,omitempty"`
	NotifiedAt       *time.Time     `gorm:"column:notified_at" json:"notified_at,omitempty"`
	CreatedAt        time.Time      `gorm:"not null;default:now();index:ix_videos_user_id_created_at,priority:2" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (Video) TableName() string { return "videos" }
