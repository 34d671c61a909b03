package types

import (
	"time"

	"github.com/google/uuid"
)

type WatchHistory struct {
	ID                  uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID              uuid.UUID `gorm:"type:uuid;column:user_id;not null;uniqueIndex:uq_watch_history_user_id_video_id,priority:1;index:ix_watch_history_user_id_updated_at,priority:1" json:"user_id"`
	VideoID             uuid.UUID `gorm:"type:uuid;column:video_id;not null;uniqueIndex:uq_watch_history_user_id_video_id,priority:2" json:"video_id"`
	Video               *Video    `gorm:"constraint:OnDelete:CASCADE;foreignKey:VideoID;references:ID" json:"-"`
	WatchedSeconds      float64   `gorm:"column:watched_seconds;not null;default:0" json:"watched_seconds"`
	LastPositionSeconds float64   `gorm:"column:last_position_seconds;not null;default:0" json:"last_position_seconds"`
	Completed           bool      `gorm:"column:completed;not null;default:false" json:"completed"`
	CreatedAt           time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt           time.Time `gorm:"not null;default:now();index:ix_watch_history_user_id_updated_at,priority:2" json:"updated_at"`
}

func (WatchHistory) TableName() string { return "watch_history" }
