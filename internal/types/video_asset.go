package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Asset kinds and labels produced by the processing pipeline. One row
// per (kind, label) per video; finalize upserts them.
const (
	AssetKindHLS       = "hls"
	AssetKindThumbnail = "thumbnail"
	AssetKindCaptions  = "captions"

	AssetLabel720p   = "720p"
	AssetLabel480p   = "480p"
	AssetLabelPoster = "poster"
)

type VideoAsset struct {
	ID         uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	VideoID    uuid.UUID      `gorm:"type:uuid;column:video_id;not null;uniqueIndex:uq_video_assets_video_id_kind_label,priority:1" json:"video_id"`
	Video      *Video         `gorm:"constraint:OnDelete:CASCADE;foreignKey:VideoID;references:ID" json:"-"`
	Kind       string         `gorm:"column:kind;not null;uniqueIndex:uq_video_assets_video_id_kind_label,priority:2" json:"kind"`
	Label      string         `gorm:"column:label;not null;uniqueIndex:uq_video_assets_video_id_kind_label,priority:3" json:"label"`
	StorageKey string         `gorm:"column:storage_key;not null" json:"storage_key"`
	Ready      bool           `gorm:"column:ready;not null;default:false" json:"ready"`
	Meta       datatypes.JSON `gorm:"column:meta;type:jsonb" json:"meta,omitempty"`
	CreatedAt  time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (VideoAsset) TableName() string { return "video_assets" }
