package types

import (
	"time"

	"github.com/google/uuid"
)

// Catalog tables: one master row per canonical name, referenced by videos
// through weighted join rows. canonical_name is the dedupe key across the
// whole corpus; name keeps the display form from the first extraction.

type Topic struct {
	ID            uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Name          string    `gorm:"column:name;not null" json:"name"`
	CanonicalName string    `gorm:"column:canonical_name;uniqueIndex:uq_topics_canonical_name;not null" json:"canonical_name"`
	CreatedAt     time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (Topic) TableName() string { return "topics" }

type Entity struct {
	ID            uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Name          string    `gorm:"column:name;not null" json:"name"`
	CanonicalName string    `gorm:"column:canonical_name;uniqueIndex:uq_entities_canonical_name;not null" json:"canonical_name"`
	EntityType    string    `gorm:"column:entity_type" json:"entity_type,omitempty"`
	CreatedAt     time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (Entity) TableName() string { return "entities" }

type Tag struct {
	ID            uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Name          string    `gorm:"column:name;not null" json:"name"`
	CanonicalName string    `gorm:"column:canonical_name;uniqueIndex:uq_tags_canonical_name;not null" json:"canonical_name"`
	CreatedAt     time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (Tag) TableName() string { return "tags" }

type VideoTopic struct {
	VideoID    uuid.UUID `gorm:"type:uuid;column:video_id;primaryKey" json:"video_id"`
	TopicID    uuid.UUID `gorm:"type:uuid;column:topic_id;primaryKey;index:ix_video_topics_topic_id" json:"topic_id"`
	Topic      *Topic    `gorm:"constraint:OnDelete:CASCADE;foreignKey:TopicID;references:ID" json:"-"`
	Video      *Video    `gorm:"constraint:OnDelete:CASCADE;foreignKey:VideoID;references:ID" json:"-"`
	Prominence float64   `gorm:"column:prominence;type:numeric(4,3);not null" json:"prominence"`
}

func (VideoTopic) TableName() string { return "video_topics" }

type VideoEntity struct {
	VideoID    uuid.UUID `gorm:"type:uuid;column:video_id;primaryKey" json:"video_id"`
	EntityID   uuid.UUID `gorm:"type:uuid;column:entity_id;primaryKey;index:ix_video_entities_entity_id" json:"entity_id"`
	Entity     *Entity   `gorm:"constraint:OnDelete:CASCADE;foreignKey:EntityID;references:ID" json:"-"`
	Video      *Video    `gorm:"constraint:OnDelete:CASCADE;foreignKey:VideoID;references:ID" json:"-"`
	Importance float64   `gorm:"column:importance;type:numeric(4,3);not null" json:"importance"`
}

func (VideoEntity) TableName() string { return "video_entities" }

type VideoTag struct {
	VideoID uuid.UUID `gorm:"type:uuid;column:video_id;primaryKey" json:"video_id"`
	TagID   uuid.UUID `gorm:"type:uuid;column:tag_id;primaryKey;index:ix_video_tags_tag_id" json:"tag_id"`
	Tag     *Tag      `gorm:"constraint:OnDelete:CASCADE;foreignKey:TagID;references:ID" json:"-"`
	Video   *Video    `gorm:"constraint:OnDelete:CASCADE;foreignKey:VideoID;references:ID" json:"-"`
	Weight  float64   `gorm:"column:weight;type:numeric(4,3);not null" json:"weight"`
}

func (VideoTag) TableName() string { return "video_tags" }
