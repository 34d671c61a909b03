package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/streem-backend/internal/logger"
	"github.com/yungbote/streem-backend/internal/types"
)

// CatalogRef is one extracted topic/entity/tag attached to a video. Score
// carries prominence, importance, or weight depending on the collection.
type CatalogRef struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	CanonicalName string    `json:"canonical_name"`
	EntityType    string    `json:"entity_type,omitempty"`
	Score         float64   `json:"score"`
}

// VideoCatalog groups the three collections for a single video.
type VideoCatalog struct {
	Topics   []CatalogRef `json:"topics"`
	Entities []CatalogRef `json:"entities"`
	Tags     []CatalogRef `json:"tags"`
}

type CatalogRepo interface {
	// ReplaceForVideo upserts master rows by canonical name and makes the
	// join rows for the video exactly match the given catalog. Master rows
	// keep the display name from their first extraction.
	ReplaceForVideo(ctx context.Context, tx *gorm.DB, videoID uuid.UUID, catalog VideoCatalog) error
	ListForVideo(ctx context.Context, tx *gorm.DB, videoID uuid.UUID) (*VideoCatalog, error)
	ListForVideos(ctx context.Context, tx *gorm.DB, videoIDs []uuid.UUID) (map[uuid.UUID]*VideoCatalog, error)
}

type catalogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCatalogRepo(db *gorm.DB, baseLog *logger.Logger) CatalogRepo {
	repoLog := baseLog.With("repo", "CatalogRepo")
	return &catalogRepo{db: db, log: repoLog}
}

func (cr *catalogRepo) ReplaceForVideo(ctx context.Context, tx *gorm.DB, videoID uuid.UUID, catalog VideoCatalog) error {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}
	return transaction.WithContext(ctx).Transaction(func(innerTx *gorm.DB) error {
		if err := cr.replaceTopics(innerTx, videoID, catalog.Topics); err != nil {
			return err
		}
		if err := cr.replaceEntities(innerTx, videoID, catalog.Entities); err != nil {
			return err
		}
		return cr.replaceTags(innerTx, videoID, catalog.Tags)
	})
}

func (cr *catalogRepo) replaceTopics(tx *gorm.DB, videoID uuid.UUID, refs []CatalogRef) error {
	ids, err := upsertMasters(tx, refs, func(ref CatalogRef) any {
		return &types.Topic{ID: uuid.New(), Name: ref.Name, CanonicalName: ref.CanonicalName}
	}, func(canonicals []string) (map[string]uuid.UUID, error) {
		var rows []types.Topic
		if err := tx.Where("canonical_name IN ?", canonicals).Find(&rows).Error; err != nil {
			return nil, err
		}
		out := make(map[string]uuid.UUID, len(rows))
		for _, row := range rows {
			out[row.CanonicalName] = row.ID
		}
		return out, nil
	})
	if err != nil {
		return err
	}

	keep := make([]uuid.UUID, 0, len(refs))
	for _, ref := range refs {
		id, ok := ids[ref.CanonicalName]
		if !ok {
			continue
		}
		keep = append(keep, id)
		join := types.VideoTopic{VideoID: videoID, TopicID: id, Prominence: ref.Score}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "video_id"}, {Name: "topic_id"}},
			DoUpdates: clause.Assignments(map[string]any{"prominence": ref.Score}),
		}).Create(&join).Error; err != nil {
			return err
		}
	}
	return deleteStaleJoins(tx, &types.VideoTopic{}, "topic_id", videoID, keep)
}

func (cr *catalogRepo) replaceEntities(tx *gorm.DB, videoID uuid.UUID, refs []CatalogRef) error {
	ids, err := upsertMasters(tx, refs, func(ref CatalogRef) any {
		return &types.Entity{ID: uuid.New(), Name: ref.Name, CanonicalName: ref.CanonicalName, EntityType: ref.EntityType}
	}, func(canonicals []string) (map[string]uuid.UUID, error) {
		var rows []types.Entity
		if err := tx.Where("canonical_name IN ?", canonicals).Find(&rows).Error; err != nil {
			return nil, err
		}
		out := make(map[string]uuid.UUID, len(rows))
		for _, row := range rows {
			out[row.CanonicalName] = row.ID
		}
		return out, nil
	})
	if err != nil {
		return err
	}

	keep := make([]uuid.UUID, 0, len(refs))
	for _, ref := range refs {
		id, ok := ids[ref.CanonicalName]
		if !ok {
			continue
		}
		keep = append(keep, id)
		join := types.VideoEntity{VideoID: videoID, EntityID: id, Importance: ref.Score}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "video_id"}, {Name: "entity_id"}},
			DoUpdates: clause.Assignments(map[string]any{"importance": ref.Score}),
		}).Create(&join).Error; err != nil {
			return err
		}
	}
	return deleteStaleJoins(tx, &types.VideoEntity{}, "entity_id", videoID, keep)
}

func (cr *catalogRepo) replaceTags(tx *gorm.DB, videoID uuid.UUID, refs []CatalogRef) error {
	ids, err := upsertMasters(tx, refs, func(ref CatalogRef) any {
		return &types.Tag{ID: uuid.New(), Name: ref.Name, CanonicalName: ref.CanonicalName}
	}, func(canonicals []string) (map[string]uuid.UUID, error) {
		var rows []types.Tag
		if err := tx.Where("canonical_name IN ?", canonicals).Find(&rows).Error; err != nil {
			return nil, err
		}
		out := make(map[string]uuid.UUID, len(rows))
		for _, row := range rows {
			out[row.CanonicalName] = row.ID
		}
		return out, nil
	})
	if err != nil {
		return err
	}

	keep := make([]uuid.UUID, 0, len(refs))
	for _, ref := range refs {
		id, ok := ids[ref.CanonicalName]
		if !ok {
			continue
		}
		keep = append(keep, id)
		join := types.VideoTag{VideoID: videoID, TagID: id, Weight: ref.Score}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "video_id"}, {Name: "tag_id"}},
			DoUpdates: clause.Assignments(map[string]any{"weight": ref.Score}),
		}).Create(&join).Error; err != nil {
			return err
		}
	}
	return deleteStaleJoins(tx, &types.VideoTag{}, "tag_id", videoID, keep)
}

// upsertMasters inserts missing master rows (first extraction wins the
// display name) and resolves every canonical name to its row ID.
func upsertMasters(tx *gorm.DB, refs []CatalogRef, build func(CatalogRef) any, lookup func([]string) (map[string]uuid.UUID, error)) (map[string]uuid.UUID, error) {
	if len(refs) == 0 {
		return map[string]uuid.UUID{}, nil
	}
	canonicals := make([]string, 0, len(refs))
	for _, ref := range refs {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "canonical_name"}},
			DoNothing: true,
		}).Create(build(ref)).Error; err != nil {
			return nil, err
		}
		canonicals = append(canonicals, ref.CanonicalName)
	}
	return lookup(canonicals)
}

func deleteStaleJoins(tx *gorm.DB, model any, refColumn string, videoID uuid.UUID, keep []uuid.UUID) error {
	q := tx.Where("video_id = ?", videoID)
	if len(keep) > 0 {
		q = q.Where(refColumn+" NOT IN ?", keep)
	}
	return q.Delete(model).Error
}

type catalogRow struct {
	VideoID       uuid.UUID
	RefID         uuid.UUID
	Name          string
	CanonicalName string
	EntityType    string
	Score         float64
}

func (cr *catalogRepo) ListForVideo(ctx context.Context, tx *gorm.DB, videoID uuid.UUID) (*VideoCatalog, error) {
	byVideo, err := cr.ListForVideos(ctx, tx, []uuid.UUID{videoID})
	if err != nil {
		return nil, err
	}
	if catalog, ok := byVideo[videoID]; ok {
		return catalog, nil
	}
	return &VideoCatalog{Topics: []CatalogRef{}, Entities: []CatalogRef{}, Tags: []CatalogRef{}}, nil
}

func (cr *catalogRepo) ListForVideos(ctx context.Context, tx *gorm.DB, videoIDs []uuid.UUID) (map[uuid.UUID]*VideoCatalog, error) {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}
	out := make(map[uuid.UUID]*VideoCatalog, len(videoIDs))
	if len(videoIDs) == 0 {
		return out, nil
	}
	ensure := func(id uuid.UUID) *VideoCatalog {
		if catalog, ok := out[id]; ok {
			return catalog
		}
		catalog := &VideoCatalog{Topics: []CatalogRef{}, Entities: []CatalogRef{}, Tags: []CatalogRef{}}
		out[id] = catalog
		return catalog
	}

	var topicRows []catalogRow
	if err := transaction.WithContext(ctx).
		Table("video_topics").
		Select("video_topics.video_id AS video_id, topics.id AS ref_id, topics.name AS name, topics.canonical_name AS canonical_name, video_topics.prominence AS score").
		Joins("JOIN topics ON topics.id = video_topics.topic_id").
		Where("video_topics.video_id IN ?", videoIDs).
		Order("score DESC").
		Scan(&topicRows).Error; err != nil {
		return nil, err
	}
	for _, row := range topicRows {
		catalog := ensure(row.VideoID)
		catalog.Topics = append(catalog.Topics, CatalogRef{ID: row.RefID, Name: row.Name, CanonicalName: row.CanonicalName, Score: row.Score})
	}

	var entityRows []catalogRow
	if err := transaction.WithContext(ctx).
		Table("video_entities").
		Select("video_entities.video_id AS video_id, entities.id AS ref_id, entities.name AS name, entities.canonical_name AS canonical_name, entities.entity_type AS entity_type, video_entities.importance AS score").
		Joins("JOIN entities ON entities.id = video_entities.entity_id").
		Where("video_entities.video_id IN ?", videoIDs).
		Order("score DESC").
		Scan(&entityRows).Error; err != nil {
		return nil, err
	}
	for _, row := range entityRows {
		catalog := ensure(row.VideoID)
		catalog.Entities = append(catalog.Entities, CatalogRef{ID: row.RefID, Name: row.Name, CanonicalName: row.CanonicalName, EntityType: row.EntityType, Score: row.Score})
	}

	var tagRows []catalogRow
	if err := transaction.WithContext(ctx).
		Table("video_tags").
		Select("video_tags.video_id AS video_id, tags.id AS ref_id, tags.name AS name, tags.canonical_name AS canonical_name, video_tags.weight AS score").
		Joins("JOIN tags ON tags.id = video_tags.tag_id").
		Where("video_tags.video_id IN ?", videoIDs).
		Order("score DESC").
		Scan(&tagRows).Error; err != nil {
		return nil, err
	}
	for _, row := range tagRows {
		catalog := ensure(row.VideoID)
		catalog.Tags = append(catalog.Tags, CatalogRef{ID: row.RefID, Name: row.Name, CanonicalName: row.CanonicalName, Score: row.Score})
	}

	return out, nil
}
