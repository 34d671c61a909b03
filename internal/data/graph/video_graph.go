package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/yungbote/streem-backend/internal/logger"
	"github.com/yungbote/streem-backend/internal/platform/envutil"
	"github.com/yungbote/streem-backend/internal/platform/neo4jdb"
	"github.com/yungbote/streem-backend/internal/repos"
	"github.com/yungbote/streem-backend/internal/types"
)

// InsertThresholds gates which catalog rows are mirrored into the graph.
// Rows scoring below the per-collection threshold stay Postgres-only.
type InsertThresholds struct {
	Topic  float64
	Entity float64
	Tag    float64
}

func ThresholdsFromEnv() InsertThresholds {
	return InsertThresholds{
		Topic:  envutil.Float("NEO4J_TOPIC_INSERT_TH", 0.50),
		Entity: envutil.Float("NEO4J_ENTITY_INSERT_TH", 0.50),
		Tag:    envutil.Float("NEO4J_TAG_INSERT_TH", 0.50),
	}
}

// EnsureSchema creates the unique-id constraints. Best effort: a failure is
// logged and the mirror keeps working without them.
func EnsureSchema(ctx context.Context, client *neo4jdb.Client, log *logger.Logger) {
	if client == nil || client.Driver == nil {
		return
	}
	session := client.Session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	stmts := []string{
		`CREATE CONSTRAINT video_id_unique IF NOT EXISTS FOR (v:Video) REQUIRE v.id IS UNIQUE`,
		`CREATE CONSTRAINT topic_id_unique IF NOT EXISTS FOR (t:Topic) REQUIRE t.id IS UNIQUE`,
		`CREATE CONSTRAINT entity_id_unique IF NOT EXISTS FOR (e:Entity) REQUIRE e.id IS UNIQUE`,
		`CREATE CONSTRAINT tag_id_unique IF NOT EXISTS FOR (g:Tag) REQUIRE g.id IS UNIQUE`,
	}
	for _, q := range stmts {
		if res, err := session.Run(ctx, q, nil); err != nil {
			if log != nil {
				log.Warn("neo4j schema init failed (continuing)", "error", err)
			}
		} else {
			_, _ = res.Consume(ctx)
		}
	}
}

// SyncVideo mirrors one video and its catalog into the graph. Each call
// replaces the video's HAS_TOPIC/HAS_ENTITY/HAS_TAG relationships so a
// re-enrichment never leaves stale edges behind.
func SyncVideo(ctx context.Context, client *neo4jdb.Client, log *logger.Logger, video *types.Video, catalog *repos.VideoCatalog, th InsertThresholds) error {
	if client == nil || client.Driver == nil {
		return nil
	}
	if video == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if catalog == nil {
		catalog = &repos.VideoCatalog{}
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)

	videoNode := map[string]any{
		"id":         video.ID.String(),
		"user_id":    video.UserID.String(),
		"title":      video.Title,
		"status":     video.Status,
		"created_at": video.CreatedAt.UTC().Format(time.RFC3339Nano),
		"synced_at":  now,
	}

	topicRows := catalogRows(catalog.Topics, th.Topic, now)
	entityRows := catalogRows(catalog.Entities, th.Entity, now)
	tagRows := catalogRows(catalog.Tags, th.Tag, now)

	session := client.Session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if err := runConsume(ctx, tx, `
MERGE (v:Video {id: $video.id})
SET v += $video
WITH v
OPTIONAL MATCH (v)-[r:HAS_TOPIC|HAS_ENTITY|HAS_TAG]->()
DELETE r
`, map[string]any{"video": videoNode}); err != nil {
			return nil, err
		}

		if len(topicRows) > 0 {
			if err := runConsume(ctx, tx, `
UNWIND $rows AS row
MATCH (v:Video {id: $video_id})
MERGE (t:Topic {id: row.id})
SET t.name = row.name,
    t.canonical_name = coalesce(t.canonical_name, row.canonical_name),
    t.synced_at = row.synced_at
MERGE (v)-[r:HAS_TOPIC]->(t)
SET r.prominence = row.score
`, map[string]any{"video_id": video.ID.String(), "rows": topicRows}); err != nil {
				return nil, err
			}
		}

		if len(entityRows) > 0 {
			if err := runConsume(ctx, tx, `
UNWIND $rows AS row
MATCH (v:Video {id: $video_id})
MERGE (e:Entity {id: row.id})
SET e.name = row.name,
    e.canonical_name = coalesce(e.canonical_name, row.canonical_name),
    e.entity_type = row.entity_type,
    e.synced_at = row.synced_at
MERGE (v)-[r:HAS_ENTITY]->(e)
SET r.importance = row.score
`, map[string]any{"video_id": video.ID.String(), "rows": entityRows}); err != nil {
				return nil, err
			}
		}

		if len(tagRows) > 0 {
			if err := runConsume(ctx, tx, `
UNWIND $rows AS row
MATCH (v:Video {id: $video_id})
MERGE (g:Tag {id: row.id})
SET g.name = row.name,
    g.canonical_name = coalesce(g.canonical_name, row.canonical_name),
    g.synced_at = row.synced_at
MERGE (v)-[r:HAS_TAG]->(g)
SET r.weight = row.score
`, map[string]any{"video_id": video.ID.String(), "rows": tagRows}); err != nil {
				return nil, err
			}
		}

		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("graph sync video %s: %w", video.ID, err)
	}
	return nil
}

// DeleteVideo removes the video node and prunes catalog nodes it was the
// last video to reference.
func DeleteVideo(ctx context.Context, client *neo4jdb.Client, log *logger.Logger, videoID string) error {
	if client == nil || client.Driver == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	session := client.Session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if err := runConsume(ctx, tx, `
MATCH (v:Video {id: $id})
DETACH DELETE v
`, map[string]any{"id": videoID}); err != nil {
			return nil, err
		}
		return nil, runConsume(ctx, tx, `
MATCH (n)
WHERE (n:Topic OR n:Entity OR n:Tag) AND NOT (n)<-[:HAS_TOPIC|HAS_ENTITY|HAS_TAG]-(:Video)
DELETE n
`, nil)
	})
	if err != nil {
		return fmt.Errorf("graph delete video %s: %w", videoID, err)
	}
	return nil
}

// ProjectionEdge is one Video -> Entity/Tag edge of the walk projection.
type ProjectionEdge struct {
	VideoID string
	NodeKey string
	Weight  float64
}

// FetchProjection loads the Video/Entity/Tag bipartite projection used by
// the walk lane. Node keys are label-prefixed so entity and tag ids can
// share one adjacency map.
func FetchProjection(ctx context.Context, client *neo4jdb.Client) ([]ProjectionEdge, error) {
	if client == nil || client.Driver == nil {
		return nil, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	session := client.Session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	records, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (v:Video)-[r:HAS_ENTITY|HAS_TAG]->(n)
RETURN v.id AS video_id,
       labels(n)[0] AS label,
       n.id AS node_id,
       coalesce(r.importance, r.weight, 1.0) AS weight
`, nil)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("graph projection: %w", err)
	}

	recs, ok := records.([]*neo4j.Record)
	if !ok {
		return nil, fmt.Errorf("graph projection: unexpected result type %T", records)
	}

	edges := make([]ProjectionEdge, 0, len(recs))
	for _, rec := range recs {
		videoID, _ := rec.Get("video_id")
		label, _ := rec.Get("label")
		nodeID, _ := rec.Get("node_id")
		weight, _ := rec.Get("weight")

		vid, _ := videoID.(string)
		lbl, _ := label.(string)
		nid, _ := nodeID.(string)
		if vid == "" || nid == "" {
			continue
		}
		w, ok := weight.(float64)
		if !ok || w <= 0 {
			w = 1.0
		}
		edges = append(edges, ProjectionEdge{
			VideoID: vid,
			NodeKey: lbl + ":" + nid,
			Weight:  w,
		})
	}
	return edges, nil
}

func catalogRows(refs []repos.CatalogRef, threshold float64, syncedAt string) []map[string]any {
	rows := make([]map[string]any, 0, len(refs))
	for _, ref := range refs {
		if ref.Score < threshold {
			continue
		}
		row := map[string]any{
			"id":             ref.ID.String(),
			"name":           ref.Name,
			"canonical_name": ref.CanonicalName,
			"score":          ref.Score,
			"synced_at":      syncedAt,
		}
		if ref.EntityType != "" {
			row["entity_type"] = ref.EntityType
		} else {
			row["entity_type"] = nil
		}
		rows = append(rows, row)
	}
	return rows
}

func runConsume(ctx context.Context, tx neo4j.ManagedTransaction, query string, params map[string]any) error {
	res, err := tx.Run(ctx, query, params)
	if err != nil {
		return err
	}
	_, err = res.Consume(ctx)
	return err
}
