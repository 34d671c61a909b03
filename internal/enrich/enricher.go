package enrich

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/streem-backend/internal/data/graph"
	"github.com/yungbote/streem-backend/internal/logger"
	"github.com/yungbote/streem-backend/internal/platform/neo4jdb"
	"github.com/yungbote/streem-backend/internal/platform/openai"
	"github.com/yungbote/streem-backend/internal/repos"
	"github.com/yungbote/streem-backend/internal/search"
	"github.com/yungbote/streem-backend/internal/transcript"
	"github.com/yungbote/streem-backend/internal/types"
)

// Enricher runs the LLM extraction for one video and fans the result out to
// Postgres, the graph mirror, and the search index.
type Enricher struct {
	db          *gorm.DB
	ai          openai.Client
	videoRepo   repos.VideoRepo
	summaryRepo repos.VideoSummaryRepo
	catalogRepo repos.CatalogRepo
	graphClient *neo4jdb.Client
	searchSvc   search.Service
	log         *logger.Logger
}

func NewEnricher(
	db *gorm.DB,
	ai openai.Client,
	videoRepo repos.VideoRepo,
	summaryRepo repos.VideoSummaryRepo,
	catalogRepo repos.CatalogRepo,
	graphClient *neo4jdb.Client,
	searchSvc search.Service,
	baseLog *logger.Logger,
) *Enricher {
	return &Enricher{
		db:          db,
		ai:          ai,
		videoRepo:   videoRepo,
		summaryRepo: summaryRepo,
		catalogRepo: catalogRepo,
		graphClient: graphClient,
		searchSvc:   searchSvc,
		log:         baseLog.With("service", "Enricher"),
	}
}

// Extract calls the model and returns the normalized result.
func (e *Enricher) Extract(ctx context.Context, video *types.Video, chunks []transcript.Chunk) (*Result, error) {
	if e.ai == nil {
		return nil, fmt.Errorf("openai client unavailable")
	}
	schema, err := Schema()
	if err != nil {
		return nil, err
	}

	transcriptText := BuildTranscriptText(chunks, TranscriptClipChars())
	prompt := BuildPrompt(video.Title, video.Description, transcriptText)

	obj, err := e.ai.GenerateJSON(ctx, systemPrompt, prompt, SchemaName, schema)
	if err != nil {
		return nil, fmt.Errorf("extraction call: %w", err)
	}
	raw, err := json.Marshal(obj)
	if err != nil {
		return nil, err
	}
	res, err := DecodeResult(string(raw))
	if err != nil {
		return nil, err
	}
	res.Normalize()
	return res, nil
}

// EnrichVideo is the full stage: extract, embed, persist in one
// transaction, then mirror to the graph and the search index.
func (e *Enricher) EnrichVideo(ctx context.Context, video *types.Video, chunks []transcript.Chunk) error {
	res, err := e.Extract(ctx, video, chunks)
	if err != nil {
		return err
	}

	embedding, embedText := e.computeEmbedding(ctx, video, res)

	summary := &types.VideoSummary{
		VideoID:      video.ID,
		ShortSummary: res.ShortSummary,
	}
	if len(embedding) > 0 {
		raw, err := json.Marshal(embedding)
		if err != nil {
			return err
		}
		summary.Embedding = datatypes.JSON(raw)
		summary.EmbeddingModel = e.ai.EmbedModel()
	}

	catalog := res.Catalog()
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := e.summaryRepo.Upsert(ctx, tx, summary); err != nil {
			return fmt.Errorf("upsert summary: %w", err)
		}
		if err := e.catalogRepo.ReplaceForVideo(ctx, tx, video.ID, catalog); err != nil {
			return fmt.Errorf("replace catalog: %w", err)
		}
		if err := e.videoRepo.UpdateContentInfo(ctx, tx, video.ID, res.Metadata.ContentType, res.Metadata.Language); err != nil {
			return fmt.Errorf("update content info: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	// Reload with catalog IDs assigned, then mirror. Mirror failures are
	// logged: the DB is authoritative and the mirrors self-heal on the
	// next enrichment.
	stored, err := e.catalogRepo.ListForVideo(ctx, nil, video.ID)
	if err != nil {
		return fmt.Errorf("reload catalog: %w", err)
	}
	fresh, err := e.videoRepo.GetByID(ctx, nil, video.ID)
	if err != nil {
		return fmt.Errorf("reload video: %w", err)
	}

	if err := graph.SyncVideo(ctx, e.graphClient, e.log, fresh, stored, graph.ThresholdsFromEnv()); err != nil {
		e.log.Warn("graph sync failed", "video_id", video.ID.String(), "error", err.Error())
	}

	if e.searchSvc != nil {
		doc := search.BuildVideoDoc(fresh, res.ShortSummary, stored, embedding, "", search.ThresholdsFromEnv())
		if err := e.searchSvc.IndexVideoContent(ctx, video.ID.String(), doc); err != nil {
			e.log.Warn("search index mirror failed", "video_id", video.ID.String(), "error", err.Error())
		}
	}

	e.log.Info("Video enriched",
		"video_id", video.ID.String(),
		"topics", len(res.Topics),
		"entities", len(res.Entities),
		"tags", len(res.Tags),
		"embed_chars", len(embedText),
	)
	return nil
}

// computeEmbedding builds the fixed-layout embedding text from the extraction
// (catalog names filtered at index thresholds) and embeds it. Failure is
// non-fatal: the summary is stored without a vector.
func (e *Enricher) computeEmbedding(ctx context.Context, video *types.Video, res *Result) ([]float32, string) {
	th := search.ThresholdsFromEnv()

	var topicNames, entityNames, tagNames []string
	for _, t := range res.Topics {
		if t.Prominence >= th.Topic {
			topicNames = append(topicNames, t.Name)
		}
	}
	for _, en := range res.Entities {
		if en.Importance >= th.Entity {
			entityNames = append(entityNames, en.Name)
		}
	}
	for _, g := range res.Tags {
		if g.Weight >= th.Tag {
			tagNames = append(tagNames, g.Tag)
		}
	}

	text := BuildEmbeddingText(
		video.Title, video.Description, res.ShortSummary,
		topicNames, entityNames, tagNames,
		res.Metadata.ContentType, res.Metadata.Language,
	)

	vectors, err := e.ai.Embed(ctx, []string{text})
	if err != nil {
		e.log.Warn("embedding failed", "video_id", video.ID.String(), "error", err.Error())
		return nil, text
	}
	if len(vectors) == 0 {
		return nil, text
	}
	return vectors[0], text
}
