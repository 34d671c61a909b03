package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	opensearchgo "github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/yungbote/streem-backend/internal/logger"
	"github.com/yungbote/streem-backend/internal/transcript"
)

// Hit is one search result with its raw source and highlights.
type Hit struct {
	ID        string
	Score     float64
	Source    map[string]any
	Highlight map[string][]string
}

// SearchResult carries a page of hits plus the engine's total estimate.
type SearchResult struct {
	Hits  []Hit
	Total int
}

type Service interface {
	EnsureIndexes(ctx context.Context) error
	UpsertMetadata(ctx context.Context, videoID string, doc map[string]any) error
	IndexVideoContent(ctx context.Context, videoID string, doc map[string]any) error
	ReindexChunks(ctx context.Context, videoID string, chunks []transcript.Chunk) error
	DeleteVideo(ctx context.Context, videoID string) error
	FetchSources(ctx context.Context, ids []string) (map[string]map[string]any, error)
	SearchVideos(ctx context.Context, body map[string]any) (*SearchResult, error)
	SearchTranscripts(ctx context.Context, body map[string]any) (*SearchResult, error)
}

type service struct {
	client *opensearchgo.Client
	log    *logger.Logger
}

func NewService(client *opensearchgo.Client, baseLog *logger.Logger) Service {
	return &service{
		client: client,
		log:    baseLog.With("service", "SearchService"),
	}
}

func (s *service) EnsureIndexes(ctx context.Context) error {
	if err := ensureIndex(ctx, s.client, VideosIndex, videosMapping); err != nil {
		return err
	}
	return ensureIndex(ctx, s.client, TranscriptChunksIndex, transcriptChunksMapping)
}

func (s *service) UpsertMetadata(ctx context.Context, videoID string, doc map[string]any) error {
	body, err := json.Marshal(map[string]any{"doc": doc, "doc_as_upsert": true})
	if err != nil {
		return err
	}
	req := opensearchapi.UpdateRequest{
		Index:      VideosIndex,
		DocumentID: videoID,
		Body:       bytes.NewReader(body),
		Refresh:    "wait_for",
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("upsert metadata %s: %w", videoID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("upsert metadata %s: status %s", videoID, res.Status())
	}
	return nil
}

func (s *service) IndexVideoContent(ctx context.Context, videoID string, doc map[string]any) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	req := opensearchapi.IndexRequest{
		Index:      VideosIndex,
		DocumentID: videoID,
		Body:       bytes.NewReader(body),
		Refresh:    "wait_for",
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("index video %s: %w", videoID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index video %s: status %s", videoID, res.Status())
	}
	return nil
}

// ReindexChunks replaces every transcript chunk for the video: purge by
// video_id, then bulk insert with deterministic ids so a retry lands on the
// same documents.
func (s *service) ReindexChunks(ctx context.Context, videoID string, chunks []transcript.Chunk) error {
	if err := s.deleteChunks(ctx, videoID); err != nil {
		s.log.Warn("transcript chunk purge failed", "video_id", videoID, "error", err.Error())
	}
	if len(chunks) == 0 {
		return nil
	}

	var buf bytes.Buffer
	count := 0
	for idx, chunk := range chunks {
		text := strings.TrimSpace(chunk.Text)
		if text == "" {
			continue
		}
		docID := fmt.Sprintf("%s_%d_%d", videoID, idx, int(chunk.StartSeconds*1000+0.5))
		action, err := json.Marshal(map[string]any{
			"index": map[string]any{"_index": TranscriptChunksIndex, "_id": docID},
		})
		if err != nil {
			return err
		}
		source, err := json.Marshal(map[string]any{
			"video_id":      videoID,
			"text":          text,
			"start_seconds": chunk.StartSeconds,
			"end_seconds":   chunk.EndSeconds,
			"lang":          chunk.Lang,
			"created_at":    chunk.CreatedAt,
		})
		if err != nil {
			return err
		}
		buf.Write(action)
		buf.WriteByte('\n')
		buf.Write(source)
		buf.WriteByte('\n')
		count++
	}
	if count == 0 {
		return nil
	}

	req := opensearchapi.BulkRequest{Body: &buf, Refresh: "wait_for"}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("bulk chunks %s: %w", videoID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("bulk chunks %s: status %s", videoID, res.Status())
	}

	var bulkRes struct {
		Errors bool `json:"errors"`
	}
	if err := json.NewDecoder(res.Body).Decode(&bulkRes); err != nil {
		return fmt.Errorf("bulk chunks %s: decode: %w", videoID, err)
	}
	if bulkRes.Errors {
		return fmt.Errorf("bulk chunks %s: item failures", videoID)
	}
	s.log.Info("Indexed transcript chunks", "video_id", videoID, "count", count)
	return nil
}

func (s *service) DeleteVideo(ctx context.Context, videoID string) error {
	req := opensearchapi.DeleteRequest{Index: VideosIndex, DocumentID: videoID, Refresh: "wait_for"}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("delete video doc %s: %w", videoID, err)
	}
	res.Body.Close()
	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("delete video doc %s: status %s", videoID, res.Status())
	}
	return s.deleteChunks(ctx, videoID)
}

func (s *service) deleteChunks(ctx context.Context, videoID string) error {
	body, err := json.Marshal(map[string]any{
		"query": map[string]any{"term": map[string]any{"video_id": videoID}},
	})
	if err != nil {
		return err
	}
	refresh := true
	req := opensearchapi.DeleteByQueryRequest{
		Index:     []string{TranscriptChunksIndex},
		Body:      bytes.NewReader(body),
		Refresh:   &refresh,
		Conflicts: "proceed",
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("delete chunks %s: %w", videoID, err)
	}
	res.Body.Close()
	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("delete chunks %s: status %s", videoID, res.Status())
	}
	return nil
}

func (s *service) FetchSources(ctx context.Context, ids []string) (map[string]map[string]any, error) {
	out := map[string]map[string]any{}
	if len(ids) == 0 {
		return out, nil
	}
	unique := make([]string, 0, len(ids))
	seen := map[string]bool{}
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		unique = append(unique, id)
	}

	body, err := json.Marshal(map[string]any{"ids": unique})
	if err != nil {
		return nil, err
	}
	req := opensearchapi.MgetRequest{Index: VideosIndex, Body: bytes.NewReader(body)}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return nil, fmt.Errorf("mget videos: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("mget videos: status %s", res.Status())
	}

	var mgetRes struct {
		Docs []struct {
			ID     string         `json:"_id"`
			Found  bool           `json:"found"`
			Source map[string]any `json:"_source"`
		} `json:"docs"`
	}
	if err := json.NewDecoder(res.Body).Decode(&mgetRes); err != nil {
		return nil, fmt.Errorf("mget videos: decode: %w", err)
	}
	for _, doc := range mgetRes.Docs {
		if !doc.Found || doc.Source == nil {
			continue
		}
		out[doc.ID] = doc.Source
	}
	return out, nil
}

func (s *service) SearchVideos(ctx context.Context, body map[string]any) (*SearchResult, error) {
	return s.search(ctx, VideosIndex, body)
}

func (s *service) SearchTranscripts(ctx context.Context, body map[string]any) (*SearchResult, error) {
	return s.search(ctx, TranscriptChunksIndex, body)
}

func (s *service) search(ctx context.Context, index string, body map[string]any) (*SearchResult, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req := opensearchapi.SearchRequest{
		Index: []string{index},
		Body:  bytes.NewReader(raw),
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", index, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("search %s: status %s", index, res.Status())
	}

	var searchRes struct {
		Hits struct {
			Total struct {
				Value int `json:"value"`
			} `json:"total"`
			Hits []struct {
				ID        string              `json:"_id"`
				Score     float64             `json:"_score"`
				Source    map[string]any      `json:"_source"`
				Highlight map[string][]string `json:"highlight"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&searchRes); err != nil {
		return nil, fmt.Errorf("search %s: decode: %w", index, err)
	}

	result := &SearchResult{Total: searchRes.Hits.Total.Value}
	for _, h := range searchRes.Hits.Hits {
		result.Hits = append(result.Hits, Hit{
			ID:        h.ID,
			Score:     h.Score,
			Source:    h.Source,
			Highlight: h.Highlight,
		})
	}
	return result, nil
}
