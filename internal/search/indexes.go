package search

import (
	"context"
	"fmt"
	"strings"

	opensearchgo "github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
)

const (
	VideosIndex           = "videos"
	TranscriptChunksIndex = "transcript_chunks"
)

// videosMapping keeps embedding unindexed: it is payload for lane scoring,
// never a query target.
const videosMapping = `{
  "settings": {
    "number_of_shards": 1,
    "number_of_replicas": 0,
    "refresh_interval": "1s"
  },
  "mappings": {
    "properties": {
      "title": {"type": "text", "fields": {"raw": {"type": "keyword", "ignore_above": 256}}},
      "description": {"type": "text", "fields": {"raw": {"type": "keyword", "ignore_above": 512}}},
      "short_summary": {"type": "text", "index": false},
      "content_type": {"type": "keyword"},
      "language": {"type": "keyword"},
      "duration_seconds": {"type": "float"},
      "created_at": {"type": "date"},
      "updated_at": {"type": "date"},
      "user_id": {"type": "keyword"},
      "status": {"type": "keyword"},
      "thumbnail_url": {"type": "keyword", "index": false},
      "embedding": {"type": "float", "index": false, "doc_values": false},
      "topics": {
        "type": "nested",
        "properties": {
          "id": {"type": "keyword"},
          "name": {"type": "text", "fields": {"keyword": {"type": "keyword", "ignore_above": 256}}},
          "canonical_name": {"type": "keyword"},
          "weight": {"type": "float"}
        }
      },
      "entities": {
        "type": "nested",
        "properties": {
          "id": {"type": "keyword"},
          "name": {"type": "text", "fields": {"keyword": {"type": "keyword", "ignore_above": 256}}},
          "canonical_name": {"type": "keyword"},
          "weight": {"type": "float"}
        }
      },
      "tags": {
        "type": "nested",
        "properties": {
          "id": {"type": "keyword"},
          "name": {"type": "text", "fields": {"keyword": {"type": "keyword", "ignore_above": 256}}},
          "canonical_name": {"type": "keyword"},
          "weight": {"type": "float"}
        }
      }
    }
  }
}`

const transcriptChunksMapping = `{
  "settings": {
    "number_of_shards": 1,
    "number_of_replicas": 0,
    "refresh_interval": "1s"
  },
  "mappings": {
    "properties": {
      "video_id": {"type": "keyword"},
      "text": {"type": "text"},
      "start_seconds": {"type": "float"},
      "end_seconds": {"type": "float"},
      "lang": {"type": "keyword"},
      "created_at": {"type": "date"}
    }
  }
}`

func ensureIndex(ctx context.Context, client *opensearchgo.Client, name, mapping string) error {
	existsReq := opensearchapi.IndicesExistsRequest{Index: []string{name}}
	existsRes, err := existsReq.Do(ctx, client)
	if err != nil {
		return fmt.Errorf("check index %s: %w", name, err)
	}
	existsRes.Body.Close()
	if existsRes.StatusCode == 200 {
		return nil
	}

	createReq := opensearchapi.IndicesCreateRequest{
		Index: name,
		Body:  strings.NewReader(mapping),
	}
	createRes, err := createReq.Do(ctx, client)
	if err != nil {
		return fmt.Errorf("create index %s: %w", name, err)
	}
	defer createRes.Body.Close()
	if createRes.IsError() && createRes.StatusCode != 400 {
		// 400 resource_already_exists is fine under concurrent startup.
		return fmt.Errorf("create index %s: status %s", name, createRes.Status())
	}
	return nil
}
