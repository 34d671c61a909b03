package repos

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/yungbote/streem-backend/internal/logger"
	"github.com/yungbote/streem-backend/internal/types"
)

// The production schema leans on uuid_generate_v4() defaults, which sqlite
// cannot evaluate, so tests create the tables directly and assign IDs.
var testSchema = []string{
	`CREATE TABLE users (
		id text PRIMARY KEY,
		email text NOT NULL UNIQUE,
		password_hash text NOT NULL,
		display_name text,
		avatar_url text,
		created_at datetime,
		updated_at datetime
	)`,
	`CREATE TABLE videos (
		id text PRIMARY KEY,
		user_id text NOT NULL,
		title text NOT NULL DEFAULT '',
		description text NOT NULL DEFAULT '',
		original_filename text NOT NULL,
		raw_key text NOT NULL,
		status text NOT NULL DEFAULT 'uploaded',
		probe text,
		duration_seconds real,
		content_type text,
		language text DEFAULT 'en',
		error text,
		notified_at datetime,
		created_at datetime,
		updated_at datetime
	)`,
	`CREATE TABLE video_assets (
		id text PRIMARY KEY,
		video_id text NOT NULL,
		kind text NOT NULL,
		label text NOT NULL DEFAULT '',
		storage_key text NOT NULL,
		ready integer NOT NULL DEFAULT 0,
		meta text,
		created_at datetime,
		updated_at datetime,
		UNIQUE (video_id, kind, label)
	)`,
	`CREATE TABLE watch_history (
		id text PRIMARY KEY,
		user_id text NOT NULL,
		video_id text NOT NULL,
		watched_seconds real NOT NULL DEFAULT 0,
		last_position_seconds real NOT NULL DEFAULT 0,
		completed integer NOT NULL DEFAULT 0,
		created_at datetime,
		updated_at datetime,
		UNIQUE (user_id, video_id)
	)`,
	`CREATE TABLE video_summary (
		video_id text PRIMARY KEY,
		short_summary text NOT NULL DEFAULT '',
		embedding text,
		embedding_model text,
		created_at datetime,
		updated_at datetime
	)`,
	`CREATE TABLE topics (
		id text PRIMARY KEY,
		name text NOT NULL,
		canonical_name text NOT NULL UNIQUE,
		created_at datetime
	)`,
	`CREATE TABLE entities (
		id text PRIMARY KEY,
		name text NOT NULL,
		canonical_name text NOT NULL UNIQUE,
		entity_type text,
		created_at datetime
	)`,
	`CREATE TABLE tags (
		id text PRIMARY KEY,
		name text NOT NULL,
		canonical_name text NOT NULL UNIQUE,
		created_at datetime
	)`,
	`CREATE TABLE video_topics (
		video_id text NOT NULL,
		topic_id text NOT NULL,
		prominence real NOT NULL,
		PRIMARY KEY (video_id, topic_id)
	)`,
	`CREATE TABLE video_entities (
		video_id text NOT NULL,
		entity_id text NOT NULL,
		importance real NOT NULL,
		PRIMARY KEY (video_id, entity_id)
	)`,
	`CREATE TABLE video_tags (
		video_id text NOT NULL,
		tag_id text NOT NULL,
		weight real NOT NULL,
		PRIMARY KEY (video_id, tag_id)
	)`,
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	for _, ddl := range testSchema {
		if err := db.Exec(ddl).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	return logger.NewNop()
}

func seedUser(t *testing.T, db *gorm.DB, email string) *types.User {
	t.Helper()
	user := &types.User{ID: uuid.New(), Email: email, PasswordHash: "x", DisplayName: "Test User"}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func seedVideo(t *testing.T, db *gorm.DB, userID uuid.UUID, title string, createdAt time.Time) *types.Video {
	t.Helper()
	video := &types.Video{
		ID:               uuid.New(),
		UserID:           userID,
		Title:            title,
		OriginalFilename: "clip.mp4",
		RawKey:           "raw/" + userID.String() + "/" + title + ".mp4",
		Status:           types.VideoStatusUploaded,
		CreatedAt:        createdAt,
		UpdatedAt:        createdAt,
	}
	if err := db.Create(video).Error; err != nil {
		t.Fatalf("seed video: %v", err)
	}
	return video
}

func TestUserRepoCreateAndLookup(t *testing.T) {
	db := openTestDB(t)
	log := testLogger(t)
	repo := NewUserRepo(db, log)
	ctx := context.Background()

	user := &types.User{ID: uuid.New(), Email: "a@example.com", PasswordHash: "hash"}
	if err := repo.Create(ctx, nil, user); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := repo.GetByEmail(ctx, nil, "a@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if got.ID != user.ID {
		t.Fatalf("got id %s, want %s", got.ID, user.ID)
	}

	if err := repo.UpdateDisplayName(ctx, nil, user.ID, "Alice"); err != nil {
		t.Fatalf("update display name: %v", err)
	}
	got, err = repo.GetByID(ctx, nil, user.ID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if got.DisplayName != "Alice" {
		t.Fatalf("display name = %q, want Alice", got.DisplayName)
	}
}

func TestVideoRepoListByUserNewestFirst(t *testing.T) {
	db := openTestDB(t)
	log := testLogger(t)
	repo := NewVideoRepo(db, log)
	ctx := context.Background()

	user := seedUser(t, db, "v@example.com")
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seedVideo(t, db, user.ID, "oldest", base)
	seedVideo(t, db, user.ID, "middle", base.Add(1*time.Hour))
	seedVideo(t, db, user.ID, "newest", base.Add(2*time.Hour))

	videos, err := repo.ListByUser(ctx, nil, user.ID, 2, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(videos) != 2 {
		t.Fatalf("got %d videos, want 2", len(videos))
	}
	if videos[0].Title != "newest" || videos[1].Title != "middle" {
		t.Fatalf("order = %q, %q; want newest, middle", videos[0].Title, videos[1].Title)
	}

	videos, err = repo.ListByUser(ctx, nil, user.ID, 2, 2)
	if err != nil {
		t.Fatalf("list offset: %v", err)
	}
	if len(videos) != 1 || videos[0].Title != "oldest" {
		t.Fatalf("offset page wrong: %+v", videos)
	}
}

func TestVideoRepoStatusAndFailure(t *testing.T) {
	db := openTestDB(t)
	log := testLogger(t)
	repo := NewVideoRepo(db, log)
	ctx := context.Background()

	user := seedUser(t, db, "s@example.com")
	video := seedVideo(t, db, user.ID, "clip", time.Now().UTC())

	if err := repo.MarkFailed(ctx, nil, video.ID, "ffmpeg exited 1"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	got, err := repo.GetByID(ctx, nil, video.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != types.VideoStatusFailed || got.Error != "ffmpeg exited 1" {
		t.Fatalf("after fail: status=%q error=%q", got.Status, got.Error)
	}

	// Retrying clears the stored error.
	if err := repo.UpdateStatus(ctx, nil, video.ID, types.VideoStatusProcessing); err != nil {
		t.Fatalf("update status: %v", err)
	}
	got, err = repo.GetByID(ctx, nil, video.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != types.VideoStatusProcessing || got.Error != "" {
		t.Fatalf("after retry: status=%q error=%q", got.Status, got.Error)
	}
}

func TestVideoRepoClaimNotificationOnce(t *testing.T) {
	db := openTestDB(t)
	log := testLogger(t)
	repo := NewVideoRepo(db, log)
	ctx := context.Background()

	user := seedUser(t, db, "n@example.com")
	video := seedVideo(t, db, user.ID, "clip", time.Now().UTC())

	won, err := repo.ClaimNotification(ctx, nil, video.ID, time.Now())
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if !won {
		t.Fatal("first claim should win")
	}

	won, err = repo.ClaimNotification(ctx, nil, video.ID, time.Now())
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if won {
		t.Fatal("second claim should lose")
	}
}

func TestVideoAssetRepoUpsert(t *testing.T) {
	db := openTestDB(t)
	log := testLogger(t)
	repo := NewVideoAssetRepo(db, log)
	ctx := context.Background()

	user := seedUser(t, db, "asset@example.com")
	video := seedVideo(t, db, user.ID, "clip", time.Now().UTC())

	first := &types.VideoAsset{
		ID:         uuid.New(),
		VideoID:    video.ID,
		Kind:       types.AssetKindHLS,
		Label:      types.AssetLabel720p,
		StorageKey: "hls/" + video.ID.String() + "/720p/index.m3u8",
		Ready:      false,
	}
	if err := repo.Upsert(ctx, nil, first); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	second := &types.VideoAsset{
		ID:         uuid.New(),
		VideoID:    video.ID,
		Kind:       types.AssetKindHLS,
		Label:      types.AssetLabel720p,
		StorageKey: first.StorageKey,
		Ready:      true,
	}
	if err := repo.Upsert(ctx, nil, second); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	assets, err := repo.ListByVideo(ctx, nil, video.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(assets) != 1 {
		t.Fatalf("got %d assets, want 1", len(assets))
	}
	if !assets[0].Ready {
		t.Fatal("upsert should have flipped ready")
	}
	if assets[0].ID != first.ID {
		t.Fatalf("upsert replaced the row instead of updating it")
	}
}

func TestWatchHistoryRepoAccumulates(t *testing.T) {
	db := openTestDB(t)
	log := testLogger(t)
	repo := NewWatchHistoryRepo(db, log)
	ctx := context.Background()

	user := seedUser(t, db, "w@example.com")
	video := seedVideo(t, db, user.ID, "clip", time.Now().UTC())

	if err := repo.UpsertProgress(ctx, nil, user.ID, video.ID, 30, 30, false); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if err := repo.UpsertProgress(ctx, nil, user.ID, video.ID, 45, 75, true); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	// A later partial rewatch must not clear completed.
	if err := repo.UpsertProgress(ctx, nil, user.ID, video.ID, 10, 10, false); err != nil {
		t.Fatalf("third upsert: %v", err)
	}

	row, err := repo.GetByUserVideo(ctx, nil, user.ID, video.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if row.WatchedSeconds != 85 {
		t.Fatalf("watched_seconds = %v, want 85", row.WatchedSeconds)
	}
	if row.LastPositionSeconds != 10 {
		t.Fatalf("last_position_seconds = %v, want 10", row.LastPositionSeconds)
	}
	if !row.Completed {
		t.Fatal("completed should be sticky")
	}
}

func TestWatchHistoryRepoListRecentReady(t *testing.T) {
	db := openTestDB(t)
	log := testLogger(t)
	repo := NewWatchHistoryRepo(db, log)
	ctx := context.Background()

	user := seedUser(t, db, "r@example.com")
	ready := seedVideo(t, db, user.ID, "done", time.Now().UTC())
	pending := seedVideo(t, db, user.ID, "in-flight", time.Now().UTC())
	if err := db.Model(&types.Video{}).Where("id = ?", ready.ID).
		Update("status", types.VideoStatusReady).Error; err != nil {
		t.Fatalf("mark ready: %v", err)
	}

	if err := repo.UpsertProgress(ctx, nil, user.ID, ready.ID, 10, 10, false); err != nil {
		t.Fatalf("upsert ready: %v", err)
	}
	if err := repo.UpsertProgress(ctx, nil, user.ID, pending.ID, 10, 10, false); err != nil {
		t.Fatalf("upsert pending: %v", err)
	}

	rows, err := repo.ListRecentReadyByUser(ctx, nil, user.ID, 10)
	if err != nil {
		t.Fatalf("list recent ready: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if rows[0].VideoID != ready.ID {
		t.Fatalf("got video %s, want the ready one", rows[0].VideoID)
	}
}

func TestVideoSummaryRepoUpsert(t *testing.T) {
	db := openTestDB(t)
	log := testLogger(t)
	repo := NewVideoSummaryRepo(db, log)
	ctx := context.Background()

	user := seedUser(t, db, "sum@example.com")
	video := seedVideo(t, db, user.ID, "clip", time.Now().UTC())

	if err := repo.Upsert(ctx, nil, &types.VideoSummary{
		VideoID:      video.ID,
		ShortSummary: "first pass",
	}); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if err := repo.Upsert(ctx, nil, &types.VideoSummary{
		VideoID:        video.ID,
		ShortSummary:   "second pass",
		EmbeddingModel: "text-embedding-3-small",
	}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := repo.GetByVideo(ctx, nil, video.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ShortSummary != "second pass" {
		t.Fatalf("short_summary = %q, want second pass", got.ShortSummary)
	}
	if got.EmbeddingModel != "text-embedding-3-small" {
		t.Fatalf("embedding_model = %q", got.EmbeddingModel)
	}
}

func TestCatalogRepoReplaceForVideo(t *testing.T) {
	db := openTestDB(t)
	log := testLogger(t)
	repo := NewCatalogRepo(db, log)
	ctx := context.Background()

	user := seedUser(t, db, "cat@example.com")
	video := seedVideo(t, db, user.ID, "clip", time.Now().UTC())

	first := VideoCatalog{
		Topics: []CatalogRef{
			{Name: "Machine Learning", CanonicalName: "machine_learning", Score: 0.9},
			{Name: "Statistics", CanonicalName: "statistics", Score: 0.4},
		},
		Entities: []CatalogRef{
			{Name: "PyTorch", CanonicalName: "pytorch", EntityType: "product", Score: 0.8},
		},
		Tags: []CatalogRef{
			{Name: "tutorial", CanonicalName: "tutorial", Score: 0.7},
		},
	}
	if err := repo.ReplaceForVideo(ctx, nil, video.ID, first); err != nil {
		t.Fatalf("first replace: %v", err)
	}

	// Re-enrichment drops statistics, rescores machine_learning, adds a tag.
	second := VideoCatalog{
		Topics: []CatalogRef{
			{Name: "machine learning", CanonicalName: "machine_learning", Score: 0.95},
		},
		Entities: []CatalogRef{
			{Name: "PyTorch", CanonicalName: "pytorch", EntityType: "product", Score: 0.8},
		},
		Tags: []CatalogRef{
			{Name: "tutorial", CanonicalName: "tutorial", Score: 0.7},
			{Name: "deep dive", CanonicalName: "deep_dive", Score: 0.5},
		},
	}
	if err := repo.ReplaceForVideo(ctx, nil, video.ID, second); err != nil {
		t.Fatalf("second replace: %v", err)
	}

	catalog, err := repo.ListForVideo(ctx, nil, video.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(catalog.Topics) != 1 {
		t.Fatalf("got %d topics, want 1", len(catalog.Topics))
	}
	if catalog.Topics[0].CanonicalName != "machine_learning" || catalog.Topics[0].Score != 0.95 {
		t.Fatalf("topic = %+v", catalog.Topics[0])
	}
	// Master row keeps the display name from the first extraction.
	if catalog.Topics[0].Name != "Machine Learning" {
		t.Fatalf("topic name = %q, want Machine Learning", catalog.Topics[0].Name)
	}
	if len(catalog.Tags) != 2 {
		t.Fatalf("got %d tags, want 2", len(catalog.Tags))
	}
	if catalog.Tags[0].CanonicalName != "tutorial" {
		t.Fatalf("tags not ordered by score: %+v", catalog.Tags)
	}
	if len(catalog.Entities) != 1 || catalog.Entities[0].EntityType != "product" {
		t.Fatalf("entities = %+v", catalog.Entities)
	}

	// A second video sharing a canonical reuses the same master row.
	other := seedVideo(t, db, user.ID, "clip2", time.Now().UTC())
	if err := repo.ReplaceForVideo(ctx, nil, other.ID, VideoCatalog{
		Topics: []CatalogRef{{Name: "ML", CanonicalName: "machine_learning", Score: 0.5}},
	}); err != nil {
		t.Fatalf("replace other: %v", err)
	}
	var topicCount int64
	if err := db.Model(&types.Topic{}).Count(&topicCount).Error; err != nil {
		t.Fatalf("count topics: %v", err)
	}
	if topicCount != 2 {
		t.Fatalf("topic master rows = %d, want 2", topicCount)
	}
}
