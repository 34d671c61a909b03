package app

import (
	"context"
	"fmt"

	opensearchgo "github.com/opensearch-project/opensearch-go/v2"
	"gorm.io/gorm"

	"github.com/yungbote/streem-backend/internal/clients/redis"
	"github.com/yungbote/streem-backend/internal/db"
	"github.com/yungbote/streem-backend/internal/logger"
	"github.com/yungbote/streem-backend/internal/observability"
	"github.com/yungbote/streem-backend/internal/platform/envutil"
	"github.com/yungbote/streem-backend/internal/platform/gcp"
	"github.com/yungbote/streem-backend/internal/platform/neo4jdb"
	"github.com/yungbote/streem-backend/internal/platform/openai"
	"github.com/yungbote/streem-backend/internal/platform/opensearch"
	"github.com/yungbote/streem-backend/internal/platform/sendgrid"
	"github.com/yungbote/streem-backend/internal/platform/speech"
	"github.com/yungbote/streem-backend/internal/repos"
	"github.com/yungbote/streem-backend/internal/search"
)

// App carries every shared dependency. The api and worker binaries build
// the same App and differ only in what they start.
type App struct {
	Log      *logger.Logger
	Postgres *db.PostgresService
	DB       *gorm.DB

	Redis     *redis.Client
	Queue     *redis.Queue
	Lock      *redis.Lock
	Attempts  *redis.Attempts
	RateLimit *redis.RateLimit
	Bus       redis.SSEBus

	Bucket     gcp.BucketService
	OpenSearch *opensearchgo.Client
	Search     search.Service
	Graph      *neo4jdb.Client
	AI         openai.Client
	Mailer     sendgrid.Client
	Speech     speech.Client

	UserRepo    repos.UserRepo
	VideoRepo   repos.VideoRepo
	AssetRepo   repos.VideoAssetRepo
	SummaryRepo repos.VideoSummaryRepo
	CatalogRepo repos.CatalogRepo
	HistoryRepo repos.WatchHistoryRepo

	otelShutdown func(context.Context) error
}

func New(ctx context.Context) (*App, error) {
	log, err := logger.New(envutil.String("ENV", "local"))
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &App{Log: log}
	a.otelShutdown = observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: "streem",
		Environment: envutil.String("ENV", "local"),
		Version:     envutil.String("SERVICE_VERSION", "dev"),
	})

	if err := a.wireClients(ctx); err != nil {
		return nil, err
	}
	a.wireRepos()
	return a, nil
}

func (a *App) wireClients(ctx context.Context) error {
	postgres, err := db.NewPostgresService(a.Log)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	if err := postgres.AutoMigrateAll(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	a.Postgres = postgres
	a.DB = postgres.DB()

	redisClient, err := redis.New(a.Log)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	a.Redis = redisClient
	a.Queue = redis.NewQueue(redisClient)
	a.Lock = redis.NewLock(redisClient)
	a.Attempts = redis.NewAttempts(redisClient)
	a.RateLimit = redis.NewRateLimit(redisClient)

	bus, err := redis.NewSSEBus(a.Log, redisClient)
	if err != nil {
		return fmt.Errorf("sse bus: %w", err)
	}
	a.Bus = bus

	bucket, err := gcp.NewBucketService(a.Log)
	if err != nil {
		return fmt.Errorf("bucket: %w", err)
	}
	a.Bucket = bucket

	osClient, err := opensearch.New(a.Log)
	if err != nil {
		return fmt.Errorf("opensearch: %w", err)
	}
	a.OpenSearch = osClient
	a.Search = search.NewService(osClient, a.Log)

	// The graph is optional: NewFromEnv returns (nil, nil) without NEO4J_URI.
	graphClient, err := neo4jdb.NewFromEnv(a.Log)
	if err != nil {
		return fmt.Errorf("neo4j: %w", err)
	}
	a.Graph = graphClient

	ai, err := openai.NewClient(a.Log)
	if err != nil {
		a.Log.Warn("OpenAI client unavailable; enrichment disabled", "error", err.Error())
	} else {
		a.AI = ai
	}

	mailer, err := sendgrid.NewFromEnv(a.Log)
	if err != nil {
		a.Log.Warn("SendGrid client unavailable; ready email disabled", "error", err.Error())
	} else {
		a.Mailer = mailer
	}

	if envutil.String("TRANSCRIBE_ENGINE", "local") == "google" {
		stt, err := speech.New(a.Log)
		if err != nil {
			return fmt.Errorf("speech: %w", err)
		}
		a.Speech = stt
	}
	return nil
}

func (a *App) wireRepos() {
	a.UserRepo = repos.NewUserRepo(a.DB, a.Log)
	a.VideoRepo = repos.NewVideoRepo(a.DB, a.Log)
	a.AssetRepo = repos.NewVideoAssetRepo(a.DB, a.Log)
	a.SummaryRepo = repos.NewVideoSummaryRepo(a.DB, a.Log)
	a.CatalogRepo = repos.NewCatalogRepo(a.DB, a.Log)
	a.HistoryRepo = repos.NewWatchHistoryRepo(a.DB, a.Log)
}

// Close releases clients in reverse wiring order.
func (a *App) Close(ctx context.Context) {
	if a.Graph != nil && a.Graph.Driver != nil {
		_ = a.Graph.Driver.Close(ctx)
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.otelShutdown != nil {
		_ = a.otelShutdown(ctx)
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
