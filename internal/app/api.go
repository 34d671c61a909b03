package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/yungbote/streem-backend/internal/data/graph"
	"github.com/yungbote/streem-backend/internal/handlers"
	"github.com/yungbote/streem-backend/internal/middleware"
	"github.com/yungbote/streem-backend/internal/platform/envutil"
	"github.com/yungbote/streem-backend/internal/platform/opensearch"
	"github.com/yungbote/streem-backend/internal/recs"
	"github.com/yungbote/streem-backend/internal/server"
	"github.com/yungbote/streem-backend/internal/services"
	"github.com/yungbote/streem-backend/internal/sse"
)

// StartAPI wires the HTTP surface and serves until ctx is cancelled.
func (a *App) StartAPI(ctx context.Context) error {
	if err := a.Search.EnsureIndexes(ctx); err != nil {
		a.Log.Warn("Index bootstrap failed; continuing", "error", err.Error())
	}
	if a.Graph != nil {
		graph.EnsureSchema(ctx, a.Graph, a.Log)
	}

	hub := sse.NewHub(a.Log)
	if err := a.Bus.StartForwarder(ctx, hub.Broadcast); err != nil {
		return fmt.Errorf("start sse forwarder: %w", err)
	}

	avatarService := services.NewAvatarService(a.Bucket, a.Log)
	authService := services.NewAuthService(a.DB, a.UserRepo, avatarService, a.Log)
	uploadService := services.NewUploadService(a.VideoRepo, a.Bucket, a.Queue, a.RateLimit, a.Log)
	videoService := services.NewVideoService(
		a.DB, a.VideoRepo, a.AssetRepo, a.SummaryRepo, a.CatalogRepo,
		a.Bucket, a.Search, a.Graph, a.Log,
	)
	historyService := services.NewHistoryService(a.HistoryRepo, a.VideoRepo, a.Bucket, a.Log)
	searchService := services.NewSearchService(a.Search, a.Log)

	seedSource := recs.NewSeedSource(a.HistoryRepo, a.CatalogRepo, a.Search, a.Log)
	engine := recs.NewEngine(
		seedSource,
		recs.NewOSLane(a.Search, a.Log),
		recs.NewGraphLane(a.Graph, a.Search, a.Log),
		a.Log,
	)
	homefeedService := services.NewHomefeedService(engine, a.Log)

	router := server.NewRouter(server.RouterConfig{
		Log:             a.Log,
		AuthMiddleware:  middleware.NewAuthMiddleware(authService, a.Log),
		AuthHandler:     handlers.NewAuthHandler(authService, a.Log),
		UploadHandler:   handlers.NewUploadHandler(uploadService, a.Log),
		VideoHandler:    handlers.NewVideoHandler(videoService, a.Log),
		HistoryHandler:  handlers.NewHistoryHandler(historyService, a.Log),
		HomefeedHandler: handlers.NewHomefeedHandler(homefeedService, a.Log),
		SearchHandler:   handlers.NewSearchHandler(searchService, a.Log),
		EventsHandler:   handlers.NewEventsHandler(hub, a.Log),
		HealthHandler:   handlers.NewHealthHandler(a.healthChecks(), a.Log),
	})

	addr := ":" + envutil.String("PORT", "8080")
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.Log.Info("API listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (a *App) healthChecks() map[string]handlers.HealthChecker {
	checks := map[string]handlers.HealthChecker{
		"postgres": a.Postgres.Ping,
		"redis":    a.Redis.Ping,
		"opensearch": func(ctx context.Context) error {
			return opensearch.Ping(ctx, a.OpenSearch)
		},
	}
	if a.Graph != nil && a.Graph.Driver != nil {
		checks["neo4j"] = func(ctx context.Context) error {
			return a.Graph.Driver.VerifyConnectivity(ctx)
		}
	}
	return checks
}
