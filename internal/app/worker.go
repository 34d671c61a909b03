package app

import (
	"context"
	"fmt"

	"github.com/yungbote/streem-backend/internal/enrich"
	"github.com/yungbote/streem-backend/internal/jobs/notifier"
	"github.com/yungbote/streem-backend/internal/jobs/pipeline/process_video"
	"github.com/yungbote/streem-backend/internal/jobs/worker"
	"github.com/yungbote/streem-backend/internal/platform/envutil"
	"github.com/yungbote/streem-backend/internal/platform/localmedia"
)

// StartWorker runs the queue consumer selected by WORKER_KIND:
// "pipeline" drains q:videos, "notifier" drains q:emails.
func (a *App) StartWorker(ctx context.Context) error {
	kind := envutil.String("WORKER_KIND", "pipeline")
	switch kind {
	case "pipeline":
		return a.startPipelineWorker(ctx)
	case "notifier":
		return a.startNotifier(ctx)
	default:
		return fmt.Errorf("unknown WORKER_KIND: %s", kind)
	}
}

func (a *App) startPipelineWorker(ctx context.Context) error {
	tools := localmedia.New(a.Log)
	transcriber, err := process_video.NewTranscriber(tools, a.Bucket, a.Speech, a.Log)
	if err != nil {
		return fmt.Errorf("transcriber: %w", err)
	}

	var enricher *enrich.Enricher
	if a.AI != nil {
		enricher = enrich.NewEnricher(
			a.DB, a.AI, a.VideoRepo, a.SummaryRepo, a.CatalogRepo,
			a.Graph, a.Search, a.Log,
		)
	} else {
		a.Log.Warn("Enrichment stage disabled: no OpenAI client")
	}

	pipeline := process_video.New(process_video.Deps{
		Videos:      a.VideoRepo,
		Assets:      a.AssetRepo,
		Bucket:      a.Bucket,
		Tools:       tools,
		Search:      a.Search,
		Enricher:    enricher,
		Transcriber: transcriber,
		Queue:       a.Queue,
		Bus:         a.Bus,
		Log:         a.Log,
	})

	w := worker.New(a.Queue, a.Lock, a.Attempts, a.VideoRepo, pipeline, a.Log)
	return w.Run(ctx)
}

func (a *App) startNotifier(ctx context.Context) error {
	if a.Mailer == nil {
		return fmt.Errorf("notifier requires a configured SendGrid client")
	}
	n := notifier.New(a.Queue, a.Lock, a.Attempts, a.VideoRepo, a.UserRepo, a.Mailer, a.Log)
	return n.Run(ctx)
}
