package worker

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/streem-backend/internal/clients/redis"
	"github.com/yungbote/streem-backend/internal/jobs/pipeline/process_video"
	"github.com/yungbote/streem-backend/internal/jobs/runtime"
	"github.com/yungbote/streem-backend/internal/logger"
	"github.com/yungbote/streem-backend/internal/platform/envutil"
	"github.com/yungbote/streem-backend/internal/repos"
)

const dequeueTimeout = 5 * time.Second

// Worker drains the video queue and runs the processing pipeline, one
// job at a time per process. Locking keeps concurrent replicas off the
// same video.
type Worker struct {
	queue    *redis.Queue
	lock     *redis.Lock
	attempts *redis.Attempts
	videos   repos.VideoRepo
	pipeline *process_video.Pipeline
	owner    string
	log      *logger.Logger
}

func New(
	queue *redis.Queue,
	lock *redis.Lock,
	attempts *redis.Attempts,
	videos repos.VideoRepo,
	pipeline *process_video.Pipeline,
	baseLog *logger.Logger,
) *Worker {
	return &Worker{
		queue:    queue,
		lock:     lock,
		attempts: attempts,
		videos:   videos,
		pipeline: pipeline,
		owner:    redis.WorkerOwner(),
		log:      baseLog.With("component", "VideoWorker"),
	}
}

// Run blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("Video worker started", "owner", w.owner, "queue", redis.VideoQueue)
	for {
		if err := ctx.Err(); err != nil {
			w.log.Info("Video worker stopping")
			return err
		}
		payload, err := w.queue.Dequeue(ctx, redis.VideoQueue, dequeueTimeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			w.log.Warn("Dequeue failed", "error", err.Error())
			sleepCtx(ctx, time.Second)
			continue
		}
		if payload == nil {
			continue
		}

		var env redis.JobEnvelope
		if err := json.Unmarshal(payload, &env); err != nil {
			w.log.Warn("Malformed job payload dropped", "error", err.Error())
			continue
		}
		videoID, err := uuid.Parse(env.VideoID)
		if err != nil {
			w.log.Warn("Job with bad video id dropped", "video_id", env.VideoID)
			continue
		}
		w.process(ctx, videoID)
	}
}

func (w *Worker) process(ctx context.Context, videoID uuid.UUID) {
	id := videoID.String()
	log := w.log.With("video_id", id)

	lockKey := redis.VideoLockKey(id)
	ttl := time.Duration(envutil.Int("WORKER_LOCK_TTL_MS", 900000)) * time.Millisecond
	ok, err := w.lock.Acquire(ctx, lockKey, w.owner, ttl)
	if err != nil {
		log.Warn("Lock acquire failed; requeueing", "error", err.Error())
		w.requeue(ctx, id)
		return
	}
	if !ok {
		// Another worker holds it; that run covers the job.
		log.Info("Job dropped", "reason", "lock_skip")
		return
	}
	stopHeartbeat := w.lock.Heartbeat(ctx, lockKey, w.owner, ttl)
	defer func() {
		stopHeartbeat()
		w.lock.Release(ctx, lockKey, w.owner)
	}()

	attemptsKey := redis.VideoAttemptsKey(id)
	attempt, err := w.attempts.Incr(ctx, attemptsKey)
	if err != nil {
		log.Warn("Attempt counter unavailable; assuming first attempt", "error", err.Error())
		attempt = 1
	}

	workdir := filepath.Join(workRoot(), id)
	if err := os.MkdirAll(workdir, 0o755); err != nil {
		log.Warn("Workdir create failed; requeueing", "error", err.Error())
		w.requeue(ctx, id)
		return
	}
	defer os.RemoveAll(workdir)

	log.Info("Processing video", "attempt", attempt)
	res := w.pipeline.Run(ctx, videoID, workdir)

	switch res.Status {
	case runtime.Ok, runtime.Skipped:
		if err := w.attempts.Clear(ctx, attemptsKey); err != nil {
			log.Warn("Attempt counter clear failed", "error", err.Error())
		}
	case runtime.Transient:
		backoff := runtime.ParseBackoff(envutil.String("WORKER_BACKOFF_SECONDS", ""))
		if attempt > len(backoff) {
			w.fail(ctx, videoID, res, attempt, "retries_exhausted")
			return
		}
		delay := backoff[attempt-1]
		log.Warn("Transient failure; retrying",
			"attempt", attempt,
			"delay", delay.String(),
			"error", res.ErrorString(),
		)
		sleepCtx(ctx, delay)
		w.requeue(ctx, id)
	case runtime.Terminal:
		w.fail(ctx, videoID, res, attempt, "terminal")
	}
}

func (w *Worker) fail(ctx context.Context, videoID uuid.UUID, res runtime.Result, attempt int, reason string) {
	id := videoID.String()
	log := w.log.With("video_id", id)
	log.Error("Video processing failed permanently",
		"attempts", attempt,
		"reason", reason,
		"error", res.ErrorString(),
	)

	if err := w.videos.MarkFailed(ctx, nil, videoID, res.ErrorString()); err != nil {
		log.Warn("MarkFailed write failed", "error", err.Error())
	}
	if err := w.queue.PushDLQ(ctx, redis.VideoDLQ, redis.NewDLQEntry(id, res.Err, attempt, reason)); err != nil {
		log.Warn("Dead-letter push failed", "error", err.Error())
	}
	if err := w.attempts.Clear(ctx, redis.VideoAttemptsKey(id)); err != nil {
		log.Warn("Attempt counter clear failed", "error", err.Error())
	}
	if video, err := w.videos.GetByID(ctx, nil, videoID); err == nil {
		w.pipeline.PublishFailed(ctx, video, reason)
	}
}

func (w *Worker) requeue(ctx context.Context, videoID string) {
	if err := w.queue.Enqueue(ctx, redis.VideoQueue, redis.JobEnvelope{VideoID: videoID, Reason: "retry"}); err != nil {
		w.log.Warn("Requeue failed", "video_id", videoID, "error", err.Error())
	}
}

func workRoot() string {
	if root := envutil.String("WORK_ROOT", ""); root != "" {
		return root
	}
	return filepath.Join(os.TempDir(), "streem")
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
