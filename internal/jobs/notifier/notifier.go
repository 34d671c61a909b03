package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/streem-backend/internal/clients/redis"
	"github.com/yungbote/streem-backend/internal/jobs/runtime"
	"github.com/yungbote/streem-backend/internal/logger"
	"github.com/yungbote/streem-backend/internal/platform/envutil"
	"github.com/yungbote/streem-backend/internal/platform/sendgrid"
	"github.com/yungbote/streem-backend/internal/repos"
	"github.com/yungbote/streem-backend/internal/types"
)

const dequeueTimeout = 5 * time.Second

// Notifier drains the email queue and sends the "video ready" message at
// most once per video. The DB notified_at stamp is the durable guard; the
// per-video lock keeps concurrent replicas from racing the send itself.
type Notifier struct {
	queue    *redis.Queue
	lock     *redis.Lock
	attempts *redis.Attempts
	videos   repos.VideoRepo
	users    repos.UserRepo
	mailer   sendgrid.Client
	owner    string
	log      *logger.Logger
}

func New(
	queue *redis.Queue,
	lock *redis.Lock,
	attempts *redis.Attempts,
	videos repos.VideoRepo,
	users repos.UserRepo,
	mailer sendgrid.Client,
	baseLog *logger.Logger,
) *Notifier {
	return &Notifier{
		queue:    queue,
		lock:     lock,
		attempts: attempts,
		videos:   videos,
		users:    users,
		mailer:   mailer,
		owner:    redis.WorkerOwner(),
		log:      baseLog.With("component", "EmailNotifier"),
	}
}

// Run blocks until ctx is cancelled.
func (n *Notifier) Run(ctx context.Context) error {
	n.log.Info("Email notifier started", "owner", n.owner, "queue", redis.EmailQueue)
	for {
		if err := ctx.Err(); err != nil {
			n.log.Info("Email notifier stopping")
			return err
		}
		payload, err := n.queue.Dequeue(ctx, redis.EmailQueue, dequeueTimeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			n.log.Warn("Dequeue failed", "error", err.Error())
			sleepCtx(ctx, time.Second)
			continue
		}
		if payload == nil {
			continue
		}

		var env redis.JobEnvelope
		if err := json.Unmarshal(payload, &env); err != nil {
			n.log.Warn("Malformed job payload dropped", "error", err.Error())
			continue
		}
		videoID, err := uuid.Parse(env.VideoID)
		if err != nil {
			n.log.Warn("Job with bad video id dropped", "video_id", env.VideoID)
			continue
		}
		n.process(ctx, videoID)
	}
}

func (n *Notifier) process(ctx context.Context, videoID uuid.UUID) {
	id := videoID.String()
	log := n.log.With("video_id", id)

	lockKey := redis.EmailLockKey(id)
	ttl := time.Duration(envutil.Int("WORKER_LOCK_TTL_MS", 900000)) * time.Millisecond
	ok, err := n.lock.Acquire(ctx, lockKey, n.owner, ttl)
	if err != nil {
		log.Warn("Lock acquire failed; requeueing", "error", err.Error())
		n.requeue(ctx, id)
		return
	}
	if !ok {
		log.Info("Job dropped", "reason", "lock_skip")
		return
	}
	stopHeartbeat := n.lock.Heartbeat(ctx, lockKey, n.owner, ttl)
	defer func() {
		stopHeartbeat()
		n.lock.Release(ctx, lockKey, n.owner)
	}()

	attemptsKey := redis.EmailAttemptsKey(id)
	attempt, err := n.attempts.Incr(ctx, attemptsKey)
	if err != nil {
		log.Warn("Attempt counter unavailable; assuming first attempt", "error", err.Error())
		attempt = 1
	}

	res := n.handle(ctx, videoID)
	switch res.Status {
	case runtime.Ok:
		log.Info("Ready email sent")
		n.clearAttempts(ctx, attemptsKey)
	case runtime.Skipped:
		log.Info("Ready email skipped", "reason", res.Reason)
		n.clearAttempts(ctx, attemptsKey)
	case runtime.Transient:
		backoff := runtime.ParseBackoff(envutil.String("WORKER_BACKOFF_SECONDS", ""))
		if attempt > len(backoff) {
			n.fail(ctx, id, res, attempt, "retries_exhausted")
			return
		}
		delay := backoff[attempt-1]
		log.Warn("Transient failure; retrying",
			"attempt", attempt,
			"delay", delay.String(),
			"error", res.ErrorString(),
		)
		sleepCtx(ctx, delay)
		n.requeue(ctx, id)
	case runtime.Terminal:
		n.fail(ctx, id, res, attempt, "terminal")
	}
}

// handle does one delivery attempt. Email failures never touch the video
// row; the pipeline owns its status.
func (n *Notifier) handle(ctx context.Context, videoID uuid.UUID) runtime.Result {
	video, err := n.videos.GetByID(ctx, nil, videoID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return runtime.Skip("missing_video")
		}
		return runtime.TransientErr(fmt.Errorf("load video: %w", err))
	}
	if video.Status != types.VideoStatusReady {
		return runtime.Skip("not_ready")
	}
	if video.NotifiedAt != nil {
		return runtime.Skip("already_notified")
	}

	user, err := n.users.GetByID(ctx, nil, video.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return runtime.Skip("missing_user")
		}
		return runtime.TransientErr(fmt.Errorf("load user: %w", err))
	}

	title := displayTitle(video)
	link := videoLink(videoID.String())
	req := sendgrid.SendEmailRequest{
		To:      []sendgrid.EmailAddress{{Email: user.Email, Name: user.DisplayName}},
		Subject: emailSubject(title),
		Text:    emailBody(title, link),
	}
	if _, err := n.mailer.Send(ctx, req); err != nil {
		return runtime.TransientErr(fmt.Errorf("send ready email: %w", err))
	}

	// The email is out; a failed stamp must not trigger a resend, so it
	// only gets logged. The redis lock covers the concurrent window.
	won, err := n.videos.ClaimNotification(ctx, nil, videoID, time.Now().UTC())
	if err != nil {
		n.log.Warn("Notification stamp failed after send", "video_id", videoID.String(), "error", err.Error())
	} else if !won {
		n.log.Warn("Notification already stamped by another sender", "video_id", videoID.String())
	}
	return runtime.OK()
}

func (n *Notifier) fail(ctx context.Context, videoID string, res runtime.Result, attempt int, reason string) {
	n.log.Error("Ready email failed permanently",
		"video_id", videoID,
		"attempts", attempt,
		"reason", reason,
		"error", res.ErrorString(),
	)
	if err := n.queue.PushDLQ(ctx, redis.EmailDLQ, redis.NewDLQEntry(videoID, res.Err, attempt, reason)); err != nil {
		n.log.Warn("Dead-letter push failed", "video_id", videoID, "error", err.Error())
	}
	n.clearAttempts(ctx, redis.EmailAttemptsKey(videoID))
}

func (n *Notifier) clearAttempts(ctx context.Context, key string) {
	if err := n.attempts.Clear(ctx, key); err != nil {
		n.log.Warn("Attempt counter clear failed", "key", key, "error", err.Error())
	}
}

func (n *Notifier) requeue(ctx context.Context, videoID string) {
	if err := n.queue.Enqueue(ctx, redis.EmailQueue, redis.JobEnvelope{VideoID: videoID, Reason: "retry"}); err != nil {
		n.log.Warn("Requeue failed", "video_id", videoID, "error", err.Error())
	}
}

func displayTitle(video *types.Video) string {
	if t := strings.TrimSpace(video.Title); t != "" {
		return t
	}
	if t := strings.TrimSpace(video.OriginalFilename); t != "" {
		return t
	}
	return "your video"
}

func videoLink(videoID string) string {
	base := strings.TrimRight(envutil.String("PUBLIC_WEB_BASE_URL", "http://localhost:3000"), "/")
	return base + "/videos/" + videoID
}

func emailSubject(title string) string {
	return fmt.Sprintf("Your video “%s” is ready", title)
}

func emailBody(title, link string) string {
	return fmt.Sprintf("Hi,\n\nYour video %q is ready to watch.\n\nOpen: %s\n\n— Streem", title, link)
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
