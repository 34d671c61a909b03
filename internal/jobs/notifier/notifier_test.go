package notifier

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/yungbote/streem-backend/internal/jobs/runtime"
	"github.com/yungbote/streem-backend/internal/logger"
	"github.com/yungbote/streem-backend/internal/platform/sendgrid"
	"github.com/yungbote/streem-backend/internal/repos"
	"github.com/yungbote/streem-backend/internal/types"
)

// sqlite cannot evaluate the uuid_generate_v4() column defaults the
// production schema uses, so the tables are created directly.
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
}

type fakeMailer struct {
	sent []sendgrid.SendEmailRequest
	err  error
}

func (f *fakeMailer) Send(_ context.Context, req sendgrid.SendEmailRequest) (*sendgrid.SendEmailResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, req)
	return &sendgrid.SendEmailResult{StatusCode: 202, MessageID: "m1"}, nil
}

func newTestNotifier(t *testing.T) (*Notifier, *gorm.DB, *fakeMailer) {
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
	log := logger.NewNop()
	mailer := &fakeMailer{}
	n := &Notifier{
		videos: repos.NewVideoRepo(db, log),
		users:  repos.NewUserRepo(db, log),
		mailer: mailer,
		owner:  "test-owner",
		log:    log,
	}
	return n, db, mailer
}

func seedReadyVideo(t *testing.T, db *gorm.DB, title string) *types.Video {
	t.Helper()
	user := &types.User{ID: uuid.New(), Email: "viewer@example.com", PasswordHash: "x", DisplayName: "Viewer"}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	video := &types.Video{
		ID:               uuid.New(),
		UserID:           user.ID,
		Title:            title,
		OriginalFilename: "clip.mp4",
		RawKey:           "raw/" + user.ID.String() + "/clip.mp4",
		Status:           types.VideoStatusReady,
	}
	if err := db.Create(video).Error; err != nil {
		t.Fatalf("seed video: %v", err)
	}
	return video
}

func TestHandleSendsExactlyOnce(t *testing.T) {
	n, db, mailer := newTestNotifier(t)
	video := seedReadyVideo(t, db, "Sourdough Basics")
	ctx := context.Background()

	if res := n.handle(ctx, video.ID); res.Status != runtime.Ok {
		t.Fatalf("first handle = %s (%s), want ok", res.Status, res.ErrorString())
	}
	if len(mailer.sent) != 1 {
		t.Fatalf("sent %d emails, want 1", len(mailer.sent))
	}
	got, err := n.videos.GetByID(ctx, nil, video.ID)
	if err != nil {
		t.Fatalf("reload video: %v", err)
	}
	if got.NotifiedAt == nil {
		t.Fatal("notified_at not stamped after send")
	}

	res := n.handle(ctx, video.ID)
	if res.Status != runtime.Skipped || res.Reason != "already_notified" {
		t.Fatalf("second handle = %s (%s), want skip already_notified", res.Status, res.Reason)
	}
	if len(mailer.sent) != 1 {
		t.Fatalf("sent %d emails after rerun, want 1", len(mailer.sent))
	}
}

func TestHandleComposesEmail(t *testing.T) {
	n, db, mailer := newTestNotifier(t)
	video := seedReadyVideo(t, db, "Sourdough Basics")
	t.Setenv("PUBLIC_WEB_BASE_URL", "https://streem.example")

	if res := n.handle(context.Background(), video.ID); res.Status != runtime.Ok {
		t.Fatalf("handle = %s (%s), want ok", res.Status, res.ErrorString())
	}
	msg := mailer.sent[0]
	if msg.To[0].Email != "viewer@example.com" {
		t.Fatalf("recipient = %s, want viewer@example.com", msg.To[0].Email)
	}
	if want := "Your video “Sourdough Basics” is ready"; msg.Subject != want {
		t.Fatalf("subject = %q, want %q", msg.Subject, want)
	}
	wantLink := "https://streem.example/videos/" + video.ID.String()
	wantBody := "Hi,\n\nYour video \"Sourdough Basics\" is ready to watch.\n\nOpen: " + wantLink + "\n\n— Streem"
	if msg.Text != wantBody {
		t.Fatalf("body = %q, want %q", msg.Text, wantBody)
	}
}

func TestHandleGates(t *testing.T) {
	n, db, mailer := newTestNotifier(t)
	video := seedReadyVideo(t, db, "Draft")
	if err := db.Model(&types.Video{}).Where("id = ?", video.ID).
		Update("status", types.VideoStatusProcessing).Error; err != nil {
		t.Fatalf("downgrade status: %v", err)
	}

	res := n.handle(context.Background(), video.ID)
	if res.Status != runtime.Skipped || res.Reason != "not_ready" {
		t.Fatalf("handle = %s (%s), want skip not_ready", res.Status, res.Reason)
	}
	if res := n.handle(context.Background(), uuid.New()); res.Reason != "missing_video" {
		t.Fatalf("missing video reason = %q, want missing_video", res.Reason)
	}
	if len(mailer.sent) != 0 {
		t.Fatalf("sent %d emails, want 0", len(mailer.sent))
	}
}

func TestHandleSendFailureIsTransient(t *testing.T) {
	n, db, mailer := newTestNotifier(t)
	video := seedReadyVideo(t, db, "Flaky")
	mailer.err = context.DeadlineExceeded

	res := n.handle(context.Background(), video.ID)
	if res.Status != runtime.Transient {
		t.Fatalf("handle = %s, want transient", res.Status)
	}
	got, err := n.videos.GetByID(context.Background(), nil, video.ID)
	if err != nil {
		t.Fatalf("reload video: %v", err)
	}
	if got.NotifiedAt != nil {
		t.Fatal("notified_at stamped despite send failure")
	}
	if got.Status != types.VideoStatusReady {
		t.Fatalf("status = %s; email failures must not touch the video row", got.Status)
	}
}

func TestDisplayTitleFallback(t *testing.T) {
	v := &types.Video{Title: "  ", OriginalFilename: "raw.mov"}
	if got := displayTitle(v); got != "raw.mov" {
		t.Fatalf("displayTitle = %q, want raw.mov", got)
	}
	v.OriginalFilename = ""
	if got := displayTitle(v); got != "your video" {
		t.Fatalf("displayTitle = %q, want fallback", got)
	}
}

func TestVideoLinkTrimsTrailingSlash(t *testing.T) {
	t.Setenv("PUBLIC_WEB_BASE_URL", "https://streem.example/")
	got := videoLink("abc")
	if !strings.HasPrefix(got, "https://streem.example/videos/") {
		t.Fatalf("videoLink = %q", got)
	}
}
