package process_video

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/yungbote/streem-backend/internal/logger"
	"github.com/yungbote/streem-backend/internal/platform/envutil"
	"github.com/yungbote/streem-backend/internal/platform/gcp"
	"github.com/yungbote/streem-backend/internal/platform/localmedia"
	"github.com/yungbote/streem-backend/internal/platform/speech"
	"github.com/yungbote/streem-backend/internal/transcript"
)

// NewTranscriber picks the transcription engine from TRANSCRIBE_ENGINE
// (local whisper by default, google for Cloud Speech-to-Text).
func NewTranscriber(tools localmedia.Tools, bucket gcp.BucketService, stt speech.Client, log *logger.Logger) (Transcriber, error) {
	engine := envutil.String("TRANSCRIBE_ENGINE", "local")
	switch engine {
	case "local":
		return &localTranscriber{tools: tools}, nil
	case "google":
		if stt == nil {
			return nil, fmt.Errorf("TRANSCRIBE_ENGINE=google but speech client is not configured")
		}
		return &googleTranscriber{bucket: bucket, stt: stt, log: log.With("component", "GoogleTranscriber")}, nil
	default:
		return nil, fmt.Errorf("unknown TRANSCRIBE_ENGINE: %s", engine)
	}
}

type localTranscriber struct {
	tools localmedia.Tools
}

func (t *localTranscriber) Transcribe(ctx context.Context, wavPath string, _ string, lang string) ([]transcript.Segment, error) {
	return t.tools.WhisperTranscribe(ctx, wavPath, filepath.Dir(wavPath), lang)
}

// googleTranscriber stages the WAV in the bucket so the long-running
// recognize call can read it by gs:// URI. The staged object is removed
// best-effort afterwards.
type googleTranscriber struct {
	bucket gcp.BucketService
	stt    speech.Client
	log    *logger.Logger
}

func (t *googleTranscriber) Transcribe(ctx context.Context, wavPath string, videoID string, lang string) ([]transcript.Segment, error) {
	key := fmt.Sprintf("captions/%s/audio.wav", videoID)
	if err := t.bucket.UploadFile(ctx, key, wavPath); err != nil {
		return nil, fmt.Errorf("stage audio for speech: %w", err)
	}
	defer func() {
		if err := t.bucket.DeleteObject(ctx, key); err != nil {
			t.log.Warn("Staged audio cleanup failed", "key", key, "error", err.Error())
		}
	}()

	uri := fmt.Sprintf("gs://%s/%s", t.bucket.BucketName(), key)
	return t.stt.TranscribeGCS(ctx, uri, lang)
}
