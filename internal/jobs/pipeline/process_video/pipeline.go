package process_video

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/streem-backend/internal/clients/redis"
	"github.com/yungbote/streem-backend/internal/enrich"
	"github.com/yungbote/streem-backend/internal/jobs/runtime"
	"github.com/yungbote/streem-backend/internal/logger"
	"github.com/yungbote/streem-backend/internal/platform/envutil"
	"github.com/yungbote/streem-backend/internal/platform/gcp"
	"github.com/yungbote/streem-backend/internal/platform/localmedia"
	"github.com/yungbote/streem-backend/internal/repos"
	"github.com/yungbote/streem-backend/internal/search"
	"github.com/yungbote/streem-backend/internal/sse"
	"github.com/yungbote/streem-backend/internal/transcript"
	"github.com/yungbote/streem-backend/internal/types"
)

// Transcriber produces timed segments for a local WAV. The videoID lets
// engine implementations stage the audio wherever they need it.
type Transcriber interface {
	Transcribe(ctx context.Context, wavPath string, videoID string, lang string) ([]transcript.Segment, error)
}

// Deps carries everything the pipeline stages touch.
type Deps struct {
	Videos      repos.VideoRepo
	Assets      repos.VideoAssetRepo
	Bucket      gcp.BucketService
	Tools       localmedia.Tools
	Search      search.Service
	Enricher    *enrich.Enricher
	Transcriber Transcriber
	Queue       *redis.Queue
	Bus         redis.SSEBus
	Log         *logger.Logger
}

// Pipeline turns one uploaded video into its streamable artifact set.
type Pipeline struct {
	deps Deps
	log  *logger.Logger
}

func New(deps Deps) *Pipeline {
	return &Pipeline{
		deps: deps,
		log:  deps.Log.With("component", "ProcessVideoPipeline"),
	}
}

type jobState struct {
	video      *types.Video
	workdir    string
	sourcePath string
	probe      *localmedia.ProbeResult

	lang             string
	segments         []transcript.Segment
	chunks           []transcript.Chunk
	captionsProduced bool
}

type stepFunc func(ctx context.Context, st *jobState) runtime.Result

// Run executes the stage graph for one video. Load and download always
// run; the remaining stages follow the embedded spec's order.
func (p *Pipeline) Run(ctx context.Context, videoID uuid.UUID, workdir string) runtime.Result {
	st := &jobState{workdir: workdir}
	log := p.log.With("video_id", videoID.String())

	if res := p.stepLoad(ctx, videoID, st); res.Status != runtime.Ok {
		return res
	}
	if res := p.stepDownload(ctx, st); res.Failed() {
		return res
	}

	steps := map[string]stepFunc{
		"probe":          p.stepProbe,
		"transcode_720p": p.stepTranscode720,
		"transcode_480p": p.stepTranscode480,
		"poster":         p.stepPoster,
		"captions":       p.stepCaptions,
		"enrich":         p.stepEnrich,
		"finalize":       p.stepFinalize,
	}

	for _, stage := range StageOrder(p.log) {
		step, ok := steps[stage]
		if !ok {
			log.Warn("Unknown stage in spec; skipping", "stage", stage)
			continue
		}
		started := time.Now()
		res := step(ctx, st)
		switch res.Status {
		case runtime.Ok:
			log.Info("Stage complete", "stage", stage, "elapsed", time.Since(started).String())
		case runtime.Skipped:
			log.Info("Stage skipped", "stage", stage, "reason", res.Reason)
		default:
			log.Warn("Stage failed",
				"stage", stage,
				"status", res.Status.String(),
				"error", res.ErrorString(),
			)
			return res
		}
	}
	return runtime.OK()
}

// ---- load / download ----

func (p *Pipeline) stepLoad(ctx context.Context, videoID uuid.UUID, st *jobState) runtime.Result {
	video, err := p.deps.Videos.GetByID(ctx, nil, videoID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			p.log.Warn("Video row missing; dropping job", "video_id", videoID.String())
			return runtime.Skip("missing_video")
		}
		return runtime.TransientErr(fmt.Errorf("load video: %w", err))
	}
	st.video = video

	if video.Status == types.VideoStatusUploaded {
		if err := p.deps.Videos.UpdateStatus(ctx, nil, video.ID, types.VideoStatusProcessing); err != nil {
			return runtime.TransientErr(fmt.Errorf("mark processing: %w", err))
		}
		st.video.Status = types.VideoStatusProcessing
		p.publishStatus(ctx, st.video, types.VideoStatusProcessing)
	}
	return runtime.OK()
}

func (p *Pipeline) stepDownload(ctx context.Context, st *jobState) runtime.Result {
	if st.video.RawKey == "" {
		return runtime.TerminalErr(errors.New("video has no raw object key"))
	}
	ext := path.Ext(st.video.RawKey)
	st.sourcePath = filepath.Join(st.workdir, "source"+ext)
	if err := p.deps.Bucket.DownloadToFile(ctx, st.video.RawKey, st.sourcePath); err != nil {
		return runtime.TransientErr(fmt.Errorf("download raw object: %w", err))
	}
	return runtime.OK()
}

// ---- probe ----

func (p *Pipeline) stepProbe(ctx context.Context, st *jobState) runtime.Result {
	res, err := p.deps.Tools.Probe(ctx, st.sourcePath)
	if err != nil {
		return runtime.TransientErr(err)
	}
	st.probe = res

	if err := p.deps.Videos.UpdateProbe(ctx, nil, st.video.ID, datatypes.JSON(res.Raw), res.DurationSeconds); err != nil {
		return runtime.TransientErr(fmt.Errorf("persist probe: %w", err))
	}
	if res.DurationSeconds != nil {
		st.video.DurationSeconds = res.DurationSeconds
	}
	p.reindexMetadata(ctx, st)
	return runtime.OK()
}

// ---- transcode ----

func (p *Pipeline) stepTranscode720(ctx context.Context, st *jobState) runtime.Result {
	return p.transcode(ctx, st, "720p", localmedia.HLSOptions{
		Height:       720,
		CRF:          20,
		AudioBitrate: "128k",
		Timeout:      time.Duration(envutil.Int("FFMPEG_TIMEOUT_720P_SECONDS", 1200)) * time.Second,
	})
}

func (p *Pipeline) stepTranscode480(ctx context.Context, st *jobState) runtime.Result {
	return p.transcode(ctx, st, "480p", localmedia.HLSOptions{
		Height:       480,
		CRF:          22,
		AudioBitrate: "96k",
		Timeout:      time.Duration(envutil.Int("FFMPEG_TIMEOUT_480P_SECONDS", 900)) * time.Second,
	})
}

func (p *Pipeline) transcode(ctx context.Context, st *jobState, label string, opts localmedia.HLSOptions) runtime.Result {
	videoID := st.video.ID.String()
	playlistKey := gcp.HLSPlaylistKey(videoID, label)
	if attrs, err := p.deps.Bucket.StatObject(ctx, playlistKey); err == nil && attrs != nil {
		return runtime.Skip("exists")
	}

	opts.GOP = 60
	opts.SegmentSeconds = 4
	if st.probe != nil && st.probe.GOP > 0 {
		opts.GOP = st.probe.GOP
	}

	outDir := filepath.Join(st.workdir, "hls", label)
	if err := p.deps.Tools.TranscodeHLS(ctx, st.sourcePath, outDir, opts); err != nil {
		return runtime.TransientErr(err)
	}
	if err := p.deps.Bucket.UploadDir(ctx, gcp.HLSDir(videoID, label), outDir); err != nil {
		return runtime.TransientErr(fmt.Errorf("upload hls %s: %w", label, err))
	}
	return runtime.OK()
}

// ---- poster ----

func (p *Pipeline) stepPoster(ctx context.Context, st *jobState) runtime.Result {
	videoID := st.video.ID.String()
	key := gcp.PosterKey(videoID)
	if attrs, err := p.deps.Bucket.StatObject(ctx, key); err == nil && attrs != nil {
		return runtime.Skip("exists")
	}

	offset := 0.0
	if st.video.DurationSeconds != nil && *st.video.DurationSeconds > 0 {
		offset = *st.video.DurationSeconds * 0.10
	}
	outPath := filepath.Join(st.workdir, "poster.jpg")
	if err := p.deps.Tools.ExtractPoster(ctx, st.sourcePath, outPath, offset); err != nil {
		return runtime.TransientErr(err)
	}
	if err := p.deps.Bucket.UploadFile(ctx, key, outPath); err != nil {
		return runtime.TransientErr(fmt.Errorf("upload poster: %w", err))
	}
	return runtime.OK()
}

// ---- captions ----

func (p *Pipeline) stepCaptions(ctx context.Context, st *jobState) runtime.Result {
	if !envutil.Bool("CAPTIONS_ENABLED", true) {
		return runtime.Skip("disabled")
	}
	videoID := st.video.ID.String()
	st.lang = envutil.String("CAPTIONS_LANG", "en")
	key := gcp.CaptionsKey(videoID, st.lang)
	log := p.log.With("video_id", videoID)

	if attrs, err := p.deps.Bucket.StatObject(ctx, key); err == nil && attrs != nil {
		// Recovery path: VTT survived an earlier attempt; rebuild the
		// chunk index from it instead of re-transcribing.
		raw, err := p.deps.Bucket.DownloadObject(ctx, key)
		if err != nil {
			log.Warn("Existing VTT unreadable; captions skipped", "error", err.Error())
			return runtime.Skip("vtt_fetch_failed")
		}
		st.segments = transcript.ParseVTT(string(raw))
		st.captionsProduced = true
		p.indexChunks(ctx, st)
		return runtime.Skip("exists")
	}

	wavPath := filepath.Join(st.workdir, "audio.wav")
	if err := p.deps.Tools.ExtractAudio(ctx, st.sourcePath, wavPath); err != nil {
		log.Warn("Audio extraction failed; captions skipped", "error", err.Error())
		return runtime.Skip("audio_extract_failed")
	}

	segments, err := p.deps.Transcriber.Transcribe(ctx, wavPath, videoID, st.lang)
	if err != nil {
		log.Warn("Transcription failed; captions skipped", "error", err.Error())
		return runtime.Skip("transcribe_failed")
	}
	if len(segments) == 0 {
		log.Info("No speech detected", "reason", "no_speech")
		segments = []transcript.Segment{}
	}
	st.segments = segments

	vtt := transcript.FormatVTT(segments)
	if err := p.deps.Bucket.UploadObject(ctx, key, []byte(vtt), "text/vtt"); err != nil {
		log.Warn("VTT upload failed; captions skipped", "error", err.Error())
		return runtime.Skip("vtt_upload_failed")
	}
	st.captionsProduced = true
	p.indexChunks(ctx, st)
	return runtime.OK()
}

func (p *Pipeline) indexChunks(ctx context.Context, st *jobState) {
	videoID := st.video.ID.String()
	st.chunks = transcript.ChunkSegments(videoID, st.segments, st.lang)
	if p.deps.Search == nil {
		return
	}
	if err := p.deps.Search.ReindexChunks(ctx, videoID, st.chunks); err != nil {
		p.log.Warn("Chunk reindex failed", "video_id", videoID, "error", err.Error())
	}
}

// ---- enrich ----

func (p *Pipeline) stepEnrich(ctx context.Context, st *jobState) runtime.Result {
	if p.deps.Enricher == nil {
		return runtime.Skip("disabled")
	}
	if err := p.deps.Enricher.EnrichVideo(ctx, st.video, st.chunks); err != nil {
		p.log.Warn("Enrichment failed; continuing", "video_id", st.video.ID.String(), "error", err.Error())
		return runtime.Skip("enrich_failed")
	}
	return runtime.OK()
}

// ---- finalize ----

func (p *Pipeline) stepFinalize(ctx context.Context, st *jobState) runtime.Result {
	videoID := st.video.ID.String()

	assets := []struct {
		kind  string
		label string
		key   string
	}{
		{types.AssetKindHLS, types.AssetLabel720p, gcp.HLSPlaylistKey(videoID, "720p")},
		{types.AssetKindHLS, types.AssetLabel480p, gcp.HLSPlaylistKey(videoID, "480p")},
		{types.AssetKindThumbnail, types.AssetLabelPoster, gcp.PosterKey(videoID)},
	}
	if st.captionsProduced {
		assets = append(assets, struct {
			kind  string
			label string
			key   string
		}{types.AssetKindCaptions, st.lang, gcp.CaptionsKey(videoID, st.lang)})
	}

	willBeReady := true
	for _, a := range assets {
		attrs, err := p.deps.Bucket.StatObject(ctx, a.key)
		if err != nil {
			return runtime.TransientErr(fmt.Errorf("stat %s: %w", a.key, err))
		}
		exists := attrs != nil
		if !exists && a.kind != types.AssetKindCaptions {
			willBeReady = false
		}
		if err := p.deps.Assets.Upsert(ctx, nil, &types.VideoAsset{
			VideoID:    st.video.ID,
			Kind:       a.kind,
			Label:      a.label,
			StorageKey: a.key,
			Ready:      exists,
		}); err != nil {
			return runtime.TransientErr(fmt.Errorf("upsert asset %s/%s: %w", a.kind, a.label, err))
		}
	}

	prevStatus := st.video.Status
	if willBeReady {
		if err := p.deps.Videos.UpdateStatus(ctx, nil, st.video.ID, types.VideoStatusReady); err != nil {
			return runtime.TransientErr(fmt.Errorf("mark ready: %w", err))
		}
		st.video.Status = types.VideoStatusReady
		p.publishStatus(ctx, st.video, types.VideoStatusReady)
		p.publish(ctx, st.video, sse.EventVideoReady, map[string]any{"video_id": videoID})

		if prevStatus != types.VideoStatusReady && st.video.NotifiedAt == nil {
			if p.deps.Queue != nil {
				if err := p.deps.Queue.Enqueue(ctx, redis.EmailQueue, redis.JobEnvelope{VideoID: videoID, Reason: "video_ready"}); err != nil {
					p.log.Warn("Ready-email enqueue failed", "video_id", videoID, "error", err.Error())
				}
			}
		}
	}

	p.reindexMetadata(ctx, st)
	return runtime.OK()
}

// ---- shared helpers ----

func (p *Pipeline) reindexMetadata(ctx context.Context, st *jobState) {
	if p.deps.Search == nil {
		return
	}
	videoID := st.video.ID.String()
	posterURL := p.deps.Bucket.ObjectURL(gcp.PosterKey(videoID))
	doc := search.BuildMetadataDoc(st.video, posterURL)
	if err := p.deps.Search.UpsertMetadata(ctx, videoID, doc); err != nil {
		p.log.Warn("Metadata reindex failed", "video_id", videoID, "error", err.Error())
	}
}

func (p *Pipeline) publishStatus(ctx context.Context, video *types.Video, status string) {
	data := map[string]any{"video_id": video.ID.String(), "status": status}
	p.publish(ctx, video, sse.EventVideoStatusChanged, data)
}

// publish fans the event out on both the video channel and the owner's
// user channel; failures are logged only.
func (p *Pipeline) publish(ctx context.Context, video *types.Video, event sse.Event, data any) {
	if p.deps.Bus == nil {
		return
	}
	channels := []string{sse.VideoChannel(video.ID), sse.UserChannel(video.UserID)}
	for _, ch := range channels {
		msg := sse.Message{Channel: ch, Event: event, Data: data}
		if err := p.deps.Bus.Publish(ctx, msg); err != nil {
			p.log.Warn("SSE publish failed", "channel", ch, "event", string(event), "error", err.Error())
		}
	}
}

// PublishFailed lets the worker announce a terminal failure using the same
// fan-out as the pipeline itself.
func (p *Pipeline) PublishFailed(ctx context.Context, video *types.Video, reason string) {
	p.publish(ctx, video, sse.EventVideoFailed, map[string]any{
		"video_id": video.ID.String(),
		"reason":   reason,
	})
}
