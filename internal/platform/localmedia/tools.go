package localmedia

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/yungbote/streem-backend/internal/logger"
	"github.com/yungbote/streem-backend/internal/platform/ctxutil"
	"github.com/yungbote/streem-backend/internal/platform/envutil"
	"github.com/yungbote/streem-backend/internal/transcript"
)

// Tools is the glue around the system binaries the pipeline worker needs:
// ffprobe, ffmpeg and (optionally) a whisper CLI. Synchronous and
// deterministic; call from worker jobs, not request handlers.
type Tools interface {
	AssertReady(ctx context.Context) error

	Probe(ctx context.Context, inputPath string) (*ProbeResult, error)
	TranscodeHLS(ctx context.Context, inputPath string, outDir string, opts HLSOptions) error
	ExtractPoster(ctx context.Context, inputPath string, outPath string, offsetSeconds float64) error
	ExtractAudio(ctx context.Context, inputPath string, outPath string) error
	WhisperTranscribe(ctx context.Context, wavPath string, outDir string, lang string) ([]transcript.Segment, error)
}

type HLSOptions struct {
	Height         int
	CRF            int
	AudioBitrate   string // e.g. "128k"
	GOP            int
	SegmentSeconds int
	Timeout        time.Duration
}

// ProbeResult carries the raw ffprobe JSON plus the fields the pipeline
// derives from it.
type ProbeResult struct {
	Raw             json.RawMessage
	DurationSeconds *float64
	FPS             float64 // 0 when no video stream reported a usable rate
	GOP             int
}

type tools struct {
	log *logger.Logger

	ffmpegPath  string
	ffprobePath string
	whisperPath string
}

func New(log *logger.Logger) Tools {
	return &tools{
		log:         log.With("service", "MediaTools"),
		ffmpegPath:  envutil.String("FFMPEG_BIN", "ffmpeg"),
		ffprobePath: envutil.String("FFPROBE_BIN", "ffprobe"),
		whisperPath: envutil.String("WHISPER_BIN", "whisper"),
	}
}

func (m *tools) AssertReady(ctx context.Context) error {
	for _, bin := range []string{m.ffmpegPath, m.ffprobePath} {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("missing required binary %q in PATH: %w", bin, err)
		}
	}
	return nil
}

// ---- probe ----

type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeStream struct {
	CodecType    string `json:"codec_type"`
	AvgFrameRate string `json:"avg_frame_rate"`
	RFrameRate   string `json:"r_frame_rate"`
}

func (m *tools) Probe(ctx context.Context, inputPath string) (*ProbeResult, error) {
	ctx = ctxutil.Default(ctx)
	timeout := time.Duration(envutil.Int("FFPROBE_TIMEOUT_SECONDS", 30)) * time.Second
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, m.ffprobePath,
		"-v", "error",
		"-show_format",
		"-show_streams",
		"-of", "json",
		inputPath,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w; out=%s", err, strings.TrimSpace(string(out)))
	}

	var parsed ffprobeOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}

	res := &ProbeResult{Raw: json.RawMessage(out)}
	if d := strings.TrimSpace(parsed.Format.Duration); d != "" {
		if dur, err := strconv.ParseFloat(d, 64); err == nil && dur > 0 {
			res.DurationSeconds = &dur
		}
	}
	res.FPS = fpsFromStreams(parsed.Streams)
	res.GOP = GOPFromFPS(res.FPS)
	return res, nil
}

// fpsFromStreams reads the frame rate off the first video stream, trying
// avg_frame_rate before r_frame_rate. Returns 0 when neither parses.
func fpsFromStreams(streams []ffprobeStream) float64 {
	for _, s := range streams {
		if s.CodecType != "video" {
			continue
		}
		for _, rate := range []string{s.AvgFrameRate, s.RFrameRate} {
			if fps, ok := parseRational(rate); ok {
				return fps
			}
		}
		return 0
	}
	return 0
}

// parseRational parses ffprobe's "N/D" rate strings; D must be positive.
func parseRational(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	parts := strings.SplitN(raw, "/", 2)
	if len(parts) == 1 {
		f, err := strconv.ParseFloat(parts[0], 64)
		return f, err == nil && f > 0
	}
	num, err1 := strconv.ParseFloat(parts[0], 64)
	den, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || den <= 0 || num <= 0 {
		return 0, false
	}
	return num / den, true
}

// GOPFromFPS sizes the keyframe interval at two seconds of frames,
// clamped to [24, 240]. Unknown fps falls back to 30, so GOP 60.
func GOPFromFPS(fps float64) int {
	if fps <= 0 {
		fps = 30.0
	}
	gop := int(math.Round(fps * 2))
	if gop < 24 {
		gop = 24
	}
	if gop > 240 {
		gop = 240
	}
	return gop
}

// ---- transcode ----

func (m *tools) TranscodeHLS(ctx context.Context, inputPath string, outDir string, opts HLSOptions) error {
	ctx = ctxutil.Default(ctx)
	if opts.Height <= 0 {
		return fmt.Errorf("hls height required")
	}
	if opts.GOP <= 0 {
		opts.GOP = 60
	}
	if opts.SegmentSeconds <= 0 {
		opts.SegmentSeconds = 4
	}
	if opts.AudioBitrate == "" {
		opts.AudioBitrate = "128k"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Minute
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("mkdir outDir: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	gop := strconv.Itoa(opts.GOP)
	cmd := exec.CommandContext(ctx, m.ffmpegPath,
		"-y",
		"-i", inputPath,
		"-vf", fmt.Sprintf("scale=-2:%d", opts.Height),
		"-c:v", "h264",
		"-profile:v", "main",
		"-crf", strconv.Itoa(opts.CRF),
		"-preset", "veryfast",
		"-g", gop,
		"-keyint_min", gop,
		"-sc_threshold", "0",
		"-c:a", "aac",
		"-b:a", opts.AudioBitrate,
		"-hls_time", strconv.Itoa(opts.SegmentSeconds),
		"-hls_playlist_type", "vod",
		"-hls_segment_filename", filepath.Join(outDir, "seg_%03d.ts"),
		filepath.Join(outDir, "index.m3u8"),
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg hls %dp failed: %w; out=%s", opts.Height, err, tail(string(out), 4000))
	}
	return nil
}

func (m *tools) ExtractPoster(ctx context.Context, inputPath string, outPath string, offsetSeconds float64) error {
	ctx = ctxutil.Default(ctx)
	timeout := time.Duration(envutil.Int("THUMBNAIL_TIMEOUT_SECONDS", 30)) * time.Second
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if offsetSeconds < 0 {
		offsetSeconds = 0
	}
	cmd := exec.CommandContext(ctx, m.ffmpegPath,
		"-y",
		"-ss", transcript.FormatTimestamp(offsetSeconds),
		"-i", inputPath,
		"-frames:v", "1",
		"-q:v", "2",
		outPath,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg poster failed: %w; out=%s", err, tail(string(out), 4000))
	}
	return nil
}

// ExtractAudio produces the mono 16kHz WAV the transcription engines want.
func (m *tools) ExtractAudio(ctx context.Context, inputPath string, outPath string) error {
	ctx = ctxutil.Default(ctx)
	timeout := time.Duration(envutil.Int("AUDIO_EXTRACT_TIMEOUT_SECONDS", 600)) * time.Second
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, m.ffmpegPath,
		"-y",
		"-i", inputPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		outPath,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg audio extract failed: %w; out=%s", err, tail(string(out), 4000))
	}
	return nil
}

// ---- whisper ----

type whisperOutput struct {
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

// WhisperTranscribe shells out to the whisper CLI and reads its JSON
// output file from outDir.
func (m *tools) WhisperTranscribe(ctx context.Context, wavPath string, outDir string, lang string) ([]transcript.Segment, error) {
	ctx = ctxutil.Default(ctx)
	if _, err := exec.LookPath(m.whisperPath); err != nil {
		return nil, fmt.Errorf("whisper binary %q not found in PATH: %w", m.whisperPath, err)
	}
	timeout := time.Duration(envutil.Int("WHISPER_TIMEOUT_SECONDS", 1800)) * time.Second
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir outDir: %w", err)
	}

	args := []string{
		wavPath,
		"--model", envutil.String("WHISPER_MODEL", "base"),
		"--output_format", "json",
		"--output_dir", outDir,
	}
	if lang = strings.TrimSpace(lang); lang != "" {
		args = append(args, "--language", lang)
	}

	cmd := exec.CommandContext(ctx, m.whisperPath, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("whisper failed: %w; out=%s", err, tail(string(out), 4000))
	}

	base := strings.TrimSuffix(filepath.Base(wavPath), filepath.Ext(wavPath))
	jsonPath := filepath.Join(outDir, base+".json")
	raw, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("read whisper output %s: %w", jsonPath, err)
	}

	var parsed whisperOutput
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse whisper output: %w", err)
	}

	segments := make([]transcript.Segment, 0, len(parsed.Segments))
	for _, s := range parsed.Segments {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		segments = append(segments, transcript.Segment{Start: s.Start, End: s.End, Text: text})
	}
	return segments, nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
