package speech

import (
	"context"
	"fmt"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/yungbote/streem-backend/internal/logger"
	"github.com/yungbote/streem-backend/internal/platform/ctxutil"
	"github.com/yungbote/streem-backend/internal/platform/gcp"
	"github.com/yungbote/streem-backend/internal/transcript"
)

// Client transcribes a mono 16kHz LINEAR16 WAV already sitting in object
// storage, via LongRunningRecognize on its gs:// URI.
type Client interface {
	TranscribeGCS(ctx context.Context, gcsURI string, lang string) ([]transcript.Segment, error)
	Close() error
}

type client struct {
	log        *logger.Logger
	speech     *speech.Client
	maxRetries int
}

func New(log *logger.Logger) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	c, err := speech.NewClient(context.Background(), gcp.ClientOptionsFromEnv()...)
	if err != nil {
		return nil, fmt.Errorf("speech client: %w", err)
	}
	return &client{
		log:        log.With("service", "SpeechClient"),
		speech:     c,
		maxRetries: 4,
	}, nil
}

func (s *client) Close() error {
	if s == nil || s.speech == nil {
		return nil
	}
	return s.speech.Close()
}

func (s *client) TranscribeGCS(ctx context.Context, gcsURI string, lang string) ([]transcript.Segment, error) {
	ctx = ctxutil.Default(ctx)
	ctx, cancel := context.WithTimeout(ctx, 30*time.Minute)
	defer cancel()

	if !strings.HasPrefix(gcsURI, "gs://") {
		return nil, fmt.Errorf("gcsURI must be gs://... got %q", gcsURI)
	}

	langCode := normalizeLang(lang)
	req := &speechpb.LongRunningRecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz:            16000,
			AudioChannelCount:          1,
			LanguageCode:               langCode,
			EnableAutomaticPunctuation: true,
			EnableWordTimeOffsets:      true,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Uri{Uri: gcsURI},
		},
	}

	resp, err := s.retryLR(ctx, func() (*speechpb.LongRunningRecognizeResponse, error) {
		op, err := s.speech.LongRunningRecognize(ctx, req)
		if err != nil {
			return nil, err
		}
		return op.Wait(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("speech longrunningrecognize: %w", err)
	}

	return segmentsFromResponse(resp), nil
}

// normalizeLang maps bare ISO codes to the BCP-47 codes the API wants.
func normalizeLang(lang string) string {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return "en-US"
	}
	if strings.Contains(lang, "-") {
		return lang
	}
	switch strings.ToLower(lang) {
	case "en":
		return "en-US"
	case "es":
		return "es-ES"
	case "fr":
		return "fr-FR"
	case "de":
		return "de-DE"
	default:
		return lang
	}
}

type timedWord struct {
	word  string
	start float64
	end   float64
}

// segmentsFromResponse flattens the word offsets and regroups them into
// caption-sized segments on a 10 second window.
func segmentsFromResponse(resp *speechpb.LongRunningRecognizeResponse) []transcript.Segment {
	if resp == nil || len(resp.Results) == 0 {
		return nil
	}

	var words []timedWord
	for _, r := range resp.Results {
		if r == nil || len(r.Alternatives) == 0 || r.Alternatives[0] == nil {
			continue
		}
		for _, w := range r.Alternatives[0].Words {
			if w == nil || strings.TrimSpace(w.Word) == "" {
				continue
			}
			words = append(words, timedWord{
				word:  strings.TrimSpace(w.Word),
				start: durToSec(w.StartTime),
				end:   durToSec(w.EndTime),
			})
		}
	}
	if len(words) == 0 {
		// No word offsets came back; fall back to one segment per result.
		var segs []transcript.Segment
		for _, r := range resp.Results {
			if r == nil || len(r.Alternatives) == 0 {
				continue
			}
			text := strings.TrimSpace(r.Alternatives[0].Transcript)
			if text == "" {
				continue
			}
			end := durToSec(r.ResultEndTime)
			segs = append(segs, transcript.Segment{Start: 0, End: end, Text: text})
		}
		return segs
	}

	return groupWords(words, 10.0)
}

func groupWords(words []timedWord, windowSec float64) []transcript.Segment {
	if windowSec <= 0 {
		windowSec = 10
	}
	var segs []transcript.Segment
	var buf strings.Builder
	curStart := words[0].start
	curEnd := words[0].end

	flush := func() {
		text := strings.TrimSpace(buf.String())
		if text != "" {
			segs = append(segs, transcript.Segment{Start: curStart, End: curEnd, Text: text})
		}
		buf.Reset()
	}

	for _, w := range words {
		if buf.Len() > 0 && (w.start-curStart) >= windowSec {
			flush()
			curStart = w.start
			curEnd = w.end
		}
		if buf.Len() > 0 {
			buf.WriteString(" ")
		}
		buf.WriteString(w.word)
		if w.end > curEnd {
			curEnd = w.end
		}
	}
	flush()
	return segs
}

func durToSec(d *durationpb.Duration) float64 {
	if d == nil {
		return 0
	}
	return float64(d.Seconds) + float64(d.Nanos)/1e9
}

func (s *client) retryLR(ctx context.Context, fn func() (*speechpb.LongRunningRecognizeResponse, error)) (*speechpb.LongRunningRecognizeResponse, error) {
	backoff := 750 * time.Millisecond
	var last error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		resp, err := fn()
		if err == nil {
			return resp, nil
		}
		last = err

		code := status.Code(err)
		if code != codes.Unavailable && code != codes.ResourceExhausted && code != codes.DeadlineExceeded {
			return nil, err
		}
		if attempt == s.maxRetries {
			break
		}
		s.log.Warn("Speech request retrying", "attempt", attempt+1, "error", err)
		time.Sleep(backoff)
		backoff *= 2
		if backoff > 10*time.Second {
			backoff = 10 * time.Second
		}
	}
	return nil, last
}
