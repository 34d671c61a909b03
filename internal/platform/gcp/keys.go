package gcp

import (
	"fmt"
	"strings"
)

// Object key layout for the media bucket. Everything about a video lives
// under one of four prefixes so deletes can sweep by prefix.

func RawKey(userID, videoID, ext string) string {
	ext = strings.TrimSpace(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return fmt.Sprintf("raw/%s/%s%s", userID, videoID, ext)
}

func HLSDir(videoID, label string) string {
	return fmt.Sprintf("hls/%s/%s", videoID, label)
}

func HLSPlaylistKey(videoID, label string) string {
	return HLSDir(videoID, label) + "/index.m3u8"
}

func HLSPrefix(videoID string) string { return fmt.Sprintf("hls/%s/", videoID) }

func PosterKey(videoID string) string {
	return fmt.Sprintf("thumbs/%s/poster.jpg", videoID)
}

func PosterPrefix(videoID string) string { return fmt.Sprintf("thumbs/%s/", videoID) }

func CaptionsKey(videoID, lang string) string {
	lang = strings.TrimSpace(strings.ToLower(lang))
	if lang == "" {
		lang = "en"
	}
	return fmt.Sprintf("captions/%s/%s.vtt", videoID, lang)
}

func CaptionsPrefix(videoID string) string { return fmt.Sprintf("captions/%s/", videoID) }

func AvatarKey(userID string, ts int64) string {
	return fmt.Sprintf("avatars/%s/%d.png", userID, ts)
}

func AvatarPrefix(userID string) string { return fmt.Sprintf("avatars/%s/", userID) }

// VideoPrefixes lists every storage prefix owned by a video, for full
// cleanup on delete.
func VideoPrefixes(userID, videoID string) []string {
	return []string{
		fmt.Sprintf("raw/%s/%s", userID, videoID),
		HLSPrefix(videoID),
		PosterPrefix(videoID),
		CaptionsPrefix(videoID),
	}
}

// ContentTypeForKey maps a key's extension to the content type set on
// upload. Unknown extensions fall back to application/octet-stream.
func ContentTypeForKey(key string) string {
	s := strings.ToLower(strings.TrimSpace(key))
	if i := strings.Index(s, "?"); i >= 0 {
		s = s[:i]
	}
	switch {
	case strings.HasSuffix(s, ".m3u8"):
		return "application/vnd.apple.mpegurl"
	case strings.HasSuffix(s, ".ts"):
		return "video/MP2T"
	case strings.HasSuffix(s, ".vtt"):
		return "text/vtt"
	case strings.HasSuffix(s, ".jpg"), strings.HasSuffix(s, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(s, ".png"):
		return "image/png"
	case strings.HasSuffix(s, ".webp"):
		return "image/webp"
	case strings.HasSuffix(s, ".gif"):
		return "image/gif"
	case strings.HasSuffix(s, ".mp4"), strings.HasSuffix(s, ".m4v"):
		return "video/mp4"
	case strings.HasSuffix(s, ".webm"):
		return "video/webm"
	case strings.HasSuffix(s, ".mov"):
		return "video/quicktime"
	case strings.HasSuffix(s, ".mkv"):
		return "video/x-matroska"
	case strings.HasSuffix(s, ".wav"):
		return "audio/wav"
	case strings.HasSuffix(s, ".json"):
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
