package gcp

import "testing"

func TestKeyLayout(t *testing.T) {
	if got := RawKey("u1", "v1", ".mp4"); got != "raw/u1/v1.mp4" {
		t.Fatalf("RawKey = %q", got)
	}
	if got := RawKey("u1", "v1", "mp4"); got != "raw/u1/v1.mp4" {
		t.Fatalf("RawKey without dot = %q", got)
	}
	if got := HLSPlaylistKey("v1", "720p"); got != "hls/v1/720p/index.m3u8" {
		t.Fatalf("HLSPlaylistKey = %q", got)
	}
	if got := PosterKey("v1"); got != "thumbs/v1/poster.jpg" {
		t.Fatalf("PosterKey = %q", got)
	}
	if got := CaptionsKey("v1", ""); got != "captions/v1/en.vtt" {
		t.Fatalf("CaptionsKey default lang = %q", got)
	}
	if got := CaptionsKey("v1", "ES"); got != "captions/v1/es.vtt" {
		t.Fatalf("CaptionsKey lowercases = %q", got)
	}
}

func TestVideoPrefixes(t *testing.T) {
	got := VideoPrefixes("u1", "v1")
	want := []string{"raw/u1/v1", "hls/v1/", "thumbs/v1/", "captions/v1/"}
	if len(got) != len(want) {
		t.Fatalf("prefixes = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("prefix[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestContentTypeForKey(t *testing.T) {
	cases := map[string]string{
		"hls/v1/720p/index.m3u8": "application/vnd.apple.mpegurl",
		"hls/v1/720p/seg_000.ts": "video/MP2T",
		"captions/v1/en.vtt":     "text/vtt",
		"thumbs/v1/poster.jpg":   "image/jpeg",
		"avatars/u1/1.png":       "image/png",
		"raw/u1/v1.mp4":          "video/mp4",
		"work/v1/audio.wav":      "audio/wav",
		"misc/blob":              "application/octet-stream",
	}
	for key, want := range cases {
		if got := ContentTypeForKey(key); got != want {
			t.Fatalf("ContentTypeForKey(%q) = %q, want %q", key, got, want)
		}
	}
}

func TestResolveObjectStorageConfigFromEnv(t *testing.T) {
	t.Setenv("STORAGE_MODE", "gcs_emulator")
	t.Setenv("STORAGE_EMULATOR_HOST", "http://fake-gcs:4443")
	cfg, err := ResolveObjectStorageConfigFromEnv()
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.Mode != ObjectStorageModeGCSEmulator || !cfg.IsEmulatorMode() {
		t.Fatalf("mode = %q", cfg.Mode)
	}

	t.Setenv("STORAGE_MODE", "bogus")
	if _, err := ResolveObjectStorageConfigFromEnv(); err == nil {
		t.Fatal("bogus mode should error")
	}

	t.Setenv("STORAGE_MODE", "gcs_emulator")
	t.Setenv("STORAGE_EMULATOR_HOST", "")
	if _, err := ResolveObjectStorageConfigFromEnv(); err == nil {
		t.Fatal("emulator mode without host should error")
	}
}
