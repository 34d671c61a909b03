package services

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/streem-backend/internal/logger"
	"github.com/yungbote/streem-backend/internal/search"
)

func TestAuthTokenRoundtrip(t *testing.T) {
	as := &authService{
		jwtSecret:  []byte("test-secret"),
		accessTTL:  15 * time.Minute,
		refreshTTL: 720 * time.Hour,
		log:        logger.NewNop(),
	}
	userID := uuid.New()
	pair, err := as.issuePair(userID)
	if err != nil {
		t.Fatalf("issuePair: %v", err)
	}
	if pair.ExpiresIn != int64((15 * time.Minute).Seconds()) {
		t.Fatalf("ExpiresIn = %d, want 900", pair.ExpiresIn)
	}

	got, err := as.ParseAccessToken(pair.AccessToken)
	if err != nil {
		t.Fatalf("parse access: %v", err)
	}
	if got != userID {
		t.Fatalf("subject = %s, want %s", got, userID)
	}

	// A refresh token must not pass as an access token.
	if _, err := as.ParseAccessToken(pair.RefreshToken); err == nil {
		t.Fatal("refresh token accepted as access token")
	}
	if _, err := as.parseToken(pair.RefreshToken, tokenUseRefresh); err != nil {
		t.Fatalf("parse refresh: %v", err)
	}
}

func TestAuthRejectsForeignSignature(t *testing.T) {
	signer := &authService{jwtSecret: []byte("one"), accessTTL: time.Minute, refreshTTL: time.Hour, log: logger.NewNop()}
	verifier := &authService{jwtSecret: []byte("two"), accessTTL: time.Minute, refreshTTL: time.Hour, log: logger.NewNop()}
	pair, err := signer.issuePair(uuid.New())
	if err != nil {
		t.Fatalf("issuePair: %v", err)
	}
	if _, err := verifier.ParseAccessToken(pair.AccessToken); err == nil {
		t.Fatal("token with wrong signature accepted")
	}
}

func TestValidateCredentials(t *testing.T) {
	if err := validateCredentials("user@example.com", "longenough"); err != nil {
		t.Fatalf("valid credentials rejected: %v", err)
	}
	if err := validateCredentials("not-an-email", "longenough"); err == nil {
		t.Fatal("bad email accepted")
	}
	if err := validateCredentials("user@example.com", "short"); err == nil {
		t.Fatal("short password accepted")
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := normalizeEmail("  User@Example.COM "); got != "user@example.com" {
		t.Fatalf("normalizeEmail = %q", got)
	}
}

func TestComputeInitials(t *testing.T) {
	tests := []struct {
		displayName, email, want string
	}{
		{"Ada Lovelace", "", "AL"},
		{"ada", "", "A"},
		{"", "grace.hopper@example.com", "G"},
		{"", "", "?"},
	}
	for _, tt := range tests {
		if got := computeInitials(tt.displayName, tt.email); got != tt.want {
			t.Errorf("computeInitials(%q, %q) = %q, want %q", tt.displayName, tt.email, got, tt.want)
		}
	}
}

func TestAvatarColorDeterministic(t *testing.T) {
	as := &avatarService{palette: defaultPalette, log: logger.NewNop()}
	id := uuid.New().String()
	if as.pickColor(id) != as.pickColor(id) {
		t.Fatal("same user id produced different colors")
	}
}

func TestAvatarKeyFromURL(t *testing.T) {
	url := "https://storage.googleapis.com/media/avatars/u1/12345.png"
	if got := avatarKeyFromURL(url); got != "avatars/u1/12345.png" {
		t.Fatalf("avatarKeyFromURL = %q", got)
	}
	if got := avatarKeyFromURL(""); got != "" {
		t.Fatalf("empty url key = %q", got)
	}
}

func TestGroupTranscriptHitsKeepsEarliest(t *testing.T) {
	hits := []search.Hit{
		{ID: "v1_1_9000", Source: map[string]any{"video_id": "v1", "start_seconds": 9.0, "text": "later"}},
		{ID: "v1_0_2000", Source: map[string]any{"video_id": "v1", "start_seconds": 2.0, "text": "earlier"},
			Highlight: map[string][]string{"text": {"<em>earlier</em>"}}},
		{ID: "v2_0_0", Source: map[string]any{"video_id": "v2", "start_seconds": 0.0, "text": "other"}},
	}
	got := groupTranscriptHits(hits)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].VideoID != "v1" || got[0].StartSeconds != 2.0 || got[0].Text != "earlier" {
		t.Fatalf("v1 match = %+v, want earliest", got[0])
	}
	if got[0].Snippet != "<em>earlier</em>" {
		t.Fatalf("snippet = %q", got[0].Snippet)
	}
}
