package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"image/color"
	"os"
	"strings"
	"time"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"

	"github.com/yungbote/streem-backend/internal/logger"
	"github.com/yungbote/streem-backend/internal/platform/gcp"
	"github.com/yungbote/streem-backend/internal/types"
)

const avatarSize = 512

// defaultPalette is used when AVATAR_COLORS_JSON_PATH is unset.
var defaultPalette = []color.NRGBA{
	{R: 0x3B, G: 0x82, B: 0xF6, A: 0xFF},
	{R: 0x8B, G: 0x5C, B: 0xF6, A: 0xFF},
	{R: 0xEC, G: 0x48, B: 0x99, A: 0xFF},
	{R: 0xEF, G: 0x44, B: 0x44, A: 0xFF},
	{R: 0xF5, G: 0x9E, B: 0x0B, A: 0xFF},
	{R: 0x10, G: 0xB9, B: 0x81, A: 0xFF},
	{R: 0x06, G: 0xB6, B: 0xD4, A: 0xFF},
	{R: 0x64, G: 0x74, B: 0x8B, A: 0xFF},
}

type AvatarService interface {
	// CreateDefaultAvatar renders the initials avatar, uploads it, and sets
	// user.AvatarURL. The old object, if any, is removed best-effort.
	CreateDefaultAvatar(ctx context.Context, user *types.User) error
	Render(user *types.User) (bytes.Buffer, error)
}

type avatarService struct {
	bucket   gcp.BucketService
	palette  []color.NRGBA
	fontFace font.Face
	log      *logger.Logger
}

func NewAvatarService(bucket gcp.BucketService, baseLog *logger.Logger) AvatarService {
	serviceLog := baseLog.With("service", "AvatarService")

	palette := defaultPalette
	if path := strings.TrimSpace(os.Getenv("AVATAR_COLORS_JSON_PATH")); path != "" {
		loaded, err := loadPalette(path)
		if err != nil {
			serviceLog.Warn("Avatar palette load failed; using built-in colors", "path", path, "error", err.Error())
		} else if len(loaded) > 0 {
			palette = loaded
		}
	}

	face := font.Face(basicfont.Face7x13)
	if path := strings.TrimSpace(os.Getenv("AVATAR_FONT")); path != "" {
		loaded, err := loadFontFace(path, 206)
		if err != nil {
			serviceLog.Warn("Avatar font load failed; using basic face", "path", path, "error", err.Error())
		} else {
			face = loaded
		}
	}

	return &avatarService{
		bucket:   bucket,
		palette:  palette,
		fontFace: face,
		log:      serviceLog,
	}
}

func (as *avatarService) CreateDefaultAvatar(ctx context.Context, user *types.User) error {
	buf, err := as.Render(user)
	if err != nil {
		return err
	}

	oldKey := avatarKeyFromURL(user.AvatarURL)
	newKey := gcp.AvatarKey(user.ID.String(), time.Now().UnixNano())
	if err := as.bucket.UploadObject(ctx, newKey, buf.Bytes(), "image/png"); err != nil {
		return fmt.Errorf("upload avatar: %w", err)
	}
	user.AvatarURL = as.bucket.ObjectURL(newKey)

	if oldKey != "" && oldKey != newKey {
		if err := as.bucket.DeleteObject(ctx, oldKey); err != nil {
			as.log.Warn("Old avatar delete failed", "key", oldKey, "error", err.Error())
		}
	}
	return nil
}

func (as *avatarService) Render(user *types.User) (bytes.Buffer, error) {
	var buf bytes.Buffer

	dc := gg.NewContext(avatarSize, avatarSize)
	dc.DrawCircle(float64(avatarSize)/2, float64(avatarSize)/2, float64(avatarSize)/2)
	dc.Clip()

	dc.SetColor(as.pickColor(user.ID.String()))
	dc.DrawRectangle(0, 0, float64(avatarSize), float64(avatarSize))
	dc.Fill()

	initials := computeInitials(user.DisplayName, user.Email)
	dc.SetFontFace(as.fontFace)
	tw, th := dc.MeasureString(initials)
	cx, cy := float64(avatarSize)/2, float64(avatarSize)/2
	dc.SetColor(color.White)
	dc.DrawString(initials, cx-tw/2, cy+th/2)

	if err := dc.EncodePNG(&buf); err != nil {
		return buf, fmt.Errorf("encode avatar png: %w", err)
	}
	return buf, nil
}

// pickColor hashes the user id so the same user always gets the same
// background.
func (as *avatarService) pickColor(userID string) color.NRGBA {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return as.palette[int(h.Sum32())%len(as.palette)]
}

func computeInitials(displayName, email string) string {
	name := strings.TrimSpace(displayName)
	if name == "" {
		// Fall back to the email local part.
		if i := strings.Index(email, "@"); i > 0 {
			name = email[:i]
		} else {
			name = email
		}
	}
	fields := strings.Fields(name)
	switch {
	case len(fields) >= 2:
		return strings.ToUpper(fields[0][:1] + fields[1][:1])
	case len(fields) == 1 && fields[0] != "":
		return strings.ToUpper(fields[0][:1])
	default:
		return "?"
	}
}

// avatarKeyFromURL recovers the object key from a previously stored URL.
func avatarKeyFromURL(url string) string {
	if i := strings.Index(url, "avatars/"); i >= 0 {
		key := url[i:]
		if j := strings.Index(key, "?"); j >= 0 {
			key = key[:j]
		}
		return key
	}
	return ""
}

func loadPalette(jsonPath string) ([]color.NRGBA, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("read palette: %w", err)
	}
	var colors []color.NRGBA
	if err := json.Unmarshal(data, &colors); err != nil {
		return nil, fmt.Errorf("parse palette: %w", err)
	}
	return colors, nil
}

func loadFontFace(fontPath string, size float64) (font.Face, error) {
	fontBytes, err := os.ReadFile(fontPath)
	if err != nil {
		return nil, fmt.Errorf("read font: %w", err)
	}
	parsedFont, err := truetype.Parse(fontBytes)
	if err != nil {
		return nil, fmt.Errorf("parse ttf: %w", err)
	}
	return truetype.NewFace(parsedFont, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	}), nil
}
