package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/yungbote/streem-backend/internal/logger"
	"github.com/yungbote/streem-backend/internal/platform/envutil"
	"github.com/yungbote/streem-backend/internal/repos"
	"github.com/yungbote/streem-backend/internal/types"
)

const (
	tokenUseAccess  = "access"
	tokenUseRefresh = "refresh"
)

type JWTClaims struct {
	TokenUse string `json:"token_use"`
	jwt.RegisteredClaims
}

// TokenPair is what every auth endpoint hands back.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

type AuthService interface {
	Register(ctx context.Context, email, password, displayName string) (*types.User, *TokenPair, error)
	Login(ctx context.Context, email, password string) (*types.User, *TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	ParseAccessToken(tokenString string) (uuid.UUID, error)
}

type authService struct {
	db            *gorm.DB
	userRepo      repos.UserRepo
	avatarService AvatarService
	jwtSecret     []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	log           *logger.Logger
}

func NewAuthService(
	db *gorm.DB,
	userRepo repos.UserRepo,
	avatarService AvatarService,
	baseLog *logger.Logger,
) AuthService {
	return &authService{
		db:            db,
		userRepo:      userRepo,
		avatarService: avatarService,
		jwtSecret:     []byte(envutil.String("JWT_SECRET", "dev-secret-change-me")),
		accessTTL:     time.Duration(envutil.Int("JWT_ACCESS_TTL_MINUTES", 15)) * time.Minute,
		refreshTTL:    time.Duration(envutil.Int("JWT_REFRESH_TTL_HOURS", 720)) * time.Hour,
		log:           baseLog.With("service", "AuthService"),
	}
}

func (as *authService) Register(ctx context.Context, email, password, displayName string) (*types.User, *TokenPair, error) {
	email = normalizeEmail(email)
	displayName = strings.TrimSpace(displayName)
	if err := validateCredentials(email, password); err != nil {
		return nil, nil, err
	}

	if existing, err := as.userRepo.GetByEmail(ctx, nil, email); err == nil && existing != nil {
		return nil, nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, fmt.Errorf("hash password: %w", err)
	}

	user := &types.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: string(hash),
		DisplayName:  displayName,
	}

	err = as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if as.avatarService != nil {
			if err := as.avatarService.CreateDefaultAvatar(ctx, user); err != nil {
				// The account is still usable without an avatar.
				as.log.Warn("Default avatar render failed", "user_id", user.ID.String(), "error", err.Error())
			}
		}
		return as.userRepo.Create(ctx, tx, user)
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create user: %w", err)
	}

	pair, err := as.issuePair(user.ID)
	if err != nil {
		return nil, nil, err
	}
	as.log.Info("User registered", "user_id", user.ID.String())
	return user, pair, nil
}

func (as *authService) Login(ctx context.Context, email, password string) (*types.User, *TokenPair, error) {
	email = normalizeEmail(email)
	user, err := as.userRepo.GetByEmail(ctx, nil, email)
	if err != nil {
		return nil, nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, ErrInvalidCredentials
	}
	pair, err := as.issuePair(user.ID)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

func (as *authService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	userID, err := as.parseToken(refreshToken, tokenUseRefresh)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	// The user may have been deleted since the token was minted.
	if _, err := as.userRepo.GetByID(ctx, nil, userID); err != nil {
		return nil, ErrInvalidCredentials
	}
	return as.issuePair(userID)
}

func (as *authService) ParseAccessToken(tokenString string) (uuid.UUID, error) {
	return as.parseToken(tokenString, tokenUseAccess)
}

func (as *authService) issuePair(userID uuid.UUID) (*TokenPair, error) {
	access, err := as.signToken(userID, tokenUseAccess, as.accessTTL)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := as.signToken(userID, tokenUseRefresh, as.refreshTTL)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(as.accessTTL.Seconds()),
	}, nil
}

func (as *authService) signToken(userID uuid.UUID, use string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		TokenUse: use,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(as.jwtSecret)
}

func (as *authService) parseToken(tokenString, wantUse string) (uuid.UUID, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return as.jwtSecret, nil
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse token: %w", err)
	}
	claims, ok := parsed.Claims.(*JWTClaims)
	if !ok || !parsed.Valid {
		return uuid.Nil, fmt.Errorf("invalid token")
	}
	if claims.TokenUse != wantUse {
		return uuid.Nil, fmt.Errorf("wrong token use: %s", claims.TokenUse)
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid subject: %w", err)
	}
	return userID, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateCredentials(email, password string) error {
	if email == "" || !strings.Contains(email, "@") {
		return fmt.Errorf("%w: email", ErrInvalidInput)
	}
	if len(password) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidInput)
	}
	return nil
}
