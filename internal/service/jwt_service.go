package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/nextai/nextai/internal/config"
	"github.com/nextai/nextai/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

var ErrInvalidToken = errors.New("invalid token")

type JWTService struct {
	secretKey     []byte
	accessExpiry  time.Duration
	refreshExpiry time.Duration
	logger        *logrus.Logger
	now           func() time.Time
}

func NewJWTService(cfg *config.JWTConfig, logger *logrus.Logger) (*JWTService, error) {
	secretKey := []byte(cfg.SecretKey)
	if len(secretKey) < 32 {
		return nil, fmt.Errorf("secret key must be at least 32 bytes")
	}

	return &JWTService{
		secretKey:     secretKey,
		accessExpiry:  cfg.AccessExpiry,
		refreshExpiry: cfg.RefreshExpiry,
		logger:        logger,
		now:           time.Now,
	}, nil
}

type Claims struct {
	UserID   string `json:"uid"`
	Email    string `json:"email"`
	Type     string `json:"type"`
	FamilyID string `json:"fam,omitempty"`
	jwt.RegisteredClaims
}

// IssuedTokens is a signed pair plus the refresh-token bookkeeping the
// caller must persist.
type IssuedTokens struct {
	Pair             *models.TokenPair
	RefreshJTI       string
	FamilyID         string
	RefreshExpiresAt time.Time
}

// IssueTokens signs an access/refresh pair. An empty familyID starts a new
// rotation family.
func (s *JWTService) IssueTokens(userID, email, familyID string) (*IssuedTokens, error) {
	now := s.now()
	if familyID == "" {
		familyID = uuid.New().String()
	}

	accessToken, _, err := s.sign(userID, email, TokenTypeAccess, "", now, s.accessExpiry)
	if err != nil {
		return nil, err
	}

	refreshToken, refreshJTI, err := s.sign(userID, email, TokenTypeRefresh, familyID, now, s.refreshExpiry)
	if err != nil {
		return nil, err
	}

	return &IssuedTokens{
		Pair: &models.TokenPair{
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
			TokenType:    models.AuthScheme,
			ExpiresIn:    int64(s.accessExpiry.Seconds()),
		},
		RefreshJTI:       refreshJTI,
		FamilyID:         familyID,
		RefreshExpiresAt: now.Add(s.refreshExpiry),
	}, nil
}

func (s *JWTService) sign(userID, email, tokenType, familyID string, now time.Time, ttl time.Duration) (string, string, error) {
	jti := uuid.New().String()
	claims := &Claims{
		UserID:   userID,
		Email:    email,
		Type:     tokenType,
		FamilyID: familyID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        jti,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secretKey)
	if err != nil {
		s.logger.WithError(err).Errorf("Failed to sign %s token", tokenType)
		return "", "", fmt.Errorf("failed to sign %s token: %w", tokenType, err)
	}
	return signed, jti, nil
}

func (s *JWTService) VerifyToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secretKey, nil
	}, jwt.WithTimeFunc(s.now))

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// VerifyTokenType verifies the token and checks its type claim.
func (s *JWTService) VerifyTokenType(tokenString, tokenType string) (*Claims, error) {
	claims, err := s.VerifyToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Type != tokenType {
		return nil, fmt.Errorf("%w: expected %s token", ErrInvalidToken, tokenType)
	}
	return claims, nil
}
