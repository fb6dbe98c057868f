package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nextai/nextai/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var (
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	ErrRefreshTokenReused   = errors.New("refresh token already used or revoked")
)

// consumeRefreshScript claims a refresh token in one step: it fails if the
// token or its family is revoked, otherwise it deletes the record and leaves
// a revoked marker for the rest of the token's lifetime.
var consumeRefreshScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[2]) == 1 or redis.call("EXISTS", KEYS[3]) == 1 then
	return {"revoked", ""}
end
local data = redis.call("GET", KEYS[1])
if not data then
	return {"missing", ""}
end
local ttl = redis.call("PTTL", KEYS[1])
redis.call("DEL", KEYS[1])
if ttl > 0 then
	redis.call("SET", KEYS[2], "1", "PX", ttl)
end
return {"ok", data}
`)

// RefreshTokenService tracks issued refresh tokens in Redis. Each token is
// also recorded in a per-family set so a whole rotation chain can be revoked.
type RefreshTokenService struct {
	client redis.UniversalClient
	logger *logrus.Logger
}

func NewRefreshTokenService(client redis.UniversalClient, logger *logrus.Logger) *RefreshTokenService {
	return &RefreshTokenService{
		client: client,
		logger: logger,
	}
}

func refreshTokenKey(jti string) string {
	return fmt.Sprintf("refresh_token:%s", jti)
}

func revokedTokenKey(jti string) string {
	return fmt.Sprintf("revoked_token:%s", jti)
}

func tokenFamilyKey(familyID string) string {
	return fmt.Sprintf("refresh_family:%s", familyID)
}

func revokedFamilyKey(familyID string) string {
	return fmt.Sprintf("revoked_family:%s", familyID)
}

func (s *RefreshTokenService) Store(ctx context.Context, jti, userID, email, familyID string, expiresAt time.Time) error {
	tokenData := models.RefreshTokenData{
		JTI:       jti,
		UserID:    userID,
		Email:     email,
		FamilyID:  familyID,
		CreatedAt: time.Now(),
		ExpiresAt: expiresAt,
		Revoked:   false,
	}

	dataJSON, err := json.Marshal(tokenData)
	if err != nil {
		return fmt.Errorf("failed to marshal token data: %w", err)
	}

	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return fmt.Errorf("refresh token already expired")
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, refreshTokenKey(jti), dataJSON, ttl)
		pipe.SAdd(ctx, tokenFamilyKey(familyID), jti)
		pipe.Expire(ctx, tokenFamilyKey(familyID), ttl)
		return nil
	})
	if err != nil {
		s.logger.WithError(err).Error("Failed to store refresh token")
		return fmt.Errorf("failed to store refresh token: %w", err)
	}

	return nil
}

func (s *RefreshTokenService) Get(ctx context.Context, jti string) (*models.RefreshTokenData, error) {
	dataJSON, err := s.client.Get(ctx, refreshTokenKey(jti)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrRefreshTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}

	var tokenData models.RefreshTokenData
	if err := json.Unmarshal([]byte(dataJSON), &tokenData); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token data: %w", err)
	}

	return &tokenData, nil
}

// Consume claims the token for a single rotation. A token that was already
// consumed or revoked yields ErrRefreshTokenReused.
func (s *RefreshTokenService) Consume(ctx context.Context, jti, familyID string) (*models.RefreshTokenData, error) {
	keys := []string{refreshTokenKey(jti), revokedTokenKey(jti), revokedFamilyKey(familyID)}
	res, err := consumeRefreshScript.Run(ctx, s.client, keys).StringSlice()
	if err != nil {
		return nil, fmt.Errorf("failed to consume refresh token: %w", err)
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("unexpected consume reply %v", res)
	}

	switch res[0] {
	case "revoked":
		return nil, ErrRefreshTokenReused
	case "missing":
		return nil, ErrRefreshTokenNotFound
	}

	var tokenData models.RefreshTokenData
	if err := json.Unmarshal([]byte(res[1]), &tokenData); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token data: %w", err)
	}
	return &tokenData, nil
}

func (s *RefreshTokenService) Revoke(ctx context.Context, jti string) error {
	tokenData, err := s.Get(ctx, jti)
	if err != nil {
		return err
	}

	tokenData.Revoked = true
	dataJSON, err := json.Marshal(tokenData)
	if err != nil {
		return fmt.Errorf("failed to marshal token data: %w", err)
	}

	ttl := time.Until(tokenData.ExpiresAt)
	if ttl <= 0 {
		return nil
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, refreshTokenKey(jti), dataJSON, ttl)
		pipe.Set(ctx, revokedTokenKey(jti), "1", ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}

	return nil
}

// RevokeFamily revokes every token issued in the rotation family, including
// tokens still being issued while it runs.
func (s *RefreshTokenService) RevokeFamily(ctx context.Context, familyID string) error {
	ttl, err := s.client.PTTL(ctx, tokenFamilyKey(familyID)).Result()
	if err != nil {
		return fmt.Errorf("failed to read token family ttl: %w", err)
	}
	// No live family set means nothing left to revoke.
	if ttl <= 0 {
		ttl = time.Minute
	}
	if err := s.client.Set(ctx, revokedFamilyKey(familyID), "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to mark token family revoked: %w", err)
	}

	members, err := s.client.SMembers(ctx, tokenFamilyKey(familyID)).Result()
	if err != nil {
		return fmt.Errorf("failed to list token family: %w", err)
	}

	for _, jti := range members {
		if err := s.Revoke(ctx, jti); err != nil && !errors.Is(err, ErrRefreshTokenNotFound) {
			return err
		}
	}

	return nil
}
