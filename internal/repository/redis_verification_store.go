package repository

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nextai/nextai/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const verifyMaxRetries = 4

// RedisVerificationStore keeps verification codes in Redis. Verify runs its
// checks and the used-flag write inside one WATCH/MULTI transaction.
type RedisVerificationStore struct {
	client    redis.UniversalClient
	expiry    time.Duration
	retention time.Duration
	logger    *logrus.Logger
	now       func() time.Time
}

func NewRedisVerificationStore(client redis.UniversalClient, expiry, retention time.Duration, logger *logrus.Logger) *RedisVerificationStore {
	return &RedisVerificationStore{
		client:    client,
		expiry:    expiry,
		retention: retention,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock replaces the time source.
func (s *RedisVerificationStore) WithClock(now func() time.Time) *RedisVerificationStore {
	s.now = now
	return s
}

func verificationRedisKey(email string) string {
	return fmt.Sprintf("reset_code:%s", models.NormalizeEmail(email))
}

func (s *RedisVerificationStore) Issue(ctx context.Context, email, code string) error {
	now := s.now()
	record := models.VerificationCode{
		Email:     models.NormalizeEmail(email),
		Code:      code,
		CreatedAt: now,
		ExpiresAt: now.Add(s.expiry),
		Used:      false,
	}

	dataJSON, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal verification code: %w", err)
	}

	// Keep the record past its deadline so late submissions read as expired.
	ttl := s.expiry + s.retention

	if err := s.client.Set(ctx, verificationRedisKey(email), dataJSON, ttl).Err(); err != nil {
		s.logger.WithError(err).Error("Failed to store verification code in Redis")
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return nil
}

func (s *RedisVerificationStore) Verify(ctx context.Context, email, code string) error {
	key := verificationRedisKey(email)

	for i := 0; i < verifyMaxRetries; i++ {
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					return ErrCodeNotFound
				}
				return err
			}

			var record models.VerificationCode
			if err := json.Unmarshal(data, &record); err != nil {
				return fmt.Errorf("failed to unmarshal verification code: %w", err)
			}

			if record.Used {
				return ErrCodeAlreadyUsed
			}
			if record.Expired(s.now()) {
				return ErrCodeExpired
			}
			if subtle.ConstantTimeCompare([]byte(record.Code), []byte(code)) != 1 {
				return ErrCodeMismatch
			}

			record.Used = true
			updated, err := json.Marshal(record)
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, updated, redis.KeepTTL)
				return nil
			})
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			switch {
			case errors.Is(err, ErrCodeNotFound),
				errors.Is(err, ErrCodeAlreadyUsed),
				errors.Is(err, ErrCodeExpired),
				errors.Is(err, ErrCodeMismatch):
				return err
			default:
				s.logger.WithError(err).Error("Failed to verify code in Redis")
				return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
			}
		}

		return nil
	}

	return fmt.Errorf("%w: too much contention on %s", ErrStoreUnavailable, key)
}
