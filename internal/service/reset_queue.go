package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nextai/nextai/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// ResetQueue carries password reset requests to the consumer that applies
// them. Producers LPUSH onto the queue; a consumer claims the oldest entry
// by moving it onto a processing list and acknowledges it by removing it
// from there, so a crash between claim and ack leaves the entry
// recoverable.
type ResetQueue struct {
	client        redis.UniversalClient
	key           string
	processingKey string
	logger        *logrus.Logger
}

// ClaimedRequest is an entry moved to the processing list.
type ClaimedRequest struct {
	Request models.PasswordResetRequest
	raw     string
}

func NewResetQueue(client redis.UniversalClient, key string, logger *logrus.Logger) *ResetQueue {
	return &ResetQueue{
		client:        client,
		key:           key,
		processingKey: key + ":processing",
		logger:        logger,
	}
}

func (q *ResetQueue) Enqueue(ctx context.Context, req models.PasswordResetRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal reset request: %w", err)
	}

	if err := q.client.LPush(ctx, q.key, data).Err(); err != nil {
		q.logger.WithError(err).Error("Failed to enqueue password reset request")
		return fmt.Errorf("failed to enqueue reset request: %w", err)
	}

	q.logger.WithField("request_id", req.ID).Info("Password reset request queued")
	return nil
}

// Claim returns nil when the queue is empty.
func (q *ResetQueue) Claim(ctx context.Context) (*ClaimedRequest, error) {
	raw, err := q.client.LMove(ctx, q.key, q.processingKey, "RIGHT", "LEFT").Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim reset request: %w", err)
	}

	var req models.PasswordResetRequest
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		// Unreadable entries would block the processing list forever.
		q.client.LRem(ctx, q.processingKey, 1, raw)
		return nil, fmt.Errorf("failed to unmarshal reset request: %w", err)
	}

	return &ClaimedRequest{Request: req, raw: raw}, nil
}

// Ack removes a processed entry.
func (q *ResetQueue) Ack(ctx context.Context, claimed *ClaimedRequest) error {
	if err := q.client.LRem(ctx, q.processingKey, 1, claimed.raw).Err(); err != nil {
		return fmt.Errorf("failed to acknowledge reset request: %w", err)
	}
	return nil
}

// Release puts a claimed entry back at the head of the queue.
func (q *ResetQueue) Release(ctx context.Context, claimed *ClaimedRequest) error {
	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, q.processingKey, 1, claimed.raw)
		pipe.RPush(ctx, q.key, claimed.raw)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to release reset request: %w", err)
	}
	return nil
}

// Recover returns entries left on the processing list by an earlier
// consumer to the queue.
func (q *ResetQueue) Recover(ctx context.Context) (int, error) {
	moved := 0
	for {
		_, err := q.client.LMove(ctx, q.processingKey, q.key, "LEFT", "RIGHT").Result()
		if errors.Is(err, redis.Nil) {
			return moved, nil
		}
		if err != nil {
			return moved, fmt.Errorf("failed to recover reset requests: %w", err)
		}
		moved++
	}
}

func (q *ResetQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}
