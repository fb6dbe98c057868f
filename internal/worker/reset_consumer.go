// Package worker applies queued password reset requests.
package worker

import (
	"context"
	"time"

	"github.com/nextai/nextai/internal/identity"
	"github.com/nextai/nextai/internal/service"
	"github.com/sirupsen/logrus"
)

type PasswordUpdater interface {
	UpdatePasswordHash(ctx context.Context, email, passwordHash string) error
}

type ResetConsumer struct {
	queue    *service.ResetQueue
	updater  PasswordUpdater
	interval time.Duration
	logger   *logrus.Logger
}

func NewResetConsumer(queue *service.ResetQueue, updater PasswordUpdater, interval time.Duration, logger *logrus.Logger) *ResetConsumer {
	return &ResetConsumer{
		queue:    queue,
		updater:  updater,
		interval: interval,
		logger:   logger,
	}
}

// ProcessOnce applies the oldest queued request. It reports false when the
// queue was empty. Requests for accounts that no longer exist are dropped;
// any other failure puts the request back on the queue.
func (c *ResetConsumer) ProcessOnce(ctx context.Context) (bool, error) {
	claimed, err := c.queue.Claim(ctx)
	if err != nil {
		return false, err
	}
	if claimed == nil {
		return false, nil
	}

	entry := c.logger.WithFields(logrus.Fields{
		"request_id": claimed.Request.ID,
	})

	err = c.updater.UpdatePasswordHash(ctx, claimed.Request.Email, claimed.Request.PasswordHash)
	switch {
	case err == nil:
		entry.Info("Password reset applied")
	case identity.CodeOf(err) == identity.CodeUserNotFound:
		entry.Warn("Dropping password reset for unknown account")
	default:
		entry.WithError(err).Error("Failed to apply password reset")
		if rerr := c.queue.Release(ctx, claimed); rerr != nil {
			entry.WithError(rerr).Error("Failed to release password reset request")
		}
		return true, err
	}

	if err := c.queue.Ack(ctx, claimed); err != nil {
		entry.WithError(err).Error("Failed to acknowledge password reset request")
		return true, err
	}
	return true, nil
}

// Drain processes requests until the queue is empty or one fails.
func (c *ResetConsumer) Drain(ctx context.Context) (int, error) {
	processed := 0
	for {
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		ok, err := c.ProcessOnce(ctx)
		if err != nil {
			return processed, err
		}
		if !ok {
			return processed, nil
		}
		processed++
	}
}

// Run recovers abandoned claims, then polls the queue until ctx is done.
func (c *ResetConsumer) Run(ctx context.Context) {
	if moved, err := c.queue.Recover(ctx); err != nil {
		c.logger.WithError(err).Error("Failed to recover password reset requests")
	} else if moved > 0 {
		c.logger.WithField("count", moved).Info("Recovered password reset requests")
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.logger.Info("Password reset consumer started")
	for {
		if _, err := c.Drain(ctx); err != nil && ctx.Err() == nil {
			c.logger.WithError(err).Warn("Password reset consumer pass stopped early")
		}

		select {
		case <-ctx.Done():
			c.logger.Info("Password reset consumer stopped")
			return
		case <-ticker.C:
		}
	}
}
