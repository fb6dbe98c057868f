package service

import (
	"context"
	"testing"
	"time"

	"github.com/nextai/nextai/internal/models"
)

func newResetRequest(id, email string) models.PasswordResetRequest {
	return models.PasswordResetRequest{
		ID:           id,
		Email:        email,
		PasswordHash: "$2a$04$abcdefghijklmnopqrstuuGk1xN1b9A7m9dXb0mRrjC0WcKQeQ6a2",
		RequestedAt:  time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestResetQueueClaimAckInOrder(t *testing.T) {
	ctx := context.Background()
	_, rdb := newTestRedis(t)
	q := NewResetQueue(rdb, "password_reset:requests", newTestLogger())

	if err := q.Enqueue(ctx, newResetRequest("r1", "a@example.com")); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if err := q.Enqueue(ctx, newResetRequest("r2", "b@example.com")); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	first, err := q.Claim(ctx)
	if err != nil || first == nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if first.Request.ID != "r1" {
		t.Fatalf("expected oldest request first, got %q", first.Request.ID)
	}

	if n, _ := rdb.LLen(ctx, "password_reset:requests:processing").Result(); n != 1 {
		t.Fatalf("expected claimed entry on processing list, got %d", n)
	}

	if err := q.Ack(ctx, first); err != nil {
		t.Fatalf("Ack failed: %v", err)
	}
	if n, _ := rdb.LLen(ctx, "password_reset:requests:processing").Result(); n != 0 {
		t.Fatalf("expected processing list empty after ack, got %d", n)
	}

	second, err := q.Claim(ctx)
	if err != nil || second == nil || second.Request.ID != "r2" {
		t.Fatalf("expected r2, got %+v (%v)", second, err)
	}
	if err := q.Ack(ctx, second); err != nil {
		t.Fatalf("Ack failed: %v", err)
	}

	empty, err := q.Claim(ctx)
	if err != nil || empty != nil {
		t.Fatalf("expected empty queue, got %+v (%v)", empty, err)
	}
}

func TestResetQueueReleaseAndRecover(t *testing.T) {
	ctx := context.Background()
	_, rdb := newTestRedis(t)
	q := NewResetQueue(rdb, "resets", newTestLogger())

	for _, id := range []string{"r1", "r2", "r3"} {
		if err := q.Enqueue(ctx, newResetRequest(id, id+"@example.com")); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}

	claimed, err := q.Claim(ctx)
	if err != nil || claimed == nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if err := q.Release(ctx, claimed); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	again, err := q.Claim(ctx)
	if err != nil || again == nil || again.Request.ID != "r1" {
		t.Fatalf("expected released r1 to be claimed next, got %+v (%v)", again, err)
	}
	if _, err := q.Claim(ctx); err != nil {
		t.Fatalf("Claim failed: %v", err)
	}

	// Two entries are stranded on the processing list.
	moved, err := q.Recover(ctx)
	if err != nil {
		t.Fatalf("Recover failed: %v", err)
	}
	if moved != 2 {
		t.Fatalf("expected 2 recovered entries, got %d", moved)
	}

	var order []string
	for {
		c, err := q.Claim(ctx)
		if err != nil {
			t.Fatalf("Claim failed: %v", err)
		}
		if c == nil {
			break
		}
		order = append(order, c.Request.ID)
		if err := q.Ack(ctx, c); err != nil {
			t.Fatalf("Ack failed: %v", err)
		}
	}

	want := []string{"r1", "r2", "r3"}
	if len(order) != len(want) {
		t.Fatalf("expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, order)
		}
	}
}

func TestResetQueueDropsUnreadableEntries(t *testing.T) {
	ctx := context.Background()
	_, rdb := newTestRedis(t)
	q := NewResetQueue(rdb, "resets", newTestLogger())

	if err := rdb.LPush(ctx, "resets", "not json").Err(); err != nil {
		t.Fatalf("LPush failed: %v", err)
	}

	if _, err := q.Claim(ctx); err == nil {
		t.Fatal("expected unmarshal error")
	}
	if n, _ := rdb.LLen(ctx, "resets:processing").Result(); n != 0 {
		t.Fatalf("expected unreadable entry removed, got %d", n)
	}
}
