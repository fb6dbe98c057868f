package reset

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestSessionStore(t *testing.T) (*SessionStore, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewSessionStore(rdb, 30*time.Minute, 30*time.Second, newTestLogger()), mr
}

func TestSessionStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestSessionStore(t)

	session, err := store.Create(ctx)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if session.ID == "" || session.Step != StepEmailEntry {
		t.Fatalf("unexpected new session: %+v", session)
	}

	session.Step = StepCodeEntry
	session.Email = "alice@example.com"
	session.LastError = "Invalid verification code"
	if err := store.Save(ctx, session); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := store.Load(ctx, session.ID)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Step != StepCodeEntry || loaded.Email != "alice@example.com" || loaded.LastError != "Invalid verification code" {
		t.Fatalf("unexpected loaded session: %+v", loaded)
	}

	if ttl := mr.TTL(sessionKey(session.ID)); ttl != 30*time.Minute {
		t.Fatalf("expected 30m session TTL, got %v", ttl)
	}

	mr.FastForward(31 * time.Minute)
	if _, err := store.Load(ctx, session.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected expired session to be gone, got %v", err)
	}
}

func TestSessionStoreDeletesCompletedSessions(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestSessionStore(t)

	session, err := store.Create(ctx)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	session.Step = StepComplete
	if err := store.Save(ctx, session); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if _, err := store.Load(ctx, session.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected completed session to be removed, got %v", err)
	}
}

func TestSessionStoreLock(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestSessionStore(t)

	unlock, err := store.Lock(ctx, "s1")
	if err != nil {
		t.Fatalf("Lock failed: %v", err)
	}

	if _, err := store.Lock(ctx, "s1"); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy while locked, got %v", err)
	}

	otherUnlock, err := store.Lock(ctx, "s2")
	if err != nil {
		t.Fatalf("expected independent sessions to lock separately: %v", err)
	}
	otherUnlock()

	unlock()
	unlockAgain, err := store.Lock(ctx, "s1")
	if err != nil {
		t.Fatalf("expected lock to be free after unlock: %v", err)
	}

	// A holder whose lock lapsed must not release the next holder's lock.
	mr.FastForward(31 * time.Second)
	next, err := store.Lock(ctx, "s1")
	if err != nil {
		t.Fatalf("expected lapsed lock to be claimable: %v", err)
	}
	unlockAgain()
	if _, err := store.Lock(ctx, "s1"); !errors.Is(err, ErrBusy) {
		t.Fatalf("stale unlock released the current holder's lock: %v", err)
	}
	next()
}
