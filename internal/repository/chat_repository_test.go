package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nextai/nextai/internal/dynamotest"
	"github.com/nextai/nextai/internal/models"
)

func TestChatRepositoryLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewChatRepository(dynamotest.New(), testTable, newTestLogger())
	base := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

	for i, id := range []string{"c1", "c2", "c3"} {
		chat := &models.Chat{
			ID:        id,
			UserID:    "u-1",
			Title:     "Chat " + id,
			CreatedAt: base,
			UpdatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := repo.Create(ctx, chat); err != nil {
			t.Fatalf("Create %s failed: %v", id, err)
		}
	}
	if err := repo.Create(ctx, &models.Chat{ID: "other", UserID: "u-2", Title: "x"}); err != nil {
		t.Fatalf("Create other failed: %v", err)
	}

	messages := []models.ChatMessage{
		{ID: "m1", Text: "hello", Sender: models.SenderUser, Timestamp: base},
		{ID: "m2", Text: "hi there", Sender: models.SenderAI, Timestamp: base.Add(time.Second)},
	}
	if err := repo.SaveMessages(ctx, "u-1", "c1", messages, base.Add(time.Hour)); err != nil {
		t.Fatalf("SaveMessages failed: %v", err)
	}

	chats, err := repo.List(ctx, "u-1", 2)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(chats) != 2 {
		t.Fatalf("expected 2 chats, got %d", len(chats))
	}
	if chats[0].ID != "c1" || chats[1].ID != "c3" {
		t.Fatalf("expected most recently updated first, got %s, %s", chats[0].ID, chats[1].ID)
	}

	got, err := repo.Get(ctx, "u-1", "c1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(got.Messages) != 2 || got.Messages[1].Sender != models.SenderAI {
		t.Fatalf("unexpected messages: %+v", got.Messages)
	}

	if err := repo.UpdateTitle(ctx, "u-1", "c2", "Renamed", base.Add(2*time.Hour)); err != nil {
		t.Fatalf("UpdateTitle failed: %v", err)
	}
	got, err = repo.Get(ctx, "u-1", "c2")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Title != "Renamed" {
		t.Fatalf("expected renamed title, got %q", got.Title)
	}
}

func TestChatRepositoryNotFound(t *testing.T) {
	ctx := context.Background()
	repo := NewChatRepository(dynamotest.New(), testTable, newTestLogger())

	if _, err := repo.Get(ctx, "u-1", "missing"); !errors.Is(err, ErrChatNotFound) {
		t.Fatalf("expected ErrChatNotFound, got %v", err)
	}
	if err := repo.SaveMessages(ctx, "u-1", "missing", nil, time.Now()); !errors.Is(err, ErrChatNotFound) {
		t.Fatalf("expected ErrChatNotFound on save, got %v", err)
	}
	if err := repo.UpdateTitle(ctx, "u-1", "missing", "t", time.Now()); !errors.Is(err, ErrChatNotFound) {
		t.Fatalf("expected ErrChatNotFound on rename, got %v", err)
	}
}

func TestProfileRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewProfileRepository(dynamotest.New(), testTable, newTestLogger())

	if _, err := repo.GetProfile(ctx, "u-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	profile := &models.UserProfile{UserID: "u-1", FullName: "Alice Doe", Email: "alice@example.com", DateOfBirth: "1990-01-02"}
	if err := repo.SaveProfile(ctx, profile); err != nil {
		t.Fatalf("SaveProfile failed: %v", err)
	}
	got, err := repo.GetProfile(ctx, "u-1")
	if err != nil {
		t.Fatalf("GetProfile failed: %v", err)
	}
	if got.FullName != "Alice Doe" || got.DateOfBirth != "1990-01-02" {
		t.Fatalf("unexpected profile: %+v", got)
	}

	if err := repo.SaveFinancial(ctx, "u-1", &models.FinancialData{CreditScore: 720, AnnualIncome: 90000, DebtToIncomeRatio: 20}); err != nil {
		t.Fatalf("SaveFinancial failed: %v", err)
	}
	fin, err := repo.GetFinancial(ctx, "u-1")
	if err != nil {
		t.Fatalf("GetFinancial failed: %v", err)
	}
	if fin.CreditScore != 720 || fin.AnnualIncome != 90000 || fin.DebtToIncomeRatio != 20 {
		t.Fatalf("unexpected financial data: %+v", fin)
	}
}
