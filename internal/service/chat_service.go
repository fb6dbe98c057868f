package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nextai/nextai/internal/models"
	"github.com/nextai/nextai/internal/repository"
	"github.com/sirupsen/logrus"
)

const maxTitleLength = 50

var (
	ErrInvalidSender = errors.New("message sender must be user or ai")
	ErrEmptyTitle    = errors.New("chat title must not be empty")
)

type ChatService struct {
	chats     *repository.ChatRepository
	listLimit int
	logger    *logrus.Logger
	now       func() time.Time
}

func NewChatService(chats *repository.ChatRepository, listLimit int, logger *logrus.Logger) *ChatService {
	return &ChatService{
		chats:     chats,
		listLimit: listLimit,
		logger:    logger,
		now:       time.Now,
	}
}

// ChatTitle derives a title from the first user message.
func ChatTitle(messages []models.ChatMessage) string {
	for _, m := range messages {
		if m.Sender != models.SenderUser {
			continue
		}
		text := strings.TrimSpace(m.Text)
		if text == "" {
			continue
		}
		runes := []rune(text)
		if len(runes) > maxTitleLength {
			return string(runes[:maxTitleLength])
		}
		return text
	}
	return models.DefaultChatTitle
}

func (s *ChatService) List(ctx context.Context, userID string) ([]models.Chat, error) {
	chats, err := s.chats.List(ctx, userID, s.listLimit)
	if err != nil {
		return nil, err
	}
	if chats == nil {
		chats = []models.Chat{}
	}
	return chats, nil
}

func (s *ChatService) Get(ctx context.Context, userID, chatID string) (*models.Chat, error) {
	return s.chats.Get(ctx, userID, chatID)
}

// Create starts a chat holding messages. The title is derived from them.
func (s *ChatService) Create(ctx context.Context, userID string, messages []models.ChatMessage) (*models.Chat, error) {
	messages, err := s.normalize(messages)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	chat := &models.Chat{
		ID:        uuid.New().String(),
		UserID:    userID,
		Title:     ChatTitle(messages),
		Messages:  messages,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.chats.Create(ctx, chat); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"user_id": userID,
		"chat_id": chat.ID,
	}).Info("Chat created")
	return chat, nil
}

// SaveMessages replaces the chat's messages. Saving the same messages twice
// leaves the chat unchanged apart from its update time.
func (s *ChatService) SaveMessages(ctx context.Context, userID, chatID string, messages []models.ChatMessage) (*models.Chat, error) {
	messages, err := s.normalize(messages)
	if err != nil {
		return nil, err
	}

	if err := s.chats.SaveMessages(ctx, userID, chatID, messages, s.now()); err != nil {
		return nil, err
	}
	return s.chats.Get(ctx, userID, chatID)
}

func (s *ChatService) Rename(ctx context.Context, userID, chatID, title string) (*models.Chat, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrEmptyTitle
	}

	if err := s.chats.UpdateTitle(ctx, userID, chatID, title, s.now()); err != nil {
		return nil, err
	}
	return s.chats.Get(ctx, userID, chatID)
}

func (s *ChatService) normalize(messages []models.ChatMessage) ([]models.ChatMessage, error) {
	out := make([]models.ChatMessage, 0, len(messages))
	now := s.now().UTC()
	for _, m := range messages {
		if m.Sender != models.SenderUser && m.Sender != models.SenderAI {
			return nil, ErrInvalidSender
		}
		if m.ID == "" {
			m.ID = uuid.New().String()
		}
		if m.Timestamp.IsZero() {
			m.Timestamp = now
		}
		out = append(out, m)
	}
	return out, nil
}
