package models

import "time"

const (
	SenderUser = "user"
	SenderAI   = "ai"

	DefaultChatTitle = "New Chat"
)

type ChatMessage struct {
	ID        string    `json:"id" dynamodbav:"id"`
	Text      string    `json:"text" dynamodbav:"text"`
	Sender    string    `json:"sender" dynamodbav:"sender"`
	Timestamp time.Time `json:"timestamp" dynamodbav:"timestamp"`
}

type Chat struct {
	ID        string        `json:"id" dynamodbav:"chat_id"`
	UserID    string        `json:"user_id" dynamodbav:"user_id"`
	Title     string        `json:"title" dynamodbav:"title"`
	Messages  []ChatMessage `json:"messages" dynamodbav:"messages"`
	CreatedAt time.Time     `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt time.Time     `json:"updated_at" dynamodbav:"updated_at"`
}

func ChatSK(chatID string) string {
	return ChatSKPrefix + chatID
}

const ChatSKPrefix = "CHAT#"
