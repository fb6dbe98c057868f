package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/nextai/nextai/internal/middleware"
	"github.com/nextai/nextai/internal/models"
	"github.com/nextai/nextai/internal/repository"
	"github.com/nextai/nextai/internal/service"
	"github.com/sirupsen/logrus"
)

type ChatHandlers struct {
	chats  *service.ChatService
	logger *logrus.Logger
}

func NewChatHandlers(chats *service.ChatService, logger *logrus.Logger) *ChatHandlers {
	return &ChatHandlers{
		chats:  chats,
		logger: logger,
	}
}

type ChatMessageRequest struct {
	ID     string `json:"id" validate:"max=64"`
	Text   string `json:"text" validate:"max=10000"`
	Sender string `json:"sender" validate:"required,oneof=user ai"`
}

type SaveMessagesRequest struct {
	Messages []ChatMessageRequest `json:"messages" validate:"max=500,dive"`
}

type RenameChatRequest struct {
	Title string `json:"title" validate:"required,max=100"`
}

type ChatListResponse struct {
	Chats []models.Chat `json:"chats"`
}

func toChatMessages(in []ChatMessageRequest) []models.ChatMessage {
	out := make([]models.ChatMessage, 0, len(in))
	for _, m := range in {
		out = append(out, models.ChatMessage{ID: m.ID, Text: m.Text, Sender: m.Sender})
	}
	return out
}

func (h *ChatHandlers) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token")
		return
	}

	chats, err := h.chats.List(r.Context(), claims.UserID)
	if err != nil {
		h.respondWithChatError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, ChatListResponse{Chats: chats})
}

func (h *ChatHandlers) Create(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token")
		return
	}

	var req SaveMessagesRequest
	if err := decodeRequest(r, &req); err != nil {
		respondWithRequestError(w, err)
		return
	}

	chat, err := h.chats.Create(r.Context(), claims.UserID, toChatMessages(req.Messages))
	if err != nil {
		h.respondWithChatError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, chat)
}

func (h *ChatHandlers) Get(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token")
		return
	}

	chat, err := h.chats.Get(r.Context(), claims.UserID, mux.Vars(r)["id"])
	if err != nil {
		h.respondWithChatError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, chat)
}

func (h *ChatHandlers) SaveMessages(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token")
		return
	}

	var req SaveMessagesRequest
	if err := decodeRequest(r, &req); err != nil {
		respondWithRequestError(w, err)
		return
	}

	chat, err := h.chats.SaveMessages(r.Context(), claims.UserID, mux.Vars(r)["id"], toChatMessages(req.Messages))
	if err != nil {
		h.respondWithChatError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, chat)
}

func (h *ChatHandlers) Rename(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token")
		return
	}

	var req RenameChatRequest
	if err := decodeRequest(r, &req); err != nil {
		respondWithRequestError(w, err)
		return
	}

	chat, err := h.chats.Rename(r.Context(), claims.UserID, mux.Vars(r)["id"], req.Title)
	if err != nil {
		h.respondWithChatError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, chat)
}

func (h *ChatHandlers) respondWithChatError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrChatNotFound):
		respondWithError(w, http.StatusNotFound, "CHAT_NOT_FOUND", "Chat not found")
	case errors.Is(err, service.ErrInvalidSender), errors.Is(err, service.ErrEmptyTitle):
		respondWithError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	default:
		h.logger.WithError(err).Error("Chat request failed")
		respondWithError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to process chat request")
	}
}
