package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/foodshare/internal/auth"
	"github.com/sakif/foodshare/internal/service"
)

type ChatHandler struct {
	chats  *service.ChatService
	logger *slog.Logger
}

func NewChatHandler(chats *service.ChatService, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{chats: chats, logger: logger}
}

// HandleGetOrCreate handles GET /api/chat/{postId}.
func (h *ChatHandler) HandleGetOrCreate(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	chat, err := h.chats.GetOrCreate(r.Context(), chi.URLParam(r, "postId"), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chat)
}

type sendMessageRequest struct {
	ChatID  string `json:"chatId"`
	Content string `json:"content"`
}

// HandleSendMessage handles POST /api/chat/message.
func (h *ChatHandler) HandleSendMessage(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req sendMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.Warn("invalid request body", slog.String("path", r.URL.Path))
		writeError(w, err)
		return
	}

	msg, err := h.chats.AppendMessage(r.Context(), req.ChatID, userID, req.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}
