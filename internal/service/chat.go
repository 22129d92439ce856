// Package service holds the business rules of the marketplace.
//
// Handlers parse HTTP and call in here; services validate, enforce who may do
// what, and talk to storage through the repository interfaces. Nothing in
// this package knows about HTTP: failures are apperror values that the
// handler layer maps to status codes.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/foodshare/internal/apperror"
	"github.com/sakif/foodshare/internal/events"
	"github.com/sakif/foodshare/internal/lock"
	"github.com/sakif/foodshare/internal/model"
	"github.com/sakif/foodshare/internal/repository"
)

const (
	// lockWait bounds how long GetOrCreate queues behind another instance
	// creating the same chat.
	lockWait = 3 * time.Second
	// publishWait bounds a best-effort event publish.
	publishWait = 2 * time.Second
)

// ChatService owns the chat lifecycle: opening a chat between a post's
// donor and a receiver, and appending messages to it.
type ChatService struct {
	chats     repository.ChatRepository
	posts     repository.PostRepository
	users     repository.UserRepository
	locker    lock.Locker
	publisher events.Publisher
	logger    *slog.Logger
}

func NewChatService(
	chats repository.ChatRepository,
	posts repository.PostRepository,
	users repository.UserRepository,
	locker lock.Locker,
	publisher events.Publisher,
	logger *slog.Logger,
) *ChatService {
	return &ChatService{
		chats:     chats,
		posts:     posts,
		users:     users,
		locker:    locker,
		publisher: publisher,
		logger:    logger,
	}
}

// GetOrCreate returns the caller's chat on postID, opening one if needed.
//
// A caller who already takes part in a chat on the post (as receiver, or as
// the donor answering one) gets that chat. Otherwise the caller becomes the
// receiver of a new chat with the post's donor, seeded with "Chat started".
// Repeated and concurrent calls by the same receiver yield the same chat.
func (s *ChatService) GetOrCreate(ctx context.Context, postID, userID string) (*model.Chat, error) {
	postID = strings.TrimSpace(postID)
	if postID == "" {
		return nil, apperror.ValidationFailed("postId", "postId is required")
	}

	post, err := s.posts.GetPostByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("service/chat: loading post %s: %w", postID, err)
	}

	existing, err := s.chats.FindChatForParticipant(ctx, postID, userID)
	if err == nil {
		return existing, nil
	}
	if !isNotFound(err) {
		return nil, fmt.Errorf("service/chat: looking up chat on post %s: %w", postID, err)
	}

	if post.DonorID == userID {
		return nil, apperror.Forbidden("donors cannot open a chat on their own post")
	}

	if _, err := s.users.GetUserByID(ctx, userID); err != nil {
		return nil, fmt.Errorf("service/chat: loading user %s: %w", userID, err)
	}

	want := &model.Chat{PostID: post.ID, DonorID: post.DonorID, ReceiverID: userID}
	unlock := s.acquire(ctx, "chat:"+want.PostID+":"+want.DonorID+":"+want.ReceiverID)
	defer unlock()

	chat, created, err := s.chats.FindOrCreateChat(ctx, want, model.SeedMessage)
	if err != nil {
		return nil, fmt.Errorf("service/chat: opening chat on post %s: %w", postID, err)
	}

	if created {
		s.logger.Info("chat opened",
			slog.String("chatID", chat.ID),
			slog.String("postID", chat.PostID),
			slog.String("receiverID", chat.ReceiverID),
		)
		s.publish(ctx, events.Event{
			Type:       events.ChatOpened,
			ChatID:     chat.ID,
			PostID:     chat.PostID,
			SenderID:   userID,
			OccurredAt: chat.CreatedAt,
		})
	}
	return chat, nil
}

// acquire takes the advisory lock for key. A lock failure is logged and the
// call proceeds unlocked; the store's unique constraint still holds.
func (s *ChatService) acquire(ctx context.Context, key string) func() {
	lctx, cancel := context.WithTimeout(ctx, lockWait)
	defer cancel()

	unlock, err := s.locker.Lock(lctx, key)
	if err != nil {
		s.logger.Warn("proceeding without chat lock",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return func() {}
	}
	return unlock
}

// AppendMessage adds a message from senderID to the chat. Callers who are
// not a member get the same error as for a missing chat.
func (s *ChatService) AppendMessage(ctx context.Context, chatID, senderID, content string) (*model.Message, error) {
	chatID = strings.TrimSpace(chatID)
	if chatID == "" || strings.TrimSpace(content) == "" {
		return nil, apperror.ValidationFailed("", "missing required fields")
	}

	if _, err := s.chats.GetChatForMember(ctx, chatID, senderID); err != nil {
		if isNotFound(err) {
			return nil, apperror.NotFoundMessage("chat not found or unauthorized")
		}
		return nil, fmt.Errorf("service/chat: checking membership of %s: %w", chatID, err)
	}

	msg := &model.Message{ChatID: chatID, SenderID: senderID, Content: content}
	if err := s.chats.AppendMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("service/chat: appending to chat %s: %w", chatID, err)
	}

	s.logger.Debug("message appended",
		slog.String("chatID", chatID),
		slog.String("messageID", msg.ID),
	)
	s.publish(ctx, events.Event{
		Type:       events.ChatMessage,
		ChatID:     chatID,
		SenderID:   senderID,
		MessageID:  msg.ID,
		OccurredAt: msg.CreatedAt,
	})
	return msg, nil
}

func (s *ChatService) publish(ctx context.Context, ev events.Event) {
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishWait)
	defer cancel()

	if err := s.publisher.Publish(pctx, ev); err != nil {
		s.logger.Warn("failed to publish chat event",
			slog.String("type", ev.Type),
			slog.String("chatID", ev.ChatID),
			slog.String("error", err.Error()),
		)
	}
}
