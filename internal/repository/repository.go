// Package repository declares the storage contracts the service layer depends
// on. The only production implementation lives in repository/sqlite; service
// tests use hand-written fakes.
package repository

import (
	"context"

	"github.com/sakif/foodshare/internal/model"
)

// BoundingBox is an inclusive latitude/longitude rectangle.
type BoundingBox struct {
	LatMin, LatMax float64
	LonMin, LonMax float64
}

// PostFilter narrows ListPosts. Zero-valued fields do not filter.
type PostFilter struct {
	Status      model.PostStatus
	DonorID     string
	BoundingBox *BoundingBox
}

type UserRepository interface {
	// UpsertOnboarding creates the user if absent (otherwise only the role is
	// updated) and replaces the user's location, all in one transaction.
	UpsertOnboarding(ctx context.Context, user *model.User, loc *model.Location) error
	// GetUserByID returns the user with their location attached, or
	// apperror.ErrNotFound.
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

type PostRepository interface {
	// CreatePost stores the post together with its own copy of loc.
	CreatePost(ctx context.Context, post *model.FoodPost, loc model.Location) error
	GetPostByID(ctx context.Context, id string) (*model.FoodPost, error)
	// ListPosts returns matching posts newest first, with location and donor.
	ListPosts(ctx context.Context, filter PostFilter) ([]model.FoodPost, error)
	// ListDonorHistory returns every post of donorID with its requests.
	ListDonorHistory(ctx context.Context, donorID string) ([]model.FoodPost, error)
}

type ChatRepository interface {
	// FindChatForParticipant returns a chat on postID in which userID is the
	// donor or the receiver, or apperror.ErrNotFound.
	FindChatForParticipant(ctx context.Context, postID, userID string) (*model.Chat, error)
	// FindOrCreateChat returns the chat for chat's (PostID, DonorID,
	// ReceiverID) triple, creating it with a seed message from the receiver
	// when absent. created reports whether this call inserted it.
	FindOrCreateChat(ctx context.Context, chat *model.Chat, seed string) (result *model.Chat, created bool, err error)
	// GetChatForMember returns the chat only if userID is one of its members;
	// otherwise apperror.ErrNotFound.
	GetChatForMember(ctx context.Context, chatID, userID string) (*model.Chat, error)
	AppendMessage(ctx context.Context, msg *model.Message) error
	ListMessages(ctx context.Context, chatID string) ([]model.Message, error)
}
