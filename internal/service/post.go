package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/sakif/foodshare/internal/apperror"
	"github.com/sakif/foodshare/internal/model"
	"github.com/sakif/foodshare/internal/repository"
)

// dateOnly is the short expiry format accepted next to RFC 3339.
const dateOnly = "2006-01-02"

// PostInput is a new food post as submitted by a donor.
type PostInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Quantity    string `json:"quantity"`
	ExpiryDate  string `json:"expiryDate"`
}

// PostService manages food posts.
type PostService struct {
	posts  repository.PostRepository
	users  repository.UserRepository
	logger *slog.Logger
}

func NewPostService(posts repository.PostRepository, users repository.UserRepository, logger *slog.Logger) *PostService {
	return &PostService{posts: posts, users: users, logger: logger}
}

// Create publishes a new post at the donor's current location.
func (s *PostService) Create(ctx context.Context, userID string, in PostInput) (*model.FoodPost, error) {
	title := strings.TrimSpace(in.Title)
	description := strings.TrimSpace(in.Description)
	quantity := strings.TrimSpace(in.Quantity)
	if title == "" || description == "" || quantity == "" || strings.TrimSpace(in.ExpiryDate) == "" {
		return nil, apperror.ValidationFailed("", "missing required fields")
	}

	expiry, err := parseExpiry(in.ExpiryDate)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/post: loading user %s: %w", userID, err)
	}
	if user.Location == nil {
		return nil, apperror.NotFoundMessage("user location not found")
	}

	post := &model.FoodPost{
		Title:       title,
		Description: description,
		Quantity:    quantity,
		ExpiryDate:  expiry,
		Status:      model.PostAvailable,
		DonorID:     user.ID,
	}
	if err := s.posts.CreatePost(ctx, post, *user.Location); err != nil {
		return nil, fmt.Errorf("service/post: creating post: %w", err)
	}

	s.logger.Info("post created",
		slog.String("postID", post.ID),
		slog.String("donorID", post.DonorID),
	)
	return post, nil
}

func parseExpiry(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(dateOnly, raw); err == nil {
		return t, nil
	}
	return time.Time{}, apperror.ValidationFailed("expiryDate", "expiryDate must be RFC 3339 or YYYY-MM-DD")
}

// ListAvailable returns the AVAILABLE posts the caller may see, newest
// first. Donors only see their own posts. With maxDistance set, results are
// limited to a box of ±maxDistance degrees around the caller's location.
func (s *PostService) ListAvailable(ctx context.Context, userID, maxDistance string) ([]model.FoodPost, error) {
	var distance *float64
	if raw := strings.TrimSpace(maxDistance); raw != "" {
		d, err := strconv.ParseFloat(raw, 64)
		if err != nil || d < 0 || math.IsNaN(d) || math.IsInf(d, 0) {
			return nil, apperror.ValidationFailed("maxDistance", "maxDistance must be a non-negative number")
		}
		distance = &d
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/post: loading user %s: %w", userID, err)
	}
	if user.Location == nil {
		return nil, apperror.NotFoundMessage("user location not found")
	}

	filter := repository.PostFilter{Status: model.PostAvailable}
	if user.Role == model.RoleDonor {
		filter.DonorID = user.ID
	}
	if distance != nil {
		d, lat, lon := *distance, user.Location.Latitude, user.Location.Longitude
		filter.BoundingBox = &repository.BoundingBox{
			LatMin: lat - d, LatMax: lat + d,
			LonMin: lon - d, LonMax: lon + d,
		}
	}

	posts, err := s.posts.ListPosts(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("service/post: listing posts: %w", err)
	}
	return posts, nil
}

// History returns every post the donor has made, with its requests.
func (s *PostService) History(ctx context.Context, donorID string) ([]model.FoodPost, error) {
	posts, err := s.posts.ListDonorHistory(ctx, donorID)
	if err != nil {
		return nil, fmt.Errorf("service/post: loading history of %s: %w", donorID, err)
	}
	return posts, nil
}
