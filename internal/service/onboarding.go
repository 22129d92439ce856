package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/foodshare/internal/apperror"
	"github.com/sakif/foodshare/internal/auth"
	"github.com/sakif/foodshare/internal/model"
	"github.com/sakif/foodshare/internal/repository"
)

// LocationInput is the location part of an onboarding submission.
// Coordinates are pointers so a missing value can be told apart from 0.
type LocationInput struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Address   string   `json:"address"`
}

// OnboardingInput is the onboarding form. Name and email are optional and
// fall back to the token claims when blank.
type OnboardingInput struct {
	Role     string         `json:"role"`
	Location *LocationInput `json:"location"`
	Name     string         `json:"name"`
	Email    string         `json:"email"`
}

// OnboardingStatus answers "has this caller finished onboarding?".
type OnboardingStatus struct {
	User                 *model.User `json:"user"`
	IsOnboardingComplete bool        `json:"isOnboardingComplete"`
}

// OnboardingService records a user's role and home location.
type OnboardingService struct {
	users  repository.UserRepository
	logger *slog.Logger
}

func NewOnboardingService(users repository.UserRepository, logger *slog.Logger) *OnboardingService {
	return &OnboardingService{users: users, logger: logger}
}

// Submit validates the input and then upserts the user and replaces their
// location. Nothing is written if validation fails.
func (s *OnboardingService) Submit(ctx context.Context, caller auth.Identity, in OnboardingInput) (*model.User, error) {
	role := model.Role(strings.TrimSpace(in.Role))
	if !role.Valid() {
		return nil, apperror.ValidationFailed("role", "invalid role")
	}

	loc, err := validateLocation(in.Location)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		ID:    caller.UserID,
		Role:  role,
		Name:  firstNonBlank(in.Name, caller.Name),
		Email: firstNonBlank(in.Email, caller.Email),
	}
	if err := s.users.UpsertOnboarding(ctx, user, loc); err != nil {
		return nil, fmt.Errorf("service/onboarding: saving user %s: %w", caller.UserID, err)
	}

	s.logger.Info("user onboarded",
		slog.String("userID", user.ID),
		slog.String("role", string(user.Role)),
	)
	return user, nil
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func validateLocation(in *LocationInput) (*model.Location, error) {
	if in == nil || in.Latitude == nil || in.Longitude == nil {
		return nil, apperror.ValidationFailed("location", "invalid location data")
	}
	lat, lon := *in.Latitude, *in.Longitude
	if lat < -90 || lat > 90 {
		return nil, apperror.ValidationFailed("location.latitude", "latitude must be between -90 and 90")
	}
	if lon < -180 || lon > 180 {
		return nil, apperror.ValidationFailed("location.longitude", "longitude must be between -180 and 180")
	}
	address := strings.TrimSpace(in.Address)
	if address == "" {
		return nil, apperror.ValidationFailed("location.address", "address is required")
	}
	return &model.Location{Latitude: lat, Longitude: lon, Address: address}, nil
}

// Status reports the caller's onboarding state. An unknown user is not an
// error: they simply have not onboarded yet.
func (s *OnboardingService) Status(ctx context.Context, userID string) (*OnboardingStatus, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return &OnboardingStatus{}, nil
		}
		return nil, fmt.Errorf("service/onboarding: loading user %s: %w", userID, err)
	}

	return &OnboardingStatus{
		User:                 user,
		IsOnboardingComplete: user.Role.Valid() && user.Location != nil,
	}, nil
}
