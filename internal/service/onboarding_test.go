package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/foodshare/internal/apperror"
	"github.com/sakif/foodshare/internal/auth"
	"github.com/sakif/foodshare/internal/model"
)

func ptr(f float64) *float64 { return &f }

var asha = auth.Identity{UserID: "u1", Name: "Asha", Email: "asha@example.com"}

func validInput() OnboardingInput {
	return OnboardingInput{
		Role:     "DONOR",
		Location: &LocationInput{Latitude: ptr(23.8), Longitude: ptr(90.4), Address: "Gulshan 2"},
	}
}

func TestSubmit_CreatesUser(t *testing.T) {
	store := newFakeStore()
	svc := NewOnboardingService(store, discardLogger())

	user, err := svc.Submit(context.Background(), asha, validInput())
	require.NoError(t, err)

	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, model.RoleDonor, user.Role)
	assert.Equal(t, "Asha", user.Name)
	assert.Equal(t, "asha@example.com", user.Email)
	require.NotNil(t, user.Location)
	assert.Equal(t, "Gulshan 2", user.Location.Address)
}

func TestSubmit_NameAndEmailFromBody(t *testing.T) {
	tests := []struct {
		name      string
		caller    auth.Identity
		bodyName  string
		bodyEmail string
		wantName  string
		wantEmail string
	}{
		{
			name:      "body wins over claims",
			caller:    asha,
			bodyName:  "Asha Rahman",
			bodyEmail: "asha.r@example.com",
			wantName:  "Asha Rahman",
			wantEmail: "asha.r@example.com",
		},
		{
			name:      "subject-only token uses body",
			caller:    auth.Identity{UserID: "u1"},
			bodyName:  "Alice",
			bodyEmail: "alice@example.com",
			wantName:  "Alice",
			wantEmail: "alice@example.com",
		},
		{
			name:      "blank body falls back to claims",
			caller:    asha,
			bodyName:  "   ",
			wantName:  "Asha",
			wantEmail: "asha@example.com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewOnboardingService(newFakeStore(), discardLogger())
			in := validInput()
			in.Name, in.Email = tt.bodyName, tt.bodyEmail

			user, err := svc.Submit(context.Background(), tt.caller, in)
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, user.Name)
			assert.Equal(t, tt.wantEmail, user.Email)
		})
	}
}

func TestSubmit_Resubmission(t *testing.T) {
	store := newFakeStore()
	svc := NewOnboardingService(store, discardLogger())
	ctx := context.Background()
	_, err := svc.Submit(ctx, asha, validInput())
	require.NoError(t, err)

	in := validInput()
	in.Role = "RECEIVER"
	in.Location.Address = "Banani"
	renamed := asha
	renamed.Name = "Someone Else"

	user, err := svc.Submit(ctx, renamed, in)
	require.NoError(t, err)

	assert.Equal(t, model.RoleReceiver, user.Role)
	assert.Equal(t, "Banani", user.Location.Address)
	assert.Equal(t, "Asha", user.Name, "name is only set on creation")
}

func TestSubmit_Validation(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(in *OnboardingInput)
		wantField string
	}{
		{"invalid role", func(in *OnboardingInput) { in.Role = "INVALID" }, "role"},
		{"lowercase role", func(in *OnboardingInput) { in.Role = "donor" }, "role"},
		{"missing location", func(in *OnboardingInput) { in.Location = nil }, "location"},
		{"missing latitude", func(in *OnboardingInput) { in.Location.Latitude = nil }, "location"},
		{"missing longitude", func(in *OnboardingInput) { in.Location.Longitude = nil }, "location"},
		{"latitude too large", func(in *OnboardingInput) { in.Location.Latitude = ptr(90.5) }, "location.latitude"},
		{"longitude too small", func(in *OnboardingInput) { in.Location.Longitude = ptr(-181) }, "location.longitude"},
		{"blank address", func(in *OnboardingInput) { in.Location.Address = "  " }, "location.address"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			svc := NewOnboardingService(store, discardLogger())
			in := validInput()
			tt.mutate(&in)

			_, err := svc.Submit(context.Background(), asha, in)

			var appErr *apperror.AppError
			require.True(t, errors.As(err, &appErr), "got %v", err)
			assert.Equal(t, apperror.ErrValidation, appErr.Err)
			assert.Equal(t, tt.wantField, appErr.Field)
			assert.Zero(t, store.upserts, "nothing may be written on validation failure")
		})
	}
}

func TestSubmit_BoundaryCoordinatesAccepted(t *testing.T) {
	svc := NewOnboardingService(newFakeStore(), discardLogger())
	in := validInput()
	in.Location.Latitude = ptr(-90)
	in.Location.Longitude = ptr(180)

	_, err := svc.Submit(context.Background(), asha, in)
	assert.NoError(t, err)

	in.Location.Latitude = ptr(0)
	in.Location.Longitude = ptr(0)
	_, err = svc.Submit(context.Background(), asha, in)
	assert.NoError(t, err, "(0,0) is a real place")
}

func TestSubmit_StoreFailure(t *testing.T) {
	store := newFakeStore()
	store.failWith = errStoreDown
	svc := NewOnboardingService(store, discardLogger())

	_, err := svc.Submit(context.Background(), asha, validInput())
	assert.True(t, errors.Is(err, errStoreDown))
}

func TestStatus(t *testing.T) {
	store := newFakeStore()
	svc := NewOnboardingService(store, discardLogger())
	ctx := context.Background()

	status, err := svc.Status(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, status.User)
	assert.False(t, status.IsOnboardingComplete)

	_, err = svc.Submit(ctx, asha, validInput())
	require.NoError(t, err)

	status, err = svc.Status(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, status.User)
	assert.True(t, status.IsOnboardingComplete)
}

func TestStatus_StoreFailure(t *testing.T) {
	store := newFakeStore()
	store.failWith = errStoreDown
	svc := NewOnboardingService(store, discardLogger())

	_, err := svc.Status(context.Background(), "u1")
	assert.True(t, errors.Is(err, errStoreDown))
}
