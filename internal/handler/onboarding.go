package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/foodshare/internal/auth"
	"github.com/sakif/foodshare/internal/service"
)

type OnboardingHandler struct {
	onboarding *service.OnboardingService
	logger     *slog.Logger
}

func NewOnboardingHandler(onboarding *service.OnboardingService, logger *slog.Logger) *OnboardingHandler {
	return &OnboardingHandler{onboarding: onboarding, logger: logger}
}

// HandleStatus handles GET /api/onboarding.
func (h *OnboardingHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	status, err := h.onboarding.Status(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// HandleSubmit handles POST /api/onboarding.
func (h *OnboardingHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.IdentityFromContext(r.Context())

	var in service.OnboardingInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.logger.Warn("invalid request body", slog.String("path", r.URL.Path))
		writeError(w, err)
		return
	}

	user, err := h.onboarding.Submit(r.Context(), caller, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
