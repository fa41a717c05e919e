package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"flashdeck-backend/internal/middleware"
	"flashdeck-backend/internal/models"
	"flashdeck-backend/internal/services"
)

type UserHandler struct {
	userRepo    userRepository
	authService *services.AuthService
}

type userRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

func NewUserHandler(userRepo userRepository, authService *services.AuthService) *UserHandler {
	return &UserHandler{userRepo: userRepo, authService: authService}
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	auth := middleware.GetAuth(r.Context())

	user, err := h.userRepo.GetByID(r.Context(), auth.UserID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "User not found", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"user":    user,
	})
}

// ChangePlan switches the subscription plan and reissues tokens so the new
// entitlements take effect without waiting for the old access token to
// expire.
func (h *UserHandler) ChangePlan(w http.ResponseWriter, r *http.Request) {
	var req models.ChangePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	tokens, err := h.authService.ChangePlan(r.Context(), middleware.GetAuth(r.Context()), req.Plan)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"plan":    req.Plan,
		"tokens":  tokens,
	})
}
