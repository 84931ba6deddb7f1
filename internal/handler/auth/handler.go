package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	chatservice "github.com/praxislabs/praxis/backend/internal/service/chat"
	"github.com/praxislabs/praxis/backend/pkg/utils"
)

// Handler serves the login endpoint.
type Handler struct {
	chatSvc *chatservice.Service
}

// New creates the auth handler.
func New(chatSvc *chatservice.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// RegisterRoutes registers the auth routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
}

// handleLogin gets or creates a user by email. Repeating a login with the
// same email always returns the same user id.
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if payload.Email == "" {
		utils.RespondError(w, http.StatusBadRequest, "email is required")
		return
	}

	user, err := h.chatSvc.FindUserByEmail(r.Context(), payload.Email)
	if errors.Is(err, chatservice.ErrUserNotFound) {
		user, err = h.chatSvc.CreateUser(r.Context(), payload.Name, payload.Email)
	}
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to log in")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{
		"id":    user.ID,
		"name":  user.Name,
		"email": user.Email,
	})
}
