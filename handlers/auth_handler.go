package handlers

import (
	"errors"
	"net/http"

	"github.com/CharlieAKAN/Coop-Keeper/services"
)

type AuthHandler struct {
	authService services.AuthService
}

func NewAuthHandler(authService services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.Username == "" || input.Password == "" {
		badRequestResponse(w, r, errors.New("username and password are required"))
		return
	}

	token, err := h.authService.LoginAdmin(r.Context(), input.Username, input.Password)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"token": token}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// IssuePlayerToken mints a player token. Admin-only; this is how a bridge
// (a chat bot, a pairings display) gets per-player credentials.
func (h *AuthHandler) IssuePlayerToken(w http.ResponseWriter, r *http.Request) {
	var input struct {
		UserID      string `json:"userId"`
		DisplayName string `json:"displayName"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	token, err := h.authService.IssuePlayerToken(r.Context(), input.UserID, input.DisplayName)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"token": token}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
