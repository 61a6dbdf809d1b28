package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/CharlieAKAN/Coop-Keeper/middleware"
	"github.com/CharlieAKAN/Coop-Keeper/services"
)

type DeckHandler struct {
	deckService services.DeckService
}

func NewDeckHandler(deckService services.DeckService) *DeckHandler {
	return &DeckHandler{deckService: deckService}
}

// Submit accepts the authenticated player's decklist as raw text.
func (h *DeckHandler) Submit(w http.ResponseWriter, r *http.Request) {
	tid := chi.URLParam(r, "tid")

	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}

	var input struct {
		Text string `json:"text"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	deck, err := h.deckService.Submit(r.Context(), tid, userID, input.Text)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"deck": deck}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *DeckHandler) Approve(w http.ResponseWriter, r *http.Request) {
	tid := chi.URLParam(r, "tid")
	userID := chi.URLParam(r, "userID")

	reviewerID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}

	deck, err := h.deckService.Approve(r.Context(), tid, userID, reviewerID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"deck": deck}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *DeckHandler) Reject(w http.ResponseWriter, r *http.Request) {
	tid := chi.URLParam(r, "tid")
	userID := chi.URLParam(r, "userID")

	reviewerID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}

	var input struct {
		Reason string `json:"reason"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	deck, err := h.deckService.Reject(r.Context(), tid, userID, reviewerID, input.Reason)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"deck": deck}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Pull returns a player's stored decklist for review.
func (h *DeckHandler) Pull(w http.ResponseWriter, r *http.Request) {
	tid := chi.URLParam(r, "tid")
	userID := chi.URLParam(r, "userID")

	deck, err := h.deckService.Pull(r.Context(), tid, userID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"deck": deck}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
