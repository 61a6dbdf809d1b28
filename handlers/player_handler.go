package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/CharlieAKAN/Coop-Keeper/middleware"
	"github.com/CharlieAKAN/Coop-Keeper/models"
	"github.com/CharlieAKAN/Coop-Keeper/services"
)

type PlayerHandler struct {
	playerService services.PlayerService
}

func NewPlayerHandler(playerService services.PlayerService) *PlayerHandler {
	return &PlayerHandler{playerService: playerService}
}

// Register signs the authenticated user up for the tournament.
func (h *PlayerHandler) Register(w http.ResponseWriter, r *http.Request) {
	tid := chi.URLParam(r, "tid")

	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}

	var input struct {
		DisplayName string `json:"displayName"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.DisplayName == "" {
		input.DisplayName = userID
	}

	p, err := h.playerService.Register(r.Context(), tid, userID, input.DisplayName)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"player": p}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// MarkPaid records the authenticated player's claim that the entry fee
// was paid, queuing it for organizer review.
func (h *PlayerHandler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	tid := chi.URLParam(r, "tid")

	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}

	p, err := h.playerService.MarkPaid(r.Context(), tid, userID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"player": p}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// SetPaymentStatus is the organizer's payment review action.
func (h *PlayerHandler) SetPaymentStatus(w http.ResponseWriter, r *http.Request) {
	tid := chi.URLParam(r, "tid")
	userID := chi.URLParam(r, "userID")

	var input struct {
		Status models.PaymentStatus `json:"status"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	p, err := h.playerService.SetPaymentStatus(r.Context(), tid, userID, input.Status)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"player": p}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Drop removes the authenticated player from the event, conceding any
// live match.
func (h *PlayerHandler) Drop(w http.ResponseWriter, r *http.Request) {
	tid := chi.URLParam(r, "tid")

	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}

	var input struct {
		Reason  string `json:"reason"`
		Confirm bool   `json:"confirm"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	p, err := h.playerService.Drop(r.Context(), tid, userID, input.Reason, input.Confirm)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"player": p}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// DropPlayer is the admin variant of Drop for an arbitrary player.
func (h *PlayerHandler) DropPlayer(w http.ResponseWriter, r *http.Request) {
	tid := chi.URLParam(r, "tid")
	userID := chi.URLParam(r, "userID")

	var input struct {
		Reason  string `json:"reason"`
		Confirm bool   `json:"confirm"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	p, err := h.playerService.Drop(r.Context(), tid, userID, input.Reason, input.Confirm)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"player": p}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// MarkNoShow is the admin variant: the target player forfeits their
// current match.
func (h *PlayerHandler) MarkNoShow(w http.ResponseWriter, r *http.Request) {
	tid := chi.URLParam(r, "tid")
	userID := chi.URLParam(r, "userID")

	var input struct {
		Confirm bool `json:"confirm"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	pr, err := h.playerService.MarkNoShow(r.Context(), tid, userID, input.Confirm)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"pairing": pr}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ReportNoShow awards the authenticated player a win over an absent
// opponent.
func (h *PlayerHandler) ReportNoShow(w http.ResponseWriter, r *http.Request) {
	tid := chi.URLParam(r, "tid")

	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}

	var input struct {
		Confirm bool `json:"confirm"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	pr, err := h.playerService.ReportNoShow(r.Context(), tid, userID, input.Confirm)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"pairing": pr}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
