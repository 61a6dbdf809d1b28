package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/CharlieAKAN/Coop-Keeper/middleware"
	"github.com/CharlieAKAN/Coop-Keeper/services"
)

type RoundHandler struct {
	roundService services.RoundService
}

func NewRoundHandler(roundService services.RoundService) *RoundHandler {
	return &RoundHandler{roundService: roundService}
}

func (h *RoundHandler) Start(w http.ResponseWriter, r *http.Request) {
	tid := chi.URLParam(r, "tid")

	round, err := h.roundService.Start(r.Context(), tid)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"round": round}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *RoundHandler) Next(w http.ResponseWriter, r *http.Request) {
	tid := chi.URLParam(r, "tid")

	var input services.NextRoundInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	round, err := h.roundService.Next(r.Context(), tid, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"round": round}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *RoundHandler) Get(w http.ResponseWriter, r *http.Request) {
	tid := chi.URLParam(r, "tid")

	roundNum, err := strconv.Atoi(chi.URLParam(r, "round"))
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	round, err := h.roundService.GetRound(r.Context(), tid, roundNum)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"round": round}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *RoundHandler) Report(w http.ResponseWriter, r *http.Request) {
	tid := chi.URLParam(r, "tid")

	reporterID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}

	var input services.ReportInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	pr, err := h.roundService.Report(r.Context(), tid, reporterID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"pairing": pr}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *RoundHandler) Override(w http.ResponseWriter, r *http.Request) {
	tid := chi.URLParam(r, "tid")

	adminID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}

	var input services.OverrideInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	pr, err := h.roundService.Override(r.Context(), tid, adminID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"pairing": pr}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
