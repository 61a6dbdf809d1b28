package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/CharlieAKAN/Coop-Keeper/services"
)

type StandingsHandler struct {
	standingsService services.StandingsService
}

func NewStandingsHandler(standingsService services.StandingsService) *StandingsHandler {
	return &StandingsHandler{standingsService: standingsService}
}

func topN(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("top"))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func (h *StandingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	tid := chi.URLParam(r, "tid")

	rows, err := h.standingsService.Standings(r.Context(), tid, topN(r))
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"standings": rows}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Post publishes standings to the bound standings channel.
func (h *StandingsHandler) Post(w http.ResponseWriter, r *http.Request) {
	tid := chi.URLParam(r, "tid")

	if err := h.standingsService.Post(r.Context(), tid, topN(r)); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"status": "posted"}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *StandingsHandler) Export(w http.ResponseWriter, r *http.Request) {
	tid := chi.URLParam(r, "tid")

	result, err := h.standingsService.ExportCSV(r.Context(), tid)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"export": result}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *StandingsHandler) Audit(w http.ResponseWriter, r *http.Request) {
	tid := chi.URLParam(r, "tid")

	report, err := h.standingsService.Audit(r.Context(), tid)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"audit": report}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *StandingsHandler) ExportAudit(w http.ResponseWriter, r *http.Request) {
	tid := chi.URLParam(r, "tid")

	result, err := h.standingsService.ExportAuditCSV(r.Context(), tid)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"export": result}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
