package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/CharlieAKAN/Coop-Keeper/models"
	"github.com/CharlieAKAN/Coop-Keeper/services"
)

type TournamentHandler struct {
	tournamentService services.TournamentService
}

func NewTournamentHandler(tournamentService services.TournamentService) *TournamentHandler {
	return &TournamentHandler{tournamentService: tournamentService}
}

func (h *TournamentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input services.CreateTournamentInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	t, err := h.tournamentService.Create(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"tournament": t}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TournamentHandler) Get(w http.ResponseWriter, r *http.Request) {
	tid := chi.URLParam(r, "tid")

	t, err := h.tournamentService.Get(r.Context(), tid)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournament": t}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TournamentHandler) List(w http.ResponseWriter, r *http.Request) {
	ids, err := h.tournamentService.List(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournaments": ids}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TournamentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tid := chi.URLParam(r, "tid")

	var input struct {
		Confirm bool `json:"confirm"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.tournamentService.Delete(r.Context(), tid, input.Confirm); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"deleted": tid}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TournamentHandler) UpdateMeta(w http.ResponseWriter, r *http.Request) {
	tid := chi.URLParam(r, "tid")

	var patch services.MetaPatch
	if err := readJSON(w, r, &patch); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	t, err := h.tournamentService.UpdateMeta(r.Context(), tid, patch)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournament": t}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

const maxQRUploadBytes = 5 << 20 // 5MB

// SetPayment accepts multipart form data: mode, linkUrl, note fields plus
// an optional "qr" image part.
func (h *TournamentHandler) SetPayment(w http.ResponseWriter, r *http.Request) {
	tid := chi.URLParam(r, "tid")

	if err := r.ParseMultipartForm(maxQRUploadBytes); err != nil {
		badRequestResponse(w, r, errors.New("expected multipart form data"))
		return
	}

	input := services.PaymentInput{
		Mode:    models.PaymentMode(r.FormValue("mode")),
		LinkURL: r.FormValue("linkUrl"),
		Note:    r.FormValue("note"),
	}

	if file, header, err := r.FormFile("qr"); err == nil {
		defer file.Close()
		input.QRImage = file
		input.QRContentType = header.Header.Get("Content-Type")
		if input.QRContentType == "" {
			input.QRContentType = "application/octet-stream"
		}
	}

	settings, err := h.tournamentService.SetPayment(r.Context(), tid, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"payment": settings}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
