package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/CharlieAKAN/Coop-Keeper/delivery"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: restrict Origin once the frontend domain is fixed.
		return true
	},
}

type WebSocketHandler struct {
	hub    *delivery.Hub
	logger *slog.Logger
}

func NewWebSocketHandler(hub *delivery.Hub, logger *slog.Logger) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, logger: logger}
}

// ServeChannel joins the caller to a channel room. Every message the
// engine sends to that channel id is mirrored to the socket.
func (h *WebSocketHandler) ServeChannel(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "channelID")
	if channelID == "" {
		http.Error(w, "missing channelID", http.StatusBadRequest)
		return
	}
	h.serve(w, r, channelID)
}

// ServeThread joins the caller to a player's private thread room.
func (h *WebSocketHandler) ServeThread(w http.ResponseWriter, r *http.Request) {
	tid := chi.URLParam(r, "tid")
	userID := chi.URLParam(r, "userID")
	if tid == "" || userID == "" {
		http.Error(w, "missing tid or userID", http.StatusBadRequest)
		return
	}
	h.serve(w, r, delivery.ThreadRoom(tid, userID))
}

func (h *WebSocketHandler) serve(w http.ResponseWriter, r *http.Request, room string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed",
			slog.String("room", room), slog.Any("error", err))
		return
	}

	client := delivery.NewClient(h.hub, conn, room)
	go client.WritePump()
	go client.ReadPump()
}
