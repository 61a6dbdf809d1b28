package delivery

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNoRecipient = errors.New("no recipient for message")

// Message is one outbound announcement or private notice. Data carries an
// optional structured payload (pairings, standings rows) alongside the
// rendered text.
type Message struct {
	ID      string      `json:"id"`
	Type    string      `json:"type"`
	TID     string      `json:"tid,omitempty"`
	Content string      `json:"content"`
	Data    interface{} `json:"data,omitempty"`
	SentAt  time.Time   `json:"sentAt"`
}

func NewMessage(msgType, tid, content string) Message {
	return Message{
		ID:      uuid.NewString(),
		Type:    msgType,
		TID:     tid,
		Content: content,
		SentAt:  time.Now().UTC(),
	}
}

// Message types used across the engine.
const (
	TypeAnnouncement  = "ANNOUNCEMENT"
	TypePairings      = "PAIRINGS"
	TypeResult        = "RESULT"
	TypeStandings     = "STANDINGS"
	TypeDeckReview    = "DECK_REVIEW"
	TypePaymentReview = "PAYMENT_REVIEW"
	TypeThreadNotice  = "THREAD_NOTICE"
)

// Sender delivers messages to channels and per-player threads. Failures
// are expected (nobody listening, channel unbound) and are logged by
// callers, never escalated into business-state failures.
type Sender interface {
	SendToChannel(channelID string, msg Message) error

	// SendToUserThread targets a player's private thread for tournament
	// tid, falling back to fallbackChannelID when no thread exists.
	SendToUserThread(tid, userID string, msg Message, fallbackChannelID string) error
}
