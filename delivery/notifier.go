package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// DeckSubmitted is emitted by the deck service after a legal submission is
// persisted. Validation and persistence never depend on whether anyone
// consumes the event.
type DeckSubmitted struct {
	TID           string
	UserID        string
	DisplayName   string
	CardTotal     int
	InvalidLines  int
	ParsedSample  []string
	ReviewChannel string
}

// DeckReviewNotifier posts a review summary to the tournament's review
// channel for each DeckSubmitted event.
type DeckReviewNotifier struct {
	send   Sender
	logger *slog.Logger
}

func NewDeckReviewNotifier(send Sender, logger *slog.Logger) *DeckReviewNotifier {
	return &DeckReviewNotifier{send: send, logger: logger}
}

// Run consumes events until the context is cancelled or the channel
// closes. Send failures are logged and swallowed.
func (n *DeckReviewNotifier) Run(ctx context.Context, events <-chan DeckSubmitted) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			n.notify(ev)
		}
	}
}

func (n *DeckReviewNotifier) notify(ev DeckSubmitted) {
	if ev.ReviewChannel == "" {
		n.logger.Warn("deck submitted but no review channel bound",
			slog.String("tid", ev.TID), slog.String("user", ev.UserID))
		return
	}
	content := fmt.Sprintf("Deck review: %s submitted %d cards (%d unparsed lines).",
		ev.DisplayName, ev.CardTotal, ev.InvalidLines)
	if len(ev.ParsedSample) > 0 {
		content += "\n" + strings.Join(ev.ParsedSample, "\n")
	}
	msg := NewMessage(TypeDeckReview, ev.TID, content)
	msg.Data = ev
	if err := n.send.SendToChannel(ev.ReviewChannel, msg); err != nil {
		n.logger.Warn("deck review notification failed",
			slog.String("tid", ev.TID),
			slog.String("user", ev.UserID),
			slog.Any("error", err))
	}
}
