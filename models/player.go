package models

import "time"

type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentPending  PaymentStatus = "pending"
	PaymentVerified PaymentStatus = "verified"
)

type Record struct {
	Wins   int `json:"wins"`
	Losses int `json:"losses"`
	Draws  int `json:"draws"`
}

type DeckStatus string

const (
	DeckNone     DeckStatus = "none"
	DeckPending  DeckStatus = "pending"
	DeckApproved DeckStatus = "approved"
	DeckRejected DeckStatus = "rejected"
)

// ParsedLine is one tokenized decklist entry, e.g. quantity 4 of "OP08-010".
type ParsedLine struct {
	Qty  int    `json:"qty"`
	Code string `json:"code"`
	Raw  string `json:"raw,omitempty"`
}

type ParsedDeck struct {
	Total   int          `json:"total"`
	Lines   []ParsedLine `json:"lines"`
	Invalid []string     `json:"invalid,omitempty"`
}

type Deck struct {
	Text        string     `json:"text,omitempty"`
	Parsed      ParsedDeck `json:"parsed"`
	Status      DeckStatus `json:"status"`
	Locked      bool       `json:"locked"`
	SubmittedAt *time.Time `json:"submittedAt,omitempty"`
	ApprovedBy  string     `json:"approvedBy,omitempty"`
	ApprovedAt  *time.Time `json:"approvedAt,omitempty"`
	RejectedBy  string     `json:"rejectedBy,omitempty"`
	RejectedAt  *time.Time `json:"rejectedAt,omitempty"`
}

// Submitted reports whether any decklist text is on file.
func (d *Deck) Submitted() bool {
	return d != nil && d.Text != ""
}

type Player struct {
	UserID        string        `json:"userId"`
	DisplayName   string        `json:"displayName"`
	PaymentStatus PaymentStatus `json:"paymentStatus"`
	Paid          bool          `json:"paid"`
	Dropped       bool          `json:"dropped"`
	DroppedAt     *time.Time    `json:"droppedAt,omitempty"`
	DropReason    string        `json:"dropReason,omitempty"`
	Score         int           `json:"score"`
	Record        Record        `json:"record"`
	Deck          *Deck         `json:"deck,omitempty"`
	ThreadID      string        `json:"threadId,omitempty"`
}

func NewPlayer(userID, displayName string) *Player {
	return &Player{
		UserID:        userID,
		DisplayName:   displayName,
		PaymentStatus: PaymentUnpaid,
		Deck:          &Deck{Status: DeckNone},
	}
}

// DeckStatusOrNone normalizes older documents where deck may be nil.
func (p *Player) DeckStatusOrNone() DeckStatus {
	if p.Deck == nil || p.Deck.Status == "" {
		if p.Deck.Submitted() {
			return DeckPending
		}
		return DeckNone
	}
	return p.Deck.Status
}
