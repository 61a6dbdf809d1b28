package models

import "time"

// Result of a pairing. A bye's result is always effectively a win for
// player A.
type Result string

const (
	ResultPending Result = "PENDING"
	ResultA       Result = "A"
	ResultB       Result = "B"
	ResultDraw    Result = "D"
)

func ValidResult(r Result) bool {
	return r == ResultA || r == ResultB || r == ResultDraw
}

// Pairing seats two players at a table for one round. Exactly one of
// {PlayerB set, Bye true} holds. Table, PlayerA, PlayerB and Bye never
// change after creation; only result fields are mutated.
type Pairing struct {
	Table          int        `json:"table"`
	PlayerA        string     `json:"playerA"`
	PlayerB        string     `json:"playerB,omitempty"`
	Bye            bool       `json:"bye,omitempty"`
	Result         Result     `json:"result"`
	ReportedBy     string     `json:"reportedBy,omitempty"`
	ReportedAt     *time.Time `json:"reportedAt,omitempty"`
	GameWinsA      *int       `json:"gwA,omitempty"`
	GameWinsB      *int       `json:"gwB,omitempty"`
	NoShow         bool       `json:"noShow,omitempty"`
	DropConcession bool       `json:"dropConcession,omitempty"`
}

func (p *Pairing) Pending() bool {
	return p.Result == "" || p.Result == ResultPending
}

func (p *Pairing) Seats(userID string) bool {
	return p.PlayerA == userID || (!p.Bye && p.PlayerB == userID)
}

// Opponent returns the other seat, or "" for a bye or an unknown player.
func (p *Pairing) Opponent(userID string) string {
	if p.Bye {
		return ""
	}
	switch userID {
	case p.PlayerA:
		return p.PlayerB
	case p.PlayerB:
		return p.PlayerA
	}
	return ""
}

// ClearResult removes the recorded outcome, returning the pairing to
// PENDING. Scoring rollback is the caller's job.
func (p *Pairing) ClearResult() {
	p.Result = ResultPending
	p.ReportedBy = ""
	p.ReportedAt = nil
	p.GameWinsA = nil
	p.GameWinsB = nil
	p.NoShow = false
	p.DropConcession = false
}

type Round struct {
	Pairings []*Pairing `json:"pairings"`
}

// PendingCount returns how many pairings still lack a result.
func (r *Round) PendingCount() int {
	n := 0
	for _, p := range r.Pairings {
		if p.Pending() {
			n++
		}
	}
	return n
}

// PairingAt returns the pairing seated at the given table, or nil.
func (r *Round) PairingAt(table int) *Pairing {
	for _, p := range r.Pairings {
		if p.Table == table {
			return p
		}
	}
	return nil
}

// ActivePairingFor returns the player's unreported pairing this round, or
// nil if they are not seated or already reported.
func (r *Round) ActivePairingFor(userID string) *Pairing {
	for _, p := range r.Pairings {
		if p.Pending() && p.Seats(userID) {
			return p
		}
	}
	return nil
}
