package pairings

import "github.com/CharlieAKAN/Coop-Keeper/models"

// History records which players have already faced each other.
type History map[string]map[string]bool

// BuildHistory derives the opponent set per player from prior rounds.
// Byes add no history.
func BuildHistory(rounds []*models.Round) History {
	h := make(History)
	for _, r := range rounds {
		if r == nil {
			continue
		}
		for _, p := range r.Pairings {
			if p.PlayerA == "" || p.PlayerB == "" {
				continue
			}
			h.add(p.PlayerA, p.PlayerB)
			h.add(p.PlayerB, p.PlayerA)
		}
	}
	return h
}

func (h History) add(a, b string) {
	if h[a] == nil {
		h[a] = make(map[string]bool)
	}
	h[a][b] = true
}

// Met reports whether the two players have been paired before.
func (h History) Met(a, b string) bool {
	return h[a] != nil && h[a][b]
}
