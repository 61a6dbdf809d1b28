package pairings

import (
	"math/rand"
	"sort"
	"time"

	"github.com/CharlieAKAN/Coop-Keeper/models"
)

// Engine produces Swiss pairings. It is pure over its inputs: it never
// touches storage and callers are responsible for pre-filtering the pool
// to eligible players (at least two of them).
//
// Tie-breaks within a score bracket are randomized on purpose so pairings
// are not predictable across events. Tests inject a seeded source.
type Engine struct {
	rng *rand.Rand
}

func NewEngine(rng *rand.Rand) *Engine {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Engine{rng: rng}
}

// Pair computes the next round's pairings from prior rounds and the current
// eligible pool. Players are grouped by score descending; within a bracket
// each player is matched with the first remaining opponent they have not
// faced, falling back to a repeat rather than failing. An odd player per
// bracket floats down; leftover floats pair among themselves, and a final
// odd float receives the bye. Tables are numbered from 1 in generation
// order.
func (e *Engine) Pair(prior []*models.Round, pool []*models.Player) []*models.Pairing {
	history := BuildHistory(prior)

	byScore := make(map[int][]*models.Player)
	for _, p := range pool {
		byScore[p.Score] = append(byScore[p.Score], p)
	}
	scores := make([]int, 0, len(byScore))
	for s := range byScore {
		scores = append(scores, s)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(scores)))

	var (
		out    []*models.Pairing
		floats []*models.Player
		table  = 1
	)

	for _, s := range scores {
		bracket := append([]*models.Player(nil), byScore[s]...)
		e.rng.Shuffle(len(bracket), func(i, j int) {
			bracket[i], bracket[j] = bracket[j], bracket[i]
		})
		if len(bracket)%2 == 1 {
			floats = append(floats, bracket[len(bracket)-1])
			bracket = bracket[:len(bracket)-1]
		}
		for len(bracket) >= 2 {
			a := bracket[0]
			bracket = bracket[1:]
			idx := firstFresh(a, bracket, history)
			b := bracket[idx]
			bracket = append(bracket[:idx], bracket[idx+1:]...)
			out = append(out, &models.Pairing{
				Table:   table,
				PlayerA: a.UserID,
				PlayerB: b.UserID,
				Result:  models.ResultPending,
			})
			table++
		}
	}

	if len(floats)%2 == 1 {
		bye := floats[len(floats)-1]
		floats = floats[:len(floats)-1]
		out = append(out, &models.Pairing{
			Table:   table,
			PlayerA: bye.UserID,
			Bye:     true,
			Result:  models.ResultPending,
		})
		table++
	}
	for len(floats) >= 2 {
		a := floats[0]
		floats = floats[1:]
		idx := firstFresh(a, floats, history)
		b := floats[idx]
		floats = append(floats[:idx], floats[idx+1:]...)
		out = append(out, &models.Pairing{
			Table:   table,
			PlayerA: a.UserID,
			PlayerB: b.UserID,
			Result:  models.ResultPending,
		})
		table++
	}

	return out
}

// firstFresh returns the index of the first candidate the player has not
// faced, or 0 when every candidate would be a repeat. A repeat is accepted
// as a fallback, never an error.
func firstFresh(a *models.Player, candidates []*models.Player, h History) int {
	for i, c := range candidates {
		if !h.Met(a.UserID, c.UserID) {
			return i
		}
	}
	return 0
}
