package pairings

import "github.com/CharlieAKAN/Coop-Keeper/models"

// Cut seeds the first single-elimination round of a top cut: seed 1 plays
// seed N, seed 2 plays seed N-1, and so on. Seeds must already be in
// standings order and their count must be an even number >= 2; callers
// validate the cut size.
func Cut(seeds []*models.Player) []*models.Pairing {
	out := make([]*models.Pairing, 0, len(seeds)/2)
	table := 1
	for lo, hi := 0, len(seeds)-1; lo < hi; lo, hi = lo+1, hi-1 {
		out = append(out, &models.Pairing{
			Table:   table,
			PlayerA: seeds[lo].UserID,
			PlayerB: seeds[hi].UserID,
			Result:  models.ResultPending,
		})
		table++
	}
	return out
}
