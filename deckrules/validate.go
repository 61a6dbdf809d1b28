package deckrules

import (
	"fmt"
	"sort"
	"strings"

	"github.com/CharlieAKAN/Coop-Keeper/models"
)

// CheckResult itemizes every rule violation found in a decklist. OK is
// true iff no errors were produced.
type CheckResult struct {
	OK            bool
	Errors        []string
	EffectiveDate string
}

// Validate checks parsed decklist lines against the rules. All four checks
// run regardless of earlier failures so the player sees every problem at
// once: copy limit, ban list, restricted counts (a cap of 0 is an
// effective ban), and banned pairs.
func Validate(rules *Rules, lines []models.ParsedLine) CheckResult {
	res := CheckResult{EffectiveDate: rules.EffectiveDate}

	counts := make(map[string]int)
	for _, l := range lines {
		counts[strings.ToUpper(l.Code)] += l.Qty
	}
	codes := make([]string, 0, len(counts))
	for c := range counts {
		codes = append(codes, c)
	}
	sort.Strings(codes)

	limit := rules.CopyLimitPerCard
	for _, code := range codes {
		if n := counts[code]; n > limit {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %d copies (limit %d)", code, n, limit))
		}
	}

	banned := make(map[string]bool, len(rules.BannedCards))
	for _, c := range rules.BannedCards {
		banned[c] = true
	}
	for _, code := range codes {
		if banned[code] {
			res.Errors = append(res.Errors, fmt.Sprintf("%s is banned", code))
		}
	}

	restrictedCodes := make([]string, 0, len(rules.RestrictedCards))
	for c := range rules.RestrictedCards {
		restrictedCodes = append(restrictedCodes, c)
	}
	sort.Strings(restrictedCodes)
	for _, code := range restrictedCodes {
		cap := rules.RestrictedCards[code]
		if have := counts[code]; have > cap {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %d copies (restricted to %d)", code, have, cap))
		}
	}

	for _, pair := range rules.BannedPairs {
		if pair.CardA == "" || len(pair.ForbiddenWith) == 0 {
			continue
		}
		if counts[pair.CardA] == 0 {
			continue
		}
		var present []string
		for _, b := range pair.ForbiddenWith {
			if counts[b] > 0 {
				present = append(present, b)
			}
		}
		if len(present) > 0 {
			res.Errors = append(res.Errors, fmt.Sprintf("banned pair: %s cannot be used with %s",
				pair.CardA, strings.Join(present, ", ")))
		}
	}

	res.OK = len(res.Errors) == 0
	return res
}
