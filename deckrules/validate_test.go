package deckrules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CharlieAKAN/Coop-Keeper/models"
)

func testRules() *Rules {
	r := &Rules{
		Game:             "optcg",
		EffectiveDate:    "2026-08-01",
		CopyLimitPerCard: 4,
		BannedCards:      []string{"OP02-099"},
		RestrictedCards:  map[string]int{"OP03-050": 1, "OP04-083": 0},
		BannedPairs: []BannedPair{
			{CardA: "OP05-001", ForbiddenWith: []string{"OP05-002", "OP05-003"}},
		},
	}
	r.normalize()
	return r
}

func lines(pairs ...models.ParsedLine) []models.ParsedLine { return pairs }

func TestValidateLegalDeck(t *testing.T) {
	res := Validate(testRules(), lines(
		models.ParsedLine{Qty: 4, Code: "OP08-010"},
		models.ParsedLine{Qty: 1, Code: "OP03-050"},
	))
	assert.True(t, res.OK)
	assert.Empty(t, res.Errors)
	assert.Equal(t, "2026-08-01", res.EffectiveDate)
}

func TestValidateCopyLimit(t *testing.T) {
	res := Validate(testRules(), lines(
		models.ParsedLine{Qty: 5, Code: "OP08-010"},
	))
	require.False(t, res.OK)
	assert.Contains(t, res.Errors, "OP08-010: 5 copies (limit 4)")
}

func TestValidateCopyLimitSumsDuplicateLines(t *testing.T) {
	res := Validate(testRules(), lines(
		models.ParsedLine{Qty: 3, Code: "OP08-010"},
		models.ParsedLine{Qty: 2, Code: "op08-010"},
	))
	require.False(t, res.OK)
	assert.Contains(t, res.Errors, "OP08-010: 5 copies (limit 4)")
}

func TestValidateBannedCard(t *testing.T) {
	res := Validate(testRules(), lines(
		models.ParsedLine{Qty: 1, Code: "OP02-099"},
	))
	require.False(t, res.OK)
	assert.Contains(t, res.Errors, "OP02-099 is banned")
}

func TestValidateRestrictedCount(t *testing.T) {
	res := Validate(testRules(), lines(
		models.ParsedLine{Qty: 2, Code: "OP03-050"},
	))
	require.False(t, res.OK)
	assert.Contains(t, res.Errors, "OP03-050: 2 copies (restricted to 1)")
}

func TestValidateRestrictedZeroIsEffectiveBan(t *testing.T) {
	res := Validate(testRules(), lines(
		models.ParsedLine{Qty: 1, Code: "OP04-083"},
	))
	require.False(t, res.OK)
	assert.Contains(t, res.Errors, "OP04-083: 1 copies (restricted to 0)")
}

func TestValidateBannedPair(t *testing.T) {
	res := Validate(testRules(), lines(
		models.ParsedLine{Qty: 1, Code: "OP05-001"},
		models.ParsedLine{Qty: 1, Code: "OP05-002"},
	))
	require.False(t, res.OK)
	assert.Contains(t, res.Errors, "banned pair: OP05-001 cannot be used with OP05-002")
}

func TestValidateBannedPairHalfIsFine(t *testing.T) {
	res := Validate(testRules(), lines(
		models.ParsedLine{Qty: 1, Code: "OP05-002"},
	))
	assert.True(t, res.OK)
}

func TestValidateCollectsEveryViolation(t *testing.T) {
	res := Validate(testRules(), lines(
		models.ParsedLine{Qty: 5, Code: "OP08-010"},
		models.ParsedLine{Qty: 1, Code: "OP02-099"},
		models.ParsedLine{Qty: 2, Code: "OP03-050"},
	))
	require.False(t, res.OK)
	assert.Len(t, res.Errors, 3)
}

func TestStaticSourceAppliesDefaults(t *testing.T) {
	src := StaticSource{Rules: &Rules{BannedCards: []string{"op01-001"}}}
	r, err := src.Load()
	require.NoError(t, err)
	assert.Equal(t, 4, r.CopyLimitPerCard)
	assert.Equal(t, []string{"OP01-001"}, r.BannedCards)
}
