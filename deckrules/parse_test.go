package deckrules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CharlieAKAN/Coop-Keeper/models"
)

func TestNormalizeStripsFencesAndSmartQuotes(t *testing.T) {
	in := "```\n4x OP08-010\n“quoted”\n```"
	out := Normalize(in)
	assert.Equal(t, "4x OP08-010\n\"quoted\"", out)
}

func TestNormalizeCRLF(t *testing.T) {
	assert.Equal(t, "a\nb", Normalize("a\r\nb\r\n"))
}

func TestParseLineForms(t *testing.T) {
	testCases := []struct {
		name string
		in   string
		want []models.ParsedLine
	}{
		{
			name: "qty with x and space",
			in:   "4x OP08-010",
			want: []models.ParsedLine{{Qty: 4, Code: "OP08-010", Raw: "4x OP08-010"}},
		},
		{
			name: "qty with x no space",
			in:   "4xOP08-010",
			want: []models.ParsedLine{{Qty: 4, Code: "OP08-010", Raw: "4xOP08-010"}},
		},
		{
			name: "qty with bare space",
			in:   "2 ST01-001",
			want: []models.ParsedLine{{Qty: 2, Code: "ST01-001", Raw: "2 ST01-001"}},
		},
		{
			name: "bare code counts as one",
			in:   "OP01-001",
			want: []models.ParsedLine{{Qty: 1, Code: "OP01-001", Raw: "OP01-001"}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			deck := Parse(tc.in)
			assert.Equal(t, tc.want, deck.Lines)
		})
	}
}

func TestParseLowercasesAreNormalized(t *testing.T) {
	deck := Parse("4x op08-010")
	require.Len(t, deck.Lines, 1)
	assert.Equal(t, "OP08-010", deck.Lines[0].Code)
}

func TestParseCommaSeparatedSingleLine(t *testing.T) {
	deck := Parse("4x OP08-010, 2x OP08-001, 1x ST01-005")
	require.Len(t, deck.Lines, 3)
	assert.Equal(t, 7, deck.Total)
}

func TestParseTotalsSumQuantities(t *testing.T) {
	deck := Parse("4x OP08-010\n4x OP08-001\n2x ST01-005")
	assert.Equal(t, 10, deck.Total)
	assert.Empty(t, deck.Invalid)
}

func TestParseGarbageGoesToInvalid(t *testing.T) {
	deck := Parse("???!!!")
	assert.Empty(t, deck.Lines)
	require.Len(t, deck.Invalid, 1)
}

func TestParseEmpty(t *testing.T) {
	deck := Parse("")
	assert.Empty(t, deck.Lines)
	assert.Zero(t, deck.Total)
}
