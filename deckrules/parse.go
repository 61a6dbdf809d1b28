package deckrules

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/CharlieAKAN/Coop-Keeper/models"
)

var (
	lineRx      = regexp.MustCompile(`^(?:(\d+)\s*(?:[xX]\s*|\s))?([A-Za-z][A-Za-z0-9\-._/]+)\s*$`)
	tokenRx     = regexp.MustCompile(`(\d+)\s*[xX]?\s*([A-Za-z][A-Za-z0-9\-._/]+)`)
	fenceOpenRx = regexp.MustCompile("^```[^\n]*\n")
)

// Normalize strips code fences, smart quotes and CRLF line endings from a
// pasted decklist.
func Normalize(text string) string {
	t := strings.TrimSpace(text)
	if strings.HasPrefix(t, "```") {
		t = fenceOpenRx.ReplaceAllString(t, "")
		t = strings.TrimSuffix(t, "```")
	}
	t = strings.ReplaceAll(t, "\r\n", "\n")
	replacer := strings.NewReplacer("“", `"`, "”", `"`, "‘", "'", "’", "'")
	return strings.TrimSpace(replacer.Replace(t))
}

// Parse tokenizes decklist text into {qty, code} lines. It first tries
// strict line-by-line parsing ("4xOP08-010", "1x OP08-001", bare codes
// count as one copy); if any line fails it falls back to scanning the whole
// text for quantity-code tokens, which handles one-line pastes. Lines that
// match nothing land in the Invalid bucket.
func Parse(text string) models.ParsedDeck {
	deck := models.ParsedDeck{Lines: []models.ParsedLine{}, Invalid: []string{}}
	if text == "" {
		return deck
	}

	cleaned := strings.NewReplacer(",", "\n", "，", "\n", ";", "\n").Replace(text)

	lineMode := true
	var lines []models.ParsedLine
	for _, raw := range strings.Split(cleaned, "\n") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		m := lineRx.FindStringSubmatch(raw)
		if m == nil {
			lineMode = false
			break
		}
		qty := 1
		if m[1] != "" {
			qty, _ = strconv.Atoi(m[1])
		}
		lines = append(lines, models.ParsedLine{
			Qty:  qty,
			Code: strings.ToUpper(m[2]),
			Raw:  raw,
		})
	}

	if !lineMode {
		lines = nil
		matches := tokenRx.FindAllStringSubmatch(text, -1)
		if len(matches) == 0 {
			deck.Invalid = append(deck.Invalid, strings.TrimSpace(text))
			return deck
		}
		for _, m := range matches {
			qty, _ := strconv.Atoi(m[1])
			code := strings.ToUpper(m[2])
			lines = append(lines, models.ParsedLine{
				Qty:  qty,
				Code: code,
				Raw:  m[1] + "x" + code,
			})
		}
	}

	deck.Lines = lines
	for _, l := range lines {
		deck.Total += l.Qty
	}
	return deck
}
