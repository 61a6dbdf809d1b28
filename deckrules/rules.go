package deckrules

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

const defaultCopyLimit = 4

type BannedPair struct {
	CardA         string   `json:"cardA"`
	ForbiddenWith []string `json:"forbiddenWith"`
}

// Rules is the legality rules document. Card codes are normalized to
// upper case on load.
type Rules struct {
	Game             string         `json:"game"`
	EffectiveDate    string         `json:"effectiveDate"`
	CopyLimitPerCard int            `json:"copyLimitPerCardNumber"`
	BannedCards      []string       `json:"bannedCards"`
	RestrictedCards  map[string]int `json:"restrictedCards"`
	BannedPairs      []BannedPair   `json:"bannedPairs"`
}

// Source loads the current rules document. Loaded once per validation so
// rules updates take effect without a restart.
type Source interface {
	Load() (*Rules, error)
}

type FileSource struct {
	Path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

func (s *FileSource) Load() (*Rules, error) {
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read deck rules %s: %w", s.Path, err)
	}
	var r Rules
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("parse deck rules %s: %w", s.Path, err)
	}
	r.normalize()
	return &r, nil
}

func (r *Rules) normalize() {
	if r.CopyLimitPerCard <= 0 {
		r.CopyLimitPerCard = defaultCopyLimit
	}
	for i, c := range r.BannedCards {
		r.BannedCards[i] = strings.ToUpper(c)
	}
	restricted := make(map[string]int, len(r.RestrictedCards))
	for code, limit := range r.RestrictedCards {
		restricted[strings.ToUpper(code)] = limit
	}
	r.RestrictedCards = restricted
	for i := range r.BannedPairs {
		r.BannedPairs[i].CardA = strings.ToUpper(r.BannedPairs[i].CardA)
		for j, c := range r.BannedPairs[i].ForbiddenWith {
			r.BannedPairs[i].ForbiddenWith[j] = strings.ToUpper(c)
		}
	}
}

// StaticSource returns fixed rules, used in tests.
type StaticSource struct {
	Rules *Rules
}

func (s StaticSource) Load() (*Rules, error) {
	r := *s.Rules
	r.normalize()
	return &r, nil
}
