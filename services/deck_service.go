package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/CharlieAKAN/Coop-Keeper/deckrules"
	"github.com/CharlieAKAN/Coop-Keeper/delivery"
	"github.com/CharlieAKAN/Coop-Keeper/models"
	"github.com/CharlieAKAN/Coop-Keeper/repositories"
)

type DeckService interface {
	Submit(ctx context.Context, tid, userID, text string) (*models.Deck, error)
	Approve(ctx context.Context, tid, userID, reviewerID string) (*models.Deck, error)
	Reject(ctx context.Context, tid, userID, reviewerID, reason string) (*models.Deck, error)
	Pull(ctx context.Context, tid, userID string) (*models.Deck, error)
}

type deckService struct {
	repo   repositories.TournamentRepository
	rules  deckrules.Source
	locks  *tidLocker
	events chan<- delivery.DeckSubmitted
	logger *slog.Logger
}

func NewDeckService(
	repo repositories.TournamentRepository,
	rules deckrules.Source,
	locks *tidLocker,
	events chan<- delivery.DeckSubmitted,
	logger *slog.Logger,
) DeckService {
	return &deckService{repo: repo, rules: rules, locks: locks, events: events, logger: logger}
}

const parsedSampleSize = 10

// Submit parses and validates a decklist, then stores it pending review.
// Resubmitting replaces a pending or rejected deck; approved decks are
// locked and must be rejected before a new list is accepted.
func (s *deckService) Submit(ctx context.Context, tid, userID, text string) (*models.Deck, error) {
	normalized := deckrules.Normalize(text)
	if normalized == "" {
		return nil, ErrEmptyDecklist
	}

	parsed := deckrules.Parse(normalized)
	if len(parsed.Lines) == 0 {
		return nil, ErrEmptyDecklist
	}

	rules, err := s.rules.Load()
	if err != nil {
		return nil, fmt.Errorf("load deck rules: %w", err)
	}
	check := deckrules.Validate(rules, parsed.Lines)
	if !check.OK {
		return nil, &DeckLegalityError{Reasons: check.Errors}
	}

	unlock := s.locks.Lock(tid)
	defer unlock()

	t, err := s.repo.Load(ctx, tid)
	if err != nil {
		return nil, mapRepoError(err)
	}
	p, ok := t.Players[userID]
	if !ok {
		return nil, ErrPlayerNotFound
	}
	if p.Deck != nil && p.Deck.Locked {
		return nil, ErrDeckLocked
	}

	now := time.Now().UTC()
	p.Deck = &models.Deck{
		Text:        normalized,
		Parsed:      parsed,
		Status:      models.DeckPending,
		SubmittedAt: &now,
	}

	if err := s.repo.Save(ctx, t); err != nil {
		return nil, mapRepoError(err)
	}

	sample := make([]string, 0, parsedSampleSize)
	for _, l := range parsed.Lines {
		if len(sample) == parsedSampleSize {
			break
		}
		sample = append(sample, fmt.Sprintf("%dx %s", l.Qty, l.Code))
	}
	ev := delivery.DeckSubmitted{
		TID:           tid,
		UserID:        userID,
		DisplayName:   p.DisplayName,
		CardTotal:     parsed.Total,
		InvalidLines:  len(parsed.Invalid),
		ParsedSample:  sample,
		ReviewChannel: firstNonEmpty(t.Meta.ReviewChannelID, t.Meta.ChannelID),
	}
	select {
	case s.events <- ev:
	default:
		s.logger.Warn("deck review event dropped, queue full",
			slog.String("tid", tid), slog.String("userId", userID))
	}

	s.logger.Info("deck submitted",
		slog.String("tid", tid),
		slog.String("userId", userID),
		slog.Int("cards", parsed.Total))
	return p.Deck, nil
}

// Approve locks the deck against further resubmission. Reviewers cannot
// sign off on their own deck.
func (s *deckService) Approve(ctx context.Context, tid, userID, reviewerID string) (*models.Deck, error) {
	if reviewerID == userID {
		return nil, fmt.Errorf("%w: cannot review your own deck", ErrPermissionDenied)
	}

	unlock := s.locks.Lock(tid)
	defer unlock()

	t, err := s.repo.Load(ctx, tid)
	if err != nil {
		return nil, mapRepoError(err)
	}
	p, ok := t.Players[userID]
	if !ok {
		return nil, ErrPlayerNotFound
	}
	if p.Deck == nil || !p.Deck.Submitted() {
		return nil, ErrNoDeckOnFile
	}

	now := time.Now().UTC()
	p.Deck.Status = models.DeckApproved
	p.Deck.Locked = true
	p.Deck.ApprovedBy = reviewerID
	p.Deck.ApprovedAt = &now
	p.Deck.RejectedBy = ""
	p.Deck.RejectedAt = nil

	if err := s.repo.Save(ctx, t); err != nil {
		return nil, mapRepoError(err)
	}
	return p.Deck, nil
}

// Reject unlocks the deck so the player can submit a corrected list.
func (s *deckService) Reject(ctx context.Context, tid, userID, reviewerID, reason string) (*models.Deck, error) {
	if reviewerID == userID {
		return nil, fmt.Errorf("%w: cannot review your own deck", ErrPermissionDenied)
	}

	unlock := s.locks.Lock(tid)
	defer unlock()

	t, err := s.repo.Load(ctx, tid)
	if err != nil {
		return nil, mapRepoError(err)
	}
	p, ok := t.Players[userID]
	if !ok {
		return nil, ErrPlayerNotFound
	}
	if p.Deck == nil || !p.Deck.Submitted() {
		return nil, ErrNoDeckOnFile
	}

	now := time.Now().UTC()
	p.Deck.Status = models.DeckRejected
	p.Deck.Locked = false
	p.Deck.RejectedBy = reviewerID
	p.Deck.RejectedAt = &now

	if err := s.repo.Save(ctx, t); err != nil {
		return nil, mapRepoError(err)
	}
	s.logger.Info("deck rejected",
		slog.String("tid", tid),
		slog.String("userId", userID),
		slog.String("reason", reason))
	return p.Deck, nil
}

// Pull returns the stored deck for review without mutating it.
func (s *deckService) Pull(ctx context.Context, tid, userID string) (*models.Deck, error) {
	t, err := s.repo.Load(ctx, tid)
	if err != nil {
		return nil, mapRepoError(err)
	}
	p, ok := t.Players[userID]
	if !ok {
		return nil, ErrPlayerNotFound
	}
	if p.Deck == nil || !p.Deck.Submitted() {
		return nil, ErrNoDeckOnFile
	}
	return p.Deck, nil
}
