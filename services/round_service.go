package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/CharlieAKAN/Coop-Keeper/delivery"
	"github.com/CharlieAKAN/Coop-Keeper/models"
	"github.com/CharlieAKAN/Coop-Keeper/pairings"
	"github.com/CharlieAKAN/Coop-Keeper/repositories"
	"github.com/CharlieAKAN/Coop-Keeper/roundtimer"
)

// Report outcomes are relative to the reporting player.
const (
	OutcomeMe       = "me"
	OutcomeOpponent = "opponent"
	OutcomeDraw     = "draw"
)

type NextRoundInput struct {
	// Force advances past unreported pairings, leaving them pending
	// forever.
	Force bool

	// CutSize switches a swiss+cut event into its elimination bracket,
	// seeding the top N of the standings. Must be a power of two.
	CutSize int
}

type ReportInput struct {
	// Table pins the report to a specific table. When zero the reporter's
	// own active pairing is used.
	Table     int
	Outcome   string
	GameWinsA *int
	GameWinsB *int
}

type OverrideInput struct {
	Table     int
	Result    models.Result
	Clear     bool
	GameWinsA *int
	GameWinsB *int
}

type RoundService interface {
	Start(ctx context.Context, tid string) (*models.Round, error)
	Next(ctx context.Context, tid string, input NextRoundInput) (*models.Round, error)
	GetRound(ctx context.Context, tid string, roundNum int) (*models.Round, error)
	Report(ctx context.Context, tid, reporterID string, input ReportInput) (*models.Pairing, error)
	Override(ctx context.Context, tid, adminID string, input OverrideInput) (*models.Pairing, error)
}

type roundService struct {
	repo      repositories.TournamentRepository
	engine    *pairings.Engine
	scheduler *roundtimer.Scheduler
	send      delivery.Sender
	locks     *tidLocker
	closer    *roundCloser
	logger    *slog.Logger
}

func NewRoundService(
	repo repositories.TournamentRepository,
	engine *pairings.Engine,
	scheduler *roundtimer.Scheduler,
	send delivery.Sender,
	locks *tidLocker,
	closer *roundCloser,
	logger *slog.Logger,
) RoundService {
	return &roundService{
		repo:      repo,
		engine:    engine,
		scheduler: scheduler,
		send:      send,
		locks:     locks,
		closer:    closer,
		logger:    logger,
	}
}

// Start pairs round 1 and moves the tournament into play.
func (s *roundService) Start(ctx context.Context, tid string) (*models.Round, error) {
	unlock := s.locks.Lock(tid)
	defer unlock()

	t, err := s.repo.Load(ctx, tid)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if t.Meta.Status != models.StatusRegistration {
		return nil, ErrTournamentAlreadyLive
	}

	pool := eligiblePlayers(t)
	if len(pool) < 2 {
		return nil, fmt.Errorf("%w: %d eligible", ErrNotEnoughPlayers, len(pool))
	}

	round := &models.Round{Pairings: s.engine.Pair(nil, pool)}
	return s.postRound(ctx, t, 1, round)
}

// Next pairs the following round. All current-round results must be in
// unless Force is set.
func (s *roundService) Next(ctx context.Context, tid string, input NextRoundInput) (*models.Round, error) {
	unlock := s.locks.Lock(tid)
	defer unlock()

	t, err := s.repo.Load(ctx, tid)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if t.Meta.Status != models.StatusInProgress || t.Meta.CurrentRound == 0 {
		return nil, ErrTournamentNotInProgress
	}

	current := t.Round(t.Meta.CurrentRound)
	if current != nil && current.PendingCount() > 0 && !input.Force {
		return nil, fmt.Errorf("%w: %d results outstanding", ErrRoundIncomplete, current.PendingCount())
	}

	nextNum := t.Meta.CurrentRound + 1

	var round *models.Round
	if input.CutSize > 0 {
		if t.Meta.Structure != models.StructureSwissCut {
			return nil, fmt.Errorf("%w: structure %s has no cut", ErrCutSizeInvalid, t.Meta.Structure)
		}
		seeds, err := cutSeeds(t, input.CutSize)
		if err != nil {
			return nil, err
		}
		round = &models.Round{Pairings: pairings.Cut(seeds)}
	} else {
		pool := eligiblePlayers(t)
		if len(pool) < 2 {
			return nil, fmt.Errorf("%w: %d eligible", ErrNotEnoughPlayers, len(pool))
		}
		round = &models.Round{Pairings: s.engine.Pair(t.PriorRounds(nextNum), pool)}
	}

	return s.postRound(ctx, t, nextNum, round)
}

// cutSeeds takes the top N of the standings in seed order.
func cutSeeds(t *models.Tournament, size int) ([]*models.Player, error) {
	if size < 2 || size&(size-1) != 0 {
		return nil, fmt.Errorf("%w: %d is not a power of two", ErrCutSizeInvalid, size)
	}
	standing := sortedStandings(t)
	if size > len(standing) {
		return nil, fmt.Errorf("%w: cut of %d from %d players", ErrCutSizeInvalid, size, len(standing))
	}
	return standing[:size], nil
}

// postRound persists the new round, announces pairings, notifies seated
// players in their threads, and arms the announcement timers.
func (s *roundService) postRound(ctx context.Context, t *models.Tournament, roundNum int, round *models.Round) (*models.Round, error) {
	now := time.Now().UTC()
	t.SetRound(roundNum, round)

	roundMins := t.Meta.RoundTimeMinutes
	if roundMins <= 0 {
		roundMins = 35
	}
	t.Meta.RoundSchedule = &models.RoundSchedule{
		Round:        roundNum,
		PostedAt:     now,
		PrepMinutes:  int(roundtimer.DefaultPrepTime.Minutes()),
		RoundMinutes: roundMins,
		Overtime:     t.Meta.Overtime,
	}

	if err := s.repo.Save(ctx, t); err != nil {
		return nil, mapRepoError(err)
	}

	s.announcePairings(t, roundNum, round)
	s.scheduler.Arm(timerConfig(t, roundNum))

	s.logger.Info("round posted",
		slog.String("tid", t.Meta.TID),
		slog.Int("round", roundNum),
		slog.Int("tables", len(round.Pairings)))
	return round, nil
}

// GetRound returns the stored pairings for a posted round, read-only.
func (s *roundService) GetRound(ctx context.Context, tid string, roundNum int) (*models.Round, error) {
	t, err := s.repo.Load(ctx, tid)
	if err != nil {
		return nil, mapRepoError(err)
	}
	round := t.Round(roundNum)
	if round == nil {
		return nil, fmt.Errorf("%w: round %d", ErrRoundNotFound, roundNum)
	}
	return round, nil
}

func (s *roundService) announcePairings(t *models.Tournament, roundNum int, round *models.Round) {
	chanID := firstNonEmpty(t.Meta.PairingChannelID, t.Meta.ChannelID)

	var b strings.Builder
	fmt.Fprintf(&b, "Round %d pairings:\n", roundNum)
	for _, pr := range round.Pairings {
		label := t.Meta.Tables.Label(pr.Table)
		if pr.Bye {
			fmt.Fprintf(&b, "%s: %s has the bye\n", label, s.displayName(t, pr.PlayerA))
			continue
		}
		fmt.Fprintf(&b, "%s: %s vs %s\n", label, s.displayName(t, pr.PlayerA), s.displayName(t, pr.PlayerB))
	}
	msg := delivery.NewMessage(delivery.TypePairings, t.Meta.TID, b.String())
	if err := s.send.SendToChannel(chanID, msg); err != nil {
		s.logger.Warn("pairings announcement failed",
			slog.String("tid", t.Meta.TID), slog.Any("error", err))
	}

	// Thread notices fan out concurrently; a failed notice never blocks
	// the round.
	var g errgroup.Group
	g.SetLimit(8)
	for _, pr := range round.Pairings {
		pr := pr
		g.Go(func() error {
			s.notifySeat(t, roundNum, pr, pr.PlayerA)
			if !pr.Bye {
				s.notifySeat(t, roundNum, pr, pr.PlayerB)
			}
			return nil
		})
	}
	g.Wait()
}

func (s *roundService) notifySeat(t *models.Tournament, roundNum int, pr *models.Pairing, userID string) {
	var content string
	if pr.Bye {
		content = fmt.Sprintf("Round %d: you have the bye. Report it to collect the win.", roundNum)
	} else {
		content = fmt.Sprintf("Round %d: you play %s at %s.",
			roundNum, s.displayName(t, pr.Opponent(userID)), t.Meta.Tables.Label(pr.Table))
	}
	msg := delivery.NewMessage(delivery.TypeThreadNotice, t.Meta.TID, content)
	fallback := firstNonEmpty(t.Meta.PairingChannelID, t.Meta.ChannelID)
	if err := s.send.SendToUserThread(t.Meta.TID, userID, msg, fallback); err != nil {
		s.logger.Warn("seat notice failed",
			slog.String("tid", t.Meta.TID),
			slog.String("userId", userID),
			slog.Any("error", err))
	}
}

func (s *roundService) displayName(t *models.Tournament, userID string) string {
	if p, ok := t.Players[userID]; ok && p.DisplayName != "" {
		return p.DisplayName
	}
	return userID
}

// Report records a result for the reporter's match. Each pairing accepts
// exactly one report; corrections go through Override.
func (s *roundService) Report(ctx context.Context, tid, reporterID string, input ReportInput) (*models.Pairing, error) {
	unlock := s.locks.Lock(tid)
	defer unlock()

	t, err := s.repo.Load(ctx, tid)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if t.Meta.Status != models.StatusInProgress || t.Meta.CurrentRound == 0 {
		return nil, ErrNoActiveRound
	}
	round := t.Round(t.Meta.CurrentRound)
	if round == nil {
		return nil, ErrNoActiveRound
	}

	var pr *models.Pairing
	if input.Table > 0 {
		pr = round.PairingAt(input.Table)
		if pr == nil {
			return nil, ErrTableNotFound
		}
		if !pr.Seats(reporterID) {
			return nil, ErrNotSeated
		}
		if !pr.Pending() {
			return nil, ErrAlreadyReported
		}
	} else {
		var open []*models.Pairing
		seated := false
		for _, cand := range round.Pairings {
			if !cand.Seats(reporterID) {
				continue
			}
			seated = true
			if cand.Pending() {
				open = append(open, cand)
			}
		}
		switch {
		case len(open) == 1:
			pr = open[0]
		case len(open) > 1:
			return nil, ErrAmbiguousTable
		case seated:
			return nil, ErrAlreadyReported
		default:
			return nil, ErrNotSeated
		}
	}

	now := time.Now().UTC()

	if pr.Bye {
		// A bye only ever scores as a win for the seated player.
		if input.Outcome != OutcomeMe {
			return nil, fmt.Errorf("%w: a bye can only be reported as a win", ErrInvalidResult)
		}
		pr.Result = models.ResultA
		pr.ReportedBy = reporterID
		pr.ReportedAt = &now
		if p, ok := t.Players[pr.PlayerA]; ok {
			applyByeScoring(p)
		}
	} else {
		var res models.Result
		switch input.Outcome {
		case OutcomeDraw:
			res = models.ResultDraw
		case OutcomeMe:
			res = models.ResultA
			if pr.PlayerB == reporterID {
				res = models.ResultB
			}
		case OutcomeOpponent:
			res = models.ResultB
			if pr.PlayerB == reporterID {
				res = models.ResultA
			}
		default:
			return nil, fmt.Errorf("%w: outcome must be me, opponent or draw", ErrInvalidResult)
		}

		pr.Result = res
		pr.ReportedBy = reporterID
		pr.ReportedAt = &now
		pr.GameWinsA = input.GameWinsA
		pr.GameWinsB = input.GameWinsB

		pA, pB := t.Players[pr.PlayerA], t.Players[pr.PlayerB]
		if pA == nil || pB == nil {
			return nil, ErrPlayerNotFound
		}
		applyScoring(pA, pB, res)
	}

	completed := markRoundEnded(t, t.Meta.CurrentRound, now)
	if err := s.repo.Save(ctx, t); err != nil {
		return nil, mapRepoError(err)
	}

	s.announceResult(t, pr)
	if completed {
		s.closer.close(t, t.Meta.CurrentRound)
	}
	return pr, nil
}

func (s *roundService) announceResult(t *models.Tournament, pr *models.Pairing) {
	chanID := firstNonEmpty(t.Meta.ResultsChannelID, t.Meta.ChannelID)
	label := t.Meta.Tables.Label(pr.Table)

	var content string
	switch {
	case pr.Bye:
		content = fmt.Sprintf("%s: %s takes the bye win.", label, s.displayName(t, pr.PlayerA))
	case pr.Result == models.ResultDraw:
		content = fmt.Sprintf("%s: %s and %s drew.",
			label, s.displayName(t, pr.PlayerA), s.displayName(t, pr.PlayerB))
	case pr.Result == models.ResultA:
		content = fmt.Sprintf("%s: %s defeats %s.",
			label, s.displayName(t, pr.PlayerA), s.displayName(t, pr.PlayerB))
	case pr.Result == models.ResultB:
		content = fmt.Sprintf("%s: %s defeats %s.",
			label, s.displayName(t, pr.PlayerB), s.displayName(t, pr.PlayerA))
	default:
		return
	}
	msg := delivery.NewMessage(delivery.TypeResult, t.Meta.TID, content)
	if err := s.send.SendToChannel(chanID, msg); err != nil {
		s.logger.Warn("result announcement failed",
			slog.String("tid", t.Meta.TID), slog.Any("error", err))
	}
}

// Override corrects or clears a reported result. The previous result is
// rolled back before the new one is applied, so standings never drift.
func (s *roundService) Override(ctx context.Context, tid, adminID string, input OverrideInput) (*models.Pairing, error) {
	unlock := s.locks.Lock(tid)
	defer unlock()

	t, err := s.repo.Load(ctx, tid)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if t.Meta.Status != models.StatusInProgress || t.Meta.CurrentRound == 0 {
		return nil, ErrNoActiveRound
	}
	round := t.Round(t.Meta.CurrentRound)
	if round == nil {
		return nil, ErrNoActiveRound
	}
	pr := round.PairingAt(input.Table)
	if pr == nil {
		return nil, ErrTableNotFound
	}

	if !input.Clear && !models.ValidResult(input.Result) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidResult, input.Result)
	}
	if input.Clear && pr.Pending() {
		return nil, fmt.Errorf("%w: nothing to clear", ErrInvalidResult)
	}
	if pr.Bye && !input.Clear && input.Result != models.ResultA {
		return nil, fmt.Errorf("%w: a bye can only resolve as a win for the seated player", ErrInvalidResult)
	}

	s.rollback(t, pr)

	if input.Clear {
		pr.ClearResult()
		// The round is open again; drop the completion stamp.
		if t.Meta.RoundSchedule != nil && t.Meta.RoundSchedule.Round == t.Meta.CurrentRound {
			t.Meta.RoundSchedule.EndedAt = nil
		}
		if err := s.repo.Save(ctx, t); err != nil {
			return nil, mapRepoError(err)
		}
		s.logger.Info("result cleared",
			slog.String("tid", tid),
			slog.Int("table", input.Table),
			slog.String("admin", adminID))
		return pr, nil
	}

	now := time.Now().UTC()
	pr.Result = input.Result
	pr.ReportedBy = adminID
	pr.ReportedAt = &now
	pr.GameWinsA = input.GameWinsA
	pr.GameWinsB = input.GameWinsB
	pr.NoShow = false
	pr.DropConcession = false

	if pr.Bye {
		if p, ok := t.Players[pr.PlayerA]; ok {
			applyByeScoring(p)
		}
	} else {
		pA, pB := t.Players[pr.PlayerA], t.Players[pr.PlayerB]
		if pA == nil || pB == nil {
			return nil, ErrPlayerNotFound
		}
		applyScoring(pA, pB, input.Result)
	}

	completed := markRoundEnded(t, t.Meta.CurrentRound, now)
	if err := s.repo.Save(ctx, t); err != nil {
		return nil, mapRepoError(err)
	}

	s.announceResult(t, pr)
	if completed {
		s.closer.close(t, t.Meta.CurrentRound)
	}
	return pr, nil
}

// rollback undoes the scoring effect of the pairing's current result, if
// any.
func (s *roundService) rollback(t *models.Tournament, pr *models.Pairing) {
	if pr.Pending() {
		return
	}
	if pr.Bye {
		if p, ok := t.Players[pr.PlayerA]; ok {
			rollbackByeScoring(p)
		}
		return
	}
	pA, pB := t.Players[pr.PlayerA], t.Players[pr.PlayerB]
	if pA == nil || pB == nil {
		return
	}
	rollbackScoring(pA, pB, pr.Result)
}
