package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/CharlieAKAN/Coop-Keeper/delivery"
	"github.com/CharlieAKAN/Coop-Keeper/models"
	"github.com/CharlieAKAN/Coop-Keeper/repositories"
)

type PlayerService interface {
	Register(ctx context.Context, tid, userID, displayName string) (*models.Player, error)
	MarkPaid(ctx context.Context, tid, userID string) (*models.Player, error)
	SetPaymentStatus(ctx context.Context, tid, userID string, status models.PaymentStatus) (*models.Player, error)
	Drop(ctx context.Context, tid, userID, reason string, confirm bool) (*models.Player, error)
	ReportNoShow(ctx context.Context, tid, reporterID string, confirm bool) (*models.Pairing, error)
	MarkNoShow(ctx context.Context, tid, targetID string, confirm bool) (*models.Pairing, error)
}

type playerService struct {
	repo   repositories.TournamentRepository
	locks  *tidLocker
	closer *roundCloser
	send   delivery.Sender
	logger *slog.Logger
}

func NewPlayerService(
	repo repositories.TournamentRepository,
	locks *tidLocker,
	closer *roundCloser,
	send delivery.Sender,
	logger *slog.Logger,
) PlayerService {
	return &playerService{repo: repo, locks: locks, closer: closer, send: send, logger: logger}
}

// Register adds the caller to the roster. Registering twice just refreshes
// the display name.
func (s *playerService) Register(ctx context.Context, tid, userID, displayName string) (*models.Player, error) {
	unlock := s.locks.Lock(tid)
	defer unlock()

	t, err := s.repo.Load(ctx, tid)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if t.Meta.Status != models.StatusRegistration {
		return nil, ErrRegistrationClosed
	}

	if p, ok := t.Players[userID]; ok {
		p.DisplayName = displayName
		if err := s.repo.Save(ctx, t); err != nil {
			return nil, mapRepoError(err)
		}
		return p, nil
	}

	if t.Meta.MaxPlayers > 0 && len(t.Players) >= t.Meta.MaxPlayers {
		return nil, fmt.Errorf("%w: tournament is full (%d players)", ErrRegistrationClosed, t.Meta.MaxPlayers)
	}

	p := models.NewPlayer(userID, displayName)
	t.Players[userID] = p
	if err := s.repo.Save(ctx, t); err != nil {
		return nil, mapRepoError(err)
	}
	s.logger.Info("player registered", slog.String("tid", tid), slog.String("userId", userID))
	return p, nil
}

// MarkPaid is the player's "I paid" claim. It moves the payment status to
// pending and pings the review channel; an admin confirms or rejects it.
func (s *playerService) MarkPaid(ctx context.Context, tid, userID string) (*models.Player, error) {
	unlock := s.locks.Lock(tid)
	defer unlock()

	t, err := s.repo.Load(ctx, tid)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if !t.Meta.PaidRequired {
		return nil, fmt.Errorf("%w: tournament has no entry fee", ErrValidationFailed)
	}
	p, ok := t.Players[userID]
	if !ok {
		return nil, ErrPlayerNotFound
	}
	switch p.PaymentStatus {
	case models.PaymentVerified:
		return nil, fmt.Errorf("%w: payment already verified", ErrValidationFailed)
	case models.PaymentPending:
		return p, nil
	}

	p.PaymentStatus = models.PaymentPending
	if err := s.repo.Save(ctx, t); err != nil {
		return nil, mapRepoError(err)
	}

	chanID := firstNonEmpty(t.Meta.ReviewChannelID, t.Meta.ChannelID)
	content := fmt.Sprintf("%s marked their entry as paid. Verify or reject.", p.DisplayName)
	msg := delivery.NewMessage(delivery.TypePaymentReview, tid, content)
	if err := s.send.SendToChannel(chanID, msg); err != nil {
		s.logger.Warn("payment review notice failed",
			slog.String("tid", tid), slog.Any("error", err))
	}
	return p, nil
}

// SetPaymentStatus is an admin action; any transition is allowed, including
// revoking a verification.
func (s *playerService) SetPaymentStatus(ctx context.Context, tid, userID string, status models.PaymentStatus) (*models.Player, error) {
	switch status {
	case models.PaymentUnpaid, models.PaymentPending, models.PaymentVerified:
	default:
		return nil, fmt.Errorf("%w: unknown payment status %q", ErrValidationFailed, status)
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

	wasPending := p.PaymentStatus == models.PaymentPending
	p.PaymentStatus = status
	p.Paid = status == models.PaymentVerified
	if err := s.repo.Save(ctx, t); err != nil {
		return nil, mapRepoError(err)
	}

	var notice string
	switch {
	case status == models.PaymentVerified:
		notice = "Your payment has been verified."
	case wasPending && status == models.PaymentUnpaid:
		notice = "Your payment could not be verified. Check with the organizer."
	}
	if notice != "" {
		msg := delivery.NewMessage(delivery.TypeThreadNotice, tid, notice)
		fallback := firstNonEmpty(t.Meta.ReviewChannelID, t.Meta.ChannelID)
		if err := s.send.SendToUserThread(tid, userID, msg, fallback); err != nil {
			s.logger.Warn("payment status notice failed",
				slog.String("tid", tid),
				slog.String("userId", userID),
				slog.Any("error", err))
		}
	}
	return p, nil
}

// Drop removes a player from future pairings. When the player is seated in
// a live match with no result yet, the opponent is awarded the win as a
// drop concession, which may complete the round.
func (s *playerService) Drop(ctx context.Context, tid, userID, reason string, confirm bool) (*models.Player, error) {
	if !confirm {
		return nil, ErrConfirmationRequired
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
	if p.Dropped {
		return nil, ErrAlreadyDropped
	}

	now := time.Now().UTC()
	p.Dropped = true
	p.DroppedAt = &now
	p.DropReason = reason

	var completedRound int
	if t.Meta.Status == models.StatusInProgress && t.Meta.CurrentRound > 0 {
		round := t.Round(t.Meta.CurrentRound)
		if round != nil {
			if pr := round.ActivePairingFor(userID); pr != nil && !pr.Bye {
				res := models.ResultB
				if pr.PlayerB == userID {
					res = models.ResultA
				}
				pr.Result = res
				pr.ReportedBy = "system:drop"
				pr.ReportedAt = &now
				pr.DropConcession = true
				pA, pB := t.Players[pr.PlayerA], t.Players[pr.PlayerB]
				if pA != nil && pB != nil {
					applyScoring(pA, pB, res)
				}
				if markRoundEnded(t, t.Meta.CurrentRound, now) {
					completedRound = t.Meta.CurrentRound
				}
			}
		}
	}

	if err := s.repo.Save(ctx, t); err != nil {
		return nil, mapRepoError(err)
	}
	s.logger.Info("player dropped",
		slog.String("tid", tid),
		slog.String("userId", userID),
		slog.Bool("concession", completedRound > 0))
	if completedRound > 0 {
		s.closer.close(t, completedRound)
	}
	return p, nil
}

// ReportNoShow concedes the reporter's current match against an absent
// opponent. The reporter takes the win; the pairing is flagged.
func (s *playerService) ReportNoShow(ctx context.Context, tid, reporterID string, confirm bool) (*models.Pairing, error) {
	if !confirm {
		return nil, ErrConfirmationRequired
	}

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

	pr := round.ActivePairingFor(reporterID)
	if pr == nil {
		return nil, ErrNoActiveMatch
	}
	if pr.Bye {
		return nil, ErrNoShowOnBye
	}

	now := time.Now().UTC()
	res := models.ResultA
	if pr.PlayerB == reporterID {
		res = models.ResultB
	}
	pr.Result = res
	pr.ReportedBy = reporterID
	pr.ReportedAt = &now
	pr.NoShow = true

	pA, pB := t.Players[pr.PlayerA], t.Players[pr.PlayerB]
	if pA == nil || pB == nil {
		return nil, ErrPlayerNotFound
	}
	applyScoring(pA, pB, res)

	completed := markRoundEnded(t, t.Meta.CurrentRound, now)
	if err := s.repo.Save(ctx, t); err != nil {
		return nil, mapRepoError(err)
	}
	if completed {
		s.closer.close(t, t.Meta.CurrentRound)
	}
	return pr, nil
}

// MarkNoShow is the admin variant: the target's match resolves as a win
// for their opponent.
func (s *playerService) MarkNoShow(ctx context.Context, tid, targetID string, confirm bool) (*models.Pairing, error) {
	if !confirm {
		return nil, ErrConfirmationRequired
	}

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

	pr := round.ActivePairingFor(targetID)
	if pr == nil {
		return nil, ErrNoActiveMatch
	}
	if pr.Bye {
		return nil, ErrNoShowOnBye
	}

	now := time.Now().UTC()
	res := models.ResultB
	if pr.PlayerB == targetID {
		res = models.ResultA
	}
	pr.Result = res
	pr.ReportedBy = "system:no-show"
	pr.ReportedAt = &now
	pr.NoShow = true

	pA, pB := t.Players[pr.PlayerA], t.Players[pr.PlayerB]
	if pA == nil || pB == nil {
		return nil, ErrPlayerNotFound
	}
	applyScoring(pA, pB, res)

	completed := markRoundEnded(t, t.Meta.CurrentRound, now)
	if err := s.repo.Save(ctx, t); err != nil {
		return nil, mapRepoError(err)
	}
	if completed {
		s.closer.close(t, t.Meta.CurrentRound)
	}
	return pr, nil
}
