package services

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/CharlieAKAN/Coop-Keeper/delivery"
	"github.com/CharlieAKAN/Coop-Keeper/models"
	"github.com/CharlieAKAN/Coop-Keeper/repositories"
	"github.com/CharlieAKAN/Coop-Keeper/roundtimer"
)

// tidLocker serializes load-mutate-save sequences per tournament id so two
// concurrent commands on the same tournament cannot interleave. The store's
// version check is the backstop for anything that slips past (e.g. a second
// process).
type tidLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newTIDLocker() *tidLocker {
	return &tidLocker{locks: make(map[string]*sync.Mutex)}
}

// NewTIDLocker builds the shared per-tournament lock table. One instance is
// wired into every service at startup.
func NewTIDLocker() *tidLocker {
	return newTIDLocker()
}

// Lock acquires the per-tid mutex and returns its unlock function.
func (l *tidLocker) Lock(tid string) func() {
	l.mu.Lock()
	m, ok := l.locks[tid]
	if !ok {
		m = &sync.Mutex{}
		l.locks[tid] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m.Unlock
}

// mapRepoError converts repository errors into service sentinels.
func mapRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrTournamentNotFound):
		return ErrTournamentNotFound
	case errors.Is(err, repositories.ErrVersionConflict),
		errors.Is(err, repositories.ErrTournamentExists):
		return ErrConflictRetry
	case errors.Is(err, repositories.ErrCorruptDocument):
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	default:
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
}

// eligiblePlayers applies the tournament's gating policy: dropped players
// are always out; paidRequired gates on verified payment; requireDecklist
// gates on a decklist being on file.
func eligiblePlayers(t *models.Tournament) []*models.Player {
	var out []*models.Player
	for _, p := range t.Players {
		if p.Dropped {
			continue
		}
		if t.Meta.PaidRequired && p.PaymentStatus != models.PaymentVerified {
			continue
		}
		if t.Meta.RequireDecklist && !p.Deck.Submitted() {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Canonical scoring: win +3 points and +1 win, draw +1 point and +1 draw
// each, loss +1 loss. The invariant score == 3*wins + draws must hold
// after every mutation.

func applyScoring(a, b *models.Player, res models.Result) {
	switch res {
	case models.ResultA:
		a.Score += 3
		a.Record.Wins++
		b.Record.Losses++
	case models.ResultB:
		b.Score += 3
		b.Record.Wins++
		a.Record.Losses++
	case models.ResultDraw:
		a.Score++
		b.Score++
		a.Record.Draws++
		b.Record.Draws++
	}
}

// rollbackScoring reverses applyScoring. Counters are floor-clamped at
// zero to tolerate historical data drift.
func rollbackScoring(a, b *models.Player, res models.Result) {
	switch res {
	case models.ResultA:
		a.Score -= 3
		a.Record.Wins--
		b.Record.Losses--
	case models.ResultB:
		b.Score -= 3
		b.Record.Wins--
		a.Record.Losses--
	case models.ResultDraw:
		a.Score--
		b.Score--
		a.Record.Draws--
		b.Record.Draws--
	}
	clampRecord(a)
	clampRecord(b)
}

// A bye always scores as a win for the seated player; no opponent record
// is touched.

func applyByeScoring(p *models.Player) {
	p.Score += 3
	p.Record.Wins++
}

func rollbackByeScoring(p *models.Player) {
	p.Score -= 3
	p.Record.Wins--
	clampRecord(p)
}

func clampRecord(p *models.Player) {
	if p.Score < 0 {
		p.Score = 0
	}
	if p.Record.Wins < 0 {
		p.Record.Wins = 0
	}
	if p.Record.Losses < 0 {
		p.Record.Losses = 0
	}
	if p.Record.Draws < 0 {
		p.Record.Draws = 0
	}
}

// markRoundEnded stamps the schedule snapshot when the round has no
// pending pairings left. Returns true when the round just completed.
func markRoundEnded(t *models.Tournament, roundNum int, now time.Time) bool {
	r := t.Round(roundNum)
	if r == nil || r.PendingCount() > 0 {
		return false
	}
	if t.Meta.RoundSchedule == nil || t.Meta.RoundSchedule.Round != roundNum {
		t.Meta.RoundSchedule = &models.RoundSchedule{Round: roundNum}
	}
	if t.Meta.RoundSchedule.EndedAt == nil {
		t.Meta.RoundSchedule.EndedAt = &now
	}
	return true
}

// roundCloser disarms timers and announces completion once the last result
// of a round lands. Shared between result reporting and drop/no-show
// auto-awards.
type roundCloser struct {
	scheduler *roundtimer.Scheduler
	send      delivery.Sender
	logger    *slog.Logger
}

func NewRoundCloser(scheduler *roundtimer.Scheduler, send delivery.Sender, logger *slog.Logger) *roundCloser {
	return &roundCloser{scheduler: scheduler, send: send, logger: logger}
}

func (c *roundCloser) close(t *models.Tournament, roundNum int) {
	c.scheduler.Disarm(t.Meta.TID, roundNum)

	chanID := t.Meta.AnnounceChannelID
	if chanID == "" {
		chanID = t.Meta.ChannelID
	}
	content := fmt.Sprintf("All results are in for Round %d. Timers canceled.", roundNum)
	msg := delivery.NewMessage(delivery.TypeAnnouncement, t.Meta.TID, content)
	if err := c.send.SendToChannel(chanID, msg); err != nil {
		c.logger.Warn("round completion announcement failed",
			slog.String("tid", t.Meta.TID),
			slog.Int("round", roundNum),
			slog.Any("error", err))
	}
}

// timerConfig builds the scheduler config for a round from tournament meta.
func timerConfig(t *models.Tournament, round int) roundtimer.Config {
	roundMins := t.Meta.RoundTimeMinutes
	if roundMins <= 0 {
		roundMins = 35
	}
	cfg := roundtimer.Config{
		TID:               t.Meta.TID,
		Round:             round,
		AnnounceChannelID: firstNonEmpty(t.Meta.AnnounceChannelID, t.Meta.ChannelID),
		PairingChannelID:  firstNonEmpty(t.Meta.PairingChannelID, t.Meta.ChannelID),
		ResultsChannelID:  firstNonEmpty(t.Meta.ResultsChannelID, t.Meta.ChannelID),
		PlayerRoleID:      t.Meta.PlayerRoleID,
		PrepTime:          roundtimer.DefaultPrepTime,
		RoundLength:       time.Duration(roundMins) * time.Minute,
		OvertimeMode:      t.Meta.Overtime.Mode,
	}
	if t.Meta.Overtime.Mode == models.OvertimeExtraTime {
		cfg.Overtime = time.Duration(t.Meta.Overtime.Minutes) * time.Minute
	}
	return cfg
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
