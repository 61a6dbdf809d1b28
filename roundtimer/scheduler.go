package roundtimer

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/CharlieAKAN/Coop-Keeper/delivery"
	"github.com/CharlieAKAN/Coop-Keeper/models"
)

// DefaultPrepTime is how long players get to find their table before the
// round clock starts.
const DefaultPrepTime = 5 * time.Minute

// Config describes one round's staged announcements. Durations are
// explicit so tests can run the whole schedule in milliseconds.
type Config struct {
	TID   string
	Round int

	AnnounceChannelID string
	PairingChannelID  string
	ResultsChannelID  string
	PlayerRoleID      string

	PrepTime     time.Duration
	RoundLength  time.Duration
	OvertimeMode models.OvertimeMode
	Overtime     time.Duration
}

type key struct {
	tid   string
	round int
}

// Scheduler owns the in-memory timer set per (tournament, round). Arming
// replaces any existing schedule for the same key; disarming cancels all
// pending fires. None of this state survives a restart: timers are a
// courtesy, the authoritative state is the round's results in the store.
type Scheduler struct {
	mu     sync.Mutex
	timers map[key][]*time.Timer
	send   delivery.Sender
	logger *slog.Logger
}

func NewScheduler(send delivery.Sender, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		timers: make(map[key][]*time.Timer),
		send:   send,
		logger: logger,
	}
}

// Arm schedules the round's announcements: an immediate prep notice, a
// start notice after prep, an optional overtime notice, and the final
// time's-up notice. Re-arming the same (tid, round) disarms first.
func (s *Scheduler) Arm(cfg Config) {
	s.Disarm(cfg.TID, cfg.Round)

	prep := cfg.PrepTime
	if prep <= 0 {
		prep = DefaultPrepTime
	}

	rolePing := "players"
	if cfg.PlayerRoleID != "" {
		rolePing = "<@&" + cfg.PlayerRoleID + ">"
	}

	prepMsg := fmt.Sprintf("%s you have %s to get to your assigned tables. Pairings are posted in the pairings channel.",
		rolePing, prep)
	startMsg := fmt.Sprintf("%s start your matches! You have %s.", rolePing, cfg.RoundLength)
	finalMsg := fmt.Sprintf("%s matches are over. Please report who won in the results channel.", rolePing)

	k := key{tid: cfg.TID, round: cfg.Round}
	var ts []*time.Timer

	ts = append(ts, time.AfterFunc(0, s.fire(cfg, "prep", prepMsg)))
	ts = append(ts, time.AfterFunc(prep, s.fire(cfg, "start", startMsg)))

	afterMain := prep + cfg.RoundLength
	if cfg.OvertimeMode == models.OvertimeExtraTime && cfg.Overtime > 0 {
		otMsg := fmt.Sprintf("%s %s of overtime has started!", rolePing, cfg.Overtime)
		ts = append(ts, time.AfterFunc(afterMain, s.fire(cfg, "overtime", otMsg)))
		ts = append(ts, time.AfterFunc(afterMain+cfg.Overtime, s.fire(cfg, "final", finalMsg)))
	} else {
		ts = append(ts, time.AfterFunc(afterMain, s.fire(cfg, "final", finalMsg)))
	}

	s.mu.Lock()
	s.timers[k] = ts
	s.mu.Unlock()

	s.logger.Info("round timers armed",
		slog.String("tid", cfg.TID),
		slog.Int("round", cfg.Round),
		slog.Duration("roundLength", cfg.RoundLength))
}

// Disarm cancels every pending fire for the key. Disarming an unknown or
// already-disarmed key is a no-op and returns false.
func (s *Scheduler) Disarm(tid string, round int) bool {
	k := key{tid: tid, round: round}
	s.mu.Lock()
	ts, ok := s.timers[k]
	if ok {
		delete(s.timers, k)
	}
	s.mu.Unlock()
	if !ok {
		return false
	}
	for _, t := range ts {
		t.Stop()
	}
	s.logger.Info("round timers disarmed", slog.String("tid", tid), slog.Int("round", round))
	return true
}

// Armed reports whether a schedule currently exists for the key.
func (s *Scheduler) Armed(tid string, round int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[key{tid: tid, round: round}]
	return ok
}

// fire builds the AfterFunc callback for one stage. Delivery failures are
// logged and swallowed; a missed announcement never affects round state.
func (s *Scheduler) fire(cfg Config, stage, content string) func() {
	return func() {
		msg := delivery.NewMessage(delivery.TypeAnnouncement, cfg.TID, content)
		if err := s.send.SendToChannel(cfg.AnnounceChannelID, msg); err != nil {
			s.logger.Warn("round announcement failed",
				slog.String("tid", cfg.TID),
				slog.Int("round", cfg.Round),
				slog.String("stage", stage),
				slog.Any("error", err))
		}
	}
}
