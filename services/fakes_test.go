package services

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/CharlieAKAN/Coop-Keeper/delivery"
	"github.com/CharlieAKAN/Coop-Keeper/models"
	"github.com/CharlieAKAN/Coop-Keeper/repositories"
	"github.com/CharlieAKAN/Coop-Keeper/roundtimer"
)

// fakeRepo is an in-memory TournamentRepository. Documents go through a
// JSON round-trip on Load so tests see the same aliasing behavior as the
// real store, and Save enforces the version check.
type fakeRepo struct {
	mu   sync.Mutex
	docs map[string][]byte
	vers map[string]int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{docs: make(map[string][]byte), vers: make(map[string]int64)}
}

func (r *fakeRepo) Load(ctx context.Context, tid string) (*models.Tournament, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	raw, ok := r.docs[tid]
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	var t models.Tournament
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, repositories.ErrCorruptDocument
	}
	t.Version = r.vers[tid]
	return &t, nil
}

func (r *fakeRepo) Save(ctx context.Context, t *models.Tournament) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tid := t.Meta.TID
	current := r.vers[tid]
	if t.Version != current {
		return repositories.ErrVersionConflict
	}
	raw, err := json.Marshal(t)
	if err != nil {
		return err
	}
	r.docs[tid] = raw
	r.vers[tid] = current + 1
	t.Version = current + 1
	return nil
}

func (r *fakeRepo) Delete(ctx context.Context, tid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[tid]; !ok {
		return repositories.ErrTournamentNotFound
	}
	delete(r.docs, tid)
	delete(r.vers, tid)
	return nil
}

func (r *fakeRepo) ListIDs(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.docs))
	for id := range r.docs {
		ids = append(ids, id)
	}
	return ids, nil
}

type fakeSender struct {
	mu       sync.Mutex
	channel  []delivery.Message
	threads  []delivery.Message
	failAll  bool
	lastRoom string
}

func (f *fakeSender) SendToChannel(channelID string, msg delivery.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return delivery.ErrNoRecipient
	}
	f.lastRoom = channelID
	f.channel = append(f.channel, msg)
	return nil
}

func (f *fakeSender) SendToUserThread(tid, userID string, msg delivery.Message, fallbackChannelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return delivery.ErrNoRecipient
	}
	f.threads = append(f.threads, msg)
	return nil
}

func (f *fakeSender) channelMessages() []delivery.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]delivery.Message(nil), f.channel...)
}

func (f *fakeSender) threadMessages() []delivery.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]delivery.Message(nil), f.threads...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	repo      *fakeRepo
	sender    *fakeSender
	scheduler *roundtimer.Scheduler
	locks     *tidLocker
	closer    *roundCloser
}

func newTestEnv() *testEnv {
	sender := &fakeSender{}
	logger := testLogger()
	scheduler := roundtimer.NewScheduler(sender, logger)
	return &testEnv{
		repo:      newFakeRepo(),
		sender:    sender,
		scheduler: scheduler,
		locks:     newTIDLocker(),
		closer:    &roundCloser{scheduler: scheduler, send: sender, logger: logger},
	}
}

// seedTournament stores a registration-phase tournament with the given
// players, bypassing the service layer.
func seedTournament(t *testing.T, repo *fakeRepo, tid string, players ...*models.Player) *models.Tournament {
	t.Helper()
	tournament := models.NewTournament(tid)
	tournament.Meta.Name = "Test Event"
	tournament.Meta.Structure = models.StructureSwiss
	tournament.Meta.BestOf = 1
	tournament.Meta.RoundTimeMinutes = 30
	tournament.Meta.MaxPlayers = 64
	tournament.Meta.ChannelID = "general"
	for _, p := range players {
		tournament.Players[p.UserID] = p
	}
	require.NoError(t, repo.Save(context.Background(), tournament))
	return tournament
}
