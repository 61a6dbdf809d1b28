package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CharlieAKAN/Coop-Keeper/deckrules"
	"github.com/CharlieAKAN/Coop-Keeper/delivery"
	"github.com/CharlieAKAN/Coop-Keeper/models"
)

func newDeckService(env *testEnv, events chan delivery.DeckSubmitted) DeckService {
	rules := deckrules.StaticSource{Rules: &deckrules.Rules{
		Game:             "optcg",
		EffectiveDate:    "2026-08-01",
		CopyLimitPerCard: 4,
		BannedCards:      []string{"OP02-099"},
	}}
	return NewDeckService(env.repo, rules, env.locks, events, testLogger())
}

func TestSubmitStoresPendingDeckAndEmitsEvent(t *testing.T) {
	env := newTestEnv()
	events := make(chan delivery.DeckSubmitted, 1)
	svc := newDeckService(env, events)
	tournament := seedTournament(t, env.repo, "t1", models.NewPlayer("u1", "Alice"))
	tournament.Meta.ReviewChannelID = "review"
	require.NoError(t, env.repo.Save(context.Background(), tournament))

	deck, err := svc.Submit(context.Background(), "t1", "u1", "4x OP08-010\n2x ST01-005")
	require.NoError(t, err)
	assert.Equal(t, models.DeckPending, deck.Status)
	assert.False(t, deck.Locked)
	assert.Equal(t, 6, deck.Parsed.Total)

	select {
	case ev := <-events:
		assert.Equal(t, "t1", ev.TID)
		assert.Equal(t, "u1", ev.UserID)
		assert.Equal(t, 6, ev.CardTotal)
		assert.Equal(t, "review", ev.ReviewChannel)
	default:
		t.Fatal("expected a deck submitted event")
	}
}

func TestSubmitIllegalDeckReturnsEveryReason(t *testing.T) {
	env := newTestEnv()
	svc := newDeckService(env, make(chan delivery.DeckSubmitted, 1))
	seedTournament(t, env.repo, "t1", models.NewPlayer("u1", "Alice"))

	_, err := svc.Submit(context.Background(), "t1", "u1", "5x OP08-010\n1x OP02-099")
	require.Error(t, err)

	var legality *DeckLegalityError
	require.ErrorAs(t, err, &legality)
	assert.Len(t, legality.Reasons, 2)
	assert.ErrorIs(t, err, ErrValidationFailed)

	// Nothing was persisted.
	stored, loadErr := env.repo.Load(context.Background(), "t1")
	require.NoError(t, loadErr)
	assert.False(t, stored.Players["u1"].Deck.Submitted())
}

func TestSubmitEmptyDecklist(t *testing.T) {
	env := newTestEnv()
	svc := newDeckService(env, make(chan delivery.DeckSubmitted, 1))
	seedTournament(t, env.repo, "t1", models.NewPlayer("u1", "Alice"))

	_, err := svc.Submit(context.Background(), "t1", "u1", "   ")
	assert.ErrorIs(t, err, ErrEmptyDecklist)
}

func TestSubmitReplacesPendingDeck(t *testing.T) {
	env := newTestEnv()
	svc := newDeckService(env, make(chan delivery.DeckSubmitted, 4))
	seedTournament(t, env.repo, "t1", models.NewPlayer("u1", "Alice"))

	_, err := svc.Submit(context.Background(), "t1", "u1", "4x OP08-010")
	require.NoError(t, err)
	deck, err := svc.Submit(context.Background(), "t1", "u1", "2x ST01-005")
	require.NoError(t, err)
	assert.Equal(t, 2, deck.Parsed.Total)
}

func TestApproveLocksDeck(t *testing.T) {
	env := newTestEnv()
	svc := newDeckService(env, make(chan delivery.DeckSubmitted, 4))
	seedTournament(t, env.repo, "t1", models.NewPlayer("u1", "Alice"))

	_, err := svc.Submit(context.Background(), "t1", "u1", "4x OP08-010")
	require.NoError(t, err)

	deck, err := svc.Approve(context.Background(), "t1", "u1", "admin")
	require.NoError(t, err)
	assert.Equal(t, models.DeckApproved, deck.Status)
	assert.True(t, deck.Locked)
	assert.Equal(t, "admin", deck.ApprovedBy)

	// Locked decks cannot be replaced.
	_, err = svc.Submit(context.Background(), "t1", "u1", "2x ST01-005")
	assert.ErrorIs(t, err, ErrDeckLocked)
}

func TestRejectUnlocksForResubmission(t *testing.T) {
	env := newTestEnv()
	svc := newDeckService(env, make(chan delivery.DeckSubmitted, 4))
	seedTournament(t, env.repo, "t1", models.NewPlayer("u1", "Alice"))

	_, err := svc.Submit(context.Background(), "t1", "u1", "4x OP08-010")
	require.NoError(t, err)
	_, err = svc.Approve(context.Background(), "t1", "u1", "admin")
	require.NoError(t, err)

	deck, err := svc.Reject(context.Background(), "t1", "u1", "admin", "wrong leader")
	require.NoError(t, err)
	assert.Equal(t, models.DeckRejected, deck.Status)
	assert.False(t, deck.Locked)

	deck, err = svc.Submit(context.Background(), "t1", "u1", "2x ST01-005")
	require.NoError(t, err)
	assert.Equal(t, models.DeckPending, deck.Status)
}

func TestPullReturnsStoredDeck(t *testing.T) {
	env := newTestEnv()
	svc := newDeckService(env, make(chan delivery.DeckSubmitted, 4))
	seedTournament(t, env.repo, "t1", models.NewPlayer("u1", "Alice"))

	_, err := svc.Pull(context.Background(), "t1", "u1")
	assert.ErrorIs(t, err, ErrNoDeckOnFile)

	_, err = svc.Submit(context.Background(), "t1", "u1", "4x OP08-010")
	require.NoError(t, err)

	deck, err := svc.Pull(context.Background(), "t1", "u1")
	require.NoError(t, err)
	assert.Equal(t, 4, deck.Parsed.Total)
}

func TestSubmitUnknownPlayer(t *testing.T) {
	env := newTestEnv()
	svc := newDeckService(env, make(chan delivery.DeckSubmitted, 1))
	seedTournament(t, env.repo, "t1")

	_, err := svc.Submit(context.Background(), "t1", "ghost", "4x OP08-010")
	assert.ErrorIs(t, err, ErrPlayerNotFound)
}

func TestReviewerCannotReviewOwnDeck(t *testing.T) {
	env := newTestEnv()
	events := make(chan delivery.DeckSubmitted, 1)
	svc := newDeckService(env, events)
	seedTournament(t, env.repo, "t1", models.NewPlayer("u1", "Alice"))

	_, err := svc.Submit(context.Background(), "t1", "u1", "4x OP08-010")
	require.NoError(t, err)

	_, err = svc.Approve(context.Background(), "t1", "u1", "u1")
	assert.ErrorIs(t, err, ErrPermissionDenied)

	_, err = svc.Reject(context.Background(), "t1", "u1", "u1", "nope")
	assert.ErrorIs(t, err, ErrPermissionDenied)
}
