package services

import (
	"context"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CharlieAKAN/Coop-Keeper/models"
	"github.com/CharlieAKAN/Coop-Keeper/pairings"
)

func newRoundService(env *testEnv, seed int64) RoundService {
	engine := pairings.NewEngine(rand.New(rand.NewSource(seed)))
	return NewRoundService(env.repo, engine, env.scheduler, env.sender, env.locks, env.closer, testLogger())
}

func fourPlayers() []*models.Player {
	return []*models.Player{
		models.NewPlayer("u1", "Alice"),
		models.NewPlayer("u2", "Bob"),
		models.NewPlayer("u3", "Carol"),
		models.NewPlayer("u4", "Dave"),
	}
}

func requireInvariant(t *testing.T, players map[string]*models.Player) {
	t.Helper()
	for id, p := range players {
		assert.Equalf(t, p.Score, 3*p.Record.Wins+p.Record.Draws,
			"score invariant broken for %s: score=%d record=%+v", id, p.Score, p.Record)
	}
}

func TestStartPairsRoundOne(t *testing.T) {
	env := newTestEnv()
	svc := newRoundService(env, 1)
	seedTournament(t, env.repo, "t1", fourPlayers()...)

	round, err := svc.Start(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, round.Pairings, 2)

	stored, err := env.repo.Load(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, stored.Meta.Status)
	assert.Equal(t, 1, stored.Meta.CurrentRound)
	require.NotNil(t, stored.Meta.RoundSchedule)
	assert.Equal(t, 1, stored.Meta.RoundSchedule.Round)
	assert.Nil(t, stored.Meta.RoundSchedule.EndedAt)

	assert.True(t, env.scheduler.Armed("t1", 1))
	env.scheduler.Disarm("t1", 1)

	msgs := env.sender.channelMessages()
	require.NotEmpty(t, msgs)
	assert.Contains(t, msgs[0].Content, "Round 1 pairings")
}

func TestStartRejectsLiveTournament(t *testing.T) {
	env := newTestEnv()
	svc := newRoundService(env, 1)
	seedTournament(t, env.repo, "t1", fourPlayers()...)

	_, err := svc.Start(context.Background(), "t1")
	require.NoError(t, err)
	env.scheduler.Disarm("t1", 1)

	_, err = svc.Start(context.Background(), "t1")
	assert.ErrorIs(t, err, ErrTournamentAlreadyLive)
}

func TestStartNeedsTwoEligiblePlayers(t *testing.T) {
	env := newTestEnv()
	svc := newRoundService(env, 1)
	seedTournament(t, env.repo, "t1", models.NewPlayer("u1", "Alice"))

	_, err := svc.Start(context.Background(), "t1")
	assert.ErrorIs(t, err, ErrNotEnoughPlayers)
}

func TestStartFiltersUnpaidWhenPaymentRequired(t *testing.T) {
	env := newTestEnv()
	svc := newRoundService(env, 1)
	tournament := seedTournament(t, env.repo, "t1", fourPlayers()...)
	tournament.Meta.PaidRequired = true
	tournament.Players["u1"].PaymentStatus = models.PaymentVerified
	require.NoError(t, env.repo.Save(context.Background(), tournament))

	_, err := svc.Start(context.Background(), "t1")
	assert.ErrorIs(t, err, ErrNotEnoughPlayers)
}

func reportAll(t *testing.T, svc RoundService, tid string, round *models.Round) {
	t.Helper()
	for _, pr := range round.Pairings {
		_, err := svc.Report(context.Background(), tid, pr.PlayerA, ReportInput{Outcome: OutcomeMe})
		require.NoError(t, err)
	}
}

func TestReportAppliesScoring(t *testing.T) {
	env := newTestEnv()
	svc := newRoundService(env, 1)
	seedTournament(t, env.repo, "t1", fourPlayers()...)

	round, err := svc.Start(context.Background(), "t1")
	require.NoError(t, err)
	defer env.scheduler.Disarm("t1", 1)

	pr := round.Pairings[0]
	got, err := svc.Report(context.Background(), "t1", pr.PlayerA, ReportInput{Outcome: OutcomeMe})
	require.NoError(t, err)
	assert.Equal(t, models.ResultA, got.Result)
	assert.Equal(t, pr.PlayerA, got.ReportedBy)

	stored, err := env.repo.Load(context.Background(), "t1")
	require.NoError(t, err)
	winner := stored.Players[pr.PlayerA]
	loser := stored.Players[pr.PlayerB]
	assert.Equal(t, 3, winner.Score)
	assert.Equal(t, models.Record{Wins: 1}, winner.Record)
	assert.Equal(t, 0, loser.Score)
	assert.Equal(t, models.Record{Losses: 1}, loser.Record)
	requireInvariant(t, stored.Players)
}

func TestReportDraw(t *testing.T) {
	env := newTestEnv()
	svc := newRoundService(env, 1)
	seedTournament(t, env.repo, "t1", fourPlayers()...)

	round, err := svc.Start(context.Background(), "t1")
	require.NoError(t, err)
	defer env.scheduler.Disarm("t1", 1)

	pr := round.Pairings[0]
	_, err = svc.Report(context.Background(), "t1", pr.PlayerB, ReportInput{Outcome: OutcomeDraw})
	require.NoError(t, err)

	stored, err := env.repo.Load(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Players[pr.PlayerA].Score)
	assert.Equal(t, 1, stored.Players[pr.PlayerB].Score)
	requireInvariant(t, stored.Players)
}

func TestReportOutcomeIsRelativeToReporter(t *testing.T) {
	env := newTestEnv()
	svc := newRoundService(env, 1)
	seedTournament(t, env.repo, "t1", fourPlayers()...)

	round, err := svc.Start(context.Background(), "t1")
	require.NoError(t, err)
	defer env.scheduler.Disarm("t1", 1)

	// Player B says they lost: A takes the win.
	pr := round.Pairings[0]
	got, err := svc.Report(context.Background(), "t1", pr.PlayerB, ReportInput{Outcome: OutcomeOpponent})
	require.NoError(t, err)
	assert.Equal(t, models.ResultA, got.Result)
}

func TestReportIsOneShot(t *testing.T) {
	env := newTestEnv()
	svc := newRoundService(env, 1)
	seedTournament(t, env.repo, "t1", fourPlayers()...)

	round, err := svc.Start(context.Background(), "t1")
	require.NoError(t, err)
	defer env.scheduler.Disarm("t1", 1)

	pr := round.Pairings[0]
	_, err = svc.Report(context.Background(), "t1", pr.PlayerA, ReportInput{Outcome: OutcomeMe})
	require.NoError(t, err)

	_, err = svc.Report(context.Background(), "t1", pr.PlayerB, ReportInput{Outcome: OutcomeMe})
	assert.ErrorIs(t, err, ErrAlreadyReported)
}

func TestReportUnknownReporter(t *testing.T) {
	env := newTestEnv()
	svc := newRoundService(env, 1)
	seedTournament(t, env.repo, "t1", fourPlayers()...)

	_, err := svc.Start(context.Background(), "t1")
	require.NoError(t, err)
	defer env.scheduler.Disarm("t1", 1)

	_, err = svc.Report(context.Background(), "t1", "stranger", ReportInput{Outcome: OutcomeMe})
	assert.ErrorIs(t, err, ErrNotSeated)
}

func TestByeScoresOnlyOnReport(t *testing.T) {
	env := newTestEnv()
	svc := newRoundService(env, 1)
	seedTournament(t, env.repo, "t1",
		models.NewPlayer("u1", "Alice"),
		models.NewPlayer("u2", "Bob"),
		models.NewPlayer("u3", "Carol"),
	)

	round, err := svc.Start(context.Background(), "t1")
	require.NoError(t, err)
	defer env.scheduler.Disarm("t1", 1)

	var bye *models.Pairing
	for _, pr := range round.Pairings {
		if pr.Bye {
			bye = pr
		}
	}
	require.NotNil(t, bye)

	stored, err := env.repo.Load(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, 0, stored.Players[bye.PlayerA].Score, "bye must not score before it is reported")

	// Draw is not a legal bye outcome.
	_, err = svc.Report(context.Background(), "t1", bye.PlayerA, ReportInput{Outcome: OutcomeDraw})
	assert.ErrorIs(t, err, ErrInvalidResult)

	_, err = svc.Report(context.Background(), "t1", bye.PlayerA, ReportInput{Outcome: OutcomeMe})
	require.NoError(t, err)

	stored, err = env.repo.Load(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, 3, stored.Players[bye.PlayerA].Score)
	assert.Equal(t, 1, stored.Players[bye.PlayerA].Record.Wins)
	requireInvariant(t, stored.Players)
}

func TestRoundCompletionDisarmsAndAnnounces(t *testing.T) {
	env := newTestEnv()
	svc := newRoundService(env, 1)
	seedTournament(t, env.repo, "t1", fourPlayers()...)

	round, err := svc.Start(context.Background(), "t1")
	require.NoError(t, err)
	reportAll(t, svc, "t1", round)

	assert.False(t, env.scheduler.Armed("t1", 1))

	stored, err := env.repo.Load(context.Background(), "t1")
	require.NoError(t, err)
	require.NotNil(t, stored.Meta.RoundSchedule.EndedAt)

	var sawComplete bool
	for _, msg := range env.sender.channelMessages() {
		if strings.Contains(msg.Content, "All results are in for Round 1") {
			sawComplete = true
		}
	}
	assert.True(t, sawComplete)
}

func TestNextRequiresCompleteRound(t *testing.T) {
	env := newTestEnv()
	svc := newRoundService(env, 1)
	seedTournament(t, env.repo, "t1", fourPlayers()...)

	_, err := svc.Start(context.Background(), "t1")
	require.NoError(t, err)
	defer env.scheduler.Disarm("t1", 1)

	_, err = svc.Next(context.Background(), "t1", NextRoundInput{})
	assert.ErrorIs(t, err, ErrRoundIncomplete)

	round, err := svc.Next(context.Background(), "t1", NextRoundInput{Force: true})
	require.NoError(t, err)
	defer env.scheduler.Disarm("t1", 2)
	assert.Len(t, round.Pairings, 2)

	stored, err := env.repo.Load(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Meta.CurrentRound)
}

func TestNextExcludesDroppedPlayers(t *testing.T) {
	env := newTestEnv()
	svc := newRoundService(env, 1)
	seedTournament(t, env.repo, "t1", fourPlayers()...)

	round, err := svc.Start(context.Background(), "t1")
	require.NoError(t, err)
	reportAll(t, svc, "t1", round)

	stored, err := env.repo.Load(context.Background(), "t1")
	require.NoError(t, err)
	stored.Players["u4"].Dropped = true
	require.NoError(t, env.repo.Save(context.Background(), stored))

	next, err := svc.Next(context.Background(), "t1", NextRoundInput{})
	require.NoError(t, err)
	defer env.scheduler.Disarm("t1", 2)

	for _, pr := range next.Pairings {
		assert.NotEqual(t, "u4", pr.PlayerA)
		assert.NotEqual(t, "u4", pr.PlayerB)
	}
}

func TestNextCutSeedsTopOfStandings(t *testing.T) {
	env := newTestEnv()
	svc := newRoundService(env, 1)
	tournament := seedTournament(t, env.repo, "t1", fourPlayers()...)
	tournament.Meta.Structure = models.StructureSwissCut
	require.NoError(t, env.repo.Save(context.Background(), tournament))

	round, err := svc.Start(context.Background(), "t1")
	require.NoError(t, err)
	reportAll(t, svc, "t1", round)

	cut, err := svc.Next(context.Background(), "t1", NextRoundInput{CutSize: 2})
	require.NoError(t, err)
	defer env.scheduler.Disarm("t1", 2)

	require.Len(t, cut.Pairings, 1)
	// The two round-1 winners meet in the cut.
	winners := map[string]bool{
		round.Pairings[0].PlayerA: true,
		round.Pairings[1].PlayerA: true,
	}
	assert.True(t, winners[cut.Pairings[0].PlayerA])
	assert.True(t, winners[cut.Pairings[0].PlayerB])
}

func TestNextCutValidation(t *testing.T) {
	env := newTestEnv()
	svc := newRoundService(env, 1)
	tournament := seedTournament(t, env.repo, "t1", fourPlayers()...)
	tournament.Meta.Structure = models.StructureSwissCut
	require.NoError(t, env.repo.Save(context.Background(), tournament))

	round, err := svc.Start(context.Background(), "t1")
	require.NoError(t, err)
	reportAll(t, svc, "t1", round)

	_, err = svc.Next(context.Background(), "t1", NextRoundInput{CutSize: 3})
	assert.ErrorIs(t, err, ErrCutSizeInvalid)

	_, err = svc.Next(context.Background(), "t1", NextRoundInput{CutSize: 8})
	assert.ErrorIs(t, err, ErrCutSizeInvalid)
}

func TestOverrideRollsBackBeforeApplying(t *testing.T) {
	env := newTestEnv()
	svc := newRoundService(env, 1)
	seedTournament(t, env.repo, "t1", fourPlayers()...)

	round, err := svc.Start(context.Background(), "t1")
	require.NoError(t, err)
	defer env.scheduler.Disarm("t1", 1)

	pr := round.Pairings[0]
	_, err = svc.Report(context.Background(), "t1", pr.PlayerA, ReportInput{Outcome: OutcomeMe})
	require.NoError(t, err)

	// Flip the result to B.
	_, err = svc.Override(context.Background(), "t1", "admin", OverrideInput{
		Table:  pr.Table,
		Result: models.ResultB,
	})
	require.NoError(t, err)

	stored, err := env.repo.Load(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, 0, stored.Players[pr.PlayerA].Score)
	assert.Equal(t, models.Record{Losses: 1}, stored.Players[pr.PlayerA].Record)
	assert.Equal(t, 3, stored.Players[pr.PlayerB].Score)
	assert.Equal(t, models.Record{Wins: 1}, stored.Players[pr.PlayerB].Record)
	requireInvariant(t, stored.Players)
}

func TestOverrideClearReopensPairing(t *testing.T) {
	env := newTestEnv()
	svc := newRoundService(env, 1)
	seedTournament(t, env.repo, "t1", fourPlayers()...)

	round, err := svc.Start(context.Background(), "t1")
	require.NoError(t, err)
	reportAll(t, svc, "t1", round)

	pr := round.Pairings[0]
	_, err = svc.Override(context.Background(), "t1", "admin", OverrideInput{Table: pr.Table, Clear: true})
	require.NoError(t, err)

	stored, err := env.repo.Load(context.Background(), "t1")
	require.NoError(t, err)
	reopened := stored.Round(1).PairingAt(pr.Table)
	assert.True(t, reopened.Pending())
	assert.Equal(t, 0, stored.Players[pr.PlayerA].Score)
	assert.Equal(t, 0, stored.Players[pr.PlayerB].Score)
	assert.Nil(t, stored.Meta.RoundSchedule.EndedAt)
	requireInvariant(t, stored.Players)
}

func TestOverrideClearOnPendingPairing(t *testing.T) {
	env := newTestEnv()
	svc := newRoundService(env, 1)
	seedTournament(t, env.repo, "t1", fourPlayers()...)

	round, err := svc.Start(context.Background(), "t1")
	require.NoError(t, err)
	defer env.scheduler.Disarm("t1", 1)

	_, err = svc.Override(context.Background(), "t1", "admin", OverrideInput{
		Table: round.Pairings[0].Table,
		Clear: true,
	})
	assert.ErrorIs(t, err, ErrInvalidResult)
}

func TestOverrideUnknownTable(t *testing.T) {
	env := newTestEnv()
	svc := newRoundService(env, 1)
	seedTournament(t, env.repo, "t1", fourPlayers()...)

	_, err := svc.Start(context.Background(), "t1")
	require.NoError(t, err)
	defer env.scheduler.Disarm("t1", 1)

	_, err = svc.Override(context.Background(), "t1", "admin", OverrideInput{Table: 99, Result: models.ResultA})
	assert.ErrorIs(t, err, ErrTableNotFound)
}

func TestGetRound(t *testing.T) {
	env := newTestEnv()
	svc := newRoundService(env, 1)
	seedTournament(t, env.repo, "t1", fourPlayers()...)

	round, err := svc.Start(context.Background(), "t1")
	require.NoError(t, err)
	defer env.scheduler.Disarm("t1", 1)

	got, err := svc.GetRound(context.Background(), "t1", 1)
	require.NoError(t, err)
	assert.Len(t, got.Pairings, len(round.Pairings))

	_, err = svc.GetRound(context.Background(), "t1", 2)
	assert.ErrorIs(t, err, ErrRoundNotFound)

	_, err = svc.GetRound(context.Background(), "missing", 1)
	assert.ErrorIs(t, err, ErrTournamentNotFound)
}

func TestNextCutExcludesDroppedLeader(t *testing.T) {
	env := newTestEnv()
	svc := newRoundService(env, 1)
	tournament := seedTournament(t, env.repo, "t1", fourPlayers()...)
	tournament.Meta.Structure = models.StructureSwissCut
	require.NoError(t, env.repo.Save(context.Background(), tournament))

	round, err := svc.Start(context.Background(), "t1")
	require.NoError(t, err)
	reportAll(t, svc, "t1", round)

	// The table-1 winner drops before the cut is fired.
	leader := round.Pairings[0].PlayerA
	stored, err := env.repo.Load(context.Background(), "t1")
	require.NoError(t, err)
	stored.Players[leader].Dropped = true
	require.NoError(t, env.repo.Save(context.Background(), stored))

	cut, err := svc.Next(context.Background(), "t1", NextRoundInput{CutSize: 2})
	require.NoError(t, err)
	defer env.scheduler.Disarm("t1", 2)

	require.Len(t, cut.Pairings, 1)
	assert.NotEqual(t, leader, cut.Pairings[0].PlayerA)
	assert.NotEqual(t, leader, cut.Pairings[0].PlayerB)
}
