package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"quizsync-service/internal/app"
	"quizsync-service/internal/domain"
)

func TestTwoTeamRound(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env := newTestEnv(t)

	boardDone := make(chan struct{})
	go func() {
		defer close(boardDone)
		_ = env.board.Run(ctx)
	}()
	boards, stopBoards := env.board.Subscribe()
	defer stopBoards()

	_, err := env.host.LoadQuestions(ctx, fourOptionQuestions(2))
	require.NoError(t, err)

	_, err = env.registry.Join(ctx, "Red", []byte("red-selfie"), "image/jpeg")
	require.NoError(t, err)
	_, err = env.registry.Join(ctx, "Blue", []byte("blue-selfie"), "image/jpeg")
	require.NoError(t, err)

	red := app.NewParticipant("Red", env.ledger, env.logger)
	blue := app.NewParticipant("Blue", env.ledger, env.logger)
	observe := func(s domain.Session) {
		t.Helper()
		for _, p := range []*app.Participant{red, blue} {
			_, err := p.Observe(ctx, s)
			require.NoError(t, err)
		}
	}

	// question 0
	s, err := env.host.Advance(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, 5, s.Timer)
	require.True(t, s.TimerActive)
	observe(s)

	right, wrong := correctAndWrong(t, s.Questions[0])
	_, err = red.Select(ctx, right)
	require.NoError(t, err)
	redRecord, err := red.Submit(ctx)
	require.NoError(t, err)
	require.True(t, redRecord.Correct)
	require.Equal(t, 10, redRecord.Points)

	_, err = blue.Select(ctx, wrong)
	require.NoError(t, err)
	blueRecord, err := blue.Submit(ctx)
	require.NoError(t, err)
	require.False(t, blueRecord.Correct)
	require.Equal(t, 0, blueRecord.Points)

	expected := []domain.LeaderboardEntry{{TeamName: "Red", Score: 10}, {TeamName: "Blue", Score: 0}}
	waitForBoard(t, boards, expected)

	// question 1: local state resets, Blue stays silent
	s, err = env.host.Advance(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 1, s.Current)
	require.Equal(t, 5, s.Timer)
	observe(s)
	for _, p := range []*app.Participant{red, blue} {
		state := p.State()
		require.Equal(t, 1, state.Current)
		require.False(t, state.Answered)
		require.Empty(t, state.Selected)
	}

	_, wrong = correctAndWrong(t, s.Questions[1])
	_, err = red.Select(ctx, wrong)
	require.NoError(t, err)
	_, err = red.Submit(ctx)
	require.NoError(t, err)

	running := true
	for running {
		s, running, err = env.host.Tick(ctx)
		require.NoError(t, err)
	}
	require.Equal(t, 0, s.Timer)

	forced, err := blue.Observe(ctx, s)
	require.NoError(t, err)
	require.NotNil(t, forced)
	require.True(t, forced.Forced)
	require.Empty(t, forced.DisplayedSelection)
	require.False(t, forced.Correct)
	require.Equal(t, 0, forced.Points)

	// Red already answered, so expiry does not overwrite its record
	again, err := red.Observe(ctx, s)
	require.NoError(t, err)
	require.Nil(t, again)

	_, err = blue.Select(ctx, 0)
	require.ErrorIs(t, err, domain.ErrAnswerLocked)

	waitForBoard(t, boards, expected)
	final, err := env.board.Snapshot(ctx)
	require.NoError(t, err)
	require.True(t, sameStandings(final.Entries, expected), "final board %+v", final.Entries)

	cancel()
	<-boardDone
}

func waitForBoard(t *testing.T, boards <-chan domain.Leaderboard, want []domain.LeaderboardEntry) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case lb := <-boards:
			if sameStandings(lb.Entries, want) {
				return
			}
		case <-deadline:
			t.Fatalf("leaderboard never reached %+v", want)
		}
	}
}

func sameStandings(got, want []domain.LeaderboardEntry) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range want {
		if got[i].TeamName != want[i].TeamName || got[i].Score != want[i].Score {
			return false
		}
	}
	return true
}
