package app_test

import (
	"fmt"
	"math/rand"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"quizsync-service/internal/app"
	"quizsync-service/internal/domain"
	"quizsync-service/internal/infra/memory"
	"quizsync-service/internal/ordering"
)

type testEnv struct {
	logger   *zap.SugaredLogger
	sessions *memory.SessionStore
	teams    *memory.TeamStore
	answers  *memory.AnswerStore
	blobs    *memory.BlobStore
	host     *app.Host
	ledger   *app.AnswerService
	registry *app.TeamService
	board    *app.Scoreboard
}

func newTestEnv(t *testing.T, opts ...app.HostOption) *testEnv {
	t.Helper()
	logger := zaptest.NewLogger(t).Sugar()
	env := &testEnv{
		logger:   logger,
		sessions: memory.NewSessionStore(),
		teams:    memory.NewTeamStore(),
		answers:  memory.NewAnswerStore(),
		blobs:    memory.NewBlobStore("/blobs"),
	}
	setN := 0
	base := []app.HostOption{
		app.WithRand(rand.New(rand.NewSource(1))),
		app.WithBlobStore(env.blobs),
		app.WithDefaultSettings(domain.Settings{QuestionTimerSeconds: 5}),
		app.WithQuestionSetIDs(func() string {
			setN++
			return fmt.Sprintf("set-%d", setN)
		}),
	}
	env.host = app.NewHost("game1", env.sessions, logger, append(base, opts...)...)
	env.ledger = app.NewAnswerService(env.sessions, env.answers, logger)
	env.registry = app.NewTeamService("game1", env.teams, env.blobs, logger)
	env.board = app.NewScoreboard("game1", env.sessions, env.teams, env.answers, logger)
	return env
}

func fourOptionQuestions(n int) []domain.Question {
	questions := make([]domain.Question, n)
	for i := range questions {
		questions[i] = domain.Question{
			Text:    fmt.Sprintf("Question %d", i+1),
			Answers: []string{"right", "wrong a", "wrong b", "wrong c"},
			Kind:    domain.KindSingleChoice,
		}
	}
	return questions
}

// correctAndWrong returns the displayed slot of canonical 0 and some other slot.
func correctAndWrong(t *testing.T, q domain.Question) (int, int) {
	t.Helper()
	m, err := ordering.NewMapper(q.AnswerOrder, len(q.Answers))
	if err != nil {
		t.Fatalf("mapper: %v", err)
	}
	correct := m.CorrectDisplayed()
	return correct, (correct + 1) % len(q.Answers)
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }
