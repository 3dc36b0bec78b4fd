package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"quizsync-service/internal/domain"
)

func TestTeamStoreRegistry(t *testing.T) {
	ctx := context.Background()
	mr, client, logger := setup(t)
	store := NewTeamStore(client, "game1", Options{}, logger)

	joined := time.Date(2024, 5, 1, 19, 0, 0, 0, time.UTC)
	_ = store.PutTeam(ctx, domain.Team{Name: "Blue", JoinedAt: joined.Add(time.Second), SelfieRef: "b.jpg"})
	_ = store.PutTeam(ctx, domain.Team{Name: "Red", JoinedAt: joined, SelfieRef: "r.jpg"})
	mr.HSet("quiz:game1:teams", "Broken", "{not json")

	teams, err := store.ListTeams(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(teams) != 2 || teams[0].Name != "Red" || teams[1].Name != "Blue" {
		t.Fatalf("unexpected teams %+v", teams)
	}

	if _, err := store.GetTeam(ctx, "Green"); !errors.Is(err, domain.ErrTeamNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := store.RemoveTeam(ctx, "Blue"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	teams, _ = store.ListTeams(ctx)
	if len(teams) != 1 {
		t.Fatalf("expected one team left, got %+v", teams)
	}
}

func TestAnswerStoreOverwritesAndSkipsCorruptPoints(t *testing.T) {
	ctx := context.Background()
	mr, client, logger := setup(t)
	store := NewAnswerStore(client, "game1", Options{}, logger)

	_ = store.PutAnswer(ctx, domain.AnswerRecord{QuestionIndex: 0, TeamName: "Red", Points: 0})
	_ = store.PutAnswer(ctx, domain.AnswerRecord{QuestionIndex: 0, TeamName: "Red", Points: 10, Correct: true})
	mr.HSet("quiz:game1:answers", "1-Red", `{"questionIndex":1,"teamName":"Red","points":"lots"}`)

	if got := mr.HGet("quiz:game1:answers", "0-Red"); got == "" {
		t.Fatalf("expected record under 0-Red")
	}

	records, err := store.ListAnswers(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 || records[0].Points != 10 {
		t.Fatalf("expected single overwritten record, got %+v", records)
	}

	rec, ok, err := store.GetAnswer(ctx, domain.AnswerKey{QuestionIndex: 0, TeamName: "Red"})
	if err != nil || !ok || !rec.Correct {
		t.Fatalf("get: %+v %v %v", rec, ok, err)
	}
	if _, ok, _ := store.GetAnswer(ctx, domain.AnswerKey{QuestionIndex: 1, TeamName: "Red"}); ok {
		t.Fatalf("expected corrupt slot to read as empty")
	}
}

func TestAnswerStoreSubscribeFiresOnWrite(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, client, logger := setup(t)
	store := NewAnswerStore(client, "game1", Options{}, logger)

	updates, stop, err := store.SubscribeAnswers(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer stop()

	if initial := receive(t, updates); len(initial) != 0 {
		t.Fatalf("expected empty initial ledger, got %+v", initial)
	}
	_ = store.PutAnswer(ctx, domain.AnswerRecord{QuestionIndex: 0, TeamName: "Red", Points: 10})
	if got := receive(t, updates); len(got) != 1 || got[0].TeamName != "Red" {
		t.Fatalf("unexpected ledger %+v", got)
	}
}
