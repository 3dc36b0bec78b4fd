package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"quizsync-service/internal/domain"
)

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}

func setup(t *testing.T) (*miniredis.Miniredis, *redis.Client, *zap.SugaredLogger) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := newClient(mr)
	t.Cleanup(func() { _ = client.Close() })
	return mr, client, zaptest.NewLogger(t).Sugar()
}

func sampleSession() domain.Session {
	return domain.Session{
		QuestionSetID: "set-1",
		Questions: []domain.Question{
			{Text: "2 + 2?", Answers: []string{"4", "3", "5"}, AnswerOrder: []int{2, 0, 1}, Kind: domain.KindSingleChoice},
		},
		Timer:    20,
		Settings: domain.Settings{QuestionTimerSeconds: 20, BackgroundRef: "/blobs/media/bg.png"},
		State:    domain.StateWaiting,
	}
}

func TestSessionStoreRoundTripsDocument(t *testing.T) {
	ctx := context.Background()
	mr, client, logger := setup(t)
	store := NewSessionStore(client, "game1", Options{KeyTTL: time.Hour}, logger)

	if _, err := store.GetSession(ctx); !errors.Is(err, domain.ErrNoActiveSession) {
		t.Fatalf("expected no session, got %v", err)
	}

	saved, err := store.SetSession(ctx, sampleSession())
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	if saved.Version != 1 || saved.Key != "game1" {
		t.Fatalf("unexpected saved session %+v", saved)
	}
	if !mr.Exists("quiz:game1:session") {
		t.Fatalf("expected session hash")
	}
	if ttl := mr.TTL("quiz:game1:session"); ttl <= 0 {
		t.Fatalf("expected ttl on session hash, got %v", ttl)
	}

	got, err := store.GetSession(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.QuestionSetID != "set-1" || got.Timer != 20 || got.Settings.BackgroundRef != "/blobs/media/bg.png" {
		t.Fatalf("unexpected session %+v", got)
	}
	if order := got.Questions[0].AnswerOrder; len(order) != 3 || order[0] != 2 {
		t.Fatalf("answer order not preserved: %v", order)
	}
}

func TestSessionStorePatchesFieldsAndChecksVersion(t *testing.T) {
	ctx := context.Background()
	mr, client, logger := setup(t)
	store := NewSessionStore(client, "game1", Options{}, logger)
	saved, _ := store.SetSession(ctx, sampleSession())

	current, timer, active := 0, 20, true
	state := domain.StateInProgress
	updated, err := store.UpdateSession(ctx, saved.Version, domain.SessionPatch{
		Current: &current, Timer: &timer, TimerActive: &active, State: &state,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Version != 2 || !updated.TimerActive || updated.State != domain.StateInProgress {
		t.Fatalf("unexpected update %+v", updated)
	}
	if v := mr.HGet("quiz:game1:session", "timerActive"); v != "1" {
		t.Fatalf("expected timerActive field set, got %q", v)
	}

	if _, err := store.UpdateSession(ctx, saved.Version, domain.SessionPatch{Timer: &timer}); !errors.Is(err, domain.ErrStaleVersion) {
		t.Fatalf("expected stale version, got %v", err)
	}

	next := 19
	if _, err := store.UpdateSession(ctx, updated.Version, domain.SessionPatch{Timer: &next}); err != nil {
		t.Fatalf("tick: %v", err)
	}
	got, _ := store.GetSession(ctx)
	if got.Timer != 19 || got.Settings.QuestionTimerSeconds != 20 || len(got.Questions) != 1 {
		t.Fatalf("patch touched untouched fields: %+v", got)
	}
}

func TestSessionStoreUpdateWithoutSession(t *testing.T) {
	_, client, logger := setup(t)
	store := NewSessionStore(client, "game1", Options{}, logger)
	timer := 1
	if _, err := store.UpdateSession(context.Background(), 0, domain.SessionPatch{Timer: &timer}); !errors.Is(err, domain.ErrNoActiveSession) {
		t.Fatalf("expected no active session, got %v", err)
	}
}

func TestSessionStoreSubscribeDeliversChanges(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, client, logger := setup(t)
	store := NewSessionStore(client, "game1", Options{}, logger)
	saved, _ := store.SetSession(ctx, sampleSession())

	updates, stop, err := store.SubscribeSession(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	first := receive(t, updates)
	if first.Version != saved.Version {
		t.Fatalf("expected initial snapshot, got %+v", first)
	}

	timer := 7
	if _, err := store.UpdateSession(ctx, saved.Version, domain.SessionPatch{Timer: &timer}); err != nil {
		t.Fatalf("update: %v", err)
	}
	for {
		s := receive(t, updates)
		if s.Timer == 7 {
			break
		}
	}

	stop()
	for range updates {
		// drain whatever was pending; the loop ends once the channel is closed
	}
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatalf("channel closed")
		}
		return v
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for update")
	}
	var zero T
	return zero
}
