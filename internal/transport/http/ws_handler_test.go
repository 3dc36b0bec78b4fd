package http

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap/zaptest"

	"quizsync-service/internal/app"
	"quizsync-service/internal/domain"
	"quizsync-service/internal/infra/memory"
	"quizsync-service/internal/ordering"
)

type testServer struct {
	*httptest.Server
	services Services
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zaptest.NewLogger(t).Sugar()
	sessions := memory.NewSessionStore()
	teams := memory.NewTeamStore()
	answers := memory.NewAnswerStore()
	blobs := memory.NewBlobStore("/blobs")

	services := Services{
		SessionKey: "game1",
		Sessions:   sessions,
		Host: app.NewHost("game1", sessions, logger,
			app.WithRand(rand.New(rand.NewSource(7))),
			app.WithBlobStore(blobs),
			app.WithDefaultSettings(domain.Settings{QuestionTimerSeconds: 5})),
		Teams:   app.NewTeamService("game1", teams, blobs, logger),
		Answers: app.NewAnswerService(sessions, answers, logger),
		Board:   app.NewScoreboard("game1", sessions, teams, answers, logger),
		Blobs:   blobs,
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = services.Board.Run(ctx) }()

	server := httptest.NewServer(NewRouter(services, logger))
	t.Cleanup(func() {
		server.Close()
		cancel()
	})
	return &testServer{Server: server, services: services}
}

func (s *testServer) dial(t *testing.T, query string) *websocket.Conn {
	t.Helper()
	u := "ws" + s.URL[len("http"):] + "/ws?" + query
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

type frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// readUntil skips frames until one of type typ satisfies match.
func readUntil(t *testing.T, conn *websocket.Conn, typ string, match func(json.RawMessage) bool) json.RawMessage {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		_ = conn.SetReadDeadline(deadline)
		var msg frame
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read json waiting for %s: %v", typ, err)
		}
		if msg.Type == typ && (match == nil || match(msg.Payload)) {
			return msg.Payload
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"type": typ, "payload": payload}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

func TestWebSocketRoundFlow(t *testing.T) {
	srv := newTestServer(t)
	if _, err := srv.services.Teams.Join(context.Background(), "Red", []byte("selfie"), "image/jpeg"); err != nil {
		t.Fatalf("join: %v", err)
	}

	host := srv.dial(t, "role=host")
	readUntil(t, host, msgWaiting, nil)

	player := srv.dial(t, "team=Red")
	readUntil(t, player, msgWaiting, nil)

	send(t, host, msgLoad, map[string]any{"questions": []domain.Question{
		{Text: "2 + 2?", Answers: []string{"4", "3", "5", "22"}},
	}})
	readUntil(t, player, msgSession, func(raw json.RawMessage) bool {
		var view app.SessionView
		_ = json.Unmarshal(raw, &view)
		return view.State == domain.StateWaiting && view.Question != nil
	})

	send(t, host, msgAdvance, map[string]any{"delta": 0})
	raw := readUntil(t, player, msgSession, func(raw json.RawMessage) bool {
		var view app.SessionView
		_ = json.Unmarshal(raw, &view)
		return view.State == domain.StateInProgress && view.TimerActive
	})
	var view app.SessionView
	if err := json.Unmarshal(raw, &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if view.Question.CorrectDisplayed != nil {
		t.Fatalf("participant must not see the answer while the timer runs")
	}

	session, _ := srv.services.Host.Session()
	m, err := ordering.NewMapper(session.Questions[0].AnswerOrder, 4)
	if err != nil {
		t.Fatalf("mapper: %v", err)
	}
	if view.Question.Answers[m.CorrectDisplayed()] != "4" {
		t.Fatalf("displayed answers do not follow the stored order: %v", view.Question.Answers)
	}

	send(t, player, msgSelect, map[string]any{"index": m.CorrectDisplayed()})
	send(t, player, msgSubmit, nil)
	raw = readUntil(t, player, msgAnswerResult, nil)
	var result answerResult
	_ = json.Unmarshal(raw, &result)
	if !result.Correct || result.Points != domain.PointsPerCorrectAnswer {
		t.Fatalf("unexpected answer result %+v", result)
	}

	readUntil(t, host, msgLeaderboard, func(raw json.RawMessage) bool {
		var lb domain.Leaderboard
		_ = json.Unmarshal(raw, &lb)
		return len(lb.Entries) == 1 && lb.Entries[0].TeamName == "Red" && lb.Entries[0].Score == 10
	})

	send(t, player, msgSubmit, nil)
	raw = readUntil(t, player, msgError, nil)
	var errPayload errorPayload
	_ = json.Unmarshal(raw, &errPayload)
	if errPayload.Code != codeLocked {
		t.Fatalf("expected locked error, got %+v", errPayload)
	}
}

func TestWebSocketHostErrors(t *testing.T) {
	srv := newTestServer(t)
	host := srv.dial(t, "role=host")
	readUntil(t, host, msgWaiting, nil)

	send(t, host, msgAdvance, map[string]any{"delta": 1})
	raw := readUntil(t, host, msgError, nil)
	var payload errorPayload
	_ = json.Unmarshal(raw, &payload)
	if payload.Code != codeNotReady {
		t.Fatalf("expected not_ready, got %+v", payload)
	}

	send(t, host, msgLoad, map[string]any{"set": "missing"})
	raw = readUntil(t, host, msgError, nil)
	_ = json.Unmarshal(raw, &payload)
	if payload.Code != codeNotFound {
		t.Fatalf("expected not_found, got %+v", payload)
	}

	send(t, host, "dance", nil)
	readUntil(t, host, msgError, nil)
}

func TestWebSocketRejectsUnknownTeam(t *testing.T) {
	srv := newTestServer(t)
	u := "ws" + srv.URL[len("http"):] + "/ws?team=Ghost"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatalf("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %+v", resp)
	}

	u = "ws" + srv.URL[len("http"):] + "/ws"
	_, resp, err = websocket.DefaultDialer.Dial(u, nil)
	if err == nil || resp == nil || resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without role or team, got %v %+v", err, resp)
	}
}
