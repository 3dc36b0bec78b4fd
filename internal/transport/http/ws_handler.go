package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"quizsync-service/internal/app"
	"quizsync-service/internal/domain"
)

const roleHost = "host"

type WSHandler struct {
	services Services
	logger   *zap.SugaredLogger
	upgrader websocket.Upgrader
}

func NewWSHandler(services Services, logger *zap.SugaredLogger) *WSHandler {
	return &WSHandler{
		services: services,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeWS upgrades the request into either the host console (?role=host) or a
// participant (?team=<name>) connection.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	role := query.Get("role")
	team := strings.TrimSpace(query.Get("team"))

	switch {
	case role == roleHost:
		if h.services.Host == nil {
			http.Error(w, "host console disabled", http.StatusForbidden)
			return
		}
	case team != "":
		if _, err := h.services.Teams.Get(r.Context(), team); err != nil {
			writeError(w, err)
			return
		}
	default:
		http.Error(w, "missing role=host or team", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnw("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	logger := h.logger.With("conn", uuid.NewString())
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if role == roleHost {
		logger = logger.With("role", roleHost)
		logger.Infow("host connected")
		h.serveHost(ctx, newClient(conn, logger))
		logger.Infow("host disconnected")
		return
	}
	logger = logger.With("team", team)
	logger.Infow("participant connected")
	h.serveParticipant(ctx, newClient(conn, logger), team)
	logger.Infow("participant disconnected")
}

func (h *WSHandler) serveParticipant(ctx context.Context, c *client, team string) {
	participant := app.NewParticipant(team, h.services.Answers, c.logger)

	updates, cancelUpdates, err := h.services.Sessions.SubscribeSession(ctx)
	if err != nil {
		c.push(errorFrame(err))
		c.close()
		return
	}
	defer cancelUpdates()
	boards, cancelBoards := h.services.Board.Subscribe()
	defer cancelBoards()

	h.pushInitial(ctx, c)

	c.pump(func(closing <-chan struct{}) {
		for {
			select {
			case <-closing:
				return
			case session, ok := <-updates:
				if !ok {
					return
				}
				h.observe(ctx, c, participant, session)
			case lb, ok := <-boards:
				if !ok {
					return
				}
				c.push(outboundMessage[any]{Type: msgLeaderboard, Payload: lb})
			}
		}
	})

	c.readLoop(func(inbound inboundMessage) {
		switch inbound.Type {
		case msgSelect:
			var payload selectPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				c.push(errorFrame(errors.New("invalid select payload")))
				return
			}
			if _, err := participant.Select(ctx, payload.Index); err != nil {
				c.push(errorFrame(err))
				return
			}
			c.push(participantFrame(participant.State()))
		case msgSubmit:
			record, err := participant.Submit(ctx)
			if err != nil {
				c.push(errorFrame(err))
				return
			}
			c.push(outboundMessage[any]{Type: msgAnswerResult, Payload: newAnswerResult(record)})
			c.push(participantFrame(participant.State()))
		default:
			c.push(errorFrame(errors.New("unsupported message type")))
		}
	})

	c.close()
}

func (h *WSHandler) observe(ctx context.Context, c *client, participant *app.Participant, session domain.Session) {
	forced, err := participant.Observe(ctx, session)
	if err != nil {
		c.logger.Warnw("observe session failed", "error", err)
		c.push(errorFrame(err))
	}
	if len(session.Questions) == 0 {
		c.push(waitingFrame(session.Key, domain.ErrNoActiveSession))
		return
	}
	view, err := app.BuildSessionView(session, app.Expired(session) || session.State == domain.StateFinished)
	if err != nil {
		c.push(errorFrame(err))
		return
	}
	c.push(outboundMessage[any]{Type: msgSession, Payload: view})
	if forced != nil {
		c.push(outboundMessage[any]{Type: msgAnswerResult, Payload: newAnswerResult(*forced)})
	}
	c.push(participantFrame(participant.State()))
}

func (h *WSHandler) serveHost(ctx context.Context, c *client) {
	host := h.services.Host

	updates, cancelUpdates, err := h.services.Sessions.SubscribeSession(ctx)
	if err != nil {
		c.push(errorFrame(err))
		c.close()
		return
	}
	defer cancelUpdates()
	boards, cancelBoards := h.services.Board.Subscribe()
	defer cancelBoards()

	h.pushInitial(ctx, c)

	c.pump(func(closing <-chan struct{}) {
		for {
			select {
			case <-closing:
				return
			case session, ok := <-updates:
				if !ok {
					return
				}
				view, err := app.BuildSessionView(session, true)
				if err != nil {
					c.push(errorFrame(err))
					continue
				}
				c.push(outboundMessage[any]{Type: msgSession, Payload: view})
			case lb, ok := <-boards:
				if !ok {
					return
				}
				c.push(outboundMessage[any]{Type: msgLeaderboard, Payload: lb})
			}
		}
	})

	c.readLoop(func(inbound inboundMessage) {
		var err error
		switch inbound.Type {
		case msgAdvance:
			var payload advancePayload
			if err = decodePayload(inbound.Payload, &payload); err == nil {
				_, err = host.Advance(ctx, payload.Delta)
			}
		case msgLoad:
			var payload loadPayload
			if err = decodePayload(inbound.Payload, &payload); err == nil {
				if len(payload.Questions) > 0 {
					_, err = host.LoadQuestions(ctx, payload.Questions)
				} else {
					_, err = host.LoadQuestionSet(ctx, payload.Set)
				}
			}
		case msgSettings:
			var payload settingsPayload
			if err = decodePayload(inbound.Payload, &payload); err == nil {
				_, err = host.UpdateSettings(ctx, domain.SettingsPatch(payload))
			}
		case msgFinish:
			_, err = host.Finish(ctx)
		default:
			err = errors.New("unsupported message type")
		}
		if err != nil {
			c.logger.Infow("host command rejected", "type", inbound.Type, "error", err)
			c.push(errorFrame(err))
		}
	})

	c.close()
}

// pushInitial tells a fresh connection to wait when nothing is loaded yet;
// otherwise the subscription delivers the current session.
func (h *WSHandler) pushInitial(ctx context.Context, c *client) {
	if _, err := h.services.Sessions.GetSession(ctx); domain.IsNotReady(err) {
		c.push(waitingFrame(h.services.SessionKey, err))
	}
}

func waitingFrame(key string, reason error) outboundMessage[any] {
	return outboundMessage[any]{Type: msgWaiting, Payload: waitingPayload{SessionKey: key, Reason: reason.Error()}}
}

func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errors.New("invalid payload")
	}
	return nil
}
