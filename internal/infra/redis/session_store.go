package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"quizsync-service/internal/domain"
)

// Session document fields. Scalars are stored as plain strings so a patch can
// HSET only the fields it touches; questions and settings are JSON.
const (
	fieldQuestionSetID = "questionSetId"
	fieldQuestions     = "questions"
	fieldCurrent       = "current"
	fieldTimer         = "timer"
	fieldTimerActive   = "timerActive"
	fieldSettings      = "settings"
	fieldState         = "state"
	fieldVersion       = "version"
	fieldUpdatedAt     = "updatedAt"
)

const maxSetRetries = 3

// hashReader is satisfied by both *redis.Client and *redis.Tx.
type hashReader interface {
	HGet(ctx context.Context, key, field string) *redis.StringCmd
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
}

// SessionStore keeps the session document in a Redis hash:
//
//	HSET quiz:{key}:session current 2 timer 20 timerActive 1 version 7 ...
//
// Writes are guarded with WATCH on the hash, so a writer holding an old
// version is rejected with domain.ErrStaleVersion.
type SessionStore struct {
	client *redis.Client
	key    string
	keys   keyspace
	ttl    time.Duration
	logger *zap.SugaredLogger
	now    func() time.Time
}

func NewSessionStore(client *redis.Client, sessionKey string, opts Options, logger *zap.SugaredLogger) *SessionStore {
	return &SessionStore{
		client: client,
		key:    sessionKey,
		keys:   newKeyspace(sessionKey),
		ttl:    opts.KeyTTL,
		logger: logger,
		now:    time.Now,
	}
}

func (s *SessionStore) SetSession(ctx context.Context, session domain.Session) (domain.Session, error) {
	var saved domain.Session
	txf := func(tx *redis.Tx) error {
		version, err := readVersion(ctx, tx, s.keys.session)
		if err != nil {
			return err
		}
		saved = session
		saved.Key = s.key
		saved.Version = version + 1
		saved.UpdatedAt = s.now()

		values, err := encodeSession(saved)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, s.keys.session)
			pipe.HSet(ctx, s.keys.session, values)
			if s.ttl > 0 {
				pipe.Expire(ctx, s.keys.session, s.ttl)
			}
			return nil
		})
		return err
	}

	// a full overwrite does not depend on the previous content, so a lost race
	// only needs a fresh version number
	for attempt := 0; attempt < maxSetRetries; attempt++ {
		err := s.client.Watch(ctx, txf, s.keys.session)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return domain.Session{}, fmt.Errorf("set session: %w", err)
		}
		s.notify(ctx)
		return saved, nil
	}
	return domain.Session{}, fmt.Errorf("set session: %w", domain.ErrStaleVersion)
}

func (s *SessionStore) UpdateSession(ctx context.Context, expectedVersion int64, patch domain.SessionPatch) (domain.Session, error) {
	var updated domain.Session
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := s.load(ctx, tx)
		if err != nil {
			return err
		}
		if current.Version != expectedVersion {
			return fmt.Errorf("%w: have %d, expected %d", domain.ErrStaleVersion, current.Version, expectedVersion)
		}
		updated = patch.Apply(current)
		updated.Version = current.Version + 1
		updated.UpdatedAt = s.now()

		values, err := encodePatch(patch, updated)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, s.keys.session, values)
			if s.ttl > 0 {
				pipe.Expire(ctx, s.keys.session, s.ttl)
			}
			return nil
		})
		return err
	}, s.keys.session)
	if errors.Is(err, redis.TxFailedErr) {
		return domain.Session{}, fmt.Errorf("%w: concurrent write", domain.ErrStaleVersion)
	}
	if err != nil {
		return domain.Session{}, err
	}
	s.notify(ctx)
	return updated, nil
}

func (s *SessionStore) GetSession(ctx context.Context) (domain.Session, error) {
	return s.load(ctx, s.client)
}

func (s *SessionStore) SubscribeSession(ctx context.Context) (<-chan domain.Session, func(), error) {
	return watch(ctx, s.client, changedChannel(s.keys.session), s.logger, func(ctx context.Context) (domain.Session, bool, error) {
		session, err := s.load(ctx, s.client)
		if errors.Is(err, domain.ErrNoActiveSession) {
			return domain.Session{}, false, nil
		}
		if err != nil {
			return domain.Session{}, false, err
		}
		return session, true, nil
	})
}

func (s *SessionStore) load(ctx context.Context, c hashReader) (domain.Session, error) {
	values, err := c.HGetAll(ctx, s.keys.session).Result()
	if err != nil {
		return domain.Session{}, fmt.Errorf("read session: %w", err)
	}
	if len(values) == 0 {
		return domain.Session{}, domain.ErrNoActiveSession
	}
	session, err := decodeSession(values)
	if err != nil {
		return domain.Session{}, fmt.Errorf("decode session: %w", err)
	}
	session.Key = s.key
	return session, nil
}

func (s *SessionStore) notify(ctx context.Context) {
	if err := s.client.Publish(ctx, changedChannel(s.keys.session), fieldVersion).Err(); err != nil {
		s.logger.Warnw("publish session change failed", "session", s.key, "error", err)
	}
}

func readVersion(ctx context.Context, c hashReader, key string) (int64, error) {
	raw, err := c.HGet(ctx, key, fieldVersion).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read version: %w", err)
	}
	return strconv.ParseInt(raw, 10, 64)
}

func encodeSession(s domain.Session) (map[string]any, error) {
	questions, err := json.Marshal(s.Questions)
	if err != nil {
		return nil, fmt.Errorf("encode questions: %w", err)
	}
	settings, err := json.Marshal(s.Settings)
	if err != nil {
		return nil, fmt.Errorf("encode settings: %w", err)
	}
	return map[string]any{
		fieldQuestionSetID: s.QuestionSetID,
		fieldQuestions:     string(questions),
		fieldCurrent:       s.Current,
		fieldTimer:         s.Timer,
		fieldTimerActive:   formatBool(s.TimerActive),
		fieldSettings:      string(settings),
		fieldState:         string(s.State),
		fieldVersion:       s.Version,
		fieldUpdatedAt:     s.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}, nil
}

// encodePatch returns only the fields the patch sets, plus the bookkeeping fields.
func encodePatch(p domain.SessionPatch, updated domain.Session) (map[string]any, error) {
	values := map[string]any{
		fieldVersion:   updated.Version,
		fieldUpdatedAt: updated.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if p.Current != nil {
		values[fieldCurrent] = *p.Current
	}
	if p.Timer != nil {
		values[fieldTimer] = *p.Timer
	}
	if p.TimerActive != nil {
		values[fieldTimerActive] = formatBool(*p.TimerActive)
	}
	if p.State != nil {
		values[fieldState] = string(*p.State)
	}
	if p.Settings != nil {
		settings, err := json.Marshal(p.Settings)
		if err != nil {
			return nil, fmt.Errorf("encode settings: %w", err)
		}
		values[fieldSettings] = string(settings)
	}
	return values, nil
}

func decodeSession(values map[string]string) (domain.Session, error) {
	var s domain.Session
	var err error

	s.QuestionSetID = values[fieldQuestionSetID]
	s.State = domain.SessionState(values[fieldState])
	if raw := values[fieldQuestions]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &s.Questions); err != nil {
			return domain.Session{}, fmt.Errorf("questions: %w", err)
		}
	}
	if raw := values[fieldSettings]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &s.Settings); err != nil {
			return domain.Session{}, fmt.Errorf("settings: %w", err)
		}
	}
	if s.Current, err = atoi(values, fieldCurrent); err != nil {
		return domain.Session{}, err
	}
	if s.Timer, err = atoi(values, fieldTimer); err != nil {
		return domain.Session{}, err
	}
	s.TimerActive = values[fieldTimerActive] == "1"
	if raw := values[fieldVersion]; raw != "" {
		if s.Version, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return domain.Session{}, fmt.Errorf("version: %w", err)
		}
	}
	if raw := values[fieldUpdatedAt]; raw != "" {
		if s.UpdatedAt, err = time.Parse(time.RFC3339Nano, raw); err != nil {
			return domain.Session{}, fmt.Errorf("updatedAt: %w", err)
		}
	}
	return s, nil
}

func atoi(values map[string]string, field string) (int, error) {
	raw, ok := values[field]
	if !ok || raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	return v, nil
}

func formatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
