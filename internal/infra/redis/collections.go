package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"quizsync-service/internal/domain"
)

// TeamStore keeps the registry in HSET quiz:{key}:teams {name} {json}.
type TeamStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	logger *zap.SugaredLogger
}

func NewTeamStore(client *redis.Client, sessionKey string, opts Options, logger *zap.SugaredLogger) *TeamStore {
	return &TeamStore{client: client, key: newKeyspace(sessionKey).teams, ttl: opts.KeyTTL, logger: logger}
}

func (s *TeamStore) PutTeam(ctx context.Context, team domain.Team) error {
	return putMember(ctx, s.client, s.key, s.ttl, team.Name, team)
}

func (s *TeamStore) GetTeam(ctx context.Context, name string) (domain.Team, error) {
	raw, err := s.client.HGet(ctx, s.key, name).Result()
	if errors.Is(err, redis.Nil) {
		return domain.Team{}, domain.ErrTeamNotFound
	}
	if err != nil {
		return domain.Team{}, fmt.Errorf("read team: %w", err)
	}
	var team domain.Team
	if err := json.Unmarshal([]byte(raw), &team); err != nil || team.Name == "" {
		return domain.Team{}, fmt.Errorf("%w: undecodable record for %q", domain.ErrTeamNotFound, name)
	}
	return team, nil
}

// RemoveTeam deletes a team from the registry. Its ledger records stay but no
// longer count towards the leaderboard.
func (s *TeamStore) RemoveTeam(ctx context.Context, name string) error {
	if err := s.client.HDel(ctx, s.key, name).Err(); err != nil {
		return fmt.Errorf("remove team: %w", err)
	}
	return notify(ctx, s.client, s.key)
}

func (s *TeamStore) ListTeams(ctx context.Context) ([]domain.Team, error) {
	values, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	teams := make([]domain.Team, 0, len(values))
	for name, raw := range values {
		var team domain.Team
		if err := json.Unmarshal([]byte(raw), &team); err != nil || team.Name == "" {
			s.logger.Warnw("skipping undecodable team record", "team", name, "error", err)
			continue
		}
		teams = append(teams, team)
	}
	sort.Slice(teams, func(i, j int) bool {
		if !teams[i].JoinedAt.Equal(teams[j].JoinedAt) {
			return teams[i].JoinedAt.Before(teams[j].JoinedAt)
		}
		return teams[i].Name < teams[j].Name
	})
	return teams, nil
}

func (s *TeamStore) SubscribeTeams(ctx context.Context) (<-chan []domain.Team, func(), error) {
	return watch(ctx, s.client, changedChannel(s.key), s.logger, func(ctx context.Context) ([]domain.Team, bool, error) {
		teams, err := s.ListTeams(ctx)
		return teams, err == nil, err
	})
}

// AnswerStore keeps the ledger in HSET quiz:{key}:answers {question}-{team} {json}.
type AnswerStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	logger *zap.SugaredLogger
}

func NewAnswerStore(client *redis.Client, sessionKey string, opts Options, logger *zap.SugaredLogger) *AnswerStore {
	return &AnswerStore{client: client, key: newKeyspace(sessionKey).answers, ttl: opts.KeyTTL, logger: logger}
}

func (s *AnswerStore) PutAnswer(ctx context.Context, record domain.AnswerRecord) error {
	return putMember(ctx, s.client, s.key, s.ttl, record.Key().String(), record)
}

func (s *AnswerStore) GetAnswer(ctx context.Context, key domain.AnswerKey) (domain.AnswerRecord, bool, error) {
	raw, err := s.client.HGet(ctx, s.key, key.String()).Result()
	if errors.Is(err, redis.Nil) {
		return domain.AnswerRecord{}, false, nil
	}
	if err != nil {
		return domain.AnswerRecord{}, false, fmt.Errorf("read answer: %w", err)
	}
	record, err := decodeAnswer(raw)
	if err != nil {
		s.logger.Warnw("ignoring undecodable answer record", "slot", key.String(), "error", err)
		return domain.AnswerRecord{}, false, nil
	}
	return record, true, nil
}

func (s *AnswerStore) ListAnswers(ctx context.Context) ([]domain.AnswerRecord, error) {
	values, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	records := make([]domain.AnswerRecord, 0, len(values))
	for slot, raw := range values {
		record, err := decodeAnswer(raw)
		if err != nil {
			s.logger.Warnw("skipping undecodable answer record", "slot", slot, "error", err)
			continue
		}
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].QuestionIndex != records[j].QuestionIndex {
			return records[i].QuestionIndex < records[j].QuestionIndex
		}
		return records[i].TeamName < records[j].TeamName
	})
	return records, nil
}

func (s *AnswerStore) SubscribeAnswers(ctx context.Context) (<-chan []domain.AnswerRecord, func(), error) {
	return watch(ctx, s.client, changedChannel(s.key), s.logger, func(ctx context.Context) ([]domain.AnswerRecord, bool, error) {
		records, err := s.ListAnswers(ctx)
		return records, err == nil, err
	})
}

// decodeAnswer rejects records whose points are not a number, so a corrupt
// entry is left out of the leaderboard instead of poisoning the sum.
func decodeAnswer(raw string) (domain.AnswerRecord, error) {
	var record domain.AnswerRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return domain.AnswerRecord{}, err
	}
	if record.TeamName == "" {
		return domain.AnswerRecord{}, errors.New("missing team name")
	}
	return record, nil
}

func putMember(ctx context.Context, client *redis.Client, key string, ttl time.Duration, field string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", field, err)
	}
	_, err = client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, field, payload)
		if ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", field, err)
	}
	return notify(ctx, client, key)
}

func notify(ctx context.Context, client *redis.Client, key string) error {
	if err := client.Publish(ctx, changedChannel(key), "1").Err(); err != nil {
		return fmt.Errorf("publish change: %w", err)
	}
	return nil
}
