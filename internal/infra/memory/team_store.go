package memory

import (
	"context"
	"sort"
	"sync"

	"quizsync-service/internal/domain"
)

// TeamStore is an in-memory team registry keyed by team name.
type TeamStore struct {
	mu    sync.Mutex
	teams map[string]domain.Team
	feed  *feed[[]domain.Team]
}

func NewTeamStore() *TeamStore {
	return &TeamStore{teams: make(map[string]domain.Team), feed: newFeed[[]domain.Team]()}
}

func (s *TeamStore) PutTeam(_ context.Context, team domain.Team) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teams[team.Name] = team
	s.feed.publish(s.listLocked())
	return nil
}

func (s *TeamStore) GetTeam(_ context.Context, name string) (domain.Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	team, ok := s.teams[name]
	if !ok {
		return domain.Team{}, domain.ErrTeamNotFound
	}
	return team, nil
}

func (s *TeamStore) ListTeams(_ context.Context) ([]domain.Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listLocked(), nil
}

// RemoveTeam drops a team from the registry. Its ledger records stay behind.
func (s *TeamStore) RemoveTeam(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.teams[name]; !ok {
		return nil
	}
	delete(s.teams, name)
	s.feed.publish(s.listLocked())
	return nil
}

func (s *TeamStore) SubscribeTeams(ctx context.Context) (<-chan []domain.Team, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, cancel := s.feed.subscribe(ctx, s.listLocked(), true)
	return ch, cancel, nil
}

func (s *TeamStore) listLocked() []domain.Team {
	out := make([]domain.Team, 0, len(s.teams))
	for _, team := range s.teams {
		out = append(out, team)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		return out[i].Name < out[j].Name
	})
	return out
}
