package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"quizsync-service/internal/domain"
)

// Scoreboard keeps a ranked leaderboard current by recomputing it whenever
// the team registry, the answer ledger or the loaded question set changes,
// and fans it out. Only records of the loaded question set count.
type Scoreboard struct {
	key      string
	sessions SessionStore
	teams    TeamStore
	answers AnswerStore
	logger  *zap.SugaredLogger
	now     func() time.Time

	mu          sync.RWMutex
	setID       string
	teamSnap    []domain.Team
	answerSnap  []domain.AnswerRecord
	latest      domain.Leaderboard
	subscribers map[chan domain.Leaderboard]struct{}
}

func NewScoreboard(key string, sessions SessionStore, teams TeamStore, answers AnswerStore, logger *zap.SugaredLogger) *Scoreboard {
	return &Scoreboard{
		key:         key,
		sessions:    sessions,
		teams:       teams,
		answers:     answers,
		logger:      logger,
		now:         time.Now,
		latest:      domain.Leaderboard{SessionKey: key, Entries: []domain.LeaderboardEntry{}},
		subscribers: make(map[chan domain.Leaderboard]struct{}),
	}
}

// Run follows the session and both collections until ctx is done or a feed
// closes.
func (b *Scoreboard) Run(ctx context.Context) error {
	sessionUpdates, cancelSession, err := b.sessions.SubscribeSession(ctx)
	if err != nil {
		return fmt.Errorf("subscribe session: %w", err)
	}
	defer cancelSession()

	teamUpdates, cancelTeams, err := b.teams.SubscribeTeams(ctx)
	if err != nil {
		return fmt.Errorf("subscribe teams: %w", err)
	}
	defer cancelTeams()

	answerUpdates, cancelAnswers, err := b.answers.SubscribeAnswers(ctx)
	if err != nil {
		return fmt.Errorf("subscribe answers: %w", err)
	}
	defer cancelAnswers()

	for {
		select {
		case <-ctx.Done():
			return nil
		case session, ok := <-sessionUpdates:
			if !ok {
				return nil
			}
			b.mu.Lock()
			if session.QuestionSetID != b.setID {
				b.setID = session.QuestionSetID
				b.recomputeLocked()
			}
			b.mu.Unlock()
		case teams, ok := <-teamUpdates:
			if !ok {
				return nil
			}
			b.mu.Lock()
			b.teamSnap = teams
			b.recomputeLocked()
			b.mu.Unlock()
		case records, ok := <-answerUpdates:
			if !ok {
				return nil
			}
			b.mu.Lock()
			b.answerSnap = records
			b.recomputeLocked()
			b.mu.Unlock()
		}
	}
}

// Latest returns the most recently computed leaderboard.
func (b *Scoreboard) Latest() domain.Leaderboard {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.latest
}

// Snapshot computes the leaderboard of the loaded question set straight from
// the stores.
func (b *Scoreboard) Snapshot(ctx context.Context) (domain.Leaderboard, error) {
	session, err := b.sessions.GetSession(ctx)
	if err != nil && !errors.Is(err, domain.ErrNoActiveSession) {
		return domain.Leaderboard{}, fmt.Errorf("get session: %w", err)
	}
	return b.SnapshotFor(ctx, session.QuestionSetID)
}

// SnapshotFor computes the leaderboard of one question set.
func (b *Scoreboard) SnapshotFor(ctx context.Context, questionSetID string) (domain.Leaderboard, error) {
	teams, err := b.teams.ListTeams(ctx)
	if err != nil {
		return domain.Leaderboard{}, fmt.Errorf("list teams: %w", err)
	}
	records, err := b.answers.ListAnswers(ctx)
	if err != nil {
		return domain.Leaderboard{}, fmt.Errorf("list answers: %w", err)
	}
	return domain.Leaderboard{SessionKey: b.key, Entries: Rank(teams, records, questionSetID), UpdatedAt: b.now()}, nil
}

// Subscribe returns a channel that receives leaderboard updates, starting
// with the current one. The caller must invoke cancel to avoid leaks.
func (b *Scoreboard) Subscribe() (<-chan domain.Leaderboard, func()) {
	ch := make(chan domain.Leaderboard, 8)

	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	ch <- b.latest
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subscribers[ch]; ok {
			delete(b.subscribers, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

func (b *Scoreboard) recomputeLocked() {
	b.latest = domain.Leaderboard{
		SessionKey: b.key,
		Entries:    Rank(b.teamSnap, b.answerSnap, b.setID),
		UpdatedAt:  b.now(),
	}
	for ch := range b.subscribers {
		select {
		case ch <- b.latest:
		default:
			// slow subscriber: drop its oldest pending board, keep the newest
			select {
			case <-ch:
			default:
			}
			ch <- b.latest
		}
	}
}
