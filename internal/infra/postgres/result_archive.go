package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"quizsync-service/internal/domain"
)

type sessionResult struct {
	bun.BaseModel `bun:"table:session_results"`

	QuestionSetID string    `bun:"question_set_id,pk"`
	TeamName      string    `bun:"team_name,pk"`
	SessionKey    string    `bun:"session_key,notnull"`
	SelfieRef     string    `bun:"selfie_ref,notnull"`
	Score         int       `bun:"score,notnull"`
	Rank          int       `bun:"rank,notnull"`
	FinishedAt    time.Time `bun:"finished_at,notnull"`
}

// ResultArchive stores final standings through bun.
type ResultArchive struct {
	db *bun.DB
}

func NewResultArchive(db *bun.DB) *ResultArchive {
	return &ResultArchive{db: db}
}

// ArchiveResults writes one row per team. Archiving the same set again
// replaces its rows.
func (a *ResultArchive) ArchiveResults(ctx context.Context, questionSetID string, lb domain.Leaderboard) error {
	if len(lb.Entries) == 0 {
		return nil
	}
	finishedAt := lb.UpdatedAt
	if finishedAt.IsZero() {
		finishedAt = time.Now()
	}
	rows := make([]sessionResult, len(lb.Entries))
	for i, entry := range lb.Entries {
		rows[i] = sessionResult{
			QuestionSetID: questionSetID,
			TeamName:      entry.TeamName,
			SessionKey:    lb.SessionKey,
			SelfieRef:     entry.SelfieRef,
			Score:         entry.Score,
			Rank:          i + 1,
			FinishedAt:    finishedAt,
		}
	}

	_, err := a.db.NewInsert().
		Model(&rows).
		On("CONFLICT (question_set_id, team_name) DO UPDATE").
		Set("session_key = EXCLUDED.session_key").
		Set("selfie_ref = EXCLUDED.selfie_ref").
		Set("score = EXCLUDED.score").
		Set("rank = EXCLUDED.rank").
		Set("finished_at = EXCLUDED.finished_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("archive results: %w", err)
	}
	return nil
}

// ListResults returns the archived standings of a set in rank order.
func (a *ResultArchive) ListResults(ctx context.Context, questionSetID string) ([]domain.ArchivedResult, error) {
	var rows []sessionResult
	err := a.db.NewSelect().
		Model(&rows).
		Where("question_set_id = ?", questionSetID).
		Order("rank ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	results := make([]domain.ArchivedResult, len(rows))
	for i, row := range rows {
		results[i] = domain.ArchivedResult{
			QuestionSetID: row.QuestionSetID,
			SessionKey:    row.SessionKey,
			TeamName:      row.TeamName,
			SelfieRef:     row.SelfieRef,
			Score:         row.Score,
			Rank:          row.Rank,
			FinishedAt:    row.FinishedAt,
		}
	}
	return results, nil
}
