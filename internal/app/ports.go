package app

import (
	"context"

	"quizsync-service/internal/domain"
)

// SessionStore abstracts the shared session document (in-memory, Redis, etc).
// Only the host writes it; every write bumps Version.
type SessionStore interface {
	// SetSession fully overwrites the document.
	SetSession(ctx context.Context, session domain.Session) (domain.Session, error)
	// UpdateSession merges patch at field granularity. It fails with
	// domain.ErrStaleVersion when the stored version is not expectedVersion.
	UpdateSession(ctx context.Context, expectedVersion int64, patch domain.SessionPatch) (domain.Session, error)
	// GetSession returns domain.ErrNoActiveSession when nothing was loaded yet.
	GetSession(ctx context.Context) (domain.Session, error)
	// SubscribeSession delivers the current value and then the latest value
	// after every change. Intermediate values may be coalesced.
	// The caller must invoke the returned cancel function to avoid leaks.
	SubscribeSession(ctx context.Context) (<-chan domain.Session, func(), error)
}

// TeamStore is the team registry, keyed by team name.
type TeamStore interface {
	PutTeam(ctx context.Context, team domain.Team) error
	GetTeam(ctx context.Context, name string) (domain.Team, error)
	ListTeams(ctx context.Context) ([]domain.Team, error)
	// RemoveTeam is a no-op for unknown names.
	RemoveTeam(ctx context.Context, name string) error
	// SubscribeTeams fires with the full member set on every member change.
	SubscribeTeams(ctx context.Context) (<-chan []domain.Team, func(), error)
}

// AnswerStore is the answer ledger, one record per domain.AnswerKey.
type AnswerStore interface {
	// PutAnswer overwrites any record already stored under the same key.
	PutAnswer(ctx context.Context, record domain.AnswerRecord) error
	// GetAnswer returns ok=false when the slot is empty.
	GetAnswer(ctx context.Context, key domain.AnswerKey) (domain.AnswerRecord, bool, error)
	ListAnswers(ctx context.Context) ([]domain.AnswerRecord, error)
	SubscribeAnswers(ctx context.Context) (<-chan []domain.AnswerRecord, func(), error)
}

// BlobStore uploads binary assets and resolves references to URLs.
type BlobStore interface {
	Upload(ctx context.Context, path string, data []byte, contentType string) (string, error)
	Resolve(ctx context.Context, ref string) (string, error)
}

// QuestionSource loads normalised question sets by name.
type QuestionSource interface {
	LoadQuestionSet(ctx context.Context, name string) ([]domain.Question, error)
}

// ResultArchive keeps the final standings of a finished session.
type ResultArchive interface {
	ArchiveResults(ctx context.Context, questionSetID string, lb domain.Leaderboard) error
}
