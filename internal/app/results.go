package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"quizsync-service/internal/domain"
)

// ResultRecorder archives the final standings once a session finishes.
type ResultRecorder struct {
	sessions SessionStore
	board    *Scoreboard
	archive  ResultArchive
	logger   *zap.SugaredLogger
	archived map[string]bool
}

func NewResultRecorder(sessions SessionStore, board *Scoreboard, archive ResultArchive, logger *zap.SugaredLogger) *ResultRecorder {
	return &ResultRecorder{
		sessions: sessions,
		board:    board,
		archive:  archive,
		logger:   logger,
		archived: make(map[string]bool),
	}
}

func (r *ResultRecorder) Run(ctx context.Context) error {
	updates, cancel, err := r.sessions.SubscribeSession(ctx)
	if err != nil {
		return fmt.Errorf("subscribe session: %w", err)
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case session, ok := <-updates:
			if !ok {
				return nil
			}
			if session.State != domain.StateFinished || r.archived[session.QuestionSetID] {
				continue
			}
			if err := r.record(ctx, session); err != nil {
				r.logger.Errorw("archive results failed", "questionSet", session.QuestionSetID, "error", err)
				continue
			}
			r.archived[session.QuestionSetID] = true
		}
	}
}

func (r *ResultRecorder) record(ctx context.Context, session domain.Session) error {
	lb, err := r.board.SnapshotFor(ctx, session.QuestionSetID)
	if err != nil {
		return err
	}
	if err := r.archive.ArchiveResults(ctx, session.QuestionSetID, lb); err != nil {
		return err
	}
	r.logger.Infow("archived results", "session", session.Key, "questionSet", session.QuestionSetID, "teams", len(lb.Entries))
	return nil
}
