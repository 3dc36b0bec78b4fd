package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"quizsync-service/internal/domain"
	"quizsync-service/internal/ordering"
)

// AnswerService judges submissions and writes them into the ledger.
type AnswerService struct {
	sessions SessionStore
	ledger   AnswerStore
	logger   *zap.SugaredLogger
	now      func() time.Time
}

func NewAnswerService(sessions SessionStore, ledger AnswerStore, logger *zap.SugaredLogger) *AnswerService {
	return &AnswerService{sessions: sessions, ledger: ledger, logger: logger, now: time.Now}
}

// Submit judges displayedSelection against the stored session and writes the
// record. A second submission for the same (question, team) overwrites the first.
func (s *AnswerService) Submit(ctx context.Context, questionIndex int, teamName string, displayedSelection []int) (domain.AnswerRecord, error) {
	session, err := s.sessions.GetSession(ctx)
	if err != nil {
		return domain.AnswerRecord{}, err
	}
	return s.submitAgainst(ctx, session, questionIndex, teamName, displayedSelection, false)
}

// Lookup returns the ledger record for a (question, team) slot.
func (s *AnswerService) Lookup(ctx context.Context, questionIndex int, teamName string) (domain.AnswerRecord, bool, error) {
	return s.ledger.GetAnswer(ctx, domain.AnswerKey{QuestionIndex: questionIndex, TeamName: teamName})
}

func (s *AnswerService) submitAgainst(ctx context.Context, session domain.Session, questionIndex int, teamName string, displayed []int, forced bool) (domain.AnswerRecord, error) {
	teamName = strings.TrimSpace(teamName)
	if teamName == "" {
		return domain.AnswerRecord{}, domain.ErrTeamNameRequired
	}
	if questionIndex < 0 || questionIndex >= len(session.Questions) {
		return domain.AnswerRecord{}, fmt.Errorf("%w: index %d", domain.ErrQuestionNotFound, questionIndex)
	}

	correct, err := ordering.Judge(session.Questions[questionIndex], displayed)
	if err != nil {
		return domain.AnswerRecord{}, err
	}

	record := domain.AnswerRecord{
		QuestionIndex:      questionIndex,
		TeamName:           teamName,
		QuestionSetID:      session.QuestionSetID,
		DisplayedSelection: append([]int{}, displayed...),
		Correct:            correct,
		Points:             ordering.Points(correct),
		Forced:             forced,
		SubmittedAt:        s.now(),
	}
	if err := s.ledger.PutAnswer(ctx, record); err != nil {
		return domain.AnswerRecord{}, fmt.Errorf("write answer %s: %w", record.Key(), err)
	}

	s.logger.Infow("answer recorded",
		"session", session.Key, "question", questionIndex, "team", teamName,
		"selection", record.DisplayedSelection, "correct", correct, "points", record.Points, "forced", forced)
	return record, nil
}
