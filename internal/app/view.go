package app

import (
	"quizsync-service/internal/domain"
	"quizsync-service/internal/ordering"
)

// QuestionView is a question as every client renders it: answers already in
// displayed order, no canonical indices exposed.
type QuestionView struct {
	Index            int                 `json:"index"`
	Total            int                 `json:"total"`
	Text             string              `json:"text"`
	Answers          []string            `json:"answers"`
	Kind             domain.QuestionKind `json:"kind"`
	Media            domain.Media        `json:"media"`
	CorrectDisplayed []int               `json:"correctDisplayed,omitempty"`
}

// SessionView is the read-only replica pushed to clients.
type SessionView struct {
	Key           string              `json:"key"`
	QuestionSetID string              `json:"questionSetId"`
	State         domain.SessionState `json:"state"`
	Timer         int                 `json:"timer"`
	TimerActive   bool                `json:"timerActive"`
	Background    string              `json:"background,omitempty"`
	Question      *QuestionView       `json:"question,omitempty"`
}

// BuildSessionView renders the session. The correct displayed slots are only
// included when reveal is set.
func BuildSessionView(s domain.Session, reveal bool) (SessionView, error) {
	view := SessionView{
		Key:           s.Key,
		QuestionSetID: s.QuestionSetID,
		State:         s.State,
		Timer:         s.Timer,
		TimerActive:   s.TimerActive,
		Background:    s.Settings.BackgroundRef,
	}
	q, ok := s.CurrentQuestion()
	if !ok {
		return view, nil
	}
	m, err := ordering.NewMapper(q.AnswerOrder, len(q.Answers))
	if err != nil {
		return SessionView{}, err
	}

	qv := &QuestionView{
		Index:   s.Current,
		Total:   len(s.Questions),
		Text:    q.Text,
		Answers: m.DisplayAnswers(q.Answers),
		Kind:    q.Kind,
		Media:   q.Media,
	}
	if qv.Media.Background == "" {
		qv.Media.Background = s.Settings.BackgroundRef
	}
	if reveal {
		for _, c := range q.CorrectCanonical() {
			if d, ok := m.Displayed(c); ok {
				qv.CorrectDisplayed = append(qv.CorrectDisplayed, d)
			}
		}
	}
	view.Question = qv
	return view, nil
}

// Expired reports whether the current question's countdown has run out.
func Expired(s domain.Session) bool {
	return s.State == domain.StateInProgress && !s.TimerActive && s.Timer <= 0
}
