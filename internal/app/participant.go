package app

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"quizsync-service/internal/domain"
)

// Participant is one team's view of the session. It reacts to session
// notifications one at a time: a new question clears the selection, and a
// timer reaching zero before the team submitted forces a submission of
// whatever is selected, including nothing.
type Participant struct {
	team    string
	answers *AnswerService
	logger  *zap.SugaredLogger

	mu       chan struct{} // one event at a time, held across store writes
	ready    bool
	session  domain.Session
	setID    string
	current  int
	selected []int
	answered bool
	result   *domain.AnswerRecord
}

// ParticipantState is a snapshot of the participant's local view.
type ParticipantState struct {
	Team     string               `json:"team"`
	Ready    bool                 `json:"ready"`
	Current  int                  `json:"current"`
	Selected []int                `json:"selected"`
	Answered bool                 `json:"answered"`
	Result   *domain.AnswerRecord `json:"result,omitempty"`
}

func NewParticipant(team string, answers *AnswerService, logger *zap.SugaredLogger) *Participant {
	return &Participant{
		team:    team,
		answers: answers,
		logger:  logger.With("team", team),
		mu:      make(chan struct{}, 1),
	}
}

// Observe applies a session notification. When it forces a submission the
// resulting record is returned.
func (p *Participant) Observe(ctx context.Context, session domain.Session) (*domain.AnswerRecord, error) {
	if err := p.lock(ctx); err != nil {
		return nil, err
	}
	defer p.unlock()

	p.session = session
	if len(session.Questions) == 0 {
		p.ready = false
		return nil, nil
	}

	if !p.ready || session.QuestionSetID != p.setID || session.Current != p.current {
		p.resetLocked(ctx, session)
	}
	p.ready = true

	if p.expiredLocked() && !p.answered {
		record, err := p.submitLocked(ctx, true)
		if err != nil {
			return nil, err
		}
		return &record, nil
	}
	return nil, nil
}

// Select records a displayed index. Single choice replaces the selection,
// multi choice toggles the index.
func (p *Participant) Select(ctx context.Context, displayed int) ([]int, error) {
	if err := p.lock(ctx); err != nil {
		return nil, err
	}
	defer p.unlock()

	if !p.ready {
		return nil, domain.ErrNoActiveSession
	}
	if p.answered || p.expiredLocked() || p.session.State == domain.StateFinished {
		return nil, domain.ErrAnswerLocked
	}
	q, ok := p.session.CurrentQuestion()
	if !ok {
		return nil, domain.ErrNoCurrentQuestion
	}
	if displayed < 0 || displayed >= len(q.Answers) {
		return nil, fmt.Errorf("%w: index %d", domain.ErrInvalidSelection, displayed)
	}

	if q.Kind == domain.KindMultiChoice {
		p.selected = toggle(p.selected, displayed)
	} else {
		p.selected = []int{displayed}
	}
	return append([]int(nil), p.selected...), nil
}

// Submit sends the current selection. A team submits at most once per
// question from this view; a failed write leaves the question unanswered.
func (p *Participant) Submit(ctx context.Context) (domain.AnswerRecord, error) {
	if err := p.lock(ctx); err != nil {
		return domain.AnswerRecord{}, err
	}
	defer p.unlock()

	if !p.ready {
		return domain.AnswerRecord{}, domain.ErrNoActiveSession
	}
	if p.answered {
		return domain.AnswerRecord{}, domain.ErrAlreadyAnswered
	}
	return p.submitLocked(ctx, false)
}

// State returns a copy of the local view.
func (p *Participant) State() ParticipantState {
	p.mu <- struct{}{}
	defer p.unlock()

	state := ParticipantState{
		Team:     p.team,
		Ready:    p.ready,
		Current:  p.current,
		Selected: append([]int{}, p.selected...),
		Answered: p.answered,
	}
	if p.result != nil {
		r := *p.result
		state.Result = &r
	}
	return state
}

func (p *Participant) resetLocked(ctx context.Context, session domain.Session) {
	p.setID = session.QuestionSetID
	p.current = session.Current
	p.selected = nil
	p.answered = false
	p.result = nil

	// a reconnecting team must not have its earlier answer overwritten by a forced submit
	record, ok, err := p.answers.Lookup(ctx, session.Current, p.team)
	if err != nil {
		p.logger.Warnw("ledger lookup failed", "question", session.Current, "error", err)
		return
	}
	if ok && record.QuestionSetID == session.QuestionSetID {
		p.answered = true
		p.selected = append([]int(nil), record.DisplayedSelection...)
		p.result = &record
	}
}

func (p *Participant) submitLocked(ctx context.Context, forced bool) (domain.AnswerRecord, error) {
	p.answered = true
	record, err := p.answers.submitAgainst(ctx, p.session, p.current, p.team, p.selected, forced)
	if err != nil {
		p.answered = false
		return domain.AnswerRecord{}, err
	}
	p.result = &record
	if forced {
		p.logger.Infow("forced submission at timer expiry", "question", p.current, "selection", record.DisplayedSelection)
	}
	return record, nil
}

func (p *Participant) expiredLocked() bool {
	return Expired(p.session)
}

func (p *Participant) lock(ctx context.Context) error {
	select {
	case p.mu <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Participant) unlock() {
	<-p.mu
}

func toggle(selected []int, idx int) []int {
	out := make([]int, 0, len(selected)+1)
	found := false
	for _, s := range selected {
		if s == idx {
			found = true
			continue
		}
		out = append(out, s)
	}
	if !found {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}
