package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"quizsync-service/internal/domain"
	"quizsync-service/internal/ordering"
)

const (
	MinQuestionTimerSeconds     = 5
	MaxQuestionTimerSeconds     = 120
	DefaultQuestionTimerSeconds = 20
)

// Host is the single authoritative writer of the session document. It keeps a
// local copy of what it last persisted and derives every write from it.
//
// Time is host-local: if the host process stops, ticking stops and observers
// see the timer frozen at its last persisted value. There is no failover.
type Host struct {
	key      string
	store    SessionStore
	source   QuestionSource
	blobs    BlobStore
	logger   *zap.SugaredLogger
	newSetID func() string

	mu       sync.Mutex
	rnd      *rand.Rand
	defaults domain.Settings
	session  domain.Session
	loaded   bool

	restarts chan struct{}
}

// HostOption customises a Host.
type HostOption func(*Host)

// WithQuestionSource enables LoadQuestionSet.
func WithQuestionSource(source QuestionSource) HostOption {
	return func(h *Host) { h.source = source }
}

// WithBlobStore enables resolving media and background references.
func WithBlobStore(blobs BlobStore) HostOption {
	return func(h *Host) { h.blobs = blobs }
}

// WithRand makes answer shuffling deterministic (tests).
func WithRand(rnd *rand.Rand) HostOption {
	return func(h *Host) { h.rnd = rnd }
}

// WithDefaultSettings sets the settings used before any session exists.
func WithDefaultSettings(settings domain.Settings) HostOption {
	return func(h *Host) { h.defaults = settings }
}

// WithQuestionSetIDs overrides how question set ids are minted (tests).
func WithQuestionSetIDs(next func() string) HostOption {
	return func(h *Host) { h.newSetID = next }
}

func NewHost(key string, store SessionStore, logger *zap.SugaredLogger, opts ...HostOption) *Host {
	h := &Host{
		key:      key,
		store:    store,
		logger:   logger,
		newSetID: func() string { return uuid.NewString() },
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
		defaults: domain.Settings{QuestionTimerSeconds: DefaultQuestionTimerSeconds},
		restarts: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.defaults.QuestionTimerSeconds = clampTimer(h.defaults.QuestionTimerSeconds)
	return h
}

// Resume adopts the persisted session, if any, after a host restart.
func (h *Host) Resume(ctx context.Context) error {
	session, err := h.store.GetSession(ctx)
	if errors.Is(err, domain.ErrNoActiveSession) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("resume session: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.session = session
	h.loaded = true
	h.logger.Infow("resumed session",
		"session", h.key, "version", session.Version, "current", session.Current,
		"timer", session.Timer, "timerActive", session.TimerActive, "state", session.State)
	if session.TimerActive {
		h.signalRestart()
	}
	return nil
}

// Session returns the host's copy of the session document.
func (h *Host) Session() (domain.Session, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.session, h.loaded
}

// Restarts fires whenever Advance (re)starts the countdown.
func (h *Host) Restarts() <-chan struct{} {
	return h.restarts
}

// LoadQuestions replaces the whole session with a fresh one in the waiting
// state. Each question's answer order is shuffled here, once.
func (h *Host) LoadQuestions(ctx context.Context, questions []domain.Question) (domain.Session, error) {
	if len(questions) == 0 {
		return domain.Session{}, domain.ErrNoQuestions
	}
	for i, q := range questions {
		if len(q.Answers) == 0 {
			return domain.Session{}, fmt.Errorf("%w: question %d has no answers", domain.ErrNoQuestions, i)
		}
		if err := ordering.ValidateCorrect(q); err != nil {
			return domain.Session{}, fmt.Errorf("%w: question %d: %v", domain.ErrNoQuestions, i, err)
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	prepared := make([]domain.Question, len(questions))
	for i, q := range questions {
		q.Answers = append([]string(nil), q.Answers...)
		if len(q.Correct) > 0 {
			q.Correct = ordering.SortedSet(q.Correct)
		}
		if q.Kind == "" {
			q.Kind = domain.KindSingleChoice
		}
		q.AnswerOrder = ordering.Shuffle(h.rnd, len(q.Answers))
		prepared[i] = q
	}

	settings := h.defaults
	if h.loaded {
		settings = h.session.Settings
	}
	settings.QuestionTimerSeconds = clampTimer(settings.QuestionTimerSeconds)

	saved, err := h.store.SetSession(ctx, domain.Session{
		Key:           h.key,
		QuestionSetID: h.newSetID(),
		Questions:     prepared,
		Current:       0,
		Timer:         settings.QuestionTimerSeconds,
		TimerActive:   false,
		Settings:      settings,
		State:         domain.StateWaiting,
	})
	if err != nil {
		return domain.Session{}, fmt.Errorf("save session: %w", err)
	}
	h.session = saved
	h.loaded = true
	h.logger.Infow("loaded questions",
		"session", h.key, "questionSet", saved.QuestionSetID, "questions", len(prepared), "version", saved.Version)
	return saved, nil
}

// LoadQuestionSet fetches a named set from the question source, resolves its
// media references and loads it.
func (h *Host) LoadQuestionSet(ctx context.Context, name string) (domain.Session, error) {
	if h.source == nil {
		return domain.Session{}, fmt.Errorf("%w: no question source configured", domain.ErrQuestionSetNotFound)
	}
	questions, err := h.source.LoadQuestionSet(ctx, name)
	if err != nil {
		return domain.Session{}, err
	}
	questions = resolveMedia(ctx, h.blobs, h.logger, questions)
	return h.LoadQuestions(ctx, questions)
}

// Advance moves the question pointer by delta, clamped to the question range,
// and (re)starts the countdown. It is the only transition into in_progress.
func (h *Host) Advance(ctx context.Context, delta int) (domain.Session, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.loaded || len(h.session.Questions) == 0 {
		return domain.Session{}, domain.ErrNoActiveSession
	}
	if h.session.State == domain.StateFinished {
		return domain.Session{}, domain.ErrSessionFinished
	}

	current := clamp(h.session.Current+delta, 0, len(h.session.Questions)-1)
	seconds := h.session.Settings.QuestionTimerSeconds
	if seconds <= 0 {
		seconds = DefaultQuestionTimerSeconds
	}
	active := true
	state := domain.StateInProgress

	// question pointer and timer reset travel in one write
	updated, err := h.updateLocked(ctx, domain.SessionPatch{
		Current:     &current,
		Timer:       &seconds,
		TimerActive: &active,
		State:       &state,
	})
	if err != nil {
		return domain.Session{}, err
	}
	h.signalRestart()
	h.logger.Infow("advanced",
		"session", h.key, "delta", delta, "current", current, "timer", seconds, "version", updated.Version)
	return updated, nil
}

// Tick decrements a running timer by one second. When it reaches zero the
// timer is deactivated. It reports whether the timer is still running.
func (h *Host) Tick(ctx context.Context) (domain.Session, bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.loaded || !h.session.TimerActive {
		return h.session, false, nil
	}

	next := h.session.Timer - 1
	patch := domain.SessionPatch{Timer: &next}
	if next <= 0 {
		zero, inactive := 0, false
		patch = domain.SessionPatch{Timer: &zero, TimerActive: &inactive}
	}
	updated, err := h.updateLocked(ctx, patch)
	if err != nil {
		return h.session, h.session.TimerActive, err
	}
	if !updated.TimerActive {
		h.logger.Infow("timer expired", "session", h.key, "current", updated.Current)
	}
	return updated, updated.TimerActive, nil
}

// UpdateSettings merges the fields present in patch into the current settings.
// The timer is clamped to [MinQuestionTimerSeconds, MaxQuestionTimerSeconds]
// and only takes effect on the next Advance. A background that cannot be
// resolved is dropped.
func (h *Host) UpdateSettings(ctx context.Context, patch domain.SettingsPatch) (domain.Settings, error) {
	if patch.BackgroundRef != nil {
		resolved := resolveRef(ctx, h.blobs, h.logger, mediaPrefix, *patch.BackgroundRef)
		patch.BackgroundRef = &resolved
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	current := h.defaults
	if h.loaded {
		current = h.session.Settings
	}
	settings := patch.Apply(current)
	settings.QuestionTimerSeconds = clampTimer(settings.QuestionTimerSeconds)

	if !h.loaded {
		h.defaults = settings
		return settings, nil
	}
	updated, err := h.updateLocked(ctx, domain.SessionPatch{Settings: &settings})
	if err != nil {
		return domain.Settings{}, err
	}
	h.logger.Infow("updated settings",
		"session", h.key, "questionTimerSeconds", settings.QuestionTimerSeconds, "background", settings.BackgroundRef)
	return updated.Settings, nil
}

// Finish moves the session into its terminal state and stops the timer.
func (h *Host) Finish(ctx context.Context) (domain.Session, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.loaded {
		return domain.Session{}, domain.ErrNoActiveSession
	}
	if h.session.State == domain.StateFinished {
		return h.session, nil
	}
	state := domain.StateFinished
	inactive := false
	updated, err := h.updateLocked(ctx, domain.SessionPatch{State: &state, TimerActive: &inactive})
	if err != nil {
		return domain.Session{}, err
	}
	h.logger.Infow("finished", "session", h.key, "questionSet", updated.QuestionSetID)
	return updated, nil
}

func (h *Host) updateLocked(ctx context.Context, patch domain.SessionPatch) (domain.Session, error) {
	updated, err := h.store.UpdateSession(ctx, h.session.Version, patch)
	if err != nil {
		return domain.Session{}, fmt.Errorf("update session: %w", err)
	}
	h.session = updated
	return updated, nil
}

func (h *Host) signalRestart() {
	select {
	case h.restarts <- struct{}{}:
	default:
	}
}

func clampTimer(seconds int) int {
	if seconds == 0 {
		return DefaultQuestionTimerSeconds
	}
	return clamp(seconds, MinQuestionTimerSeconds, MaxQuestionTimerSeconds)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
