package domain

import (
	"strconv"
	"time"
)

// SessionState is the lifecycle phase of the shared session document.
type SessionState string

const (
	StateWaiting    SessionState = "waiting"
	StateInProgress SessionState = "in_progress"
	StateFinished   SessionState = "finished"
)

// QuestionKind decides how a selection is judged.
type QuestionKind string

const (
	KindSingleChoice QuestionKind = "single_choice"
	KindMultiChoice  QuestionKind = "multi_choice"
)

// PointsPerCorrectAnswer is the flat award for a correct submission.
const PointsPerCorrectAnswer = 10

// Media holds resolved, retrievable URLs. Empty means absent.
type Media struct {
	Audio      string `json:"audio,omitempty"`
	Video      string `json:"video,omitempty"`
	Image      string `json:"image,omitempty"`
	Background string `json:"background,omitempty"`
}

// Question is stored with its answers in canonical (authored) order.
// Canonical index 0 is the correct answer of a single choice question.
type Question struct {
	Text        string       `json:"text"`
	Answers     []string     `json:"answers"`
	AnswerOrder []int        `json:"answerOrder"` // computed once at load, displayed -> canonical
	Kind        QuestionKind `json:"kind"`
	Correct     []int        `json:"correct,omitempty"` // canonical indices, multi choice only
	Media       Media        `json:"media"`
}

// CorrectCanonical returns the canonical indices that make up a correct answer.
func (q Question) CorrectCanonical() []int {
	if q.Kind == KindMultiChoice && len(q.Correct) > 0 {
		return q.Correct
	}
	return []int{0}
}

// Settings are host-controlled session knobs.
type Settings struct {
	QuestionTimerSeconds int    `json:"questionTimerSeconds"`
	BackgroundRef        string `json:"backgroundRef,omitempty"`
}

// SettingsPatch is a partial settings update. Nil fields keep their value; an
// empty BackgroundRef clears the background.
type SettingsPatch struct {
	QuestionTimerSeconds *int    `json:"questionTimerSeconds,omitempty"`
	BackgroundRef        *string `json:"background,omitempty"`
}

// Apply merges the patch into s and returns the result.
func (p SettingsPatch) Apply(s Settings) Settings {
	if p.QuestionTimerSeconds != nil {
		s.QuestionTimerSeconds = *p.QuestionTimerSeconds
	}
	if p.BackgroundRef != nil {
		s.BackgroundRef = *p.BackgroundRef
	}
	return s
}

// Session is the single shared document. Only the host writes it.
type Session struct {
	Key           string       `json:"key"`
	QuestionSetID string       `json:"questionSetId"`
	Questions     []Question   `json:"questions"`
	Current       int          `json:"current"`
	Timer         int          `json:"timer"`
	TimerActive   bool         `json:"timerActive"`
	Settings      Settings     `json:"settings"`
	State         SessionState `json:"state"`
	Version       int64        `json:"version"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}

// CurrentQuestion returns the active question, if any.
func (s Session) CurrentQuestion() (Question, bool) {
	if s.Current < 0 || s.Current >= len(s.Questions) {
		return Question{}, false
	}
	return s.Questions[s.Current], true
}

// SessionPatch is a field-granularity merge. Nil fields are left untouched.
type SessionPatch struct {
	Current     *int
	Timer       *int
	TimerActive *bool
	Settings    *Settings
	State       *SessionState
}

// Apply merges the patch into s and returns the result.
func (p SessionPatch) Apply(s Session) Session {
	if p.Current != nil {
		s.Current = *p.Current
	}
	if p.Timer != nil {
		s.Timer = *p.Timer
	}
	if p.TimerActive != nil {
		s.TimerActive = *p.TimerActive
	}
	if p.Settings != nil {
		s.Settings = *p.Settings
	}
	if p.State != nil {
		s.State = *p.State
	}
	return s
}

// Team is written once at join time and never mutated.
type Team struct {
	Name      string    `json:"name"`
	JoinedAt  time.Time `json:"joinedAt"`
	SelfieRef string    `json:"selfieRef"`
}

// AnswerKey is the sole collision-prevention mechanism of the ledger.
type AnswerKey struct {
	QuestionIndex int
	TeamName      string
}

func (k AnswerKey) String() string {
	return strconv.Itoa(k.QuestionIndex) + "-" + k.TeamName
}

// AnswerRecord is the one live ledger entry for a (question, team) pair.
type AnswerRecord struct {
	QuestionIndex      int       `json:"questionIndex"`
	TeamName           string    `json:"teamName"`
	QuestionSetID      string    `json:"questionSetId,omitempty"`
	DisplayedSelection []int     `json:"displayedSelection"`
	Correct            bool      `json:"correct"`
	Points             int       `json:"points"`
	Forced             bool      `json:"forced,omitempty"`
	SubmittedAt        time.Time `json:"submittedAt"`
}

// Key returns the ledger slot of the record.
func (r AnswerRecord) Key() AnswerKey {
	return AnswerKey{QuestionIndex: r.QuestionIndex, TeamName: r.TeamName}
}

// LeaderboardEntry is one ranked team.
type LeaderboardEntry struct {
	TeamName  string `json:"teamName"`
	SelfieRef string `json:"selfieRef,omitempty"`
	Score     int    `json:"score"`
}

// Leaderboard captures the ordered scoreboard for the session.
type Leaderboard struct {
	SessionKey string             `json:"sessionKey"`
	Entries    []LeaderboardEntry `json:"entries"`
	UpdatedAt  time.Time          `json:"updatedAt"`
}

// ArchivedResult is one team's final standing in a finished question set.
type ArchivedResult struct {
	QuestionSetID string    `json:"questionSetId"`
	SessionKey    string    `json:"sessionKey"`
	TeamName      string    `json:"teamName"`
	SelfieRef     string    `json:"selfieRef,omitempty"`
	Score         int       `json:"score"`
	Rank          int       `json:"rank"`
	FinishedAt    time.Time `json:"finishedAt"`
}
