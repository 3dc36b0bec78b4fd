package http

import (
	"encoding/json"
	"errors"

	"quizsync-service/internal/app"
	"quizsync-service/internal/domain"
)

// Outbound frame types.
const (
	msgSession      = "session"
	msgWaiting      = "waiting"
	msgLeaderboard  = "leaderboard"
	msgAnswerResult = "answerResult"
	msgParticipant  = "participant"
	msgError        = "error"
)

// Inbound frame types.
const (
	msgSelect   = "select"
	msgSubmit   = "submit"
	msgAdvance  = "advance"
	msgLoad     = "load"
	msgSettings = "settings"
	msgFinish   = "finish"
)

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type selectPayload struct {
	Index int `json:"index"`
}

type advancePayload struct {
	Delta int `json:"delta"`
}

type loadPayload struct {
	Set       string            `json:"set"`
	Questions []domain.Question `json:"questions"`
}

// settingsPayload carries only the fields the host changed.
type settingsPayload struct {
	QuestionTimerSeconds *int    `json:"questionTimerSeconds,omitempty"`
	BackgroundRef        *string `json:"background,omitempty"`
}

type waitingPayload struct {
	SessionKey string `json:"sessionKey"`
	Reason     string `json:"reason"`
}

type answerResult struct {
	QuestionIndex      int   `json:"questionIndex"`
	DisplayedSelection []int `json:"displayedSelection"`
	Correct            bool  `json:"correct"`
	Points             int   `json:"points"`
	Forced             bool  `json:"forced"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func newAnswerResult(record domain.AnswerRecord) answerResult {
	return answerResult{
		QuestionIndex:      record.QuestionIndex,
		DisplayedSelection: record.DisplayedSelection,
		Correct:            record.Correct,
		Points:             record.Points,
		Forced:             record.Forced,
	}
}

func participantFrame(state app.ParticipantState) outboundMessage[any] {
	return outboundMessage[any]{Type: msgParticipant, Payload: state}
}

// error codes shared by the websocket and REST surfaces
const (
	codeValidation = "validation"
	codeNotReady   = "not_ready"
	codeLocked     = "locked"
	codeConflict   = "conflict"
	codeNotFound   = "not_found"
	codeInternal   = "internal"
)

func errorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrTeamNotFound), errors.Is(err, domain.ErrQuestionSetNotFound):
		return codeNotFound
	case domain.IsValidation(err):
		return codeValidation
	case domain.IsNotReady(err):
		return codeNotReady
	case errors.Is(err, domain.ErrAlreadyAnswered), errors.Is(err, domain.ErrAnswerLocked):
		return codeLocked
	case errors.Is(err, domain.ErrStaleVersion), errors.Is(err, domain.ErrSessionFinished):
		return codeConflict
	default:
		return codeInternal
	}
}

func errorFrame(err error) outboundMessage[any] {
	return outboundMessage[any]{Type: msgError, Payload: errorPayload{Code: errorCode(err), Message: err.Error()}}
}
