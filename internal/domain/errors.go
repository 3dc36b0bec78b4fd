package domain

import "errors"

var (
	// ErrNoActiveSession is returned before the host has loaded any questions.
	ErrNoActiveSession = errors.New("no active session")
	// ErrNoCurrentQuestion indicates the session has no question at the current index.
	ErrNoCurrentQuestion = errors.New("no current question")
	// ErrSessionFinished is returned when the host tries to advance a finished session.
	ErrSessionFinished = errors.New("session finished")
	// ErrStaleVersion rejects a session write based on an outdated version.
	ErrStaleVersion = errors.New("stale session version")
	// ErrNoQuestions rejects loading an empty question set.
	ErrNoQuestions = errors.New("question set is empty")
	// ErrQuestionSetNotFound indicates the question source has no set by that name.
	ErrQuestionSetNotFound = errors.New("question set not found")
	// ErrQuestionNotFound indicates a submitted question index is out of range.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrInvalidSelection indicates a displayed index outside the question's answers.
	ErrInvalidSelection = errors.New("invalid answer selection")

	// ErrTeamNameRequired is a join validation error.
	ErrTeamNameRequired = errors.New("team name is required")
	// ErrInvalidTeamName rejects names that cannot be used as a storage key.
	ErrInvalidTeamName = errors.New("team name contains invalid characters")
	// ErrSelfieRequired is a join validation error.
	ErrSelfieRequired = errors.New("team selfie is required")
	// ErrTeamNotFound is returned when a team acts before joining.
	ErrTeamNotFound = errors.New("team not found")

	// ErrAlreadyAnswered is returned when a participant submits twice for a question.
	ErrAlreadyAnswered = errors.New("already answered this question")
	// ErrAnswerLocked is returned when a participant changes a selection after time is up.
	ErrAnswerLocked = errors.New("answers are locked")

	// ErrBlobNotFound indicates the blob store has nothing at the reference.
	ErrBlobNotFound = errors.New("blob not found")
)

// IsValidation reports whether err should be surfaced to the originating user
// without any state having been mutated.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrTeamNameRequired, ErrInvalidTeamName, ErrSelfieRequired, ErrNoQuestions,
		ErrInvalidSelection, ErrQuestionNotFound, ErrTeamNotFound, ErrQuestionSetNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsNotReady reports whether err means the participant should simply wait.
func IsNotReady(err error) bool {
	return errors.Is(err, ErrNoActiveSession) || errors.Is(err, ErrNoCurrentQuestion)
}
