package domain

import "errors"

var (
	// ErrQuizNotFound is returned when the quiz does not exist.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrAttemptNotFound is returned when an operation requires a prior start.
	ErrAttemptNotFound = errors.New("attempt not found")
	// ErrAlreadySubmitted is returned on any mutation of a submitted attempt.
	ErrAlreadySubmitted = errors.New("attempt already submitted")
	// ErrQuizInactive means the quiz admission check failed on the active flag.
	ErrQuizInactive = errors.New("quiz is not active")
	// ErrQuizEnded means the quiz window has closed.
	ErrQuizEnded = errors.New("quiz has ended")
	// ErrQuizNotStarted means the quiz window has not opened yet. Only
	// surfaced when early starts are disabled.
	ErrQuizNotStarted = errors.New("quiz has not started")
	// ErrNotSubmitted is returned when a result view is requested for an
	// attempt that is still open.
	ErrNotSubmitted = errors.New("attempt not submitted yet")
	// ErrNoAttempts is returned when the creator lists results for a quiz
	// nobody has attempted.
	ErrNoAttempts = errors.New("no attempts found")
	// ErrForbidden is returned when a caller requests data they do not own.
	ErrForbidden = errors.New("not allowed")
	// ErrInvalidOption is returned when a selected option is outside 1..4.
	ErrInvalidOption = errors.New("selected option out of range")
	// ErrInvalidQuiz is returned when authoring input fails validation.
	ErrInvalidQuiz = errors.New("invalid quiz definition")
)
