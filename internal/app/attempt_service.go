package app

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"quiznet-service/internal/domain"
)

// GradeFunc computes the final score for a response map. The store invokes
// it inside the same critical section that flips the attempt to submitted,
// so the graded map is exactly the map that gets frozen.
type GradeFunc func(responses map[string]int) int

// Store is the transactional record store the attempt engine runs against.
type Store interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	GetQuestions(ctx context.Context, quizID string) ([]domain.Question, error)
	DeactivateQuiz(ctx context.Context, quizID string) error

	// GetAttempt looks up the unique attempt for a (quiz, user) pair.
	GetAttempt(ctx context.Context, quizID, userID string) (domain.Attempt, error)
	// CreateAttempt inserts the attempt unless one already exists for the
	// pair, in which case the existing attempt is returned unchanged.
	CreateAttempt(ctx context.Context, attempt domain.Attempt) (domain.Attempt, error)
	// SaveAnswer upserts one answer atomically. Fails with
	// domain.ErrAlreadySubmitted once the attempt is terminal.
	SaveAnswer(ctx context.Context, quizID, userID, questionID string, selected int) error
	// FinalizeAttempt performs the single transition into the submitted
	// state: grade, set score+submitted_at together, and append
	// {user, score} to the quiz ledger, all atomically. Exactly one caller
	// wins; the rest observe domain.ErrAlreadySubmitted.
	FinalizeAttempt(ctx context.Context, quizID, userID string, grade GradeFunc, submittedAt time.Time) (domain.Attempt, error)
	// ListAttempts returns every attempt for a quiz, oldest first.
	ListAttempts(ctx context.Context, quizID string) ([]domain.Attempt, error)
}

// QuestionCache serves the answer-stripped question projection for a quiz.
type QuestionCache interface {
	Views(ctx context.Context, quizID string) ([]domain.QuestionView, error)
}

// AttemptService owns the attempt lifecycle: lazy creation on start, answer
// upserts while open, and the terminal grade-and-submit transition.
type AttemptService struct {
	store  Store
	cache  QuestionCache
	window *WindowPolicy
	clock  func() time.Time
	newID  func() string
}

func NewAttemptService(store Store, cache QuestionCache, window *WindowPolicy) *AttemptService {
	return &AttemptService{
		store:  store,
		cache:  cache,
		window: window,
		clock:  time.Now,
		newID:  uuid.NewString,
	}
}

// WithClock is test-only for deterministic timestamps.
func (s *AttemptService) WithClock(now func() time.Time) *AttemptService {
	s.clock = now
	return s
}

// StartOrResume admits the caller through the window policy, creates the
// attempt on first call, and returns it together with the answer-hidden
// question set. Calling again mid-attempt returns the same attempt unchanged.
func (s *AttemptService) StartOrResume(ctx context.Context, userID, quizID string) (domain.AttemptStart, error) {
	quiz, err := s.store.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.AttemptStart{}, err
	}

	now := s.clock()
	admission, err := s.window.Admit(ctx, quiz, now)
	if err != nil {
		return domain.AttemptStart{}, err
	}
	if admission != AdmissionAllowed {
		return domain.AttemptStart{}, admission.Err()
	}

	attempt, err := s.store.GetAttempt(ctx, quizID, userID)
	switch {
	case errors.Is(err, domain.ErrAttemptNotFound):
		attempt, err = s.store.CreateAttempt(ctx, domain.Attempt{
			AttemptID: s.newID(),
			QuizID:    quizID,
			UserID:    userID,
			Responses: map[string]int{},
			StartedAt: now,
		})
		if err != nil {
			return domain.AttemptStart{}, err
		}
	case err != nil:
		return domain.AttemptStart{}, err
	}
	if attempt.Submitted() {
		return domain.AttemptStart{}, domain.ErrAlreadySubmitted
	}

	views, err := s.cache.Views(ctx, quizID)
	if err != nil {
		return domain.AttemptStart{}, err
	}

	return domain.AttemptStart{
		Attempt:          attempt,
		QuizID:           quiz.QuizID,
		QuizTitle:        quiz.Title,
		TimeLimitMinutes: quiz.TimeLimitMinutes,
		InitiatesOn:      quiz.InitiatesOn,
		EndsOn:           quiz.EndsOn,
		Questions:        views,
	}, nil
}

// SaveAnswer upserts one answer on an open attempt, overwriting any earlier
// selection for the same question. The question id is deliberately not
// checked against the quiz; grading ignores foreign ids. The window is not
// re-checked here either, matching upstream behavior.
func (s *AttemptService) SaveAnswer(ctx context.Context, userID, quizID, questionID string, selected int) error {
	if selected < 1 || selected > domain.OptionCount {
		return domain.ErrInvalidOption
	}
	if _, err := s.store.GetQuiz(ctx, quizID); err != nil {
		return err
	}
	return s.store.SaveAnswer(ctx, quizID, userID, questionID, selected)
}

// Status reports the live window and attempt state, triggering the same lazy
// deactivation as admission checks.
func (s *AttemptService) Status(ctx context.Context, userID, quizID string) (domain.AttemptStatus, error) {
	quiz, err := s.store.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.AttemptStatus{}, err
	}

	now := s.clock()
	admission, err := s.window.Admit(ctx, quiz, now)
	if err != nil {
		return domain.AttemptStatus{}, err
	}
	ended := admission == AdmissionEnded

	submitted := false
	attempt, err := s.store.GetAttempt(ctx, quizID, userID)
	switch {
	case err == nil:
		submitted = attempt.Submitted()
	case !errors.Is(err, domain.ErrAttemptNotFound):
		return domain.AttemptStatus{}, err
	}

	return domain.AttemptStatus{
		IsActive:         quiz.IsActive && !ended,
		QuizEnded:        ended,
		AlreadySubmitted: submitted,
		Now:              now,
		EndsOn:           quiz.EndsOn,
	}, nil
}

// Submit grades the current response map and closes the attempt. The store
// serializes the transition, so concurrent submits resolve to exactly one
// winner and a single ledger entry.
func (s *AttemptService) Submit(ctx context.Context, userID, quizID string) (domain.Attempt, error) {
	if _, err := s.store.GetQuiz(ctx, quizID); err != nil {
		return domain.Attempt{}, err
	}

	questions, err := s.store.GetQuestions(ctx, quizID)
	if err != nil {
		return domain.Attempt{}, err
	}

	grade := func(responses map[string]int) int {
		return Grade(responses, questions)
	}
	return s.store.FinalizeAttempt(ctx, quizID, userID, grade, s.clock())
}
