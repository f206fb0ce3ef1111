package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"quiznet-service/internal/domain"
)

// AuthoringStore covers the plain CRUD surface around the attempt engine.
type AuthoringStore interface {
	CreateQuiz(ctx context.Context, quiz domain.Quiz, questions []domain.Question) error
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	// DeleteQuiz removes the quiz and cascades to its questions and attempts.
	DeleteQuiz(ctx context.Context, quizID string) error
	ListQuizzesByCreator(ctx context.Context, creatorID string) ([]domain.Quiz, error)
	ListAttemptedQuizzes(ctx context.Context, userID string) ([]domain.Quiz, error)
}

// QuestionInput is one question of a quiz being created.
type QuestionInput struct {
	Title   string                     `json:"question_title"`
	Options [domain.OptionCount]string `json:"options"`
	Answer  int                        `json:"answer"`
}

// QuizInput is the creation payload for a quiz with its nested questions.
type QuizInput struct {
	Title            string          `json:"quiz_title"`
	InitiatesOn      time.Time       `json:"initiates_on"`
	EndsOn           time.Time       `json:"ends_on"`
	TimeLimitMinutes int             `json:"time_limit_minutes"`
	Questions        []QuestionInput `json:"questions"`
}

// AuthoringService is the thin quiz/question CRUD collaborator. Questions
// are immutable once created, which is what keeps the question cache honest.
type AuthoringService struct {
	store AuthoringStore
	clock func() time.Time
	newID func() string
}

func NewAuthoringService(store AuthoringStore) *AuthoringService {
	return &AuthoringService{store: store, clock: time.Now, newID: uuid.NewString}
}

// WithClock is test-only for deterministic timestamps.
func (s *AuthoringService) WithClock(now func() time.Time) *AuthoringService {
	s.clock = now
	return s
}

// CreateQuiz validates the payload, assigns ids, and persists the quiz with
// its questions. The generated question order becomes the quiz's
// authoritative ordering.
func (s *AuthoringService) CreateQuiz(ctx context.Context, creatorID string, input QuizInput) (domain.Quiz, []domain.Question, error) {
	if err := validateQuizInput(input); err != nil {
		return domain.Quiz{}, nil, err
	}

	quiz := domain.Quiz{
		QuizID:           s.newID(),
		CreatorID:        creatorID,
		Title:            input.Title,
		IsActive:         true,
		IssuedAt:         s.clock(),
		InitiatesOn:      input.InitiatesOn,
		EndsOn:           input.EndsOn,
		TimeLimitMinutes: input.TimeLimitMinutes,
		QuestionIDs:      make([]string, 0, len(input.Questions)),
		Scores:           []domain.ScoreEntry{},
	}

	questions := make([]domain.Question, 0, len(input.Questions))
	for _, q := range input.Questions {
		question := domain.Question{
			QuestionID: s.newID(),
			QuizID:     quiz.QuizID,
			Title:      q.Title,
			Options:    q.Options,
			Answer:     q.Answer,
		}
		questions = append(questions, question)
		quiz.QuestionIDs = append(quiz.QuestionIDs, question.QuestionID)
	}

	if err := s.store.CreateQuiz(ctx, quiz, questions); err != nil {
		return domain.Quiz{}, nil, err
	}
	return quiz, questions, nil
}

// DeleteQuiz removes a quiz the caller created. The cascade takes questions
// and attempts with it.
func (s *AuthoringService) DeleteQuiz(ctx context.Context, callerID, quizID string) error {
	quiz, err := s.store.GetQuiz(ctx, quizID)
	if err != nil {
		return err
	}
	if quiz.CreatorID != callerID {
		return domain.ErrForbidden
	}
	return s.store.DeleteQuiz(ctx, quizID)
}

// ListQuizzes returns the caller's quizzes ordered by initiates_on.
func (s *AuthoringService) ListQuizzes(ctx context.Context, creatorID string) ([]domain.Quiz, error) {
	return s.store.ListQuizzesByCreator(ctx, creatorID)
}

// ListAttempted returns quiz metadata for every quiz the caller has
// attempted, newest window first.
func (s *AuthoringService) ListAttempted(ctx context.Context, userID string) ([]domain.Quiz, error) {
	return s.store.ListAttemptedQuizzes(ctx, userID)
}

func validateQuizInput(input QuizInput) error {
	if input.Title == "" {
		return fmt.Errorf("%w: title required", domain.ErrInvalidQuiz)
	}
	if !input.EndsOn.After(input.InitiatesOn) {
		return fmt.Errorf("%w: ends_on must be after initiates_on", domain.ErrInvalidQuiz)
	}
	if input.TimeLimitMinutes <= 0 {
		return fmt.Errorf("%w: time limit must be positive", domain.ErrInvalidQuiz)
	}
	for i, q := range input.Questions {
		if q.Title == "" {
			return fmt.Errorf("%w: question %d has no title", domain.ErrInvalidQuiz, i+1)
		}
		if q.Answer < 1 || q.Answer > domain.OptionCount {
			return fmt.Errorf("%w: question %d answer out of range", domain.ErrInvalidQuiz, i+1)
		}
		for j, opt := range q.Options {
			if opt == "" {
				return fmt.Errorf("%w: question %d option %d empty", domain.ErrInvalidQuiz, i+1, j+1)
			}
		}
	}
	return nil
}
