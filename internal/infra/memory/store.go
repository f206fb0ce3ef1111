package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"quiznet-service/internal/app"
	"quiznet-service/internal/domain"
)

// Store is an in-memory record store implementing both the attempt engine's
// app.Store and the authoring CRUD. It mirrors the transactional guarantees
// the SQL store provides: answer saves and the submit transition run under
// one lock, so the CAS and ledger-append semantics hold.
type Store struct {
	mu        sync.RWMutex
	quizzes   map[string]domain.Quiz
	questions map[string][]domain.Question
	attempts  map[string]domain.Attempt // keyed by quizID + "/" + userID
}

func NewStore() *Store {
	return &Store{
		quizzes:   make(map[string]domain.Quiz),
		questions: make(map[string][]domain.Question),
		attempts:  make(map[string]domain.Attempt),
	}
}

func attemptKey(quizID, userID string) string {
	return quizID + "/" + userID
}

func (s *Store) GetQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return cloneQuiz(quiz), nil
}

func (s *Store) GetQuestions(_ context.Context, quizID string) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.quizzes[quizID]; !ok {
		return nil, domain.ErrQuizNotFound
	}
	questions := s.questions[quizID]
	out := make([]domain.Question, len(questions))
	copy(out, questions)
	return out, nil
}

// LoadQuestions lets the store double as a catalog loader behind the
// question cache.
func (s *Store) LoadQuestions(ctx context.Context, quizID string) ([]domain.Question, error) {
	return s.GetQuestions(ctx, quizID)
}

func (s *Store) DeactivateQuiz(_ context.Context, quizID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return domain.ErrQuizNotFound
	}
	if quiz.IsActive {
		quiz.IsActive = false
		s.quizzes[quizID] = quiz
	}
	return nil
}

func (s *Store) GetAttempt(_ context.Context, quizID, userID string) (domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	attempt, ok := s.attempts[attemptKey(quizID, userID)]
	if !ok {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	return cloneAttempt(attempt), nil
}

func (s *Store) CreateAttempt(_ context.Context, attempt domain.Attempt) (domain.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := attemptKey(attempt.QuizID, attempt.UserID)
	if existing, ok := s.attempts[key]; ok {
		return cloneAttempt(existing), nil
	}
	s.attempts[key] = cloneAttempt(attempt)
	return attempt, nil
}

func (s *Store) SaveAnswer(_ context.Context, quizID, userID, questionID string, selected int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := attemptKey(quizID, userID)
	attempt, ok := s.attempts[key]
	if !ok {
		return domain.ErrAttemptNotFound
	}
	if attempt.Submitted() {
		return domain.ErrAlreadySubmitted
	}
	if attempt.Responses == nil {
		attempt.Responses = make(map[string]int)
	}
	attempt.Responses[questionID] = selected
	s.attempts[key] = attempt
	return nil
}

func (s *Store) FinalizeAttempt(_ context.Context, quizID, userID string, grade app.GradeFunc, submittedAt time.Time) (domain.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := attemptKey(quizID, userID)
	attempt, ok := s.attempts[key]
	if !ok {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	if attempt.Submitted() {
		return domain.Attempt{}, domain.ErrAlreadySubmitted
	}

	score := grade(attempt.Responses)
	when := submittedAt
	attempt.Score = &score
	attempt.SubmittedAt = &when
	s.attempts[key] = attempt

	quiz := s.quizzes[quizID]
	quiz.Scores = append(quiz.Scores, domain.ScoreEntry{UserID: userID, Score: score})
	s.quizzes[quizID] = quiz

	return cloneAttempt(attempt), nil
}

func (s *Store) ListAttempts(_ context.Context, quizID string) ([]domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.quizzes[quizID]; !ok {
		return nil, domain.ErrQuizNotFound
	}
	var out []domain.Attempt
	for _, attempt := range s.attempts {
		if attempt.QuizID == quizID {
			out = append(out, cloneAttempt(attempt))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

func (s *Store) CreateQuiz(_ context.Context, quiz domain.Quiz, questions []domain.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quizzes[quiz.QuizID] = cloneQuiz(quiz)
	qs := make([]domain.Question, len(questions))
	copy(qs, questions)
	s.questions[quiz.QuizID] = qs
	return nil
}

func (s *Store) DeleteQuiz(_ context.Context, quizID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.quizzes[quizID]; !ok {
		return domain.ErrQuizNotFound
	}
	delete(s.quizzes, quizID)
	delete(s.questions, quizID)
	for key, attempt := range s.attempts {
		if attempt.QuizID == quizID {
			delete(s.attempts, key)
		}
	}
	return nil
}

func (s *Store) ListQuizzesByCreator(_ context.Context, creatorID string) ([]domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Quiz
	for _, quiz := range s.quizzes {
		if quiz.CreatorID == creatorID {
			out = append(out, cloneQuiz(quiz))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InitiatesOn.Before(out[j].InitiatesOn) })
	return out, nil
}

func (s *Store) ListAttemptedQuizzes(_ context.Context, userID string) ([]domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	var out []domain.Quiz
	for _, attempt := range s.attempts {
		if attempt.UserID != userID {
			continue
		}
		if _, dup := seen[attempt.QuizID]; dup {
			continue
		}
		seen[attempt.QuizID] = struct{}{}
		if quiz, ok := s.quizzes[attempt.QuizID]; ok {
			out = append(out, cloneQuiz(quiz))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[j].InitiatesOn.Before(out[i].InitiatesOn) })
	return out, nil
}

func cloneQuiz(quiz domain.Quiz) domain.Quiz {
	out := quiz
	out.QuestionIDs = append([]string(nil), quiz.QuestionIDs...)
	out.Scores = append([]domain.ScoreEntry(nil), quiz.Scores...)
	return out
}

func cloneAttempt(attempt domain.Attempt) domain.Attempt {
	out := attempt
	out.Responses = make(map[string]int, len(attempt.Responses))
	for k, v := range attempt.Responses {
		out.Responses[k] = v
	}
	if attempt.Score != nil {
		score := *attempt.Score
		out.Score = &score
	}
	if attempt.SubmittedAt != nil {
		when := *attempt.SubmittedAt
		out.SubmittedAt = &when
	}
	return out
}
