package app

import (
	"context"
	"errors"

	"quiznet-service/internal/domain"
)

// ListResponses is the combined result view. The quiz creator receives every
// participant's breakdown; anyone else receives only their own submitted
// attempt.
func (s *AttemptService) ListResponses(ctx context.Context, callerID, quizID string) ([]domain.AttemptBreakdown, error) {
	quiz, err := s.store.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}

	questions, err := s.store.GetQuestions(ctx, quizID)
	if err != nil {
		return nil, err
	}

	if callerID == quiz.CreatorID {
		attempts, err := s.store.ListAttempts(ctx, quizID)
		if err != nil {
			return nil, err
		}
		if len(attempts) == 0 {
			return nil, domain.ErrNoAttempts
		}
		breakdowns := make([]domain.AttemptBreakdown, 0, len(attempts))
		for _, attempt := range attempts {
			breakdowns = append(breakdowns, buildBreakdown(attempt, questions))
		}
		return breakdowns, nil
	}

	breakdown, err := s.submittedBreakdown(ctx, quizID, callerID, questions)
	if err != nil {
		return nil, err
	}
	return []domain.AttemptBreakdown{breakdown}, nil
}

// ParticipantResponses returns one participant's breakdown by id. Only the
// quiz creator may call it, even for the caller's own id.
func (s *AttemptService) ParticipantResponses(ctx context.Context, callerID, quizID, userID string) (domain.AttemptBreakdown, error) {
	quiz, err := s.store.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.AttemptBreakdown{}, err
	}
	if callerID != quiz.CreatorID {
		return domain.AttemptBreakdown{}, domain.ErrForbidden
	}

	questions, err := s.store.GetQuestions(ctx, quizID)
	if err != nil {
		return domain.AttemptBreakdown{}, err
	}
	return s.submittedBreakdown(ctx, quizID, userID, questions)
}

func (s *AttemptService) submittedBreakdown(ctx context.Context, quizID, userID string, questions []domain.Question) (domain.AttemptBreakdown, error) {
	attempt, err := s.store.GetAttempt(ctx, quizID, userID)
	if err != nil {
		if errors.Is(err, domain.ErrAttemptNotFound) {
			return domain.AttemptBreakdown{}, domain.ErrAttemptNotFound
		}
		return domain.AttemptBreakdown{}, err
	}
	if !attempt.Submitted() {
		return domain.AttemptBreakdown{}, domain.ErrNotSubmitted
	}
	return buildBreakdown(attempt, questions), nil
}

func buildBreakdown(attempt domain.Attempt, questions []domain.Question) domain.AttemptBreakdown {
	return domain.AttemptBreakdown{
		AttemptID:   attempt.AttemptID,
		UserID:      attempt.UserID,
		Score:       attempt.Score,
		SubmittedAt: attempt.SubmittedAt,
		Responses:   Breakdown(attempt, questions),
	}
}
