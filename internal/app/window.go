package app

import (
	"context"
	"time"

	"quiznet-service/internal/domain"
)

// Admission is the window policy's decision on whether an attempt may start
// or continue right now.
type Admission int

const (
	AdmissionAllowed Admission = iota
	AdmissionInactive
	AdmissionEnded
	AdmissionNotStarted
)

// Err maps a non-allowed admission to its sentinel error.
func (a Admission) Err() error {
	switch a {
	case AdmissionAllowed:
		return nil
	case AdmissionEnded:
		return domain.ErrQuizEnded
	case AdmissionNotStarted:
		return domain.ErrQuizNotStarted
	default:
		return domain.ErrQuizInactive
	}
}

// Deactivator persists the one-way is_active=false flip. Implementations
// must be idempotent: flipping an already inactive quiz is a no-op.
type Deactivator interface {
	DeactivateQuiz(ctx context.Context, quizID string) error
}

// WindowPolicy decides admission against a quiz's validity window and owns
// lazy deactivation: the first check after ends_on flips is_active off.
// Nothing ever flips it back.
type WindowPolicy struct {
	store Deactivator

	// EnforceStart additionally rejects attempts before initiates_on.
	// Off by default: the upstream behavior admits early starts, so this
	// stays a policy choice rather than a silent fix.
	EnforceStart bool
}

func NewWindowPolicy(store Deactivator, enforceStart bool) *WindowPolicy {
	return &WindowPolicy{store: store, EnforceStart: enforceStart}
}

// Admit evaluates the window at the given instant. A quiz past ends_on is
// reported Ended regardless of the stored flag, so repeated checks after the
// flip keep returning Ended rather than degrading to Inactive.
func (p *WindowPolicy) Admit(ctx context.Context, quiz domain.Quiz, now time.Time) (Admission, error) {
	if now.After(quiz.EndsOn) {
		if quiz.IsActive {
			if err := p.store.DeactivateQuiz(ctx, quiz.QuizID); err != nil {
				return AdmissionEnded, err
			}
		}
		return AdmissionEnded, nil
	}
	if !quiz.IsActive {
		return AdmissionInactive, nil
	}
	if p.EnforceStart && now.Before(quiz.InitiatesOn) {
		return AdmissionNotStarted, nil
	}
	return AdmissionAllowed, nil
}
