package app

import "quiznet-service/internal/domain"

// Grade scores a response map against a quiz's own question set. Responses
// referencing unknown question ids are skipped silently; a selection that
// does not exactly match the correct 1-based option counts as incorrect.
// No partial credit, no negative marking, unanswered questions cost nothing.
func Grade(responses map[string]int, questions []domain.Question) int {
	byID := make(map[string]domain.Question, len(questions))
	for _, q := range questions {
		byID[q.QuestionID] = q
	}

	score := 0
	for questionID, selected := range responses {
		q, ok := byID[questionID]
		if !ok {
			continue
		}
		if selected == q.Answer {
			score++
		}
	}
	return score
}

// Breakdown builds the per-question detail rows for an attempt. Rows follow
// the quiz's authoritative question order and cover answered questions only;
// responses to questions outside the quiz are dropped, mirroring Grade.
func Breakdown(attempt domain.Attempt, questions []domain.Question) []domain.ResponseDetail {
	details := make([]domain.ResponseDetail, 0, len(attempt.Responses))
	for _, q := range questions {
		selected, ok := attempt.Responses[q.QuestionID]
		if !ok {
			continue
		}
		details = append(details, domain.ResponseDetail{
			QuestionID:     q.QuestionID,
			QuestionTitle:  q.Title,
			Options:        q.Options,
			SelectedOption: selected,
			CorrectOption:  q.Answer,
			IsCorrect:      selected == q.Answer,
		})
	}
	return details
}
