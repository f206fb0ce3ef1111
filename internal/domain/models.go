package domain

import "time"

// OptionCount is the fixed number of options every question carries.
const OptionCount = 4

// ScoreEntry is one row of a quiz's append-only result ledger.
type ScoreEntry struct {
	UserID string `json:"user_id"`
	Score  int    `json:"score"`
}

// Quiz is the read-mostly quiz aggregate. QuestionIDs holds the authoritative
// question ordering; Scores is append-only and never rewritten once an entry
// lands.
type Quiz struct {
	QuizID           string       `json:"quiz_id"`
	CreatorID        string       `json:"creator_id"`
	Title            string       `json:"quiz_title"`
	IsActive         bool         `json:"is_active"`
	IssuedAt         time.Time    `json:"issued_date"`
	InitiatesOn      time.Time    `json:"initiates_on"`
	EndsOn           time.Time    `json:"ends_on"`
	TimeLimitMinutes int          `json:"time_limit_minutes"`
	QuestionIDs      []string     `json:"questions_id"`
	Scores           []ScoreEntry `json:"user_scores"`
}

// Question is immutable once its quiz has been created. Answer is the
// 1-based index of the correct option.
type Question struct {
	QuestionID string              `json:"question_id"`
	QuizID     string              `json:"quiz_id"`
	Title      string              `json:"question_title"`
	Options    [OptionCount]string `json:"options"`
	Answer     int                 `json:"answer"`
}

// QuestionView is the answer-stripped projection served to participants
// while an attempt is open.
type QuestionView struct {
	QuestionID string              `json:"question_id"`
	Title      string              `json:"question_title"`
	Options    [OptionCount]string `json:"options"`
}

// View strips the correct answer from a question.
func (q Question) View() QuestionView {
	return QuestionView{QuestionID: q.QuestionID, Title: q.Title, Options: q.Options}
}

// Attempt is one participant's run at a quiz. At most one exists per
// (user, quiz) pair. Score and SubmittedAt are set together exactly once;
// Responses may only change while SubmittedAt is nil.
type Attempt struct {
	AttemptID   string         `json:"attempt_id"`
	QuizID      string         `json:"quiz_id"`
	UserID      string         `json:"user_id"`
	Responses   map[string]int `json:"responses"`
	StartedAt   time.Time      `json:"started_at"`
	SubmittedAt *time.Time     `json:"submitted_at"`
	Score       *int           `json:"score"`
}

// Submitted reports whether the attempt has reached its terminal state.
func (a Attempt) Submitted() bool {
	return a.SubmittedAt != nil
}

// AttemptStart is returned when an attempt is started or resumed: the
// attempt itself, quiz metadata, and the answer-hidden question set.
type AttemptStart struct {
	Attempt          Attempt        `json:"attempt"`
	QuizID           string         `json:"quiz_id"`
	QuizTitle        string         `json:"quiz_title"`
	TimeLimitMinutes int            `json:"time_limit_minutes"`
	InitiatesOn      time.Time      `json:"initiates_on"`
	EndsOn           time.Time      `json:"ends_on"`
	Questions        []QuestionView `json:"questions"`
}

// AttemptStatus is the live projection of the quiz window combined with the
// caller's attempt state.
type AttemptStatus struct {
	IsActive         bool      `json:"is_active"`
	QuizEnded        bool      `json:"quiz_ended"`
	AlreadySubmitted bool      `json:"already_submitted"`
	Now              time.Time `json:"now"`
	EndsOn           time.Time `json:"ends_on"`
}

// ResponseDetail is one row of a submitted attempt's per-question breakdown.
type ResponseDetail struct {
	QuestionID     string              `json:"question_id"`
	QuestionTitle  string              `json:"question_title"`
	Options        [OptionCount]string `json:"options"`
	SelectedOption int                 `json:"selected_option"`
	CorrectOption  int                 `json:"correct_option"`
	IsCorrect      bool                `json:"is_correct"`
}

// AttemptBreakdown is the detailed result view for a single attempt.
// Score and SubmittedAt stay nil for attempts that are still open (the
// creator's list view includes those).
type AttemptBreakdown struct {
	AttemptID   string           `json:"attempt_id"`
	UserID      string           `json:"user_id"`
	Score       *int             `json:"score"`
	SubmittedAt *time.Time       `json:"submitted_at"`
	Responses   []ResponseDetail `json:"responses"`
}
