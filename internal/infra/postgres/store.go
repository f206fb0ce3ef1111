package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/uptrace/bun"

	"quiznet-service/internal/app"
	"quiznet-service/internal/domain"
)

type quizRow struct {
	bun.BaseModel `bun:"table:quizzes,alias:q"`

	QuizID           string               `bun:"quiz_id,pk"`
	CreatorID        string               `bun:"creator_id"`
	Title            string               `bun:"quiz_title"`
	IsActive         bool                 `bun:"is_active"`
	IssuedAt         time.Time            `bun:"issued_date"`
	InitiatesOn      time.Time            `bun:"initiates_on"`
	EndsOn           time.Time            `bun:"ends_on"`
	TimeLimitMinutes int                  `bun:"time_limit_minutes"`
	QuestionIDs      []string             `bun:"questions_id,type:jsonb"`
	Scores           []domain.ScoreEntry  `bun:"user_scores,type:jsonb"`
}

type questionRow struct {
	bun.BaseModel `bun:"table:questions,alias:qu"`

	QuestionID string `bun:"question_id,pk"`
	QuizID     string `bun:"quiz_id"`
	Title      string `bun:"question_title"`
	Option1    string `bun:"option1"`
	Option2    string `bun:"option2"`
	Option3    string `bun:"option3"`
	Option4    string `bun:"option4"`
	Answer     int    `bun:"answer"`
}

type attemptRow struct {
	bun.BaseModel `bun:"table:attempts,alias:a"`

	AttemptID   string         `bun:"attempt_id,pk"`
	QuizID      string         `bun:"quiz_id"`
	UserID      string         `bun:"user_id"`
	Responses   map[string]int `bun:"responses,type:jsonb"`
	StartedAt   time.Time      `bun:"started_at"`
	SubmittedAt *time.Time     `bun:"submitted_at"`
	Score       *int           `bun:"score"`
}

// Store is the bun-backed record store. Attempt submission and the ledger
// append run in one transaction with the attempt row locked, which is what
// keeps submission exactly-once under concurrent callers.
type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

func (s *Store) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	var row quizRow
	err := s.db.NewSelect().Model(&row).Where("q.quiz_id = ?", quizID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("get quiz: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) GetQuestions(ctx context.Context, quizID string) ([]domain.Question, error) {
	quiz, err := s.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}

	var rows []questionRow
	if err := s.db.NewSelect().Model(&rows).Where("qu.quiz_id = ?", quizID).Scan(ctx); err != nil {
		return nil, fmt.Errorf("get questions: %w", err)
	}

	return orderQuestions(rows, quiz.QuestionIDs), nil
}

// orderQuestions sorts rows into the quiz's authoritative question order;
// rows missing from the order list sink to the end.
func orderQuestions(rows []questionRow, order []string) []domain.Question {
	position := make(map[string]int, len(order))
	for i, id := range order {
		position[id] = i
	}

	ordered := make([]domain.Question, len(rows))
	for i, row := range rows {
		ordered[i] = row.toDomain()
	}
	pos := func(id string) int {
		if p, ok := position[id]; ok {
			return p
		}
		return len(order)
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return pos(ordered[i].QuestionID) < pos(ordered[j].QuestionID)
	})
	return ordered
}

func (s *Store) DeactivateQuiz(ctx context.Context, quizID string) error {
	_, err := s.db.NewUpdate().
		Model((*quizRow)(nil)).
		Set("is_active = FALSE").
		Where("quiz_id = ?", quizID).
		Where("is_active").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("deactivate quiz: %w", err)
	}
	return nil
}

func (s *Store) GetAttempt(ctx context.Context, quizID, userID string) (domain.Attempt, error) {
	var row attemptRow
	err := s.db.NewSelect().Model(&row).
		Where("a.quiz_id = ?", quizID).
		Where("a.user_id = ?", userID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("get attempt: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) CreateAttempt(ctx context.Context, attempt domain.Attempt) (domain.Attempt, error) {
	row := attemptRowFromDomain(attempt)
	_, err := s.db.NewInsert().Model(&row).
		On("CONFLICT (quiz_id, user_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("create attempt: %w", err)
	}
	// Return the canonical row: on conflict a concurrent start won.
	return s.GetAttempt(ctx, attempt.QuizID, attempt.UserID)
}

func (s *Store) SaveAnswer(ctx context.Context, quizID, userID, questionID string, selected int) error {
	patch, err := json.Marshal(map[string]int{questionID: selected})
	if err != nil {
		return fmt.Errorf("marshal answer: %w", err)
	}

	// Single-statement jsonb merge keeps each save atomic; the submitted_at
	// guard makes terminal attempts immutable.
	res, err := s.db.NewUpdate().
		Model((*attemptRow)(nil)).
		Set("responses = responses || ?::jsonb", string(patch)).
		Where("quiz_id = ?", quizID).
		Where("user_id = ?", userID).
		Where("submitted_at IS NULL").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("save answer: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save answer result: %w", err)
	}
	if affected == 0 {
		if _, err := s.GetAttempt(ctx, quizID, userID); err != nil {
			return err
		}
		return domain.ErrAlreadySubmitted
	}
	return nil
}

func (s *Store) FinalizeAttempt(ctx context.Context, quizID, userID string, grade app.GradeFunc, submittedAt time.Time) (domain.Attempt, error) {
	var finalized domain.Attempt
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var row attemptRow
		err := tx.NewSelect().Model(&row).
			Where("a.quiz_id = ?", quizID).
			Where("a.user_id = ?", userID).
			For("UPDATE").
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrAttemptNotFound
		}
		if err != nil {
			return fmt.Errorf("lock attempt: %w", err)
		}
		if row.SubmittedAt != nil {
			return domain.ErrAlreadySubmitted
		}

		score := grade(row.Responses)
		when := submittedAt
		if _, err := tx.NewUpdate().
			Model((*attemptRow)(nil)).
			Set("score = ?", score).
			Set("submitted_at = ?", when).
			Where("attempt_id = ?", row.AttemptID).
			Where("submitted_at IS NULL").
			Exec(ctx); err != nil {
			return fmt.Errorf("close attempt: %w", err)
		}

		entry, err := json.Marshal([]domain.ScoreEntry{{UserID: userID, Score: score}})
		if err != nil {
			return fmt.Errorf("marshal ledger entry: %w", err)
		}
		if _, err := tx.NewUpdate().
			Model((*quizRow)(nil)).
			Set("user_scores = user_scores || ?::jsonb", string(entry)).
			Where("quiz_id = ?", quizID).
			Exec(ctx); err != nil {
			return fmt.Errorf("append ledger: %w", err)
		}

		row.Score = &score
		row.SubmittedAt = &when
		finalized = row.toDomain()
		return nil
	})
	if err != nil {
		return domain.Attempt{}, err
	}
	return finalized, nil
}

func (s *Store) ListAttempts(ctx context.Context, quizID string) ([]domain.Attempt, error) {
	var rows []attemptRow
	err := s.db.NewSelect().Model(&rows).
		Where("a.quiz_id = ?", quizID).
		Order("started_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	attempts := make([]domain.Attempt, 0, len(rows))
	for _, row := range rows {
		attempts = append(attempts, row.toDomain())
	}
	return attempts, nil
}

func (s *Store) CreateQuiz(ctx context.Context, quiz domain.Quiz, questions []domain.Question) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		row := quizRowFromDomain(quiz)
		if _, err := tx.NewInsert().Model(&row).Exec(ctx); err != nil {
			return fmt.Errorf("insert quiz: %w", err)
		}
		if len(questions) == 0 {
			return nil
		}
		rows := make([]questionRow, 0, len(questions))
		for _, q := range questions {
			rows = append(rows, questionRowFromDomain(q))
		}
		if _, err := tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
			return fmt.Errorf("insert questions: %w", err)
		}
		return nil
	})
}

func (s *Store) DeleteQuiz(ctx context.Context, quizID string) error {
	res, err := s.db.NewDelete().
		Model((*quizRow)(nil)).
		Where("quiz_id = ?", quizID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete quiz: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete quiz result: %w", err)
	}
	if affected == 0 {
		return domain.ErrQuizNotFound
	}
	return nil
}

func (s *Store) ListQuizzesByCreator(ctx context.Context, creatorID string) ([]domain.Quiz, error) {
	var rows []quizRow
	err := s.db.NewSelect().Model(&rows).
		Where("q.creator_id = ?", creatorID).
		Order("initiates_on ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	return quizzesToDomain(rows), nil
}

func (s *Store) ListAttemptedQuizzes(ctx context.Context, userID string) ([]domain.Quiz, error) {
	var rows []quizRow
	err := s.db.NewSelect().Model(&rows).
		Where("EXISTS (SELECT 1 FROM attempts AS a WHERE a.quiz_id = q.quiz_id AND a.user_id = ?)", userID).
		Order("initiates_on DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list attempted quizzes: %w", err)
	}
	return quizzesToDomain(rows), nil
}

func quizzesToDomain(rows []quizRow) []domain.Quiz {
	quizzes := make([]domain.Quiz, 0, len(rows))
	for _, row := range rows {
		quizzes = append(quizzes, row.toDomain())
	}
	return quizzes
}

func (r quizRow) toDomain() domain.Quiz {
	return domain.Quiz{
		QuizID:           r.QuizID,
		CreatorID:        r.CreatorID,
		Title:            r.Title,
		IsActive:         r.IsActive,
		IssuedAt:         r.IssuedAt,
		InitiatesOn:      r.InitiatesOn,
		EndsOn:           r.EndsOn,
		TimeLimitMinutes: r.TimeLimitMinutes,
		QuestionIDs:      r.QuestionIDs,
		Scores:           r.Scores,
	}
}

func quizRowFromDomain(quiz domain.Quiz) quizRow {
	return quizRow{
		QuizID:           quiz.QuizID,
		CreatorID:        quiz.CreatorID,
		Title:            quiz.Title,
		IsActive:         quiz.IsActive,
		IssuedAt:         quiz.IssuedAt,
		InitiatesOn:      quiz.InitiatesOn,
		EndsOn:           quiz.EndsOn,
		TimeLimitMinutes: quiz.TimeLimitMinutes,
		QuestionIDs:      quiz.QuestionIDs,
		Scores:           quiz.Scores,
	}
}

func (r questionRow) toDomain() domain.Question {
	return domain.Question{
		QuestionID: r.QuestionID,
		QuizID:     r.QuizID,
		Title:      r.Title,
		Options:    [domain.OptionCount]string{r.Option1, r.Option2, r.Option3, r.Option4},
		Answer:     r.Answer,
	}
}

func questionRowFromDomain(q domain.Question) questionRow {
	return questionRow{
		QuestionID: q.QuestionID,
		QuizID:     q.QuizID,
		Title:      q.Title,
		Option1:    q.Options[0],
		Option2:    q.Options[1],
		Option3:    q.Options[2],
		Option4:    q.Options[3],
		Answer:     q.Answer,
	}
}

func (r attemptRow) toDomain() domain.Attempt {
	responses := r.Responses
	if responses == nil {
		responses = map[string]int{}
	}
	return domain.Attempt{
		AttemptID:   r.AttemptID,
		QuizID:      r.QuizID,
		UserID:      r.UserID,
		Responses:   responses,
		StartedAt:   r.StartedAt,
		SubmittedAt: r.SubmittedAt,
		Score:       r.Score,
	}
}

func attemptRowFromDomain(attempt domain.Attempt) attemptRow {
	return attemptRow{
		AttemptID:   attempt.AttemptID,
		QuizID:      attempt.QuizID,
		UserID:      attempt.UserID,
		Responses:   attempt.Responses,
		StartedAt:   attempt.StartedAt,
		SubmittedAt: attempt.SubmittedAt,
		Score:       attempt.Score,
	}
}
