package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiznet-service/internal/domain"
)

// Catalog is the read-only question catalog feeding the question cache.
// It runs on a plain pgx pool, separate from the bun store, so cache fills
// never compete with the transactional write path.
type Catalog struct {
	pool *pgxpool.Pool
}

func NewCatalog(pool *pgxpool.Pool) *Catalog {
	return &Catalog{pool: pool}
}

func (c *Catalog) LoadQuestions(ctx context.Context, quizID string) ([]domain.Question, error) {
	var rawOrder []byte
	err := c.pool.QueryRow(ctx, `SELECT questions_id FROM quizzes WHERE quiz_id = $1`, quizID).Scan(&rawOrder)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrQuizNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load question order: %w", err)
	}
	var order []string
	if err := json.Unmarshal(rawOrder, &order); err != nil {
		return nil, fmt.Errorf("unmarshal question order: %w", err)
	}

	rows, err := c.pool.Query(ctx, `
		SELECT question_id, quiz_id, question_title, option1, option2, option3, option4, answer
		FROM questions
		WHERE quiz_id = $1`, quizID)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	var loaded []questionRow
	for rows.Next() {
		var row questionRow
		if err := rows.Scan(&row.QuestionID, &row.QuizID, &row.Title,
			&row.Option1, &row.Option2, &row.Option3, &row.Option4, &row.Answer); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		loaded = append(loaded, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read questions: %w", err)
	}

	return orderQuestions(loaded, order), nil
}
