package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stemsi/quizly-backend/internal/model"
)

const quizColumns = `id, title, description, topic, difficulty, time_limit, icon,
	created_by, questions, share_code, participants, is_private, created_at`

// QuizRepository handles quiz data access. Questions live in a JSONB
// column so a quiz is read and written as one document.
type QuizRepository struct {
	pool *pgxpool.Pool
}

// NewQuizRepository creates a new QuizRepository.
func NewQuizRepository(pool *pgxpool.Pool) *QuizRepository {
	return &QuizRepository{pool: pool}
}

// Create inserts a quiz. A share code collision returns ErrDuplicateShareCode
// so the caller can draw a new code.
func (r *QuizRepository) Create(ctx context.Context, q *model.Quiz) error {
	questions, err := json.Marshal(q.Questions)
	if err != nil {
		return fmt.Errorf("marshal questions: %w", err)
	}

	err = r.pool.QueryRow(ctx,
		`INSERT INTO quizzes (title, description, topic, difficulty, time_limit, icon,
		                      created_by, questions, share_code, is_private)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id, participants, created_at`,
		q.Title, q.Description, q.Topic, string(q.Difficulty), q.TimeLimit, q.Icon,
		q.CreatedBy, questions, q.ShareCode, q.IsPrivate,
	).Scan(&q.ID, &q.Participants, &q.CreatedAt)
	if isUniqueViolation(err, "quizzes_share_code_key") {
		return ErrDuplicateShareCode
	}
	return err
}

// GetByID retrieves a quiz with its questions.
func (r *QuizRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Quiz, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+quizColumns+` FROM quizzes WHERE id = $1`, id)
	return scanQuiz(row)
}

// GetByShareCode retrieves a quiz by exact share code.
func (r *QuizRepository) GetByShareCode(ctx context.Context, code string) (*model.Quiz, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+quizColumns+` FROM quizzes WHERE share_code = $1`, code)
	return scanQuiz(row)
}

// ListSummaries returns every quiz, newest first, in the flat listing shape.
func (r *QuizRepository) ListSummaries(ctx context.Context) ([]model.QuizSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT q.id, q.title, q.description, q.topic, q.difficulty, q.time_limit,
		        jsonb_array_length(q.questions), q.participants, q.is_private, q.icon,
		        COALESCE(u.name, ''), q.share_code, q.created_at
		 FROM quizzes q
		 LEFT JOIN users u ON u.id = q.created_by
		 ORDER BY q.created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := make([]model.QuizSummary, 0)
	for rows.Next() {
		var s model.QuizSummary
		if err := rows.Scan(&s.ID, &s.Title, &s.Description, &s.Topic, &s.Difficulty, &s.TimeLimit,
			&s.QuestionCount, &s.Participants, &s.IsPrivate, &s.Icon,
			&s.Creator, &s.ShareCode, &s.CreatedAt); err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// AppendQuestions adds questions to the end of a quiz and returns the
// updated quiz.
func (r *QuizRepository) AppendQuestions(ctx context.Context, id uuid.UUID, questions []model.Question) (*model.Quiz, error) {
	raw, err := json.Marshal(questions)
	if err != nil {
		return nil, fmt.Errorf("marshal questions: %w", err)
	}

	row := r.pool.QueryRow(ctx,
		`UPDATE quizzes SET questions = questions || $2::jsonb
		 WHERE id = $1
		 RETURNING `+quizColumns, id, raw)
	return scanQuiz(row)
}

func scanQuiz(row pgx.Row) (*model.Quiz, error) {
	q := &model.Quiz{}
	var questions []byte
	err := row.Scan(&q.ID, &q.Title, &q.Description, &q.Topic, &q.Difficulty, &q.TimeLimit, &q.Icon,
		&q.CreatedBy, &questions, &q.ShareCode, &q.Participants, &q.IsPrivate, &q.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	if err := json.Unmarshal(questions, &q.Questions); err != nil {
		return nil, fmt.Errorf("unmarshal questions: %w", err)
	}
	if q.Questions == nil {
		q.Questions = []model.Question{}
	}
	return q, nil
}
