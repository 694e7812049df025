package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stemsi/quizly-backend/internal/model"
)

// AttemptRepository handles quiz attempt data access.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// InsertBatch stores attempts with a single UNNEST insert and bumps the
// participant counter of each quiz by the number of rows actually
// inserted. Attempts already stored (same id) are skipped, so a requeued
// batch never double counts.
func (r *AttemptRepository) InsertBatch(ctx context.Context, attempts []*model.Attempt) error {
	n := len(attempts)
	if n == 0 {
		return nil
	}

	ids := make([]uuid.UUID, 0, n)
	quizIDs := make([]uuid.UUID, 0, n)
	userIDs := make([]string, 0, n)
	scores := make([]int, 0, n)
	totals := make([]int, 0, n)
	answers := make([]string, 0, n)
	submittedAts := make([]time.Time, 0, n)

	for _, a := range attempts {
		raw, err := json.Marshal(a.Answers)
		if err != nil {
			return fmt.Errorf("marshal answers: %w", err)
		}
		ids = append(ids, a.ID)
		quizIDs = append(quizIDs, a.QuizID)
		userIDs = append(userIDs, userIDText(a.UserID))
		scores = append(scores, a.Score)
		totals = append(totals, a.Total)
		answers = append(answers, string(raw))
		submittedAts = append(submittedAts, a.SubmittedAt)
	}

	query := `
		WITH ins AS (
			INSERT INTO quiz_attempts (id, quiz_id, user_id, score, total, answers, submitted_at)
			SELECT
				u.id,
				u.quiz_id,
				NULLIF(u.user_id, '')::uuid,
				u.score,
				u.total,
				u.answers::jsonb,
				u.submitted_at
			FROM UNNEST(
				$1::uuid[],
				$2::uuid[],
				$3::text[],
				$4::int[],
				$5::int[],
				$6::text[],
				$7::timestamptz[]
			) AS u (id, quiz_id, user_id, score, total, answers, submitted_at)
			WHERE EXISTS (SELECT 1 FROM quizzes q WHERE q.id = u.quiz_id)
			ON CONFLICT (id) DO NOTHING
			RETURNING quiz_id
		)
		UPDATE quizzes AS q
		SET participants = q.participants + c.n
		FROM (SELECT quiz_id, COUNT(*) AS n FROM ins GROUP BY quiz_id) AS c
		WHERE q.id = c.quiz_id
	`

	_, err := r.pool.Exec(ctx, query, ids, quizIDs, userIDs, scores, totals, answers, submittedAts)
	return err
}

// Insert stores one attempt. It is the fallback when a batch fails.
func (r *AttemptRepository) Insert(ctx context.Context, a *model.Attempt) error {
	raw, err := json.Marshal(a.Answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`INSERT INTO quiz_attempts (id, quiz_id, user_id, score, total, answers, submitted_at)
		 VALUES ($1, $2, NULLIF($3, '')::uuid, $4, $5, $6::jsonb, $7)
		 ON CONFLICT (id) DO NOTHING`,
		a.ID, a.QuizID, userIDText(a.UserID), a.Score, a.Total, string(raw), a.SubmittedAt,
	)
	if err != nil {
		return err
	}

	if tag.RowsAffected() > 0 {
		if _, err := tx.Exec(ctx,
			`UPDATE quizzes SET participants = participants + 1 WHERE id = $1`, a.QuizID,
		); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// Leaderboard returns the best attempt of each registered user on a quiz.
// Ties on score go to the earlier submission.
func (r *AttemptRepository) Leaderboard(ctx context.Context, quizID uuid.UUID, limit int) ([]model.LeaderboardEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT user_id, name, score, total, submitted_at
		 FROM (
			SELECT DISTINCT ON (a.user_id)
				a.user_id, u.name, a.score, a.total, a.submitted_at
			FROM quiz_attempts a
			JOIN users u ON u.id = a.user_id
			WHERE a.quiz_id = $1
			ORDER BY a.user_id, a.score DESC, a.submitted_at ASC
		 ) AS best
		 ORDER BY score DESC, submitted_at ASC
		 LIMIT $2`, quizID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]model.LeaderboardEntry, 0)
	for rows.Next() {
		var e model.LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.Name, &e.Score, &e.Total, &e.SubmittedAt); err != nil {
			return nil, err
		}
		e.Rank = len(entries) + 1
		e.Percentage = model.Percentage(e.Score, e.Total)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ListByUser returns a user's attempts, newest first.
func (r *AttemptRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]model.AttemptSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT a.id, a.quiz_id, q.title, a.score, a.total, a.submitted_at
		 FROM quiz_attempts a
		 JOIN quizzes q ON q.id = a.quiz_id
		 WHERE a.user_id = $1
		 ORDER BY a.submitted_at DESC
		 LIMIT $2`, userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	attempts := make([]model.AttemptSummary, 0)
	for rows.Next() {
		var a model.AttemptSummary
		if err := rows.Scan(&a.ID, &a.QuizID, &a.QuizTitle, &a.Score, &a.Total, &a.SubmittedAt); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

func userIDText(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}
