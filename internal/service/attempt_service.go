package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/quizly-backend/internal/model"
)

const (
	DefaultLeaderboardLimit = 10
	MaxLeaderboardLimit     = 100
	DefaultHistoryLimit     = 50
)

// AttemptQueue hands scored attempts to the persistence worker.
type AttemptQueue interface {
	Enqueue(ctx context.Context, a *model.Attempt) error
}

// AttemptStore reads persisted attempts.
type AttemptStore interface {
	Leaderboard(ctx context.Context, quizID uuid.UUID, limit int) ([]model.LeaderboardEntry, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]model.AttemptSummary, error)
}

// AttemptService scores submissions and serves rankings.
type AttemptService struct {
	quizzes  *QuizService
	queue    AttemptQueue
	attempts AttemptStore
	log      zerolog.Logger
	now      func() time.Time
}

// NewAttemptService creates a new AttemptService. queue may be nil, in
// which case attempts are scored but not recorded.
func NewAttemptService(quizzes *QuizService, queue AttemptQueue, attempts AttemptStore, log zerolog.Logger) *AttemptService {
	return &AttemptService{
		quizzes:  quizzes,
		queue:    queue,
		attempts: attempts,
		log:      log.With().Str("component", "attempt_service").Logger(),
		now:      time.Now,
	}
}

// ScoreSubmission grades answers against the stored quiz. userID is nil
// for anonymous players. Recording the attempt is best effort and never
// fails the submission.
func (s *AttemptService) ScoreSubmission(ctx context.Context, quizID uuid.UUID, userID *uuid.UUID, answers []*int) (model.ScoreResult, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return model.ScoreResult{}, err
	}
	return s.Grade(ctx, quiz, userID, answers), nil
}

// Grade scores answers against an already loaded quiz and enqueues the
// attempt. Answers past the last question are not recorded.
func (s *AttemptService) Grade(ctx context.Context, quiz *model.Quiz, userID *uuid.UUID, answers []*int) model.ScoreResult {
	result := quiz.Score(answers)
	if len(answers) > len(quiz.Questions) {
		answers = answers[:len(quiz.Questions)]
	}

	if s.queue != nil {
		attempt := &model.Attempt{
			ID:          uuid.New(),
			QuizID:      quiz.ID,
			UserID:      userID,
			Score:       result.Score,
			Total:       result.Total,
			Answers:     answers,
			SubmittedAt: s.now().UTC(),
		}
		if err := s.queue.Enqueue(ctx, attempt); err != nil {
			s.log.Error().Err(err).Str("quiz_id", quiz.ID.String()).Msg("Failed to enqueue attempt")
		}
	}
	return result
}

// Leaderboard ranks the best attempt of each registered user.
func (s *AttemptService) Leaderboard(ctx context.Context, quizID uuid.UUID, limit int) ([]model.LeaderboardEntry, error) {
	if _, err := s.quizzes.GetQuiz(ctx, quizID); err != nil {
		return nil, err
	}

	entries, err := s.attempts.Leaderboard(ctx, quizID, clampLimit(limit, DefaultLeaderboardLimit, MaxLeaderboardLimit))
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	return entries, nil
}

// UserAttempts lists a user's recorded attempts, newest first.
func (s *AttemptService) UserAttempts(ctx context.Context, userID uuid.UUID) ([]model.AttemptSummary, error) {
	attempts, err := s.attempts.ListByUser(ctx, userID, DefaultHistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	return attempts, nil
}

func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
