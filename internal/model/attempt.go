package model

import (
	"time"

	"github.com/google/uuid"
)

// Attempt is one scored submission. UserID is nil for anonymous players.
type Attempt struct {
	ID          uuid.UUID  `json:"id"`
	QuizID      uuid.UUID  `json:"quizId"`
	UserID      *uuid.UUID `json:"userId,omitempty"`
	Score       int        `json:"score"`
	Total       int        `json:"total"`
	Answers     []*int     `json:"answers"`
	SubmittedAt time.Time  `json:"submittedAt"`
}

// MaxSubmittedAnswers bounds the answers one submission may carry.
const MaxSubmittedAnswers = 1000

// SubmitRequest is the payload for POST /quiz/:id/submit.
type SubmitRequest struct {
	Answers []*int `json:"answers" binding:"required,max=1000"`
}

// ScoreResult is the authoritative score for a submission.
type ScoreResult struct {
	Score int `json:"score"`
	Total int `json:"total"`
}

// LeaderboardEntry is a user's best attempt on a quiz.
type LeaderboardEntry struct {
	Rank        int       `json:"rank"`
	UserID      uuid.UUID `json:"userId"`
	Name        string    `json:"name"`
	Score       int       `json:"score"`
	Total       int       `json:"total"`
	Percentage  int       `json:"percentage"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// AttemptSummary is one row of a user's history.
type AttemptSummary struct {
	ID          uuid.UUID `json:"id"`
	QuizID      uuid.UUID `json:"quizId"`
	QuizTitle   string    `json:"quizTitle"`
	Score       int       `json:"score"`
	Total       int       `json:"total"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// Percentage rounds 100*score/total to the nearest integer. Zero total
// yields zero.
func Percentage(score, total int) int {
	if total <= 0 {
		return 0
	}
	return (200*score + total) / (2 * total)
}
