package client

import "github.com/stemsi/quizly-backend/internal/model"

// ReviewItem pairs one question with the player's answer.
type ReviewItem struct {
	QueNum       int
	QuestionText string
	Options      []string
	Chosen       *int
	Correct      int
	IsCorrect    bool
}

// Result is what the player sees after submitting.
type Result struct {
	Score         int
	Total         int
	Percentage    int
	AutoSubmitted bool
	Review        []ReviewItem
}

// BuildResult combines the server score with a per-question review. The
// score comes from the server; the review uses the answers in quiz.
func BuildResult(quiz *model.Quiz, answers []*int, score model.ScoreResult, auto bool) Result {
	res := Result{
		Score:         score.Score,
		Total:         score.Total,
		Percentage:    model.Percentage(score.Score, score.Total),
		AutoSubmitted: auto,
		Review:        make([]ReviewItem, 0, len(quiz.Questions)),
	}
	for i, q := range quiz.Questions {
		item := ReviewItem{
			QueNum:       q.QueNum,
			QuestionText: q.QuestionText,
			Options:      q.Options,
			Correct:      q.CorrectAnswer,
		}
		if i < len(answers) && answers[i] != nil {
			chosen := *answers[i]
			item.Chosen = &chosen
			item.IsCorrect = chosen == q.CorrectAnswer
		}
		res.Review = append(res.Review, item)
	}
	return res
}
