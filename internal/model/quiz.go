package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// OptionsPerQuestion is the fixed number of answer options.
const OptionsPerQuestion = 4

// Difficulty is the declared level of a quiz. Empty means unset.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "Beginner"
	DifficultyIntermediate Difficulty = "Intermediate"
	DifficultyAdvanced     Difficulty = "Advanced"
)

// ParseDifficulty maps user input onto a Difficulty, ignoring case.
// "medium" is accepted as Intermediate and the empty string as unset.
func ParseDifficulty(s string) (Difficulty, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return "", true
	case "beginner", "easy":
		return DifficultyBeginner, true
	case "intermediate", "medium":
		return DifficultyIntermediate, true
	case "advanced", "hard":
		return DifficultyAdvanced, true
	}
	return "", false
}

// Question is embedded in a Quiz and never addressed on its own.
type Question struct {
	QueNum        int      `json:"queNum"`
	QuestionText  string   `json:"questionText"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
}

// Valid reports whether the question has text, exactly four options and
// a correct answer that points at one of them.
func (q Question) Valid() bool {
	if strings.TrimSpace(q.QuestionText) == "" || len(q.Options) != OptionsPerQuestion {
		return false
	}
	return q.CorrectAnswer >= 0 && q.CorrectAnswer < len(q.Options)
}

// Quiz is the canonical stored quiz.
type Quiz struct {
	ID           uuid.UUID  `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Topic        string     `json:"topic"`
	Difficulty   Difficulty `json:"difficulty"`
	TimeLimit    int        `json:"timeLimit"`
	Icon         string     `json:"icon"`
	CreatedBy    uuid.UUID  `json:"createdBy"`
	Questions    []Question `json:"questions"`
	ShareCode    string     `json:"shareCode"`
	Participants int        `json:"participants"`
	IsPrivate    bool       `json:"isPrivate"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// Score counts positions where the submitted answer equals the stored
// correct answer. Missing and null answers never match.
func (q *Quiz) Score(answers []*int) ScoreResult {
	score := 0
	for i, question := range q.Questions {
		if i >= len(answers) || answers[i] == nil {
			continue
		}
		if *answers[i] == question.CorrectAnswer {
			score++
		}
	}
	return ScoreResult{Score: score, Total: len(q.Questions)}
}

// QuizSummary is the flat listing shape. Questions are never included.
type QuizSummary struct {
	ID            uuid.UUID  `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Topic         string     `json:"topic"`
	Difficulty    Difficulty `json:"difficulty"`
	TimeLimit     int        `json:"timeLimit"`
	QuestionCount int        `json:"questionCount"`
	Participants  int        `json:"participants"`
	IsPrivate     bool       `json:"isPrivate"`
	Icon          string     `json:"icon"`
	Creator       string     `json:"creator"`
	ShareCode     string     `json:"shareCode"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// PlayQuestion is a question with its correct answer removed.
type PlayQuestion struct {
	QueNum       int      `json:"queNum"`
	QuestionText string   `json:"questionText"`
	Options      []string `json:"options"`
}

// PlayQuiz is what a player sees before grading.
type PlayQuiz struct {
	ID          uuid.UUID      `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Topic       string         `json:"topic"`
	Difficulty  Difficulty     `json:"difficulty"`
	TimeLimit   int            `json:"timeLimit"`
	Questions   []PlayQuestion `json:"questions"`
}

// ForPlay hides the correct answers.
func (q *Quiz) ForPlay() PlayQuiz {
	questions := make([]PlayQuestion, len(q.Questions))
	for i, question := range q.Questions {
		questions[i] = PlayQuestion{
			QueNum:       question.QueNum,
			QuestionText: question.QuestionText,
			Options:      append([]string(nil), question.Options...),
		}
	}
	return PlayQuiz{
		ID:          q.ID,
		Title:       q.Title,
		Description: q.Description,
		Topic:       q.Topic,
		Difficulty:  q.Difficulty,
		TimeLimit:   q.TimeLimit,
		Questions:   questions,
	}
}

// QuizSettingsRequest carries the non-question metadata of a quiz.
type QuizSettingsRequest struct {
	Title       string `json:"title" binding:"required,min=1,max=255"`
	Description string `json:"description" binding:"max=2000"`
	Topic       string `json:"topic" binding:"max=100"`
	Difficulty  string `json:"difficulty" binding:"omitempty,difficulty"`
	TimeLimit   int    `json:"timeLimit" binding:"min=0,max=600"`
	IsPrivate   bool   `json:"isPrivate"`
	Icon        string `json:"icon" binding:"max=50"`
}

// QuestionRequest is one submitted question.
type QuestionRequest struct {
	QueNum        int      `json:"queNum" binding:"min=0"`
	QuestionText  string   `json:"questionText" binding:"required,max=2000"`
	Options       []string `json:"options" binding:"len=4,dive,required,max=500"`
	CorrectAnswer *int     `json:"correctAnswer" binding:"required,min=0,max=3"`
}

// ToQuestion converts a bound request. pos is the 0-based position used
// when the client left queNum out.
func (r QuestionRequest) ToQuestion(pos int) Question {
	q := Question{
		QueNum:       r.QueNum,
		QuestionText: strings.TrimSpace(r.QuestionText),
		Options:      append([]string(nil), r.Options...),
	}
	if q.QueNum == 0 {
		q.QueNum = pos + 1
	}
	if r.CorrectAnswer != nil {
		q.CorrectAnswer = *r.CorrectAnswer
	}
	return q
}

// CreateQuizRequest is the payload for POST /quiz/create.
type CreateQuizRequest struct {
	QuizSettings QuizSettingsRequest `json:"quizSettings"`
	Questions    []QuestionRequest   `json:"questions" binding:"required,min=1,max=100,dive"`
}

// AppendQuestionsRequest is the payload for POST /quiz/:id/questions.
type AppendQuestionsRequest struct {
	Questions []QuestionRequest `json:"questions" binding:"required,min=1,max=100,dive"`
}

// GenerateQuizRequest is the payload for POST /quiz/create/ai.
type GenerateQuizRequest struct {
	Topic             string `json:"topic" binding:"required,min=2,max=200"`
	NumberOfQuestions int    `json:"numberOfQuestions" binding:"required,min=1,max=50"`
	Difficulty        string `json:"difficulty" binding:"required,difficulty"`
}

// GenerateQuizResponse mirrors the shape clients already consume.
type GenerateQuizResponse struct {
	Success bool            `json:"success"`
	Result  GeneratedResult `json:"result"`
}

// GeneratedResult holds unsaved generated questions.
type GeneratedResult struct {
	Questions []Question `json:"questions"`
}
