package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/stemsi/quizly-backend/internal/client"
	"github.com/stemsi/quizly-backend/internal/model"
)

func (a *App) list(ctx context.Context, args []string) error {
	fs := a.flagSet("list")
	search := fs.String("search", "", "match title or description")
	topic := fs.String("topic", client.FilterAll, "topic or all")
	difficulty := fs.String("difficulty", client.FilterAll, "Beginner, Intermediate, Advanced or all")
	positional, err := parseArgs(fs, args)
	if err != nil {
		return ErrUsage
	}

	items, err := a.api.ListQuizzes(ctx)
	if err != nil {
		return err
	}
	catalog := client.NewCatalog(items)

	if len(positional) > 0 && strings.EqualFold(positional[0], "topics") {
		for _, t := range catalog.Topics() {
			fmt.Fprintln(a.out, t)
		}
		return nil
	}

	quizzes := catalog.Filter(client.Filter{Search: *search, Topic: *topic, Difficulty: *difficulty})
	if len(quizzes) == 0 {
		fmt.Fprintln(a.out, "No quizzes found")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CODE\tTITLE\tTOPIC\tDIFFICULTY\tQUESTIONS\tTIME\tPLAYS\tBY")
	for _, q := range quizzes {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%d\t%s\n",
			q.ShareCode, q.Title, q.Topic, q.Difficulty, q.QuestionCount, formatLimit(q.TimeLimit), q.Participants, q.Creator)
	}
	return tw.Flush()
}

func (a *App) create(ctx context.Context, args []string) error {
	fs := a.flagSet("create")
	file := fs.String("file", "", "quiz definition in YAML or JSON")
	if _, err := parseArgs(fs, args); err != nil || *file == "" {
		fmt.Fprintln(a.out, "usage: create -file quiz.yaml")
		return ErrUsage
	}

	req, err := loadQuizFile(*file)
	if err != nil {
		return err
	}
	quiz, err := a.api.CreateQuiz(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Created %q with %d questions\n", quiz.Title, len(quiz.Questions))
	fmt.Fprintf(a.out, "id: %s\nshare code: %s\n", quiz.ID, quiz.ShareCode)
	return nil
}

// loadQuizFile reads a CreateQuizRequest. JSON is valid YAML, so both go
// through the YAML decoder and are re-encoded to pick up the json tags.
func loadQuizFile(path string) (model.CreateQuizRequest, error) {
	var req model.CreateQuizRequest
	raw, err := os.ReadFile(path)
	if err != nil {
		return req, err
	}

	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return req, fmt.Errorf("parse %s: %w", path, err)
	}
	encoded, err := json.Marshal(doc)
	if err != nil {
		return req, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := json.Unmarshal(encoded, &req); err != nil {
		return req, fmt.Errorf("parse %s: %w", path, err)
	}
	return req, nil
}

func (a *App) generate(ctx context.Context, args []string) error {
	fs := a.flagSet("generate")
	topic := fs.String("topic", "", "subject of the questions")
	count := fs.Int("n", 5, "number of questions")
	difficulty := fs.String("difficulty", string(model.DifficultyBeginner), "Beginner, Intermediate or Advanced")
	save := fs.Bool("save", false, "store the generated questions as a new quiz")
	title := fs.String("title", "", "title for -save, defaults to the topic")
	if _, err := parseArgs(fs, args); err != nil || strings.TrimSpace(*topic) == "" {
		fmt.Fprintln(a.out, "usage: generate -topic T [-n 5] [-difficulty Beginner] [-save] [-title T]")
		return ErrUsage
	}

	questions, err := a.api.GenerateQuiz(ctx, model.GenerateQuizRequest{
		Topic:             *topic,
		NumberOfQuestions: *count,
		Difficulty:        *difficulty,
	})
	if err != nil {
		return err
	}
	for i, q := range questions {
		a.printQuestion(i, len(questions), q.QuestionText, q.Options)
		fmt.Fprintf(a.out, "   answer: %s\n", optionLetter(q.CorrectAnswer))
	}
	if !*save {
		return nil
	}

	name := strings.TrimSpace(*title)
	if name == "" {
		name = *topic
	}
	req := model.CreateQuizRequest{
		QuizSettings: model.QuizSettingsRequest{
			Title:      name,
			Topic:      *topic,
			Difficulty: *difficulty,
		},
		Questions: make([]model.QuestionRequest, 0, len(questions)),
	}
	for _, q := range questions {
		correct := q.CorrectAnswer
		req.Questions = append(req.Questions, model.QuestionRequest{
			QueNum:        q.QueNum,
			QuestionText:  q.QuestionText,
			Options:       q.Options,
			CorrectAnswer: &correct,
		})
	}
	quiz, err := a.api.CreateQuiz(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "\nSaved as %q, share code %s\n", quiz.Title, quiz.ShareCode)
	return nil
}

func (a *App) leaderboard(ctx context.Context, args []string) error {
	fs := a.flagSet("leaderboard")
	limit := fs.Int("limit", 0, "number of entries")
	positional, err := parseArgs(fs, args)
	if err != nil || len(positional) != 1 {
		fmt.Fprintln(a.out, "usage: leaderboard <quiz-id|share-code> [-limit 10]")
		return ErrUsage
	}

	id, err := a.resolveID(ctx, positional[0])
	if err != nil {
		return err
	}
	entries, err := a.api.Leaderboard(ctx, id, *limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(a.out, "No attempts yet")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tNAME\tSCORE\t%\tSUBMITTED")
	for _, e := range entries {
		fmt.Fprintf(tw, "%d\t%s\t%d/%d\t%d\t%s\n",
			e.Rank, e.Name, e.Score, e.Total, e.Percentage, e.SubmittedAt.Local().Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func (a *App) attempts(ctx context.Context) error {
	items, err := a.api.Attempts(ctx)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Fprintln(a.out, "No attempts yet")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "QUIZ\tSCORE\t%\tSUBMITTED")
	for _, at := range items {
		fmt.Fprintf(tw, "%s\t%d/%d\t%d\t%s\n",
			at.QuizTitle, at.Score, at.Total, model.Percentage(at.Score, at.Total),
			at.SubmittedAt.Local().Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func (a *App) resolveID(ctx context.Context, ref string) (uuid.UUID, error) {
	if id, err := uuid.Parse(strings.TrimSpace(ref)); err == nil {
		return id, nil
	}
	quiz, err := a.api.GetQuizByShareCode(ctx, ref)
	if err != nil {
		return uuid.Nil, err
	}
	return quiz.ID, nil
}

func formatLimit(minutes int) string {
	if minutes <= 0 {
		return "-"
	}
	return fmt.Sprintf("%dm", minutes)
}
