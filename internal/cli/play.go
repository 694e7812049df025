package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stemsi/quizly-backend/internal/client"
	"github.com/stemsi/quizly-backend/internal/model"
	ws "github.com/stemsi/quizly-backend/internal/websocket"
)

const answerPrompt = "Answer (A-D, enter to skip, p = previous, s = submit): "

type inputKind int

const (
	inputInvalid inputKind = iota
	inputAnswer
	inputSkip
	inputBack
	inputSubmit
)

func parseInput(line string) (inputKind, int) {
	switch s := strings.ToLower(strings.TrimSpace(line)); s {
	case "":
		return inputSkip, 0
	case "p", "prev", "back":
		return inputBack, 0
	case "s", "submit":
		return inputSubmit, 0
	case "a", "b", "c", "d":
		return inputAnswer, int(s[0] - 'a')
	case "1", "2", "3", "4":
		return inputAnswer, int(s[0] - '1')
	}
	return inputInvalid, 0
}

func (a *App) play(ctx context.Context, args []string) error {
	fs := a.flagSet("play")
	live := fs.Bool("live", false, "play over the server-timed websocket")
	positional, err := parseArgs(fs, args)
	if err != nil || len(positional) != 1 {
		fmt.Fprintln(a.out, "usage: play <quiz-id|share-code> [-live]")
		return ErrUsage
	}
	if *live {
		return a.playLive(ctx, positional[0])
	}

	quiz, err := a.api.ResolveQuiz(ctx, positional[0])
	if err != nil {
		return err
	}
	if len(quiz.Questions) == 0 {
		return errors.New("quiz has no questions")
	}

	p := client.NewPlay(quiz,
		func(ctx context.Context, answers []*int) (model.ScoreResult, error) {
			return a.api.Submit(ctx, quiz.ID, answers)
		},
		client.WithTick(a.tick),
		client.WithOnTick(a.announce),
	)
	a.printIntro(quiz.Title, quiz.Description, len(quiz.Questions), quiz.TimeLimit)

	lines := a.lines()
	p.Start(ctx)

	total := len(quiz.Questions)
	i := 0
loop:
	for i < total {
		q := quiz.Questions[i]
		a.printQuestion(i, total, q.QuestionText, q.Options)
		fmt.Fprint(a.out, answerPrompt)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.Done():
			fmt.Fprintln(a.out, "\nTime is up!")
			break loop
		case line, ok := <-lines:
			if !ok {
				break loop
			}
			kind, choice := parseInput(line)
			switch kind {
			case inputAnswer:
				if err := p.Answer(i, &choice); err != nil {
					break loop
				}
				i++
			case inputSkip:
				i++
			case inputBack:
				if i > 0 {
					i--
				}
			case inputSubmit:
				break loop
			default:
				fmt.Fprintln(a.out, "Please enter A, B, C or D.")
			}
		}
	}

	outcome := p.Submit(ctx)
	if outcome.Err != nil {
		return outcome.Err
	}
	a.printResult(client.BuildResult(quiz, p.Answers(), outcome.Score, outcome.AutoSubmitted))
	return nil
}

type liveEvent struct {
	msg ws.ServerMessage
	err error
}

func (a *App) playLive(ctx context.Context, ref string) error {
	id, err := a.resolveID(ctx, ref)
	if err != nil {
		return err
	}
	s, err := a.api.PlayLive(ctx, id)
	if err != nil {
		return err
	}
	defer s.Close()

	if s.Started.Quiz == nil || len(s.Started.Quiz.Questions) == 0 {
		return errors.New("quiz has no questions")
	}
	quiz := s.Started.Quiz
	a.printIntro(quiz.Title, quiz.Description, len(quiz.Questions), quiz.TimeLimit)

	done := make(chan struct{})
	defer close(done)
	events := make(chan liveEvent)
	go func() {
		for {
			msg, err := s.Next()
			select {
			case events <- liveEvent{msg: msg, err: err}:
			case <-done:
				return
			}
			if err != nil || msg.Event == ws.EventGraded {
				return
			}
		}
	}()

	lines := a.lines()
	total := len(quiz.Questions)
	i := 0
	submitted := false
	prompt := func() {
		if submitted || i >= total {
			return
		}
		q := quiz.Questions[i]
		a.printQuestion(i, total, q.QuestionText, q.Options)
		fmt.Fprint(a.out, answerPrompt)
	}
	submit := func() error {
		if submitted {
			return nil
		}
		submitted = true
		fmt.Fprintln(a.out, "Submitting...")
		return s.Submit()
	}
	prompt()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-events:
			if ev.err != nil {
				return fmt.Errorf("connection lost: %w", ev.err)
			}
			switch ev.msg.Event {
			case ws.EventTick:
				a.announce(ev.msg.Remaining)
			case ws.EventError:
				fmt.Fprintf(a.out, "\nserver: %s\n", ev.msg.Error)
			case ws.EventGraded:
				if ev.msg.AutoSubmitted {
					fmt.Fprintln(a.out, "\nTime is up!")
				}
				a.printResult(client.Result{
					Score:         ev.msg.Score,
					Total:         ev.msg.Total,
					Percentage:    model.Percentage(ev.msg.Score, ev.msg.Total),
					AutoSubmitted: ev.msg.AutoSubmitted,
				})
				return nil
			}
		case line, ok := <-lines:
			if !ok {
				lines = nil
				if err := submit(); err != nil {
					return err
				}
				continue
			}
			if submitted {
				continue
			}
			kind, choice := parseInput(line)
			switch kind {
			case inputAnswer:
				if err := s.Answer(i, &choice); err != nil {
					return err
				}
				i++
			case inputSkip:
				i++
			case inputBack:
				if i > 0 {
					i--
				}
			case inputSubmit:
				if err := submit(); err != nil {
					return err
				}
			default:
				fmt.Fprintln(a.out, "Please enter A, B, C or D.")
			}
			if i >= total {
				if err := submit(); err != nil {
					return err
				}
			}
			prompt()
		}
	}
}

// lines feeds stdin to the play loops so they can also wait on the timer.
// The reader goroutine ends with the input.
func (a *App) lines() <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		for {
			line, err := a.in.ReadString('\n')
			if err == nil || strings.TrimSpace(line) != "" {
				ch <- strings.TrimSpace(line)
			}
			if err != nil {
				return
			}
		}
	}()
	return ch
}

func (a *App) announce(remaining int) {
	if remaining <= 0 {
		return
	}
	if remaining%60 == 0 || remaining == 30 || remaining == 10 {
		fmt.Fprintf(a.out, "\n[%s left]\n", formatSeconds(remaining))
	}
}

func (a *App) printIntro(title, description string, questions, timeLimit int) {
	fmt.Fprintf(a.out, "%s\n", title)
	if description != "" {
		fmt.Fprintf(a.out, "%s\n", description)
	}
	if timeLimit > 0 {
		fmt.Fprintf(a.out, "%d questions, %d minute time limit\n", questions, timeLimit)
		return
	}
	fmt.Fprintf(a.out, "%d questions, no time limit\n", questions)
}

func (a *App) printQuestion(index, total int, text string, options []string) {
	fmt.Fprintf(a.out, "\nQ%d/%d: %s\n", index+1, total, text)
	for i, opt := range options {
		fmt.Fprintf(a.out, "  %s. %s\n", optionLetter(i), opt)
	}
}

func (a *App) printResult(res client.Result) {
	fmt.Fprintf(a.out, "\nScore: %d/%d (%d%%)\n", res.Score, res.Total, res.Percentage)
	if res.AutoSubmitted {
		fmt.Fprintln(a.out, "Answers were submitted automatically when the timer ran out.")
	}
	if len(res.Review) == 0 {
		return
	}

	fmt.Fprintln(a.out, "\nReview:")
	for i, item := range res.Review {
		mark := "x"
		if item.IsCorrect {
			mark = "ok"
		}
		fmt.Fprintf(a.out, "%2d. [%s] %s\n", i+1, mark, item.QuestionText)
		if item.Chosen == nil {
			fmt.Fprintln(a.out, "    your answer: (skipped)")
		} else {
			fmt.Fprintf(a.out, "    your answer: %s\n", optionText(item.Options, *item.Chosen))
		}
		if !item.IsCorrect {
			fmt.Fprintf(a.out, "    correct:     %s\n", optionText(item.Options, item.Correct))
		}
	}
}

func optionLetter(i int) string {
	if i < 0 || i > 25 {
		return "?"
	}
	return string(rune('A' + i))
}

func optionText(options []string, i int) string {
	if i < 0 || i >= len(options) {
		return optionLetter(i)
	}
	return optionLetter(i) + ". " + options[i]
}

func formatSeconds(s int) string {
	if s >= 60 {
		return fmt.Sprintf("%d:%02d", s/60, s%60)
	}
	return fmt.Sprintf("%ds", s)
}
