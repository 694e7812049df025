package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/stemsi/quizly-backend/internal/model"
)

// ErrPlayFinished is returned when answering after the play was submitted.
var ErrPlayFinished = errors.New("quiz already submitted")

// Submitter scores a set of answers, usually Client.Submit bound to a quiz.
type Submitter func(ctx context.Context, answers []*int) (model.ScoreResult, error)

// Outcome is the single result of a Play.
type Outcome struct {
	Score         model.ScoreResult
	AutoSubmitted bool
	Err           error
}

// PlayOption customizes a Play.
type PlayOption func(*Play)

// WithTick changes the countdown step, one second by default.
func WithTick(d time.Duration) PlayOption {
	return func(p *Play) { p.tick = d }
}

// WithOnTick is called with the remaining seconds after each step.
func WithOnTick(fn func(remaining int)) PlayOption {
	return func(p *Play) { p.onTick = fn }
}

// Play tracks answers and the countdown of one local playthrough. It is
// submitted at most once, either by Submit or when the timer runs out.
type Play struct {
	submit Submitter
	tick   time.Duration
	onTick func(int)

	mu        sync.Mutex
	answers   []*int
	remaining int
	timed     bool

	once    sync.Once
	done    chan struct{}
	outcome Outcome
}

// NewPlay prepares a Play for quiz. The countdown does not run until Start.
func NewPlay(quiz *model.Quiz, submit Submitter, opts ...PlayOption) *Play {
	p := &Play{
		submit:    submit,
		tick:      time.Second,
		answers:   make([]*int, len(quiz.Questions)),
		remaining: quiz.TimeLimit * 60,
		timed:     quiz.TimeLimit > 0,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start runs the countdown in the background. Untimed plays only end via
// Submit.
func (p *Play) Start(ctx context.Context) {
	if !p.timed {
		return
	}
	go p.countdown(ctx)
}

func (p *Play) countdown(ctx context.Context) {
	ticker := time.NewTicker(p.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.done:
			return
		case <-ticker.C:
			p.mu.Lock()
			if p.remaining > 0 {
				p.remaining--
			}
			left := p.remaining
			p.mu.Unlock()

			if p.onTick != nil {
				p.onTick(left)
			}
			if left == 0 {
				p.finish(ctx, true)
				return
			}
		}
	}
}

// Answer records choice for the question at index. A nil choice clears it.
func (p *Play) Answer(index int, choice *int) error {
	select {
	case <-p.done:
		return ErrPlayFinished
	default:
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if index < 0 || index >= len(p.answers) {
		return fmt.Errorf("question %d out of range 1..%d", index+1, len(p.answers))
	}
	if choice != nil && (*choice < 0 || *choice > 3) {
		return fmt.Errorf("choice %d out of range", *choice)
	}
	if choice == nil {
		p.answers[index] = nil
		return nil
	}
	v := *choice
	p.answers[index] = &v
	return nil
}

// Answers returns a copy of the current answers.
func (p *Play) Answers() []*int {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*int, len(p.answers))
	copy(out, p.answers)
	return out
}

// Remaining is the number of seconds left, 0 for untimed plays.
func (p *Play) Remaining() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.remaining
}

// Submit scores the current answers. Concurrent and repeated calls all get
// the first Outcome.
func (p *Play) Submit(ctx context.Context) Outcome {
	return p.finish(ctx, false)
}

// Done is closed once the play has an Outcome.
func (p *Play) Done() <-chan struct{} { return p.done }

// Outcome returns the result. Only meaningful after Done is closed.
func (p *Play) Outcome() Outcome {
	<-p.done
	return p.outcome
}

func (p *Play) finish(ctx context.Context, auto bool) Outcome {
	p.once.Do(func() {
		score, err := p.submit(ctx, p.Answers())
		p.outcome = Outcome{Score: score, AutoSubmitted: auto, Err: err}
		close(p.done)
	})
	<-p.done
	return p.outcome
}
