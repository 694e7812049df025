package worker

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/quizly-backend/internal/model"
	"github.com/stemsi/quizly-backend/internal/repository"
)

const (
	AttemptBatchSize    = 50
	AttemptBatchTimeout = 2 * time.Second
	AttemptPollTimeout  = 1 * time.Second
)

// AttemptSource is the queue scored attempts arrive on.
type AttemptSource interface {
	Pop(ctx context.Context, timeout time.Duration) (*model.Attempt, error)
	Requeue(ctx context.Context, attempts ...*model.Attempt) error
}

// AttemptSink persists attempts.
type AttemptSink interface {
	InsertBatch(ctx context.Context, attempts []*model.Attempt) error
	Insert(ctx context.Context, a *model.Attempt) error
}

// QuizInvalidator drops cached quizzes whose participant count changed.
type QuizInvalidator interface {
	Invalidate(ctx context.Context, ids ...uuid.UUID)
}

// AttemptWorker drains the attempt queue into Postgres in batches.
type AttemptWorker struct {
	source      AttemptSource
	sink        AttemptSink
	invalidator QuizInvalidator
	log         zerolog.Logger

	batchSize    int
	batchTimeout time.Duration
	pollTimeout  time.Duration
}

// NewAttemptWorker creates an AttemptWorker. invalidator may be nil.
func NewAttemptWorker(source AttemptSource, sink AttemptSink, invalidator QuizInvalidator, log zerolog.Logger) *AttemptWorker {
	return &AttemptWorker{
		source:       source,
		sink:         sink,
		invalidator:  invalidator,
		log:          log.With().Str("component", "attempt_worker").Logger(),
		batchSize:    AttemptBatchSize,
		batchTimeout: AttemptBatchTimeout,
		pollTimeout:  AttemptPollTimeout,
	}
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

// Start blocks until ctx is cancelled, then flushes what it holds.
func (w *AttemptWorker) Start(ctx context.Context) {
	w.log.Info().Msg("AttemptWorker started")

	batch := make([]*model.Attempt, 0, w.batchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= w.batchSize || time.Since(lastFlush) >= w.batchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Int("pending", len(batch)).Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			a, err := w.source.Pop(ctx, w.pollTimeout)
			if err != nil {
				if !errors.Is(err, repository.ErrNotFound) && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("Attempt queue pop failed")
					// Avoid spinning on a broken connection.
					sleep(ctx, w.pollTimeout)
				}
				continue
			}
			if len(batch) == 0 {
				lastFlush = time.Now()
			}
			batch = append(batch, a)
		}
	}
}

// ----------------------------------------------------------------
// Batch insert with per-row fallback
// ----------------------------------------------------------------

func (w *AttemptWorker) flushSafe(ctx context.Context, batch []*model.Attempt) {
	if len(batch) == 0 {
		return
	}

	if err := w.sink.InsertBatch(ctx, batch); err != nil {
		w.log.Warn().Err(err).Int("size", len(batch)).Msg("Batch attempt insert failed, using fallback")

		var stored []*model.Attempt
		var retry []*model.Attempt
		for _, a := range batch {
			err := w.sink.Insert(ctx, a)
			switch {
			case err == nil:
				stored = append(stored, a)
			case repository.IsPermanent(err):
				// Quiz or user deleted since grading; the row can never land.
				w.log.Error().Err(err).Str("attempt_id", a.ID.String()).Msg("Dropping attempt")
			default:
				retry = append(retry, a)
			}
		}

		if len(retry) > 0 {
			w.log.Error().Int("count", len(retry)).Msg("Attempt insert failed, requeueing")
			if err := w.source.Requeue(ctx, retry...); err != nil {
				w.log.Error().Err(err).Int("count", len(retry)).Msg("Requeue failed, attempts lost")
			}
		}
		w.invalidate(ctx, stored)
		return
	}

	w.log.Debug().Int("size", len(batch)).Msg("Attempts persisted")
	w.invalidate(ctx, batch)
}

// invalidate drops the cached copy of every quiz touched by attempts so
// fresh participant counts are served.
func (w *AttemptWorker) invalidate(ctx context.Context, attempts []*model.Attempt) {
	if w.invalidator == nil || len(attempts) == 0 {
		return
	}
	seen := make(map[uuid.UUID]struct{}, len(attempts))
	ids := make([]uuid.UUID, 0, len(attempts))
	for _, a := range attempts {
		if _, ok := seen[a.QuizID]; ok {
			continue
		}
		seen[a.QuizID] = struct{}{}
		ids = append(ids, a.QuizID)
	}
	w.invalidator.Invalidate(ctx, ids...)
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
