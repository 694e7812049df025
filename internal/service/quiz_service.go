package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/quizly-backend/internal/model"
	"github.com/stemsi/quizly-backend/internal/repository"
)

// Quiz service errors.
var (
	ErrQuizNotFound       = errors.New("quiz not found")
	ErrNotQuizOwner       = errors.New("quiz belongs to another user")
	ErrInvalidQuestion    = errors.New("question must have text, 4 options and a correct answer among them")
	ErrInvalidDifficulty  = errors.New("unknown difficulty")
	ErrGeneration         = errors.New("quiz generation failed")
	ErrShareCodeExhausted = errors.New("could not allocate a unique share code")
)

// QuizStore is the persisted quiz collection.
type QuizStore interface {
	Create(ctx context.Context, q *model.Quiz) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Quiz, error)
	GetByShareCode(ctx context.Context, code string) (*model.Quiz, error)
	ListSummaries(ctx context.Context) ([]model.QuizSummary, error)
	AppendQuestions(ctx context.Context, id uuid.UUID, questions []model.Question) (*model.Quiz, error)
}

// QuizCache caches quiz documents. Misses are reported as repository.ErrNotFound.
// SetQuiz must drop the write when the quiz was invalidated after gen was
// read from Generation.
type QuizCache interface {
	GetQuiz(ctx context.Context, id uuid.UUID) (*model.Quiz, error)
	Generation(ctx context.Context, id uuid.UUID) (int64, error)
	SetQuiz(ctx context.Context, q *model.Quiz, gen int64) error
	SetShareCode(ctx context.Context, code string, id uuid.UUID) error
	LookupShareCode(ctx context.Context, code string) (uuid.UUID, error)
	InvalidateQuizzes(ctx context.Context, ids ...uuid.UUID) error
}

// QuestionGenerator produces questions for a topic.
type QuestionGenerator interface {
	GenerateQuestions(ctx context.Context, topic string, count int, difficulty model.Difficulty) ([]model.Question, error)
}

// QuizService creates, retrieves and lists quizzes.
type QuizService struct {
	store     QuizStore
	cache     QuizCache
	generator QuestionGenerator
	aiTimeout time.Duration
	log       zerolog.Logger
	newCode   func() (string, error)
}

// NewQuizService creates a new QuizService. cache may be nil.
func NewQuizService(
	store QuizStore,
	cache QuizCache,
	generator QuestionGenerator,
	aiTimeout time.Duration,
	log zerolog.Logger,
) *QuizService {
	return &QuizService{
		store:     store,
		cache:     cache,
		generator: generator,
		aiTimeout: aiTimeout,
		log:       log.With().Str("component", "quiz_service").Logger(),
		newCode:   NewShareCode,
	}
}

// CreateQuiz validates and persists a quiz owned by ownerID under a fresh
// share code, redrawing the code when it collides.
func (s *QuizService) CreateQuiz(ctx context.Context, ownerID uuid.UUID, req model.CreateQuizRequest) (*model.Quiz, error) {
	difficulty, ok := model.ParseDifficulty(req.QuizSettings.Difficulty)
	if !ok {
		return nil, ErrInvalidDifficulty
	}

	questions, err := toQuestions(req.Questions, 0)
	if err != nil {
		return nil, err
	}

	settings := req.QuizSettings
	quiz := &model.Quiz{
		Title:       strings.TrimSpace(settings.Title),
		Description: strings.TrimSpace(settings.Description),
		Topic:       strings.TrimSpace(settings.Topic),
		Difficulty:  difficulty,
		TimeLimit:   settings.TimeLimit,
		Icon:        settings.Icon,
		CreatedBy:   ownerID,
		Questions:   questions,
		IsPrivate:   settings.IsPrivate,
	}

	for attempt := 1; attempt <= maxShareCodeAttempts; attempt++ {
		code, err := s.newCode()
		if err != nil {
			return nil, fmt.Errorf("generate share code: %w", err)
		}
		quiz.ShareCode = code

		err = s.store.Create(ctx, quiz)
		if err == nil {
			s.log.Info().
				Str("quiz_id", quiz.ID.String()).
				Str("share_code", code).
				Int("questions", len(questions)).
				Msg("Quiz created")
			return quiz, nil
		}
		if !errors.Is(err, repository.ErrDuplicateShareCode) {
			return nil, fmt.Errorf("create quiz: %w", err)
		}
		s.log.Warn().Str("share_code", code).Int("attempt", attempt).Msg("Share code collision, retrying")
	}
	return nil, ErrShareCodeExhausted
}

// GenerateWithAI asks the generator for questions. Nothing is persisted.
func (s *QuizService) GenerateWithAI(ctx context.Context, req model.GenerateQuizRequest) ([]model.Question, error) {
	difficulty, ok := model.ParseDifficulty(req.Difficulty)
	if !ok || difficulty == "" {
		return nil, ErrInvalidDifficulty
	}

	if s.aiTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.aiTimeout)
		defer cancel()
	}

	start := time.Now()
	questions, err := s.generator.GenerateQuestions(ctx, strings.TrimSpace(req.Topic), req.NumberOfQuestions, difficulty)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	s.log.Info().
		Str("topic", req.Topic).
		Int("questions", len(questions)).
		Dur("took", time.Since(start)).
		Msg("Questions generated")
	return questions, nil
}

// GetQuiz returns a quiz by id, reading through the cache.
func (s *QuizService) GetQuiz(ctx context.Context, id uuid.UUID) (*model.Quiz, error) {
	if s.cache != nil {
		q, err := s.cache.GetQuiz(ctx, id)
		if err == nil {
			return q, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			s.log.Warn().Err(err).Str("quiz_id", id.String()).Msg("Quiz cache read failed")
		}
	}

	// The generation is read before the row so an invalidation that lands
	// in between makes the fill below a no-op.
	gen, canFill := s.generation(ctx, id)

	q, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("get quiz: %w", err)
	}

	if canFill {
		if err := s.cache.SetQuiz(ctx, q, gen); err != nil {
			s.log.Warn().Err(err).Str("quiz_id", q.ID.String()).Msg("Quiz cache write failed")
		}
	}
	return q, nil
}

// GetQuizByShareCode returns the quiz whose code matches exactly after
// normalization. It never mutates the quiz.
func (s *QuizService) GetQuizByShareCode(ctx context.Context, code string) (*model.Quiz, error) {
	code = NormalizeShareCode(code)
	if len(code) != ShareCodeLength {
		return nil, ErrQuizNotFound
	}

	if s.cache != nil {
		if id, err := s.cache.LookupShareCode(ctx, code); err == nil {
			if q, err := s.GetQuiz(ctx, id); err == nil && q.ShareCode == code {
				return q, nil
			}
		} else if !errors.Is(err, repository.ErrNotFound) {
			s.log.Warn().Err(err).Str("share_code", code).Msg("Share code cache read failed")
		}
	}

	q, err := s.store.GetByShareCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("get quiz by share code: %w", err)
	}

	// Only the code mapping is cached here; the document is filled by
	// GetQuiz on the next lookup.
	if s.cache != nil {
		if err := s.cache.SetShareCode(ctx, code, q.ID); err != nil {
			s.log.Warn().Err(err).Str("share_code", code).Msg("Share code cache write failed")
		}
	}
	return q, nil
}

// ListQuizzes returns every quiz, newest first, in the flat listing shape.
func (s *QuizService) ListQuizzes(ctx context.Context) ([]model.QuizSummary, error) {
	summaries, err := s.store.ListSummaries(ctx)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	if summaries == nil {
		summaries = []model.QuizSummary{}
	}
	return summaries, nil
}

// AppendQuestions adds questions to a quiz owned by ownerID.
func (s *QuizService) AppendQuestions(ctx context.Context, ownerID, quizID uuid.UUID, reqs []model.QuestionRequest) (*model.Quiz, error) {
	existing, err := s.store.GetByID(ctx, quizID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("get quiz: %w", err)
	}
	if existing.CreatedBy != ownerID {
		return nil, ErrNotQuizOwner
	}

	questions, err := toQuestions(reqs, len(existing.Questions))
	if err != nil {
		return nil, err
	}

	updated, err := s.store.AppendQuestions(ctx, quizID, questions)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("append questions: %w", err)
	}

	s.Invalidate(ctx, quizID)
	return updated, nil
}

// Invalidate drops cached documents for the given quizzes.
func (s *QuizService) Invalidate(ctx context.Context, ids ...uuid.UUID) {
	if s.cache == nil || len(ids) == 0 {
		return
	}
	if err := s.cache.InvalidateQuizzes(ctx, ids...); err != nil {
		s.log.Warn().Err(err).Int("count", len(ids)).Msg("Quiz cache invalidation failed")
	}
}

// generation reports the cache generation of id and whether a fill may
// follow. Without a readable generation the fill is skipped.
func (s *QuizService) generation(ctx context.Context, id uuid.UUID) (int64, bool) {
	if s.cache == nil {
		return 0, false
	}
	gen, err := s.cache.Generation(ctx, id)
	if err != nil {
		s.log.Warn().Err(err).Str("quiz_id", id.String()).Msg("Quiz cache generation read failed")
		return 0, false
	}
	return gen, true
}

// toQuestions converts bound requests, numbering from offset when queNum
// is absent, and rejects anything that is not a well formed question.
func toQuestions(reqs []model.QuestionRequest, offset int) ([]model.Question, error) {
	questions := make([]model.Question, len(reqs))
	for i, r := range reqs {
		if r.CorrectAnswer == nil {
			return nil, fmt.Errorf("%w: question %d", ErrInvalidQuestion, offset+i+1)
		}
		q := r.ToQuestion(offset + i)
		if !q.Valid() {
			return nil, fmt.Errorf("%w: question %d", ErrInvalidQuestion, offset+i+1)
		}
		questions[i] = q
	}
	return questions, nil
}
