package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/quizly-backend/internal/config"
	"github.com/stemsi/quizly-backend/internal/model"
	"github.com/stemsi/quizly-backend/internal/repository"
)

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:  "test-secret",
		JWTExpiry:  time.Hour,
		BcryptCost: 4,
		AITimeout:  time.Second,
	}
}

var nopLog = zerolog.Nop()

type fakeUserStore struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]*model.User
	byEmail map[string]*model.User

	// createErr, when set, is returned by Create instead of storing.
	createErr error
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{
		byID:    make(map[uuid.UUID]*model.User),
		byEmail: make(map[string]*model.User),
	}
}

func (f *fakeUserStore) Create(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if _, ok := f.byEmail[u.Email]; ok {
		return repository.ErrDuplicateEmail
	}
	u.ID = uuid.New()
	u.CreatedAt = time.Now()
	stored := *u
	f.byID[u.ID] = &stored
	f.byEmail[u.Email] = &stored
	return nil
}

func (f *fakeUserStore) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUserStore) GetByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byEmail[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUserStore) remove(id uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.byID[id]; ok {
		delete(f.byEmail, u.Email)
		delete(f.byID, id)
	}
}

type fakeBlocklist struct {
	mu      sync.Mutex
	revoked map[string]time.Duration
}

func newFakeBlocklist() *fakeBlocklist {
	return &fakeBlocklist{revoked: make(map[string]time.Duration)}
}

func (f *fakeBlocklist) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked[jti] = ttl
	return nil
}

func (f *fakeBlocklist) IsRevoked(_ context.Context, jti string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.revoked[jti]
	return ok, nil
}

type fakeQuizStore struct {
	mu      sync.Mutex
	quizzes map[uuid.UUID]*model.Quiz
	order   []uuid.UUID

	// collisions makes the next N creates fail with a share code conflict.
	collisions  int
	createCalls int
	getCalls    int

	// afterGet runs once a GetByID has read its row, outside the lock.
	afterGet func()
}

func newFakeQuizStore() *fakeQuizStore {
	return &fakeQuizStore{quizzes: make(map[uuid.UUID]*model.Quiz)}
}

func (f *fakeQuizStore) Create(_ context.Context, q *model.Quiz) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.collisions > 0 {
		f.collisions--
		return repository.ErrDuplicateShareCode
	}
	for _, existing := range f.quizzes {
		if existing.ShareCode == q.ShareCode {
			return repository.ErrDuplicateShareCode
		}
	}
	q.ID = uuid.New()
	q.CreatedAt = time.Now().Add(time.Duration(len(f.order)) * time.Millisecond)
	f.quizzes[q.ID] = cloneQuiz(q)
	f.order = append(f.order, q.ID)
	return nil
}

func (f *fakeQuizStore) GetByID(_ context.Context, id uuid.UUID) (*model.Quiz, error) {
	f.mu.Lock()
	f.getCalls++
	q, ok := f.quizzes[id]
	var out *model.Quiz
	if ok {
		out = cloneQuiz(q)
	}
	hook := f.afterGet
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	if !ok {
		return nil, repository.ErrNotFound
	}
	return out, nil
}

func (f *fakeQuizStore) GetByShareCode(_ context.Context, code string) (*model.Quiz, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, q := range f.quizzes {
		if q.ShareCode == code {
			return cloneQuiz(q), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeQuizStore) ListSummaries(_ context.Context) ([]model.QuizSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.QuizSummary, 0, len(f.quizzes))
	for _, q := range f.quizzes {
		out = append(out, model.QuizSummary{
			ID:            q.ID,
			Title:         q.Title,
			QuestionCount: len(q.Questions),
			ShareCode:     q.ShareCode,
			CreatedAt:     q.CreatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeQuizStore) AppendQuestions(_ context.Context, id uuid.UUID, questions []model.Question) (*model.Quiz, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.quizzes[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	q.Questions = append(q.Questions, questions...)
	return cloneQuiz(q), nil
}

func cloneQuiz(q *model.Quiz) *model.Quiz {
	cp := *q
	cp.Questions = make([]model.Question, len(q.Questions))
	for i, question := range q.Questions {
		question.Options = append([]string(nil), question.Options...)
		cp.Questions[i] = question
	}
	return &cp
}

type fakeQuizCache struct {
	mu          sync.Mutex
	docs        map[uuid.UUID]*model.Quiz
	codes       map[string]uuid.UUID
	gens        map[uuid.UUID]int64
	invalidated []uuid.UUID
	failReads   bool
	staleWrites int
}

func newFakeQuizCache() *fakeQuizCache {
	return &fakeQuizCache{
		docs:  make(map[uuid.UUID]*model.Quiz),
		codes: make(map[string]uuid.UUID),
		gens:  make(map[uuid.UUID]int64),
	}
}

func (f *fakeQuizCache) GetQuiz(_ context.Context, id uuid.UUID) (*model.Quiz, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failReads {
		return nil, errors.New("redis down")
	}
	q, ok := f.docs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneQuiz(q), nil
}

func (f *fakeQuizCache) Generation(_ context.Context, id uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gens[id], nil
}

func (f *fakeQuizCache) SetQuiz(_ context.Context, q *model.Quiz, gen int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gens[q.ID] != gen {
		f.staleWrites++
		return nil
	}
	f.docs[q.ID] = cloneQuiz(q)
	return nil
}

func (f *fakeQuizCache) SetShareCode(_ context.Context, code string, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codes[code] = id
	return nil
}

func (f *fakeQuizCache) LookupShareCode(_ context.Context, code string) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failReads {
		return uuid.Nil, errors.New("redis down")
	}
	id, ok := f.codes[code]
	if !ok {
		return uuid.Nil, repository.ErrNotFound
	}
	return id, nil
}

func (f *fakeQuizCache) InvalidateQuizzes(_ context.Context, ids ...uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		delete(f.docs, id)
		f.gens[id]++
		f.invalidated = append(f.invalidated, id)
	}
	return nil
}

type fakeGenerator struct {
	questions []model.Question
	err       error

	// block makes the generator wait for ctx cancellation.
	block bool

	lastTopic      string
	lastCount      int
	lastDifficulty model.Difficulty
}

func (f *fakeGenerator) GenerateQuestions(ctx context.Context, topic string, count int, difficulty model.Difficulty) ([]model.Question, error) {
	f.lastTopic = topic
	f.lastCount = count
	f.lastDifficulty = difficulty
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.questions, f.err
}

type fakeAttemptQueue struct {
	mu       sync.Mutex
	attempts []*model.Attempt
	err      error
}

func (f *fakeAttemptQueue) Enqueue(_ context.Context, a *model.Attempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.attempts = append(f.attempts, a)
	return nil
}

type fakeAttemptStore struct {
	entries   []model.LeaderboardEntry
	history   []model.AttemptSummary
	lastLimit int
}

func (f *fakeAttemptStore) Leaderboard(_ context.Context, _ uuid.UUID, limit int) ([]model.LeaderboardEntry, error) {
	f.lastLimit = limit
	return f.entries, nil
}

func (f *fakeAttemptStore) ListByUser(_ context.Context, _ uuid.UUID, limit int) ([]model.AttemptSummary, error) {
	f.lastLimit = limit
	return f.history, nil
}

func intp(v int) *int { return &v }

func questionReq(text string, correct int) model.QuestionRequest {
	return model.QuestionRequest{
		QuestionText:  text,
		Options:       []string{"A", "B", "C", "D"},
		CorrectAnswer: intp(correct),
	}
}
