package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/quizly-backend/internal/config"
	"github.com/stemsi/quizly-backend/internal/middleware"
	"github.com/stemsi/quizly-backend/internal/model"
	"github.com/stemsi/quizly-backend/internal/repository"
	"github.com/stemsi/quizly-backend/internal/response"
	"github.com/stemsi/quizly-backend/internal/service"
	"github.com/stemsi/quizly-backend/internal/validator"
)

type memUsers struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*model.User
}

func (m *memUsers) Create(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.Email == u.Email {
			return repository.ErrDuplicateEmail
		}
	}
	u.ID = uuid.New()
	u.CreatedAt = time.Now()
	cp := *u
	m.byID[u.ID] = &cp
	return nil
}

func (m *memUsers) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

type memQuizzes struct {
	mu      sync.Mutex
	quizzes map[uuid.UUID]*model.Quiz
}

func (m *memQuizzes) Create(_ context.Context, q *model.Quiz) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.quizzes {
		if existing.ShareCode == q.ShareCode {
			return repository.ErrDuplicateShareCode
		}
	}
	q.ID = uuid.New()
	q.CreatedAt = time.Now()
	cp := *q
	m.quizzes[q.ID] = &cp
	return nil
}

func (m *memQuizzes) GetByID(_ context.Context, id uuid.UUID) (*model.Quiz, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.quizzes[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *q
	return &cp, nil
}

func (m *memQuizzes) GetByShareCode(_ context.Context, code string) (*model.Quiz, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, q := range m.quizzes {
		if q.ShareCode == code {
			cp := *q
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memQuizzes) ListSummaries(_ context.Context) ([]model.QuizSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.QuizSummary, 0, len(m.quizzes))
	for _, q := range m.quizzes {
		out = append(out, model.QuizSummary{ID: q.ID, Title: q.Title, QuestionCount: len(q.Questions), ShareCode: q.ShareCode})
	}
	return out, nil
}

func (m *memQuizzes) AppendQuestions(_ context.Context, id uuid.UUID, questions []model.Question) (*model.Quiz, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.quizzes[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	q.Questions = append(q.Questions, questions...)
	cp := *q
	return &cp, nil
}

type stubGenerator struct {
	questions []model.Question
	err       error
}

func (s *stubGenerator) GenerateQuestions(_ context.Context, _ string, _ int, _ model.Difficulty) ([]model.Question, error) {
	return s.questions, s.err
}

type memQueue struct {
	mu       sync.Mutex
	attempts []*model.Attempt
}

func (m *memQueue) Enqueue(_ context.Context, a *model.Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, a)
	return nil
}

func (m *memQueue) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.attempts)
}

func (m *memQueue) last() *model.Attempt {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.attempts) == 0 {
		return nil
	}
	return m.attempts[len(m.attempts)-1]
}

type stubAttempts struct {
	entries   []model.LeaderboardEntry
	lastLimit int
}

func (s *stubAttempts) Leaderboard(_ context.Context, _ uuid.UUID, limit int) ([]model.LeaderboardEntry, error) {
	s.lastLimit = limit
	return s.entries, nil
}

func (s *stubAttempts) ListByUser(_ context.Context, _ uuid.UUID, _ int) ([]model.AttemptSummary, error) {
	return []model.AttemptSummary{}, nil
}

// testEnv wires real services over in-memory stores behind a gin engine
// laid out like the production router.
type testEnv struct {
	router    *gin.Engine
	auth      *service.AuthService
	quizzes   *memQuizzes
	queue     *memQueue
	attempts  *stubAttempts
	generator *stubGenerator
	play      *PlayHandler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	validator.Setup()

	cfg := &config.Config{
		JWTSecret:    "handler-test-secret",
		JWTExpiry:    time.Hour,
		CookieMaxAge: 24 * time.Hour,
		BcryptCost:   4,
		AITimeout:    time.Second,
	}
	log := zerolog.Nop()

	env := &testEnv{
		quizzes:   &memQuizzes{quizzes: make(map[uuid.UUID]*model.Quiz)},
		queue:     &memQueue{},
		attempts:  &stubAttempts{},
		generator: &stubGenerator{},
	}
	env.auth = service.NewAuthService(cfg, &memUsers{byID: make(map[uuid.UUID]*model.User)}, nil, log)
	quizService := service.NewQuizService(env.quizzes, nil, env.generator, cfg.AITimeout, log)
	attemptService := service.NewAttemptService(quizService, env.queue, env.attempts, log)

	users := NewUserHandler(env.auth, attemptService, cfg)
	quizzes := NewQuizHandler(quizService, attemptService)
	env.play = NewPlayHandler(quizService, attemptService, log, nil)

	r := gin.New()
	r.Use(response.RequestIDMiddleware())

	u := r.Group("/users")
	u.POST("/register", users.Register)
	u.POST("/login", users.Login)
	u.POST("/logout", users.Logout)
	u.GET("/profile", middleware.RequireAuth(env.auth), users.Profile)
	u.GET("/attempts", middleware.RequireAuth(env.auth), users.Attempts)

	q := r.Group("/quiz")
	q.GET("/all", quizzes.ListQuizzes)
	q.POST("/create", middleware.RequireAuth(env.auth), quizzes.CreateQuiz)
	q.POST("/create/ai", middleware.RequireAuth(env.auth), quizzes.GenerateQuiz)
	q.GET("/share/:code", quizzes.GetQuizByShareCode)
	q.GET("/:id", quizzes.GetQuiz)
	q.POST("/:id/submit", middleware.OptionalAuth(env.auth), quizzes.SubmitQuiz)
	q.POST("/:id/questions", middleware.RequireAuth(env.auth), quizzes.AppendQuestions)
	q.GET("/:id/leaderboard", quizzes.Leaderboard)

	r.GET("/ws/quiz/:id/play", middleware.OptionalWSAuth(env.auth), env.play.PlayQuiz)

	env.router = r
	return env
}

type envelope struct {
	Data  json.RawMessage     `json:"data"`
	Error *response.ErrorBody `json:"error"`
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode envelope %q: %v", w.Body.String(), err)
		}
	}
	return w, env
}

// register creates a user and returns its token.
func (e *testEnv) register(t *testing.T, email string) (model.AuthResponse, string) {
	t.Helper()
	w, env := e.do(t, http.MethodPost, "/users/register", "", gin.H{
		"name":     "Ada",
		"email":    email,
		"role":     "teacher",
		"password": "secret123",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register status = %d, body %s", w.Code, w.Body.String())
	}
	var resp model.AuthResponse
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatalf("decode auth response: %v", err)
	}
	return resp, resp.Token
}

// seedQuiz stores a quiz directly and returns it.
func (e *testEnv) seedQuiz(timeLimit int) *model.Quiz {
	q := &model.Quiz{
		Title:     "Capitals",
		TimeLimit: timeLimit,
		ShareCode: "ABC123",
		Questions: []model.Question{
			{QueNum: 1, QuestionText: "France?", Options: []string{"Paris", "Rome", "Oslo", "Bern"}, CorrectAnswer: 0},
			{QueNum: 2, QuestionText: "Norway?", Options: []string{"Bern", "Rome", "Paris", "Oslo"}, CorrectAnswer: 3},
		},
	}
	_ = e.quizzes.Create(context.Background(), q)
	return q
}

func intp(v int) *int { return &v }
