package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/quizly-backend/internal/middleware"
	"github.com/stemsi/quizly-backend/internal/model"
	"github.com/stemsi/quizly-backend/internal/response"
	"github.com/stemsi/quizly-backend/internal/service"
)

func TestRegisterReturnsTokenForNewUser(t *testing.T) {
	env := newTestEnv(t)

	w, envl := env.do(t, http.MethodPost, "/users/register", "", gin.H{
		"name":     "Ada",
		"email":    "ada@example.com",
		"password": "secret123",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var resp model.AuthResponse
	if err := json.Unmarshal(envl.Data, &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	claims, err := env.auth.ValidateToken(resp.Token)
	if err != nil {
		t.Fatalf("token invalid: %v", err)
	}
	if claims.Subject != resp.User.ID.String() {
		t.Errorf("subject = %q, want %q", claims.Subject, resp.User.ID)
	}
	if strings.Contains(w.Body.String(), "password") {
		t.Error("response leaks password material")
	}

	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == middleware.CookieName {
			cookie = c
		}
	}
	if cookie == nil || cookie.Value != resp.Token || !cookie.HttpOnly {
		t.Errorf("session cookie = %+v", cookie)
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "dup@example.com")

	w, envl := env.do(t, http.MethodPost, "/users/register", "", gin.H{
		"name": "Bob", "email": "dup@example.com", "password": "another1",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	if envl.Error == nil || envl.Error.Code != response.ErrEmailTaken {
		t.Errorf("error = %+v", envl.Error)
	}
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)

	w, envl := env.do(t, http.MethodPost, "/users/register", "", gin.H{
		"name": "Ada", "email": "not-an-email", "password": "123",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	if envl.Error == nil || envl.Error.Code != response.ErrValidation {
		t.Fatalf("error = %+v", envl.Error)
	}
	for _, field := range []string{"email", "password"} {
		if _, ok := envl.Error.Fields[field]; !ok {
			t.Errorf("missing field error for %q in %v", field, envl.Error.Fields)
		}
	}
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "ada@example.com")

	tests := []struct {
		name     string
		password string
		want     int
	}{
		{"correct password", "secret123", http.StatusOK},
		{"wrong password", "wrong-password", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, envl := env.do(t, http.MethodPost, "/users/login", "", gin.H{
				"email": "ada@example.com", "password": tt.password,
			})
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d", w.Code, tt.want)
			}
			if tt.want == http.StatusUnauthorized {
				if envl.Error == nil || envl.Error.Code != response.ErrInvalidCredentials {
					t.Errorf("error = %+v", envl.Error)
				}
				if strings.Contains(w.Body.String(), "token\":\"") {
					t.Error("failed login returned a token")
				}
			}
		})
	}
}

func TestProfileRequiresToken(t *testing.T) {
	env := newTestEnv(t)

	w, envl := env.do(t, http.MethodGet, "/users/profile", "", nil)
	if w.Code != http.StatusUnauthorized || envl.Error.Code != response.ErrTokenRequired {
		t.Fatalf("status = %d, error = %+v", w.Code, envl.Error)
	}

	resp, token := env.register(t, "ada@example.com")
	w, envl = env.do(t, http.MethodGet, "/users/profile", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		User model.PublicUser `json:"user"`
	}
	_ = json.Unmarshal(envl.Data, &body)
	if body.User.ID != resp.User.ID {
		t.Errorf("profile id = %s, want %s", body.User.ID, resp.User.ID)
	}
}

func TestExpiredTokenRejectedBeforeHandler(t *testing.T) {
	env := newTestEnv(t)
	resp, _ := env.register(t, "ada@example.com")

	past := time.Now().Add(-2 * time.Hour)
	claims := service.Claims{RegisteredClaims: jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   resp.User.ID.String(),
		IssuedAt:  jwt.NewNumericDate(past),
		ExpiresAt: jwt.NewNumericDate(past.Add(time.Hour)),
	}}
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("handler-test-secret"))
	if err != nil {
		t.Fatal(err)
	}

	body := gin.H{
		"quizSettings": gin.H{"title": "T"},
		"questions":    []gin.H{{"questionText": "Q", "options": []string{"a", "b", "c", "d"}, "correctAnswer": 0}},
	}
	w, envl := env.do(t, http.MethodPost, "/quiz/create", expired, body)
	if w.Code != http.StatusUnauthorized || envl.Error.Code != response.ErrTokenExpired {
		t.Fatalf("status = %d, error = %+v", w.Code, envl.Error)
	}
	if len(env.quizzes.quizzes) != 0 {
		t.Error("handler ran with an expired token")
	}
}

func TestLogoutClearsCookie(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.register(t, "ada@example.com")

	w, _ := env.do(t, http.MethodPost, "/users/logout", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	cleared := false
	for _, c := range w.Result().Cookies() {
		if c.Name == middleware.CookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("session cookie not cleared")
	}
}

func createQuizBody() gin.H {
	return gin.H{
		"quizSettings": gin.H{
			"title":      "Capitals",
			"topic":      "Geography",
			"difficulty": "Beginner",
			"timeLimit":  5,
		},
		"questions": []gin.H{
			{"questionText": "France?", "options": []string{"Paris", "Rome", "Oslo", "Bern"}, "correctAnswer": 0},
			{"questionText": "Norway?", "options": []string{"Bern", "Rome", "Paris", "Oslo"}, "correctAnswer": 3},
		},
	}
}

func TestCreateThenFetchRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.register(t, "ada@example.com")

	w, envl := env.do(t, http.MethodPost, "/quiz/create", token, createQuizBody())
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", w.Code, w.Body.String())
	}
	var created struct {
		Quiz model.Quiz `json:"quiz"`
	}
	if err := json.Unmarshal(envl.Data, &created); err != nil {
		t.Fatal(err)
	}
	if len(created.Quiz.ShareCode) != service.ShareCodeLength {
		t.Errorf("share code = %q", created.Quiz.ShareCode)
	}

	for _, path := range []string{
		"/quiz/" + created.Quiz.ID.String(),
		"/quiz/share/" + created.Quiz.ShareCode,
		"/quiz/share/" + strings.ToLower(created.Quiz.ShareCode),
	} {
		w, envl := env.do(t, http.MethodGet, path, "", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("GET %s status = %d", path, w.Code)
		}
		var fetched struct {
			Quiz model.Quiz `json:"quiz"`
		}
		_ = json.Unmarshal(envl.Data, &fetched)
		if fetched.Quiz.ID != created.Quiz.ID {
			t.Fatalf("GET %s id = %s", path, fetched.Quiz.ID)
		}
		if len(fetched.Quiz.Questions) != 2 {
			t.Fatalf("GET %s questions = %d", path, len(fetched.Quiz.Questions))
		}
		if got := fetched.Quiz.Questions[1]; got.CorrectAnswer != 3 || got.Options[3] != "Oslo" || got.QueNum != 2 {
			t.Errorf("GET %s question 2 = %+v", path, got)
		}
	}
}

func TestCreateQuizRejectsBadQuestions(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.register(t, "ada@example.com")

	body := createQuizBody()
	body["questions"] = []gin.H{{"questionText": "Q", "options": []string{"a", "b", "c"}, "correctAnswer": 5}}

	w, envl := env.do(t, http.MethodPost, "/quiz/create", token, body)
	if w.Code != http.StatusBadRequest || envl.Error.Code != response.ErrValidation {
		t.Fatalf("status = %d, error = %+v", w.Code, envl.Error)
	}
	if len(envl.Error.Fields) == 0 {
		t.Error("expected field errors")
	}
}

func TestGetQuizInvalidID(t *testing.T) {
	env := newTestEnv(t)

	w, envl := env.do(t, http.MethodGet, "/quiz/not-a-valid-id-format", "", nil)
	if w.Code != http.StatusBadRequest || envl.Error.Code != response.ErrInvalidID {
		t.Fatalf("status = %d, error = %+v", w.Code, envl.Error)
	}

	w, envl = env.do(t, http.MethodGet, "/quiz/"+uuid.NewString(), "", nil)
	if w.Code != http.StatusNotFound || envl.Error.Code != response.ErrNotFound {
		t.Fatalf("status = %d, error = %+v", w.Code, envl.Error)
	}
}

func TestListQuizzes(t *testing.T) {
	env := newTestEnv(t)
	env.seedQuiz(0)

	w, envl := env.do(t, http.MethodGet, "/quiz/all", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Quizzes []model.QuizSummary `json:"quizzes"`
	}
	_ = json.Unmarshal(envl.Data, &body)
	if len(body.Quizzes) != 1 || body.Quizzes[0].QuestionCount != 2 {
		t.Errorf("quizzes = %+v", body.Quizzes)
	}
}

func TestSubmitQuizScores(t *testing.T) {
	env := newTestEnv(t)
	quiz := env.seedQuiz(0)

	tests := []struct {
		name    string
		answers []*int
		want    model.ScoreResult
	}{
		{"all correct", []*int{intp(0), intp(3)}, model.ScoreResult{Score: 2, Total: 2}},
		{"short answers", []*int{intp(0)}, model.ScoreResult{Score: 1, Total: 2}},
		{"null answers", []*int{nil, nil}, model.ScoreResult{Score: 0, Total: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, envl := env.do(t, http.MethodPost, "/quiz/"+quiz.ID.String()+"/submit", "", gin.H{"answers": tt.answers})
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
			}
			var got model.ScoreResult
			_ = json.Unmarshal(envl.Data, &got)
			if got != tt.want {
				t.Errorf("result = %+v, want %+v", got, tt.want)
			}
		})
	}
	if env.queue.count() != len(tests) {
		t.Errorf("queued %d attempts, want %d", env.queue.count(), len(tests))
	}
	if env.queue.last().UserID != nil {
		t.Error("anonymous attempt carries a user id")
	}
}

func TestSubmitQuizBoundsAnswers(t *testing.T) {
	env := newTestEnv(t)
	quiz := env.seedQuiz(0)
	path := "/quiz/" + quiz.ID.String() + "/submit"

	w, envl := env.do(t, http.MethodPost, path, "", gin.H{"answers": make([]*int, model.MaxSubmittedAnswers+1)})
	if w.Code != http.StatusBadRequest || envl.Error == nil || envl.Error.Code != response.ErrValidation {
		t.Fatalf("status = %d, error = %+v", w.Code, envl.Error)
	}
	if env.queue.count() != 0 {
		t.Fatalf("oversized submission was queued")
	}

	answers := make([]*int, 50)
	answers[0], answers[1] = intp(0), intp(3)
	w, _ = env.do(t, http.MethodPost, path, "", gin.H{"answers": answers})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if got := len(env.queue.last().Answers); got != 2 {
		t.Errorf("recorded %d answers, want one per question", got)
	}
}

func TestSubmitQuizRecordsUser(t *testing.T) {
	env := newTestEnv(t)
	quiz := env.seedQuiz(0)
	resp, token := env.register(t, "ada@example.com")

	w, _ := env.do(t, http.MethodPost, "/quiz/"+quiz.ID.String()+"/submit", token, gin.H{"answers": []int{0, 0}})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	last := env.queue.last()
	if last == nil || last.UserID == nil || *last.UserID != resp.User.ID {
		t.Errorf("attempt = %+v", last)
	}
}

func TestAppendQuestionsOwnerOnly(t *testing.T) {
	env := newTestEnv(t)
	_, owner := env.register(t, "owner@example.com")
	_, other := env.register(t, "other@example.com")

	_, envl := env.do(t, http.MethodPost, "/quiz/create", owner, createQuizBody())
	var created struct {
		Quiz model.Quiz `json:"quiz"`
	}
	_ = json.Unmarshal(envl.Data, &created)
	path := "/quiz/" + created.Quiz.ID.String() + "/questions"
	body := gin.H{"questions": []gin.H{{"questionText": "Italy?", "options": []string{"Rome", "Oslo", "Bern", "Paris"}, "correctAnswer": 0}}}

	w, envl := env.do(t, http.MethodPost, path, other, body)
	if w.Code != http.StatusForbidden || envl.Error.Code != response.ErrNotQuizOwner {
		t.Fatalf("status = %d, error = %+v", w.Code, envl.Error)
	}

	w, envl = env.do(t, http.MethodPost, path, owner, body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var updated struct {
		Quiz model.Quiz `json:"quiz"`
	}
	_ = json.Unmarshal(envl.Data, &updated)
	if len(updated.Quiz.Questions) != 3 || updated.Quiz.Questions[2].QueNum != 3 {
		t.Errorf("questions = %+v", updated.Quiz.Questions)
	}
}

func TestGenerateQuiz(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.register(t, "ada@example.com")

	env.generator.questions = make([]model.Question, 5)
	for i := range env.generator.questions {
		env.generator.questions[i] = model.Question{
			QueNum: i + 1, QuestionText: "What do plants need?",
			Options: []string{"Light", "Sand", "Salt", "Iron"}, CorrectAnswer: 0,
		}
	}

	body := gin.H{"topic": "Photosynthesis", "numberOfQuestions": 5, "difficulty": "Beginner"}
	w, envl := env.do(t, http.MethodPost, "/quiz/create/ai", token, body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var got model.GenerateQuizResponse
	_ = json.Unmarshal(envl.Data, &got)
	if !got.Success || len(got.Result.Questions) != 5 {
		t.Fatalf("response = %+v", got)
	}
	for _, q := range got.Result.Questions {
		if len(q.Options) != 4 || q.CorrectAnswer < 0 || q.CorrectAnswer > 3 {
			t.Errorf("question = %+v", q)
		}
	}
	if len(env.quizzes.quizzes) != 0 {
		t.Error("generated questions were persisted")
	}

	env.generator.err = errors.New("upstream down")
	w, envl = env.do(t, http.MethodPost, "/quiz/create/ai", token, body)
	if w.Code != http.StatusInternalServerError || envl.Error.Code != response.ErrGenerationFailed {
		t.Fatalf("status = %d, error = %+v", w.Code, envl.Error)
	}
	if strings.Contains(w.Body.String(), "upstream down") {
		t.Error("internal error text leaked")
	}
}

func TestLeaderboardLimit(t *testing.T) {
	env := newTestEnv(t)
	quiz := env.seedQuiz(0)

	w, _ := env.do(t, http.MethodGet, "/quiz/"+quiz.ID.String()+"/leaderboard?limit=500", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if env.attempts.lastLimit != service.MaxLeaderboardLimit {
		t.Errorf("limit = %d, want %d", env.attempts.lastLimit, service.MaxLeaderboardLimit)
	}

	w, _ = env.do(t, http.MethodGet, "/quiz/"+quiz.ID.String()+"/leaderboard?limit=abc", "", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log := zerolog.Nop()

	tests := []struct {
		name   string
		ping   error
		status int
	}{
		{"all up", nil, http.StatusOK},
		{"postgres down", errors.New("refused"), http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(log, nil, HealthCheck{Name: "postgres", Ping: func(context.Context) error { return tt.ping }})
			r := gin.New()
			r.GET("/health", h.Health)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
		})
	}
}
