// Package client talks to the quiz API on behalf of a terminal user.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/stemsi/quizly-backend/internal/model"
)

// DefaultBaseURL is used when no server URL is configured.
const DefaultBaseURL = "http://localhost:5000"

// ErrServiceUnavailable wraps transport failures.
var ErrServiceUnavailable = errors.New("quiz service unavailable")

// ErrNotLoggedIn is returned by calls that need a stored session.
var ErrNotLoggedIn = errors.New("not logged in")

// APIError is a non-2xx answer, carrying the server's error body.
type APIError struct {
	Status  int
	Code    string
	Message string
	Fields  map[string]string
}

func (e *APIError) Error() string {
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = fmt.Sprintf("request failed with status %d", e.Status)
	}
	if len(e.Fields) == 0 {
		return msg
	}
	parts := make([]string, 0, len(e.Fields))
	for field, detail := range e.Fields {
		parts = append(parts, field+": "+detail)
	}
	return msg + " (" + strings.Join(parts, "; ") + ")"
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	} `json:"error"`
}

// Client is a typed wrapper over the HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	store      SessionStore
}

// New creates a Client. A nil httpClient uses http.DefaultClient and a
// nil store keeps the session in memory.
func New(baseURL string, httpClient *http.Client, store SessionStore) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if store == nil {
		store = &MemoryStore{}
	}
	return &Client{baseURL: baseURL, httpClient: httpClient, store: store}
}

// Session returns the stored session, or nil when logged out.
func (c *Client) Session() (*Session, error) {
	return c.store.Load()
}

// Register creates an account and stores the returned session.
func (c *Client) Register(ctx context.Context, req model.RegisterRequest) (*model.AuthResponse, error) {
	var resp model.AuthResponse
	if err := c.doJSON(ctx, http.MethodPost, "/users/register", req, &resp); err != nil {
		return nil, err
	}
	if err := c.store.Save(newSession(resp)); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return &resp, nil
}

// Login authenticates and stores the returned session.
func (c *Client) Login(ctx context.Context, email, password string) (*model.AuthResponse, error) {
	var resp model.AuthResponse
	req := model.LoginRequest{Email: email, Password: password}
	if err := c.doJSON(ctx, http.MethodPost, "/users/login", req, &resp); err != nil {
		return nil, err
	}
	if err := c.store.Save(newSession(resp)); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return &resp, nil
}

// Logout tells the server and always forgets the local session.
func (c *Client) Logout(ctx context.Context) error {
	err := c.doJSON(ctx, http.MethodPost, "/users/logout", nil, nil)
	if clearErr := c.store.Clear(); clearErr != nil {
		return fmt.Errorf("clear session: %w", clearErr)
	}
	return err
}

// Profile returns the authenticated user.
func (c *Client) Profile(ctx context.Context) (*model.PublicUser, error) {
	var resp struct {
		User model.PublicUser `json:"user"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/users/profile", nil, &resp); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

// Attempts lists the authenticated user's attempts, newest first.
func (c *Client) Attempts(ctx context.Context) ([]model.AttemptSummary, error) {
	var resp struct {
		Attempts []model.AttemptSummary `json:"attempts"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/users/attempts", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Attempts, nil
}

// ListQuizzes returns every quiz without questions.
func (c *Client) ListQuizzes(ctx context.Context) ([]model.QuizSummary, error) {
	var resp struct {
		Quizzes []model.QuizSummary `json:"quizzes"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/quiz/all", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Quizzes, nil
}

// CreateQuiz persists a quiz owned by the logged in user.
func (c *Client) CreateQuiz(ctx context.Context, req model.CreateQuizRequest) (*model.Quiz, error) {
	var resp struct {
		Quiz model.Quiz `json:"quiz"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/quiz/create", req, &resp); err != nil {
		return nil, err
	}
	return &resp.Quiz, nil
}

// GenerateQuiz asks the server for AI generated questions. Nothing is saved.
func (c *Client) GenerateQuiz(ctx context.Context, req model.GenerateQuizRequest) ([]model.Question, error) {
	var resp model.GenerateQuizResponse
	if err := c.doJSON(ctx, http.MethodPost, "/quiz/create/ai", req, &resp); err != nil {
		return nil, err
	}
	return resp.Result.Questions, nil
}

// GetQuiz fetches a quiz by id.
func (c *Client) GetQuiz(ctx context.Context, id uuid.UUID) (*model.Quiz, error) {
	var resp struct {
		Quiz model.Quiz `json:"quiz"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/quiz/"+id.String(), nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Quiz, nil
}

// GetQuizByShareCode fetches a quiz by its share code.
func (c *Client) GetQuizByShareCode(ctx context.Context, code string) (*model.Quiz, error) {
	var resp struct {
		Quiz model.Quiz `json:"quiz"`
	}
	path := "/quiz/share/" + url.PathEscape(strings.TrimSpace(code))
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Quiz, nil
}

// ResolveQuiz accepts either a quiz id or a share code.
func (c *Client) ResolveQuiz(ctx context.Context, ref string) (*model.Quiz, error) {
	if id, err := uuid.Parse(strings.TrimSpace(ref)); err == nil {
		return c.GetQuiz(ctx, id)
	}
	return c.GetQuizByShareCode(ctx, ref)
}

// Submit sends answers for server-side scoring.
func (c *Client) Submit(ctx context.Context, id uuid.UUID, answers []*int) (model.ScoreResult, error) {
	var resp model.ScoreResult
	req := model.SubmitRequest{Answers: answers}
	if req.Answers == nil {
		req.Answers = []*int{}
	}
	if err := c.doJSON(ctx, http.MethodPost, "/quiz/"+id.String()+"/submit", req, &resp); err != nil {
		return model.ScoreResult{}, err
	}
	return resp, nil
}

// AppendQuestions adds questions to a quiz the user created.
func (c *Client) AppendQuestions(ctx context.Context, id uuid.UUID, questions []model.QuestionRequest) (*model.Quiz, error) {
	var resp struct {
		Quiz model.Quiz `json:"quiz"`
	}
	req := model.AppendQuestionsRequest{Questions: questions}
	if err := c.doJSON(ctx, http.MethodPost, "/quiz/"+id.String()+"/questions", req, &resp); err != nil {
		return nil, err
	}
	return &resp.Quiz, nil
}

// Leaderboard returns the best attempts on a quiz. limit <= 0 uses the
// server default.
func (c *Client) Leaderboard(ctx context.Context, id uuid.UUID, limit int) ([]model.LeaderboardEntry, error) {
	path := "/quiz/" + id.String() + "/leaderboard"
	if limit > 0 {
		path += "?" + url.Values{"limit": {strconv.Itoa(limit)}}.Encode()
	}
	var resp struct {
		Leaderboard []model.LeaderboardEntry `json:"leaderboard"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Leaderboard, nil
}

func (c *Client) token() string {
	s, err := c.store.Load()
	if err != nil || s == nil {
		return ""
	}
	return s.Token
}

func (c *Client) doJSON(ctx context.Context, method, path string, requestBody, responseBody any) error {
	var body io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return err
		}
		body = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	request.Header.Set("Accept", "application/json")
	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if tok := c.token(); tok != "" {
		request.Header.Set("Authorization", "Bearer "+tok)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	defer response.Body.Close()

	var env envelope
	decodeErr := json.NewDecoder(response.Body).Decode(&env)

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		apiErr := &APIError{Status: response.StatusCode}
		if decodeErr == nil && env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
			apiErr.Fields = env.Error.Fields
		}
		if apiErr.Message == "" {
			apiErr.Message = response.Status
		}
		return apiErr
	}

	if decodeErr != nil {
		return fmt.Errorf("decode response: %w", decodeErr)
	}
	if responseBody == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, responseBody); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}
