// Package gemini generates multiple-choice questions with the Gemini API,
// constrained by a JSON response schema.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/stemsi/quizly-backend/internal/model"
)

const (
	defaultBaseURL    = "https://generativelanguage.googleapis.com/"
	defaultAPIVersion = "v1beta"
	defaultModel      = "gemini-2.5-flash"

	promptTemplate = `Generate a multiple-choice quiz about "%s" with exactly %d questions. ` +
		`Each question must have 4 options. Ensure the correct answer index is accurate. ` +
		`The difficulty level is %s.`
)

var (
	ErrMissingAPIKey = errors.New("gemini api key not configured")
	ErrEmptyResponse = errors.New("gemini returned no candidate text")
	ErrInvalidOutput = errors.New("gemini output does not match the question schema")
)

// Client talks to the Gemini API. A Client built without an API key fails
// every call with ErrMissingAPIKey.
type Client struct {
	genai *genai.Client
	model string
}

// NewClient creates a Client. Empty model and baseURL fall back to the
// public defaults; a nil httpClient uses http.DefaultClient. baseURL may
// carry the API version as its last path segment.
func NewClient(ctx context.Context, httpClient *http.Client, apiKey, model, baseURL string) (*Client, error) {
	if model == "" {
		model = defaultModel
	}
	c := &Client{model: model}
	if apiKey == "" {
		return c, nil
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	base, version := splitBaseURL(baseURL)
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    base,
			APIVersion: version,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	c.genai = gc
	return c, nil
}

// splitBaseURL separates a trailing "v1" or "v1beta" style segment from
// the host part of a base URL.
func splitBaseURL(raw string) (base, version string) {
	raw = strings.TrimRight(raw, "/")
	if raw == "" {
		return defaultBaseURL, defaultAPIVersion
	}
	if i := strings.LastIndex(raw, "/"); i > 0 {
		last := raw[i+1:]
		if len(last) > 1 && last[0] == 'v' && last[1] >= '0' && last[1] <= '9' {
			return raw[:i] + "/", last
		}
	}
	return raw + "/", defaultAPIVersion
}

// Prompt renders the fixed instruction sent to the model.
func Prompt(topic string, count int, difficulty model.Difficulty) string {
	return fmt.Sprintf(promptTemplate, topic, count, difficulty)
}

// questionSchema is the one documented contract for generated output.
func questionSchema(count int) *genai.Schema {
	n := int64(count)
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"questions": {
				Type:     genai.TypeArray,
				MinItems: genai.Ptr(n),
				MaxItems: genai.Ptr(n),
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"queNum":       {Type: genai.TypeInteger},
						"questionText": {Type: genai.TypeString},
						"options": {
							Type:     genai.TypeArray,
							Items:    &genai.Schema{Type: genai.TypeString},
							MinItems: genai.Ptr[int64](4),
							MaxItems: genai.Ptr[int64](4),
						},
						"correctAnswer": {Type: genai.TypeInteger},
					},
					Required: []string{"questionText", "options", "correctAnswer"},
				},
			},
		},
		Required: []string{"questions"},
	}
}

// GenerateQuestions asks the model for count questions on topic and
// returns them only if the output passes DecodeQuestions.
func (c *Client) GenerateQuestions(ctx context.Context, topic string, count int, difficulty model.Difficulty) ([]model.Question, error) {
	if c.genai == nil {
		return nil, ErrMissingAPIKey
	}

	resp, err := c.genai.Models.GenerateContent(ctx, c.model,
		genai.Text(Prompt(topic, count, difficulty)),
		&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   questionSchema(count),
		},
	)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) && apiErr.Message != "" {
			return nil, fmt.Errorf("gemini returned status %d: %s", apiErr.Code, apiErr.Message)
		}
		return nil, fmt.Errorf("gemini request: %w", err)
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return nil, fmt.Errorf("gemini blocked prompt: %s", resp.PromptFeedback.BlockReason)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyResponse
	}
	return DecodeQuestions(text, count)
}

type generatedQuestion struct {
	QueNum        int      `json:"queNum"`
	QuestionText  string   `json:"questionText"`
	Options       []string `json:"options"`
	CorrectAnswer *int     `json:"correctAnswer"`
}

type generatedQuiz struct {
	Questions []generatedQuestion `json:"questions"`
}

// DecodeQuestions strictly decodes model output, raw or wrapped in a
// markdown code fence. Unknown fields, trailing data, a wrong question
// count, anything but four options or an index outside them are all
// rejected with ErrInvalidOutput.
func DecodeQuestions(text string, want int) ([]model.Question, error) {
	dec := json.NewDecoder(strings.NewReader(stripFence(text)))
	dec.DisallowUnknownFields()

	var out generatedQuiz
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data", ErrInvalidOutput)
	}

	if len(out.Questions) != want {
		return nil, fmt.Errorf("%w: got %d questions, want %d", ErrInvalidOutput, len(out.Questions), want)
	}

	questions := make([]model.Question, len(out.Questions))
	for i, g := range out.Questions {
		if g.CorrectAnswer == nil {
			return nil, fmt.Errorf("%w: question %d has no correctAnswer", ErrInvalidOutput, i+1)
		}
		q := model.Question{
			QueNum:        i + 1,
			QuestionText:  strings.TrimSpace(g.QuestionText),
			Options:       g.Options,
			CorrectAnswer: *g.CorrectAnswer,
		}
		if !q.Valid() {
			return nil, fmt.Errorf("%w: question %d is malformed", ErrInvalidOutput, i+1)
		}
		for _, opt := range q.Options {
			if strings.TrimSpace(opt) == "" {
				return nil, fmt.Errorf("%w: question %d has an empty option", ErrInvalidOutput, i+1)
			}
		}
		questions[i] = q
	}
	return questions, nil
}

// stripFence unwraps a ```json ... ``` block. Anything else is returned
// trimmed and unchanged.
func stripFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") || !strings.HasSuffix(text, "```") || len(text) < 6 {
		return text
	}
	body := strings.TrimSuffix(strings.TrimPrefix(text, "```"), "```")
	// Drop the info string on the opening line.
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		if info := strings.TrimSpace(body[:nl]); info == "" || !strings.ContainsAny(info, "{[") {
			body = body[nl+1:]
		}
	}
	return strings.TrimSpace(body)
}
