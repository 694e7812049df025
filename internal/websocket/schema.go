package websocket

import (
	"time"

	"github.com/stemsi/quizly-backend/internal/model"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer Action = "answer"
	ActionSubmit Action = "submit"
	ActionPing   Action = "ping"
)

// ClientMessage is every message a player may send. Index and Choice are
// only read for ActionAnswer; a nil Choice clears the answer.
type ClientMessage struct {
	Action Action `json:"action"`
	Index  int    `json:"index"`
	Choice *int   `json:"choice"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventStarted  Event = "started"
	EventAnswered Event = "answered"
	EventTick     Event = "tick"
	EventGraded   Event = "graded"
	EventPong     Event = "pong"
	EventError    Event = "error"
)

// StartedResponse opens a play session. Deadline is nil without a time limit.
type StartedResponse struct {
	Event            Event          `json:"event"`
	Quiz             model.PlayQuiz `json:"quiz"`
	TimeLimitSeconds int            `json:"timeLimitSeconds"`
	Deadline         *time.Time     `json:"deadline,omitempty"`
}

type AnsweredResponse struct {
	Event  Event `json:"event"`
	Index  int   `json:"index"`
	Choice *int  `json:"choice"`
}

type TickResponse struct {
	Event     Event `json:"event"`
	Remaining int   `json:"remaining"`
}

// GradedResponse is sent exactly once, right before the server closes.
type GradedResponse struct {
	Event         Event `json:"event"`
	Score         int   `json:"score"`
	Total         int   `json:"total"`
	AutoSubmitted bool  `json:"autoSubmitted"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}

// ServerMessage is the union of server events, used by clients to decode.
type ServerMessage struct {
	Event            Event           `json:"event"`
	Quiz             *model.PlayQuiz `json:"quiz,omitempty"`
	TimeLimitSeconds int             `json:"timeLimitSeconds,omitempty"`
	Deadline         *time.Time      `json:"deadline,omitempty"`
	Index            int             `json:"index,omitempty"`
	Choice           *int            `json:"choice,omitempty"`
	Remaining        int             `json:"remaining,omitempty"`
	Score            int             `json:"score"`
	Total            int             `json:"total"`
	AutoSubmitted    bool            `json:"autoSubmitted,omitempty"`
	Error            string          `json:"error,omitempty"`
}
