package handler

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/stemsi/quizly-backend/internal/middleware"
	"github.com/stemsi/quizly-backend/internal/model"
	"github.com/stemsi/quizly-backend/internal/service"
	ws "github.com/stemsi/quizly-backend/internal/websocket"
)

const (
	// readGrace is added to a timed session's read deadline so a late
	// submit still arrives after the ticker hits zero.
	readGrace = 5 * time.Second
	// idleTimeout bounds an untimed session between client messages.
	idleTimeout = 30 * time.Minute
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// PlayHandler runs timed quiz sessions over WebSocket.
type PlayHandler struct {
	quizService    *service.QuizService
	attemptService *service.AttemptService
	log            zerolog.Logger
	upgrader       websocket.Upgrader

	tick   time.Duration
	minute time.Duration
}

// NewPlayHandler creates a new PlayHandler.
func NewPlayHandler(quizService *service.QuizService, attemptService *service.AttemptService, log zerolog.Logger, allowedOrigins []string) *PlayHandler {
	return &PlayHandler{
		quizService:    quizService,
		attemptService: attemptService,
		log:            log.With().Str("component", "play_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
		tick:           time.Second,
		minute:         time.Minute,
	}
}

// PlayQuiz godoc
// WS /ws/quiz/:id/play?token=
// Streams a play session: started, answered, tick, then graded exactly once
// on the first of a client submit or the deadline.
func (h *PlayHandler) PlayQuiz(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	quiz, err := h.quizService.GetQuiz(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}

	var userID *uuid.UUID
	if user := middleware.GetUser(c); user != nil {
		userID = &user.ID
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().Str("quiz_id", quiz.ID.String()).Logger()
	if userID != nil {
		wsLog = wsLog.With().Str("user_id", userID.String()).Logger()
	}
	wsLog.Info().Msg("Player connected")

	h.run(c.Request.Context(), conn, wsLog, quiz, userID)
}

func (h *PlayHandler) run(ctx context.Context, conn *websocket.Conn, log zerolog.Logger, quiz *model.Quiz, userID *uuid.UUID) {
	answers := make([]*int, len(quiz.Questions))

	started := ws.StartedResponse{
		Event:            ws.EventStarted,
		Quiz:             quiz.ForPlay(),
		TimeLimitSeconds: quiz.TimeLimit * 60,
	}

	var (
		tickC     <-chan time.Time
		deadlineC <-chan time.Time
		deadline  time.Time
		readWait  = idleTimeout
	)
	if quiz.TimeLimit > 0 {
		limit := time.Duration(quiz.TimeLimit) * h.minute
		deadline = time.Now().Add(limit)
		started.Deadline = &deadline

		timer := time.NewTimer(limit)
		defer timer.Stop()
		deadlineC = timer.C

		ticker := time.NewTicker(h.tick)
		defer ticker.Stop()
		tickC = ticker.C

		readWait = limit + readGrace
	}

	if err := ws.WriteTyped(conn, started); err != nil {
		return
	}

	done := make(chan struct{})
	defer close(done)
	msgs := make(chan inbound)
	readErr := make(chan error, 1)

	go func() {
		for {
			var in inbound
			if err := ws.ReadJSON(conn, &in.msg, readWait); err != nil {
				if !errors.Is(err, ws.ErrMalformed) {
					readErr <- err
					return
				}
				in = inbound{malformed: true}
			}
			select {
			case msgs <- in:
			case <-done:
				return
			}
		}
	}()

	grade := func(auto bool) {
		result := h.attemptService.Grade(ctx, quiz, userID, answers)
		if err := ws.WriteTyped(conn, ws.GradedResponse{
			Event:         ws.EventGraded,
			Score:         result.Score,
			Total:         result.Total,
			AutoSubmitted: auto,
		}); err != nil {
			log.Warn().Err(err).Msg("Failed to deliver grade")
			return
		}
		ws.Close(conn, "graded")
		log.Info().Int("score", result.Score).Int("total", result.Total).Bool("auto", auto).Msg("Quiz graded")
	}

	for {
		var err error
		select {
		case <-ctx.Done():
			return

		case err := <-readErr:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("Unexpected close")
			} else {
				log.Debug().Msg("Connection closed before grading")
			}
			return

		case <-deadlineC:
			grade(true)
			return

		case <-tickC:
			err = ws.WriteTyped(conn, ws.TickResponse{Event: ws.EventTick, Remaining: remaining(deadline)})

		case in := <-msgs:
			msg := in.msg
			if in.malformed {
				err = ws.WriteError(conn, "malformed message")
				break
			}
			switch msg.Action {
			case ws.ActionAnswer:
				err = h.handleAnswer(conn, answers, msg)
			case ws.ActionSubmit:
				grade(false)
				return
			case ws.ActionPing:
				err = ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})
			default:
				err = ws.WriteError(conn, "unknown action")
			}
		}
		if err != nil {
			log.Debug().Err(err).Msg("Write failed, dropping session")
			return
		}
	}
}

// inbound is one client frame; malformed frames carry no message.
type inbound struct {
	msg       ws.ClientMessage
	malformed bool
}

func (h *PlayHandler) handleAnswer(conn *websocket.Conn, answers []*int, msg ws.ClientMessage) error {
	if msg.Index < 0 || msg.Index >= len(answers) {
		return ws.WriteError(conn, "question index out of range")
	}
	if msg.Choice != nil && (*msg.Choice < 0 || *msg.Choice >= model.OptionsPerQuestion) {
		return ws.WriteError(conn, "choice out of range")
	}
	answers[msg.Index] = msg.Choice
	return ws.WriteTyped(conn, ws.AnsweredResponse{
		Event:  ws.EventAnswered,
		Index:  msg.Index,
		Choice: msg.Choice,
	})
}

// remaining is the whole seconds left until deadline, never negative.
func remaining(deadline time.Time) int {
	left := math.Ceil(time.Until(deadline).Seconds())
	if left < 0 {
		return 0
	}
	return int(left)
}
