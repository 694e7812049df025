package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	ws "github.com/stemsi/quizly-backend/internal/websocket"
)

// echoPlayServer grades every answer it receives as worth one point.
func echoPlayServer(t *testing.T, quizID uuid.UUID, tokens chan<- string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/quiz/"+quizID.String()+"/play", func(w http.ResponseWriter, r *http.Request) {
		tokens <- r.URL.Query().Get("token")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_ = conn.WriteJSON(ws.StartedResponse{Event: ws.EventStarted, TimeLimitSeconds: 60})
		score := 0
		for {
			var msg ws.ClientMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			switch msg.Action {
			case ws.ActionAnswer:
				score++
				_ = conn.WriteJSON(ws.AnsweredResponse{Event: ws.EventAnswered, Index: msg.Index, Choice: msg.Choice})
			case ws.ActionPing:
				_ = conn.WriteJSON(ws.PongResponse{Event: ws.EventPong})
			case ws.ActionSubmit:
				_ = conn.WriteJSON(ws.GradedResponse{Event: ws.EventGraded, Score: score, Total: 2})
				return
			}
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestPlayLive(t *testing.T) {
	quizID := uuid.New()
	tokens := make(chan string, 1)
	srv := echoPlayServer(t, quizID, tokens)

	store := &MemoryStore{}
	_ = store.Save(&Session{Token: "tok-live"})
	c := New(srv.URL, srv.Client(), store)

	s, err := c.PlayLive(context.Background(), quizID)
	if err != nil {
		t.Fatalf("PlayLive: %v", err)
	}
	defer s.Close()

	if s.Started.TimeLimitSeconds != 60 {
		t.Errorf("started = %+v", s.Started)
	}
	if gotToken := <-tokens; gotToken != "tok-live" {
		t.Errorf("token = %q", gotToken)
	}

	if err := s.Answer(1, intp(2)); err != nil {
		t.Fatal(err)
	}
	msg, err := s.Next()
	if err != nil || msg.Event != ws.EventAnswered || msg.Index != 1 || *msg.Choice != 2 {
		t.Fatalf("answered = %+v, %v", msg, err)
	}

	if err := s.Ping(); err != nil {
		t.Fatal(err)
	}
	if msg, _ := s.Next(); msg.Event != ws.EventPong {
		t.Fatalf("event = %q, want pong", msg.Event)
	}

	if err := s.Submit(); err != nil {
		t.Fatal(err)
	}
	msg, err = s.Next()
	if err != nil || msg.Event != ws.EventGraded || msg.Score != 1 || msg.Total != 2 {
		t.Fatalf("graded = %+v, %v", msg, err)
	}
}

func TestPlayLiveHandshakeError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/quiz/", func(w http.ResponseWriter, r *http.Request) {
		writeErr(w, http.StatusNotFound, "NOT_FOUND", "quiz not found", nil)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	_, err := New(srv.URL, nil, nil).PlayLive(context.Background(), uuid.New())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Status != http.StatusNotFound || apiErr.Message != "quiz not found" {
		t.Errorf("apiErr = %+v", apiErr)
	}
}
