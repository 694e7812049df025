package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	ws "github.com/stemsi/quizly-backend/internal/websocket"
)

// LiveSession is a server-timed play over the websocket endpoint.
type LiveSession struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	Started ws.ServerMessage
}

// PlayLive dials the play socket and waits for the started event.
func (c *Client) PlayLive(ctx context.Context, id uuid.UUID) (*LiveSession, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/quiz/" + id.String() + "/play"
	if tok := c.token(); tok != "" {
		u.RawQuery = url.Values{"token": {tok}}.Encode()
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			apiErr := &APIError{Status: resp.StatusCode, Message: resp.Status}
			var env envelope
			if json.NewDecoder(resp.Body).Decode(&env) == nil && env.Error != nil {
				apiErr.Code = env.Error.Code
				apiErr.Message = env.Error.Message
			}
			return nil, apiErr
		}
		return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}

	s := &LiveSession{conn: conn}
	first, err := s.Next()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if first.Event != ws.EventStarted {
		conn.Close()
		if first.Event == ws.EventError {
			return nil, fmt.Errorf("play rejected: %s", first.Error)
		}
		return nil, fmt.Errorf("unexpected first event %q", first.Event)
	}
	s.Started = first
	return s, nil
}

// Answer sets or clears the answer for the question at index.
func (s *LiveSession) Answer(index int, choice *int) error {
	return s.write(ws.ClientMessage{Action: ws.ActionAnswer, Index: index, Choice: choice})
}

// Submit asks the server to grade now.
func (s *LiveSession) Submit() error {
	return s.write(ws.ClientMessage{Action: ws.ActionSubmit})
}

// Ping keeps an idle connection alive.
func (s *LiveSession) Ping() error {
	return s.write(ws.ClientMessage{Action: ws.ActionPing})
}

// Next blocks for the next server event.
func (s *LiveSession) Next() (ws.ServerMessage, error) {
	var msg ws.ServerMessage
	if err := s.conn.ReadJSON(&msg); err != nil {
		return ws.ServerMessage{}, err
	}
	return msg, nil
}

// Close sends a normal closure and drops the connection.
func (s *LiveSession) Close() error {
	s.writeMu.Lock()
	_ = s.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	s.writeMu.Unlock()
	return s.conn.Close()
}

func (s *LiveSession) write(msg ws.ClientMessage) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(msg)
}
