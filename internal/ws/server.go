// Package ws streams coordinator state over a WebSocket and accepts game
// actions on the same connection.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"voble/internal/game"
	"voble/internal/play"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

type Service interface {
	StartGame(ctx context.Context) (game.State, error)
	Retry(ctx context.Context) (game.State, error)
	SubmitGuess(ctx context.Context, guess string) (play.GuessResult, error)
	CompleteGame(ctx context.Context) (play.CompleteResult, error)
	Subscribe(ctx context.Context) (<-chan game.State, func(), error)
}

type Client struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (c *Client) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// enqueue drops the message when the client is not keeping up; the next
// snapshot supersedes it.
func (c *Client) enqueue(msg []byte) {
	select {
	case c.send <- msg:
	case <-c.done:
	default:
		metricDropped.Inc()
	}
}

type Server struct {
	svc      Service
	upgrader websocket.Upgrader
}

func NewServer(svc Service) *Server {
	return &Server{
		svc:      svc,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
}

func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	states, unsubscribe, err := s.svc.Subscribe(r.Context())
	if err != nil {
		http.Error(w, `{"error":"unavailable"}`, http.StatusServiceUnavailable)
		return
	}
	defer unsubscribe()
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &Client{conn: conn, send: make(chan []byte, 16), done: make(chan struct{})}
	defer c.close()
	metricConnections.Inc()
	defer metricConnections.Dec()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.writeLoop(c)
	go s.forward(c, states)
	s.readLoop(ctx, c)
}

// forward relays snapshots until the stream ends, then closes the
// connection so the client reconnects to the current coordinator.
func (s *Server) forward(c *Client, states <-chan game.State) {
	for {
		select {
		case <-c.done:
			return
		case st, ok := <-states:
			if !ok {
				c.close()
				return
			}
			msg, err := json.Marshal(StateMessage{Type: "state", ProtocolVersion: ProtocolVersion, State: st})
			if err != nil {
				continue
			}
			c.enqueue(msg)
		}
	}
}

func (s *Server) writeLoop(c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}

func (s *Server) readLoop(ctx context.Context, c *Client) {
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var base struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(msg, &base); err != nil {
			continue
		}
		if base.Type == "action" {
			s.handleAction(ctx, c, msg)
		}
	}
}

func (s *Server) handleAction(ctx context.Context, c *Client, raw []byte) {
	var action ActionMessage
	if err := json.Unmarshal(raw, &action); err != nil {
		s.sendResult(c, ActionResult{Error: "invalid_action"})
		return
	}
	res := ActionResult{RequestID: action.RequestID}
	if action.RequestID == "" || len(action.RequestID) > maxRequestIDLength {
		res.Error = "invalid_request_id"
		s.sendResult(c, res)
		return
	}

	var err error
	switch action.Action {
	case "start":
		res.Result, err = s.svc.StartGame(ctx)
	case "retry":
		res.Result, err = s.svc.Retry(ctx)
	case "guess":
		var out play.GuessResult
		out, err = s.svc.SubmitGuess(ctx, action.Guess)
		res.Result, res.Ok, res.Error = out, out.Success, out.Error
	case "complete":
		var out play.CompleteResult
		out, err = s.svc.CompleteGame(ctx)
		res.Result, res.Ok, res.Error = out, out.Success, out.Error
	default:
		res.Error = "invalid_action"
		s.sendResult(c, res)
		return
	}
	switch {
	case err != nil:
		log.Debug().Err(err).Str("action", action.Action).Msg("ws action failed")
		res.Ok, res.Error, res.Result = false, err.Error(), nil
	case action.Action == "start" || action.Action == "retry":
		res.Ok = true
	}
	s.sendResult(c, res)
}

func (s *Server) sendResult(c *Client, res ActionResult) {
	res.Type = "action_result"
	res.ProtocolVersion = ProtocolVersion
	msg, err := json.Marshal(res)
	if err != nil {
		return
	}
	c.enqueue(msg)
}
