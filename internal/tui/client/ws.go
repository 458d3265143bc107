package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
)

const (
	reconnectBaseDelay = 1 * time.Second
	reconnectMaxDelay  = 30 * time.Second
	writeTimeout       = 10 * time.Second
	pongTimeout        = 60 * time.Second
	pingInterval       = 30 * time.Second
)

// WSClient manages the WebSocket connection to the tally server.
type WSClient struct {
	url    string
	secret string

	mu      sync.Mutex
	writeMu sync.Mutex // serialises all conn writes
	conn    *websocket.Conn
	seq     uint64
	pingCtx context.CancelFunc // cancels the active ping goroutine
}

// NewWSClient creates a client for url. A non-empty secret is presented with
// requestAdmin after every connect, since rights do not survive reconnects.
func NewWSClient(url, secret string) *WSClient {
	return &WSClient{url: url, secret: secret}
}

// --- Bubble Tea messages ---

// WSConnectedMsg is sent when the WebSocket connects.
type WSConnectedMsg struct{}

// WSDisconnectedMsg is sent when the connection drops.
type WSDisconnectedMsg struct{ Err error }

// WSVoteUpdateMsg delivers a full snapshot.
type WSVoteUpdateMsg struct {
	Seq   uint64
	Units map[string]Unit
}

type WSAdminGrantedMsg struct{}

type WSAdminDeniedMsg struct{ Reason string }

type WSVoteRejectedMsg struct{ Payload VoteRejectedPayload }

// WSErrorMsg wraps a server-side error reply.
type WSErrorMsg struct{ Reason string }

// Listen returns a Bubble Tea command that connects and dispatches messages.
// It reconnects with exponential backoff.
func (c *WSClient) Listen(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		delay := reconnectBaseDelay
		for {
			select {
			case <-ctx.Done():
				return nil
			default:
			}

			conn, _, err := websocket.DefaultDialer.Dial(c.url, nil)
			if err != nil {
				slog.Debug("ws dial failed", "error", err, "retry", delay)
				time.Sleep(delay)
				delay = min(delay*2, reconnectMaxDelay)
				continue
			}

			// No write mutex needed here because the connection isn't
			// shared yet.
			if c.secret != "" {
				if err := conn.WriteJSON(outbound{Type: MsgRequestAdmin, Payload: c.secret}); err != nil {
					conn.Close()
					continue
				}
			}

			c.mu.Lock()
			if c.pingCtx != nil {
				c.pingCtx()
			}
			pingCtx, pingCancel := context.WithCancel(ctx)
			c.conn = conn
			c.seq = 0
			c.pingCtx = pingCancel
			c.mu.Unlock()

			go c.pingLoop(pingCtx, conn)

			return WSConnectedMsg{}
		}
	}
}

// ReadLoop returns a Bubble Tea command that reads until the next message
// worth delivering. It should be re-issued after each delivered message.
func (c *WSClient) ReadLoop(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			return WSDisconnectedMsg{Err: fmt.Errorf("no connection")}
		}

		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(pongTimeout))
			return nil
		})
		conn.SetReadDeadline(time.Now().Add(pongTimeout))

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				c.mu.Lock()
				if c.conn == conn {
					c.conn = nil
				}
				c.mu.Unlock()
				conn.Close()
				return WSDisconnectedMsg{Err: err}
			}

			var msg WSMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				continue
			}

			if teaMsg := c.dispatch(msg); teaMsg != nil {
				return teaMsg
			}
		}
	}
}

func (c *WSClient) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			cc := c.conn
			c.mu.Unlock()
			if cc != conn {
				return
			}
			c.writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

type outbound struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

type submitVote struct {
	UnitID string `json:"unitId"`
	Option string `json:"option"`
}

func (c *WSClient) write(msg outbound) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("not connected")
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(msg)
}

// RequestVoteData asks the server to resend the current snapshot.
func (c *WSClient) RequestVoteData() error {
	return c.write(outbound{Type: MsgRequestVoteData})
}

// SubmitVote casts one vote. It only has an effect once admin is granted.
func (c *WSClient) SubmitVote(unitID, option string) error {
	return c.write(outbound{Type: MsgSubmitVote, Payload: submitVote{UnitID: unitID, Option: option}})
}

// Seq returns the last snapshot version seen.
func (c *WSClient) Seq() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

func (c *WSClient) dispatch(msg WSMessage) tea.Msg {
	switch msg.Type {
	case MsgVoteUpdate:
		var units map[string]Unit
		if json.Unmarshal(msg.Payload, &units) != nil {
			return nil
		}
		c.mu.Lock()
		stale := msg.Seq < c.seq
		if !stale {
			c.seq = msg.Seq
		}
		c.mu.Unlock()
		if stale {
			return nil
		}
		return WSVoteUpdateMsg{Seq: msg.Seq, Units: units}
	case MsgAdminGranted:
		return WSAdminGrantedMsg{}
	case MsgAdminDenied:
		var reason string
		if json.Unmarshal(msg.Payload, &reason) == nil {
			return WSAdminDeniedMsg{Reason: reason}
		}
		return WSAdminDeniedMsg{}
	case MsgVoteRejected:
		var p VoteRejectedPayload
		if json.Unmarshal(msg.Payload, &p) == nil {
			return WSVoteRejectedMsg{Payload: p}
		}
	case MsgError:
		var p ErrorPayload
		if json.Unmarshal(msg.Payload, &p) == nil {
			return WSErrorMsg{Reason: p.Reason}
		}
		return WSErrorMsg{Reason: "unreadable error reply"}
	}
	return nil
}
