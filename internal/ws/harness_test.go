package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/votecast/backend/internal/auth"
	"github.com/votecast/backend/internal/config"
	"github.com/votecast/backend/internal/gateway"
	"github.com/votecast/backend/internal/metrics"
	"github.com/votecast/backend/internal/session"
	"github.com/votecast/backend/internal/tally"
)

const testSecret = "Faculty2025!"

type harness struct {
	srv         *httptest.Server
	cfg         *config.Config
	store       *tally.Store
	registry    *auth.Registry
	gateway     *gateway.Gateway
	sessions    *session.Manager
	broadcaster *Broadcaster
	metrics     *metrics.Metrics
}

func newHarness(t *testing.T, mutate func(*config.Config)) *harness {
	t.Helper()

	cfg := &config.Config{
		Admin: config.AdminConfig{Secret: testSecret},
		Broadcast: config.BroadcastConfig{
			SendBuffer:   256,
			WriteTimeout: 2 * time.Second,
		},
		Units: []config.UnitConfig{
			{ID: "U1", Name: "Unit 1", Eligible: 10, CandidateA: "Ann", CandidateB: "Bob"},
			{ID: "U2", Name: "Unit 2", Eligible: 20, CandidateA: "Cat", CandidateB: "Dan"},
		},
	}
	if mutate != nil {
		mutate(cfg)
	}

	store, err := tally.NewStore(cfg.TallyUnits())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	m := metrics.New(prometheus.NewRegistry())
	registry := auth.NewRegistry(cfg.Admin.Secret)
	b := NewBroadcaster(store, Options{
		SendBuffer:     cfg.Broadcast.SendBuffer,
		WriteTimeout:   cfg.Broadcast.WriteTimeout,
		MaxConnections: cfg.Server.MaxConnections,
	}, m)
	gw := gateway.New(store, registry, b, m)
	sessions := session.NewManager(registry, b, m)

	server := NewServer(cfg, gw, sessions, b, "", false, nil)
	mux := http.NewServeMux()
	server.SetupRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		b.Stop()
		srv.Close()
	})

	return &harness{
		srv:         srv,
		cfg:         cfg,
		store:       store,
		registry:    registry,
		gateway:     gw,
		sessions:    sessions,
		broadcaster: b,
		metrics:     m,
	}
}

// dial connects a client and consumes the snapshot every new connection
// receives.
func (h *harness) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	conn := h.dialRaw(t)
	msg := readMsg(t, conn)
	if msg.Type != MsgVoteUpdate {
		t.Fatalf("first message = %q, want %q", msg.Type, MsgVoteUpdate)
	}
	return conn
}

func (h *harness) dialRaw(t *testing.T) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// admin dials a client and completes the admin exchange.
func (h *harness) admin(t *testing.T) *websocket.Conn {
	t.Helper()
	conn := h.dial(t)
	sendMsg(t, conn, MsgRequestAdmin, testSecret)
	if msg := readMsg(t, conn); msg.Type != MsgAdminGranted {
		t.Fatalf("admin exchange answered %q, want %q", msg.Type, MsgAdminGranted)
	}
	return conn
}

type wireMsg struct {
	Type    MessageType     `json:"type"`
	Seq     uint64          `json:"seq"`
	Payload json.RawMessage `json:"payload"`
}

func (m wireMsg) units(t *testing.T) VoteUpdatePayload {
	t.Helper()
	var p VoteUpdatePayload
	if err := json.Unmarshal(m.Payload, &p); err != nil {
		t.Fatalf("decode voteUpdate payload: %v", err)
	}
	return p
}

func readMsg(t *testing.T, conn *websocket.Conn) wireMsg {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg wireMsg
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func sendMsg(t *testing.T, conn *websocket.Conn, typ MessageType, payload interface{}) {
	t.Helper()
	msg := map[string]interface{}{"type": typ}
	if payload != nil {
		msg["payload"] = payload
	}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

func sendRaw(t *testing.T, conn *websocket.Conn, raw string) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(raw)); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func timeoutSoon() time.Time {
	return time.Now().Add(2 * time.Second)
}
