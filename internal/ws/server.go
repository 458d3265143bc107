package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/votecast/backend/internal/config"
	"github.com/votecast/backend/internal/connid"
	"github.com/votecast/backend/internal/gateway"
	"github.com/votecast/backend/internal/session"
)

const maxMessageSize = 4096

type Server struct {
	config          *config.Config
	gateway         *gateway.Gateway
	sessions        *session.Manager
	broadcaster     *Broadcaster
	frontendDir     string
	dev             bool
	embeddedHandler http.Handler
	metricsHandler  http.Handler
	allowedOrigins  map[string]bool
	allowedHosts    map[string]bool
	started         time.Time
}

func NewServer(cfg *config.Config, gw *gateway.Gateway, sessions *session.Manager, broadcaster *Broadcaster, frontendDir string, dev bool, embeddedHandler http.Handler) *Server {
	s := &Server{
		config:          cfg,
		gateway:         gw,
		sessions:        sessions,
		broadcaster:     broadcaster,
		frontendDir:     frontendDir,
		dev:             dev,
		embeddedHandler: embeddedHandler,
		allowedOrigins:  make(map[string]bool),
		allowedHosts:    make(map[string]bool),
		started:         time.Now(),
	}

	for _, origin := range cfg.Server.AllowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		s.allowedOrigins[trimmed] = true
		if parsed, err := url.Parse(trimmed); err == nil && parsed.Host != "" {
			s.allowedHosts[parsed.Host] = true
		}
	}

	return s
}

// SetMetricsHandler mounts h at /metrics. Must be called before SetupRoutes.
func (s *Server) SetMetricsHandler(h http.Handler) {
	s.metricsHandler = h
}

func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/api/tally", s.handleTally)
	mux.HandleFunc("/api/health", s.handleHealth)
	if s.metricsHandler != nil {
		mux.Handle("/metrics", s.metricsHandler)
	}

	if s.dev {
		slog.Info("serving frontend from filesystem", "dir", s.frontendDir)
		mux.Handle("/", http.FileServer(http.Dir(s.frontendDir)))
	} else if s.embeddedHandler != nil {
		slog.Info("serving embedded frontend")
		mux.Handle("/", s.embeddedHandler)
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: s.checkOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade error", "error", err)
		return
	}

	id := connid.New()
	if _, err := s.broadcaster.AddClient(id, conn); err != nil {
		slog.Warn("rejecting ws client", "remote", r.RemoteAddr, "error", err)
		msg := websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error())
		conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		conn.Close()
		return
	}
	s.sessions.OnConnect(id, r.RemoteAddr)

	go s.readLoop(id, conn)
}

func (s *Server) readLoop(id connid.ID, conn *websocket.Conn) {
	defer func() {
		s.broadcaster.Remove(id)
		s.sessions.OnDisconnect(id)
	}()

	conn.SetReadLimit(maxMessageSize)
	if pong := s.config.Broadcast.PongTimeout; pong > 0 {
		conn.SetReadDeadline(time.Now().Add(pong))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pong))
		})
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		s.handleMessage(id, data)
	}
}

// TallyResponse is the body of GET /api/tally.
type TallyResponse struct {
	Version uint64            `json:"version"`
	Units   VoteUpdatePayload `json:"units"`
}

func (s *Server) handleTally(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap := s.gateway.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(TallyResponse{
		Version: snap.Version,
		Units:   VoteUpdatePayload(snap.ByID()),
	})
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	if len(s.allowedOrigins) > 0 {
		if s.allowedOrigins[origin] {
			return true
		}
		if parsed, err := url.Parse(origin); err == nil && parsed.Host != "" {
			return s.allowedHosts[parsed.Host]
		}
		return false
	}

	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}

	host := parsed.Host
	if host == "" {
		return false
	}

	if host == r.Host {
		return true
	}

	hostname := parsed.Hostname()
	return hostname == "localhost" || hostname == "127.0.0.1" || hostname == "::1"
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-XSS-Protection", "1; mode=block")
		h.Set("Content-Security-Policy", "default-src 'self'")
		next.ServeHTTP(w, r)
	})
}

// ListenAndServe serves mux until ctx is cancelled, then shuts down.
func ListenAndServe(ctx context.Context, host string, port int, mux *http.ServeMux) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           securityHeaders(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
