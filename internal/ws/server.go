package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/lapislui/Nixkart/internal/config"
	"github.com/lapislui/Nixkart/internal/health"
)

// DashboardPath is where clients open the live feed.
const DashboardPath = "/ws/dashboard/"

type Server struct {
	config          *config.Config
	hub             *Hub
	builder         SnapshotBuilder
	probe           *health.Probe
	embeddedHandler http.Handler
	allowedOrigins  map[string]bool
	allowedHosts    map[string]bool
	authToken       string

	// baseCtx parents every session; cancelled by Run on shutdown.
	baseCtx context.Context
}

func NewServer(cfg *config.Config, hub *Hub, builder SnapshotBuilder, probe *health.Probe, embeddedHandler http.Handler) *Server {
	s := &Server{
		config:          cfg,
		hub:             hub,
		builder:         builder,
		probe:           probe,
		embeddedHandler: embeddedHandler,
		allowedOrigins:  make(map[string]bool),
		allowedHosts:    make(map[string]bool),
		authToken:       cfg.Server.AuthToken,
		baseCtx:         context.Background(),
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

func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc(DashboardPath, s.handleWS)
	mux.HandleFunc("/api/snapshot", s.handleSnapshot)
	mux.HandleFunc("/api/health", s.handleHealth)

	if s.embeddedHandler != nil {
		log.Println("Serving embedded dashboard frontend")
		mux.Handle("/", s.embeddedHandler)
	}
}

func (s *Server) sessionOptions() SessionOptions {
	return SessionOptions{
		Interval:      s.config.Dashboard.PublishInterval,
		PublishOnOpen: s.config.Dashboard.PublishOnOpen,
		CloseTimeout:  s.config.Dashboard.CloseTimeout,
		OnClose:       s.hub.Remove,
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: s.checkOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return
	}

	transport := newTransport(conn, s.config.Dashboard.WriteTimeout)
	sess := NewSession(uuid.NewString(), transport, s.builder, s.sessionOptions())

	if err := s.hub.Add(sess); err != nil {
		log.Printf("Rejecting dashboard client %s: %v", r.RemoteAddr, err)
		transport.reject(websocket.CloseTryAgainLater, err.Error())
		return
	}

	if err := sess.Open(s.baseCtx); err != nil {
		log.Printf("dashboard session %s: open failed: %v", sess.ID(), err)
		sess.Close("open failed")
		return
	}
	log.Printf("Dashboard client connected: %s (session %s)", r.RemoteAddr, sess.ID())

	go s.pingLoop(sess, transport)
	s.readLoop(sess, conn)
}

// readLoop feeds inbound frames to the session until the peer goes away.
func (s *Server) readLoop(sess *Session, conn *websocket.Conn) {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && !sess.Closed() {
				log.Printf("dashboard session %s: read error: %v", sess.ID(), err)
			}
			sess.Close("client disconnected")
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		sess.HandleMessage(data)
	}
}

func (s *Server) pingLoop(sess *Session, t *wsTransport) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-sess.Done():
			return
		case <-ticker.C:
			if sess.Closed() {
				return
			}
			if err := t.ping(); err != nil {
				go sess.Close("ping failed")
				return
			}
		}
	}
}

// handleSnapshot serves one snapshot synchronously, for the initial page
// load and for clients that poll instead of holding a socket.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap, err := s.builder.Build(r.Context())
	if err != nil {
		log.Printf("snapshot endpoint: partial snapshot: %v", err)
	}
	if snap == nil {
		http.Error(w, "snapshot unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snap)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.probe == nil {
		http.Error(w, "health not available", http.StatusServiceUnavailable)
		return
	}
	report := s.probe.Collect(r.Context(), s.hub.Count(), s.config.Aggregates.Backend)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(report)
}

func (s *Server) authorize(r *http.Request) bool {
	if s.authToken == "" {
		return true
	}

	if r.URL.Query().Get("token") == s.authToken {
		return true
	}

	if r.Header.Get("X-Nixkart-Token") == s.authToken {
		return true
	}

	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.authToken {
		return true
	}

	return false
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

	if strings.HasPrefix(host, "localhost:") || host == "localhost" {
		return true
	}
	if strings.HasPrefix(host, "127.0.0.1:") || host == "127.0.0.1" {
		return true
	}
	if strings.HasPrefix(host, "[::1]:") || host == "::1" {
		return true
	}

	return false
}

// securityHeaders sets conservative browser security headers on every
// response.
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

// Run serves mux on addr until ctx is cancelled, then closes every dashboard
// session and shuts the HTTP server down.
func (s *Server) Run(ctx context.Context, addr string, mux *http.ServeMux) error {
	baseCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.baseCtx = baseCtx

	srv := &http.Server{
		Addr:              addr,
		Handler:           securityHeaders(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server listening on %s", addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Println("Shutting down...")
	s.hub.CloseAll("server shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
