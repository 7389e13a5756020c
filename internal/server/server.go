// Package server accepts device WebSocket connections and hands each one to
// a session.
//
// Two listeners run side by side: the device listener serves the WebSocket
// endpoint, the metrics listener serves /healthz, /readyz and the Prometheus
// /metrics scrape endpoint. Both shut down gracefully when the run context is
// cancelled.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/voxhive/voxhive/internal/config"
	"github.com/voxhive/voxhive/internal/health"
	"github.com/voxhive/voxhive/internal/observe"
	"github.com/voxhive/voxhive/internal/session"
)

// wsPath is the device WebSocket endpoint.
const wsPath = "/voxhive/v1/"

// shutdownTimeout bounds graceful listener shutdown.
const shutdownTimeout = 5 * time.Second

// Config carries everything the server needs to run.
type Config struct {
	// ListenAddr is the device WebSocket listen address.
	ListenAddr string

	// MetricsAddr is the health/metrics listen address. Empty disables the
	// metrics listener.
	MetricsAddr string

	// Auth is the handshake policy config. Nil disables auth.
	Auth *config.AuthConfig

	// Providers is the provider set shared by all sessions.
	Providers session.Providers

	// SessionConfig returns the current per-session config. Called once per
	// accepted connection, so config hot-reload reaches new sessions.
	SessionConfig func() session.Config

	// Checkers back the /readyz endpoint.
	Checkers []health.Checker
}

// Server accepts device connections and owns the listener lifecycles.
type Server struct {
	cfg     Config
	auth    *AuthPolicy
	metrics *observe.Metrics
	log     *slog.Logger

	mu       sync.Mutex
	sessions map[string]*session.Session
}

// New creates a Server. SessionConfig defaults to the zero session config.
func New(cfg Config) *Server {
	if cfg.SessionConfig == nil {
		cfg.SessionConfig = func() session.Config { return session.Config{} }
	}
	return &Server{
		cfg:      cfg,
		auth:     NewAuthPolicy(cfg.Auth),
		metrics:  observe.DefaultMetrics(),
		log:      slog.With("component", "server"),
		sessions: make(map[string]*session.Session),
	}
}

// SessionCount returns the number of connected sessions.
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Run serves until ctx is cancelled, then shuts both listeners down
// gracefully and closes the remaining sessions.
func (s *Server) Run(ctx context.Context) error {
	wsMux := http.NewServeMux()
	wsMux.HandleFunc("GET "+wsPath, s.handleWS)
	wsSrv := &http.Server{
		Addr:        s.cfg.ListenAddr,
		Handler:     wsMux,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	var metricsSrv *http.Server
	if s.cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		health.New(s.cfg.Checkers...).Register(mux)
		mux.Handle("GET /metrics", promhttp.Handler())
		metricsSrv = &http.Server{
			Addr:    s.cfg.MetricsAddr,
			Handler: observe.Middleware(s.metrics)(mux),
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info("listening for devices", "addr", s.cfg.ListenAddr, "path", wsPath)
		if err := wsSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if metricsSrv != nil {
		g.Go(func() error {
			s.log.Info("metrics listener up", "addr", s.cfg.MetricsAddr)
			if err := metricsSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()

		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := wsSrv.Shutdown(shutCtx); err != nil {
			s.log.Warn("device listener shutdown", "error", err)
		}
		if metricsSrv != nil {
			if err := metricsSrv.Shutdown(shutCtx); err != nil {
				s.log.Warn("metrics listener shutdown", "error", err)
			}
		}
		s.closeSessions(shutCtx)
		return nil
	})
	return g.Wait()
}

// closeSessions tears down every connected session.
func (s *Server) closeSessions(ctx context.Context) {
	s.mu.Lock()
	open := make([]*session.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		open = append(open, sess)
	}
	s.mu.Unlock()

	for _, sess := range open {
		sess.Close(ctx)
	}
}

// wsConn adapts a websocket connection to the session transport interface.
type wsConn struct {
	c *websocket.Conn
}

func (w *wsConn) WriteText(ctx context.Context, data []byte) error {
	return w.c.Write(ctx, websocket.MessageText, data)
}

func (w *wsConn) WriteBinary(ctx context.Context, data []byte) error {
	return w.c.Write(ctx, websocket.MessageBinary, data)
}

func (w *wsConn) Close() error {
	return w.c.Close(websocket.StatusNormalClosure, "session closed")
}

// handleWS authenticates the handshake, upgrades, and runs the read loop
// until the device disconnects.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	deviceID := r.Header.Get("Device-Id")
	name, ok := s.auth.Authorize(deviceID, bearerToken(r))
	if !ok {
		s.log.Warn("handshake rejected", "device_id", deviceID, "remote", r.RemoteAddr)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.Warn("websocket accept failed", "error", err)
		return
	}

	sess, err := session.New(&wsConn{c: c}, deviceID, s.cfg.SessionConfig(), s.cfg.Providers)
	if err != nil {
		s.log.Error("session init failed", "device_id", deviceID, "error", err)
		c.Close(websocket.StatusInternalError, "session init failed")
		return
	}
	s.log.Info("device connected",
		"session_id", sess.ID(), "device_id", deviceID, "auth_name", name)

	s.track(sess)
	defer s.untrack(sess)

	ctx := r.Context()
	sess.Start(ctx)
	defer sess.Close(ctx)

	if err := sess.Greet(); err != nil {
		s.log.Warn("sending welcome failed", "session_id", sess.ID(), "error", err)
		return
	}

	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && ctx.Err() == nil {
				s.log.Debug("read loop ended", "session_id", sess.ID(), "error", err)
			}
			return
		}
		switch typ {
		case websocket.MessageText:
			sess.HandleText(ctx, data)
		case websocket.MessageBinary:
			sess.HandleAudio(ctx, data)
		}
	}
}

func (s *Server) track(sess *session.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID()] = sess
}

func (s *Server) untrack(sess *session.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sess.ID())
}
