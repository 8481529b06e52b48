package monitor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/bttest/internal/logging"
	"github.com/muurk/bttest/internal/version"
)

// DefaultListen is the default monitor listen address
const DefaultListen = "127.0.0.1:7468"

// Config holds the monitor configuration
type Config struct {
	// Listen is the TCP address of the HTTP server. Port 0 picks a free port.
	Listen string
	// Advertise registers the monitor over mDNS
	Advertise bool
	// Instance is the mDNS instance name. Defaults to bttest-<hostname>.
	Instance string
	// Interval is the minimum spacing between broadcasts
	Interval time.Duration
}

// Server serves snapshots over HTTP and websocket
type Server struct {
	cfg      Config
	hub      *Hub
	upgrader websocket.Upgrader

	mu      sync.Mutex
	srv     *http.Server
	ln      net.Listener
	mdns    *zeroconf.Server
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// New creates a monitor server. It does not listen until Start.
func New(cfg Config) *Server {
	if cfg.Listen == "" {
		cfg.Listen = DefaultListen
	}
	if cfg.Instance == "" {
		host, _ := os.Hostname()
		if host == "" {
			host = "localhost"
		}
		cfg.Instance = "bttest-" + host
	}
	return &Server{
		cfg: cfg,
		hub: NewHub(cfg.Interval),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// read-only stream, any origin may watch
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Hub returns the broadcast hub
func (s *Server) Hub() *Hub { return s.hub }

// Publish records the latest snapshot. Safe for concurrent use.
func (s *Server) Publish(snap Snapshot) bool {
	changed, err := s.hub.Publish(snap)
	if err != nil {
		logging.Error("Failed to publish snapshot", zap.Error(err))
	}
	return changed
}

// Handler returns the HTTP routes:
//
//	GET /ws        websocket stream of frames
//	GET /snapshot  latest frame as JSON
//	GET /healthz   liveness
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/snapshot", s.handleSnapshot)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// Start listens, begins broadcasting, and advertises the monitor when
// configured to. It returns once the listener is open.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("monitor already running")
	}

	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Listen, err)
	}
	ctx, cancel := context.WithCancel(ctx)
	s.ln = ln
	s.cancel = cancel
	s.srv = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: writeWait}
	s.running = true

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.hub.Run(ctx)
	}()
	go func() {
		defer s.wg.Done()
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Monitor server stopped", zap.Error(err))
		}
	}()

	logging.Info("Monitor listening", zap.String("addr", ln.Addr().String()))

	if s.cfg.Advertise {
		port := ln.Addr().(*net.TCPAddr).Port
		txt := []string{
			"app=" + AppName,
			"version=" + version.Version,
			"path=/ws",
		}
		server, err := Advertise(s.cfg.Instance, port, txt)
		if err != nil {
			logging.Warn("Monitor advertisement failed", zap.Error(err))
		} else {
			s.mdns = server
		}
	}
	return nil
}

// Addr returns the listen address, or "" before Start
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Shutdown stops advertising, closes every client, and stops the HTTP
// server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	if s.mdns != nil {
		s.mdns.Shutdown()
		s.mdns = nil
	}
	s.cancel()
	srv := s.srv
	s.mu.Unlock()

	err := srv.Shutdown(ctx)
	s.wg.Wait()
	logging.Info("Monitor stopped")
	return err
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("Monitor upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}
	c := newClient(s.hub, conn)
	s.hub.register(c)
	go c.writePump()
	go c.readPump()
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	latest := s.hub.Latest()
	if latest == nil {
		http.Error(w, "no snapshot yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Snapshot-Seq", strconv.FormatUint(s.hub.Seq(), 10))
	_, _ = w.Write(latest)
}
