// ABOUTME: Gateway supervisor that serves the WebSocket chat endpoint and health checks
// ABOUTME: Creates one isolated session per connection and manages the server lifecycle

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/2389/talkai-gateway/internal/agent"
	"github.com/2389/talkai-gateway/internal/approval"
	"github.com/2389/talkai-gateway/internal/channel"
	"github.com/2389/talkai-gateway/internal/config"
	"github.com/2389/talkai-gateway/internal/model"
	"github.com/2389/talkai-gateway/internal/packs"
	"github.com/2389/talkai-gateway/internal/store"
)

// HealthMessage is the body of GET /health.
const HealthMessage = "Working!"

// Gateway serves chat sessions over WebSocket.
type Gateway struct {
	config     *config.Config
	model      model.Invoker
	tools      *Toolset
	router     *packs.Router
	ledger     *store.SQLiteStore // nil when the approval ledger is disabled
	sessions   *agent.Manager
	httpServer *http.Server
	logger     *slog.Logger

	// live tracks session handlers so Shutdown can wait for them
	mu      sync.Mutex
	closing bool
	live    sync.WaitGroup

	shutdownOnce sync.Once
	shutdownErr  error
}

// initStore opens the approval ledger when a database path is configured.
func initStore(cfg *config.Config) (*store.SQLiteStore, error) {
	if cfg.Database.Path == "" {
		return nil, nil
	}
	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("creating store: %w", err)
	}
	return s, nil
}

// New creates a Gateway. invoker is the language model every session talks to.
func New(cfg *config.Config, invoker model.Invoker, logger *slog.Logger) (*Gateway, error) {
	if invoker == nil {
		return nil, errors.New("model invoker is required")
	}

	tools, err := NewToolset(cfg, logger)
	if err != nil {
		return nil, err
	}

	ledger, err := initStore(cfg)
	if err != nil {
		return nil, err
	}

	gw := &Gateway{
		config: cfg,
		model:  invoker,
		tools:  tools,
		router: packs.NewRouter(packs.RouterConfig{
			Registry: tools.Registry,
			Logger:   logger.With("component", "tool-router"),
		}),
		ledger:   ledger,
		sessions: agent.NewManager(logger.With("component", "session-manager")),
		logger:   logger.With("component", "gateway"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", gw.handleHealth)
	mux.HandleFunc("GET /health/ready", gw.handleReady)
	mux.HandleFunc(cfg.Server.WSPath, gw.handleTalk)

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	gw.logger.Info("gateway configured",
		"ws_path", cfg.Server.WSPath,
		"tools", tools.Registry.Names(),
		"approval_ledger", ledger != nil,
	)
	return gw, nil
}

// Handler returns the HTTP handler serving health checks and the chat endpoint.
func (g *Gateway) Handler() http.Handler {
	return g.httpServer.Handler
}

// Sessions returns the live session manager.
func (g *Gateway) Sessions() *agent.Manager {
	return g.sessions
}

// Run listens on server.http_addr and blocks until the context is canceled.
// Returns nil on graceful shutdown, or an error if the server fails.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}
	return g.Serve(ctx, ln)
}

// Serve runs the gateway on ln until ctx is canceled or the server fails.
// The documents watcher runs alongside the HTTP server.
func (g *Gateway) Serve(ctx context.Context, ln net.Listener) error {
	grp, gctx := errgroup.WithContext(ctx)

	grp.Go(func() error {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String(), "ws_path", g.config.Server.WSPath)
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server: %w", err)
		}
		return nil
	})

	grp.Go(func() error {
		return g.tools.Documents.Watch(gctx)
	})

	grp.Go(func() error {
		<-gctx.Done()
		g.logger.Info("context canceled, initiating shutdown")
		return g.gracefulShutdown()
	})

	return grp.Wait()
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown stops accepting connections, closes every live session, and
// releases the approval ledger. Safe to call more than once.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.shutdownOnce.Do(func() {
		g.logger.Info("shutting down gateway", "active_sessions", g.sessions.Count())

		var errs []error
		errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))

		g.mu.Lock()
		g.closing = true
		g.mu.Unlock()

		g.sessions.CloseAll()
		errs = appendCloseError(errs, "session drain", g.waitSessions(ctx))

		if g.ledger != nil {
			errs = appendCloseError(errs, "store close", g.ledger.Close())
		}

		if len(errs) > 0 {
			g.shutdownErr = fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
		}
	})
	return g.shutdownErr
}

func (g *Gateway) waitSessions(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		g.live.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// handleTalk upgrades the request and runs one session until the client leaves.
func (g *Gateway) handleTalk(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	if g.closing {
		g.mu.Unlock()
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	g.live.Add(1)
	g.mu.Unlock()
	defer g.live.Done()

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: g.config.Server.AllowedOrigins,
	})
	if err != nil {
		g.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	id := uuid.New().String()
	logger := g.logger.With("session_id", id)
	ctx := r.Context()

	conn := channel.New(ctx, ws, channel.Config{
		SendBuffer:   g.config.Sessions.SendBuffer,
		WriteTimeout: g.config.Sessions.WriteTimeout,
	}, logger)

	sess := agent.NewSession(agent.SessionConfig{
		ID:              id,
		Transport:       conn,
		Model:           g.model,
		Router:          g.router,
		Recorder:        g.recorder(),
		ApprovalTimeout: g.config.Approvals.Timeout,
		InboundQueue:    g.config.Sessions.InboundQueue,
		MaxReplayTurns:  g.config.Sessions.MaxReplayTurns,
		GreetingPrompt:  greetingPrompt(g.config.Sessions.GreetingPrompt, r.Header.Get("Accept-Language")),
		Logger:          g.logger,
	})

	if err := g.sessions.Register(sess); err != nil {
		logger.Error("session registration failed", "error", err)
		_ = conn.Close()
		return
	}
	defer g.sessions.Unregister(id)

	sess.Run(ctx)
}

// recorder returns the ledger, or nil when it is disabled.
func (g *Gateway) recorder() approval.Recorder {
	if g.ledger == nil {
		return nil
	}
	return g.ledger
}

// handleHealth reports that the process is serving.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(HealthMessage))
}

// readyResponse is the body of GET /health/ready.
type readyResponse struct {
	Status         string              `json:"status"`
	ActiveSessions int                 `json:"active_sessions"`
	Tools          []string            `json:"tools"`
	Sessions       []agent.SessionInfo `json:"sessions"`
}

// handleReady reports live sessions and registered tools.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	closing := g.closing
	g.mu.Unlock()

	resp := readyResponse{
		Status:         "ready",
		ActiveSessions: g.sessions.Count(),
		Tools:          g.tools.Registry.Names(),
		Sessions:       g.sessions.List(),
	}
	status := http.StatusOK
	if closing {
		resp.Status = "shutting_down"
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
