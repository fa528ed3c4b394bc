// ABOUTME: Per-session approval gate that parks tool actions until the user decides.
// ABOUTME: Emits approvalRequest/approvalResponse envelopes and enforces one pending request.

package approval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/talkai-gateway/internal/channel"
)

// ErrSessionClosed indicates the session closed before a decision arrived.
var ErrSessionClosed = errors.New("session closed")

// ErrConcurrentApproval indicates a request was made while another was pending.
var ErrConcurrentApproval = errors.New("approval already pending for session")

// ErrNoPendingApproval indicates a decision arrived with nothing to resolve.
var ErrNoPendingApproval = errors.New("no pending approval")

// NotApproved is the result returned to the tool when a command is denied.
const NotApproved = "Command not approved"

// DefaultTimeout bounds how long a request waits before it is denied.
const DefaultTimeout = 5 * time.Minute

// Action is the side effect run once a request is approved.
type Action func(ctx context.Context) (string, error)

// Outcome describes how a request was resolved.
type Outcome string

const (
	OutcomeApproved Outcome = "approved"
	OutcomeDenied   Outcome = "denied"
	OutcomeTimeout  Outcome = "timeout"
	OutcomeClosed   Outcome = "closed"
)

// Decision is the record of one resolved request.
type Decision struct {
	ID          string
	SessionID   string
	Command     string
	Outcome     Outcome
	RequestedAt time.Time
	DecidedAt   time.Time
}

// Recorder receives every resolved decision, e.g. for an audit ledger.
type Recorder interface {
	RecordDecision(ctx context.Context, d *Decision) error
}

// Config configures a Gate.
type Config struct {
	SessionID string
	Sender    channel.Sender
	Timeout   time.Duration // zero waits forever
	Recorder  Recorder      // optional
	Logger    *slog.Logger
}

type pendingRequest struct {
	id          string
	command     string
	requestedAt time.Time
	decision    chan bool // buffered 1; closed on session close
}

// Gate is the approval suspension point for one session.
type Gate struct {
	sessionID string
	sender    channel.Sender
	timeout   time.Duration
	recorder  Recorder
	logger    *slog.Logger

	mu      sync.Mutex
	pending *pendingRequest
	closed  bool
}

// New creates a Gate for one session.
func New(cfg Config) *Gate {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		sessionID: cfg.SessionID,
		sender:    cfg.Sender,
		timeout:   cfg.Timeout,
		recorder:  cfg.Recorder,
		logger:    logger.With("component", "approval", "session_id", cfg.SessionID),
	}
}

// RequestApproval asks the user to approve command and blocks until a
// decision, a timeout, session close, or ctx cancellation. On approval the
// action runs exactly once and its output is returned. On denial or timeout
// NotApproved is returned with a nil error.
func (g *Gate) RequestApproval(ctx context.Context, command string, action Action) (string, error) {
	req, err := g.open(command)
	if err != nil {
		return "", err
	}
	defer g.release(req)

	if err := g.sender.Send(channel.Text(channel.TypeApprovalRequest, command)); err != nil {
		if errors.Is(err, channel.ErrClosed) {
			return "", ErrSessionClosed
		}
		return "", fmt.Errorf("sending approval request: %w", err)
	}

	g.logger.Info("⏸ awaiting approval", "approval_id", req.id, "command", command)

	var expired <-chan time.Time
	if g.timeout > 0 {
		timer := time.NewTimer(g.timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case approved, ok := <-req.decision:
		if !ok {
			g.record(ctx, req, OutcomeClosed)
			return "", ErrSessionClosed
		}
		if !approved {
			g.respond(channel.Denied)
			g.record(ctx, req, OutcomeDenied)
			return NotApproved, nil
		}
		g.respond(channel.Approved)
		g.record(ctx, req, OutcomeApproved)
		g.logger.Info("▶ approved, executing", "approval_id", req.id)
		return action(ctx)

	case <-expired:
		g.logger.Warn("approval timed out, denying", "approval_id", req.id, "timeout", g.timeout)
		g.respond(channel.Denied)
		g.record(ctx, req, OutcomeTimeout)
		return NotApproved, nil

	case <-ctx.Done():
		g.record(ctx, req, OutcomeClosed)
		if g.isClosed() {
			return "", ErrSessionClosed
		}
		return "", ctx.Err()
	}
}

// Deliver resolves the pending request with the user's decision.
// Returns ErrNoPendingApproval if nothing is waiting.
func (g *Gate) Deliver(approved bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	req := g.pending
	if req == nil {
		return ErrNoPendingApproval
	}
	g.pending = nil

	// Buffer of 1 and a single deliverer per request, so this never blocks.
	req.decision <- approved
	return nil
}

// Pending reports whether a request is awaiting a decision.
func (g *Gate) Pending() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pending != nil
}

// Close fails any waiting request with ErrSessionClosed and rejects new ones.
// Safe to call multiple times.
func (g *Gate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return
	}
	g.closed = true
	if g.pending != nil {
		close(g.pending.decision)
		g.pending = nil
		g.logger.Info("session closed with approval pending")
	}
}

func (g *Gate) open(command string) (*pendingRequest, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil, ErrSessionClosed
	}
	if g.pending != nil {
		return nil, ErrConcurrentApproval
	}
	req := &pendingRequest{
		id:          uuid.New().String(),
		command:     command,
		requestedAt: time.Now(),
		decision:    make(chan bool, 1),
	}
	g.pending = req
	return req, nil
}

// release clears the slot if it still holds req (timeout or cancellation).
func (g *Gate) release(req *pendingRequest) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pending == req {
		g.pending = nil
	}
}

func (g *Gate) isClosed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}

func (g *Gate) respond(content string) {
	if err := g.sender.Send(channel.Text(channel.TypeApprovalResponse, content)); err != nil {
		g.logger.Debug("approval response not delivered", "content", content, "error", err)
	}
}

func (g *Gate) record(ctx context.Context, req *pendingRequest, outcome Outcome) {
	if g.recorder == nil {
		return
	}
	d := &Decision{
		ID:          req.id,
		SessionID:   g.sessionID,
		Command:     req.command,
		Outcome:     outcome,
		RequestedAt: req.requestedAt,
		DecidedAt:   time.Now(),
	}
	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := g.recorder.RecordDecision(recCtx, d); err != nil {
		g.logger.Warn("failed to record approval decision", "approval_id", req.id, "error", err)
	}
}
