// ABOUTME: One live conversation: transport, approval gate, orchestrator, and work queue.
// ABOUTME: Dispatches inbound envelopes and tears everything down when the transport closes.

package agent

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/2389/talkai-gateway/internal/approval"
	"github.com/2389/talkai-gateway/internal/channel"
	"github.com/2389/talkai-gateway/internal/conversation"
	"github.com/2389/talkai-gateway/internal/model"
	"github.com/2389/talkai-gateway/internal/packs"
)

// DefaultInboundQueue bounds user messages waiting behind the current turn.
const DefaultInboundQueue = 8

// Error texts sent to the client for rejected frames.
const (
	BusyMessage            = "busy"
	InvalidMessage         = "Invalid message format."
	UnsupportedMessageType = "Unsupported message type."
)

// Transport is the message channel a session runs over.
type Transport interface {
	channel.Sender
	Inbound() <-chan channel.Frame
	Done() <-chan struct{}
	Close() error
}

// SessionConfig configures a Session.
type SessionConfig struct {
	ID              string
	Transport       Transport
	Model           model.Invoker
	Router          *packs.Router
	Recorder        approval.Recorder // optional
	ApprovalTimeout time.Duration
	InboundQueue    int
	MaxReplayTurns  int
	SystemPrompt    string
	GreetingPrompt  string // empty skips the greeting
	Logger          *slog.Logger
}

// Session owns the per-connection state. Nothing in it is shared with other sessions.
type Session struct {
	ID        string
	CreatedAt time.Time

	transport Transport
	conv      *conversation.Conversation
	gate      *approval.Gate
	orch      *Orchestrator
	queue     chan string
	greeting  string
	logger    *slog.Logger

	done chan struct{}
}

// NewSession wires a conversation, gate, and orchestrator for one transport.
func NewSession(cfg SessionConfig) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	queue := cfg.InboundQueue
	if queue <= 0 {
		queue = DefaultInboundQueue
	}

	conv := conversation.New(cfg.ID)
	gate := approval.New(approval.Config{
		SessionID: cfg.ID,
		Sender:    cfg.Transport,
		Timeout:   cfg.ApprovalTimeout,
		Recorder:  cfg.Recorder,
		Logger:    logger,
	})

	return &Session{
		ID:        cfg.ID,
		CreatedAt: time.Now(),
		transport: cfg.Transport,
		conv:      conv,
		gate:      gate,
		orch: New(Config{
			Conversation:   conv,
			Model:          cfg.Model,
			Router:         cfg.Router,
			Approver:       gate,
			Sender:         cfg.Transport,
			SystemPrompt:   cfg.SystemPrompt,
			MaxReplayTurns: cfg.MaxReplayTurns,
			Logger:         logger,
		}),
		queue:    make(chan string, queue),
		greeting: cfg.GreetingPrompt,
		logger:   logger.With("component", "session", "session_id", cfg.ID),
		done:     make(chan struct{}),
	}
}

// Conversation returns the session's conversation.
func (s *Session) Conversation() *conversation.Conversation {
	return s.conv
}

// State returns the orchestrator state.
func (s *Session) State() State {
	return s.orch.State()
}

// Done is closed once Run has torn the session down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close closes the transport, which makes Run return.
func (s *Session) Close() error {
	return s.transport.Close()
}

// Run serves the session until the transport closes or ctx is canceled.
// On return any pending approval has failed with approval.ErrSessionClosed
// and the worker has stopped.
func (s *Session) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.work(ctx)
	}()

	defer func() {
		s.gate.Close()
		cancel()
		wg.Wait()
		s.orch.Close()
		_ = s.transport.Close()
		close(s.done)
		s.logger.Debug("session torn down", "turns", s.conv.Len())
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.transport.Done():
			return
		case frame, ok := <-s.transport.Inbound():
			if !ok {
				return
			}
			s.dispatch(frame)
		}
	}
}

// dispatch routes one inbound frame. Approvals go straight to the gate so a
// worker parked on a decision can resume.
func (s *Session) dispatch(frame channel.Frame) {
	if frame.Err != nil {
		s.logger.Debug("rejected frame", "error", frame.Err)
		s.reply(InvalidMessage)
		return
	}

	env := frame.Envelope
	switch env.Type {
	case channel.TypeApproval:
		approved, err := env.Bool()
		if err != nil {
			s.reply(InvalidMessage)
			return
		}
		if err := s.gate.Deliver(approved); err != nil {
			s.logger.Debug("approval ignored", "error", err)
		}

	case channel.TypeUser:
		text, err := env.Text()
		if err != nil {
			s.reply(InvalidMessage)
			return
		}
		select {
		case s.queue <- text:
		default:
			s.logger.Warn("inbound queue full, rejecting message", "capacity", cap(s.queue))
			s.reply(BusyMessage)
		}

	default:
		s.logger.Debug("unsupported envelope type", "type", env.Type)
		s.reply(UnsupportedMessageType)
	}
}

func (s *Session) reply(content string) {
	if err := s.transport.Send(channel.Text(channel.TypeError, content)); err != nil {
		s.logger.Debug("error envelope dropped", "error", err)
	}
}

// work runs turns one at a time.
func (s *Session) work(ctx context.Context) {
	if s.greeting != "" {
		if err := s.orch.Greet(ctx, s.greeting); err != nil && !sessionGone(ctx, err) {
			s.logger.Warn("greeting failed", "error", err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case text := <-s.queue:
			err := s.orch.HandleUserMessage(ctx, text)
			if err == nil {
				continue
			}
			if sessionGone(ctx, err) {
				return
			}
			s.logger.Error("turn failed", "error", err)
		}
	}
}

func sessionGone(ctx context.Context, err error) bool {
	return ctx.Err() != nil ||
		errors.Is(err, approval.ErrSessionClosed) ||
		errors.Is(err, ErrClosed)
}
