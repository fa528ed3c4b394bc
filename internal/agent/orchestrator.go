// ABOUTME: Per-session orchestrator: user message -> model -> optional tool -> model -> reply.
// ABOUTME: Tracks IDLE/AWAITING_MODEL/AWAITING_TOOL/DONE and maps failures to safe envelopes.

package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/2389/talkai-gateway/internal/approval"
	"github.com/2389/talkai-gateway/internal/channel"
	"github.com/2389/talkai-gateway/internal/conversation"
	"github.com/2389/talkai-gateway/internal/model"
	"github.com/2389/talkai-gateway/internal/packs"
)

// MaxToolCallsPerTurn is how many tool calls of one model reply are executed.
const MaxToolCallsPerTurn = 1

// ErrClosed indicates the orchestrator has been closed.
var ErrClosed = errors.New("orchestrator closed")

// State is the orchestrator's position in a turn.
type State string

const (
	StateIdle          State = "IDLE"
	StateAwaitingModel State = "AWAITING_MODEL"
	StateAwaitingTool  State = "AWAITING_TOOL"
	StateDone          State = "DONE"
)

// Config configures an Orchestrator.
type Config struct {
	SessionID      string
	Conversation   *conversation.Conversation
	Model          model.Invoker
	Router         *packs.Router
	Approver       packs.Approver
	Sender         channel.Sender
	SystemPrompt   string // defaults to DefaultSystemPrompt
	MaxReplayTurns int    // 0 replays the whole conversation
	Logger         *slog.Logger
}

// Orchestrator runs one session's turns sequentially.
type Orchestrator struct {
	sessionID    string
	conv         *conversation.Conversation
	model        model.Invoker
	router       *packs.Router
	approver     packs.Approver
	sender       channel.Sender
	systemPrompt string
	maxReplay    int
	logger       *slog.Logger

	mu    sync.Mutex
	state State
}

// New creates an Orchestrator in the IDLE state.
func New(cfg Config) *Orchestrator {
	prompt := cfg.SystemPrompt
	if prompt == "" {
		prompt = DefaultSystemPrompt
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sessionID := cfg.SessionID
	if sessionID == "" && cfg.Conversation != nil {
		sessionID = cfg.Conversation.ID()
	}
	return &Orchestrator{
		sessionID:    sessionID,
		conv:         cfg.Conversation,
		model:        cfg.Model,
		router:       cfg.Router,
		approver:     cfg.Approver,
		sender:       cfg.Sender,
		systemPrompt: prompt,
		maxReplay:    cfg.MaxReplayTurns,
		logger:       logger.With("component", "agent", "session_id", sessionID),
		state:        StateIdle,
	}
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Close moves the orchestrator to DONE. Safe to call multiple times.
func (o *Orchestrator) Close() {
	o.setState(StateDone)
}

// Greet asks the model for an opening message and sends it before any user
// input. The prompt is kept as a system turn so later turns can see it.
func (o *Orchestrator) Greet(ctx context.Context, prompt string) error {
	if prompt == "" {
		return nil
	}
	if err := o.begin(); err != nil {
		return err
	}
	defer o.finish()

	o.setState(StateAwaitingModel)
	reply, err := o.model.Invoke(ctx, &model.Request{
		System: o.systemPrompt,
		Turns:  []conversation.Turn{conversation.HumanTurn(prompt)},
	})
	if err != nil {
		return o.modelFailed(ctx, "greeting", err)
	}
	if reply.Text == "" {
		return nil
	}

	o.conv.Append(conversation.SystemTurn(prompt))
	o.conv.Append(conversation.AITurn(reply.Text))
	return o.send(channel.TypeAI, reply.Text)
}

// HandleUserMessage runs one full turn for text. It returns nil once the turn
// has been answered, with either an AI or an error envelope, and returns
// approval.ErrSessionClosed or a context error if the session went away.
func (o *Orchestrator) HandleUserMessage(ctx context.Context, text string) error {
	if err := o.begin(); err != nil {
		return err
	}
	defer o.finish()

	o.conv.Append(conversation.HumanTurn(text))
	o.logger.Info("→ user message", "bytes", len(text), "turns", o.conv.Len())

	o.setState(StateAwaitingModel)
	reply, err := o.model.Invoke(ctx, &model.Request{
		System: o.systemPrompt,
		Turns:  o.conv.Window(o.maxReplay),
		Tools:  o.router.Registry().Definitions(ctx),
	})
	if err != nil {
		return o.modelFailed(ctx, "first pass", err)
	}

	if !reply.HasToolCalls() {
		return o.answer(conversation.AITurn(reply.Text))
	}

	if n := len(reply.ToolCalls); n > MaxToolCallsPerTurn {
		dropped := make([]string, 0, n-MaxToolCallsPerTurn)
		for _, tc := range reply.ToolCalls[MaxToolCallsPerTurn:] {
			dropped = append(dropped, tc.Name)
		}
		o.logger.Warn("extra tool calls dropped", "honored", reply.ToolCalls[0].Name, "dropped", dropped)
	}
	call := reply.ToolCalls[0]

	o.setState(StateAwaitingTool)
	if o.router.Registry().Get(call.Name) == nil {
		o.logger.Warn("model requested unknown tool", "tool_name", call.Name)
		return o.answer(conversation.AITurn(toolNotFound(call.Name)))
	}

	result, err := o.router.Execute(ctx, &packs.Call{
		ID:        call.ID,
		SessionID: o.sessionID,
		Approver:  o.approver,
	}, call.Name, call.Args)
	toolErr := err
	if toolErr != nil {
		if errors.Is(toolErr, approval.ErrSessionClosed) || ctx.Err() != nil {
			o.logger.Info("session closed during tool call, turn aborted", "tool_name", call.Name)
			return closedErr(ctx, toolErr)
		}
		o.logger.Warn("tool call failed, reporting to model", "tool_name", call.Name, "error", toolErr)
		result = "Tool error: " + toolErr.Error()
	}
	call.Result = result

	o.setState(StateAwaitingModel)
	final, err := o.model.Invoke(ctx, &model.Request{
		System: o.systemPrompt,
		Turns:  append(o.conv.Window(o.maxReplay), conversation.SystemTurn(toolResultPrompt(result))),
	})
	finalText := ""
	switch {
	case err == nil:
		finalText = final.Text
	case errors.Is(err, model.ErrEmptyResponse):
	default:
		return o.modelFailed(ctx, "tool follow-up", err)
	}
	if finalText == "" {
		// Tool error text is for the model only.
		if toolErr != nil {
			return o.modelFailed(ctx, "tool follow-up", fmt.Errorf("empty answer after tool error: %w", toolErr))
		}
		finalText = result
	}

	turn := conversation.AITurn(finalText)
	turn.ToolCall = &call
	return o.answer(turn)
}

// begin claims the orchestrator for a turn.
func (o *Orchestrator) begin() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == StateDone {
		return ErrClosed
	}
	return nil
}

// finish returns to IDLE unless the orchestrator was closed meanwhile.
func (o *Orchestrator) finish() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateDone {
		o.state = StateIdle
	}
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == StateDone {
		return
	}
	o.state = s
}

// answer appends the final AI turn and sends it.
func (o *Orchestrator) answer(turn conversation.Turn) error {
	o.conv.Append(turn)
	o.logger.Info("← AI reply", "bytes", len(turn.Content), "turns", o.conv.Len())
	return o.send(channel.TypeAI, turn.Content)
}

// modelFailed logs the cause and sends the generic error envelope. If the
// session is gone the failure is reported to the caller instead.
func (o *Orchestrator) modelFailed(ctx context.Context, stage string, err error) error {
	if ctx.Err() != nil {
		return closedErr(ctx, err)
	}
	o.logger.Error("model invocation failed", "stage", stage, "error", err)
	return o.send(channel.TypeError, GenericErrorMessage)
}

func (o *Orchestrator) send(typ, text string) error {
	err := o.sender.Send(channel.Text(typ, text))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, channel.ErrClosed):
		return approval.ErrSessionClosed
	default:
		o.logger.Warn("envelope dropped", "type", typ, "error", err)
		return nil
	}
}

func closedErr(ctx context.Context, err error) error {
	if errors.Is(err, approval.ErrSessionClosed) {
		return approval.ErrSessionClosed
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("turn aborted: %w", err)
}
