// ABOUTME: Routes tool calls from the agent to registered tools.
// ABOUTME: Validates arguments, applies a timeout, and classifies failures.

package packs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/2389/talkai-gateway/internal/approval"
	"github.com/2389/talkai-gateway/internal/policy"
)

// ErrToolExecution indicates a tool failed while executing.
var ErrToolExecution = errors.New("tool execution failed")

// DefaultTimeout is the default timeout for ungated tool execution. Gated
// tools wait on the user and bound their own side effect.
const DefaultTimeout = 30 * time.Second

// Router validates and executes tool calls.
type Router struct {
	registry *Registry
	logger   *slog.Logger
	timeout  time.Duration
}

// RouterConfig contains configuration options for the Router.
type RouterConfig struct {
	Registry *Registry
	Logger   *slog.Logger
	Timeout  time.Duration
}

// NewRouter creates a new Router with the given configuration.
func NewRouter(cfg RouterConfig) *Router {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		registry: cfg.Registry,
		logger:   logger.With("component", "router"),
		timeout:  timeout,
	}
}

// Registry returns the registry the router dispatches against.
func (r *Router) Registry() *Registry {
	return r.registry
}

// Execute runs the named tool with args.
//
// Returns ErrToolNotFound for unknown names and an error wrapping ErrSchema for
// invalid arguments (the handler is not called). Handler failures are wrapped
// with ErrToolExecution, except policy.ErrViolation, approval.ErrSessionClosed
// and cancellation, which are returned as-is.
func (r *Router) Execute(ctx context.Context, call *Call, name string, args map[string]any) (string, error) {
	if call == nil {
		call = &Call{}
	}
	tool := r.registry.Get(name)
	if tool == nil {
		r.logger.Debug("tool not found in registry", "tool_name", name, "request_id", call.ID)
		return "", fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	if args == nil {
		args = map[string]any{}
	}

	if err := tool.InputSchema.Validate(args); err != nil {
		r.logger.Warn("tool arguments rejected", "tool_name", name, "request_id", call.ID, "error", err)
		return "", err
	}
	if tool.Validate != nil {
		if err := tool.Validate(args); err != nil {
			r.logger.Warn("tool arguments rejected", "tool_name", name, "request_id", call.ID, "error", err)
			if !errors.Is(err, ErrSchema) && !errors.Is(err, policy.ErrViolation) {
				err = fmt.Errorf("%w: %w", ErrSchema, err)
			}
			return "", err
		}
	}

	r.logger.Info("→ dispatching",
		"tool_name", name,
		"request_id", call.ID,
		"session_id", call.SessionID,
	)

	execCtx := ctx
	if !tool.Gated {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := tool.Handler(execCtx, call, args)
	if err != nil {
		r.logger.Warn("tool error",
			"tool_name", name,
			"request_id", call.ID,
			"error", err,
		)
		return "", classify(name, err)
	}

	r.logger.Info("← responded",
		"tool_name", name,
		"request_id", call.ID,
		"duration", time.Since(start),
		"result_bytes", len(result),
	)
	return result, nil
}

func classify(name string, err error) error {
	switch {
	case errors.Is(err, approval.ErrSessionClosed),
		errors.Is(err, context.Canceled),
		errors.Is(err, policy.ErrViolation),
		errors.Is(err, ErrSchema),
		errors.Is(err, ErrToolExecution):
		return err
	default:
		return fmt.Errorf("%w: %s: %w", ErrToolExecution, name, err)
	}
}
