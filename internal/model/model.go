// ABOUTME: Invoker contract between the agent orchestrator and a language model.
// ABOUTME: Requests carry turns and tool definitions; replies carry text or tool calls.

package model

import (
	"context"
	"errors"

	"github.com/2389/talkai-gateway/internal/conversation"
	"github.com/2389/talkai-gateway/internal/packs"
)

// ErrEmptyResponse indicates the model returned neither text nor tool calls.
var ErrEmptyResponse = errors.New("empty model response")

// Request is one model invocation.
type Request struct {
	System string              // system prompt
	Turns  []conversation.Turn // replayed conversation, oldest first
	Tools  []packs.Definition  // nil disables tool calling
}

// Reply is the model's answer.
type Reply struct {
	Text      string
	ToolCalls []conversation.ToolCall
}

// HasToolCalls reports whether the model asked for any tool.
func (r *Reply) HasToolCalls() bool {
	return r != nil && len(r.ToolCalls) > 0
}

// Invoker calls a language model.
type Invoker interface {
	Invoke(ctx context.Context, req *Request) (*Reply, error)
}
