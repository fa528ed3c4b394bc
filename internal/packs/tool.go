// ABOUTME: Tool values: definition, validation hook, and handler for in-process tools.
// ABOUTME: Call carries per-session context such as the approval gate.

package packs

import (
	"context"

	"github.com/2389/talkai-gateway/internal/approval"
)

// Approver parks a side-effecting action until the session's user decides.
// Implemented by *approval.Gate.
type Approver interface {
	RequestApproval(ctx context.Context, command string, action approval.Action) (string, error)
}

// Call is the per-invocation context handed to a tool handler.
type Call struct {
	ID        string
	SessionID string
	Approver  Approver
}

// Handler executes a tool with validated arguments and returns a text result.
type Handler func(ctx context.Context, call *Call, args map[string]any) (string, error)

// Definition is what the model sees for a tool.
type Definition struct {
	Name        string
	Description string
	InputSchema Schema
}

// Tool is a named, schema-validated capability the model may invoke.
type Tool struct {
	Name        string
	Description string
	InputSchema Schema

	// Detail, if set, is appended to Description every time definitions are
	// built, e.g. to list the documents or database schemas currently available.
	Detail func(ctx context.Context) (string, error)

	// Validate, if set, runs after schema validation. Errors should wrap ErrSchema.
	Validate func(args map[string]any) error

	// Gated tools ask the session's Approver before their side effect, so the
	// router does not apply its execution timeout to them.
	Gated bool

	Handler Handler
}
