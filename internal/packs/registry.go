// ABOUTME: Thread-safe registry of tools keyed by name.
// ABOUTME: Builds model-facing definitions, including dynamic description detail.

package packs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// ErrToolNotFound indicates the requested tool is not registered.
var ErrToolNotFound = errors.New("tool not found")

// ErrToolCollision indicates a tool name is already registered.
var ErrToolCollision = errors.New("tool name collision")

// ErrInvalidTool indicates a tool is missing its name or handler.
var ErrInvalidTool = errors.New("invalid tool")

// Registry maintains the set of tools available to the agent.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]*Tool
	logger *slog.Logger
}

// NewRegistry creates a new Registry instance.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tools:  make(map[string]*Tool),
		logger: logger.With("component", "packs"),
	}
}

// Register adds tools to the registry. Either all tools are registered or none.
// Returns ErrInvalidTool for a tool without name or handler, and
// ErrToolCollision if a name is already taken.
func (r *Registry) Register(tools ...*Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]struct{}, len(tools))
	for _, tool := range tools {
		if tool == nil || tool.Name == "" {
			return fmt.Errorf("%w: empty name", ErrInvalidTool)
		}
		if tool.Handler == nil {
			return fmt.Errorf("%w: tool '%s' has no handler", ErrInvalidTool, tool.Name)
		}
		if _, exists := r.tools[tool.Name]; exists {
			return fmt.Errorf("%w: tool '%s' already registered", ErrToolCollision, tool.Name)
		}
		if _, dup := seen[tool.Name]; dup {
			return fmt.Errorf("%w: tool '%s' listed twice", ErrToolCollision, tool.Name)
		}
		seen[tool.Name] = struct{}{}
	}

	for _, tool := range tools {
		r.tools[tool.Name] = tool
		r.logger.Info("tool registered", "tool_name", tool.Name)
	}
	return nil
}

// Get returns a tool by name, or nil if not found.
func (r *Registry) Get(name string) *Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// Names returns the registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Definitions returns the model-facing definitions sorted by name.
// Detail hooks are evaluated on every call; a failing hook is logged and the
// static description is used.
func (r *Registry) Definitions(ctx context.Context) []Definition {
	r.mu.RLock()
	tools := make([]*Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		tools = append(tools, tool)
	}
	r.mu.RUnlock()

	sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })

	defs := make([]Definition, 0, len(tools))
	for _, tool := range tools {
		desc := tool.Description
		if tool.Detail != nil {
			detail, err := tool.Detail(ctx)
			if err != nil {
				r.logger.Warn("tool detail unavailable", "tool_name", tool.Name, "error", err)
			} else if detail != "" {
				desc = desc + "\n" + detail
			}
		}
		defs = append(defs, Definition{
			Name:        tool.Name,
			Description: desc,
			InputSchema: tool.InputSchema,
		})
	}
	return defs
}
