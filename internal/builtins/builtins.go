// ABOUTME: Registers the built-in tools with their backends.
// ABOUTME: Deps carries the document store, tabular service, and command runner.

package builtins

import (
	"github.com/2389/talkai-gateway/internal/command"
	"github.com/2389/talkai-gateway/internal/docs"
	"github.com/2389/talkai-gateway/internal/packs"
	"github.com/2389/talkai-gateway/internal/tabular"
)

// Deps are the backends the built-in tools run against.
type Deps struct {
	Docs   docs.Store
	Tables tabular.Service
	Runner command.Runner
	Web    WebConfig
}

// Tools builds every built-in tool.
func Tools(deps Deps) []*packs.Tool {
	return []*packs.Tool{
		WebFetchTool(deps.Runner, deps.Web),
		DocumentSearchTool(deps.Docs),
		StructuredQueryTool(deps.Tables),
	}
}

// RegisterAll registers every built-in tool with registry.
func RegisterAll(registry *packs.Registry, deps Deps) error {
	return registry.Register(Tools(deps)...)
}
