// Package packs provides the tool registry and router used by the agent.
//
// # Overview
//
// A Tool is a value with three capabilities: it describes itself (name,
// description and an input schema), validates its arguments, and executes.
// Tools are registered by name and dispatched dynamically; there is no
// inheritance between them.
//
// # Architecture
//
//   - Registry: Tracks registered tools keyed by name
//   - Router: Looks up, validates and executes tool calls, classifying errors
//   - Built-in tools: web fetch, document search, structured query (see internal/builtins)
//
// # Tool Routing
//
// When the model asks for a tool, the router:
//
//  1. Looks up the tool by name in the registry
//  2. Validates the arguments against the input schema and the tool's own validator
//  3. Runs the handler with the session's Call context
//  4. Returns the text result, or a classified error
//
// Errors are classified with sentinels: ErrToolNotFound, ErrSchema and
// ErrToolExecution. Policy violations (policy.ErrViolation) and a closed
// session (approval.ErrSessionClosed) pass through unchanged so callers can
// tell them apart.
//
// # Usage
//
//	registry := packs.NewRegistry(logger)
//	builtins.RegisterAll(registry, deps)
//	router := packs.NewRouter(packs.RouterConfig{Registry: registry, Logger: logger})
//
//	result, err := router.Execute(ctx, call, "search_documents", args)
package packs
