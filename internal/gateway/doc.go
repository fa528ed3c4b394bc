// Package gateway runs the talkai-gateway HTTP server.
//
// # Overview
//
// The gateway owns the process-wide pieces (tool registry, tool router,
// model client, approval ledger) and creates one isolated agent.Session per
// WebSocket connection. Sessions share nothing but those read-mostly
// components.
//
// # Routes
//
//	GET /health          "Working!"
//	GET /health/ready    JSON: status, active session count, tools, sessions
//	    /api/v1/talkAi   WebSocket chat endpoint (server.ws_path)
//
// # Envelopes
//
// Every WebSocket text frame is a JSON envelope {"type", "content"}.
// Clients send "user" (string) and "approval" (boolean). The gateway sends
// "AI", "error", "approvalRequest" and "approvalResponse".
//
// # Lifecycle
//
//	gw, err := gateway.New(cfg, invoker, logger)
//	err = gw.Run(ctx) // blocks; shuts down when ctx is canceled
//
// Run serves HTTP and watches the documents directory in one errgroup.
// Shutdown stops the listener, closes every session (pending approvals fail
// with approval.ErrSessionClosed), waits for session handlers, and closes
// the ledger.
//
// # Greeting
//
// When sessions.greeting_prompt is set, each session opens with a model
// generated greeting. The placeholder {locale} in the prompt is replaced with
// the base language of the client's Accept-Language header.
package gateway
