// Package agent runs one session's conversation turns against the model and
// the tool router.
//
// # Overview
//
// An Orchestrator is owned by a single session and handles user messages one
// at a time:
//
//	orch := agent.New(agent.Config{
//	    SessionID:    id,
//	    Conversation: conv,
//	    Model:        invoker,
//	    Router:       router,
//	    Approver:     gate,
//	    Sender:       conn,
//	})
//	err := orch.HandleUserMessage(ctx, "what's today's top news?")
//
// # States
//
//	IDLE -> AWAITING_MODEL -> (text)      -> IDLE
//	                       -> (tool call) -> AWAITING_TOOL -> AWAITING_MODEL -> IDLE
//
// Close moves the orchestrator to DONE; later messages are rejected.
//
// # Tool Calls
//
// Only the first tool call of a model reply is honored (MaxToolCallsPerTurn).
// An unknown tool name is answered with an AI turn and no further model call.
// Otherwise the tool runs through the router, which may park in the session's
// approval gate, and the model is asked once more, without tools, to answer
// the user from the tool result. Tool errors are handed to the model as text.
//
// # Errors
//
// Model failures are logged and reported to the client as a single generic
// error envelope. A session that closes mid-turn aborts the turn silently.
//
// # Sessions
//
// A Session binds one transport to one conversation, gate and orchestrator.
// User messages go through a small bounded queue drained by a single worker,
// so turns never overlap; a full queue answers "busy". Approval frames skip
// the queue and go straight to the gate. Closing a session releases any
// parked approval as denied before the worker is waited on.
//
// The Manager tracks live sessions by ID for readiness reporting and
// shutdown.
package agent
