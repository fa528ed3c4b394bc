// Package conversation holds the per-session turn history that is replayed to
// the language model.
//
// # Overview
//
// A Conversation is an ordered, append-only list of Turns. Each session owns
// exactly one Conversation; nothing is shared between sessions and nothing
// survives a disconnect.
//
//	conv := conversation.New(sessionID)
//	conv.Append(conversation.HumanTurn("what's today's top news?"))
//	turns := conv.Snapshot()
//
// # Turns
//
// A Turn carries a role (system, human, ai), its text, and for AI turns that
// came out of a tool call, the ToolCall that produced them. Turns are copied
// on the way in and on the way out, so a Turn never changes once appended.
//
// # Replay Window
//
// Window(n) returns what the model sees. With n <= 0 it is the full history,
// which grows without bound for long sessions. With n > 0 the leading system
// turns are kept and only the last n remaining turns are returned.
//
// # Thread Safety
//
// Conversation is safe for concurrent use. In practice a session's worker
// goroutine is the only writer.
package conversation
