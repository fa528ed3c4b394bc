// ABOUTME: Append-only turn history owned by a single session.
// ABOUTME: Turns are copied on append and snapshot so appended turns never change.

package conversation

import (
	"maps"
	"sync"
	"time"
)

// Role identifies who authored a turn.
type Role string

const (
	RoleSystem Role = "system"
	RoleHuman  Role = "human"
	RoleAI     Role = "ai"
)

// ToolCall is a model-selected tool invocation and, once executed, its result.
type ToolCall struct {
	ID     string
	Name   string
	Args   map[string]any
	Result string
}

func (tc *ToolCall) clone() *ToolCall {
	if tc == nil {
		return nil
	}
	c := *tc
	c.Args = maps.Clone(tc.Args)
	return &c
}

// Turn is one entry in a conversation.
type Turn struct {
	Role      Role
	Content   string
	ToolCall  *ToolCall // set on AI turns produced from a tool result
	CreatedAt time.Time
}

// SystemTurn creates a system turn.
func SystemTurn(content string) Turn {
	return Turn{Role: RoleSystem, Content: content}
}

// HumanTurn creates a human turn.
func HumanTurn(content string) Turn {
	return Turn{Role: RoleHuman, Content: content}
}

// AITurn creates an AI turn.
func AITurn(content string) Turn {
	return Turn{Role: RoleAI, Content: content}
}

func (t Turn) clone() Turn {
	t.ToolCall = t.ToolCall.clone()
	return t
}

// Conversation is an ordered, append-only sequence of turns.
type Conversation struct {
	id    string
	turns []Turn
	mu    sync.RWMutex
}

// New creates an empty conversation for the given session.
func New(sessionID string) *Conversation {
	return &Conversation{id: sessionID}
}

// ID returns the owning session's identifier.
func (c *Conversation) ID() string {
	return c.id
}

// Append adds a turn to the end of the conversation.
func (c *Conversation) Append(turn Turn) {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}
	turn = turn.clone()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = append(c.turns, turn)
}

// Len returns the number of turns.
func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.turns)
}

// Snapshot returns a copy of every turn in insertion order.
func (c *Conversation) Snapshot() []Turn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneTurns(c.turns)
}

// Window returns the turns to replay to the model. When max <= 0 the full
// history is returned. Otherwise leading system turns are always kept and at
// most max of the remaining turns, the most recent ones, follow them.
func (c *Conversation) Window(max int) []Turn {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if max <= 0 {
		return cloneTurns(c.turns)
	}

	head := 0
	for head < len(c.turns) && c.turns[head].Role == RoleSystem {
		head++
	}
	rest := c.turns[head:]
	if len(rest) <= max {
		return cloneTurns(c.turns)
	}

	out := make([]Turn, 0, head+max)
	out = append(out, cloneTurns(c.turns[:head])...)
	out = append(out, cloneTurns(rest[len(rest)-max:])...)
	return out
}

func cloneTurns(turns []Turn) []Turn {
	out := make([]Turn, len(turns))
	for i, t := range turns {
		out[i] = t.clone()
	}
	return out
}
