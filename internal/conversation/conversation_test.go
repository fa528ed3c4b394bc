// ABOUTME: Tests for the append-only conversation history
// ABOUTME: Covers ordering, immutability of appended turns, and the replay window

package conversation

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendPreservesOrder(t *testing.T) {
	conv := New("session-1")

	for i := 0; i < 5; i++ {
		conv.Append(HumanTurn(fmt.Sprintf("question %d", i)))
		conv.Append(AITurn(fmt.Sprintf("answer %d", i)))
	}

	turns := conv.Snapshot()
	require.Len(t, turns, 10)
	assert.Equal(t, 10, conv.Len())

	for i := 0; i < 5; i++ {
		assert.Equal(t, RoleHuman, turns[2*i].Role)
		assert.Equal(t, fmt.Sprintf("question %d", i), turns[2*i].Content)
		assert.Equal(t, RoleAI, turns[2*i+1].Role)
		assert.Equal(t, fmt.Sprintf("answer %d", i), turns[2*i+1].Content)
		assert.False(t, turns[2*i].CreatedAt.IsZero())
	}
}

func TestAppendedTurnsAreImmutable(t *testing.T) {
	conv := New("session-1")

	call := &ToolCall{Name: "search_documents", Args: map[string]any{"query": "jazz"}}
	turn := AITurn("found it")
	turn.ToolCall = call
	conv.Append(turn)

	// Mutating the caller's copy must not leak into the history
	call.Args["query"] = "rock"
	call.Result = "changed"

	snap := conv.Snapshot()
	require.NotNil(t, snap[0].ToolCall)
	assert.Equal(t, "jazz", snap[0].ToolCall.Args["query"])
	assert.Empty(t, snap[0].ToolCall.Result)

	// Mutating a snapshot must not leak either
	snap[0].Content = "tampered"
	snap[0].ToolCall.Args["query"] = "blues"

	again := conv.Snapshot()
	assert.Equal(t, "found it", again[0].Content)
	assert.Equal(t, "jazz", again[0].ToolCall.Args["query"])
}

func TestWindow(t *testing.T) {
	conv := New("session-1")
	conv.Append(SystemTurn("greeting"))
	for i := 0; i < 4; i++ {
		conv.Append(HumanTurn(fmt.Sprintf("q%d", i)))
		conv.Append(AITurn(fmt.Sprintf("a%d", i)))
	}

	t.Run("unbounded returns everything", func(t *testing.T) {
		assert.Len(t, conv.Window(0), 9)
		assert.Len(t, conv.Window(-1), 9)
	})

	t.Run("cap larger than history returns everything", func(t *testing.T) {
		assert.Len(t, conv.Window(50), 9)
	})

	t.Run("keeps system head and latest turns", func(t *testing.T) {
		win := conv.Window(3)
		require.Len(t, win, 4)
		assert.Equal(t, "greeting", win[0].Content)
		assert.Equal(t, "a2", win[1].Content)
		assert.Equal(t, "q3", win[2].Content)
		assert.Equal(t, "a3", win[3].Content)
	})
}

func TestConcurrentConversationsAreIndependent(t *testing.T) {
	a := New("a")
	b := New("b")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			a.Append(HumanTurn(fmt.Sprintf("a-%d", i)))
		}(i)
		go func(i int) {
			defer wg.Done()
			b.Append(HumanTurn(fmt.Sprintf("b-%d", i)))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, a.Len())
	assert.Equal(t, 50, b.Len())
	for _, turn := range a.Snapshot() {
		assert.Contains(t, turn.Content, "a-")
	}
	for _, turn := range b.Snapshot() {
		assert.Contains(t, turn.Content, "b-")
	}
}
