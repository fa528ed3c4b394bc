// ABOUTME: Tests for the WebSocket channel adapter using an httptest server.
// ABOUTME: Covers envelope decoding, outbound delivery, and close signaling.

package channel

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestPair starts a server that wraps each accepted socket in a Conn and
// returns the server-side Conn plus the client socket.
func newTestPair(t *testing.T, cfg Config) (*Conn, *websocket.Conn) {
	t.Helper()

	conns := make(chan *Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		c := New(context.Background(), ws, cfg, testLogger())
		conns <- c
		<-c.Done()
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.CloseNow() })

	select {
	case c := <-conns:
		t.Cleanup(func() {
			_ = client.CloseNow()
			_ = c.Close()
		})
		return c, client
	case <-ctx.Done():
		t.Fatal("server never accepted the connection")
		return nil, nil
	}
}

func readFrame(t *testing.T, c *Conn) Frame {
	t.Helper()
	select {
	case f, ok := <-c.Inbound():
		require.True(t, ok, "inbound closed unexpectedly")
		return f
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for inbound frame")
		return Frame{}
	}
}

func TestInboundEnvelopes(t *testing.T) {
	conn, client := newTestPair(t, Config{})
	ctx := context.Background()

	t.Run("user text", func(t *testing.T) {
		require.NoError(t, wsjson.Write(ctx, client, map[string]any{"type": "user", "content": "hello"}))
		f := readFrame(t, conn)
		require.NoError(t, f.Err)
		assert.Equal(t, TypeUser, f.Envelope.Type)
		text, err := f.Envelope.Text()
		require.NoError(t, err)
		assert.Equal(t, "hello", text)
	})

	t.Run("approval boolean", func(t *testing.T) {
		require.NoError(t, wsjson.Write(ctx, client, map[string]any{"type": "approval", "content": true}))
		f := readFrame(t, conn)
		require.NoError(t, f.Err)
		ok, err := f.Envelope.Bool()
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("raw text frame is malformed", func(t *testing.T) {
		require.NoError(t, client.Write(ctx, websocket.MessageText, []byte("just some text")))
		f := readFrame(t, conn)
		assert.ErrorIs(t, f.Err, ErrMalformed)
	})

	t.Run("missing type is malformed", func(t *testing.T) {
		require.NoError(t, client.Write(ctx, websocket.MessageText, []byte(`{"content":"x"}`)))
		f := readFrame(t, conn)
		assert.ErrorIs(t, f.Err, ErrMalformed)
	})

	t.Run("binary frame rejected", func(t *testing.T) {
		require.NoError(t, client.Write(ctx, websocket.MessageBinary, []byte{0x01, 0x02}))
		f := readFrame(t, conn)
		assert.ErrorIs(t, f.Err, ErrNotText)
	})
}

func TestSendDeliversInOrder(t *testing.T) {
	conn, client := newTestPair(t, Config{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, conn.Send(Text(TypeApprovalRequest, "curl -s https://example.com")))
	require.NoError(t, conn.Send(Text(TypeApprovalResponse, Approved)))
	require.NoError(t, conn.Send(Text(TypeAI, "done")))

	var got []Envelope
	for i := 0; i < 3; i++ {
		var env Envelope
		require.NoError(t, wsjson.Read(ctx, client, &env))
		got = append(got, env)
	}

	assert.Equal(t, TypeApprovalRequest, got[0].Type)
	assert.Equal(t, TypeApprovalResponse, got[1].Type)
	assert.Equal(t, TypeAI, got[2].Type)
	text, err := got[1].Text()
	require.NoError(t, err)
	assert.Equal(t, Approved, text)
}

func TestPeerDisconnectSignalsDone(t *testing.T) {
	conn, client := newTestPair(t, Config{})

	require.NoError(t, client.Close(websocket.StatusNormalClosure, "leaving"))

	select {
	case <-conn.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("Done was not closed after peer disconnect")
	}

	// Inbound drains and closes
	for range conn.Inbound() {
	}

	assert.ErrorIs(t, conn.Send(Text(TypeAI, "too late")), ErrClosed)
}

func TestCloseIsIdempotent(t *testing.T) {
	conn, client := newTestPair(t, Config{})

	// The client must read to answer the close handshake.
	go func() {
		for {
			if _, _, err := client.Read(context.Background()); err != nil {
				return
			}
		}
	}()

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())

	select {
	case <-conn.Done():
	default:
		t.Fatal("Done should be closed")
	}
	assert.ErrorIs(t, conn.Send(Text(TypeError, "x")), ErrClosed)
}

func TestEnvelopeAccessors(t *testing.T) {
	env := Text(TypeUser, "hi")
	_, err := env.Bool()
	assert.ErrorIs(t, err, ErrMalformed)

	env = Bool(TypeApproval, false)
	_, err = env.Text()
	assert.ErrorIs(t, err, ErrMalformed)
	b, err := env.Bool()
	require.NoError(t, err)
	assert.False(t, b)

	for _, raw := range []string{"", "null", " null "} {
		env = Envelope{Type: TypeApproval, Content: json.RawMessage(raw)}
		_, err = env.Bool()
		assert.ErrorIs(t, err, ErrMalformed, "bool content %q", raw)
		_, err = env.Text()
		assert.ErrorIs(t, err, ErrMalformed, "text content %q", raw)
	}
}
