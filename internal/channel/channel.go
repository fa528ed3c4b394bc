// ABOUTME: Wraps one WebSocket connection as a buffered envelope sender and inbound stream.
// ABOUTME: Signals disconnect exactly once via Done; sends after close fail fast.

package channel

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// ErrClosed indicates the channel has been closed.
var ErrClosed = errors.New("channel closed")

// ErrBufferFull indicates the outbound buffer is full and the envelope was dropped.
var ErrBufferFull = errors.New("outbound buffer full")

// ErrNotText indicates a binary frame was received.
var ErrNotText = errors.New("binary frames are not supported")

// Default tuning values.
const (
	DefaultSendBuffer   = 32
	DefaultWriteTimeout = 10 * time.Second
	DefaultReadLimit    = 1 << 20
)

// Sender is the outbound half of a channel.
type Sender interface {
	Send(env Envelope) error
}

// Frame is one inbound frame. Err is set when the frame could not be decoded.
type Frame struct {
	Envelope Envelope
	Err      error
}

// Config tunes a Conn.
type Config struct {
	SendBuffer   int
	WriteTimeout time.Duration
	ReadLimit    int64
}

// Conn is a message-oriented, bidirectional channel over a WebSocket.
type Conn struct {
	ws     *websocket.Conn
	out    chan Envelope
	in     chan Frame
	done   chan struct{}
	cancel context.CancelFunc

	writeTimeout time.Duration
	logger       *slog.Logger

	mu        sync.RWMutex // protects closed against concurrent Send
	closed    bool
	closeOnce sync.Once
}

// New starts the reader and writer goroutines for ws. The channel stays open
// until the peer disconnects, ctx is canceled, or Close is called.
func New(ctx context.Context, ws *websocket.Conn, cfg Config, logger *slog.Logger) *Conn {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = DefaultSendBuffer
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = DefaultReadLimit
	}
	ws.SetReadLimit(cfg.ReadLimit)

	ctx, cancel := context.WithCancel(ctx)
	c := &Conn{
		ws:           ws,
		out:          make(chan Envelope, cfg.SendBuffer),
		in:           make(chan Frame),
		done:         make(chan struct{}),
		cancel:       cancel,
		writeTimeout: cfg.WriteTimeout,
		logger:       logger,
	}

	go c.readLoop(ctx)
	go c.writeLoop(ctx)
	return c
}

// Send queues an envelope for delivery without blocking.
func (c *Conn) Send(env Envelope) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return ErrClosed
	}

	select {
	case c.out <- env:
		return nil
	default:
		c.logger.Warn("outbound buffer full, dropping envelope", "type", env.Type)
		return ErrBufferFull
	}
}

// Inbound returns the stream of inbound frames. It is closed after Done.
func (c *Conn) Inbound() <-chan Frame {
	return c.in
}

// Done is closed exactly once when the channel shuts down.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Close performs a normal close handshake and stops both goroutines.
func (c *Conn) Close() error {
	c.shutdown(websocket.StatusNormalClosure, "bye")
	return nil
}

func (c *Conn) shutdown(status websocket.StatusCode, reason string) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		close(c.done)
		if status != 0 {
			_ = c.ws.Close(status, reason)
		}
		c.cancel()
		_ = c.ws.CloseNow()
		c.logger.Debug("channel closed", "reason", reason)
	})
}

func (c *Conn) readLoop(ctx context.Context) {
	defer close(c.in)

	for {
		typ, data, err := c.ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
				c.logger.Debug("read failed", "error", err)
			}
			select {
			case <-c.done:
			default:
				c.shutdown(0, "peer disconnected")
			}
			return
		}

		var frame Frame
		if typ != websocket.MessageText {
			frame.Err = ErrNotText
		} else {
			frame.Envelope, frame.Err = decode(data)
		}

		select {
		case c.in <- frame:
		case <-c.done:
			return
		}
	}
}

func (c *Conn) writeLoop(ctx context.Context) {
	for {
		select {
		case env := <-c.out:
			if err := c.write(ctx, env); err != nil {
				c.logger.Debug("write failed", "type", env.Type, "error", err)
				c.shutdown(0, "write failed")
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *Conn) write(ctx context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, c.writeTimeout)
	defer cancel()
	return c.ws.Write(ctx, websocket.MessageText, data)
}
