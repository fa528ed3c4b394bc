// ABOUTME: Tests for the approval gate state machine.
// ABOUTME: Covers approve, deny, close, timeout, concurrency, and leak-freedom.

package approval

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/2389/talkai-gateway/internal/channel"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// recordingSender captures envelopes and signals each send (thread-safe).
type recordingSender struct {
	mu   sync.Mutex
	sent []channel.Envelope
	ch   chan channel.Envelope
	err  error
}

func newRecordingSender() *recordingSender {
	return &recordingSender{ch: make(chan channel.Envelope, 16)}
}

func (s *recordingSender) Send(env channel.Envelope) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	s.sent = append(s.sent, env)
	s.mu.Unlock()
	s.ch <- env
	return nil
}

func (s *recordingSender) next(t *testing.T) channel.Envelope {
	t.Helper()
	select {
	case env := <-s.ch:
		return env
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for envelope")
		return channel.Envelope{}
	}
}

type recordingRecorder struct {
	mu        sync.Mutex
	decisions []*Decision
}

func (r *recordingRecorder) RecordDecision(_ context.Context, d *Decision) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decisions = append(r.decisions, d)
	return nil
}

func (r *recordingRecorder) outcomes() []Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Outcome, len(r.decisions))
	for i, d := range r.decisions {
		out[i] = d.Outcome
	}
	return out
}

func newTestGate(sender channel.Sender, timeout time.Duration, rec Recorder) *Gate {
	return New(Config{
		SessionID: "session-1",
		Sender:    sender,
		Timeout:   timeout,
		Recorder:  rec,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

type result struct {
	out string
	err error
}

func requestAsync(gate *Gate, command string, action Action) <-chan result {
	done := make(chan result, 1)
	go func() {
		out, err := gate.RequestApproval(context.Background(), command, action)
		done <- result{out, err}
	}()
	return done
}

func countingAction(calls *atomic.Int32, output string) Action {
	return func(ctx context.Context) (string, error) {
		calls.Add(1)
		return output, nil
	}
}

func waitResult(t *testing.T, ch <-chan result) result {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for RequestApproval to return")
		return result{}
	}
}

func contentOf(t *testing.T, env channel.Envelope) string {
	t.Helper()
	s, err := env.Text()
	require.NoError(t, err)
	return s
}

func TestApproveExecutesOnce(t *testing.T) {
	sender := newRecordingSender()
	rec := &recordingRecorder{}
	gate := newTestGate(sender, 0, rec)

	var calls atomic.Int32
	done := requestAsync(gate, "curl -s https://example.com", countingAction(&calls, "<html>ok</html>"))

	req := sender.next(t)
	assert.Equal(t, channel.TypeApprovalRequest, req.Type)
	assert.Equal(t, "curl -s https://example.com", contentOf(t, req))
	assert.True(t, gate.Pending())

	require.NoError(t, gate.Deliver(true))

	resp := sender.next(t)
	assert.Equal(t, channel.TypeApprovalResponse, resp.Type)
	assert.Equal(t, channel.Approved, contentOf(t, resp))

	r := waitResult(t, done)
	require.NoError(t, r.err)
	assert.Equal(t, "<html>ok</html>", r.out)
	assert.Equal(t, int32(1), calls.Load())
	assert.False(t, gate.Pending())
	assert.Equal(t, []Outcome{OutcomeApproved}, rec.outcomes())

	// A late second decision has nothing to resolve
	assert.ErrorIs(t, gate.Deliver(true), ErrNoPendingApproval)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDenySkipsAction(t *testing.T) {
	sender := newRecordingSender()
	rec := &recordingRecorder{}
	gate := newTestGate(sender, 0, rec)

	var calls atomic.Int32
	done := requestAsync(gate, "curl -s https://example.com", countingAction(&calls, "nope"))

	sender.next(t)
	require.NoError(t, gate.Deliver(false))

	resp := sender.next(t)
	assert.Equal(t, channel.Denied, contentOf(t, resp))

	r := waitResult(t, done)
	require.NoError(t, r.err)
	assert.Equal(t, NotApproved, r.out)
	assert.Equal(t, int32(0), calls.Load())
	assert.Equal(t, []Outcome{OutcomeDenied}, rec.outcomes())
}

func TestCloseWhileAwaitingDecision(t *testing.T) {
	sender := newRecordingSender()
	rec := &recordingRecorder{}
	gate := newTestGate(sender, 0, rec)

	var calls atomic.Int32
	done := requestAsync(gate, "curl -s https://example.com", countingAction(&calls, "x"))

	sender.next(t)
	gate.Close()

	r := waitResult(t, done)
	assert.ErrorIs(t, r.err, ErrSessionClosed)
	assert.Equal(t, int32(0), calls.Load())
	assert.Equal(t, []Outcome{OutcomeClosed}, rec.outcomes())

	// No approvalResponse is emitted for a closed session
	select {
	case env := <-sender.ch:
		t.Fatalf("unexpected envelope after close: %+v", env)
	default:
	}

	// Further requests fail immediately
	_, err := gate.RequestApproval(context.Background(), "curl", countingAction(&calls, "x"))
	assert.ErrorIs(t, err, ErrSessionClosed)

	// Close is idempotent
	gate.Close()
}

func TestConcurrentRequestRejected(t *testing.T) {
	sender := newRecordingSender()
	gate := newTestGate(sender, 0, nil)

	var calls atomic.Int32
	done := requestAsync(gate, "first", countingAction(&calls, "first-out"))
	sender.next(t)

	_, err := gate.RequestApproval(context.Background(), "second", countingAction(&calls, "second-out"))
	assert.ErrorIs(t, err, ErrConcurrentApproval)

	// The first request is untouched and still resolvable
	require.NoError(t, gate.Deliver(true))
	sender.next(t)
	r := waitResult(t, done)
	require.NoError(t, r.err)
	assert.Equal(t, "first-out", r.out)
	assert.Equal(t, int32(1), calls.Load())
}

func TestTimeoutDenies(t *testing.T) {
	sender := newRecordingSender()
	rec := &recordingRecorder{}
	gate := newTestGate(sender, 20*time.Millisecond, rec)

	var calls atomic.Int32
	done := requestAsync(gate, "curl -s https://example.com", countingAction(&calls, "x"))

	sender.next(t)
	resp := sender.next(t)
	assert.Equal(t, channel.TypeApprovalResponse, resp.Type)
	assert.Equal(t, channel.Denied, contentOf(t, resp))

	r := waitResult(t, done)
	require.NoError(t, r.err)
	assert.Equal(t, NotApproved, r.out)
	assert.Equal(t, int32(0), calls.Load())
	assert.False(t, gate.Pending())
	assert.Equal(t, []Outcome{OutcomeTimeout}, rec.outcomes())
}

func TestContextCancelReleasesSlot(t *testing.T) {
	sender := newRecordingSender()
	gate := newTestGate(sender, 0, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := gate.RequestApproval(ctx, "curl", func(context.Context) (string, error) {
			return "", errors.New("must not run")
		})
		done <- err
	}()

	sender.next(t)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("request did not return after cancel")
	}
	assert.False(t, gate.Pending())
}

func TestActionErrorPropagates(t *testing.T) {
	sender := newRecordingSender()
	gate := newTestGate(sender, 0, nil)

	boom := errors.New("exit status 6")
	done := requestAsync(gate, "curl", func(context.Context) (string, error) {
		return "", boom
	})

	sender.next(t)
	require.NoError(t, gate.Deliver(true))
	sender.next(t)

	r := waitResult(t, done)
	assert.ErrorIs(t, r.err, boom)
}

func TestSendOnClosedChannel(t *testing.T) {
	sender := newRecordingSender()
	sender.err = channel.ErrClosed
	gate := newTestGate(sender, 0, nil)

	_, err := gate.RequestApproval(context.Background(), "curl", func(context.Context) (string, error) {
		return "", nil
	})
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.False(t, gate.Pending())
}

func TestDeliverWithoutRequest(t *testing.T) {
	gate := newTestGate(newRecordingSender(), 0, nil)
	assert.ErrorIs(t, gate.Deliver(true), ErrNoPendingApproval)
}
