// ABOUTME: Runs approved command lines as subprocesses under an executable allowlist.
// ABOUTME: Output is captured, size-capped, and bounded by a timeout.

package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/2389/talkai-gateway/internal/policy"
)

// ErrFailed indicates the subprocess exited unsuccessfully or could not start.
var ErrFailed = errors.New("command failed")

// Default limits.
const (
	DefaultTimeout   = 20 * time.Second
	DefaultMaxOutput = 256 * 1024
)

// Runner executes a command line and returns its standard output.
type Runner interface {
	Run(ctx context.Context, commandLine string) (string, error)
}

// Config configures an Exec runner.
type Config struct {
	Allowed   []string // executable names; empty allows nothing
	Timeout   time.Duration
	MaxOutput int // bytes of stdout kept
	Logger    *slog.Logger
}

// Exec runs commands with os/exec. The line is split on whitespace and never
// passed through a shell.
type Exec struct {
	allow     *policy.Allowlist
	timeout   time.Duration
	maxOutput int
	logger    *slog.Logger
}

// NewExec creates an Exec runner.
func NewExec(cfg Config) *Exec {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	maxOutput := cfg.MaxOutput
	if maxOutput <= 0 {
		maxOutput = DefaultMaxOutput
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Exec{
		allow:     policy.NewAllowlist(cfg.Allowed...),
		timeout:   timeout,
		maxOutput: maxOutput,
		logger:    logger.With("component", "command"),
	}
}

// Run executes commandLine. A command outside the allowlist fails with
// policy.ErrViolation before anything is started.
func (e *Exec) Run(ctx context.Context, commandLine string) (string, error) {
	argv := strings.Fields(commandLine)
	if err := e.allow.Check(argv); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	stdout := &cappedBuffer{limit: e.maxOutput}
	stderr := &cappedBuffer{limit: 4096}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	err := cmd.Run()
	e.logger.Debug("command finished",
		"executable", argv[0],
		"duration", time.Since(start),
		"stdout_bytes", stdout.buf.Len(),
		"truncated", stdout.truncated,
	)
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: %s: %w", ErrFailed, argv[0], ctx.Err())
		}
		msg := strings.TrimSpace(stderr.buf.String())
		if msg != "" {
			return "", fmt.Errorf("%w: %s: %w: %s", ErrFailed, argv[0], err, msg)
		}
		return "", fmt.Errorf("%w: %s: %w", ErrFailed, argv[0], err)
	}
	return stdout.buf.String(), nil
}

// cappedBuffer keeps the first limit bytes written and discards the rest
// without failing the writer.
type cappedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (c *cappedBuffer) Write(p []byte) (int, error) {
	room := c.limit - c.buf.Len()
	if room <= 0 {
		c.truncated = c.truncated || len(p) > 0
		return len(p), nil
	}
	if len(p) > room {
		c.buf.Write(p[:room])
		c.truncated = true
		return len(p), nil
	}
	c.buf.Write(p)
	return len(p), nil
}
