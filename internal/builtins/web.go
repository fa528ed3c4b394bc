// ABOUTME: curl_web_content tool: fetches live public data behind the approval gate.
// ABOUTME: Builds a deterministic fetch command from a search query or an explicit URL.

package builtins

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/2389/talkai-gateway/internal/command"
	"github.com/2389/talkai-gateway/internal/packs"
)

// WebFetchName is the tool name the model calls.
const WebFetchName = "curl_web_content"

// Defaults for WebConfig.
const (
	DefaultSearchURL      = "https://lite.duckduckgo.com/lite/?q="
	DefaultFetchCommand   = "curl"
	DefaultMaxOutputBytes = 16 * 1024
)

// ErrNoApprover indicates a gated tool was called outside a session.
var ErrNoApprover = errors.New("no approver for gated tool")

// WebConfig configures the web-fetch tool.
type WebConfig struct {
	SearchURL      string // query is appended percent-encoded
	FetchCommand   string // executable, invoked as "<cmd> -s <url>"
	MaxOutputBytes int    // cap on the text handed to the model
}

func (c WebConfig) withDefaults() WebConfig {
	if c.SearchURL == "" {
		c.SearchURL = DefaultSearchURL
	}
	if c.FetchCommand == "" {
		c.FetchCommand = DefaultFetchCommand
	}
	if c.MaxOutputBytes <= 0 {
		c.MaxOutputBytes = DefaultMaxOutputBytes
	}
	return c
}

// WebFetchTool creates the curl_web_content tool.
func WebFetchTool(runner command.Runner, cfg WebConfig) *packs.Tool {
	cfg = cfg.withDefaults()
	w := &webHandlers{runner: runner, cfg: cfg}
	return &packs.Tool{
		Name: WebFetchName,
		Description: strings.TrimSpace(`
Fetches real-time or dynamic public data from the web (news, charts, live prices, weather, events).
Use it only when the question clearly needs current information; static or general questions must
be answered from the offline tools or your own knowledge. Pass either "query" (a web search) or
"url" (a specific http/https page), never both. The user must approve every fetch.`),
		InputSchema: packs.ObjectSchema(map[string]packs.Property{
			"query": {Type: packs.TypeString, Description: "The search query most likely to find the user's desired information."},
			"url":   {Type: packs.TypeString, Description: "An absolute http or https URL to fetch instead of searching."},
		}),
		Validate: func(args map[string]any) error {
			_, err := w.commandLine(args)
			return err
		},
		Gated:   true,
		Handler: w.Fetch,
	}
}

type webHandlers struct {
	runner command.Runner
	cfg    WebConfig
}

// Fetch asks for approval of the fetch command and runs it once approved.
func (w *webHandlers) Fetch(ctx context.Context, call *packs.Call, args map[string]any) (string, error) {
	cmdline, err := w.commandLine(args)
	if err != nil {
		return "", err
	}
	if call == nil || call.Approver == nil {
		return "", ErrNoApprover
	}

	return call.Approver.RequestApproval(ctx, cmdline, func(ctx context.Context) (string, error) {
		raw, err := w.runner.Run(ctx, cmdline)
		if err != nil {
			return "", err
		}
		return truncate(visibleText(raw), w.cfg.MaxOutputBytes), nil
	})
}

func (w *webHandlers) commandLine(args map[string]any) (string, error) {
	target, err := w.target(args)
	if err != nil {
		return "", err
	}
	return w.cfg.FetchCommand + " -s " + target, nil
}

func (w *webHandlers) target(args map[string]any) (string, error) {
	// The query is encoded as given; blank only decides presence.
	query := packs.StringArg(args, "query")
	hasQuery := strings.TrimSpace(query) != ""
	rawURL := strings.TrimSpace(packs.StringArg(args, "url"))

	switch {
	case hasQuery && rawURL != "":
		return "", fmt.Errorf("%w: pass either query or url, not both", packs.ErrSchema)
	case hasQuery:
		return w.cfg.SearchURL + EncodeURIComponent(query), nil
	case rawURL != "":
		if err := validateURL(rawURL); err != nil {
			return "", err
		}
		return rawURL, nil
	default:
		return "", fmt.Errorf("%w: query or url is required", packs.ErrSchema)
	}
}

func validateURL(raw string) error {
	if strings.ContainsAny(raw, " \t\r\n") {
		return fmt.Errorf("%w: url must not contain whitespace", packs.ErrSchema)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: invalid url: %v", packs.ErrSchema, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: url scheme must be http or https", packs.ErrSchema)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: url must have a host", packs.ErrSchema)
	}
	return nil
}

// EncodeURIComponent percent-encodes s, leaving only A-Z a-z 0-9 and
// - _ . ! ~ * ' ( ) unescaped. Spaces become %20.
func EncodeURIComponent(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0F])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("-_.!~*'()", c) >= 0
}

// truncate cuts s to at most max bytes on a rune boundary.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "\n[truncated]"
}
