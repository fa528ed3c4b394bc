// ABOUTME: Gemini implementation of Invoker using the google.golang.org/genai SDK.
// ABOUTME: Maps conversation turns to genai contents and tool definitions to function declarations.

package model

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/2389/talkai-gateway/internal/conversation"
	"github.com/2389/talkai-gateway/internal/packs"
)

// ErrNoAPIKey indicates the Gemini client was configured without credentials.
var ErrNoAPIKey = errors.New("gemini API key is required")

// DefaultGeminiModel is used when no model name is configured.
const DefaultGeminiModel = "gemini-2.0-flash"

// GeminiConfig configures a Gemini invoker.
type GeminiConfig struct {
	APIKey      string
	Model       string
	Temperature *float32
	Logger      *slog.Logger
}

// Gemini invokes a Gemini model.
type Gemini struct {
	models      *genai.Models
	model       string
	temperature *float32
	logger      *slog.Logger
}

// NewGemini creates a Gemini invoker backed by the Gemini API.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	name := cfg.Model
	if name == "" {
		name = DefaultGeminiModel
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	return &Gemini{
		models:      client.Models,
		model:       name,
		temperature: cfg.Temperature,
		logger:      logger.With("component", "model", "model", name),
	}, nil
}

// Name returns the configured model name.
func (g *Gemini) Name() string {
	return g.model
}

// Invoke sends the request to Gemini and returns text or function calls.
func (g *Gemini) Invoke(ctx context.Context, req *Request) (*Reply, error) {
	contents, config := buildGenerateRequest(req)
	config.Temperature = g.temperature

	resp, err := g.models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("gemini generate content: %w", err)
	}

	reply := parseResponse(resp)
	g.logger.Debug("model replied",
		"text_bytes", len(reply.Text),
		"tool_calls", len(reply.ToolCalls),
	)
	if reply.Text == "" && len(reply.ToolCalls) == 0 {
		return nil, ErrEmptyResponse
	}
	return reply, nil
}

// buildGenerateRequest maps a Request onto genai contents and config. System
// turns are folded into the system instruction after the system prompt;
// human and AI turns become user and model contents.
func buildGenerateRequest(req *Request) ([]*genai.Content, *genai.GenerateContentConfig) {
	var system []string
	if strings.TrimSpace(req.System) != "" {
		system = append(system, req.System)
	}

	contents := make([]*genai.Content, 0, len(req.Turns))
	for _, turn := range req.Turns {
		switch turn.Role {
		case conversation.RoleSystem:
			system = append(system, turn.Content)
		case conversation.RoleHuman:
			contents = append(contents, genai.NewContentFromText(turn.Content, genai.RoleUser))
		case conversation.RoleAI:
			if turn.Content == "" {
				continue
			}
			contents = append(contents, genai.NewContentFromText(turn.Content, genai.RoleModel))
		}
	}

	config := &genai.GenerateContentConfig{}
	if len(system) > 0 {
		config.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}
	if len(req.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
		for _, def := range req.Tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  toGenaiSchema(def.InputSchema),
			})
		}
		config.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}
	return contents, config
}

func toGenaiSchema(s packs.Schema) *genai.Schema {
	out := &genai.Schema{
		Type:     genai.TypeObject,
		Required: s.Required,
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for _, name := range s.PropertyNames() {
			prop := s.Properties[name]
			ps := &genai.Schema{Type: genaiType(prop.Type), Description: prop.Description}
			if ps.Type == genai.TypeArray {
				ps.Items = &genai.Schema{Type: genai.TypeString}
			}
			out.Properties[name] = ps
		}
	}
	return out
}

func genaiType(t string) genai.Type {
	switch t {
	case packs.TypeString:
		return genai.TypeString
	case packs.TypeNumber:
		return genai.TypeNumber
	case packs.TypeInteger:
		return genai.TypeInteger
	case packs.TypeBoolean:
		return genai.TypeBoolean
	case packs.TypeArray:
		return genai.TypeArray
	case packs.TypeObject:
		return genai.TypeObject
	default:
		return genai.TypeString
	}
}

func parseResponse(resp *genai.GenerateContentResponse) *Reply {
	reply := &Reply{}
	if resp == nil {
		return reply
	}
	for _, fc := range resp.FunctionCalls() {
		if fc == nil || fc.Name == "" {
			continue
		}
		id := fc.ID
		if id == "" {
			id = uuid.New().String()
		}
		args := fc.Args
		if args == nil {
			args = map[string]any{}
		}
		reply.ToolCalls = append(reply.ToolCalls, conversation.ToolCall{
			ID:   id,
			Name: fc.Name,
			Args: args,
		})
	}
	reply.Text = strings.TrimSpace(resp.Text())
	return reply
}
