// ABOUTME: Builds the tool registry and its backends from configuration.
// ABOUTME: Shared by the gateway and the CLI's tools listing.

package gateway

import (
	"fmt"
	"log/slog"

	"github.com/2389/talkai-gateway/internal/builtins"
	"github.com/2389/talkai-gateway/internal/command"
	"github.com/2389/talkai-gateway/internal/config"
	"github.com/2389/talkai-gateway/internal/docs"
	"github.com/2389/talkai-gateway/internal/packs"
	"github.com/2389/talkai-gateway/internal/tabular"
)

// Toolset is the registry plus the backends that need lifecycle management.
type Toolset struct {
	Registry  *packs.Registry
	Documents *docs.Dir
}

// NewToolset registers the built-in tools against backends configured by cfg.
func NewToolset(cfg *config.Config, logger *slog.Logger) (*Toolset, error) {
	documents := docs.NewDir(cfg.Tools.DocumentsPath, logger)

	registry := packs.NewRegistry(logger.With("component", "tool-registry"))
	err := builtins.RegisterAll(registry, builtins.Deps{
		Docs: documents,
		Tables: tabular.NewSQLite(tabular.Config{
			Dir:    cfg.Tools.DatabasesPath,
			Logger: logger,
		}),
		Runner: command.NewExec(command.Config{
			Allowed:   cfg.Tools.AllowedCommands,
			Timeout:   cfg.Tools.CommandTimeout,
			MaxOutput: command.DefaultMaxOutput,
			Logger:    logger,
		}),
		Web: builtins.WebConfig{
			SearchURL:      cfg.Tools.SearchURL,
			FetchCommand:   cfg.Tools.FetchCommand,
			MaxOutputBytes: cfg.Tools.MaxOutputBytes,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("registering builtin tools: %w", err)
	}

	return &Toolset{Registry: registry, Documents: documents}, nil
}
