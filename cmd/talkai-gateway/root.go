// ABOUTME: Cobra command tree: serve, health, tools, approvals, version
// ABOUTME: Every command resolves its config the same way: flag, TALKAI_CONFIG, XDG

package main

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"runtime"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/talkai-gateway/internal/approval"
	"github.com/2389/talkai-gateway/internal/config"
	"github.com/2389/talkai-gateway/internal/gateway"
	"github.com/2389/talkai-gateway/internal/model"
	"github.com/2389/talkai-gateway/internal/store"
)

// NewRootCmd builds the talkai-gateway command tree.
func NewRootCmd() *cobra.Command {
	var configFlag string

	root := &cobra.Command{
		Use:           "talkai-gateway",
		Short:         "Conversational agent gateway with approval-gated tools",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate(versionLine() + "\n")
	root.PersistentFlags().StringVar(&configFlag, "config", "", "config file (YAML or .toml)")

	loadConfig := func() (string, *config.Config, error) {
		path := config.ResolvePath(configFlag)
		cfg, err := config.LoadOrDefault(path)
		if err != nil {
			return path, nil, fmt.Errorf("loading config: %w", err)
		}
		return path, cfg, nil
	}

	root.AddCommand(
		newServeCmd(loadConfig),
		newHealthCmd(loadConfig),
		newToolsCmd(loadConfig),
		newApprovalsCmd(loadConfig),
		newVersionCmd(),
	)
	return root
}

type configLoader func() (string, *config.Config, error)

func versionLine() string {
	return fmt.Sprintf("talkai-gateway %s (%s %s/%s)", version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), versionLine())
		},
	}
}

func newServeCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()

			cyan := color.New(color.FgCyan)
			cyan.Fprint(out, banner)
			gray := color.New(color.FgHiBlack)
			gray.Fprintf(out, "    version: %s\n\n", version)

			configPath, cfg, err := load()
			if err != nil {
				return err
			}
			logger := setupLogger(cfg.Logging, out)
			slog.SetDefault(logger)

			green := color.New(color.FgGreen)
			yellow := color.New(color.FgYellow)
			line := func(label, value string) {
				green.Fprint(out, "    ▶ ")
				fmt.Fprintf(out, "%-10s %s\n", label+":", value)
			}
			line("Config", configPath)
			line("HTTP", cfg.Server.HTTPAddr)
			line("WebSocket", cfg.Server.WSPath)
			line("Model", cfg.Model.Provider+"/"+cfg.Model.Name)
			line("Documents", cfg.Tools.DocumentsPath)
			line("Databases", cfg.Tools.DatabasesPath)
			if cfg.Database.Path != "" {
				line("Ledger", cfg.Database.Path)
			} else {
				green.Fprint(out, "    ▶ ")
				fmt.Fprintf(out, "%-10s ", "Ledger:")
				yellow.Fprintln(out, "disabled")
			}
			fmt.Fprintln(out)

			logger.Info("starting talkai-gateway",
				"config", configPath,
				"http_addr", cfg.Server.HTTPAddr,
				"model", cfg.Model.Name,
			)

			invoker, err := model.NewGemini(cmd.Context(), model.GeminiConfig{
				APIKey:      cfg.Model.APIKey,
				Model:       cfg.Model.Name,
				Temperature: temperature(cfg.Model.Temperature),
				Logger:      logger,
			})
			if err != nil {
				return fmt.Errorf("creating model client: %w", err)
			}

			gw, err := gateway.New(cfg, invoker, logger)
			if err != nil {
				return fmt.Errorf("creating gateway: %w", err)
			}
			return gw.Run(cmd.Context())
		},
	}
}

func temperature(t *float64) *float32 {
	if t == nil {
		return nil
	}
	v := float32(*t)
	return &v
}

// localAddr rewrites a wildcard listen address into one a client can dial.
func localAddr(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return listen
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}

func newHealthCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check gateway health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, cfg, err := load()
			if err != nil {
				return err
			}

			url := fmt.Sprintf("http://%s/health/ready", localAddr(cfg.Server.HTTPAddr))
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, url, nil)
			if err != nil {
				return fmt.Errorf("creating request: %w", err)
			}

			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
			if err != nil {
				return fmt.Errorf("reading response: %w", err)
			}
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
			}

			fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(string(body)))
			return nil
		},
	}
}

func newToolsCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the tools offered to the model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, cfg, err := load()
			if err != nil {
				return err
			}

			logger := slog.New(slog.NewTextHandler(io.Discard, nil))
			tools, err := gateway.NewToolset(cfg, logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			bold := color.New(color.Bold)
			gray := color.New(color.FgHiBlack)
			for _, def := range tools.Registry.Definitions(cmd.Context()) {
				bold.Fprintln(out, def.Name)
				if tool := tools.Registry.Get(def.Name); tool != nil && tool.Gated {
					color.New(color.FgYellow).Fprintln(out, "  requires approval")
				}
				gray.Fprintf(out, "  args: %s\n", strings.Join(def.InputSchema.PropertyNames(), ", "))
				for _, l := range strings.Split(def.Description, "\n") {
					fmt.Fprintf(out, "  %s\n", l)
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
}

func newApprovalsCmd(load configLoader) *cobra.Command {
	var (
		sessionID string
		outcome   string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "approvals",
		Short: "List recorded approval decisions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, cfg, err := load()
			if err != nil {
				return err
			}
			if cfg.Database.Path == "" {
				return fmt.Errorf("approval ledger is disabled (database.path is empty)")
			}

			s, err := store.NewSQLiteStore(cfg.Database.Path)
			if err != nil {
				return err
			}
			defer s.Close()

			filter := store.DecisionFilter{Limit: limit}
			if sessionID != "" {
				filter.SessionID = &sessionID
			}
			if outcome != "" {
				o := approval.Outcome(outcome)
				filter.Outcome = &o
			}

			decisions, err := s.ListDecisions(cmd.Context(), filter)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(decisions) == 0 {
				fmt.Fprintln(out, "no decisions recorded")
				return nil
			}
			for _, d := range decisions {
				fmt.Fprintf(out, "%s  %-8s  %s  %s\n",
					d.DecidedAt.Local().Format("2006-01-02 15:04:05"),
					outcomeColor(d.Outcome).Sprint(d.Outcome),
					d.SessionID,
					d.Command,
				)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "only this session")
	cmd.Flags().StringVar(&outcome, "outcome", "", "approved, denied, timeout or closed")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum decisions to show")
	return cmd
}

func outcomeColor(o approval.Outcome) *color.Color {
	switch o {
	case approval.OutcomeApproved:
		return color.New(color.FgGreen)
	case approval.OutcomeDenied:
		return color.New(color.FgRed)
	default:
		return color.New(color.FgYellow)
	}
}
