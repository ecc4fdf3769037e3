// Package main provides the driftwatch binary entry point.
// Driftwatch audits a corpus of best-practices documents against their
// live upstream sources and opens pull requests for the ones that drifted.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	// Register LLM providers via init()
	_ "github.com/c360studio/driftwatch/llm/providers"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/c360studio/driftwatch/config"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "driftwatch"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		docsDir    string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Documentation drift auditor",
		Long: `Driftwatch keeps a corpus of best-practices documents honest.

On a weekly schedule (or on demand) it discovers every tracked document,
asks an evaluation agent to check each one against its live upstream
sources, and opens a single pull request carrying every document that
needs updating.`,
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&docsDir, "docs", "", "Document corpus directory (overrides config)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(runCmd(&configPath, &docsDir, &logLevel))
	cmd.AddCommand(serveCmd(&configPath, &docsDir, &logLevel))
	cmd.AddCommand(configCmd(&configPath, &docsDir, &logLevel))

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

func runCmd(configPath, docsDir, logLevel *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run one audit immediately and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(*configPath, *docsDir, *logLevel)
			if err != nil {
				return err
			}

			app, err := NewApp(cfg, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := app.Start(ctx); err != nil {
				return err
			}
			defer app.Shutdown()

			return app.RunOnce(ctx)
		},
	}
}

func serveCmd(configPath, docsDir, logLevel *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the weekly audit schedule until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(*configPath, *docsDir, *logLevel)
			if err != nil {
				return err
			}

			app, err := NewApp(cfg, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := app.Start(ctx); err != nil {
				return err
			}
			defer app.Shutdown()

			return app.Serve(ctx)
		},
	}
}

func configCmd(configPath, docsDir, logLevel *string) *cobra.Command {
	var initUser bool

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(*configPath, *docsDir, *logLevel)
			if err != nil {
				return err
			}

			if initUser {
				if err := config.NewLoader(logger).EnsureUserConfig(); err != nil {
					return fmt.Errorf("create user config: %w", err)
				}
			}

			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}
			fmt.Print(string(data))
			return nil
		},
	}

	cmd.Flags().BoolVar(&initUser, "init", false, "Create a default user config file if none exists")
	return cmd
}

// setup configures logging and loads the effective configuration.
func setup(configPath, docsDir, logLevel string) (*config.Config, *slog.Logger, error) {
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFromFile(configPath)
	} else {
		cfg, err = config.NewLoader(logger).Load()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	if docsDir != "" {
		cfg.Docs.Dir = docsDir
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, logger, nil
}
