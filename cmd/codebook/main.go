package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/marcelocantos/codebook/internal/audit"
	"github.com/marcelocantos/codebook/internal/chat"
	"github.com/marcelocantos/codebook/internal/cli"
	"github.com/marcelocantos/codebook/internal/config"
	"github.com/marcelocantos/codebook/internal/kernel"
	"github.com/marcelocantos/codebook/internal/mcpserver"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code := cli.ExitOK
	root := newRootCmd(ctx, &code)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "codebook: %v\n", err)
		return cli.ExitUsage
	}
	return code
}

type flags struct {
	configPath string
	verbose    bool
}

func newRootCmd(ctx context.Context, code *int) *cobra.Command {
	var (
		f   flags
		env *environment
	)

	root := &cobra.Command{
		Use:           "codebook",
		Short:         "Run the code cells of markdown notebooks",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			var err error
			env, err = setup(ctx, f)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if env != nil {
				_ = env.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&f.configPath, "config", config.ConfigPath(), "config file")
	root.PersistentFlags().BoolVarP(&f.verbose, "verbose", "v", false, "debug logging")

	var write bool
	var cell int
	runCmd := &cobra.Command{
		Use:   "run FILE",
		Short: "Run one cell, replaying earlier cells of its language",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			if cell < 1 {
				fmt.Fprintln(os.Stderr, "codebook: --cell is required")
				*code = cli.ExitUsage
				return
			}
			*code = env.app.RunDocument(cmd.Context(), args[0], cli.RunOptions{Cell: cell, Write: write})
		},
	}
	runCmd.Flags().IntVarP(&cell, "cell", "c", 0, "cell number as shown by cells")
	runCmd.Flags().BoolVarP(&write, "write", "w", false, "write outputs back into the file")

	runAllCmd := &cobra.Command{
		Use:   "run-all FILE",
		Short: "Run every cell in order",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			*code = env.app.RunDocument(cmd.Context(), args[0], cli.RunOptions{Write: write})
		},
	}
	runAllCmd.Flags().BoolVarP(&write, "write", "w", false, "write outputs back into the file")

	cellsCmd := &cobra.Command{
		Use:   "cells FILE",
		Short: "List the code cells of a notebook",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			*code = env.app.RunCells(args[0])
		},
	}

	languagesCmd := &cobra.Command{
		Use:   "languages",
		Short: "List supported languages and their toolchains",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			*code = env.app.RunLanguages()
		},
	}

	openCmd := &cobra.Command{
		Use:   "open FILE",
		Short: "Print the program most recently generated for a notebook",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			*code = env.app.RunOpen(args[0])
		},
	}

	watchCmd := &cobra.Command{
		Use:   "watch FILE",
		Short: "Run every cell each time the notebook is saved",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			*code = env.app.Watch(cmd.Context(), args[0], cli.DefaultDebounce)
		},
	}

	var tail int
	auditCmd := &cobra.Command{
		Use:       "audit verify|show|tail",
		Short:     "Inspect the execution log",
		ValidArgs: []string{"verify", "show", "tail"},
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		Run: func(cmd *cobra.Command, args []string) {
			*code = cli.RunAudit(os.Stdout, env.cfg.Audit.Path, args, tail)
		},
	}
	auditCmd.Flags().IntVarP(&tail, "n", "n", 20, "entries to show")

	mcpCmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve notebook tools over MCP on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			srv := mcpserver.New(env.app.Kernel, version, env.logger)
			srv.Write = write
			return srv.Serve(cmd.Context(), os.Stdin, os.Stdout)
		},
	}
	mcpCmd.Flags().BoolVarP(&write, "write", "w", false, "write outputs back into notebooks")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("codebook %s\n", version)
		},
	}

	root.AddCommand(runCmd, runAllCmd, cellsCmd, languagesCmd, openCmd, watchCmd, auditCmd, mcpCmd, versionCmd)
	return root
}

// environment is everything built from the configuration.
type environment struct {
	cfg    *config.Config
	logger *zap.Logger
	app    *cli.App
}

func setup(ctx context.Context, f flags) (*environment, error) {
	cfg, err := config.LoadFrom(f.configPath, ".env")
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.Log, f.verbose)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	k := kernel.New(cfg.TempPath, logger)
	for language, bin := range cfg.Binaries() {
		k.Finder.SetOverride(language, bin)
	}
	if c, err := chat.New(ctx, cfg.Chat.Options(), logger); err != nil {
		logger.Warn("chat disabled", zap.Error(err))
	} else {
		k.Chat = c
	}
	if cfg.Audit.Enabled {
		al, err := audit.NewLogger(cfg.Audit.Path)
		if err != nil {
			// Runs proceed without an audit trail.
			logger.Warn("audit disabled", zap.Error(err))
		} else {
			k.Audit = al
		}
	}

	return &environment{
		cfg:    cfg,
		logger: logger,
		app: &cli.App{
			Kernel:   k,
			StateDir: cfg.StateDir,
			Logger:   logger,
			Stdout:   os.Stdout,
			Stderr:   os.Stderr,
		},
	}, nil
}

// newLogger writes to stderr so stdout carries only cell output, or MCP
// messages under the mcp command.
func newLogger(lc config.LogConfig, verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if lc.Development {
		zc = zap.NewDevelopmentConfig()
	}
	level := zapcore.WarnLevel
	if lc.Level != "" {
		if err := level.Set(lc.Level); err != nil {
			return nil, err
		}
	}
	if verbose {
		level = zapcore.DebugLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	return zc.Build()
}
