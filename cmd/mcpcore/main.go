// Command mcpcore runs the MCP Tool Server Core: a JSON-RPC tool-calling
// server exposing filesystem, search, shell, and DAG-execution tools to
// an MCP client over stdio or SSE.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hanzoai/mcpcore/internal/config"
	"github.com/hanzoai/mcpcore/internal/logging"
	"github.com/hanzoai/mcpcore/internal/mcpserver"
	"github.com/hanzoai/mcpcore/internal/privilege"
	"github.com/hanzoai/mcpcore/pkg/version"
)

var (
	flagTransport          string
	flagHost               string
	flagPort               int
	flagAllowPaths         []string
	flagDisableWriteTools  bool
	flagDisableSearchTools bool
	flagAutoBackgroundSecs int
	flagResponseTokenCap   int
	flagMaxConcurrent      int
	flagConfigFile         string
)

func main() {
	os.Exit(run())
}

// run returns the process exit code: 0 success, 1 fatal startup error,
// 2 configuration error, 130 interrupted — per the CLI surface's exit
// code contract.
func run() int {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		if ce, ok := asExitCode(err); ok {
			return ce
		}
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

type exitCodeError struct {
	code int
	err  error
}

func (e *exitCodeError) Error() string { return e.err.Error() }

func asExitCode(err error) (int, bool) {
	var ec *exitCodeError
	if e, ok := err.(*exitCodeError); ok {
		ec = e
		return ec.code, true
	}
	return 0, false
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcpcore",
		Short: "MCP Tool Server Core",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().StringVar(&flagTransport, "transport", "", "transport: stdio or sse")
	cmd.Flags().StringVar(&flagHost, "host", "", "bind host for sse transport")
	cmd.Flags().IntVar(&flagPort, "port", 0, "bind port for sse transport")
	cmd.Flags().StringArrayVar(&flagAllowPaths, "allow-path", nil, "path prefix to allow (repeatable)")
	cmd.Flags().BoolVar(&flagDisableWriteTools, "disable-write-tools", false, "disable the write tool category")
	cmd.Flags().BoolVar(&flagDisableSearchTools, "disable-search-tools", false, "disable the search tool category")
	cmd.Flags().IntVar(&flagAutoBackgroundSecs, "auto-background-seconds", -1, "foreground deadline default in seconds (0 disables auto-background)")
	cmd.Flags().IntVar(&flagResponseTokenCap, "response-token-cap", 0, "maximum tokens per tool response")
	cmd.Flags().IntVar(&flagMaxConcurrent, "max-concurrent", 0, "maximum concurrently executing invocations")
	cmd.Flags().StringVar(&flagConfigFile, "config", "", "path to a YAML configuration file")

	cmd.AddCommand(newVersionCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("mcpcore %s (commit %s, built %s, %s)\n", version.Version, version.GitCommit, version.BuildDate, version.GoVersion)
			return nil
		},
	}
}

func runServer(ctx context.Context) error {
	cfg, err := config.Load(flagConfigFile)
	if err != nil {
		return &exitCodeError{code: 2, err: err}
	}
	applyFlagOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return &exitCodeError{code: 2, err: err}
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.LogLevel
	logger := logging.NewWithComponent(logCfg, "mcpcore")

	// Drop any inherited root privileges before opening the Permission
	// Gate and spawning child processes: tool-spawned processes must run
	// as the original invoking user, never as root.
	if err := privilege.DropToOriginalUser(); err != nil {
		logger.Warn().Err(err).Msg("failed to drop privileges, continuing")
	}

	srv, err := mcpserver.New(cfg, logger)
	if err != nil {
		return &exitCodeError{code: 1, err: err}
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := srv.Run(runCtx)

	shutdownCtx := context.Background()
	srv.Shutdown(shutdownCtx)

	if runCtx.Err() != nil {
		if serveErr == nil {
			serveErr = runCtx.Err()
		}
		return &exitCodeError{code: 130, err: serveErr}
	}
	if serveErr != nil {
		return &exitCodeError{code: 1, err: serveErr}
	}
	return nil
}

// applyFlagOverrides layers CLI flags over the defaults/file/env-derived
// config. A flag left at its sentinel default does not override (cobra's
// Changed tracking is avoided here, matching the teacher's simple
// override style): the sentinel is the zero value, except for
// --auto-background-seconds, where 0 is meaningful and -1 means unset.
func applyFlagOverrides(cfg *config.Config) {
	if flagTransport != "" {
		cfg.Transport = flagTransport
	}
	if flagHost != "" {
		cfg.Host = flagHost
	}
	if flagPort != 0 {
		cfg.Port = flagPort
	}
	if len(flagAllowPaths) > 0 {
		cfg.AllowPaths = append(cfg.AllowPaths, flagAllowPaths...)
	}
	if flagDisableWriteTools {
		cfg.DisableWriteTools = true
	}
	if flagDisableSearchTools {
		cfg.DisableSearchTools = true
	}
	if flagAutoBackgroundSecs >= 0 {
		cfg.AutoBackgroundSeconds = flagAutoBackgroundSecs
	}
	if flagResponseTokenCap != 0 {
		cfg.ResponseTokenCap = flagResponseTokenCap
	}
	if flagMaxConcurrent != 0 {
		cfg.MaxConcurrent = flagMaxConcurrent
	}
}
