// Package mcpserver wires the Permission Gate, Process Supervisor, DAG
// Runner, Cursor Store, Token Budgeter, Tool Registry, Dispatcher, and
// Session Log into one running server, and exposes the Run/Shutdown
// surface the CLI entry point drives.
package mcpserver

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/hanzoai/mcpcore/internal/config"
	"github.com/hanzoai/mcpcore/internal/cursor"
	"github.com/hanzoai/mcpcore/internal/dag"
	"github.com/hanzoai/mcpcore/internal/dispatch"
	coreerrors "github.com/hanzoai/mcpcore/internal/errors"
	"github.com/hanzoai/mcpcore/internal/permission"
	"github.com/hanzoai/mcpcore/internal/process"
	"github.com/hanzoai/mcpcore/internal/registry"
	"github.com/hanzoai/mcpcore/internal/sessionlog"
	"github.com/hanzoai/mcpcore/internal/telemetry"
	"github.com/hanzoai/mcpcore/internal/tokenbudget"
	"github.com/hanzoai/mcpcore/internal/toolctx"
	"github.com/hanzoai/mcpcore/internal/tools"
	"github.com/hanzoai/mcpcore/internal/transport"
)

// Server owns every long-lived component and the HTTP listener (sse mode
// only).
type Server struct {
	cfg    config.Config
	logger zerolog.Logger

	gate       *permission.Gate
	supervisor *process.Supervisor
	dagRunner  *dag.Runner
	cursors    *cursor.Store
	budget     *tokenbudget.Budgeter
	registry   *registry.Registry
	sessionLog *sessionlog.Log
	metrics    *telemetry.Metrics
	dispatcher *dispatch.Dispatcher

	httpServer *http.Server
}

// New assembles a Server from cfg. It does not start serving; call Run.
func New(cfg config.Config, logger zerolog.Logger) (*Server, error) {
	rules := make([]permission.Rule, 0, len(cfg.AllowPaths))
	for _, p := range cfg.AllowPaths {
		rules = append(rules, permission.Rule{Prefix: p, Allow: true})
	}
	gate, err := permission.New(permission.Config{Rules: rules, TrustedExec: cfg.TrustedExec})
	if err != nil {
		return nil, err
	}

	spillRoot := filepath.Join(cfg.StateRoot, "processes")
	supervisor, err := process.New(process.Config{
		SpillRoot:             spillRoot,
		Logger:                logger,
		AutoBackgroundDefault: cfg.AutoBackgroundDuration(),
		DisableAutoBackground: cfg.AutoBackgroundSeconds <= 0,
	})
	if err != nil {
		return nil, err
	}

	dagRunner := dag.New(supervisor, 0)
	cursors := cursor.New(cursor.DefaultIdleTimeout)
	budget := tokenbudget.New(cfg.ResponseTokenCap)

	disabled := map[string]bool{
		"write":  cfg.DisableWriteTools,
		"search": cfg.DisableSearchTools,
	}
	manifests := []registry.Manifest{
		tools.ReadFileManifest(),
		tools.EditFileManifest(),
		tools.CopyFileManifest(),
		tools.SearchManifest(),
		tools.DirTreeManifest(),
		tools.ShellManifest(),
		tools.RunDAGManifest(),
		tools.ListProcessesManifest(),
		tools.ProcessLogsManifest(),
		tools.SignalProcessManifest(),
		tools.ReapProcessManifest(),
	}
	reg, err := registry.New(manifests, disabled)
	if err != nil {
		return nil, err
	}

	sessionLogDir := filepath.Join(cfg.StateRoot, "sessions")
	sessLog, err := sessionlog.New(sessionLogDir, os.Getpid(), logger)
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.Internal, err, "failed to open session log", sessionLogDir)
	}

	var metrics *telemetry.Metrics
	if cfg.Transport == "sse" {
		metrics, err = telemetry.New()
		if err != nil {
			return nil, err
		}
	}

	newToolCtx := func(ctx context.Context, invocationID string, deadline time.Time) *toolctx.Context {
		return &toolctx.Context{
			Ctx:          ctx,
			InvocationID: invocationID,
			Deadline:     deadline,
			Gate:         gate,
			Supervisor:   supervisor,
			DAG:          dagRunner,
			Cursors:      cursors,
			Budget:       budget,
		}
	}

	d := dispatch.New(dispatch.Deps{
		Registry:      reg,
		Supervisor:    supervisor,
		Budget:        budget,
		SessionLog:    sessLog,
		Logger:        logger,
		Metrics:       metrics,
		NewToolCtx:    newToolCtx,
		MaxConcurrent: cfg.MaxConcurrent,
	})

	srv := &Server{
		cfg:        cfg,
		logger:     logger,
		gate:       gate,
		supervisor: supervisor,
		dagRunner:  dagRunner,
		cursors:    cursors,
		budget:     budget,
		registry:   reg,
		sessionLog: sessLog,
		metrics:    metrics,
		dispatcher: d,
	}
	return srv, nil
}

// Run blocks, serving the configured transport until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	switch s.cfg.Transport {
	case "sse":
		return s.runHTTP(ctx)
	default:
		return s.runStdio(ctx)
	}
}

func (s *Server) runStdio(ctx context.Context) error {
	stdio := transport.NewStdio(s.dispatcher, s.logger)
	return stdio.Serve(ctx, os.Stdin, os.Stdout)
}

func (s *Server) runHTTP(ctx context.Context) error {
	handler := transport.NewHTTP(s.dispatcher, s.metrics, s.logger)
	addr := s.cfg.Host + ":" + strconv.Itoa(s.cfg.Port)
	s.httpServer = &http.Server{Addr: addr, Handler: handler}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("sse transport listening")
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// Shutdown drains in-flight process sessions and closes the Session Log.
func (s *Server) Shutdown(ctx context.Context) {
	s.supervisor.Shutdown(ctx)
	if s.metrics != nil {
		_ = s.metrics.Shutdown(ctx)
	}
	_ = s.sessionLog.Close()
}
