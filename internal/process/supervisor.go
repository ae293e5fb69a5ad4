// Package process implements the Process Supervisor (C5): spawning,
// monitoring, auto-backgrounding, logging, listing, signalling, and
// reaping child processes. It is the component every shell-flavoured
// tool body and the DAG Runner ultimately delegate to.
package process

import (
	"context"
	"io"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	gopsproc "github.com/shirou/gopsutil/v4/process"

	coreerrors "github.com/hanzoai/mcpcore/internal/errors"
	"github.com/hanzoai/mcpcore/internal/privilege"
	"github.com/hanzoai/mcpcore/internal/retry"
	"github.com/hanzoai/mcpcore/internal/safe"
)

// Supervisor owns the live index of Process Sessions. It is safe for
// concurrent use: the index itself is protected by a mutex, while each
// Session's own ring buffers arbitrate their single-writer/many-reader
// access internally.
type Supervisor struct {
	logger            zerolog.Logger
	spillRoot         string
	ringSize          int
	autoBackgroundDef time.Duration

	mu       sync.RWMutex
	sessions map[string]*Session
}

// Config configures a new Supervisor.
type Config struct {
	// SpillRoot is the directory under which per-session stdout.log and
	// stderr.log spill files are created (processes/<session_id>/...).
	SpillRoot string
	// RingSize is the in-memory tail size per stream; 0 uses the default.
	RingSize int
	// AutoBackgroundDefault overrides DefaultAutoBackgroundAfter as the
	// foreground wait applied when a SpawnRequest leaves
	// ForegroundDeadline at zero. Leave unset (the zero Config) to keep
	// the package default; set DisableAutoBackground to turn it off
	// entirely (wait forever, governed only by the invocation deadline).
	AutoBackgroundDefault time.Duration
	DisableAutoBackground bool
	Logger                zerolog.Logger
}

// New creates a Supervisor rooted at cfg.SpillRoot.
func New(cfg Config) (*Supervisor, error) {
	if cfg.SpillRoot == "" {
		return nil, coreerrors.New(coreerrors.InvalidArguments, "spill root required", "")
	}
	if err := os.MkdirAll(cfg.SpillRoot, 0o700); err != nil {
		return nil, coreerrors.Wrap(coreerrors.Internal, err, "failed to create process spill root", cfg.SpillRoot)
	}
	var autoBG time.Duration
	switch {
	case cfg.DisableAutoBackground:
		autoBG = 0
	case cfg.AutoBackgroundDefault > 0:
		autoBG = cfg.AutoBackgroundDefault
	default:
		autoBG = DefaultAutoBackgroundAfter
	}
	return &Supervisor{
		logger:            cfg.Logger,
		spillRoot:         cfg.SpillRoot,
		ringSize:          cfg.RingSize,
		autoBackgroundDef: autoBG,
		sessions:          map[string]*Session{},
	}, nil
}

// SpawnRequest describes a child process to launch.
type SpawnRequest struct {
	Argv               []string
	Cwd                string
	Env                []string
	Stdin              io.Reader
	ForegroundDeadline time.Duration // 0 = use the supervisor's configured auto-background default
	// PTY runs the command attached to a pseudo-terminal instead of
	// plain pipes, for interactive programs that behave differently (or
	// refuse to run at all) without a controlling terminal.
	PTY bool
}

// ForegroundResult is returned when the foreground wait observes either
// a natural exit or the deadline.
type ForegroundResult struct {
	Session        *Session
	Backgrounded   bool
	ExitStatus     int
	CapturedStdout []byte
	CapturedStderr []byte
}

// Spawn launches argv under cwd/env, capturing stdout/stderr into ring
// buffers backed by spill files, and waits up to
// req.ForegroundDeadline for it to finish before auto-backgrounding.
func (sv *Supervisor) Spawn(ctx context.Context, req SpawnRequest) (*ForegroundResult, error) {
	if len(req.Argv) == 0 || req.Argv[0] == "" {
		return nil, coreerrors.New(coreerrors.InvalidArguments, "empty command", "")
	}

	id := newSessionID()
	spillDir := filepath.Join(sv.spillRoot, id)
	var stdout, stderr *ring
	err := retry.Do(ctx, retry.SpillAllocationConfig(),
		func() error {
			if mkErr := os.MkdirAll(spillDir, 0o700); mkErr != nil {
				return mkErr
			}
			// If the privilege drop at startup failed under sudo, a
			// spill directory created while still root would otherwise
			// leave session logs the invoking user can't read or clean
			// up. Without SUDO_USER, ownership is left as it is.
			if fixErr := privilege.FixFileOwnership(spillDir); fixErr != nil {
				sv.logger.Warn().Err(fixErr).Str("spill_dir", spillDir).Msg("failed to fix spill directory ownership")
			}
			var oerr, eerr error
			stdout, oerr = newRing(sv.ringSize, filepath.Join(spillDir, "stdout.log"))
			if oerr != nil {
				return oerr
			}
			stderr, eerr = newRing(sv.ringSize, filepath.Join(spillDir, "stderr.log"))
			return eerr
		},
		retry.IsSpillAllocationRetryable,
	)
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.ExecutionFailed, err, "failed to allocate spill files", id)
	}

	procCtx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(procCtx, req.Argv[0], req.Argv[1:]...)
	cmd.Dir = req.Cwd
	cmd.Env = req.Env

	var ptmx, tty *os.File
	if req.PTY {
		ptmx, tty, err = attachPTY(cmd)
		if err != nil {
			cancel()
			_ = stdout.Close()
			_ = stderr.Close()
			return nil, coreerrors.Wrap(coreerrors.ExecutionFailed, err, "failed to attach pty", id)
		}
	} else {
		cmd.Stdout = stdout
		cmd.Stderr = stderr
		if req.Stdin != nil {
			cmd.Stdin = req.Stdin
		}
	}

	autoBG := req.ForegroundDeadline
	if autoBG == 0 {
		autoBG = sv.autoBackgroundDef
	}

	sess := &Session{
		ID:                  id,
		CommandLine:         append([]string(nil), req.Argv...),
		WorkingDirectory:    req.Cwd,
		EnvironmentSnapshot: append([]string(nil), req.Env...),
		AutoBackgroundAfter: req.ForegroundDeadline,
		CreatedAt:           time.Now(),
		Stdout:              stdout,
		Stderr:              stderr,
		state:               StateRunning,
		lastActivity:        time.Now(),
		cmd:                 cmd,
		ptmx:                ptmx,
		cancel:              cancel,
		exitedCh:            make(chan struct{}),
	}

	if err := cmd.Start(); err != nil {
		cancel()
		_ = stdout.Close()
		_ = stderr.Close()
		if tty != nil {
			_ = tty.Close()
		}
		if ptmx != nil {
			_ = ptmx.Close()
		}
		return nil, coreerrors.Wrap(coreerrors.ExecutionFailed, err, "failed to spawn process", strings.Join(req.Argv, " "))
	}

	if req.PTY {
		// The child holds its own copy of the slave fd; the parent must
		// close it or the ring-buffer copy below never observes EOF.
		_ = tty.Close()
		go io.Copy(stdout, ptmx)
	}

	sv.mu.Lock()
	sv.sessions[id] = sess
	sv.mu.Unlock()

	go sv.collect(sess)

	return sv.waitForeground(ctx, sess, autoBG)
}

// collect waits for the process to exit and reaps it, recording the
// exit status and transitioning the session's terminal state.
func (sv *Supervisor) collect(sess *Session) {
	err := sess.cmd.Wait()
	code := exitCodeOf(err)

	sess.mu.Lock()
	sess.exitStatus = &code
	signaled := sess.signaled
	sess.mu.Unlock()

	if signaled {
		sess.setState(StateKilled)
	} else {
		sess.setState(StateExited)
	}
	sess.touch()
	close(sess.exitedCh)
}

func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if ok := asExitError(err, &exitErr); ok {
		return exitErr.ExitCode()
	}
	return -1
}

func asExitError(err error, target **exec.ExitError) bool {
	ee, ok := err.(*exec.ExitError)
	if ok {
		*target = ee
	}
	return ok
}

// waitForeground blocks until the process exits or deadline elapses,
// whichever first, per §4.5's foreground-wait contract. A deadline of
// a negative duration means "forbid auto-background": the caller (the
// dispatcher, enforcing the invocation deadline) is solely responsible
// for cancellation in that case.
func (sv *Supervisor) waitForeground(ctx context.Context, sess *Session, deadline time.Duration) (*ForegroundResult, error) {
	var timer <-chan time.Time
	if deadline > 0 {
		t := time.NewTimer(deadline)
		defer t.Stop()
		timer = t.C
	}

	select {
	case <-sess.exitedCh:
		code, _ := sess.ExitStatus()
		out, _ := sess.Stdout.ReadFrom(0)
		errOut, _ := sess.Stderr.ReadFrom(0)
		return &ForegroundResult{Session: sess, ExitStatus: code, CapturedStdout: out, CapturedStderr: errOut}, nil
	case <-timer:
		sess.setState(StateBackgrounded)
		return &ForegroundResult{Session: sess, Backgrounded: true}, nil
	case <-ctx.Done():
		return &ForegroundResult{Session: sess, Backgrounded: true}, nil
	}
}

// List returns a snapshot of all known sessions.
func (sv *Supervisor) List() []*Session {
	sv.mu.RLock()
	defer sv.mu.RUnlock()
	out := make([]*Session, 0, len(sv.sessions))
	for _, s := range sv.sessions {
		out = append(out, s)
	}
	return out
}

// Get returns the session by id, or NotFound.
func (sv *Supervisor) Get(id string) (*Session, error) {
	sv.mu.RLock()
	sess, ok := sv.sessions[id]
	sv.mu.RUnlock()
	if !ok {
		return nil, coreerrors.New(coreerrors.NotFound, "unknown process session", id)
	}
	return sess, nil
}

// ResolveSession accepts either an exact session id or a glob pattern
// over live sessions' command lines, erroring with the full candidate
// list when the pattern is ambiguous. This generalizes the disambiguation
// UX the server's process-control tools need when a caller does not
// know the exact session id.
func (sv *Supervisor) ResolveSession(idOrPattern string) (*Session, error) {
	if sess, err := sv.Get(idOrPattern); err == nil {
		return sess, nil
	}

	sv.mu.RLock()
	defer sv.mu.RUnlock()

	var matches []*Session
	for _, s := range sv.sessions {
		cmdline := strings.Join(s.CommandLine, " ")
		if ok, _ := path.Match(idOrPattern, cmdline); ok {
			matches = append(matches, s)
		}
	}
	switch len(matches) {
	case 0:
		return nil, coreerrors.New(coreerrors.NotFound, "no session matches pattern", idOrPattern)
	case 1:
		return matches[0], nil
	default:
		var ids []string
		for _, s := range matches {
			ids = append(ids, s.ID)
		}
		return nil, coreerrors.New(coreerrors.InvalidArguments, "ambiguous session pattern, candidates: "+strings.Join(ids, ", "), idOrPattern)
	}
}

// Logs returns bytes of the given session's stdout stream from
// fromOffset onward, with the stream's total length. Reading is
// idempotent. stderr is exposed separately via LogsStderr since the
// ring keeps the two streams distinct (arrival order is only preserved
// per-stream, as §5 specifies).
func (sv *Supervisor) Logs(id string, fromOffset int64) ([]byte, int64, error) {
	sess, err := sv.Get(id)
	if err != nil {
		return nil, 0, err
	}
	data, err := sess.Stdout.ReadFrom(fromOffset)
	if err != nil {
		return nil, 0, coreerrors.Wrap(coreerrors.Internal, err, "failed to read session log", id)
	}
	return data, sess.Stdout.Len(), nil
}

// LogsStderr mirrors Logs for the stderr stream.
func (sv *Supervisor) LogsStderr(id string, fromOffset int64) ([]byte, int64, error) {
	sess, err := sv.Get(id)
	if err != nil {
		return nil, 0, err
	}
	data, err := sess.Stderr.ReadFrom(fromOffset)
	if err != nil {
		return nil, 0, coreerrors.Wrap(coreerrors.Internal, err, "failed to read session stderr log", id)
	}
	return data, sess.Stderr.Len(), nil
}

// Signal delivers a named signal ({terminate, kill, interrupt}) to the
// session's process and records the transition.
func (sv *Supervisor) Signal(id, signalName string) error {
	sess, err := sv.Get(id)
	if err != nil {
		return err
	}

	sig, ok := osSignal(signalName)
	if !ok {
		return coreerrors.New(coreerrors.InvalidArguments, "unknown signal name", signalName)
	}

	select {
	case <-sess.exitedCh:
		return coreerrors.New(coreerrors.Gone, "session already exited", id)
	default:
	}

	sess.markSignaled()
	if sess.cmd.Process == nil {
		return coreerrors.New(coreerrors.NotFound, "process not running", id)
	}
	if err := sess.cmd.Process.Signal(sig); err != nil {
		return coreerrors.Wrap(coreerrors.ExecutionFailed, err, "failed to signal process", id)
	}
	return nil
}

// Cancel escalates terminate to kill after DefaultGracePeriod if the
// process has not exited, per §5's cascade-cancel behaviour.
func (sv *Supervisor) Cancel(id string) {
	sess, err := sv.Get(id)
	if err != nil {
		return
	}
	_ = sv.Signal(id, "terminate")
	go func() {
		select {
		case <-sess.exitedCh:
		case <-time.After(DefaultGracePeriod):
			_ = sv.Signal(id, "kill")
		}
	}()
}

// Reap removes a terminated session from the index and closes its
// stream handles; the spill files stay on disk. Reaping a session that
// is still running is an InvalidArguments error; reaping an unknown or
// already-reaped id is NotFound.
func (sv *Supervisor) Reap(id string) error {
	sess, err := sv.Get(id)
	if err != nil {
		return err
	}
	select {
	case <-sess.exitedCh:
	default:
		return coreerrors.New(coreerrors.InvalidArguments, "cannot reap a session that is still running", id)
	}

	sv.mu.Lock()
	delete(sv.sessions, id)
	sv.mu.Unlock()

	_ = sess.Stdout.Close()
	_ = sess.Stderr.Close()
	if sess.ptmx != nil {
		_ = sess.ptmx.Close()
	}
	return nil
}

// Stats enriches a session snapshot with live RSS/CPU%, when the
// process is still running; it returns zero values once reaped.
func (sv *Supervisor) Stats(id string) (rssBytes uint64, cpuPercent float64, err error) {
	sess, err := sv.Get(id)
	if err != nil {
		return 0, 0, err
	}
	if sess.cmd.Process == nil {
		return 0, 0, nil
	}
	pid, clamped := safe.IntToInt32(sess.cmd.Process.Pid)
	if clamped {
		// A PID that doesn't fit in int32 can't be a real PID on any
		// platform gopsutil supports; treat it as already gone rather
		// than hand gopsutil a wrapped-around value.
		return 0, 0, nil
	}
	p, perr := gopsproc.NewProcess(pid)
	if perr != nil {
		return 0, 0, nil
	}
	mem, _ := p.MemoryInfo()
	cpu, _ := p.CPUPercent()
	if mem != nil {
		rssBytes = mem.RSS
	}
	return rssBytes, cpu, nil
}

// Shutdown signals every still-live session to terminate, escalating to
// kill after the grace period, and waits for the index to drain or ctx
// to expire.
func (sv *Supervisor) Shutdown(ctx context.Context) {
	sv.mu.RLock()
	ids := make([]string, 0, len(sv.sessions))
	for id := range sv.sessions {
		ids = append(ids, id)
	}
	sv.mu.RUnlock()

	for _, id := range ids {
		sv.Cancel(id)
	}

	for _, id := range ids {
		sess, err := sv.Get(id)
		if err != nil {
			continue
		}
		select {
		case <-sess.exitedCh:
		case <-ctx.Done():
		}
	}
}
