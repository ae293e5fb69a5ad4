package process

import (
	"context"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is one of the four states a Process Session may be in over its
// lifetime.
type State string

const (
	StateRunning     State = "running"
	StateBackgrounded State = "backgrounded"
	StateExited      State = "exited"
	StateKilled      State = "killed"
)

// DefaultAutoBackgroundAfter is the server-wide default foreground
// deadline before a still-running child is auto-backgrounded.
const DefaultAutoBackgroundAfter = 45 * time.Second

// DefaultGracePeriod is how long Terminate waits before escalating to
// Kill when cascading a cancellation.
const DefaultGracePeriod = 5 * time.Second

// Session is the server's handle on one spawned child process.
type Session struct {
	ID                  string
	CommandLine         []string
	WorkingDirectory    string
	EnvironmentSnapshot []string
	AutoBackgroundAfter time.Duration
	CreatedAt           time.Time

	Stdout *ring
	Stderr *ring

	mu            sync.Mutex
	lastActivity  time.Time
	state         State
	exitStatus    *int
	signaled      bool
	cmd           *exec.Cmd
	stdin         *os.File
	ptmx          *os.File
	cancel        context.CancelFunc
	exitedCh      chan struct{}
}

// newSessionID mints an opaque session id: a short readable prefix plus
// a random suffix, so ids are unambiguous in logs while never being
// reused after reap.
func newSessionID() string {
	return "sess_" + uuid.NewString()
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ExitStatus returns the exit code and whether the process has reaped.
func (s *Session) ExitStatus() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exitStatus == nil {
		return 0, false
	}
	return *s.exitStatus, true
}

// LastActivity returns the last time output was observed on this
// session's streams.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// touch records stream activity, used to compute LastActivity.
func (s *Session) touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Session) markSignaled() {
	s.mu.Lock()
	s.signaled = true
	s.mu.Unlock()
}

func (s *Session) wasSignaled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.signaled
}

// Wait blocks until the process exits or ctx is done, whichever comes
// first. It returns true if the process has exited.
func (s *Session) Wait(ctx context.Context) bool {
	select {
	case <-s.exitedCh:
		return true
	case <-ctx.Done():
		return false
	}
}

// Done reports whether the process has already exited.
func (s *Session) Done() <-chan struct{} {
	return s.exitedCh
}
