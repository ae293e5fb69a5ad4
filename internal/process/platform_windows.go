//go:build windows

package process

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// osSignal maps the protocol-level signal names to the closest Windows
// equivalent. Windows has no SIGTERM/SIGINT distinction for an
// arbitrary process tree, so terminate and interrupt both fall back to
// process termination; kill maps to the same forceful termination since
// Windows has no two-stage signal escalation.
func osSignal(name string) (syscall.Signal, bool) {
	switch name {
	case "terminate", "interrupt", "kill":
		return syscall.SIGKILL, true
	default:
		return 0, false
	}
}

// attachPTY has no Windows implementation in this build; a PTY-requesting
// SpawnRequest fails outright rather than silently running without one.
func attachPTY(cmd *exec.Cmd) (ptmx, tty *os.File, err error) {
	return nil, nil, errors.New("pty-attached spawn is not supported on windows")
}
