//go:build !windows

package process

import (
	"os"
	"os/exec"
	"syscall"

	"github.com/kr/pty"
)

// osSignal maps the protocol-level signal names to the host's customary
// POSIX signals.
func osSignal(name string) (syscall.Signal, bool) {
	switch name {
	case "terminate":
		return syscall.SIGTERM, true
	case "kill":
		return syscall.SIGKILL, true
	case "interrupt":
		return syscall.SIGINT, true
	default:
		return 0, false
	}
}

// attachPTY opens a pseudo-terminal pair and wires cmd's stdio to the
// slave side. It returns the master end for the caller to read/write
// after cmd.Start, and the slave end, which the caller must close in the
// parent process once the child has started (the child holds its own
// copy). Some interactive programs (shells that detect a controlling
// terminal to decide whether to show a prompt, tools that query terminal
// size) behave differently, or refuse to run at all, without one.
func attachPTY(cmd *exec.Cmd) (ptmx, tty *os.File, err error) {
	ptmx, tty, err = pty.Open()
	if err != nil {
		return nil, nil, err
	}
	cmd.Stdout = tty
	cmd.Stdin = tty
	cmd.Stderr = tty
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid:  true,
		Setctty: true,
	}
	return ptmx, tty, nil
}
