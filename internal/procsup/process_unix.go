//go:build !windows

package procsup

import (
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// setProcessGroup spawns the child in a new session, so it (and anything
// it forks) shares a process group reachable by a single signal.
func setProcessGroup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setsid = true
}

// sendInterrupt signals SIGINT to the child's process group.
func sendInterrupt(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return syscall.Kill(-cmd.Process.Pid, syscall.SIGINT)
}

// killProcessGroup force-terminates the child's process group.
func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
}

// disableEchoCtl clears the ECHOCTL local flag so ^D from closing stdin
// isn't rendered into the PTY.
func disableEchoCtl(f *os.File) {
	term, err := unix.IoctlGetTermios(int(f.Fd()), unix.TCGETS)
	if err != nil {
		return
	}
	term.Lflag &^= unix.ECHOCTL
	_ = unix.IoctlSetTermios(int(f.Fd()), unix.TCSETS, term)
}
