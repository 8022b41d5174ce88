//go:build windows

package procsup

import (
	"os"
	"os/exec"
)

// setProcessGroup is a no-op on Windows: graceful shutdown is equivalent
// to force-terminate there.
func setProcessGroup(cmd *exec.Cmd) {}

// sendInterrupt has no POSIX-signal equivalent on Windows; the graceful
// policy degrades to force-terminate.
func sendInterrupt(cmd *exec.Cmd) error {
	return killProcessGroup(cmd)
}

func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}

func disableEchoCtl(f *os.File) {}
