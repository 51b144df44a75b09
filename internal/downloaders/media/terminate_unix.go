//go:build !windows

package media

import (
	"os/exec"
	"syscall"
)

func terminate(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Signal(syscall.SIGTERM)
}
