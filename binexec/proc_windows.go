//go:build windows

package binexec

import (
	"os/exec"
	"syscall"
)

// configure keeps child consoles from flashing up.
func configure(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{HideWindow: true}
}
