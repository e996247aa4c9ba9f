//go:build !windows

package binexec

import "os/exec"

func configure(*exec.Cmd) {}
