//go:build linux

package platform

import (
	"os"
	"os/exec"
	"path/filepath"
)

func dataDir() string {
	if x := os.Getenv("XDG_DATA_HOME"); x != "" {
		return filepath.Join(x, AppName)
	}
	return filepath.Join(home(), ".local", "share", AppName)
}

func scratchDir() string {
	if x := os.Getenv("XDG_RUNTIME_DIR"); x != "" {
		return filepath.Join(x, AppName)
	}
	return filepath.Join(os.TempDir(), AppName)
}

func binaryExtension() string    { return "" }
func sharedLibExtension() string { return ".so" }

func reveal(path string) error {
	return exec.Command("xdg-open", path).Start()
}
