//go:build windows

package platform

import (
	"os"
	"os/exec"
	"path/filepath"
)

func dataDir() string {
	if appData := os.Getenv("APPDATA"); appData != "" {
		return filepath.Join(appData, DisplayName)
	}
	return filepath.Join(home(), "."+AppName)
}

func scratchDir() string {
	return filepath.Join(os.TempDir(), AppName)
}

func binaryExtension() string    { return ".exe" }
func sharedLibExtension() string { return ".dll" }

func reveal(path string) error {
	// The empty argument is the window title expected by start.
	return exec.Command("cmd", "/c", "start", "", path).Start()
}
