//go:build darwin

package platform

import (
	"os"
	"os/exec"
	"path/filepath"
)

func dataDir() string {
	return filepath.Join(home(), "Library", "Application Support", DisplayName)
}

func scratchDir() string {
	return filepath.Join(os.TempDir(), AppName)
}

func binaryExtension() string    { return "" }
func sharedLibExtension() string { return ".dylib" }

func reveal(path string) error {
	return exec.Command("open", path).Start()
}
