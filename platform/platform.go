// Package platform resolves per-OS directories and file conventions.
package platform

import (
	"os"
	"path/filepath"
)

// AppName names the data, cache and scratch directories.
const AppName = "fxlab"

// DisplayName is used where the OS expects a human readable folder name.
const DisplayName = "FX Lab"

// DataDir holds the config file and the database.
//
//	Linux:   $XDG_DATA_HOME/fxlab or ~/.local/share/fxlab
//	macOS:   ~/Library/Application Support/FX Lab
//	Windows: %APPDATA%\FX Lab
func DataDir() string { return dataDir() }

// ScratchDir holds intermediate encoder output.
func ScratchDir() string { return scratchDir() }

// ExportDir is the default destination for finished exports.
func ExportDir() string {
	return filepath.Join(home(), "Videos", DisplayName)
}

// BinaryExtension is ".exe" on Windows and empty elsewhere.
func BinaryExtension() string { return binaryExtension() }

// SharedLibExtension is the suffix of dynamic libraries.
func SharedLibExtension() string { return sharedLibExtension() }

// Reveal opens path with the desktop's default handler.
func Reveal(path string) error { return reveal(path) }

func home() string {
	h, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return h
}
