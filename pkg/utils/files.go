package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func GetPathInfo(relPath string) (fullPath string, parentDir string, err error) {
	// Convert to absolute path (resolves ../../ and cleans the path)
	fullPath, err = filepath.Abs(relPath)
	if err != nil {
		return "", "", err
	}

	// Get the directory containing the file
	parentDir = filepath.Dir(fullPath)

	return fullPath, parentDir, nil
}

// BaseName returns the file name of path without its extension.
func BaseName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ArtifactPath places the artifact for source input with the given suffix
// in dir, or next to the input when dir is empty.
//
//	ArtifactPath("src/fib.kt", "debug", ".ll") == "debug/fib.ll"
//	ArtifactPath("src/fib.kt", "", ".ll")      == "src/fib.ll"
func ArtifactPath(input, dir, suffix string) string {
	if dir == "" {
		dir = filepath.Dir(input)
	}
	return filepath.Join(dir, BaseName(input)+suffix)
}

// WriteArtifact writes data to path, creating parent directories.
func WriteArtifact(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
