// Package security validates operator-supplied file paths: the SQLite data
// file and route plans imported from disk.
package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrEmptyPath      = errors.New("file path cannot be empty")
	ErrForbiddenChar  = errors.New("file path contains a forbidden character")
	ErrOutsideBaseDir = errors.New("file path escapes base directory")
)

// forbiddenChars are shell metacharacters never legitimately found in a data path.
const forbiddenChars = ";&|$`(){}<>!\n\r"

// ValidateFilePath cleans path, makes it absolute and resolves symlinks when
// the file exists. A path that does not exist yet is returned cleaned.
func ValidateFilePath(path string) (string, error) {
	if path == "" {
		return "", ErrEmptyPath
	}
	if i := strings.IndexAny(path, forbiddenChars); i >= 0 {
		return "", fmt.Errorf("%w %q: %s", ErrForbiddenChar, path[i], path)
	}

	clean, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	resolved, err := filepath.EvalSymlinks(clean)
	if errors.Is(err, os.ErrNotExist) {
		return clean, nil
	}
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	return resolved, nil
}

// ValidateFilePathInDir is ValidateFilePath plus a check that the result lies
// inside baseDir.
func ValidateFilePathInDir(path, baseDir string) (string, error) {
	if baseDir == "" {
		return "", fmt.Errorf("%w: base directory is empty", ErrOutsideBaseDir)
	}
	clean, err := ValidateFilePath(path)
	if err != nil {
		return "", err
	}
	base, err := ValidateFilePath(baseDir)
	if err != nil {
		return "", err
	}
	if clean != base && !strings.HasPrefix(clean, base+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s is not within %s", ErrOutsideBaseDir, path, baseDir)
	}
	return clean, nil
}

// ReadFile reads a validated path.
func ReadFile(path string) ([]byte, error) {
	clean, err := ValidateFilePath(path)
	if err != nil {
		return nil, err
	}
	// #nosec G304 - path is validated above
	return os.ReadFile(clean)
}
