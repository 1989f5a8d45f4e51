package utils

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	kerrors "github.com/PolarWolf314/syc/internal/errors"
)

// CleanRelative normalizes a slash-separated path relative to a datasite root.
// Leading slashes are dropped and "." components removed. The root itself is "".
// Paths that climb above the root return ErrPathEscape.
func CleanRelative(rel string) (string, error) {
	rel = filepath.ToSlash(rel)
	cleaned := path.Clean("/" + rel)
	if strings.Contains(rel, "..") {
		// path.Clean on a rooted path silently swallows "..", so check the raw
		// components to catch escapes.
		depth := 0
		for _, part := range strings.Split(rel, "/") {
			switch part {
			case "", ".":
			case "..":
				depth--
				if depth < 0 {
					return "", fmt.Errorf("%w: %s", kerrors.ErrPathEscape, rel)
				}
			default:
				depth++
			}
		}
	}
	return strings.TrimPrefix(cleaned, "/"), nil
}

// SafeJoin joins a relative path onto root, refusing results outside root.
func SafeJoin(root, rel string) (string, error) {
	cleaned, err := CleanRelative(rel)
	if err != nil {
		return "", err
	}
	return filepath.Join(root, filepath.FromSlash(cleaned)), nil
}

// WriteFileAtomic writes data to a temporary file next to path and renames it
// into place, creating parent directories as needed.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", tmpName, err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set permissions on %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	return nil
}

// FileExists reports whether path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
