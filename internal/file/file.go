package file

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// ExpandPath resolves a leading ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "resolving home directory")
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// Exists reports whether the given path exists.
func Exists(path string) (bool, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.Wrap(err, "stating path")
	}
	return true, nil
}

// CreateDirectoryIfNotExist creates a directory and its parents.
func CreateDirectoryIfNotExist(path string) error {
	exists, err := Exists(path)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if err := os.MkdirAll(path, 0755); err != nil {
		return errors.Wrap(err, "creating directory")
	}
	return nil
}
