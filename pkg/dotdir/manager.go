// Package dotdir manages the .infobase/ and ~/.infobase directories that hold
// config.toml, the SQLite database and the knowledge cache.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// dirName is the name of the infobase directory.
	dirName = ".infobase"
)

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target returns the absolute path to an existing .infobase/ directory.
// Order of precedence is as follows:
//  1. Provided override (created if missing)
//  2. Local ./.infobase/ dir
//  3. Home ~/.infobase/ dir
//
// It returns "" when no override is given and neither directory exists.
func (m *Manager) Target(overrideDir string) (string, error) {
	if overrideDir != "" {
		if err := os.MkdirAll(overrideDir, 0o755); err != nil {
			return "", fmt.Errorf("creating infobase directory %s: %w", overrideDir, err)
		}
		return filepath.Abs(overrideDir)
	}

	if local, ok := m.localDir(); ok {
		return local, nil
	}

	home, err := m.homeDir()
	if err != nil {
		return "", err
	}
	if isDir(home) {
		return home, nil
	}
	return "", nil
}

// Ensure is Target, except that ~/.infobase/ is created when nothing
// else resolves.
func (m *Manager) Ensure(overrideDir string) (string, error) {
	dir, err := m.Target(overrideDir)
	if err != nil || dir != "" {
		return dir, err
	}

	home, err := m.homeDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(home, 0o755); err != nil {
		return "", fmt.Errorf("creating infobase directory %s: %w", home, err)
	}
	return home, nil
}

func (m *Manager) localDir() (string, bool) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", false
	}
	dir := filepath.Join(cwd, dirName)
	return dir, isDir(dir)
}

func (m *Manager) homeDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, dirName), nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
